package market

import (
	"errors"
	"strings"
	"testing"
)

func TestRankReward(t *testing.T) {
	tests := []struct {
		rank int
		want int64
	}{
		{1, 20},
		{2, 18},
		{3, 16},
		{5, 12},
		{10, 2},
		{0, 0},
		{11, 0},
		{-3, 0},
	}
	for _, tc := range tests {
		if got := RankReward(tc.rank); got != tc.want {
			t.Fatalf("RankReward(%d) = %d, want %d", tc.rank, got, tc.want)
		}
	}
}

func TestRankWeight(t *testing.T) {
	tests := []struct {
		rank int
		want int64
	}{
		{1, 10},
		{2, 9},
		{9, 2},
		{10, 1},
		{0, 0},
		{11, 0},
	}
	for _, tc := range tests {
		if got := RankWeight(tc.rank); got != tc.want {
			t.Fatalf("RankWeight(%d) = %d, want %d", tc.rank, got, tc.want)
		}
	}
}

func TestRewardExceedsWeightAtEveryRank(t *testing.T) {
	for rank := MinRank; rank <= MaxRank; rank++ {
		if RankReward(rank) != 2*RankWeight(rank) {
			t.Fatalf("rank %d: reward %d is not twice weight %d", rank, RankReward(rank), RankWeight(rank))
		}
	}
}

func TestValidateSlate(t *testing.T) {
	ids := func(n int) []string {
		out := make([]string, n)
		for i := range out {
			out[i] = newID("cand")
		}
		return out
	}
	if err := validateSlate(nil); err != nil {
		t.Fatalf("empty slate should validate, got %v", err)
	}
	if err := validateSlate(ids(10)); err != nil {
		t.Fatalf("ten distinct picks should validate, got %v", err)
	}
	if err := validateSlate(ids(11)); !errors.Is(err, ErrTooManyPicks) {
		t.Fatalf("eleven picks: got %v, want ErrTooManyPicks", err)
	}
	if err := validateSlate([]string{"cand_a", "cand_b", "cand_a"}); !errors.Is(err, ErrDuplicateCandidate) {
		t.Fatalf("repeated candidate: got %v, want ErrDuplicateCandidate", err)
	}
}

func TestMissingExplanations(t *testing.T) {
	picks := []string{"cand_a", "cand_b"}
	full := map[string]string{"cand_a": "solid sourcing", "cand_b": "strong author"}
	if missing := missingExplanations(picks, full); len(missing) != 0 {
		t.Fatalf("complete explanations flagged as missing: %v", missing)
	}
	blank := map[string]string{"cand_a": "solid sourcing", "cand_b": "   "}
	missing := missingExplanations(picks, blank)
	if len(missing) != 1 || missing[0] != "cand_b" {
		t.Fatalf("got missing %v, want [cand_b]", missing)
	}
	if missing := missingExplanations(picks, nil); len(missing) != 2 {
		t.Fatalf("nil explanations: got %d missing, want 2", len(missing))
	}
}

func TestNewID(t *testing.T) {
	id := newID("cyc")
	if !strings.HasPrefix(id, "cyc_") {
		t.Fatalf("id %q lacks prefix", id)
	}
	if len(id) != len("cyc_")+12 {
		t.Fatalf("id %q has wrong length", id)
	}
	if id == newID("cyc") {
		t.Fatalf("consecutive ids collided")
	}
}

func TestDefaultCurationCurveIsNonIncreasing(t *testing.T) {
	for i := 1; i < len(DefaultCurationCurve); i++ {
		if DefaultCurationCurve[i] > DefaultCurationCurve[i-1] {
			t.Fatalf("curve rises at position %d: %v", i, DefaultCurationCurve)
		}
	}
}
