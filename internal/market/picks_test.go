package market

import (
	"math"
	"testing"
)

func testCandidate(id string) CandidateLink {
	return CandidateLink{
		ID:           id,
		CanonicalURL: "https://example.com/" + id,
		Domain:       "example.com",
	}
}

func TestProbabilityTableSingleSlate(t *testing.T) {
	candidates := []CandidateLink{testCandidate("cand_a"), testCandidate("cand_b"), testCandidate("cand_c")}
	picks := []pickRow{
		{UserID: "usr_1", CandidateID: "cand_a", Rank: 1},
		{UserID: "usr_1", CandidateID: "cand_b", Rank: 2},
		{UserID: "usr_1", CandidateID: "cand_c", Rank: 3},
	}
	rows := probabilityTable(candidates, picks)
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	// weights 10, 9, 8 over a total of 27
	wantProb := map[string]float64{
		"cand_a": 10.0 / 27.0,
		"cand_b": 9.0 / 27.0,
		"cand_c": 8.0 / 27.0,
	}
	wantWeight := map[string]int64{"cand_a": 10, "cand_b": 9, "cand_c": 8}
	var sum float64
	for _, r := range rows {
		if r.RankWeightScore != wantWeight[r.CandidateID] {
			t.Fatalf("%s weight = %d, want %d", r.CandidateID, r.RankWeightScore, wantWeight[r.CandidateID])
		}
		if math.Abs(r.MarketProbability-wantProb[r.CandidateID]) > 1e-12 {
			t.Fatalf("%s probability = %v, want %v", r.CandidateID, r.MarketProbability, wantProb[r.CandidateID])
		}
		sum += r.MarketProbability
	}
	if math.Abs(sum-1.0) > 1e-12 {
		t.Fatalf("probabilities sum to %v, want 1.0", sum)
	}
	if rows[0].CandidateID != "cand_a" {
		t.Fatalf("highest weight should sort first, got %s", rows[0].CandidateID)
	}
}

func TestProbabilityTableCombinesSlates(t *testing.T) {
	candidates := []CandidateLink{testCandidate("cand_a"), testCandidate("cand_b"), testCandidate("cand_c")}
	picks := []pickRow{
		{UserID: "usr_1", CandidateID: "cand_b", Rank: 1},
		{UserID: "usr_1", CandidateID: "cand_a", Rank: 2},
		{UserID: "usr_1", CandidateID: "cand_c", Rank: 3},
		{UserID: "usr_2", CandidateID: "cand_a", Rank: 1},
		{UserID: "usr_2", CandidateID: "cand_b", Rank: 2},
	}
	rows := probabilityTable(candidates, picks)
	// a: 9+10=19, b: 10+9=19, c: 8, total 46
	byID := map[string]CandidateProbability{}
	for _, r := range rows {
		byID[r.CandidateID] = r
	}
	if byID["cand_a"].RankWeightScore != 19 || byID["cand_b"].RankWeightScore != 19 || byID["cand_c"].RankWeightScore != 8 {
		t.Fatalf("weights = a:%d b:%d c:%d, want 19/19/8",
			byID["cand_a"].RankWeightScore, byID["cand_b"].RankWeightScore, byID["cand_c"].RankWeightScore)
	}
	if math.Abs(byID["cand_c"].MarketProbability-8.0/46.0) > 1e-12 {
		t.Fatalf("cand_c probability = %v, want %v", byID["cand_c"].MarketProbability, 8.0/46.0)
	}
	// tied probabilities fall back to candidate ID order
	if rows[0].CandidateID != "cand_a" || rows[1].CandidateID != "cand_b" {
		t.Fatalf("tie order = %s, %s, want cand_a then cand_b", rows[0].CandidateID, rows[1].CandidateID)
	}
}

func TestProbabilityTableNoPicks(t *testing.T) {
	candidates := []CandidateLink{testCandidate("cand_a"), testCandidate("cand_b")}
	rows := probabilityTable(candidates, nil)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	for _, r := range rows {
		if r.MarketProbability != 0 || r.RankWeightScore != 0 {
			t.Fatalf("%s should report zero with no picks, got %v (weight %d)",
				r.CandidateID, r.MarketProbability, r.RankWeightScore)
		}
	}
}

func TestProbabilityTableNoCandidates(t *testing.T) {
	if rows := probabilityTable(nil, nil); len(rows) != 0 {
		t.Fatalf("expected no rows, got %d", len(rows))
	}
}
