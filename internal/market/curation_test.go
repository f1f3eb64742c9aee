package market

import (
	"testing"
	"time"
)

func submittedCandidate(id, userID string, created time.Time) CandidateLink {
	return CandidateLink{ID: id, SubmittedByUserID: userID, CreatedAt: created}
}

func TestTallySubmitterClicksDedupes(t *testing.T) {
	base := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	candidates := []CandidateLink{
		submittedCandidate("cand_a", "usr_1", base),
		submittedCandidate("cand_b", "usr_2", base.Add(time.Minute)),
	}
	clicks := []clickRow{
		{CandidateID: "cand_a", FingerprintHash: "fp1"},
		{CandidateID: "cand_a", FingerprintHash: "fp1"}, // repeat visitor
		{CandidateID: "cand_a", FingerprintHash: "fp2"},
		{CandidateID: "cand_b", FingerprintHash: "fp1"}, // same visitor, other link
	}
	tallies := tallySubmitterClicks(candidates, clicks)
	if len(tallies) != 2 {
		t.Fatalf("got %d tallies, want 2", len(tallies))
	}
	byUser := map[string]int64{}
	for _, tl := range tallies {
		byUser[tl.UserID] = tl.UniqueClicks
	}
	if byUser["usr_1"] != 2 {
		t.Fatalf("usr_1 unique clicks = %d, want 2", byUser["usr_1"])
	}
	if byUser["usr_2"] != 1 {
		t.Fatalf("usr_2 unique clicks = %d, want 1", byUser["usr_2"])
	}
}

func TestTallySubmitterClicksDropsZeroAndUnknown(t *testing.T) {
	base := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	candidates := []CandidateLink{
		submittedCandidate("cand_a", "usr_1", base),
		submittedCandidate("cand_b", "usr_2", base),
	}
	clicks := []clickRow{
		{CandidateID: "cand_a", FingerprintHash: "fp1"},
		{CandidateID: "cand_gone", FingerprintHash: "fp1"}, // not in this cycle
	}
	tallies := tallySubmitterClicks(candidates, clicks)
	if len(tallies) != 1 || tallies[0].UserID != "usr_1" {
		t.Fatalf("tallies = %+v, want only usr_1", tallies)
	}
}

func TestTallySubmitterClicksUsesEarliestSubmission(t *testing.T) {
	base := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	candidates := []CandidateLink{
		submittedCandidate("cand_late", "usr_1", base.Add(time.Hour)),
		submittedCandidate("cand_early", "usr_1", base),
	}
	clicks := []clickRow{{CandidateID: "cand_late", FingerprintHash: "fp1"}}
	tallies := tallySubmitterClicks(candidates, clicks)
	if len(tallies) != 1 {
		t.Fatalf("got %d tallies, want 1", len(tallies))
	}
	if !tallies[0].FirstSubmission.Equal(base) {
		t.Fatalf("first submission = %v, want %v", tallies[0].FirstSubmission, base)
	}
}

func TestCurationRankingPaysDownTheCurve(t *testing.T) {
	base := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	tallies := []submitterTally{
		{UserID: "usr_third", UniqueClicks: 1, FirstSubmission: base},
		{UserID: "usr_first", UniqueClicks: 9, FirstSubmission: base},
		{UserID: "usr_second", UniqueClicks: 4, FirstSubmission: base},
		{UserID: "usr_unpaid", UniqueClicks: 0, FirstSubmission: base},
	}
	rewards := curationRanking(tallies, DefaultCurationCurve)
	if len(rewards) != 3 {
		t.Fatalf("got %d rewards, want 3", len(rewards))
	}
	tests := []struct {
		idx    int
		userID string
		rank   int
		chips  int64
	}{
		{0, "usr_first", 1, 40},
		{1, "usr_second", 2, 20},
		{2, "usr_third", 3, 10},
	}
	for _, tc := range tests {
		r := rewards[tc.idx]
		if r.UserID != tc.userID || r.Rank != tc.rank || r.RewardChips != tc.chips {
			t.Fatalf("position %d = %+v, want %s rank %d chips %d", tc.idx, r, tc.userID, tc.rank, tc.chips)
		}
	}
}

func TestCurationRankingTieBreaksByEarliestSubmission(t *testing.T) {
	base := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	tallies := []submitterTally{
		{UserID: "usr_late", UniqueClicks: 5, FirstSubmission: base.Add(time.Hour)},
		{UserID: "usr_early", UniqueClicks: 5, FirstSubmission: base},
	}
	rewards := curationRanking(tallies, DefaultCurationCurve)
	if len(rewards) != 2 {
		t.Fatalf("got %d rewards, want 2", len(rewards))
	}
	if rewards[0].UserID != "usr_early" || rewards[0].RewardChips != 40 {
		t.Fatalf("first = %+v, want usr_early at 40", rewards[0])
	}
	if rewards[1].UserID != "usr_late" || rewards[1].RewardChips != 20 {
		t.Fatalf("second = %+v, want usr_late at 20", rewards[1])
	}
}

func TestCurationRankingBeyondCurveGetsNothing(t *testing.T) {
	base := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	var tallies []submitterTally
	for i := 0; i < 5; i++ {
		tallies = append(tallies, submitterTally{
			UserID:          newID("usr"),
			UniqueClicks:    int64(10 - i),
			FirstSubmission: base,
		})
	}
	rewards := curationRanking(tallies, DefaultCurationCurve)
	if len(rewards) != len(DefaultCurationCurve) {
		t.Fatalf("got %d rewards, want %d", len(rewards), len(DefaultCurationCurve))
	}
}

func TestCurationRankingCustomCurve(t *testing.T) {
	base := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	tallies := []submitterTally{
		{UserID: "usr_1", UniqueClicks: 3, FirstSubmission: base},
		{UserID: "usr_2", UniqueClicks: 2, FirstSubmission: base},
	}
	rewards := curationRanking(tallies, []int64{100})
	if len(rewards) != 1 || rewards[0].RewardChips != 100 {
		t.Fatalf("rewards = %+v, want single 100 chip award", rewards)
	}
}

func TestClickFingerprint(t *testing.T) {
	a := clickFingerprint(Visitor{UserID: "usr_1", IP: "10.0.0.1", UserAgent: "Mozilla"})
	if b := clickFingerprint(Visitor{UserID: "usr_1", IP: "10.0.0.1", UserAgent: "Mozilla"}); a != b {
		t.Fatalf("same visitor hashed differently: %s vs %s", a, b)
	}
	if b := clickFingerprint(Visitor{UserID: "usr_2", IP: "10.0.0.1", UserAgent: "Mozilla"}); a == b {
		t.Fatalf("different users share a fingerprint")
	}
	anon1 := clickFingerprint(Visitor{IP: "10.0.0.1", UserAgent: "Mozilla"})
	anon2 := clickFingerprint(Visitor{IP: "10.0.0.2", UserAgent: "Mozilla"})
	if anon1 == anon2 {
		t.Fatalf("distinct anonymous devices share a fingerprint")
	}
	if len(a) != 64 {
		t.Fatalf("fingerprint length = %d, want 64 hex chars", len(a))
	}
}
