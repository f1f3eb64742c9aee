package market

import "testing"

func TestSettlementEntriesRankedSlate(t *testing.T) {
	// one user ranked B first, A second, C third; A and B won
	picks := []pickRow{
		{UserID: "usr_1", CandidateID: "cand_b", Rank: 1},
		{UserID: "usr_1", CandidateID: "cand_a", Rank: 2},
		{UserID: "usr_1", CandidateID: "cand_c", Rank: 3},
	}
	winners := map[string]bool{"cand_a": true, "cand_b": true}
	entries := settlementEntries(picks, winners)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.UserID != "usr_1" {
		t.Fatalf("entry user = %s, want usr_1", e.UserID)
	}
	// rank 1 pays 20, rank 2 pays 18
	if e.RewardChips != 38 {
		t.Fatalf("reward = %d, want 38", e.RewardChips)
	}
	if e.CorrectPicks != 2 {
		t.Fatalf("correct picks = %d, want 2", e.CorrectPicks)
	}
}

func TestSettlementEntriesSkipsUsersWithoutHits(t *testing.T) {
	picks := []pickRow{
		{UserID: "usr_1", CandidateID: "cand_a", Rank: 1},
		{UserID: "usr_2", CandidateID: "cand_b", Rank: 1},
	}
	entries := settlementEntries(picks, map[string]bool{"cand_a": true})
	if len(entries) != 1 || entries[0].UserID != "usr_1" {
		t.Fatalf("entries = %+v, want only usr_1", entries)
	}
}

func TestSettlementEntriesNoWinners(t *testing.T) {
	picks := []pickRow{
		{UserID: "usr_1", CandidateID: "cand_a", Rank: 1},
	}
	if entries := settlementEntries(picks, nil); len(entries) != 0 {
		t.Fatalf("no winners should pay nobody, got %+v", entries)
	}
}

func TestSettlementEntriesFullWinningSlate(t *testing.T) {
	winners := map[string]bool{}
	var picks []pickRow
	for rank := 1; rank <= MaxPicksPerCycle; rank++ {
		id := newID("cand")
		winners[id] = true
		picks = append(picks, pickRow{UserID: "usr_1", CandidateID: id, Rank: rank})
	}
	entries := settlementEntries(picks, winners)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	// 20+18+...+2
	if entries[0].RewardChips != 110 {
		t.Fatalf("full slate reward = %d, want 110", entries[0].RewardChips)
	}
}

func TestSettlementEntriesPreservesSlateOrder(t *testing.T) {
	picks := []pickRow{
		{UserID: "usr_2", CandidateID: "cand_a", Rank: 1},
		{UserID: "usr_1", CandidateID: "cand_a", Rank: 1},
	}
	entries := settlementEntries(picks, map[string]bool{"cand_a": true})
	if len(entries) != 2 || entries[0].UserID != "usr_2" || entries[1].UserID != "usr_1" {
		t.Fatalf("entries out of slate order: %+v", entries)
	}
}

func TestRankByCompetition(t *testing.T) {
	entries := []SettlementEntry{
		{UserID: "usr_1", RewardChips: 38, CorrectPicks: 2},
		{UserID: "usr_2", RewardChips: 38, CorrectPicks: 2},
		{UserID: "usr_3", RewardChips: 20, CorrectPicks: 1},
	}
	ranked := rankByCompetition(entries)
	tests := []struct {
		idx  int
		rank int
	}{
		{0, 1},
		{1, 1},
		{2, 3},
	}
	for _, tc := range tests {
		if ranked[tc.idx].Rank != tc.rank {
			t.Fatalf("position %d rank = %d, want %d", tc.idx, ranked[tc.idx].Rank, tc.rank)
		}
	}
}

func TestRankByCompetitionOrdersByRewardThenCorrect(t *testing.T) {
	entries := []SettlementEntry{
		{UserID: "usr_low", RewardChips: 4, CorrectPicks: 2},
		{UserID: "usr_high", RewardChips: 40, CorrectPicks: 2},
		{UserID: "usr_mid", RewardChips: 4, CorrectPicks: 1},
	}
	ranked := rankByCompetition(entries)
	want := []string{"usr_high", "usr_low", "usr_mid"}
	for i, userID := range want {
		if ranked[i].UserID != userID {
			t.Fatalf("position %d = %s, want %s", i, ranked[i].UserID, userID)
		}
	}
	// equal reward, more correct picks ranks higher
	if ranked[1].Rank != 2 || ranked[2].Rank != 3 {
		t.Fatalf("ranks = %d, %d, want 2, 3", ranked[1].Rank, ranked[2].Rank)
	}
}

func TestRankByCompetitionDoesNotMutateInput(t *testing.T) {
	entries := []SettlementEntry{
		{UserID: "usr_1", RewardChips: 2},
		{UserID: "usr_2", RewardChips: 20},
	}
	rankByCompetition(entries)
	if entries[0].UserID != "usr_1" || entries[0].Rank != 0 {
		t.Fatalf("input slice mutated: %+v", entries)
	}
}
