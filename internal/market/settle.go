package market

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"linkmarket/internal/metrics"
)

// SettleCycle flips an open cycle to SETTLED, records every
// candidate's outcome and pays prediction rewards, all in one
// transaction. The row lock on the cycle makes the status flip a
// single-writer gate: exactly one caller settles, everyone after gets
// ErrAlreadySettled and no chips move twice.
func (s *Service) SettleCycle(ctx context.Context, cycleID string, results []CycleResult) (SettlementSummary, error) {
	settledAt := time.Now().UTC()
	isWinner := make(map[string]bool, len(results))
	for _, r := range results {
		if r.IsWinner {
			isWinner[r.CandidateID] = true
		}
	}
	var summary SettlementSummary
	err := s.withSerializableTx(ctx, func(tx pgx.Tx) error {
		var status string
		err := tx.QueryRow(ctx, `SELECT status FROM cycles WHERE id = $1 FOR UPDATE`, cycleID).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCycleNotFound
		}
		if err != nil {
			return fmt.Errorf("lock cycle: %w", err)
		}
		if status != CycleOpen {
			return ErrAlreadySettled
		}

		candRows, err := tx.Query(ctx,
			`SELECT id FROM candidate_links WHERE cycle_id = $1 ORDER BY created_at ASC, id ASC`, cycleID)
		if err != nil {
			return fmt.Errorf("load candidates: %w", err)
		}
		var candidateIDs []string
		for candRows.Next() {
			var id string
			if err := candRows.Scan(&id); err != nil {
				candRows.Close()
				return fmt.Errorf("scan candidate: %w", err)
			}
			candidateIDs = append(candidateIDs, id)
		}
		candRows.Close()
		if err := candRows.Err(); err != nil {
			return err
		}

		winnerSet := make(map[string]bool, len(isWinner))
		var winners []string
		for _, id := range candidateIDs {
			won := isWinner[id]
			if won {
				winnerSet[id] = true
				winners = append(winners, id)
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO cycle_results (cycle_id, candidate_id, is_winner) VALUES ($1, $2, $3)`,
				cycleID, id, won); err != nil {
				return fmt.Errorf("record result: %w", err)
			}
		}

		pRows, err := tx.Query(ctx,
			`SELECT user_id, candidate_id, rank FROM picks WHERE cycle_id = $1 ORDER BY picked_at ASC, rank ASC, id ASC`, cycleID)
		if err != nil {
			return fmt.Errorf("load picks: %w", err)
		}
		var picks []pickRow
		for pRows.Next() {
			var p pickRow
			if err := pRows.Scan(&p.UserID, &p.CandidateID, &p.Rank); err != nil {
				pRows.Close()
				return fmt.Errorf("scan pick: %w", err)
			}
			picks = append(picks, p)
		}
		pRows.Close()
		if err := pRows.Err(); err != nil {
			return err
		}

		entries := settlementEntries(picks, winnerSet)
		for _, e := range entries {
			if err := s.creditChips(ctx, tx, e.UserID, cycleID, EventPredictionReward, e.RewardChips,
				map[string]any{"correct_picks": e.CorrectPicks}); err != nil {
				return err
			}
		}

		if _, err := tx.Exec(ctx,
			`UPDATE cycles SET status = $1, closed_at = $2 WHERE id = $3`,
			CycleSettled, settledAt, cycleID); err != nil {
			return fmt.Errorf("close cycle: %w", err)
		}

		summary = SettlementSummary{
			CycleID:     cycleID,
			WinnerCount: len(winners),
			Winners:     winners,
			Entries:     rankByCompetition(entries),
			SettledAt:   settledAt,
		}
		return nil
	})
	if err != nil {
		return SettlementSummary{}, err
	}
	metrics.CyclesSettled.Inc()
	s.log.Info("cycle settled", "cycle_id", cycleID,
		"winners", summary.WinnerCount, "rewarded_users", len(summary.Entries))
	return summary, nil
}

// SettleCycleByWinnerURLs settles using winner URLs instead of
// candidate IDs. URLs are matched by canonical form; winners that were
// never candidates in the cycle are ignored.
func (s *Service) SettleCycleByWinnerURLs(ctx context.Context, cycleID string, winnerURLs []string) (SettlementSummary, error) {
	candidates, err := s.ListCandidates(ctx, cycleID)
	if err != nil {
		return SettlementSummary{}, err
	}
	winning := make(map[string]bool, len(winnerURLs))
	for _, raw := range winnerURLs {
		canonical, err := CanonicalURL(raw)
		if err != nil {
			continue
		}
		winning[canonical] = true
	}
	results := make([]CycleResult, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, CycleResult{CandidateID: c.ID, IsWinner: winning[c.CanonicalURL]})
	}
	return s.SettleCycle(ctx, cycleID, results)
}

// CycleResults returns the recorded outcome flags for a settled cycle.
func (s *Service) CycleResults(ctx context.Context, cycleID string) ([]CycleResult, error) {
	rows, err := s.db.Query(ctx,
		`SELECT candidate_id, is_winner FROM cycle_results WHERE cycle_id = $1 ORDER BY candidate_id ASC`, cycleID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()
	var out []CycleResult
	for rows.Next() {
		var r CycleResult
		if err := rows.Scan(&r.CandidateID, &r.IsWinner); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// settlementEntries totals rewards per user from ranked picks. Only
// users with at least one winning pick appear, in the order their
// slates were recorded. A rank-r hit pays 22-2r chips, so a full
// winning slate of ten earns 110.
func settlementEntries(picks []pickRow, winners map[string]bool) []SettlementEntry {
	totals := make(map[string]*SettlementEntry)
	var order []string
	for _, p := range picks {
		if !winners[p.CandidateID] {
			continue
		}
		e, ok := totals[p.UserID]
		if !ok {
			e = &SettlementEntry{UserID: p.UserID}
			totals[p.UserID] = e
			order = append(order, p.UserID)
		}
		e.RewardChips += RankReward(p.Rank)
		e.CorrectPicks++
	}
	out := make([]SettlementEntry, 0, len(order))
	for _, userID := range order {
		out = append(out, *totals[userID])
	}
	return out
}

// rankByCompetition orders entries by reward then correct picks and
// assigns competition ranks: equals share a rank and the next distinct
// score skips past them (1, 1, 3).
func rankByCompetition(entries []SettlementEntry) []SettlementEntry {
	out := append([]SettlementEntry(nil), entries...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RewardChips != out[j].RewardChips {
			return out[i].RewardChips > out[j].RewardChips
		}
		return out[i].CorrectPicks > out[j].CorrectPicks
	})
	for i := range out {
		if i > 0 && out[i].RewardChips == out[i-1].RewardChips && out[i].CorrectPicks == out[i-1].CorrectPicks {
			out[i].Rank = out[i-1].Rank
			continue
		}
		out[i].Rank = i + 1
	}
	return out
}
