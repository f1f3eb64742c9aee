package market

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
)

type clickRow struct {
	CandidateID     string
	FingerprintHash string
}

type submitterTally struct {
	UserID          string
	UniqueClicks    int64
	FirstSubmission time.Time
}

// ComputeCurationRewards pays the submitters whose links drew the most
// unique clicks in a settled cycle. The (cycle, user) primary key on
// the reward table makes the payout at-most-once: reruns insert
// nothing and credit nothing, and the returned slice holds only the
// rewards awarded by this call.
func (s *Service) ComputeCurationRewards(ctx context.Context, cycleID string) ([]CurationReward, error) {
	cycle, err := s.GetCycle(ctx, cycleID)
	if err != nil {
		return nil, err
	}
	if cycle.Status != CycleSettled {
		return nil, ErrCycleNotSettled
	}
	awardedAt := time.Now().UTC()
	awarded := []CurationReward{}
	err = s.withSerializableTx(ctx, func(tx pgx.Tx) error {
		awarded = awarded[:0]
		cRows, err := tx.Query(ctx,
			`SELECT id, submitted_by_user_id, created_at FROM candidate_links WHERE cycle_id = $1 ORDER BY created_at ASC, id ASC`,
			cycleID)
		if err != nil {
			return fmt.Errorf("load candidates: %w", err)
		}
		var candidates []CandidateLink
		for cRows.Next() {
			var c CandidateLink
			if err := cRows.Scan(&c.ID, &c.SubmittedByUserID, &c.CreatedAt); err != nil {
				cRows.Close()
				return fmt.Errorf("scan candidate: %w", err)
			}
			candidates = append(candidates, c)
		}
		cRows.Close()
		if err := cRows.Err(); err != nil {
			return err
		}

		kRows, err := tx.Query(ctx,
			`SELECT candidate_id, fingerprint_hash FROM click_events WHERE cycle_id = $1`, cycleID)
		if err != nil {
			return fmt.Errorf("load clicks: %w", err)
		}
		var clicks []clickRow
		for kRows.Next() {
			var k clickRow
			if err := kRows.Scan(&k.CandidateID, &k.FingerprintHash); err != nil {
				kRows.Close()
				return fmt.Errorf("scan click: %w", err)
			}
			clicks = append(clicks, k)
		}
		kRows.Close()
		if err := kRows.Err(); err != nil {
			return err
		}

		ranking := curationRanking(tallySubmitterClicks(candidates, clicks), s.curationCurve)
		for _, r := range ranking {
			tag, err := tx.Exec(ctx,
				`INSERT INTO curation_rewards (cycle_id, user_id, rank, unique_clicks, reward_chips, awarded_at)
				 VALUES ($1, $2, $3, $4, $5, $6)
				 ON CONFLICT (cycle_id, user_id) DO NOTHING`,
				cycleID, r.UserID, r.Rank, r.UniqueClicks, r.RewardChips, awardedAt)
			if err != nil {
				return fmt.Errorf("insert curation reward: %w", err)
			}
			if tag.RowsAffected() == 0 {
				continue
			}
			if err := s.creditChips(ctx, tx, r.UserID, cycleID, EventCurationReward, r.RewardChips,
				map[string]any{"rank": r.Rank, "unique_clicks": r.UniqueClicks}); err != nil {
				return err
			}
			r.CycleID = cycleID
			r.AwardedAt = awardedAt
			awarded = append(awarded, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(awarded) > 0 {
		s.log.Info("curation rewards paid", "cycle_id", cycleID, "rewards", len(awarded))
	}
	return awarded, nil
}

// CurationRewards lists the stored awards for a cycle.
func (s *Service) CurationRewards(ctx context.Context, cycleID string) ([]CurationReward, error) {
	rows, err := s.db.Query(ctx,
		`SELECT cycle_id, user_id, rank, unique_clicks, reward_chips, awarded_at
		 FROM curation_rewards WHERE cycle_id = $1 ORDER BY rank ASC, user_id ASC`, cycleID)
	if err != nil {
		return nil, fmt.Errorf("list curation rewards: %w", err)
	}
	defer rows.Close()
	var out []CurationReward
	for rows.Next() {
		var r CurationReward
		if err := rows.Scan(&r.CycleID, &r.UserID, &r.Rank, &r.UniqueClicks, &r.RewardChips, &r.AwardedAt); err != nil {
			return nil, fmt.Errorf("scan curation reward: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// tallySubmitterClicks counts unique clicks per submitter. Click rows
// are deduplicated by (candidate, fingerprint) again here even though
// storage already enforces it, so the math holds on any input. Each
// submitter's earliest candidate submission time tags the tally for
// tie-breaking. Submitters with zero unique clicks are dropped.
func tallySubmitterClicks(candidates []CandidateLink, clicks []clickRow) []submitterTally {
	submitterOf := make(map[string]string, len(candidates))
	first := make(map[string]time.Time)
	var order []string
	for _, c := range candidates {
		submitterOf[c.ID] = c.SubmittedByUserID
		t, ok := first[c.SubmittedByUserID]
		if !ok {
			order = append(order, c.SubmittedByUserID)
		}
		if !ok || c.CreatedAt.Before(t) {
			first[c.SubmittedByUserID] = c.CreatedAt
		}
	}
	counts := make(map[string]int64)
	seen := make(map[string]struct{}, len(clicks))
	for _, k := range clicks {
		submitter, ok := submitterOf[k.CandidateID]
		if !ok {
			continue
		}
		key := k.CandidateID + "\x00" + k.FingerprintHash
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		counts[submitter]++
	}
	out := make([]submitterTally, 0, len(order))
	for _, userID := range order {
		if counts[userID] == 0 {
			continue
		}
		out = append(out, submitterTally{
			UserID:          userID,
			UniqueClicks:    counts[userID],
			FirstSubmission: first[userID],
		})
	}
	return out
}

// curationRanking orders tallies by unique clicks, breaking ties by
// earliest submission then user ID, and pays positions down the curve.
// The order is strict: tied submitters still occupy distinct positions
// and are paid what their position earns.
func curationRanking(tallies []submitterTally, curve []int64) []CurationReward {
	sorted := append([]submitterTally(nil), tallies...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].UniqueClicks != sorted[j].UniqueClicks {
			return sorted[i].UniqueClicks > sorted[j].UniqueClicks
		}
		if !sorted[i].FirstSubmission.Equal(sorted[j].FirstSubmission) {
			return sorted[i].FirstSubmission.Before(sorted[j].FirstSubmission)
		}
		return sorted[i].UserID < sorted[j].UserID
	})
	var out []CurationReward
	for i, t := range sorted {
		if i >= len(curve) || curve[i] <= 0 {
			break
		}
		out = append(out, CurationReward{
			UserID:       t.UserID,
			Rank:         i + 1,
			UniqueClicks: t.UniqueClicks,
			RewardChips:  curve[i],
		})
	}
	return out
}
