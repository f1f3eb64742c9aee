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

// SubmitPicks replaces a user's ranked slate for an open cycle. The
// whole slate is validated and written in one transaction; any
// rejection leaves the previous slate untouched. An empty slate clears
// the user's picks.
func (s *Service) SubmitPicks(ctx context.Context, in SubmitPicksInput) ([]Pick, error) {
	if err := validateSlate(in.CandidateIDs); err != nil {
		return nil, err
	}
	pickedAt := time.Now().UTC()
	var out []Pick
	err := s.withSerializableTx(ctx, func(tx pgx.Tx) error {
		var status string
		err := tx.QueryRow(ctx, `SELECT status FROM cycles WHERE id = $1`, in.CycleID).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCycleNotFound
		}
		if err != nil {
			return fmt.Errorf("load cycle: %w", err)
		}
		if status != CycleOpen {
			return ErrCycleClosed
		}

		var accountType string
		err = tx.QueryRow(ctx, `SELECT account_type FROM users WHERE id = $1`, in.UserID).Scan(&accountType)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("load user: %w", err)
		}
		if accountType == AccountAI {
			if missing := missingExplanations(in.CandidateIDs, in.Explanations); len(missing) > 0 {
				return ErrMissingExplanation
			}
		}

		if len(in.CandidateIDs) > 0 {
			var known int
			err = tx.QueryRow(ctx,
				`SELECT COUNT(*) FROM candidate_links WHERE cycle_id = $1 AND id = ANY($2)`,
				in.CycleID, in.CandidateIDs).Scan(&known)
			if err != nil {
				return fmt.Errorf("check candidates: %w", err)
			}
			if known != len(in.CandidateIDs) {
				return ErrUnknownCandidate
			}
		}

		if _, err := tx.Exec(ctx,
			`DELETE FROM picks WHERE cycle_id = $1 AND user_id = $2`, in.CycleID, in.UserID); err != nil {
			return fmt.Errorf("clear picks: %w", err)
		}
		out = out[:0]
		for i, candidateID := range in.CandidateIDs {
			p := Pick{
				ID:          newID("pk"),
				CycleID:     in.CycleID,
				UserID:      in.UserID,
				CandidateID: candidateID,
				Rank:        i + 1,
				PickedAt:    pickedAt,
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO picks (id, cycle_id, user_id, candidate_id, rank, picked_at)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				p.ID, p.CycleID, p.UserID, p.CandidateID, p.Rank, p.PickedAt); err != nil {
				return fmt.Errorf("insert pick: %w", err)
			}
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.PicksSubmitted.Add(float64(len(out)))
	s.log.Info("picks submitted", "cycle_id", in.CycleID, "user_id", in.UserID, "count", len(out))
	return out, nil
}

// ListPicks returns stored picks for a cycle, optionally filtered to
// one user, oldest slate first then by rank.
func (s *Service) ListPicks(ctx context.Context, cycleID, userID string) ([]Pick, error) {
	query := `SELECT id, cycle_id, user_id, candidate_id, rank, picked_at
		  FROM picks WHERE cycle_id = $1 ORDER BY picked_at ASC, rank ASC`
	args := []any{cycleID}
	if userID != "" {
		query = `SELECT id, cycle_id, user_id, candidate_id, rank, picked_at
			 FROM picks WHERE cycle_id = $1 AND user_id = $2 ORDER BY rank ASC`
		args = append(args, userID)
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list picks: %w", err)
	}
	defer rows.Close()
	var out []Pick
	for rows.Next() {
		var p Pick
		if err := rows.Scan(&p.ID, &p.CycleID, &p.UserID, &p.CandidateID, &p.Rank, &p.PickedAt); err != nil {
			return nil, fmt.Errorf("scan pick: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Probabilities recomputes the market view from stored picks. There is
// no cached table: every call reflects the picks at that moment.
func (s *Service) Probabilities(ctx context.Context, cycleID string) ([]CandidateProbability, error) {
	if _, err := s.GetCycle(ctx, cycleID); err != nil {
		return nil, err
	}
	candidates, err := s.ListCandidates(ctx, cycleID)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx,
		`SELECT user_id, candidate_id, rank FROM picks WHERE cycle_id = $1`, cycleID)
	if err != nil {
		return nil, fmt.Errorf("load picks: %w", err)
	}
	defer rows.Close()
	var picks []pickRow
	for rows.Next() {
		var p pickRow
		if err := rows.Scan(&p.UserID, &p.CandidateID, &p.Rank); err != nil {
			return nil, fmt.Errorf("scan pick: %w", err)
		}
		picks = append(picks, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return probabilityTable(candidates, picks), nil
}

type pickRow struct {
	UserID      string
	CandidateID string
	Rank        int
}

// probabilityTable turns ranked picks into normalized probabilities.
// With no picks at all, every candidate reports zero rather than a
// uniform split. Otherwise probabilities sum to 1, highest first with
// candidate ID breaking ties.
func probabilityTable(candidates []CandidateLink, picks []pickRow) []CandidateProbability {
	weights := make(map[string]int64, len(candidates))
	for _, p := range picks {
		weights[p.CandidateID] += RankWeight(p.Rank)
	}
	var total int64
	for _, c := range candidates {
		total += weights[c.ID]
	}
	out := make([]CandidateProbability, 0, len(candidates))
	for _, c := range candidates {
		w := weights[c.ID]
		var prob float64
		if total > 0 {
			prob = float64(w) / float64(total)
		}
		out = append(out, CandidateProbability{
			CandidateID:       c.ID,
			CanonicalURL:      c.CanonicalURL,
			Domain:            c.Domain,
			Title:             c.Title,
			RankWeightScore:   w,
			MarketProbability: prob,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].MarketProbability != out[j].MarketProbability {
			return out[i].MarketProbability > out[j].MarketProbability
		}
		return out[i].CandidateID < out[j].CandidateID
	})
	return out
}
