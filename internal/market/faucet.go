package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// missedDays counts whole civil days (UTC) from last to today.
// Same-day and future last dates both count zero.
func missedDays(last, today time.Time) int {
	diff := civilDate(today).Sub(civilDate(last))
	days := int(diff.Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// RunFaucet credits a user 10 chips per civil day since their last
// faucet credit, as one ledger entry, and advances the faucet clock.
// Running twice on the same day credits nothing the second time.
func (s *Service) RunFaucet(ctx context.Context, userID string, asOf time.Time) (int64, error) {
	if asOf.IsZero() {
		asOf = time.Now()
	}
	var credited int64
	err := s.withSerializableTx(ctx, func(tx pgx.Tx) error {
		credited = 0
		var last time.Time
		err := tx.QueryRow(ctx,
			`SELECT last_daily_credit_date FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&last)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("load faucet clock: %w", err)
		}
		days := missedDays(last, asOf)
		if days == 0 {
			return nil
		}
		credited = int64(days) * DailyChips
		if err := s.creditChips(ctx, tx, userID, "", EventDailyFaucet, credited,
			map[string]any{"missed_days": days}); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`UPDATE users SET last_daily_credit_date = $1 WHERE id = $2`,
			civilDate(asOf), userID); err != nil {
			return fmt.Errorf("advance faucet clock: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return credited, nil
}

// RunFaucetAll runs the faucet for every account in one transaction
// and reports the users actually credited.
func (s *Service) RunFaucetAll(ctx context.Context, asOf time.Time) (map[string]int64, error) {
	if asOf.IsZero() {
		asOf = time.Now()
	}
	credited := map[string]int64{}
	err := s.withSerializableTx(ctx, func(tx pgx.Tx) error {
		clear(credited)
		rows, err := tx.Query(ctx, `SELECT id, last_daily_credit_date FROM users ORDER BY created_at ASC, id ASC`)
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}
		type clock struct {
			userID string
			last   time.Time
		}
		var clocks []clock
		for rows.Next() {
			var c clock
			if err := rows.Scan(&c.userID, &c.last); err != nil {
				rows.Close()
				return fmt.Errorf("scan faucet clock: %w", err)
			}
			clocks = append(clocks, c)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		for _, c := range clocks {
			days := missedDays(c.last, asOf)
			if days == 0 {
				continue
			}
			chips := int64(days) * DailyChips
			if err := s.creditChips(ctx, tx, c.userID, "", EventDailyFaucet, chips,
				map[string]any{"missed_days": days}); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx,
				`UPDATE users SET last_daily_credit_date = $1 WHERE id = $2`,
				civilDate(asOf), c.userID); err != nil {
				return fmt.Errorf("advance faucet clock: %w", err)
			}
			credited[c.userID] = chips
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(credited) > 0 {
		s.log.Info("faucet ran", "credited_users", len(credited), "as_of", civilDate(asOf).Format(dateLayout))
	}
	return credited, nil
}
