package market

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"linkmarket/internal/metrics"
)

const dateLayout = "2006-01-02"

// Service owns every chip movement and cycle state change. All writes
// that touch balances run in serializable transactions and retry on
// conflict, so callers see either the full effect of an operation or
// none of it.
type Service struct {
	db  *pgxpool.Pool
	log *slog.Logger

	curationCurve []int64
}

type Option func(*Service)

// WithCurationCurve overrides the payout curve for top curators. The
// curve must be non-increasing; invalid curves are ignored.
func WithCurationCurve(curve []int64) Option {
	return func(s *Service) {
		if len(curve) == 0 {
			return
		}
		for i := 1; i < len(curve); i++ {
			if curve[i] > curve[i-1] {
				return
			}
		}
		s.curationCurve = append([]int64(nil), curve...)
	}
}

func NewService(db *pgxpool.Pool, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{db: db, log: logger, curationCurve: DefaultCurationCurve}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// withSerializableTx runs fn inside a serializable transaction and
// retries on 40001 with capped exponential backoff. Domain errors and
// constraint violations are returned as-is, never retried.
func (s *Service) withSerializableTx(ctx context.Context, fn func(pgx.Tx) error) error {
	const maxAttempts = 8
	retryDelay := 75 * time.Millisecond
	for attempt := 0; attempt < maxAttempts; attempt++ {
		tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		err = func() error {
			defer tx.Rollback(ctx)
			if err := fn(tx); err != nil {
				return err
			}
			return tx.Commit(ctx)
		}()
		if err == nil {
			return nil
		}
		if !isSerializationError(err) {
			return err
		}
		if attempt == maxAttempts-1 {
			break
		}
		if err := sleepWithContext(ctx, retryDelay); err != nil {
			return err
		}
		if retryDelay < 1200*time.Millisecond {
			retryDelay *= 2
		}
	}
	return ErrTxConflict
}

func isSerializationError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "40001"
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// civilDate truncates to a UTC calendar date. Faucet accrual, cycle
// dates and archive dates all use civil days, never 24h windows.
func civilDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// creditChips moves chips and appends the matching ledger row in one
// transaction, keeping current_chips equal to the ledger sum.
func (s *Service) creditChips(ctx context.Context, tx pgx.Tx, userID, cycleID, event string, delta int64, meta map[string]any) error {
	tag, err := tx.Exec(ctx, `UPDATE users SET current_chips = current_chips + $1 WHERE id = $2`, delta, userID)
	if err != nil {
		return fmt.Errorf("update chips: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	if meta == nil {
		meta = map[string]any{}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal ledger metadata: %w", err)
	}
	var cycleParam any
	if cycleID != "" {
		cycleParam = cycleID
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO chip_ledger (id, user_id, cycle_id, event_type, chips_delta, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6::jsonb)`,
		newID("led"), userID, cycleParam, event, delta, string(raw))
	if err != nil {
		return fmt.Errorf("append ledger: %w", err)
	}
	metrics.ChipsCredited.WithLabelValues(event).Add(float64(delta))
	return nil
}

const userColumns = `id, display_name, email, COALESCE(google_sub, ''), account_type, current_chips, created_at, last_daily_credit_date`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.DisplayName, &u.Email, &u.GoogleSub, &u.AccountType, &u.CurrentChips, &u.CreatedAt, &u.LastDailyCreditDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

// CreateUser registers an account and credits the one-time starting
// chips through the ledger. JoinedOn seeds the faucet clock so a fresh
// account cannot double dip on its first day.
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" {
		return User{}, errors.New("email is required")
	}
	accountType := in.AccountType
	if accountType == "" {
		accountType = AccountHuman
	}
	if accountType != AccountHuman && accountType != AccountAI {
		return User{}, fmt.Errorf("unknown account type %q", accountType)
	}
	displayName := strings.TrimSpace(in.DisplayName)
	if displayName == "" {
		displayName = email
	}
	joined := in.JoinedOn
	if joined.IsZero() {
		joined = time.Now()
	}
	id := newID("usr")
	err := s.withSerializableTx(ctx, func(tx pgx.Tx) error {
		var sub any
		if in.GoogleSub != "" {
			sub = in.GoogleSub
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO users (id, display_name, email, google_sub, account_type, current_chips, last_daily_credit_date)
			 VALUES ($1, $2, $3, $4, $5, 0, $6)`,
			id, displayName, email, sub, accountType, civilDate(joined))
		if err != nil {
			return fmt.Errorf("insert user: %w", err)
		}
		return s.creditChips(ctx, tx, id, "", EventSignupBonus, StartingChips, map[string]any{"reason": "starting_chips"})
	})
	if err != nil {
		return User{}, err
	}
	s.log.Info("user created", "user_id", id, "account_type", accountType)
	return s.GetUser(ctx, id)
}

func (s *Service) GetUser(ctx context.Context, id string) (User, error) {
	return scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (s *Service) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// GetOrCreateGoogleUser resolves an OAuth login: match by Google
// subject first, then adopt an existing account with the same email,
// otherwise create a fresh one.
func (s *Service) GetOrCreateGoogleUser(ctx context.Context, sub, email, name string) (User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE google_sub = $1`, sub))
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return User{}, err
	}
	u, err = s.GetUserByEmail(ctx, email)
	if err == nil {
		if _, uerr := s.db.Exec(ctx, `UPDATE users SET google_sub = $1 WHERE id = $2`, sub, u.ID); uerr != nil {
			return User{}, fmt.Errorf("link google sub: %w", uerr)
		}
		u.GoogleSub = sub
		return u, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return User{}, err
	}
	created, cerr := s.CreateUser(ctx, CreateUserInput{DisplayName: name, Email: email, GoogleSub: sub})
	if cerr != nil {
		if isUniqueViolation(cerr) {
			// lost a race with a concurrent login for the same account
			return s.GetUserByEmail(ctx, email)
		}
		return User{}, cerr
	}
	return created, nil
}

// GetOrCreateAgentUser resolves the market account backing a model
// agent. Agent accounts are AI-typed and keyed by a synthetic email.
func (s *Service) GetOrCreateAgentUser(ctx context.Context, agentID string) (User, error) {
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return User{}, errors.New("agent id is required")
	}
	email := "model:" + agentID + "@local"
	u, err := s.GetUserByEmail(ctx, email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return User{}, err
	}
	created, cerr := s.CreateUser(ctx, CreateUserInput{DisplayName: agentID, Email: email, AccountType: AccountAI})
	if cerr != nil {
		if isUniqueViolation(cerr) {
			return s.GetUserByEmail(ctx, email)
		}
		return User{}, cerr
	}
	return created, nil
}

const cycleColumns = `id, cycle_date, status, opened_at, closed_at`

func scanCycle(row pgx.Row) (Cycle, error) {
	var c Cycle
	err := row.Scan(&c.ID, &c.CycleDate, &c.Status, &c.OpenedAt, &c.ClosedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Cycle{}, ErrCycleNotFound
	}
	if err != nil {
		return Cycle{}, fmt.Errorf("scan cycle: %w", err)
	}
	return c, nil
}

// OpenCycle starts a new prediction round dated cycleDate (today when
// zero). Multiple open cycles are allowed by storage but the rest of
// the system only ever drives the most recent one.
func (s *Service) OpenCycle(ctx context.Context, cycleDate time.Time) (Cycle, error) {
	if cycleDate.IsZero() {
		cycleDate = time.Now()
	}
	id := newID("cyc")
	_, err := s.db.Exec(ctx,
		`INSERT INTO cycles (id, cycle_date, status) VALUES ($1, $2, $3)`,
		id, civilDate(cycleDate), CycleOpen)
	if err != nil {
		return Cycle{}, fmt.Errorf("insert cycle: %w", err)
	}
	s.log.Info("cycle opened", "cycle_id", id, "cycle_date", civilDate(cycleDate).Format(dateLayout))
	return s.GetCycle(ctx, id)
}

func (s *Service) GetCycle(ctx context.Context, id string) (Cycle, error) {
	return scanCycle(s.db.QueryRow(ctx, `SELECT `+cycleColumns+` FROM cycles WHERE id = $1`, id))
}

// CurrentCycle returns the most recently opened cycle that is still
// OPEN, or ErrCycleNotFound when none is.
func (s *Service) CurrentCycle(ctx context.Context) (Cycle, error) {
	return scanCycle(s.db.QueryRow(ctx,
		`SELECT `+cycleColumns+` FROM cycles WHERE status = $1 ORDER BY opened_at DESC LIMIT 1`, CycleOpen))
}

// EnsureOpenCycle returns the current open cycle, opening one dated
// cycleDate when none exists.
func (s *Service) EnsureOpenCycle(ctx context.Context, cycleDate time.Time) (Cycle, error) {
	c, err := s.CurrentCycle(ctx)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrCycleNotFound) {
		return Cycle{}, err
	}
	return s.OpenCycle(ctx, cycleDate)
}

func (s *Service) ListCycles(ctx context.Context, limit int) ([]Cycle, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+cycleColumns+` FROM cycles ORDER BY opened_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list cycles: %w", err)
	}
	defer rows.Close()
	var out []Cycle
	for rows.Next() {
		var c Cycle
		if err := rows.Scan(&c.ID, &c.CycleDate, &c.Status, &c.OpenedAt, &c.ClosedAt); err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const candidateColumns = `id, cycle_id, submitted_by_user_id, original_url, canonical_url, domain, title, created_at`

func scanCandidate(row pgx.Row) (CandidateLink, error) {
	var c CandidateLink
	err := row.Scan(&c.ID, &c.CycleID, &c.SubmittedByUserID, &c.OriginalURL, &c.CanonicalURL, &c.Domain, &c.Title, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return CandidateLink{}, ErrCandidateNotFound
	}
	if err != nil {
		return CandidateLink{}, fmt.Errorf("scan candidate: %w", err)
	}
	return c, nil
}

// SubmitCandidate adds a link to an open cycle. Resubmitting a URL that
// canonicalizes to an existing candidate returns the existing row, so
// the first submitter keeps curation credit.
func (s *Service) SubmitCandidate(ctx context.Context, in SubmitCandidateInput) (CandidateLink, error) {
	canonical, err := CanonicalURL(in.URL)
	if err != nil {
		return CandidateLink{}, fmt.Errorf("invalid url: %w", err)
	}
	cycle, err := s.GetCycle(ctx, in.CycleID)
	if err != nil {
		return CandidateLink{}, err
	}
	if cycle.Status != CycleOpen {
		return CandidateLink{}, ErrCycleClosed
	}
	id := newID("cand")
	tag, err := s.db.Exec(ctx,
		`INSERT INTO candidate_links (id, cycle_id, submitted_by_user_id, original_url, canonical_url, domain, title)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (cycle_id, canonical_url) DO NOTHING`,
		id, in.CycleID, in.SubmittedByUserID, strings.TrimSpace(in.URL), canonical, Domain(canonical), strings.TrimSpace(in.Title))
	if err != nil {
		return CandidateLink{}, fmt.Errorf("insert candidate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return scanCandidate(s.db.QueryRow(ctx,
			`SELECT `+candidateColumns+` FROM candidate_links WHERE cycle_id = $1 AND canonical_url = $2`,
			in.CycleID, canonical))
	}
	return s.GetCandidate(ctx, id)
}

func (s *Service) GetCandidate(ctx context.Context, id string) (CandidateLink, error) {
	return scanCandidate(s.db.QueryRow(ctx, `SELECT `+candidateColumns+` FROM candidate_links WHERE id = $1`, id))
}

func (s *Service) ListCandidates(ctx context.Context, cycleID string) ([]CandidateLink, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+candidateColumns+` FROM candidate_links WHERE cycle_id = $1 ORDER BY created_at ASC, id ASC`, cycleID)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	defer rows.Close()
	var out []CandidateLink
	for rows.Next() {
		var c CandidateLink
		if err := rows.Scan(&c.ID, &c.CycleID, &c.SubmittedByUserID, &c.OriginalURL, &c.CanonicalURL, &c.Domain, &c.Title, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// clickFingerprint hashes who clicked. Signed-out visitors share the
// "anon" identity, so distinct anonymous devices still dedupe by
// IP and user agent.
func clickFingerprint(v Visitor) string {
	who := v.UserID
	if who == "" {
		who = "anon"
	}
	sum := sha256.Sum256([]byte(who + "|" + v.IP + "|" + v.UserAgent))
	return hex.EncodeToString(sum[:])
}

// RecordClick counts a redirect click at most once per visitor
// fingerprint per candidate. Submitters clicking their own links are
// never counted. The destination URL is returned either way so the
// redirect always works.
func (s *Service) RecordClick(ctx context.Context, candidateID string, v Visitor) (ClickResult, error) {
	var cycleID, submitter, dest string
	err := s.db.QueryRow(ctx,
		`SELECT cycle_id, submitted_by_user_id, original_url FROM candidate_links WHERE id = $1`, candidateID).
		Scan(&cycleID, &submitter, &dest)
	if errors.Is(err, pgx.ErrNoRows) {
		return ClickResult{}, ErrCandidateNotFound
	}
	if err != nil {
		return ClickResult{}, fmt.Errorf("load candidate: %w", err)
	}
	res := ClickResult{Destination: dest}
	if v.UserID != "" && v.UserID == submitter {
		res.Reason = "self_click"
		metrics.ClicksRecorded.WithLabelValues(res.Reason).Inc()
		return res, nil
	}
	var clicker any
	if v.UserID != "" {
		clicker = v.UserID
	}
	tag, err := s.db.Exec(ctx,
		`INSERT INTO click_events (id, cycle_id, candidate_id, clicked_by_user_id, fingerprint_hash)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (candidate_id, fingerprint_hash) DO NOTHING`,
		newID("clk"), cycleID, candidateID, clicker, clickFingerprint(v))
	if err != nil {
		return ClickResult{}, fmt.Errorf("record click: %w", err)
	}
	if tag.RowsAffected() == 0 {
		res.Reason = "duplicate"
	} else {
		res.Counted = true
		res.Reason = "unique"
	}
	metrics.ClicksRecorded.WithLabelValues(res.Reason).Inc()
	return res, nil
}

// Leaderboard lists users by chips. Kind filters by account type, or
// "curation" to rank lifetime curation chips instead.
func (s *Service) Leaderboard(ctx context.Context, kind string, limit int) ([]LeaderboardRow, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var query string
	switch kind {
	case "", "all":
		query = `SELECT id, display_name, account_type, current_chips FROM users ORDER BY current_chips DESC, created_at ASC LIMIT $1`
	case "human":
		query = `SELECT id, display_name, account_type, current_chips FROM users WHERE account_type = 'HUMAN' ORDER BY current_chips DESC, created_at ASC LIMIT $1`
	case "ai":
		query = `SELECT id, display_name, account_type, current_chips FROM users WHERE account_type = 'AI' ORDER BY current_chips DESC, created_at ASC LIMIT $1`
	case "curation":
		query = `SELECT u.id, u.display_name, u.account_type, COALESCE(SUM(cr.reward_chips), 0)
			 FROM curation_rewards cr
			 JOIN users u ON u.id = cr.user_id
			 GROUP BY u.id, u.display_name, u.account_type, u.created_at
			 ORDER BY COALESCE(SUM(cr.reward_chips), 0) DESC, u.created_at ASC
			 LIMIT $1`
	default:
		return nil, fmt.Errorf("unknown leaderboard kind %q", kind)
	}
	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	defer rows.Close()
	var out []LeaderboardRow
	for rows.Next() {
		var r LeaderboardRow
		if err := rows.Scan(&r.UserID, &r.DisplayName, &r.AccountType, &r.Chips); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		r.Rank = len(out) + 1
		out = append(out, r)
	}
	return out, rows.Err()
}

// ClaimJobRun records a (job, run key) pair exactly once. The first
// caller gets true and runs the work; later callers with the same key
// get false and must skip.
func (s *Service) ClaimJobRun(ctx context.Context, jobName, runKey string, details map[string]any) (bool, error) {
	if details == nil {
		details = map[string]any{}
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return false, fmt.Errorf("marshal job details: %w", err)
	}
	tag, err := s.db.Exec(ctx,
		`INSERT INTO job_runs (id, job_name, run_key, status, details)
		 VALUES ($1, $2, $3, 'DONE', $4::jsonb)
		 ON CONFLICT (job_name, run_key) DO NOTHING`,
		newID("job"), jobName, runKey, string(raw))
	if err != nil {
		return false, fmt.Errorf("claim job run: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Service) SourcePostSeen(ctx context.Context, postURL string) (bool, error) {
	var seen bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM source_posts WHERE source_post_url = $1)`, postURL).Scan(&seen)
	if err != nil {
		return false, fmt.Errorf("check source post: %w", err)
	}
	return seen, nil
}

// MarkSourcePostProcessed remembers an ingested feed post so reruns
// skip it. Safe to call twice for the same URL.
func (s *Service) MarkSourcePostProcessed(ctx context.Context, postURL, title string, publishedAt time.Time, links []string) error {
	if links == nil {
		links = []string{}
	}
	raw, err := json.Marshal(links)
	if err != nil {
		return fmt.Errorf("marshal extracted links: %w", err)
	}
	var published any
	if !publishedAt.IsZero() {
		published = publishedAt
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO source_posts (id, source_post_url, title, published_at, extracted_links)
		 VALUES ($1, $2, $3, $4, $5::jsonb)
		 ON CONFLICT (source_post_url) DO NOTHING`,
		newID("post"), postURL, title, published, string(raw))
	if err != nil {
		return fmt.Errorf("mark source post: %w", err)
	}
	return nil
}

// UpsertArchiveLink appends one extracted link to the long-term
// archive, keyed by (post date, canonical URL).
func (s *Service) UpsertArchiveLink(ctx context.Context, in ArchiveLinkInput) error {
	canonical, err := CanonicalURL(in.URL)
	if err != nil {
		return fmt.Errorf("invalid archive url: %w", err)
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO archive_links (id, post_date, url, canonical_url, domain, title, source_post_url)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (post_date, canonical_url) DO NOTHING`,
		newID("arc"), civilDate(in.PostDate), strings.TrimSpace(in.URL), canonical, Domain(canonical), strings.TrimSpace(in.Title), in.SourcePostURL)
	if err != nil {
		return fmt.Errorf("insert archive link: %w", err)
	}
	return nil
}

// UpsertPrediction stores a model's probability and explanation for
// one candidate, overwriting any earlier run in the same cycle.
func (s *Service) UpsertPrediction(ctx context.Context, in PredictionInput) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO model_predictions (cycle_id, model_user_id, candidate_id, probability, explanation)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (cycle_id, model_user_id, candidate_id)
		 DO UPDATE SET probability = EXCLUDED.probability, explanation = EXCLUDED.explanation, created_at = now()`,
		in.CycleID, in.ModelUserID, in.CandidateID, in.Probability, in.Explanation)
	if err != nil {
		return fmt.Errorf("upsert prediction: %w", err)
	}
	return nil
}

// ListPredictions returns stored model predictions for a cycle,
// optionally filtered to one model account.
func (s *Service) ListPredictions(ctx context.Context, cycleID, modelUserID string) ([]ModelPrediction, error) {
	query := `SELECT cycle_id, model_user_id, candidate_id, probability, explanation, created_at
		  FROM model_predictions WHERE cycle_id = $1 ORDER BY model_user_id ASC, probability DESC, candidate_id ASC`
	args := []any{cycleID}
	if modelUserID != "" {
		query = `SELECT cycle_id, model_user_id, candidate_id, probability, explanation, created_at
			 FROM model_predictions WHERE cycle_id = $1 AND model_user_id = $2 ORDER BY probability DESC, candidate_id ASC`
		args = append(args, modelUserID)
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list predictions: %w", err)
	}
	defer rows.Close()
	var out []ModelPrediction
	for rows.Next() {
		var p ModelPrediction
		if err := rows.Scan(&p.CycleID, &p.ModelUserID, &p.CandidateID, &p.Probability, &p.Explanation, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
