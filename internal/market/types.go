package market

import "time"

type User struct {
	ID                  string    `json:"id"`
	DisplayName         string    `json:"display_name"`
	Email               string    `json:"email"`
	GoogleSub           string    `json:"google_sub,omitempty"`
	AccountType         string    `json:"account_type"`
	CurrentChips        int64     `json:"current_chips"`
	CreatedAt           time.Time `json:"created_at"`
	LastDailyCreditDate time.Time `json:"last_daily_credit_date"`
}

type Cycle struct {
	ID        string     `json:"id"`
	CycleDate time.Time  `json:"cycle_date"`
	Status    string     `json:"status"`
	OpenedAt  time.Time  `json:"opened_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
}

type CandidateLink struct {
	ID                string    `json:"id"`
	CycleID           string    `json:"cycle_id"`
	SubmittedByUserID string    `json:"submitted_by_user_id"`
	OriginalURL       string    `json:"original_url"`
	CanonicalURL      string    `json:"canonical_url"`
	Domain            string    `json:"domain"`
	Title             string    `json:"title"`
	CreatedAt         time.Time `json:"created_at"`
}

type Pick struct {
	ID          string    `json:"id"`
	CycleID     string    `json:"cycle_id"`
	UserID      string    `json:"user_id"`
	CandidateID string    `json:"candidate_id"`
	Rank        int       `json:"rank"`
	PickedAt    time.Time `json:"picked_at"`
}

type LedgerEntry struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	CycleID    string         `json:"cycle_id,omitempty"`
	EventType  string         `json:"event_type"`
	ChipsDelta int64          `json:"chips_delta"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

type ModelPrediction struct {
	CycleID     string    `json:"cycle_id"`
	ModelUserID string    `json:"model_user_id"`
	CandidateID string    `json:"candidate_id"`
	Probability float64   `json:"probability"`
	Explanation string    `json:"explanation"`
	CreatedAt   time.Time `json:"created_at"`
}

// CandidateProbability is one row of the recomputed market view.
type CandidateProbability struct {
	CandidateID       string  `json:"candidate_id"`
	CanonicalURL      string  `json:"canonical_url"`
	Domain            string  `json:"domain"`
	Title             string  `json:"title"`
	RankWeightScore   int64   `json:"rank_weight_score"`
	MarketProbability float64 `json:"market_probability"`
}

// CycleResult marks one candidate's outcome at settlement time.
type CycleResult struct {
	CandidateID string `json:"candidate_id"`
	IsWinner    bool   `json:"is_winner"`
}

// SettlementEntry is one participant's line in a settlement summary,
// ranked by competition (ties share a rank, next rank is skipped).
type SettlementEntry struct {
	UserID       string `json:"user_id"`
	CorrectPicks int    `json:"correct_picks"`
	RewardChips  int64  `json:"reward_chips"`
	Rank         int    `json:"rank"`
}

type SettlementSummary struct {
	CycleID     string            `json:"cycle_id"`
	WinnerCount int               `json:"winner_count"`
	Winners     []string          `json:"winner_candidate_ids"`
	Entries     []SettlementEntry `json:"entries"`
	SettledAt   time.Time         `json:"settled_at"`
}

type CurationReward struct {
	CycleID      string    `json:"cycle_id"`
	UserID       string    `json:"user_id"`
	Rank         int       `json:"rank"`
	UniqueClicks int64     `json:"unique_clicks"`
	RewardChips  int64     `json:"reward_chips"`
	AwardedAt    time.Time `json:"awarded_at"`
}

// ClickResult reports whether a redirect click was counted and where
// the visitor should be sent.
type ClickResult struct {
	Counted     bool   `json:"counted"`
	Reason      string `json:"reason"`
	Destination string `json:"-"`
}

// Visitor identifies a redirect click source. UserID is empty for
// signed-out visitors.
type Visitor struct {
	UserID    string
	IP        string
	UserAgent string
}

type LeaderboardRow struct {
	Rank        int    `json:"rank"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	AccountType string `json:"account_type"`
	Chips       int64  `json:"chips"`
}

type CreateUserInput struct {
	DisplayName string
	Email       string
	GoogleSub   string
	AccountType string
	// JoinedOn defaults to today (UTC) and seeds the faucet clock.
	JoinedOn time.Time
}

type SubmitCandidateInput struct {
	CycleID           string
	SubmittedByUserID string
	URL               string
	Title             string
}

type SubmitPicksInput struct {
	CycleID      string
	UserID       string
	CandidateIDs []string
	// Explanations are keyed by candidate ID and required for AI
	// accounts; human slates may leave this nil.
	Explanations map[string]string
}

type PredictionInput struct {
	CycleID     string
	ModelUserID string
	CandidateID string
	Probability float64
	Explanation string
}

type ArchiveLinkInput struct {
	PostDate      time.Time
	URL           string
	Title         string
	SourcePostURL string
}
