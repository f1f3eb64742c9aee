package market

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

const (
	// StartingChips is credited once when an account is created.
	StartingChips int64 = 100
	// DailyChips is credited per missed civil day by the faucet.
	DailyChips int64 = 10
	// MaxPicksPerCycle caps a single user's ranked slate.
	MaxPicksPerCycle = 10

	MinRank = 1
	MaxRank = 10
)

// Ledger event types. These strings are stored in chip_ledger rows and
// must stay stable across releases.
const (
	EventSignupBonus      = "signup_bonus"
	EventDailyFaucet      = "daily_faucet"
	EventPredictionReward = "prediction_reward"
	EventCurationReward   = "curation_reward"
)

const (
	AccountHuman = "HUMAN"
	AccountAI    = "AI"
)

const (
	CycleOpen    = "OPEN"
	CycleSettled = "SETTLED"
)

// DefaultCurationCurve pays the top clicked curators 40/20/10 chips.
// Positions past the end of the curve earn nothing.
var DefaultCurationCurve = []int64{40, 20, 10}

var (
	ErrTooManyPicks       = errors.New("a slate may hold at most 10 picks")
	ErrDuplicateCandidate = errors.New("a slate may name each candidate only once")
	ErrUnknownCandidate   = errors.New("pick references a candidate outside this cycle")
	ErrMissingExplanation = errors.New("model accounts must explain every pick")
	ErrCycleClosed        = errors.New("cycle is not open")
	ErrAlreadySettled     = errors.New("cycle is already settled")
	ErrCycleNotSettled    = errors.New("cycle is not settled yet")

	ErrUserNotFound      = errors.New("user not found")
	ErrCycleNotFound     = errors.New("cycle not found")
	ErrCandidateNotFound = errors.New("candidate not found")

	ErrTxConflict = errors.New("storage conflict, please retry")
)

// RankReward is the chips paid when the pick at this rank turns out to
// be a winner: 20 for rank 1 down to 2 for rank 10.
func RankReward(rank int) int64 {
	if rank < MinRank || rank > MaxRank {
		return 0
	}
	return int64(22 - 2*rank)
}

// RankWeight is the unnormalized market weight a pick contributes to
// its candidate: 10 for rank 1 down to 1 for rank 10.
func RankWeight(rank int) int64 {
	if rank < MinRank || rank > MaxRank {
		return 0
	}
	return int64(11 - rank)
}

// validateSlate checks the shape of a ranked candidate list. Membership
// in the cycle is checked separately against storage.
func validateSlate(candidateIDs []string) error {
	if len(candidateIDs) > MaxPicksPerCycle {
		return ErrTooManyPicks
	}
	seen := make(map[string]struct{}, len(candidateIDs))
	for _, id := range candidateIDs {
		if _, dup := seen[id]; dup {
			return ErrDuplicateCandidate
		}
		seen[id] = struct{}{}
	}
	return nil
}

// missingExplanations returns the selected candidates that lack a
// non-blank explanation.
func missingExplanations(candidateIDs []string, explanations map[string]string) []string {
	var missing []string
	for _, id := range candidateIDs {
		if strings.TrimSpace(explanations[id]) == "" {
			missing = append(missing, id)
		}
	}
	return missing
}

// newID builds a short prefixed row ID like "cyc_1f3a9c0d42be".
func newID(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
