// Package jobs runs the scheduled work: the daily chip faucet, model
// agent picks, feed sync, and curation awards. Every job claims a run
// key first so concurrent workers and repeated triggers stay
// idempotent.
package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"linkmarket/internal/agents"
	"linkmarket/internal/ingest"
	"linkmarket/internal/market"
	"linkmarket/internal/metrics"
)

const (
	jobFaucet   = "daily_faucet"
	jobModels   = "model_run"
	jobSync     = "sync_assorted_links"
	jobCuration = "curation_rewards"
)

type Runner struct {
	market *market.Service
	agents *agents.Runner
	ingest *ingest.Ingestor
	log    *slog.Logger
}

func NewRunner(svc *market.Service, agentRunner *agents.Runner, ingestor *ingest.Ingestor, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{market: svc, agents: agentRunner, ingest: ingestor, log: logger}
}

type FaucetResult struct {
	RunKey      string `json:"run_key"`
	Skipped     bool   `json:"skipped,omitempty"`
	Reason      string `json:"reason,omitempty"`
	UsersPaid   int    `json:"users_paid"`
	ChipsIssued int64  `json:"chips_issued"`
}

// DailyFaucet credits catch-up chips to every user, at most once per
// civil day. force bypasses the run-key claim for manual reruns.
func (r *Runner) DailyFaucet(ctx context.Context, asOf time.Time, force bool) (FaucetResult, error) {
	if asOf.IsZero() {
		asOf = time.Now()
	}
	res := FaucetResult{RunKey: dateKey(asOf)}
	if !force {
		claimed, err := r.market.ClaimJobRun(ctx, jobFaucet, res.RunKey, map[string]any{"as_of": asOf.UTC().Format(time.RFC3339)})
		if err != nil {
			metrics.JobRuns.WithLabelValues(jobFaucet, "error").Inc()
			return res, err
		}
		if !claimed {
			res.Skipped = true
			res.Reason = "already_ran"
			metrics.JobRuns.WithLabelValues(jobFaucet, "skipped").Inc()
			return res, nil
		}
	}
	credited, err := r.market.RunFaucetAll(ctx, asOf)
	if err != nil {
		metrics.JobRuns.WithLabelValues(jobFaucet, "error").Inc()
		return res, err
	}
	for _, chips := range credited {
		res.UsersPaid++
		res.ChipsIssued += chips
	}
	metrics.JobRuns.WithLabelValues(jobFaucet, "ok").Inc()
	r.log.Info("faucet run complete", "run_key", res.RunKey,
		"users_paid", res.UsersPaid, "chips_issued", res.ChipsIssued)
	return res, nil
}

type ModelRunNote struct {
	AgentID     string `json:"agent_id"`
	ModelUserID string `json:"model_user_id,omitempty"`
	Picks       int    `json:"picks"`
	Error       string `json:"error,omitempty"`
}

type ModelRunResult struct {
	CycleID string         `json:"cycle_id,omitempty"`
	RunKey  string         `json:"run_key,omitempty"`
	Skipped bool           `json:"skipped,omitempty"`
	Reason  string         `json:"reason,omitempty"`
	Agents  []ModelRunNote `json:"agents,omitempty"`
}

// RunModels has every enabled model agent submit picks for the given
// cycle, or the current open cycle when cycleID is empty. The run key
// includes the hour so agents re-pick as new candidates arrive, but at
// most once per hour per cycle.
func (r *Runner) RunModels(ctx context.Context, cycleID string, force bool) (ModelRunResult, error) {
	var res ModelRunResult
	var cycle market.Cycle
	var err error
	if cycleID == "" {
		cycle, err = r.market.CurrentCycle(ctx)
		if errors.Is(err, market.ErrCycleNotFound) {
			res.Skipped = true
			res.Reason = "no_open_cycle"
			metrics.JobRuns.WithLabelValues(jobModels, "skipped").Inc()
			return res, nil
		}
	} else {
		cycle, err = r.market.GetCycle(ctx, cycleID)
	}
	if err != nil {
		metrics.JobRuns.WithLabelValues(jobModels, "error").Inc()
		return res, err
	}
	res.CycleID = cycle.ID
	res.RunKey = cycle.ID + ":" + hourKey(time.Now())
	if !force {
		claimed, err := r.market.ClaimJobRun(ctx, jobModels, res.RunKey, map[string]any{"cycle_id": cycle.ID})
		if err != nil {
			metrics.JobRuns.WithLabelValues(jobModels, "error").Inc()
			return res, err
		}
		if !claimed {
			res.Skipped = true
			res.Reason = "already_ran"
			metrics.JobRuns.WithLabelValues(jobModels, "skipped").Inc()
			return res, nil
		}
	}
	runs, err := r.agents.RunCycle(ctx, cycle.ID)
	if err != nil {
		metrics.JobRuns.WithLabelValues(jobModels, "error").Inc()
		return res, err
	}
	for _, run := range runs {
		note := ModelRunNote{AgentID: run.AgentID, ModelUserID: run.ModelUserID, Picks: len(run.Selected)}
		if run.Err != "" {
			note.Error = run.Err
		}
		res.Agents = append(res.Agents, note)
	}
	metrics.JobRuns.WithLabelValues(jobModels, "ok").Inc()
	r.log.Info("model run complete", "cycle_id", cycle.ID, "agents", len(res.Agents))
	return res, nil
}

type SyncLinksResult struct {
	RunKey  string            `json:"run_key"`
	Skipped bool              `json:"skipped,omitempty"`
	Reason  string            `json:"reason,omitempty"`
	Sync    ingest.SyncResult `json:"sync"`
}

// SyncLinks pulls the feed and advances cycles, at most once per hour.
func (r *Runner) SyncLinks(ctx context.Context, limit int, force bool) (SyncLinksResult, error) {
	res := SyncLinksResult{RunKey: hourKey(time.Now())}
	if !force {
		claimed, err := r.market.ClaimJobRun(ctx, jobSync, res.RunKey, nil)
		if err != nil {
			metrics.JobRuns.WithLabelValues(jobSync, "error").Inc()
			return res, err
		}
		if !claimed {
			res.Skipped = true
			res.Reason = "already_ran"
			metrics.JobRuns.WithLabelValues(jobSync, "skipped").Inc()
			return res, nil
		}
	}
	sync, err := r.ingest.Sync(ctx, limit)
	if err != nil {
		metrics.JobRuns.WithLabelValues(jobSync, "error").Inc()
		return res, err
	}
	res.Sync = sync
	metrics.JobRuns.WithLabelValues(jobSync, "ok").Inc()
	return res, nil
}

type CurationCycleNote struct {
	CycleID string                  `json:"cycle_id"`
	Skipped bool                    `json:"skipped,omitempty"`
	Reason  string                  `json:"reason,omitempty"`
	Awards  []market.CurationReward `json:"awards,omitempty"`
}

type CurationResult struct {
	Cycles      []CurationCycleNote `json:"cycles,omitempty"`
	ChipsIssued int64               `json:"chips_issued"`
}

// CurationAwards pays submitters of the most-clicked links for settled
// cycles. A cycle becomes eligible minAge after settlement so clicks
// have time to accumulate; the eligibility check runs before the claim
// so an early trigger does not burn the cycle's one run key.
func (r *Runner) CurationAwards(ctx context.Context, cycleID string, minAge time.Duration, force bool) (CurationResult, error) {
	var res CurationResult
	var targets []market.Cycle
	if cycleID != "" {
		cycle, err := r.market.GetCycle(ctx, cycleID)
		if err != nil {
			metrics.JobRuns.WithLabelValues(jobCuration, "error").Inc()
			return res, err
		}
		targets = append(targets, cycle)
	} else {
		cycles, err := r.market.ListCycles(ctx, 200)
		if err != nil {
			metrics.JobRuns.WithLabelValues(jobCuration, "error").Inc()
			return res, err
		}
		for _, c := range cycles {
			if c.Status == market.CycleSettled {
				targets = append(targets, c)
			}
		}
	}

	now := time.Now()
	for _, cycle := range targets {
		note := CurationCycleNote{CycleID: cycle.ID}
		if !curationEligible(cycle, minAge, now) {
			note.Skipped = true
			note.Reason = "waiting"
			res.Cycles = append(res.Cycles, note)
			continue
		}
		if !force {
			claimed, err := r.market.ClaimJobRun(ctx, jobCuration, cycle.ID, nil)
			if err != nil {
				metrics.JobRuns.WithLabelValues(jobCuration, "error").Inc()
				return res, err
			}
			if !claimed {
				note.Skipped = true
				note.Reason = "already_ran"
				res.Cycles = append(res.Cycles, note)
				continue
			}
		}
		awards, err := r.market.ComputeCurationRewards(ctx, cycle.ID)
		if errors.Is(err, market.ErrCycleNotSettled) {
			note.Skipped = true
			note.Reason = "not_settled"
			res.Cycles = append(res.Cycles, note)
			continue
		}
		if err != nil {
			metrics.JobRuns.WithLabelValues(jobCuration, "error").Inc()
			return res, err
		}
		note.Awards = awards
		for _, a := range awards {
			res.ChipsIssued += a.RewardChips
		}
		res.Cycles = append(res.Cycles, note)
	}
	metrics.JobRuns.WithLabelValues(jobCuration, "ok").Inc()
	if res.ChipsIssued > 0 {
		r.log.Info("curation awards issued", "cycles", len(res.Cycles), "chips_issued", res.ChipsIssued)
	}
	return res, nil
}

// curationEligible reports whether enough time has passed since the
// cycle settled for its click window to close.
func curationEligible(c market.Cycle, minAge time.Duration, now time.Time) bool {
	if c.Status != market.CycleSettled {
		return false
	}
	if c.ClosedAt == nil {
		return true
	}
	return now.Sub(*c.ClosedAt) >= minAge
}

func dateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func hourKey(t time.Time) string {
	return t.UTC().Format("2006010215")
}
