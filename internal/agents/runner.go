package agents

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"linkmarket/internal/market"
)

// AgentRun reports one agent's pass over a cycle.
type AgentRun struct {
	AgentID     string   `json:"agent_id"`
	ModelUserID string   `json:"model_user_id,omitempty"`
	Selected    []string `json:"selected_candidate_ids,omitempty"`
	Predictions int      `json:"predictions"`
	Err         string   `json:"error,omitempty"`
}

// Runner executes the agent roster against cycles. The roster can be
// reloaded at runtime without restarting.
type Runner struct {
	market *market.Service
	log    *slog.Logger
	path   string

	mu      sync.RWMutex
	configs []Config
}

func NewRunner(svc *market.Service, logger *slog.Logger, configPath string) (*Runner, error) {
	if logger == nil {
		logger = slog.Default()
	}
	configs, err := LoadConfigs(configPath)
	if err != nil {
		return nil, err
	}
	return &Runner{market: svc, log: logger, path: configPath, configs: configs}, nil
}

// Configs returns a copy of the current roster.
func (r *Runner) Configs() []Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Config(nil), r.configs...)
}

// Reload re-reads the roster file and swaps it in.
func (r *Runner) Reload() ([]Config, error) {
	configs, err := LoadConfigs(r.path)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.configs = configs
	r.mu.Unlock()
	r.log.Info("agent roster reloaded", "agents", len(configs))
	return append([]Config(nil), configs...), nil
}

// RunCycle fans the enabled agents out over the cycle's candidates.
// One agent failing does not stop the others; failures are reported in
// that agent's run entry.
func (r *Runner) RunCycle(ctx context.Context, cycleID string) ([]AgentRun, error) {
	candidates, err := r.market.ListCandidates(ctx, cycleID)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	var mu sync.Mutex
	var runs []AgentRun
	for _, cfg := range r.Configs() {
		if !cfg.Enabled {
			continue
		}
		cfg := cfg
		g.Go(func() error {
			run := r.runAgent(gctx, cfg, cycleID, candidates)
			mu.Lock()
			runs = append(runs, run)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].AgentID < runs[j].AgentID })
	return runs, nil
}

func (r *Runner) runAgent(ctx context.Context, cfg Config, cycleID string, candidates []market.CandidateLink) AgentRun {
	run := AgentRun{AgentID: cfg.ID}
	user, err := r.market.GetOrCreateAgentUser(ctx, cfg.ID)
	if err != nil {
		run.Err = err.Error()
		r.log.Error("agent account lookup failed", "agent", cfg.ID, "error", err)
		return run
	}
	run.ModelUserID = user.ID

	strategy := strategyFor(cfg)
	probs := normalizeProbabilities(strategy.Predict(cfg, candidates), candidates)
	ranked := rankCandidates(candidates, probs)
	limit := pickCap(cfg.MaxDailyPicks, len(ranked))

	ids := make([]string, 0, limit)
	explanations := make(map[string]string, limit)
	for _, c := range ranked[:limit] {
		ids = append(ids, c.ID)
		explanations[c.ID] = strategy.Explain(cfg, c, probs[c.ID], true)
	}
	if _, err := r.market.SubmitPicks(ctx, market.SubmitPicksInput{
		CycleID:      cycleID,
		UserID:       user.ID,
		CandidateIDs: ids,
		Explanations: explanations,
	}); err != nil {
		run.Err = err.Error()
		r.log.Error("agent picks rejected", "agent", cfg.ID, "cycle_id", cycleID, "error", err)
		return run
	}
	run.Selected = ids

	// every candidate gets a stored prediction, picked or not
	for _, c := range candidates {
		explanation, picked := explanations[c.ID]
		if !picked {
			explanation = strategy.Explain(cfg, c, probs[c.ID], false)
		}
		if err := r.market.UpsertPrediction(ctx, market.PredictionInput{
			CycleID:     cycleID,
			ModelUserID: user.ID,
			CandidateID: c.ID,
			Probability: probs[c.ID],
			Explanation: explanation,
		}); err != nil {
			run.Err = err.Error()
			r.log.Error("prediction write failed", "agent", cfg.ID, "candidate_id", c.ID, "error", err)
			return run
		}
		run.Predictions++
	}
	r.log.Info("agent ran", "agent", cfg.ID, "cycle_id", cycleID, "selected", len(ids))
	return run
}

// pickCap bounds an agent's slate by its roster limit, the market
// maximum and the slate size.
func pickCap(maxDaily, available int) int {
	limit := maxDaily
	if limit > market.MaxPicksPerCycle {
		limit = market.MaxPicksPerCycle
	}
	if limit > available {
		limit = available
	}
	if limit < 0 {
		limit = 0
	}
	return limit
}

// rankCandidates orders the slate by probability, candidate ID
// breaking ties so the cut at the pick cap is stable.
func rankCandidates(candidates []market.CandidateLink, probs map[string]float64) []market.CandidateLink {
	out := append([]market.CandidateLink(nil), candidates...)
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := probs[out[i].ID], probs[out[j].ID]
		if pi != pj {
			return pi > pj
		}
		return out[i].ID < out[j].ID
	})
	return out
}
