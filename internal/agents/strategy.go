package agents

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"

	"linkmarket/internal/market"
)

// Strategy scores a candidate slate for one agent. Predict returns
// unnormalized scores keyed by candidate ID; the runner clamps and
// normalizes them. Implementations must be deterministic for a given
// (config, slate) so reruns within a cycle produce identical picks.
type Strategy interface {
	Predict(cfg Config, candidates []market.CandidateLink) map[string]float64
	Explain(cfg Config, candidate market.CandidateLink, probability float64, selected bool) string
}

var strategyRegistry = map[string]Strategy{
	"default": rankingStrategy{},
}

// RegisterStrategy installs a named strategy. New agent behaviors are
// added here and referenced from the roster's strategy_profile field.
func RegisterStrategy(name string, s Strategy) {
	strategyRegistry[name] = s
}

func strategyFor(cfg Config) Strategy {
	if s, ok := strategyRegistry[cfg.StrategyProfile]; ok {
		return s
	}
	return rankingStrategy{}
}

// domainBonus nudges scores for outlets whose links historically win.
var domainBonus = map[string]float64{
	"ft.com":        1.15,
	"economist.com": 1.12,
	"arxiv.org":     1.10,
	"bloomberg.com": 1.08,
	"substack.com":  1.05,
}

const scoreFloor = 0.0001

// rankingStrategy derives a stable pseudo-score from the agent ID and
// canonical URL, boosted by the domain table. No network calls; two
// runs over the same slate always agree.
type rankingStrategy struct{}

func (rankingStrategy) Predict(cfg Config, candidates []market.CandidateLink) map[string]float64 {
	out := make(map[string]float64, len(candidates))
	for _, c := range candidates {
		score := 0.5 + hashFraction(cfg.ID, c.CanonicalURL)
		if bonus, ok := domainBonus[c.Domain]; ok {
			score *= bonus
		}
		if score < scoreFloor {
			score = scoreFloor
		}
		out[c.ID] = score
	}
	return out
}

func (rankingStrategy) Explain(cfg Config, c market.CandidateLink, probability float64, selected bool) string {
	if selected {
		return fmt.Sprintf("%s scored this %s link %.3f, inside its daily slate.", cfg.ModelName, c.Domain, probability)
	}
	return fmt.Sprintf("%s scored this %s link %.3f, below its slate cutoff.", cfg.ModelName, c.Domain, probability)
}

// hashFraction maps (agent, url) to [0, 1) via the first 40 bits of a
// SHA-256 digest.
func hashFraction(agentID, canonicalURL string) float64 {
	sum := sha256.Sum256([]byte(agentID + ":" + canonicalURL))
	v, err := strconv.ParseUint(hex.EncodeToString(sum[:5]), 16, 64)
	if err != nil {
		return 0
	}
	return float64(v) / float64(uint64(1)<<40)
}

// normalizeProbabilities clamps bad scores to zero and scales the rest
// to sum to 1. When everything is zero it falls back to a uniform
// split so an agent still ranks the slate.
func normalizeProbabilities(scores map[string]float64, candidates []market.CandidateLink) map[string]float64 {
	out := make(map[string]float64, len(candidates))
	var total float64
	for _, c := range candidates {
		v := scores[c.ID]
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		out[c.ID] = v
		total += v
	}
	if total <= 0 {
		if len(candidates) == 0 {
			return out
		}
		uniform := 1.0 / float64(len(candidates))
		for _, c := range candidates {
			out[c.ID] = uniform
		}
		return out
	}
	for id, v := range out {
		out[id] = v / total
	}
	return out
}
