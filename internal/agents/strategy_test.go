package agents

import (
	"math"
	"testing"

	"linkmarket/internal/market"
)

func slateCandidate(id, canonical, domain string) market.CandidateLink {
	return market.CandidateLink{ID: id, CanonicalURL: canonical, Domain: domain}
}

func testAgent() Config {
	return Config{ID: "gpt-test", Provider: "openai", ModelName: "gpt-test-1", Enabled: true,
		StrategyProfile: "default", MaxDailyPicks: 10, Temperature: 0.2}
}

func TestRankingStrategyDeterministic(t *testing.T) {
	cfg := testAgent()
	candidates := []market.CandidateLink{
		slateCandidate("cand_a", "https://example.com/a", "example.com"),
		slateCandidate("cand_b", "https://example.com/b", "example.com"),
		slateCandidate("cand_c", "https://ft.com/c", "ft.com"),
	}
	s := rankingStrategy{}
	first := s.Predict(cfg, candidates)
	second := s.Predict(cfg, candidates)
	for id, v := range first {
		if second[id] != v {
			t.Fatalf("score for %s changed between runs: %v vs %v", id, v, second[id])
		}
	}
}

func TestRankingStrategyDiffersPerAgent(t *testing.T) {
	candidates := []market.CandidateLink{
		slateCandidate("cand_a", "https://example.com/a", "example.com"),
	}
	s := rankingStrategy{}
	cfgA := testAgent()
	cfgB := testAgent()
	cfgB.ID = "claude-test"
	if s.Predict(cfgA, candidates)["cand_a"] == s.Predict(cfgB, candidates)["cand_a"] {
		t.Fatalf("two agents scored identically; scores should depend on agent id")
	}
}

func TestDomainBonusMultipliesScore(t *testing.T) {
	cfg := testAgent()
	s := rankingStrategy{}
	// same canonical URL, so the hash base matches; only the domain differs
	plain := s.Predict(cfg, []market.CandidateLink{slateCandidate("cand_a", "https://x.com/a", "x.com")})["cand_a"]
	boosted := s.Predict(cfg, []market.CandidateLink{slateCandidate("cand_a", "https://x.com/a", "ft.com")})["cand_a"]
	if math.Abs(boosted-plain*1.15) > 1e-12 {
		t.Fatalf("ft.com score = %v, want %v (1.15x of %v)", boosted, plain*1.15, plain)
	}
}

func TestHashFractionRange(t *testing.T) {
	urls := []string{"https://a.com/1", "https://b.com/2", "https://c.com/3", "https://d.com/4"}
	for _, u := range urls {
		f := hashFraction("agent", u)
		if f < 0 || f >= 1 {
			t.Fatalf("hashFraction(%q) = %v, want [0, 1)", u, f)
		}
	}
}

func TestNormalizeProbabilities(t *testing.T) {
	candidates := []market.CandidateLink{
		slateCandidate("cand_a", "https://example.com/a", "example.com"),
		slateCandidate("cand_b", "https://example.com/b", "example.com"),
	}
	out := normalizeProbabilities(map[string]float64{"cand_a": 3, "cand_b": 1}, candidates)
	if math.Abs(out["cand_a"]-0.75) > 1e-12 || math.Abs(out["cand_b"]-0.25) > 1e-12 {
		t.Fatalf("normalized = %v, want 0.75/0.25", out)
	}
}

func TestNormalizeProbabilitiesClampsAndFallsBack(t *testing.T) {
	candidates := []market.CandidateLink{
		slateCandidate("cand_a", "https://example.com/a", "example.com"),
		slateCandidate("cand_b", "https://example.com/b", "example.com"),
	}
	out := normalizeProbabilities(map[string]float64{"cand_a": -5, "cand_b": math.NaN()}, candidates)
	if math.Abs(out["cand_a"]-0.5) > 1e-12 || math.Abs(out["cand_b"]-0.5) > 1e-12 {
		t.Fatalf("all-invalid scores should split uniformly, got %v", out)
	}
	if got := normalizeProbabilities(nil, nil); len(got) != 0 {
		t.Fatalf("empty slate should normalize to empty, got %v", got)
	}
}

func TestNormalizeProbabilitiesIgnoresStrangers(t *testing.T) {
	candidates := []market.CandidateLink{
		slateCandidate("cand_a", "https://example.com/a", "example.com"),
	}
	out := normalizeProbabilities(map[string]float64{"cand_a": 1, "cand_gone": 9}, candidates)
	if len(out) != 1 || math.Abs(out["cand_a"]-1.0) > 1e-12 {
		t.Fatalf("scores for unknown candidates should be dropped, got %v", out)
	}
}

func TestPickCap(t *testing.T) {
	tests := []struct {
		maxDaily  int
		available int
		want      int
	}{
		{10, 3, 3},
		{5, 10, 5},
		{25, 30, 10},
		{0, 5, 0},
		{-1, 5, 0},
		{10, 0, 0},
	}
	for _, tc := range tests {
		if got := pickCap(tc.maxDaily, tc.available); got != tc.want {
			t.Fatalf("pickCap(%d, %d) = %d, want %d", tc.maxDaily, tc.available, got, tc.want)
		}
	}
}

func TestRankCandidates(t *testing.T) {
	candidates := []market.CandidateLink{
		slateCandidate("cand_b", "https://example.com/b", "example.com"),
		slateCandidate("cand_a", "https://example.com/a", "example.com"),
		slateCandidate("cand_c", "https://example.com/c", "example.com"),
	}
	probs := map[string]float64{"cand_a": 0.2, "cand_b": 0.5, "cand_c": 0.2}
	ranked := rankCandidates(candidates, probs)
	want := []string{"cand_b", "cand_a", "cand_c"}
	for i, id := range want {
		if ranked[i].ID != id {
			t.Fatalf("position %d = %s, want %s", i, ranked[i].ID, id)
		}
	}
	if candidates[0].ID != "cand_b" {
		t.Fatalf("input slice was reordered")
	}
}

func TestStrategyForUnknownProfileFallsBack(t *testing.T) {
	cfg := testAgent()
	cfg.StrategyProfile = "does-not-exist"
	if _, ok := strategyFor(cfg).(rankingStrategy); !ok {
		t.Fatalf("unknown profile should fall back to the default strategy")
	}
}
