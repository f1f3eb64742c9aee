package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"linkmarket/internal/agents"
	"linkmarket/internal/market"

	"github.com/fatih/color"
	"golang.org/x/term"
)

var stdinReader = bufio.NewReader(os.Stdin)

var (
	accent  = color.New(color.FgCyan, color.Bold)
	success = color.New(color.FgGreen, color.Bold)
	warn    = color.New(color.FgYellow, color.Bold)
	danger  = color.New(color.FgRed, color.Bold)
	neutral = color.New(color.FgHiWhite)
)

func printSuccess(msg string) { success.Println(msg) }
func printWarn(msg string)    { warn.Println(msg) }
func printError(msg string)   { danger.Println(msg) }
func printInfo(msg string)    { neutral.Println(msg) }

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		line, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}
		line = strings.TrimSpace(line)
		if line != "" {
			return line, nil
		}
		printWarn("Value is required.")
	}
}

func promptOptional(label string) (string, error) {
	fmt.Printf("%s: ", label)
	line, err := stdinReader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// promptSecret reads without echo so session tokens stay out of
// terminal scrollback.
func promptSecret(label string) (string, error) {
	fmt.Printf("%s: ", label)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read secret: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

type candidatesPayload struct {
	Candidates []market.CandidateLink `json:"candidates"`
}

type picksPayload struct {
	Picks []market.Pick `json:"picks"`
}

type probabilitiesPayload struct {
	Probabilities []market.CandidateProbability `json:"probabilities"`
}

type cyclesPayload struct {
	Cycles []market.Cycle `json:"cycles"`
}

type resultsPayload struct {
	Results []market.CycleResult `json:"results"`
}

type rewardsPayload struct {
	Rewards []market.CurationReward `json:"rewards"`
}

type leaderboardPayload struct {
	Rows []market.LeaderboardRow `json:"rows"`
}

type modelsPayload struct {
	Models []agents.Config `json:"models"`
}

type submissionPayload struct {
	CycleID   string               `json:"cycle_id"`
	Candidate market.CandidateLink `json:"candidate"`
}

func renderUser(raw map[string]any) error {
	u, err := decodeInto[market.User](raw)
	if err != nil {
		return err
	}
	accent.Printf("\n== ACCOUNT ==\n")
	fmt.Printf("Name:   %s\n", u.DisplayName)
	fmt.Printf("Email:  %s\n", u.Email)
	fmt.Printf("Type:   %s\n", u.AccountType)
	fmt.Printf("Chips:  %s\n", formatChips(u.CurrentChips))
	fmt.Printf("Joined: %s\n", u.CreatedAt.Format("2006-01-02"))
	return nil
}

func renderCycle(cycleRaw, candidatesRaw map[string]any) error {
	cycle, err := decodeInto[market.Cycle](cycleRaw)
	if err != nil {
		return err
	}
	list, err := decodeInto[candidatesPayload](candidatesRaw)
	if err != nil {
		return err
	}
	accent.Printf("\n== CYCLE %s ==\n", cycle.CycleDate.Format("2006-01-02"))
	fmt.Printf("ID:     %s\n", cycle.ID)
	fmt.Printf("Status: %s\n", cycle.Status)
	fmt.Printf("Opened: %s\n", cycle.OpenedAt.Format(time.RFC3339))
	if cycle.ClosedAt != nil {
		fmt.Printf("Closed: %s\n", cycle.ClosedAt.Format(time.RFC3339))
	}

	accent.Printf("\n== CANDIDATES (%d) ==\n", len(list.Candidates))
	if len(list.Candidates) == 0 {
		fmt.Println("No candidates yet.")
		return nil
	}
	fmt.Printf("%-4s %-24s %s\n", "#", "DOMAIN", "TITLE")
	for i, c := range list.Candidates {
		fmt.Printf("%-4d %-24s %s\n", i+1, truncate(c.Domain, 24), truncate(candidateTitle(c), 64))
	}
	return nil
}

func renderCycles(raw map[string]any) error {
	list, err := decodeInto[cyclesPayload](raw)
	if err != nil {
		return err
	}
	accent.Printf("\n== CYCLES ==\n")
	if len(list.Cycles) == 0 {
		fmt.Println("No cycles yet.")
		return nil
	}
	fmt.Printf("%-12s %-9s %s\n", "DATE", "STATUS", "ID")
	for _, c := range list.Cycles {
		fmt.Printf("%-12s %-9s %s\n", c.CycleDate.Format("2006-01-02"), c.Status, c.ID)
	}
	return nil
}

func renderResults(raw map[string]any, candidates []market.CandidateLink) error {
	res, err := decodeInto[resultsPayload](raw)
	if err != nil {
		return err
	}
	accent.Printf("\n== RESULTS ==\n")
	if len(res.Results) == 0 {
		fmt.Println("Not settled yet.")
		return nil
	}
	byID := make(map[string]market.CandidateLink, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c
	}
	fmt.Printf("%-8s %-24s %s\n", "OUTCOME", "DOMAIN", "TITLE")
	for _, r := range res.Results {
		outcome := "-"
		if r.IsWinner {
			outcome = "WIN"
		}
		c, ok := byID[r.CandidateID]
		if !ok {
			fmt.Printf("%-8s %-24s %s\n", outcome, "?", r.CandidateID)
			continue
		}
		fmt.Printf("%-8s %-24s %s\n", outcome, truncate(c.Domain, 24), truncate(candidateTitle(c), 64))
	}
	return nil
}

func renderCuration(raw map[string]any, cycleID string) error {
	rw, err := decodeInto[rewardsPayload](raw)
	if err != nil {
		return err
	}
	accent.Printf("\n== CURATION REWARDS ==\n")
	fmt.Printf("Cycle: %s\n\n", cycleID)
	if len(rw.Rewards) == 0 {
		fmt.Println("No curation rewards yet.")
		return nil
	}
	fmt.Printf("%-5s %-38s %-8s %s\n", "RANK", "USER", "CLICKS", "CHIPS")
	for _, r := range rw.Rewards {
		fmt.Printf("%-5d %-38s %-8d %s\n", r.Rank, r.UserID, r.UniqueClicks, formatChips(r.RewardChips))
	}
	return nil
}

func renderCandidateMenu(candidates []market.CandidateLink) {
	accent.Printf("\n== CANDIDATES ==\n")
	for i, c := range candidates {
		fmt.Printf("%3d. %-24s %s\n", i+1, truncate(c.Domain, 24), truncate(candidateTitle(c), 64))
	}
	fmt.Println()
}

// candidateIDsFromMenu turns "2, 5, 1" into candidate IDs using the
// menu order just shown. Raw candidate IDs are accepted too for
// scripted use.
func candidateIDsFromMenu(line string, candidates []market.CandidateLink) ([]string, error) {
	parts := strings.Split(line, ",")
	ids := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id := part
		if n, err := strconv.Atoi(part); err == nil {
			if n < 1 || n > len(candidates) {
				return nil, fmt.Errorf("pick %d is out of range (1-%d)", n, len(candidates))
			}
			id = candidates[n-1].ID
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("candidate %s appears twice", id)
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no picks given")
	}
	return ids, nil
}

func renderPicks(raw map[string]any, candidates []market.CandidateLink) error {
	p, err := decodeInto[picksPayload](raw)
	if err != nil {
		return err
	}
	accent.Printf("\n== YOUR SLATE ==\n")
	if len(p.Picks) == 0 {
		fmt.Println("No picks yet.")
		return nil
	}
	byID := make(map[string]market.CandidateLink, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c
	}
	fmt.Printf("%-5s %-24s %s\n", "RANK", "DOMAIN", "TITLE")
	for _, pick := range p.Picks {
		c, ok := byID[pick.CandidateID]
		if !ok {
			fmt.Printf("%-5d %-24s %s\n", pick.Rank, "?", pick.CandidateID)
			continue
		}
		fmt.Printf("%-5d %-24s %s\n", pick.Rank, truncate(c.Domain, 24), truncate(candidateTitle(c), 64))
	}
	return nil
}

func renderProbabilities(raw map[string]any, cycleID string) error {
	p, err := decodeInto[probabilitiesPayload](raw)
	if err != nil {
		return err
	}
	accent.Printf("\n== MARKET PROBABILITIES ==\n")
	fmt.Printf("Cycle: %s\n\n", cycleID)
	if len(p.Probabilities) == 0 {
		fmt.Println("No picks in the market yet.")
		return nil
	}
	fmt.Printf("%-7s %-7s %-24s %s\n", "PROB", "WEIGHT", "DOMAIN", "TITLE")
	for _, row := range p.Probabilities {
		title := row.Title
		if title == "" {
			title = row.CanonicalURL
		}
		fmt.Printf("%6.1f%% %-7d %-24s %s\n",
			row.MarketProbability*100, row.RankWeightScore, truncate(row.Domain, 24), truncate(title, 60))
	}
	return nil
}

func renderSubmission(raw map[string]any) error {
	s, err := decodeInto[submissionPayload](raw)
	if err != nil {
		return err
	}
	printSuccess(fmt.Sprintf("Submitted %s to cycle %s.", s.Candidate.CanonicalURL, s.CycleID))
	fmt.Printf("Candidate ID: %s\n", s.Candidate.ID)
	return nil
}

func renderLeaderboard(raw map[string]any, kind string) error {
	lb, err := decodeInto[leaderboardPayload](raw)
	if err != nil {
		return err
	}
	label := strings.ToUpper(kind)
	if label == "" {
		label = "ALL"
	}
	accent.Printf("\n== LEADERBOARD (%s) ==\n", label)
	if len(lb.Rows) == 0 {
		fmt.Println("No players yet.")
		return nil
	}
	fmt.Printf("%-5s %-28s %-8s %10s\n", "RANK", "PLAYER", "TYPE", "CHIPS")
	for _, row := range lb.Rows {
		fmt.Printf("%-5d %-28s %-8s %10s\n",
			row.Rank, truncate(row.DisplayName, 28), row.AccountType, formatChips(row.Chips))
	}
	return nil
}

func renderModels(raw map[string]any) error {
	m, err := decodeInto[modelsPayload](raw)
	if err != nil {
		return err
	}
	accent.Printf("\n== MODEL AGENTS ==\n")
	if len(m.Models) == 0 {
		fmt.Println("No model agents configured.")
		return nil
	}
	fmt.Printf("%-20s %-12s %-28s %-12s %s\n", "ID", "PROVIDER", "MODEL", "STRATEGY", "STATUS")
	for _, mc := range m.Models {
		status := "enabled"
		if !mc.Enabled {
			status = "disabled"
		}
		fmt.Printf("%-20s %-12s %-28s %-12s %s\n",
			truncate(mc.ID, 20), truncate(mc.Provider, 12), truncate(mc.ModelName, 28), mc.StrategyProfile, status)
	}
	return nil
}

func candidateTitle(c market.CandidateLink) string {
	if c.Title != "" {
		return c.Title
	}
	return c.CanonicalURL
}

// decodeInto round-trips a generic API payload into a typed struct.
func decodeInto[T any](raw map[string]any) (T, error) {
	var out T
	buf, err := json.Marshal(raw)
	if err != nil {
		return out, fmt.Errorf("encode payload: %w", err)
	}
	if err := json.Unmarshal(buf, &out); err != nil {
		return out, fmt.Errorf("decode payload: %w", err)
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

func formatChips(n int64) string {
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	digits := strconv.FormatInt(n, 10)
	if len(digits) <= 3 {
		return sign + digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return sign + b.String()
}
