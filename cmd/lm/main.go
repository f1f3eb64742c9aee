package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	cl "linkmarket/internal/cli"
	"linkmarket/internal/config"
	"linkmarket/internal/market"
	"linkmarket/internal/syncq"

	"github.com/spf13/cobra"
)

func main() {
	cfg := config.LoadCLIFromEnv()
	apiBase := cfg.APIBaseURL

	root := &cobra.Command{
		Use:          "lm",
		Short:        "Link market CLI client",
		SilenceUsage: true,
	}

	root.AddCommand(
		newLoginCmd(&apiBase),
		newLogoutCmd(&apiBase),
		newMeCmd(&apiBase),
		newCycleCmd(&apiBase),
		newCyclesCmd(&apiBase),
		newProbsCmd(&apiBase),
		newSubmitCmd(&apiBase),
		newPicksCmd(&apiBase),
		newResultsCmd(&apiBase),
		newCurationCmd(&apiBase),
		newLeaderboardCmd(&apiBase),
		newModelsCmd(&apiBase),
		newSyncCmd(&apiBase),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(apiBase *string) *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(*apiBase), "/"))
}

func newLoginCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Save a session token for API access",
		RunE: func(cmd *cobra.Command, args []string) error {
			printInfo("Sign in with Google at " + *apiBase + "/auth/google/login,")
			printInfo("then paste the lm_session cookie value below.")
			token, err := promptSecret("Session token")
			if err != nil {
				return err
			}
			if token == "" {
				return fmt.Errorf("empty token")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			raw, err := client.Me(ctx, token)
			if err != nil {
				return fmt.Errorf("token check failed: %w", err)
			}
			user, err := decodeInto[market.User](raw)
			if err != nil {
				return err
			}
			if err := cl.SaveSession(cl.Session{
				Token:  token,
				Email:  user.Email,
				UserID: user.ID,
			}); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Logged in as %s (%s chips).", user.DisplayName, formatChips(user.CurrentChips)))
			return nil
		},
	}
}

func newLogoutCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the session and clear local state",
		RunE: func(cmd *cobra.Command, args []string) error {
			if sess, err := cl.LoadSession(); err == nil {
				ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
				defer cancel()
				if err := newClient(apiBase).Logout(ctx, sess.Token); err != nil {
					printWarn("Server logout failed: " + err.Error())
				}
			}
			if err := cl.ClearSession(); err != nil {
				return err
			}
			printSuccess("Logged out.")
			return nil
		},
	}
}

func newMeCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show your account and chip balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return fmt.Errorf("login required: %w", err)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).Me(ctx, sess.Token)
			if err != nil {
				return err
			}
			return renderUser(out)
		},
	}
}

func newCycleCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "cycle [cycle_id]",
		Short: "Show a cycle and its candidate links",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token := optionalToken()
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			cycleID, err := resolveCycleID(ctx, client, token, args)
			if err != nil {
				return err
			}
			cycleRaw, err := client.GetCycle(ctx, token, cycleID)
			if err != nil {
				return err
			}
			candidatesRaw, err := client.ListCandidates(ctx, token, cycleID)
			if err != nil {
				return err
			}
			return renderCycle(cycleRaw, candidatesRaw)
		},
	}
}

func newCyclesCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "cycles",
		Short: "List recent cycles",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).ListCycles(ctx, optionalToken(), 20)
			if err != nil {
				return err
			}
			return renderCycles(out)
		},
	}
}

func newProbsCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "probs [cycle_id]",
		Short: "Show the market's current probabilities",
		RunE: func(cmd *cobra.Command, args []string) error {
			token := optionalToken()
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			cycleID, err := resolveCycleID(ctx, client, token, args)
			if err != nil {
				return err
			}
			out, err := client.Probabilities(ctx, token, cycleID)
			if err != nil {
				return err
			}
			return renderProbabilities(out, cycleID)
		},
	}
}

func newSubmitCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "submit [url]",
		Short: "Submit a link to the current cycle",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return fmt.Errorf("login required: %w", err)
			}
			rawURL := ""
			if len(args) > 0 {
				rawURL = strings.TrimSpace(args[0])
			} else {
				rawURL, err = promptRequired("URL")
				if err != nil {
					return err
				}
			}
			title, err := promptOptional("Title (optional)")
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).SubmitLink(ctx, sess.Token, rawURL, title)
			if err != nil {
				return queueOnNetworkError(err, syncq.Command{
					Method: "POST",
					Path:   "/api/submissions/web",
					Body:   map[string]any{"url": rawURL, "title": title},
				})
			}
			return renderSubmission(out)
		},
	}
}

func newPicksCmd(apiBase *string) *cobra.Command {
	picks := &cobra.Command{
		Use:   "picks",
		Short: "View or set your predictions",
	}
	picks.AddCommand(&cobra.Command{
		Use:   "show [cycle_id]",
		Short: "Show your current slate",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return fmt.Errorf("login required: %w", err)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			cycleID, err := resolveCycleID(ctx, client, sess.Token, args)
			if err != nil {
				return err
			}
			candidatesRaw, err := client.ListCandidates(ctx, sess.Token, cycleID)
			if err != nil {
				return err
			}
			candidates, err := decodeInto[candidatesPayload](candidatesRaw)
			if err != nil {
				return err
			}
			out, err := client.GetPicks(ctx, sess.Token, cycleID)
			if err != nil {
				return err
			}
			return renderPicks(out, candidates.Candidates)
		},
	})
	picks.AddCommand(&cobra.Command{
		Use:   "set [cycle_id]",
		Short: "Replace your slate, best guess first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return fmt.Errorf("login required: %w", err)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()
			client := newClient(apiBase)
			cycleID, err := resolveCycleID(ctx, client, sess.Token, args)
			if err != nil {
				return err
			}
			candidatesRaw, err := client.ListCandidates(ctx, sess.Token, cycleID)
			if err != nil {
				return err
			}
			candidates, err := decodeInto[candidatesPayload](candidatesRaw)
			if err != nil {
				return err
			}
			if len(candidates.Candidates) == 0 {
				printInfo("No candidates in this cycle yet.")
				return nil
			}
			renderCandidateMenu(candidates.Candidates)
			line, err := promptRequired("Picks (numbers, best first, comma separated)")
			if err != nil {
				return err
			}
			ids, err := candidateIDsFromMenu(line, candidates.Candidates)
			if err != nil {
				return err
			}
			out, err := client.PutPicks(ctx, sess.Token, cycleID, ids)
			if err != nil {
				return queueOnNetworkError(err, syncq.Command{
					Method: "PUT",
					Path:   "/api/cycles/" + cycleID + "/picks",
					Body:   map[string]any{"candidate_ids": ids},
				})
			}
			return renderPicks(out, candidates.Candidates)
		},
	})
	return picks
}

func newResultsCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "results [cycle_id]",
		Short: "Show settlement outcomes for a cycle",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token := optionalToken()
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			cycleID, err := resolveCycleID(ctx, client, token, args)
			if err != nil {
				return err
			}
			candidatesRaw, err := client.ListCandidates(ctx, token, cycleID)
			if err != nil {
				return err
			}
			candidates, err := decodeInto[candidatesPayload](candidatesRaw)
			if err != nil {
				return err
			}
			out, err := client.Results(ctx, token, cycleID)
			if err != nil {
				return err
			}
			return renderResults(out, candidates.Candidates)
		},
	}
}

func newCurationCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "curation [cycle_id]",
		Short: "Show curation rewards for a cycle",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token := optionalToken()
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			cycleID, err := resolveCycleID(ctx, client, token, args)
			if err != nil {
				return err
			}
			out, err := client.CurationRewards(ctx, token, cycleID)
			if err != nil {
				return err
			}
			return renderCuration(out, cycleID)
		},
	}
}

func newLeaderboardCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "leaderboard [all|human|ai|curation]",
		Short: "Show chip standings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := ""
			if len(args) > 0 {
				kind = strings.ToLower(strings.TrimSpace(args[0]))
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).Leaderboard(ctx, optionalToken(), kind, 20)
			if err != nil {
				return err
			}
			return renderLeaderboard(out, kind)
		},
	}
}

func newModelsCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the model agents playing the market",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := newClient(apiBase).Models(ctx, optionalToken())
			if err != nil {
				return err
			}
			return renderModels(out)
		},
	}
}

func newSyncCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Replay queued offline writes",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := cl.LoadSession()
			if err != nil {
				return fmt.Errorf("login required: %w", err)
			}
			queue, err := syncq.Load()
			if err != nil {
				return err
			}
			if len(queue) == 0 {
				printInfo("Sync queue is empty.")
				return nil
			}
			client := newClient(apiBase)
			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()

			remaining := make([]syncq.Command, 0, len(queue))
			success := 0
			for _, q := range queue {
				_, err := client.Do(ctx, q.Method, q.Path, sess.Token, q.Body)
				if err != nil {
					remaining = append(remaining, q)
					printError(fmt.Sprintf("Sync failed for %s %s: %v", q.Method, q.Path, err))
					continue
				}
				success++
			}
			if err := syncq.Save(remaining); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Sync complete: replayed=%d remaining=%d", success, len(remaining)))
			return nil
		},
	}
}

// optionalToken returns the saved session token when one exists. Read
// endpoints work signed out, so a missing session is not an error.
func optionalToken() string {
	sess, err := cl.LoadSession()
	if err != nil {
		return ""
	}
	return sess.Token
}

func resolveCycleID(ctx context.Context, client *cl.Client, token string, args []string) (string, error) {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return strings.TrimSpace(args[0]), nil
	}
	raw, err := client.CurrentCycle(ctx, token)
	if err != nil {
		return "", fmt.Errorf("no cycle given and current cycle lookup failed: %w", err)
	}
	cycle, err := decodeInto[market.Cycle](raw)
	if err != nil {
		return "", err
	}
	return cycle.ID, nil
}

// queueOnNetworkError stores the write locally when the API is
// unreachable. Errors the API answered with pass through untouched;
// replaying those would just fail again.
func queueOnNetworkError(err error, cmd syncq.Command) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "api status") {
		return err
	}
	if qErr := syncq.Push(cmd); qErr != nil {
		return fmt.Errorf("request failed (%v) and queueing failed: %w", err, qErr)
	}
	printWarn(fmt.Sprintf("API unreachable (%v). Queued for `lm sync`.", err))
	return nil
}
