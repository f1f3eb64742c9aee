package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"linkmarket/internal/agents"
	"linkmarket/internal/auth"
	"linkmarket/internal/config"
	"linkmarket/internal/jobs"
	"linkmarket/internal/market"
	"linkmarket/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type contextKey string

const userContextKey contextKey = "user"

const sessionCookie = "lm_session"

type UserContext struct {
	UserID string
	Email  string
	Token  string
}

type Server struct {
	cfg      config.APIConfig
	log      *slog.Logger
	market   *market.Service
	sessions *auth.Store
	google   *auth.GoogleClient
	twilio   *auth.TwilioClient
	agents   *agents.Runner
	jobs     *jobs.Runner
	mux      *chi.Mux
}

func New(cfg config.APIConfig, logger *slog.Logger, marketSvc *market.Service, sessions *auth.Store,
	google *auth.GoogleClient, twilio *auth.TwilioClient, agentRunner *agents.Runner, jobRunner *jobs.Runner) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:      cfg,
		log:      logger,
		market:   marketSvc,
		sessions: sessions,
		google:   google,
		twilio:   twilio,
		agents:   agentRunner,
		jobs:     jobRunner,
		mux:      chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Get("/auth/google/login", s.handleGoogleLogin)
	r.Get("/auth/google/callback", s.handleGoogleCallback)
	r.Post("/auth/logout", s.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(s.sessionMiddleware)

		r.Get("/r/{candidateID}", s.handleClickRedirect)

		r.Route("/api", func(r chi.Router) {
			r.Get("/cycles/current", s.handleCurrentCycle)
			r.Get("/cycles", s.handleListCycles)
			r.Get("/cycles/{cycleID}", s.handleGetCycle)
			r.Get("/cycles/{cycleID}/candidates", s.handleListCandidates)
			r.Get("/cycles/{cycleID}/probabilities", s.handleProbabilities)
			r.Get("/cycles/{cycleID}/predictions", s.handlePredictions)
			r.Get("/cycles/{cycleID}/results", s.handleResults)
			r.Get("/cycles/{cycleID}/curation", s.handleCurationRewards)
			r.Get("/leaderboard", s.handleLeaderboard)
			r.Get("/models", s.handleModelsList)
			r.Post("/submissions/sms/webhook", s.handleSMSWebhook)

			r.Group(func(r chi.Router) {
				r.Use(s.requireUser)
				r.Get("/me", s.handleMe)
				r.Post("/phones/link/start", s.handlePhoneLinkStart)
				r.Post("/phones/link/verify", s.handlePhoneLinkVerify)
				r.Post("/cycles/{cycleID}/candidates", s.handleSubmitCandidate)
				r.Get("/cycles/{cycleID}/picks", s.handleGetPicks)
				r.Put("/cycles/{cycleID}/picks", s.handlePutPicks)
				r.Post("/submissions/web", s.handleWebSubmission)
			})

			r.Group(func(r chi.Router) {
				r.Use(s.requireJobToken)
				r.Post("/users", s.handleCreateUser)
				r.Post("/cycles", s.handleOpenCycle)
				r.Post("/cycles/{cycleID}/settle", s.handleSettle)
				r.Post("/models/reload", s.handleModelsReload)
				r.Post("/models/run", s.handleModelsRun)
				r.Post("/jobs/faucet", s.handleJobFaucet)
				r.Post("/jobs/sync", s.handleJobSync)
				r.Post("/jobs/curation", s.handleJobCuration)
			})
		})
	})
}

// sessionMiddleware attaches the signed-in user when a valid session
// token arrives by cookie or bearer header. Requests without one pass
// through anonymous; requireUser is the gate for endpoints that need
// an account.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := sessionToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		userID, err := s.sessions.SessionUserID(r.Context(), token)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		user, err := s.market.GetUser(r.Context(), userID)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey, UserContext{
			UserID: user.ID,
			Email:  user.Email,
			Token:  token,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := userFromContext(r.Context()); err != nil {
			writeError(w, http.StatusUnauthorized, "sign in required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireJobToken guards internal trigger endpoints. With no token
// configured the endpoints stay open, which is the local-dev default.
func (s *Server) requireJobToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.JobAuthToken != "" {
			token := bearerToken(r.Header.Get("Authorization"))
			if token == "" {
				token = strings.TrimSpace(r.Header.Get("X-Job-Token"))
			}
			if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.JobAuthToken)) != 1 {
				writeError(w, http.StatusUnauthorized, "bad job token")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func userFromContext(ctx context.Context) (UserContext, error) {
	v := ctx.Value(userContextKey)
	user, ok := v.(UserContext)
	if !ok || user.UserID == "" {
		return UserContext{}, errors.New("missing auth context")
	}
	return user, nil
}

func maybeUserID(ctx context.Context) string {
	user, err := userFromContext(ctx)
	if err != nil {
		return ""
	}
	return user.UserID
}

func (s *Server) handleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	if s.google == nil {
		writeError(w, http.StatusNotFound, "google sign-in is not configured")
		return
	}
	state, err := s.sessions.CreateLoginState(r.Context(), r.URL.Query().Get("redirect_to"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	http.Redirect(w, r, s.google.AuthorizeURL(state), http.StatusFound)
}

func (s *Server) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if s.google == nil {
		writeError(w, http.StatusNotFound, "google sign-in is not configured")
		return
	}
	redirectTo, err := s.sessions.ConsumeLoginState(r.Context(), r.URL.Query().Get("state"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing code")
		return
	}
	accessToken, err := s.google.Exchange(r.Context(), code)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	info, err := s.google.Userinfo(r.Context(), accessToken)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	user, err := s.market.GetOrCreateGoogleUser(r.Context(), info.Sub, info.Email, info.Name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	token, err := s.sessions.CreateSession(r.Context(), user.ID, s.cfg.SessionTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.cfg.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, redirectTo, http.StatusFound)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := sessionToken(r); token != "" {
		if err := s.sessions.DeleteSession(r.Context(), token); err != nil {
			s.log.Warn("delete session failed", "error", err)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	out, err := s.market.GetUser(r.Context(), user.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePhoneLinkStart(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		Phone string `json:"phone"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	challenge, devCode, err := s.sessions.StartPhoneChallenge(r.Context(), user.UserID, in.Phone, s.twilio)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := map[string]any{"challenge": challenge}
	if devCode != "" {
		out["dev_code"] = devCode
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePhoneLinkVerify(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		ChallengeID string `json:"challenge_id"`
		Code        string `json:"code"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	phone, err := s.sessions.VerifyPhoneChallenge(r.Context(), user.UserID, in.ChallengeID, in.Code, s.twilio)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "phone": phone})
}

func (s *Server) handleCurrentCycle(w http.ResponseWriter, r *http.Request) {
	cycle, err := s.market.CurrentCycle(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cycle)
}

func (s *Server) handleListCycles(w http.ResponseWriter, r *http.Request) {
	cycles, err := s.market.ListCycles(r.Context(), queryInt(r, "limit", 50))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cycles": cycles})
}

func (s *Server) handleGetCycle(w http.ResponseWriter, r *http.Request) {
	cycle, err := s.market.GetCycle(r.Context(), chi.URLParam(r, "cycleID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cycle)
}

func (s *Server) handleListCandidates(w http.ResponseWriter, r *http.Request) {
	candidates, err := s.market.ListCandidates(r.Context(), chi.URLParam(r, "cycleID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"candidates": candidates})
}

func (s *Server) handleSubmitCandidate(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		URL   string `json:"url"`
		Title string `json:"title"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	candidate, err := s.market.SubmitCandidate(r.Context(), market.SubmitCandidateInput{
		CycleID:           chi.URLParam(r, "cycleID"),
		SubmittedByUserID: user.UserID,
		URL:               in.URL,
		Title:             in.Title,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, candidate)
}

// handleWebSubmission is the one-tap submit form: no cycle ID in the
// path, the link lands in whatever cycle is open right now.
func (s *Server) handleWebSubmission(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		URL   string `json:"url"`
		Title string `json:"title"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cycle, err := s.market.CurrentCycle(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	candidate, err := s.market.SubmitCandidate(r.Context(), market.SubmitCandidateInput{
		CycleID:           cycle.ID,
		SubmittedByUserID: user.UserID,
		URL:               in.URL,
		Title:             in.Title,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"cycle_id": cycle.ID, "candidate": candidate})
}

// handleSMSWebhook receives inbound texts from Twilio and submits the
// first URL in the body on behalf of the linked account. Replies are
// TwiML so the sender gets a text back either way.
func (s *Server) handleSMSWebhook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "bad form payload")
		return
	}
	from := r.FormValue("From")
	body := r.FormValue("Body")

	userID, err := s.sessions.UserIDByPhone(r.Context(), from)
	if errors.Is(err, auth.ErrPhoneNotLinked) {
		writeTwiML(w, "This number is not linked to an account yet. Link it from your profile first.")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	rawURL := extractFirstURL(body)
	if rawURL == "" {
		writeTwiML(w, "No link found. Text a URL to submit it to the current round.")
		return
	}
	cycle, err := s.market.CurrentCycle(r.Context())
	if errors.Is(err, market.ErrCycleNotFound) {
		writeTwiML(w, "No open round right now. Try again later.")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	candidate, err := s.market.SubmitCandidate(r.Context(), market.SubmitCandidateInput{
		CycleID:           cycle.ID,
		SubmittedByUserID: userID,
		URL:               rawURL,
	})
	if err != nil {
		s.log.Warn("sms submission failed", "from", from, "error", err)
		writeTwiML(w, "Could not submit that link: "+err.Error())
		return
	}
	writeTwiML(w, "Got it: "+candidate.CanonicalURL+" is in this round.")
}

func (s *Server) handleClickRedirect(w http.ResponseWriter, r *http.Request) {
	res, err := s.market.RecordClick(r.Context(), chi.URLParam(r, "candidateID"), market.Visitor{
		UserID:    maybeUserID(r.Context()),
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	http.Redirect(w, r, res.Destination, http.StatusFound)
}

func (s *Server) handleGetPicks(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")
	if userID == "" {
		userID = maybeUserID(r.Context())
	}
	picks, err := s.market.ListPicks(r.Context(), chi.URLParam(r, "cycleID"), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"picks": picks})
}

func (s *Server) handlePutPicks(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		CandidateIDs []string          `json:"candidate_ids"`
		Explanations map[string]string `json:"explanations"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	picks, err := s.market.SubmitPicks(r.Context(), market.SubmitPicksInput{
		CycleID:      chi.URLParam(r, "cycleID"),
		UserID:       user.UserID,
		CandidateIDs: in.CandidateIDs,
		Explanations: in.Explanations,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"picks": picks})
}

func (s *Server) handleProbabilities(w http.ResponseWriter, r *http.Request) {
	probs, err := s.market.Probabilities(r.Context(), chi.URLParam(r, "cycleID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"probabilities": probs})
}

func (s *Server) handlePredictions(w http.ResponseWriter, r *http.Request) {
	predictions, err := s.market.ListPredictions(r.Context(), chi.URLParam(r, "cycleID"), r.URL.Query().Get("model_user"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"predictions": predictions})
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	results, err := s.market.CycleResults(r.Context(), chi.URLParam(r, "cycleID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleCurationRewards(w http.ResponseWriter, r *http.Request) {
	rewards, err := s.market.CurationRewards(r.Context(), chi.URLParam(r, "cycleID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rewards": rewards})
}

// handleCreateUser seeds an account directly, skipping the Google
// flow. Job-token holders only.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var in struct {
		DisplayName string `json:"display_name"`
		Email       string `json:"email"`
		AccountType string `json:"account_type"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(in.Email) == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}
	switch in.AccountType {
	case "", market.AccountHuman, market.AccountAI:
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown account type %q", in.AccountType))
		return
	}
	user, err := s.market.CreateUser(r.Context(), market.CreateUserInput{
		DisplayName: in.DisplayName,
		Email:       in.Email,
		AccountType: in.AccountType,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// handleOpenCycle makes sure a cycle is open, creating one dated by
// cycle_date (default today) when none is. The existing open cycle is
// returned untouched, so repeated calls are safe.
func (s *Server) handleOpenCycle(w http.ResponseWriter, r *http.Request) {
	var in struct {
		CycleDate string `json:"cycle_date"`
	}
	if err := decodeJSONAllowEmpty(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var date time.Time
	if in.CycleDate != "" {
		parsed, err := time.Parse("2006-01-02", in.CycleDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "cycle_date must be YYYY-MM-DD")
			return
		}
		date = parsed
	}
	cycle, err := s.market.EnsureOpenCycle(r.Context(), date)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cycle)
}

func (s *Server) handleSettle(w http.ResponseWriter, r *http.Request) {
	var in struct {
		WinnerURLs []string `json:"winner_urls"`
		Results    []struct {
			CandidateID string `json:"candidate_id"`
			IsWinner    bool   `json:"is_winner"`
		} `json:"results"`
	}
	if err := decodeJSONAllowEmpty(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cycleID := chi.URLParam(r, "cycleID")
	var summary market.SettlementSummary
	var err error
	if len(in.Results) > 0 {
		results := make([]market.CycleResult, 0, len(in.Results))
		for _, res := range in.Results {
			results = append(results, market.CycleResult{CandidateID: res.CandidateID, IsWinner: res.IsWinner})
		}
		summary, err = s.market.SettleCycle(r.Context(), cycleID, results)
	} else {
		summary, err = s.market.SettleCycleByWinnerURLs(r.Context(), cycleID, in.WinnerURLs)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")
	switch kind {
	case "", "all", "human", "ai", "curation":
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown leaderboard kind %q", kind))
		return
	}
	rows, err := s.market.Leaderboard(r.Context(), kind, queryInt(r, "limit", 20))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
}

func (s *Server) handleModelsList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"models": s.agents.Configs()})
}

func (s *Server) handleModelsReload(w http.ResponseWriter, _ *http.Request) {
	configs, err := s.agents.Reload()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": configs})
}

func (s *Server) handleModelsRun(w http.ResponseWriter, r *http.Request) {
	var in struct {
		CycleID string `json:"cycle_id"`
		Force   bool   `json:"force"`
	}
	if err := decodeJSONAllowEmpty(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.jobs.RunModels(r.Context(), in.CycleID, in.Force)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleJobFaucet(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Force bool `json:"force"`
	}
	if err := decodeJSONAllowEmpty(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.jobs.DailyFaucet(r.Context(), time.Time{}, in.Force)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleJobSync(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Limit int  `json:"limit"`
		Force bool `json:"force"`
	}
	if err := decodeJSONAllowEmpty(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.Limit <= 0 {
		in.Limit = s.cfg.IngestLimit
	}
	out, err := s.jobs.SyncLinks(r.Context(), in.Limit, in.Force)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleJobCuration(w http.ResponseWriter, r *http.Request) {
	var in struct {
		CycleID string `json:"cycle_id"`
		Force   bool   `json:"force"`
	}
	if err := decodeJSONAllowEmpty(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.jobs.CurationAwards(r.Context(), in.CycleID, s.cfg.CurationMinAge, in.Force)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, market.ErrTooManyPicks),
		errors.Is(err, market.ErrDuplicateCandidate),
		errors.Is(err, market.ErrUnknownCandidate),
		errors.Is(err, market.ErrMissingExplanation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, market.ErrCycleClosed),
		errors.Is(err, market.ErrAlreadySettled),
		errors.Is(err, market.ErrCycleNotSettled),
		errors.Is(err, market.ErrTxConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, market.ErrCycleNotFound),
		errors.Is(err, market.ErrCandidateNotFound),
		errors.Is(err, market.ErrUserNotFound),
		errors.Is(err, auth.ErrChallengeNotFound),
		errors.Is(err, auth.ErrPhoneNotLinked):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, auth.ErrNoSession):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, auth.ErrStateInvalid),
		errors.Is(err, auth.ErrChallengeExpired),
		errors.Is(err, auth.ErrChallengeConsumed),
		errors.Is(err, auth.ErrInvalidCode),
		errors.Is(err, auth.ErrTooManyAttempts):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

// decodeJSONAllowEmpty is decodeJSON for endpoints whose body is
// entirely optional, like manual job triggers.
func decodeJSONAllowEmpty(r *http.Request, out any) error {
	err := decodeJSON(r, out)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}

func writeTwiML(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><Response><Message>%s</Message></Response>`, html.EscapeString(message))
}

func sessionToken(r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	return bearerToken(r.Header.Get("Authorization"))
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

var urlPattern = regexp.MustCompile(`https?://[^\s<>"]+`)

// extractFirstURL pulls the first http(s) URL out of free text, with
// trailing sentence punctuation stripped.
func extractFirstURL(text string) string {
	match := urlPattern.FindString(text)
	return strings.TrimRight(match, ".,;:!?)")
}
