package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNoSession         = errors.New("no valid session")
	ErrStateInvalid      = errors.New("login state is invalid or expired")
	ErrChallengeNotFound = errors.New("verification challenge not found")
	ErrChallengeExpired  = errors.New("verification challenge expired")
	ErrChallengeConsumed = errors.New("verification challenge already used")
	ErrInvalidCode       = errors.New("verification code does not match")
	ErrTooManyAttempts   = errors.New("too many verification attempts")
	ErrPhoneNotLinked    = errors.New("phone number is not linked to any account")
)

const (
	challengeTTL         = 10 * time.Minute
	stateTTL             = 10 * time.Minute
	maxChallengeAttempts = 5
)

// Store keeps sessions, login states and phone verification state in
// Postgres. Session tokens are handed to clients raw and stored only
// as SHA-256 hashes.
type Store struct {
	db  *pgxpool.Pool
	log *slog.Logger
}

func NewStore(db *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, log: logger}
}

func newID(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// CreateSession issues a fresh session token for a user.
func (s *Store) CreateSession(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO sessions (token_hash, user_id, expires_at) VALUES ($1, $2, $3)`,
		hashToken(token), userID, time.Now().Add(ttl))
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	return token, nil
}

// SessionUserID resolves a session token to its user, pruning the row
// when it has expired.
func (s *Store) SessionUserID(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrNoSession
	}
	h := hashToken(token)
	var userID string
	var expires time.Time
	err := s.db.QueryRow(ctx,
		`SELECT user_id, expires_at FROM sessions WHERE token_hash = $1`, h).Scan(&userID, &expires)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNoSession
	}
	if err != nil {
		return "", fmt.Errorf("load session: %w", err)
	}
	if time.Now().After(expires) {
		if _, derr := s.db.Exec(ctx, `DELETE FROM sessions WHERE token_hash = $1`, h); derr != nil {
			s.log.Warn("prune expired session failed", "error", derr)
		}
		return "", ErrNoSession
	}
	return userID, nil
}

func (s *Store) DeleteSession(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	_, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE token_hash = $1`, hashToken(token))
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// CreateLoginState stores a single-use anti-forgery state for the
// OAuth redirect dance.
func (s *Store) CreateLoginState(ctx context.Context, redirectTo string) (string, error) {
	if redirectTo == "" || !strings.HasPrefix(redirectTo, "/") {
		redirectTo = "/"
	}
	state, err := generateToken()
	if err != nil {
		return "", err
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO oauth_states (state, redirect_to, expires_at) VALUES ($1, $2, $3)`,
		state, redirectTo, time.Now().Add(stateTTL))
	if err != nil {
		return "", fmt.Errorf("insert login state: %w", err)
	}
	return state, nil
}

// ConsumeLoginState burns a state and returns its redirect target.
// A state can be consumed exactly once and only before it expires.
func (s *Store) ConsumeLoginState(ctx context.Context, state string) (string, error) {
	if state == "" {
		return "", ErrStateInvalid
	}
	var redirectTo string
	var expires time.Time
	err := s.db.QueryRow(ctx,
		`DELETE FROM oauth_states WHERE state = $1 RETURNING redirect_to, expires_at`, state).
		Scan(&redirectTo, &expires)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrStateInvalid
	}
	if err != nil {
		return "", fmt.Errorf("consume login state: %w", err)
	}
	if time.Now().After(expires) {
		return "", ErrStateInvalid
	}
	return redirectTo, nil
}

type PhoneChallenge struct {
	ID          string    `json:"id"`
	UserID      string    `json:"-"`
	PhoneNumber string    `json:"phone_number"`
	Provider    string    `json:"provider"`
	Status      string    `json:"status"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// StartPhoneChallenge begins linking a phone number to an account.
// With Twilio configured the code is delivered by SMS; otherwise a
// local code is generated and returned so development setups can
// complete the flow without a provider.
func (s *Store) StartPhoneChallenge(ctx context.Context, userID, rawPhone string, tw *TwilioClient) (PhoneChallenge, string, error) {
	phone, err := NormalizePhone(rawPhone)
	if err != nil {
		return PhoneChallenge{}, "", err
	}
	if _, err := s.db.Exec(ctx,
		`UPDATE phone_challenges SET status = 'EXPIRED' WHERE user_id = $1 AND phone_number = $2 AND status = 'PENDING'`,
		userID, phone); err != nil {
		return PhoneChallenge{}, "", fmt.Errorf("expire stale challenges: %w", err)
	}
	ch := PhoneChallenge{
		ID:          newID("pvc"),
		UserID:      userID,
		PhoneNumber: phone,
		Status:      "PENDING",
		ExpiresAt:   time.Now().Add(challengeTTL),
	}
	var providerSID, codeHash any
	var devCode string
	if tw != nil {
		ch.Provider = "twilio"
		sid, err := tw.StartVerification(ctx, phone)
		if err != nil {
			return PhoneChallenge{}, "", err
		}
		providerSID = sid
	} else {
		ch.Provider = "local"
		code, err := randomCode()
		if err != nil {
			return PhoneChallenge{}, "", err
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
		if err != nil {
			return PhoneChallenge{}, "", fmt.Errorf("hash code: %w", err)
		}
		codeHash = string(hashed)
		devCode = code
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO phone_challenges (id, user_id, phone_number, provider, provider_sid, code_hash, status, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, 'PENDING', $7)`,
		ch.ID, ch.UserID, ch.PhoneNumber, ch.Provider, providerSID, codeHash, ch.ExpiresAt)
	if err != nil {
		return PhoneChallenge{}, "", fmt.Errorf("insert challenge: %w", err)
	}
	s.log.Info("phone challenge started", "user_id", userID, "provider", ch.Provider)
	return ch, devCode, nil
}

// VerifyPhoneChallenge checks a submitted code and, on success, links
// the phone number to the challenge's user. The returned string is the
// normalized number that was linked.
func (s *Store) VerifyPhoneChallenge(ctx context.Context, userID, challengeID, code string, tw *TwilioClient) (string, error) {
	var (
		phone, provider, status string
		providerSID, codeHash   *string
		attempts                int
		expires                 time.Time
	)
	err := s.db.QueryRow(ctx,
		`SELECT phone_number, provider, provider_sid, code_hash, status, attempts, expires_at
		 FROM phone_challenges WHERE id = $1 AND user_id = $2`, challengeID, userID).
		Scan(&phone, &provider, &providerSID, &codeHash, &status, &attempts, &expires)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrChallengeNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load challenge: %w", err)
	}
	if status != "PENDING" {
		return "", ErrChallengeConsumed
	}
	if time.Now().After(expires) {
		if _, uerr := s.db.Exec(ctx,
			`UPDATE phone_challenges SET status = 'EXPIRED' WHERE id = $1`, challengeID); uerr != nil {
			s.log.Warn("expire challenge failed", "error", uerr)
		}
		return "", ErrChallengeExpired
	}
	if attempts >= maxChallengeAttempts {
		return "", ErrTooManyAttempts
	}
	if _, err := s.db.Exec(ctx,
		`UPDATE phone_challenges SET attempts = attempts + 1 WHERE id = $1`, challengeID); err != nil {
		return "", fmt.Errorf("count attempt: %w", err)
	}

	var approved bool
	switch provider {
	case "twilio":
		if tw == nil {
			return "", fmt.Errorf("challenge requires twilio but none is configured")
		}
		approved, err = tw.CheckVerification(ctx, phone, code)
		if err != nil {
			return "", err
		}
	default:
		if codeHash == nil {
			return "", ErrChallengeNotFound
		}
		approved = bcrypt.CompareHashAndPassword([]byte(*codeHash), []byte(code)) == nil
	}
	if !approved {
		return "", ErrInvalidCode
	}

	if _, err := s.db.Exec(ctx,
		`UPDATE phone_challenges SET status = 'VERIFIED' WHERE id = $1`, challengeID); err != nil {
		return "", fmt.Errorf("mark challenge verified: %w", err)
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO user_phones (phone_number, user_id) VALUES ($1, $2)
		 ON CONFLICT (phone_number) DO UPDATE SET user_id = EXCLUDED.user_id, linked_at = now()`,
		phone, userID)
	if err != nil {
		return "", fmt.Errorf("link phone: %w", err)
	}
	s.log.Info("phone linked", "user_id", userID)
	return phone, nil
}

// UserIDByPhone resolves a linked phone number to its account, used by
// the SMS submission webhook.
func (s *Store) UserIDByPhone(ctx context.Context, rawPhone string) (string, error) {
	phone, err := NormalizePhone(rawPhone)
	if err != nil {
		return "", ErrPhoneNotLinked
	}
	var userID string
	err = s.db.QueryRow(ctx,
		`SELECT user_id FROM user_phones WHERE phone_number = $1`, phone).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrPhoneNotLinked
	}
	if err != nil {
		return "", fmt.Errorf("lookup phone: %w", err)
	}
	return userID, nil
}
