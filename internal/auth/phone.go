package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// NormalizePhone reduces a phone number to E.164-ish form: digits
// only, a bare 10-digit US number gains its country code, and the
// result is prefixed with +.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) == 10 {
		digits = "1" + digits
	}
	if len(digits) < 11 || len(digits) > 15 {
		return "", errors.New("phone number must have 10 to 15 digits")
	}
	return "+" + digits, nil
}

// randomCode draws a 6-digit verification code.
func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
