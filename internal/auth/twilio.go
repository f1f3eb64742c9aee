package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const twilioVerifyBase = "https://verify.twilio.com/v2/Services"

// TwilioClient sends and checks SMS verification codes through the
// Twilio Verify API.
type TwilioClient struct {
	accountSID string
	authToken  string
	verifySID  string
	httpClient *http.Client
}

func NewTwilioClient(accountSID, authToken, verifySID string) *TwilioClient {
	return &TwilioClient{
		accountSID: accountSID,
		authToken:  authToken,
		verifySID:  verifySID,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

// StartVerification asks Twilio to text a code to the number and
// returns the verification SID.
func (c *TwilioClient) StartVerification(ctx context.Context, phone string) (string, error) {
	form := url.Values{}
	form.Set("To", phone)
	form.Set("Channel", "sms")
	var out struct {
		SID    string `json:"sid"`
		Status string `json:"status"`
	}
	endpoint := twilioVerifyBase + "/" + c.verifySID + "/Verifications"
	if err := c.postForm(ctx, endpoint, form, &out); err != nil {
		return "", err
	}
	if out.SID == "" {
		return "", fmt.Errorf("twilio verification response had no sid")
	}
	return out.SID, nil
}

// CheckVerification reports whether the submitted code matches.
func (c *TwilioClient) CheckVerification(ctx context.Context, phone, code string) (bool, error) {
	form := url.Values{}
	form.Set("To", phone)
	form.Set("Code", code)
	var out struct {
		Status string `json:"status"`
	}
	endpoint := twilioVerifyBase + "/" + c.verifySID + "/VerificationCheck"
	if err := c.postForm(ctx, endpoint, form, &out); err != nil {
		return false, err
	}
	return out.Status == "approved", nil
}

func (c *TwilioClient) postForm(ctx context.Context, endpoint string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSID, c.authToken)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("twilio request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("twilio status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
