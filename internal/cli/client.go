package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) Me(ctx context.Context, token string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/api/me", token, nil, &out)
	return out, err
}

func (c *Client) Logout(ctx context.Context, token string) error {
	return c.jsonRequest(ctx, http.MethodPost, "/auth/logout", token, nil, nil)
}

func (c *Client) CurrentCycle(ctx context.Context, token string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/api/cycles/current", token, nil, &out)
	return out, err
}

func (c *Client) GetCycle(ctx context.Context, token, cycleID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/api/cycles/"+url.PathEscape(cycleID), token, nil, &out)
	return out, err
}

func (c *Client) ListCycles(ctx context.Context, token string, limit int) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/api/cycles?limit="+strconv.Itoa(limit), token, nil, &out)
	return out, err
}

func (c *Client) ListCandidates(ctx context.Context, token, cycleID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/api/cycles/"+url.PathEscape(cycleID)+"/candidates", token, nil, &out)
	return out, err
}

func (c *Client) SubmitLink(ctx context.Context, token, rawURL, title string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/api/submissions/web", token, map[string]any{
		"url":   rawURL,
		"title": title,
	}, &out)
	return out, err
}

func (c *Client) GetPicks(ctx context.Context, token, cycleID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/api/cycles/"+url.PathEscape(cycleID)+"/picks", token, nil, &out)
	return out, err
}

func (c *Client) PutPicks(ctx context.Context, token, cycleID string, candidateIDs []string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPut, "/api/cycles/"+url.PathEscape(cycleID)+"/picks", token, map[string]any{
		"candidate_ids": candidateIDs,
	}, &out)
	return out, err
}

func (c *Client) Probabilities(ctx context.Context, token, cycleID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/api/cycles/"+url.PathEscape(cycleID)+"/probabilities", token, nil, &out)
	return out, err
}

func (c *Client) Results(ctx context.Context, token, cycleID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/api/cycles/"+url.PathEscape(cycleID)+"/results", token, nil, &out)
	return out, err
}

func (c *Client) CurationRewards(ctx context.Context, token, cycleID string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/api/cycles/"+url.PathEscape(cycleID)+"/curation", token, nil, &out)
	return out, err
}

func (c *Client) Leaderboard(ctx context.Context, token, kind string, limit int) (map[string]any, error) {
	path := "/api/leaderboard?limit=" + strconv.Itoa(limit)
	if kind != "" {
		path += "&kind=" + url.QueryEscape(kind)
	}
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, path, token, nil, &out)
	return out, err
}

func (c *Client) Models(ctx context.Context, token string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/api/models", token, nil, &out)
	return out, err
}

// Do replays an arbitrary queued request; the offline queue stores
// method, path, and body verbatim.
func (c *Client) Do(ctx context.Context, method, path, token string, body map[string]any) (map[string]any, error) {
	var out map[string]any
	var in any
	if body != nil {
		in = body
	}
	err := c.jsonRequest(ctx, method, path, token, in, &out)
	return out, err
}

func (c *Client) jsonRequest(ctx context.Context, method, path, token string, in any, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("api status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
