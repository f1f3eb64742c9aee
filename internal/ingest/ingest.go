// Package ingest turns the upstream blog feed into market state: each
// new "assorted links" post settles the open cycle (the post's links
// are the winners) and opens the next one.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/mmcdole/gofeed"
	"github.com/sony/gobreaker"
	"golang.org/x/net/html"

	"linkmarket/internal/market"
	"linkmarket/internal/metrics"
)

const (
	userAgent    = "linkmarket/1.0"
	maxBodyBytes = 4 << 20
	seenCacheLen = 512
)

var assortedTitleRE = regexp.MustCompile(`(?i)assorted links`)

// skipHosts never become candidates: the source site itself plus
// anything resolving back to it.
var skipHosts = map[string]struct{}{
	"marginalrevolution.com": {},
}

// Post is one feed entry worth ingesting.
type Post struct {
	Title       string
	URL         string
	PublishedAt time.Time
	Links       []string
}

type SettlementNote struct {
	CycleID       string `json:"cycle_id"`
	SourcePostURL string `json:"source_post_url"`
	WinnerCount   int    `json:"winner_count"`
}

type SyncResult struct {
	ProcessedPosts int              `json:"processed_posts"`
	ArchivedLinks  int              `json:"archived_links"`
	Settled        []SettlementNote `json:"settled,omitempty"`
	Bootstrapped   bool             `json:"bootstrapped,omitempty"`
	OpenCycleID    string           `json:"open_cycle_id,omitempty"`
}

// Ingestor fetches and processes the feed. Outbound fetches run
// behind a circuit breaker so a dead upstream fails fast instead of
// stalling every worker tick, and recently processed post URLs are
// cached to skip database lookups.
type Ingestor struct {
	market  *market.Service
	log     *slog.Logger
	feedURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	parser  *gofeed.Parser
	seen    *lru.Cache
}

func New(svc *market.Service, logger *slog.Logger, feedURL string) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	st := gobreaker.Settings{Name: "feed"}
	st.ReadyToTrip = func(counts gobreaker.Counts) bool { return counts.ConsecutiveFailures >= 5 }
	st.Timeout = 2 * time.Minute
	cache, _ := lru.New(seenCacheLen)
	return &Ingestor{
		market:  svc,
		log:     logger,
		feedURL: feedURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		breaker: gobreaker.NewCircuitBreaker(st),
		parser:  gofeed.NewParser(),
		seen:    cache,
	}
}

func (ing *Ingestor) fetch(ctx context.Context, rawURL string) (string, error) {
	body, err := ing.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", userAgent)
		resp, err := ing.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
		}
		b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", rawURL, err)
		}
		return string(b), nil
	})
	if err != nil {
		outcome := "error"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			outcome = "open_circuit"
		}
		metrics.FeedFetches.WithLabelValues(outcome).Inc()
		return "", err
	}
	metrics.FeedFetches.WithLabelValues("ok").Inc()
	return body.(string), nil
}

// RecentAssortedPosts returns up to limit assorted links posts from
// the feed, oldest first, with their outbound links extracted.
func (ing *Ingestor) RecentAssortedPosts(ctx context.Context, limit int) ([]Post, error) {
	if limit <= 0 {
		limit = 10
	}
	body, err := ing.fetch(ctx, ing.feedURL)
	if err != nil {
		return nil, err
	}
	feed, err := ing.parser.ParseString(body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	items := assortedItems(feed, limit)
	posts := make([]Post, 0, len(items))
	for _, item := range items {
		page, err := ing.fetch(ctx, item.Link)
		if err != nil {
			ing.log.Warn("post fetch failed", "url", item.Link, "error", err)
			continue
		}
		posts = append(posts, Post{
			Title:       strings.TrimSpace(item.Title),
			URL:         item.Link,
			PublishedAt: itemPublished(item),
			Links:       OutboundLinks(item.Link, page),
		})
	}
	sort.SliceStable(posts, func(i, j int) bool { return posts[i].PublishedAt.Before(posts[j].PublishedAt) })
	return posts, nil
}

// Sync drives the whole pipeline: fetch recent posts, archive their
// links, and for each post not seen before settle the open cycle with
// that post's links as winners, then open the next cycle dated by the
// post. With no open cycle at all (a fresh database) it skips
// settlement and just opens one.
func (ing *Ingestor) Sync(ctx context.Context, limit int) (SyncResult, error) {
	var res SyncResult
	posts, err := ing.RecentAssortedPosts(ctx, limit)
	if err != nil {
		return res, err
	}

	open, err := ing.market.CurrentCycle(ctx)
	bootstrap := false
	if errors.Is(err, market.ErrCycleNotFound) {
		bootstrap = true
	} else if err != nil {
		return res, err
	}

	var unseen []Post
	for _, p := range posts {
		if ing.seen.Contains(p.URL) {
			continue
		}
		dbSeen, err := ing.market.SourcePostSeen(ctx, p.URL)
		if err != nil {
			return res, err
		}
		if dbSeen {
			ing.seen.Add(p.URL, true)
			continue
		}
		unseen = append(unseen, p)
	}

	if len(unseen) == 0 {
		if bootstrap {
			anchor := time.Now()
			if len(posts) > 0 {
				anchor = posts[len(posts)-1].PublishedAt
			}
			c, err := ing.market.OpenCycle(ctx, anchor)
			if err != nil {
				return res, err
			}
			res.Bootstrapped = true
			res.OpenCycleID = c.ID
		} else {
			res.OpenCycleID = open.ID
		}
		return res, nil
	}

	for _, p := range unseen {
		for _, link := range p.Links {
			if err := ing.market.UpsertArchiveLink(ctx, market.ArchiveLinkInput{
				PostDate:      p.PublishedAt,
				URL:           link,
				SourcePostURL: p.URL,
			}); err != nil {
				ing.log.Warn("archive link failed", "url", link, "error", err)
				continue
			}
			res.ArchivedLinks++
		}
		if !bootstrap {
			summary, err := ing.market.SettleCycleByWinnerURLs(ctx, open.ID, p.Links)
			switch {
			case errors.Is(err, market.ErrAlreadySettled):
				// another worker got there first; keep going
			case err != nil:
				return res, err
			default:
				res.Settled = append(res.Settled, SettlementNote{
					CycleID:       open.ID,
					SourcePostURL: p.URL,
					WinnerCount:   summary.WinnerCount,
				})
			}
			next, err := ing.market.OpenCycle(ctx, p.PublishedAt)
			if err != nil {
				return res, err
			}
			open = next
		}
		if err := ing.market.MarkSourcePostProcessed(ctx, p.URL, p.Title, p.PublishedAt, p.Links); err != nil {
			return res, err
		}
		ing.seen.Add(p.URL, true)
		res.ProcessedPosts++
	}

	if bootstrap {
		c, err := ing.market.OpenCycle(ctx, unseen[len(unseen)-1].PublishedAt)
		if err != nil {
			return res, err
		}
		res.Bootstrapped = true
		res.OpenCycleID = c.ID
	} else {
		res.OpenCycleID = open.ID
	}
	ing.log.Info("feed synced", "processed_posts", res.ProcessedPosts,
		"archived_links", res.ArchivedLinks, "settled", len(res.Settled))
	return res, nil
}

func assortedItems(feed *gofeed.Feed, limit int) []*gofeed.Item {
	var out []*gofeed.Item
	for _, item := range feed.Items {
		if item == nil || item.Link == "" {
			continue
		}
		if !assortedTitleRE.MatchString(item.Title) {
			continue
		}
		out = append(out, item)
		if len(out) == limit {
			break
		}
	}
	return out
}

func itemPublished(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC()
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed.UTC()
	}
	return time.Now().UTC()
}

// OutboundLinks pulls candidate-worthy anchors out of a post page:
// absolute http(s) links pointing away from the post's own site, in
// canonical form, deduplicated in document order.
func OutboundLinks(postURL, page string) []string {
	postHost := market.Domain(postURL)
	var out []string
	seen := make(map[string]struct{})
	z := html.NewTokenizer(strings.NewReader(page))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		name, hasAttr := z.TagName()
		if len(name) != 1 || name[0] != 'a' || !hasAttr {
			continue
		}
		var href string
		for {
			key, val, more := z.TagAttr()
			if string(key) == "href" {
				href = strings.TrimSpace(string(val))
			}
			if !more {
				break
			}
		}
		if !strings.HasPrefix(href, "http://") && !strings.HasPrefix(href, "https://") {
			continue
		}
		canonical, err := market.CanonicalURL(href)
		if err != nil {
			continue
		}
		host := market.Domain(canonical)
		if host == "" || host == postHost {
			continue
		}
		if _, skip := skipHosts[host]; skip {
			continue
		}
		if _, dup := seen[canonical]; dup {
			continue
		}
		seen[canonical] = struct{}{}
		out = append(out, canonical)
	}
	return out
}
