package ingest

import (
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
<title>Marginal REVOLUTION</title>
<item>
  <title>Tuesday assorted links</title>
  <link>https://marginalrevolution.com/marginalrevolution/2026/08/tuesday-assorted-links-522.html</link>
  <pubDate>Tue, 25 Aug 2026 11:30:00 +0000</pubDate>
</item>
<item>
  <title>The culture that is Denmark</title>
  <link>https://marginalrevolution.com/marginalrevolution/2026/08/denmark.html</link>
  <pubDate>Tue, 25 Aug 2026 09:00:00 +0000</pubDate>
</item>
<item>
  <title>Monday ASSORTED links</title>
  <link>https://marginalrevolution.com/marginalrevolution/2026/08/monday-assorted-links-521.html</link>
  <pubDate>Mon, 24 Aug 2026 11:30:00 +0000</pubDate>
</item>
</channel></rss>`

func TestAssortedItemsFiltersByTitle(t *testing.T) {
	feed, err := gofeed.NewParser().ParseString(sampleFeed)
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	items := assortedItems(feed, 10)
	if len(items) != 2 {
		t.Fatalf("expected 2 assorted items, got %d", len(items))
	}
	if items[0].Title != "Tuesday assorted links" {
		t.Fatalf("unexpected first item %q", items[0].Title)
	}
	if items[1].Title != "Monday ASSORTED links" {
		t.Fatalf("case-insensitive match failed, got %q", items[1].Title)
	}
}

func TestAssortedItemsHonorsLimit(t *testing.T) {
	feed, err := gofeed.NewParser().ParseString(sampleFeed)
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	items := assortedItems(feed, 1)
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].Title != "Tuesday assorted links" {
		t.Fatalf("expected newest item first, got %q", items[0].Title)
	}
}

func TestItemPublishedPrefersPublishDate(t *testing.T) {
	pub := time.Date(2026, 8, 24, 11, 30, 0, 0, time.UTC)
	upd := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)

	item := &gofeed.Item{PublishedParsed: &pub, UpdatedParsed: &upd}
	if got := itemPublished(item); !got.Equal(pub) {
		t.Fatalf("expected publish date %v, got %v", pub, got)
	}

	item = &gofeed.Item{UpdatedParsed: &upd}
	if got := itemPublished(item); !got.Equal(upd) {
		t.Fatalf("expected update date %v, got %v", upd, got)
	}

	item = &gofeed.Item{}
	if got := itemPublished(item); time.Since(got) > 5*time.Second {
		t.Fatalf("expected roughly now, got %v", got)
	}
}

func TestOutboundLinks(t *testing.T) {
	const postURL = "https://marginalrevolution.com/marginalrevolution/2026/08/tuesday-assorted-links-522.html"
	const page = `<html><body><div class="entry-content">
<p>1. <a href="https://www.ft.com/content/abc123?utm_source=rss">An FT piece</a></p>
<p>2. <a href="http://example.org/paper/">A paper</a></p>
<p>3. <a href="https://marginalrevolution.com/marginalrevolution/2026/08/other.html">earlier post</a></p>
<p>4. <a href="/about">relative</a></p>
<p>5. <a href="https://ft.com/content/abc123">same FT piece again</a></p>
<p>6. <a href="mailto:tips@example.com">mail us</a></p>
</div></body></html>`

	got := OutboundLinks(postURL, page)
	want := []string{
		"https://ft.com/content/abc123",
		"http://example.org/paper",
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d links, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("link %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestOutboundLinksSkipsSourceSiteFromElsewhere(t *testing.T) {
	const postURL = "https://example.com/roundup"
	const page = `<p><a href="https://marginalrevolution.com/some-post">MR post</a>
<a href="https://www.economist.com/leaders/2026/piece">Economist</a></p>`

	got := OutboundLinks(postURL, page)
	if len(got) != 1 || got[0] != "https://economist.com/leaders/2026/piece" {
		t.Fatalf("expected only the economist link, got %v", got)
	}
}

func TestOutboundLinksEmptyPage(t *testing.T) {
	if got := OutboundLinks("https://example.com/post", ""); len(got) != 0 {
		t.Fatalf("expected no links, got %v", got)
	}
}
