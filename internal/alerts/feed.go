package alerts

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

const maxNoticeRunes = 600

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Feed reads service notices from an RSS or Atom feed. The newest item is
// the current alert; an empty feed means all clear.
type Feed struct {
	client  HTTPClient
	url     string
	timeout time.Duration
}

// NewFeed creates a Feed source for url.
func NewFeed(client HTTPClient, url string, timeout time.Duration) *Feed {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Feed{
		client:  client,
		url:     url,
		timeout: timeout,
	}
}

// Current downloads the feed and renders its newest item.
func (f *Feed) Current(ctx context.Context) (string, error) {
	feed, err := f.fetch(ctx)
	if err != nil {
		return "", err
	}
	item := newest(feed.Items)
	if item == nil {
		return AllClear, nil
	}

	title := strings.TrimSpace(item.Title)
	desc := strings.TrimSpace(item.Description)
	if r := []rune(desc); len(r) > maxNoticeRunes {
		desc = string(r[:maxNoticeRunes]) + "..."
	}
	switch {
	case desc == "":
		return title, nil
	case title == "":
		return desc, nil
	default:
		return title + "\n\n" + desc, nil
	}
}

func (f *Feed) fetch(ctx context.Context) (*gofeed.Feed, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "SGBusBot/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return feed, nil
}

// newest picks the item with the latest published or updated date, falling
// back to the first item when none carry a date.
func newest(items []*gofeed.Item) *gofeed.Item {
	var best *gofeed.Item
	var bestAt time.Time
	for _, it := range items {
		at := itemTime(it)
		if best == nil || at.After(bestAt) {
			best, bestAt = it, at
		}
	}
	return best
}

func itemTime(it *gofeed.Item) time.Time {
	if it.PublishedParsed != nil {
		return *it.PublishedParsed
	}
	if it.UpdatedParsed != nil {
		return *it.UpdatedParsed
	}
	return time.Time{}
}
