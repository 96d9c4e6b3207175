package source

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/mkurimoto/seminar-relay/internal/seminar"
)

// FeedReader turns each entry of a feed-kind source into one candidate.
// A malformed feed fails this source only; the orchestrator logs it and
// moves on to the next source.
type FeedReader struct {
	cfg    Config
	parser *gofeed.Parser
}

// NewFeedReader builds a FeedReader.
func NewFeedReader(cfg Config) *FeedReader {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: cfg.Timeout}
	if cfg.UserAgent != "" {
		parser.UserAgent = cfg.UserAgent
	}
	return &FeedReader{cfg: cfg, parser: parser}
}

// Read fetches and parses the feed, returning one candidate per entry.
func (r *FeedReader) Read(ctx context.Context, src seminar.Source) ([]seminar.RawCandidate, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	feed, err := r.parser.ParseURLWithContext(src.URL, fetchCtx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", src.URL, err)
	}

	candidates := make([]seminar.RawCandidate, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil || item.Title == "" {
			continue
		}
		raw := item.Description
		if raw == "" {
			raw = item.Title
		}
		candidates = append(candidates, seminar.RawCandidate{
			Region:    src.Region,
			Title:     item.Title,
			DateText:  item.Published,
			SourceURL: item.Link,
			RawText:   raw,
			Published: publishedAt(item),
		})
	}
	return candidates, nil
}

func publishedAt(item *gofeed.Item) *time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed
	}
	return item.UpdatedParsed
}
