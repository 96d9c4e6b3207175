// Package source reads one configured endpoint into raw candidates.
// Readers perform network I/O only and never touch the store; a failure
// reading one source is contained by the orchestrator and contributes
// zero candidates.
package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/mkurimoto/seminar-relay/internal/seminar"
)

// Config controls reader network behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

const defaultTimeout = 30 * time.Second

// PageReader harvests every hyperlink on a page-kind source. The link
// text becomes the candidate title; relative links are resolved against
// the page's own base URL.
type PageReader struct {
	cfg Config
}

// NewPageReader builds a PageReader.
func NewPageReader(cfg Config) *PageReader {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &PageReader{cfg: cfg}
}

// Read fetches the source page and returns one candidate per hyperlink.
func (r *PageReader) Read(ctx context.Context, src seminar.Source) ([]seminar.RawCandidate, error) {
	collector := colly.NewCollector(colly.Async(false))
	collector.IgnoreRobotsTxt = true
	collector.SetRequestTimeout(r.cfg.Timeout)
	if r.cfg.UserAgent != "" {
		collector.UserAgent = r.cfg.UserAgent
	}

	var (
		candidates []seminar.RawCandidate
		fetchErr   error
	)
	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		title := strings.TrimSpace(e.Text)
		link := e.Request.AbsoluteURL(e.Attr("href"))
		if title == "" || link == "" {
			return
		}
		candidates = append(candidates, seminar.RawCandidate{
			Region:    src.Region,
			Title:     title,
			DateText:  title,
			SourceURL: link,
			RawText:   title,
		})
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	if err := visit(ctx, collector, src.URL); err != nil {
		return nil, err
	}
	if fetchErr != nil {
		return nil, fmt.Errorf("page response failed: %w", fetchErr)
	}
	return candidates, nil
}

// visit runs a collector against one URL while honoring ctx cancellation.
func visit(ctx context.Context, collector *colly.Collector, url string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("page fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("page visit failed: %w", err)
		}
		return nil
	}
}
