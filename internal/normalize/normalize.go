// Package normalize turns a raw candidate plus its classifier outputs
// into a canonical event ready for the dedup gate.
package normalize

import (
	"fmt"
	"time"

	"github.com/mkurimoto/seminar-relay/internal/fingerprint"
	"github.com/mkurimoto/seminar-relay/internal/seminar"
)

// Field bounds match the persisted column widths.
const (
	maxTitleRunes    = 255
	maxLocationRunes = 255
)

// Event builds a canonical event from a candidate and its classifier
// outputs. Title and location are truncated to their bounded lengths and
// the content fingerprint is computed over (title, event date, status).
// Region, source URL, and raw text pass through unchanged. A candidate
// without title or region is a caller bug, reported as an error rather
// than persisted half-formed. No I/O happens here.
func Event(c seminar.RawCandidate, status seminar.Status, eventDate *time.Time, location string) (seminar.Event, error) {
	if c.Title == "" {
		return seminar.Event{}, fmt.Errorf("normalize: candidate %q has no title", c.SourceURL)
	}
	if c.Region == "" {
		return seminar.Event{}, fmt.Errorf("normalize: candidate %q has no region", c.SourceURL)
	}
	title := truncate(c.Title, maxTitleRunes)
	return seminar.Event{
		Region:      c.Region,
		Title:       title,
		EventDate:   eventDate,
		Location:    truncate(location, maxLocationRunes),
		Status:      status,
		SourceURL:   c.SourceURL,
		RawText:     c.RawText,
		Fingerprint: fingerprint.Compute(title, fingerprint.DateText(eventDate), status),
	}, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
