// Package fingerprint computes the deterministic content hash that
// identifies a canonical event for deduplication.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/mkurimoto/seminar-relay/internal/seminar"
)

// Compute hashes (title, event-date-as-text, status) with SHA-256 and
// returns a hex digest. The same three inputs always produce the same
// fingerprint; changing any one of them produces a different one, so a
// status or date change on a re-scraped event is not deduplicated.
func Compute(title, dateText string, status seminar.Status) string {
	sum := sha256.Sum256([]byte(title + dateText + string(status)))
	return hex.EncodeToString(sum[:])
}

// DateText renders an event date the way fingerprints expect: the
// calendar date alone, or "" when the date is unknown.
func DateText(d *time.Time) string {
	if d == nil {
		return ""
	}
	return d.Format("2006-01-02")
}
