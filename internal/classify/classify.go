// Package classify decides which scraped text is worth keeping: keyword
// relevance, status detection, best-effort location and date extraction,
// and the shared importance predicate used both when events are gated
// for persistence and when they are re-read for routing.
package classify

import (
	"regexp"
	"strings"
	"time"

	"github.com/mkurimoto/seminar-relay/internal/seminar"
)

// reiwaOffset converts a Reiwa era year to a calendar year (Reiwa 1 = 2019).
const reiwaOffset = 2018

// DefaultKeywords is the relevance filter: a candidate is kept only if
// its text contains at least one of these, case-insensitively.
var DefaultKeywords = []string{
	"海技士セミナー", "海事セミナー", "めざせ！海技者", "船員就職",
	"海技者", "船員セミナー", "海運セミナー", "海事講習",
	"船員養成", "海技免許", "海技資格",
}

// DefaultImportanceKeywords marks an event important regardless of its
// detected status.
var DefaultImportanceKeywords = []string{"募集開始", "満員", "締切", "開催予定"}

// statusRule maps one substring to a status. Rules are evaluated in
// declaration order and the first match wins, so tighter phrases such as
// "満員" must be declared ahead of looser ones such as "募集中".
type statusRule struct {
	substr string
	status seminar.Status
}

var statusTable = []statusRule{
	{"満員", seminar.StatusClosed},
	{"定員満了", seminar.StatusClosed},
	{"締切", seminar.StatusClosed},
	{"受付終了", seminar.StatusClosed},
	{"申込終了", seminar.StatusClosed},
	{"期限切れ", seminar.StatusExpired},
	{"募集開始", seminar.StatusOpen},
	{"募集中", seminar.StatusOpen},
	{"受付開始", seminar.StatusOpen},
	{"申込開始", seminar.StatusOpen},
	{"募集予定", seminar.StatusPending},
	{"開催予定", seminar.StatusScheduled},
	{"開催中", seminar.StatusScheduled},
	{"開催終了", seminar.StatusHeld},
	{"終了", seminar.StatusHeld},
	{"中止", seminar.StatusCancelled},
	{"延期", seminar.StatusOther},
}

// importantStatuses is the "actionable" subset of the importance predicate.
var importantStatuses = map[seminar.Status]bool{
	seminar.StatusOpen:      true,
	seminar.StatusClosed:    true,
	seminar.StatusScheduled: true,
}

var locationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(東京|大阪|神戸|福岡|仙台|札幌|名古屋|広島|高松|那覇)`),
	regexp.MustCompile(`(会議室|ホール|センター|ビル|会館)`),
	regexp.MustCompile(`IN\s+([A-Z]+)`),
	regexp.MustCompile(`in\s+([^\s]+)`),
}

// Date notations in priority order: era-based first, then four-digit
// year forms, then month/day-only (current year assumed).
var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`令和(\d{1,2})年(\d{1,2})月(\d{1,2})日`),
	regexp.MustCompile(`(\d{4})年(\d{1,2})月(\d{1,2})日`),
	regexp.MustCompile(`(\d{4})/(\d{1,2})/(\d{1,2})`),
	regexp.MustCompile(`(\d{4})-(\d{1,2})-(\d{1,2})`),
	regexp.MustCompile(`(\d{1,2})月(\d{1,2})日`),
}

// Classifier applies keyword and pattern tables to raw candidate text.
type Classifier struct {
	keywords           []string
	importanceKeywords []string
	loc                *time.Location
}

// Config overrides the built-in keyword sets. Empty slices keep defaults.
type Config struct {
	Keywords           []string
	ImportanceKeywords []string
	Location           *time.Location
}

// New builds a Classifier.
func New(cfg Config) *Classifier {
	c := &Classifier{
		keywords:           cfg.Keywords,
		importanceKeywords: cfg.ImportanceKeywords,
		loc:                cfg.Location,
	}
	if len(c.keywords) == 0 {
		c.keywords = DefaultKeywords
	}
	if len(c.importanceKeywords) == 0 {
		c.importanceKeywords = DefaultImportanceKeywords
	}
	if c.loc == nil {
		c.loc = time.UTC
	}
	return c
}

// Relevant reports whether text contains at least one domain keyword.
// Matching is a case-insensitive substring check, not tokenized.
func (c *Classifier) Relevant(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range c.keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// DetectStatus scans the ordered status table and returns the first
// matching status, defaulting to open.
func (c *Classifier) DetectStatus(text string) seminar.Status {
	for _, rule := range statusTable {
		if strings.Contains(text, rule.substr) {
			return rule.status
		}
	}
	return seminar.StatusOpen
}

// ExtractLocation returns the first place or venue match in text, or "".
func (c *Classifier) ExtractLocation(text string) string {
	for _, p := range locationPatterns {
		if m := p.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	return ""
}

// ExtractDate scans text for the first recognizable date notation and
// resolves it to midnight in the classifier's zone. Month/day-only
// notations assume now's year. Unparseable text yields nil, never an
// error.
func (c *Classifier) ExtractDate(text string, now time.Time) *time.Time {
	for i, p := range datePatterns {
		m := p.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		var year, month, day int
		switch {
		case i == 0:
			year = reiwaOffset + atoi(m[1])
			month = atoi(m[2])
			day = atoi(m[3])
		case len(m) == 4:
			year = atoi(m[1])
			month = atoi(m[2])
			day = atoi(m[3])
		default:
			year = now.Year()
			month = atoi(m[1])
			day = atoi(m[2])
		}
		if month < 1 || month > 12 || day < 1 || day > 31 {
			continue
		}
		d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, c.loc)
		// time.Date normalizes overflow (e.g. Feb 30); reject those.
		if d.Day() != day || d.Month() != time.Month(month) {
			continue
		}
		return &d
	}
	return nil
}

// Upcoming reports whether an event date is today or later relative to
// now. An unknown date is treated as upcoming.
func (c *Classifier) Upcoming(eventDate *time.Time, now time.Time) bool {
	if eventDate == nil {
		return true
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, c.loc)
	return !eventDate.Before(today)
}

// Important is the single importance predicate: an event is important if
// its status is actionable, or its title/raw text contains an importance
// keyword. The same predicate gates persistence and filters events
// re-read for routing.
func (c *Classifier) Important(status seminar.Status, title, rawText string) bool {
	if importantStatuses[status] {
		return true
	}
	text := strings.ToLower(title + " " + rawText)
	for _, kw := range c.importanceKeywords {
		if strings.Contains(text, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}
