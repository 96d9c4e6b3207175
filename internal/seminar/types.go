package seminar

import "time"

// SourceKind distinguishes how a source endpoint is read.
type SourceKind string

// Source kinds supported by the reader layer.
const (
	SourceKindFeed SourceKind = "feed"
	SourceKindPage SourceKind = "page"
)

// Source is one regional authority endpoint. Sources are reference data:
// they are loaded from configuration and never written during a run.
type Source struct {
	Region string     `mapstructure:"region"`
	URL    string     `mapstructure:"url"`
	Kind   SourceKind `mapstructure:"kind"`
	Active bool       `mapstructure:"active"`
}

// RawCandidate is the ephemeral record a reader produces for each feed
// entry or page hyperlink. It has no identity of its own and is discarded
// once a canonical event has been built from it.
type RawCandidate struct {
	Region    string
	Title     string
	DateText  string
	Location  string
	SourceURL string
	RawText   string

	// Published is set for feed entries that carry a timestamp.
	Published *time.Time
}

// Status is the lifecycle state detected from an announcement's text.
type Status string

// Status values persisted with canonical events.
const (
	StatusOpen      Status = "open"
	StatusPending   Status = "pending"
	StatusClosed    Status = "closed"
	StatusExpired   Status = "expired"
	StatusScheduled Status = "scheduled"
	StatusHeld      Status = "held"
	StatusCancelled Status = "cancelled"
	StatusOther     Status = "other"
)

// Event is the durable, normalized representation of one announcement.
// The fingerprint is a deterministic hash of (title, event date, status),
// so a verbatim re-scrape collapses to one row while a status or date
// change produces a new one.
type Event struct {
	ID          int64
	Region      string
	Title       string
	EventDate   *time.Time
	Location    string
	Status      Status
	SourceURL   string
	RawText     string
	Fingerprint string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Channel identifies a delivery mechanism for a route.
type Channel string

// Delivery channels supported by the router.
const (
	ChannelEmail Channel = "email"
	ChannelChat  Channel = "chat"
)

// Subscriber is a named recipient bound to exactly one region.
type Subscriber struct {
	ID     int64
	Name   string
	Region string
}

// Route is one (channel, address) delivery target for a subscriber.
type Route struct {
	ID           int64
	SubscriberID int64
	Channel      Channel
	Address      string
}

// Outcome records whether a single dispatch succeeded.
type Outcome string

// Dispatch outcomes written to the notification log.
const (
	OutcomeOK   Outcome = "ok"
	OutcomeFail Outcome = "fail"
)

// NotificationRecord is one append-only notification log row. Rows are
// never mutated after insert; retries create new rows.
type NotificationRecord struct {
	EventID *int64
	Channel Channel
	Address string
	Outcome Outcome
	Error   string
	SentAt  time.Time
}

// Counters aggregates one run's results for the end-of-run log line.
type Counters struct {
	Collected    int
	NewImportant int
	Sent         int
	Failed       int
}

// Message is the rendered content handed to a channel sender. Chat
// senders use only the text body.
type Message struct {
	Subject  string
	HTMLBody string
	TextBody string
}
