package seminar

import (
	"context"
	"time"
)

// Reader turns one source endpoint into a finite list of raw candidates.
// Implementations perform network I/O only; they never touch the store.
type Reader interface {
	Read(ctx context.Context, src Source) ([]RawCandidate, error)
}

// Store is the persistence layer for canonical events, subscriber
// routing, and the notification log. A store that cannot be reached at
// run start is the only error class that aborts a run.
type Store interface {
	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// InsertEvent persists a canonical event. A conflict on source URL or
	// fingerprint is a benign duplicate-insert race: inserted is false and
	// err is nil.
	InsertEvent(ctx context.Context, ev Event) (id int64, inserted bool, err error)

	// FingerprintSeenSince reports whether a fingerprint exists among
	// events created at or after the cutoff.
	FingerprintSeenSince(ctx context.Context, fingerprint string, cutoff time.Time) (bool, error)

	// EventsCreatedSince returns a region's events created at or after the
	// cutoff, newest first. Importance is the caller's concern so the same
	// predicate is applied at write time and read time.
	EventsCreatedSince(ctx context.Context, region string, cutoff time.Time) ([]Event, error)

	// MostRecentEvents returns up to n events, newest first.
	MostRecentEvents(ctx context.Context, n int) ([]Event, error)

	// SubscribersIn returns the subscribers bound to a region.
	SubscribersIn(ctx context.Context, region string) ([]Subscriber, error)

	// RoutesFor returns a subscriber's delivery routes.
	RoutesFor(ctx context.Context, subscriberID int64) ([]Route, error)

	// AllRoutes returns every routing entry across all subscribers.
	AllRoutes(ctx context.Context) ([]Route, error)

	// AppendNotification writes one notification log row.
	AppendNotification(ctx context.Context, rec NotificationRecord) error

	// CountFailedNotificationsSince counts failed dispatches logged at or
	// after the cutoff.
	CountFailedNotificationsSince(ctx context.Context, cutoff time.Time) (int, error)
}

// Sender delivers a rendered message to one address on one channel.
type Sender interface {
	Channel() Channel
	Send(ctx context.Context, address string, msg Message) error
}

// Clock returns the current time in the system's configured zone.
type Clock interface {
	Now() time.Time
}
