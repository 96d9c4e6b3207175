// Package store provides the Postgres-backed persistence layer for
// canonical events, subscriber routing, and the notification log.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mkurimoto/seminar-relay/internal/seminar"
)

// DB is the subset of pgxpool.Pool the store uses. pgxmock satisfies it
// in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// Postgres implements seminar.Store on a pgx connection pool.
type Postgres struct {
	db DB
}

// New connects a pool using the provided config.
func New(ctx context.Context, cfg Config) (*Postgres, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Postgres{db: pool}, nil
}

// NewWithDB constructs a store from an existing pool (primarily for testing).
func NewWithDB(db DB) (*Postgres, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	return &Postgres{db: db}, nil
}

// Close releases the underlying pool resources.
func (s *Postgres) Close() {
	if s == nil || s.db == nil {
		return
	}
	s.db.Close()
}

// Ping verifies the store is reachable.
func (s *Postgres) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// EnsureSchema creates the tables if they do not exist and seeds the
// region reference rows.
func (s *Postgres) EnsureSchema(ctx context.Context, regions []string) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	for _, name := range regions {
		if _, err := s.db.Exec(ctx,
			`INSERT INTO regions (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, name); err != nil {
			return fmt.Errorf("seed region %q: %w", name, err)
		}
	}
	return nil
}

const insertEventSQL = `
INSERT INTO seminars (region_id, title, event_date, location, status, source_url, raw_text, hash)
SELECT r.region_id, $2, $3, $4, $5, $6, $7, $8
FROM regions r WHERE r.name = $1
ON CONFLICT DO NOTHING
RETURNING seminar_id`

// InsertEvent persists one canonical event. A unique-constraint conflict
// on source URL or fingerprint is the benign duplicate-insert race: it
// reports inserted=false without error. A region missing from the
// reference table would look identical, so that case is checked and
// reported as an error instead.
func (s *Postgres) InsertEvent(ctx context.Context, ev seminar.Event) (int64, bool, error) {
	var id int64
	err := s.db.QueryRow(ctx, insertEventSQL,
		ev.Region,
		ev.Title,
		ev.EventDate,
		nullable(ev.Location),
		string(ev.Status),
		ev.SourceURL,
		ev.RawText,
		ev.Fingerprint,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		var regionKnown bool
		if checkErr := s.db.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM regions WHERE name = $1)`, ev.Region,
		).Scan(&regionKnown); checkErr != nil {
			return 0, false, fmt.Errorf("check region %q: %w", ev.Region, checkErr)
		}
		if !regionKnown {
			return 0, false, fmt.Errorf("insert event: region %q is not seeded", ev.Region)
		}
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("insert event: %w", err)
	}
	return id, true, nil
}

// FingerprintSeenSince reports whether the fingerprint exists among
// events created at or after the cutoff.
func (s *Postgres) FingerprintSeenSince(ctx context.Context, fingerprint string, cutoff time.Time) (bool, error) {
	var seen bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM seminars WHERE hash = $1 AND created_at >= $2)`,
		fingerprint, cutoff,
	).Scan(&seen)
	if err != nil {
		return false, fmt.Errorf("check fingerprint: %w", err)
	}
	return seen, nil
}

const eventColumns = `s.seminar_id, r.name, s.title, s.event_date, s.location, s.status, s.source_url, s.raw_text, s.hash, s.created_at, s.updated_at`

// EventsCreatedSince returns a region's events created at or after the
// cutoff, newest first.
func (s *Postgres) EventsCreatedSince(ctx context.Context, region string, cutoff time.Time) ([]seminar.Event, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+eventColumns+`
		 FROM seminars s JOIN regions r ON s.region_id = r.region_id
		 WHERE r.name = $1 AND s.created_at >= $2
		 ORDER BY s.created_at DESC`,
		region, cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("query events for %s: %w", region, err)
	}
	return scanEvents(rows)
}

// MostRecentEvents returns up to n events, newest first.
func (s *Postgres) MostRecentEvents(ctx context.Context, n int) ([]seminar.Event, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+eventColumns+`
		 FROM seminars s JOIN regions r ON s.region_id = r.region_id
		 ORDER BY s.created_at DESC LIMIT $1`,
		n,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent events: %w", err)
	}
	return scanEvents(rows)
}

// SubscribersIn returns the subscribers bound to a region.
func (s *Postgres) SubscribersIn(ctx context.Context, region string) ([]seminar.Subscriber, error) {
	rows, err := s.db.Query(ctx,
		`SELECT sub.subscriber_id, sub.name, r.name
		 FROM subscribers sub JOIN regions r ON sub.region_id = r.region_id
		 WHERE r.name = $1
		 ORDER BY sub.subscriber_id`,
		region,
	)
	if err != nil {
		return nil, fmt.Errorf("query subscribers for %s: %w", region, err)
	}
	defer rows.Close()

	var subs []seminar.Subscriber
	for rows.Next() {
		var sub seminar.Subscriber
		if err := rows.Scan(&sub.ID, &sub.Name, &sub.Region); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscribers: %w", err)
	}
	return subs, nil
}

// RoutesFor returns a subscriber's delivery routes.
func (s *Postgres) RoutesFor(ctx context.Context, subscriberID int64) ([]seminar.Route, error) {
	rows, err := s.db.Query(ctx,
		`SELECT routing_id, subscriber_id, channel, address
		 FROM subscriber_routing WHERE subscriber_id = $1
		 ORDER BY routing_id`,
		subscriberID,
	)
	if err != nil {
		return nil, fmt.Errorf("query routes for subscriber %d: %w", subscriberID, err)
	}
	return scanRoutes(rows)
}

// AllRoutes returns every routing entry across all subscribers.
func (s *Postgres) AllRoutes(ctx context.Context) ([]seminar.Route, error) {
	rows, err := s.db.Query(ctx,
		`SELECT routing_id, subscriber_id, channel, address
		 FROM subscriber_routing ORDER BY routing_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query all routes: %w", err)
	}
	return scanRoutes(rows)
}

// AppendNotification writes one notification log row. Rows are
// append-only; retries insert new rows rather than updating old ones.
func (s *Postgres) AppendNotification(ctx context.Context, rec seminar.NotificationRecord) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO seminar_notifications (seminar_id, channel, address, status, error, sent_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.EventID,
		string(rec.Channel),
		rec.Address,
		string(rec.Outcome),
		nullable(rec.Error),
		rec.SentAt,
	)
	if err != nil {
		return fmt.Errorf("append notification: %w", err)
	}
	return nil
}

// CountFailedNotificationsSince counts failed dispatches logged at or
// after the cutoff.
func (s *Postgres) CountFailedNotificationsSince(ctx context.Context, cutoff time.Time) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM seminar_notifications WHERE status = 'fail' AND sent_at >= $1`,
		cutoff,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count failed notifications: %w", err)
	}
	return count, nil
}

func scanEvents(rows pgx.Rows) ([]seminar.Event, error) {
	defer rows.Close()

	var events []seminar.Event
	for rows.Next() {
		var (
			ev       seminar.Event
			location *string
			status   string
		)
		if err := rows.Scan(&ev.ID, &ev.Region, &ev.Title, &ev.EventDate, &location,
			&status, &ev.SourceURL, &ev.RawText, &ev.Fingerprint, &ev.CreatedAt, &ev.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if location != nil {
			ev.Location = *location
		}
		ev.Status = seminar.Status(status)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

func scanRoutes(rows pgx.Rows) ([]seminar.Route, error) {
	defer rows.Close()

	var routes []seminar.Route
	for rows.Next() {
		var (
			route   seminar.Route
			channel string
		)
		if err := rows.Scan(&route.ID, &route.SubscriberID, &channel, &route.Address); err != nil {
			return nil, fmt.Errorf("scan route: %w", err)
		}
		route.Channel = seminar.Channel(channel)
		routes = append(routes, route)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate routes: %w", err)
	}
	return routes, nil
}

// nullable maps "" to NULL for optional text columns.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
