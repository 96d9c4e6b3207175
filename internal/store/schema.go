package store

// schema is applied by EnsureSchema at startup. Regions are reference
// data seeded from configuration; sources stay in configuration and are
// never written during a run.
const schema = `
CREATE TABLE IF NOT EXISTS regions (
	region_id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	name VARCHAR(50) UNIQUE NOT NULL
);

CREATE TABLE IF NOT EXISTS seminars (
	seminar_id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	region_id BIGINT NOT NULL REFERENCES regions(region_id),
	title VARCHAR(255) NOT NULL,
	event_date TIMESTAMPTZ,
	location VARCHAR(255),
	status VARCHAR(20) NOT NULL DEFAULT 'open' CHECK (status IN (
		'open', 'pending', 'closed', 'expired',
		'scheduled', 'held', 'cancelled', 'other'
	)),
	source_url VARCHAR(255) UNIQUE NOT NULL,
	raw_text TEXT,
	hash VARCHAR(64) UNIQUE NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS seminars_hash_created_idx ON seminars (hash, created_at);
CREATE INDEX IF NOT EXISTS seminars_created_idx ON seminars (created_at);

CREATE TABLE IF NOT EXISTS subscribers (
	subscriber_id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	name VARCHAR(100) NOT NULL,
	region_id BIGINT NOT NULL REFERENCES regions(region_id)
);

CREATE TABLE IF NOT EXISTS subscriber_routing (
	routing_id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	subscriber_id BIGINT NOT NULL REFERENCES subscribers(subscriber_id),
	channel VARCHAR(20) NOT NULL CHECK (channel IN ('email', 'chat')),
	address VARCHAR(255) NOT NULL
);

CREATE TABLE IF NOT EXISTS seminar_notifications (
	notification_id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	seminar_id BIGINT REFERENCES seminars(seminar_id),
	channel VARCHAR(20) NOT NULL CHECK (channel IN ('email', 'chat')),
	address VARCHAR(255) NOT NULL,
	status VARCHAR(10) NOT NULL CHECK (status IN ('ok', 'fail')),
	error TEXT,
	sent_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS notifications_status_sent_idx ON seminar_notifications (status, sent_at);
`
