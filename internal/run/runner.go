// Package run orchestrates one end-to-end pipeline pass: collect raw
// candidates from every active source, gate them through dedup and
// importance, persist survivors, and hand routing to the notifier.
package run

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mkurimoto/seminar-relay/internal/classify"
	"github.com/mkurimoto/seminar-relay/internal/metrics"
	"github.com/mkurimoto/seminar-relay/internal/normalize"
	"github.com/mkurimoto/seminar-relay/internal/seminar"
)

// Notifier routes one run's outcome to subscribers. Exactly one of the
// two modes fires per run.
type Notifier interface {
	NotifyNewImportant(ctx context.Context, regions []string, dryRun bool) (sent, failed int)
	NotifyStatusReport(ctx context.Context, dryRun bool) (sent, failed int)
}

// Runner drives one pipeline pass. A run is resilient to individual
// source and event failures; only an unreachable store aborts it.
type Runner struct {
	sources    []seminar.Source
	readers    map[seminar.SourceKind]seminar.Reader
	store      seminar.Store
	classifier *classify.Classifier
	notifier   Notifier
	clock      seminar.Clock
	window     time.Duration
	logger     *zap.Logger
}

// New builds a Runner. The window is shared by the dedup gate and the
// notifier's new-event re-query.
func New(
	sources []seminar.Source,
	readers map[seminar.SourceKind]seminar.Reader,
	store seminar.Store,
	classifier *classify.Classifier,
	notifier Notifier,
	clock seminar.Clock,
	window time.Duration,
	logger *zap.Logger,
) *Runner {
	return &Runner{
		sources:    sources,
		readers:    readers,
		store:      store,
		classifier: classifier,
		notifier:   notifier,
		clock:      clock,
		window:     window,
		logger:     logger,
	}
}

// candidate pairs a raw candidate with the event date resolved for it
// during collection.
type candidate struct {
	raw  seminar.RawCandidate
	date *time.Time
}

// Run executes one full pass and returns the run's counters. The store
// ping is the only fatal error; everything downstream is contained,
// logged, and reflected in the counters.
func (r *Runner) Run(ctx context.Context, dryRun bool) (seminar.Counters, error) {
	runID := uuid.NewString()
	logger := r.logger.With(zap.String("run_id", runID))
	started := time.Now()
	now := r.clock.Now()

	logger.Info("run starting",
		zap.Int("sources", len(r.sources)),
		zap.Bool("dry_run", dryRun))

	if err := r.store.Ping(ctx); err != nil {
		return seminar.Counters{}, fmt.Errorf("store unreachable: %w", err)
	}

	kept := r.collect(ctx, now, logger)

	var counters seminar.Counters
	counters.Collected = len(kept)
	metrics.AddCollected(counters.Collected)

	regionsWithNew := make(map[string]bool)
	cutoff := now.Add(-r.window)
	for _, c := range kept {
		text := c.raw.Title + " " + c.raw.RawText
		status := r.classifier.DetectStatus(text)
		location := c.raw.Location
		if location == "" {
			location = r.classifier.ExtractLocation(text)
		}

		ev, err := normalize.Event(c.raw, status, c.date, location)
		if err != nil {
			logger.Warn("candidate rejected", zap.String("url", c.raw.SourceURL), zap.Error(err))
			continue
		}

		seen, err := r.store.FingerprintSeenSince(ctx, ev.Fingerprint, cutoff)
		if err != nil {
			logger.Error("dedup lookup failed", zap.String("url", ev.SourceURL), zap.Error(err))
			continue
		}
		if seen {
			continue
		}
		if !r.classifier.Important(ev.Status, ev.Title, ev.RawText) {
			continue
		}

		_, inserted, err := r.store.InsertEvent(ctx, ev)
		if err != nil {
			logger.Error("insert event failed", zap.String("url", ev.SourceURL), zap.Error(err))
			continue
		}
		if !inserted {
			// Concurrent run or an older row outside the window; not new.
			continue
		}
		counters.NewImportant++
		regionsWithNew[ev.Region] = true
	}
	metrics.AddNewImportant(counters.NewImportant)

	if counters.NewImportant > 0 {
		regions := make([]string, 0, len(regionsWithNew))
		for region := range regionsWithNew {
			regions = append(regions, region)
		}
		sort.Strings(regions)
		counters.Sent, counters.Failed = r.notifier.NotifyNewImportant(ctx, regions, dryRun)
	} else {
		counters.Sent, counters.Failed = r.notifier.NotifyStatusReport(ctx, dryRun)
	}
	metrics.AddNotifications(string(seminar.OutcomeOK), counters.Sent)
	metrics.AddNotifications(string(seminar.OutcomeFail), counters.Failed)

	r.auditFailures(ctx, now, logger)
	metrics.ObserveRunDuration(time.Since(started).Seconds())

	logger.Info("run finished",
		zap.Int("collected", counters.Collected),
		zap.Int("new_important", counters.NewImportant),
		zap.Int("sent", counters.Sent),
		zap.Int("failed", counters.Failed),
		zap.Duration("elapsed", time.Since(started)))
	return counters, nil
}

// collect reads every active source, containing per-source failures,
// and keeps only relevant candidates for upcoming (or undated) events.
func (r *Runner) collect(ctx context.Context, now time.Time, logger *zap.Logger) []candidate {
	var kept []candidate
	for _, src := range r.sources {
		if !src.Active {
			continue
		}
		reader, ok := r.readers[src.Kind]
		if !ok {
			logger.Error("no reader for source kind",
				zap.String("region", src.Region), zap.String("kind", string(src.Kind)))
			metrics.IncSourceError(src.Region)
			continue
		}
		candidates, err := reader.Read(ctx, src)
		if err != nil {
			logger.Error("source read failed",
				zap.String("region", src.Region), zap.String("url", src.URL), zap.Error(err))
			metrics.IncSourceError(src.Region)
			continue
		}
		logger.Debug("source read",
			zap.String("region", src.Region), zap.Int("candidates", len(candidates)))

		for _, raw := range candidates {
			text := raw.Title + " " + raw.RawText
			if !r.classifier.Relevant(text) {
				continue
			}
			date := raw.Published
			if date == nil {
				date = r.classifier.ExtractDate(text, now)
			}
			if !r.classifier.Upcoming(date, now) {
				continue
			}
			kept = append(kept, candidate{raw: raw, date: date})
		}
	}
	return kept
}

// auditFailures surfaces delivery failures recorded in the trailing
// hour so an operator sees persistent channel trouble without reading
// the notification log.
func (r *Runner) auditFailures(ctx context.Context, now time.Time, logger *zap.Logger) {
	n, err := r.store.CountFailedNotificationsSince(ctx, now.Add(-time.Hour))
	if err != nil {
		logger.Error("failure audit query failed", zap.Error(err))
		return
	}
	if n > 0 {
		logger.Warn("delivery failures in the trailing hour", zap.Int("count", n))
	}
}
