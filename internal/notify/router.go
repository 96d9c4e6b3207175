package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mkurimoto/seminar-relay/internal/classify"
	"github.com/mkurimoto/seminar-relay/internal/seminar"
)

// Router resolves subscribers to delivery routes and dispatches one
// notification per route, recording every attempt. Delivery failures are
// converted into fail records and never propagate to the orchestrator.
type Router struct {
	store      seminar.Store
	senders    map[seminar.Channel]seminar.Sender
	classifier *classify.Classifier
	clock      seminar.Clock
	window     time.Duration
	logger     *zap.Logger
}

// NewRouter builds a Router. The window bounds the re-query for newly
// created events and matches the dedup window.
func NewRouter(
	store seminar.Store,
	senders []seminar.Sender,
	classifier *classify.Classifier,
	clock seminar.Clock,
	window time.Duration,
	logger *zap.Logger,
) *Router {
	byChannel := make(map[seminar.Channel]seminar.Sender, len(senders))
	for _, s := range senders {
		byChannel[s.Channel()] = s
	}
	return &Router{
		store:      store,
		senders:    byChannel,
		classifier: classifier,
		clock:      clock,
		window:     window,
		logger:     logger,
	}
}

// NotifyNewImportant handles the new-important mode: for each region
// with at least one newly persisted important event, build one summary
// and dispatch it to every route of every subscriber in that region.
// Importance is re-evaluated here with the same predicate used at the
// persistence gate.
func (r *Router) NotifyNewImportant(ctx context.Context, regions []string, dryRun bool) (sent, failed int) {
	cutoff := r.clock.Now().Add(-r.window)

	for _, region := range regions {
		events, err := r.store.EventsCreatedSince(ctx, region, cutoff)
		if err != nil {
			r.logger.Error("query new events failed", zap.String("region", region), zap.Error(err))
			continue
		}
		important := events[:0:0]
		for _, ev := range events {
			if r.classifier.Important(ev.Status, ev.Title, ev.RawText) {
				important = append(important, ev)
			}
		}
		if len(important) == 0 {
			continue
		}
		r.logger.Info("new important events for region",
			zap.String("region", region), zap.Int("count", len(important)))

		msg := NewImportantMessage(Summarize(important), important, r.clock.Now())
		eventIDs := make([]*int64, len(important))
		for i := range important {
			eventIDs[i] = &important[i].ID
		}

		subs, err := r.store.SubscribersIn(ctx, region)
		if err != nil {
			r.logger.Error("resolve subscribers failed", zap.String("region", region), zap.Error(err))
			continue
		}
		for _, sub := range subs {
			routes, err := r.store.RoutesFor(ctx, sub.ID)
			if err != nil {
				r.logger.Error("resolve routes failed", zap.Int64("subscriber", sub.ID), zap.Error(err))
				continue
			}
			for _, route := range routes {
				if r.dispatch(ctx, route.Channel, route.Address, msg, eventIDs, dryRun) {
					sent++
				} else {
					failed++
				}
			}
		}
	}
	return sent, failed
}

// NotifyStatusReport handles the zero-new-events mode: one "no new
// information today" message to every known route exactly once,
// regardless of region, with up to one recent event as context.
func (r *Router) NotifyStatusReport(ctx context.Context, dryRun bool) (sent, failed int) {
	recent, err := r.store.MostRecentEvents(ctx, 1)
	if err != nil {
		r.logger.Error("query recent events failed", zap.Error(err))
		recent = nil
	}
	msg := StatusReportMessage(recent, r.clock.Now())

	var eventIDs []*int64
	if len(recent) > 0 {
		eventIDs = []*int64{&recent[0].ID}
	} else {
		eventIDs = []*int64{nil}
	}

	routes, err := r.store.AllRoutes(ctx)
	if err != nil {
		r.logger.Error("resolve all routes failed", zap.Error(err))
		return 0, 0
	}

	type target struct {
		channel seminar.Channel
		address string
	}
	seen := make(map[target]bool, len(routes))
	for _, route := range routes {
		key := target{route.Channel, route.Address}
		if seen[key] {
			continue
		}
		seen[key] = true
		if r.dispatch(ctx, route.Channel, route.Address, msg, eventIDs, dryRun) {
			sent++
		} else {
			failed++
		}
	}
	return sent, failed
}

// dispatch sends one message to one address and appends a notification
// record per covered event. In dry-run mode it logs the would-be send
// and reports success without touching the network.
func (r *Router) dispatch(
	ctx context.Context,
	channel seminar.Channel,
	address string,
	msg seminar.Message,
	eventIDs []*int64,
	dryRun bool,
) bool {
	var sendErr error
	switch {
	case dryRun:
		r.logger.Info("dry-run: would send notification",
			zap.String("channel", string(channel)),
			zap.String("address", address),
			zap.String("subject", msg.Subject))
	default:
		sender, ok := r.senders[channel]
		if !ok {
			sendErr = fmt.Errorf("no sender for channel %q", channel)
		} else {
			sendErr = sender.Send(ctx, address, msg)
		}
	}

	outcome := seminar.OutcomeOK
	errText := ""
	if sendErr != nil {
		outcome = seminar.OutcomeFail
		errText = sendErr.Error()
		r.logger.Error("notification send failed",
			zap.String("channel", string(channel)),
			zap.String("address", address),
			zap.Error(sendErr))
	}

	now := r.clock.Now()
	for _, id := range eventIDs {
		rec := seminar.NotificationRecord{
			EventID: id,
			Channel: channel,
			Address: address,
			Outcome: outcome,
			Error:   errText,
			SentAt:  now,
		}
		if err := r.store.AppendNotification(ctx, rec); err != nil {
			r.logger.Error("append notification record failed", zap.Error(err))
		}
	}
	return sendErr == nil
}
