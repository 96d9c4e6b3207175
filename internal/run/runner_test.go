package run

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mkurimoto/seminar-relay/internal/classify"
	"github.com/mkurimoto/seminar-relay/internal/fingerprint"
	"github.com/mkurimoto/seminar-relay/internal/seminar"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// fakeReader serves canned candidates per source URL.
type fakeReader struct {
	byURL map[string][]seminar.RawCandidate
	errs  map[string]error
}

func (f *fakeReader) Read(_ context.Context, src seminar.Source) ([]seminar.RawCandidate, error) {
	if err := f.errs[src.URL]; err != nil {
		return nil, err
	}
	return f.byURL[src.URL], nil
}

// fakeNotifier records which mode fired and returns canned counts.
type fakeNotifier struct {
	regions       []string
	statusReports int
	sent, failed  int
}

func (f *fakeNotifier) NotifyNewImportant(_ context.Context, regions []string, _ bool) (int, int) {
	f.regions = append(f.regions, regions...)
	return f.sent, f.failed
}

func (f *fakeNotifier) NotifyStatusReport(context.Context, bool) (int, int) {
	f.statusReports++
	return f.sent, f.failed
}

// memStore is the minimal in-memory store the runner needs. Inserts
// conflict on source URL only so the dedup gate is observable on its own.
type memStore struct {
	pingErr error
	seeded  []seminar.Event
	inserts []seminar.Event
}

func (m *memStore) Ping(context.Context) error { return m.pingErr }

func (m *memStore) InsertEvent(_ context.Context, ev seminar.Event) (int64, bool, error) {
	for _, existing := range append(m.seeded, m.inserts...) {
		if existing.SourceURL == ev.SourceURL {
			return 0, false, nil
		}
	}
	m.inserts = append(m.inserts, ev)
	return int64(len(m.inserts)), true, nil
}

func (m *memStore) FingerprintSeenSince(_ context.Context, fp string, cutoff time.Time) (bool, error) {
	for _, ev := range append(m.seeded, m.inserts...) {
		if ev.Fingerprint == fp && !ev.CreatedAt.Before(cutoff) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) EventsCreatedSince(context.Context, string, time.Time) ([]seminar.Event, error) {
	return nil, nil
}

func (m *memStore) MostRecentEvents(context.Context, int) ([]seminar.Event, error) {
	return nil, nil
}

func (m *memStore) SubscribersIn(context.Context, string) ([]seminar.Subscriber, error) {
	return nil, nil
}

func (m *memStore) RoutesFor(context.Context, int64) ([]seminar.Route, error) { return nil, nil }

func (m *memStore) AllRoutes(context.Context) ([]seminar.Route, error) { return nil, nil }

func (m *memStore) AppendNotification(context.Context, seminar.NotificationRecord) error {
	return nil
}

func (m *memStore) CountFailedNotificationsSince(context.Context, time.Time) (int, error) {
	return 0, nil
}

var testNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func newRunner(sources []seminar.Source, reader seminar.Reader, store seminar.Store, n Notifier) *Runner {
	readers := map[seminar.SourceKind]seminar.Reader{
		seminar.SourceKindPage: reader,
		seminar.SourceKindFeed: reader,
	}
	return New(sources, readers, store, classify.New(classify.Config{}),
		n, fixedClock{t: testNow}, 24*time.Hour, zap.NewNop())
}

func TestRunCollectsGatesAndRoutes(t *testing.T) {
	t.Parallel()

	sources := []seminar.Source{
		{Region: "関東", URL: "https://kanto.example.org", Kind: seminar.SourceKindPage, Active: true},
		{Region: "東北", URL: "https://tohoku.example.org", Kind: seminar.SourceKindPage, Active: true},
		{Region: "四国", URL: "https://shikoku.example.org/feed", Kind: seminar.SourceKindFeed, Active: true},
	}
	reader := &fakeReader{byURL: map[string][]seminar.RawCandidate{
		"https://kanto.example.org": {{
			Region: "関東", Title: "海技士セミナー 募集中 2025年6月15日",
			SourceURL: "https://kanto.example.org/1", RawText: "海技士セミナー 募集中 2025年6月15日",
		}},
		"https://tohoku.example.org": {{
			Region: "東北", Title: "船員就職セミナー 受付開始",
			SourceURL: "https://tohoku.example.org/1", RawText: "船員就職セミナー 受付開始",
		}},
		"https://shikoku.example.org/feed": {{
			Region: "四国", Title: "めざせ！海技者セミナー 開催予定",
			SourceURL: "https://shikoku.example.org/1", RawText: "めざせ！海技者セミナー 開催予定",
		}},
	}}
	store := &memStore{}
	notifier := &fakeNotifier{sent: 3}

	counters, err := newRunner(sources, reader, store, notifier).Run(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, 3, counters.Collected)
	assert.Equal(t, 3, counters.NewImportant)
	assert.Equal(t, 3, counters.Sent)
	assert.Zero(t, counters.Failed)
	assert.Equal(t, []string{"四国", "東北", "関東"}, notifier.regions)
	assert.Zero(t, notifier.statusReports)
	require.Len(t, store.inserts, 3)
}

func TestRunContainsSourceFailures(t *testing.T) {
	t.Parallel()

	sources := []seminar.Source{
		{Region: "関東", URL: "https://kanto.example.org", Kind: seminar.SourceKindPage, Active: true},
		{Region: "東北", URL: "https://tohoku.example.org", Kind: seminar.SourceKindPage, Active: true},
	}
	reader := &fakeReader{
		byURL: map[string][]seminar.RawCandidate{
			"https://kanto.example.org": {{
				Region: "関東", Title: "海技士セミナー 募集中",
				SourceURL: "https://kanto.example.org/1", RawText: "海技士セミナー 募集中",
			}},
		},
		errs: map[string]error{"https://tohoku.example.org": errors.New("connection reset")},
	}
	store := &memStore{}
	notifier := &fakeNotifier{sent: 1}

	counters, err := newRunner(sources, reader, store, notifier).Run(context.Background(), true)
	require.NoError(t, err, "one failing source must not abort the run")
	assert.Equal(t, 1, counters.Collected)
	assert.Equal(t, 1, counters.NewImportant)
}

func TestRunSkipsInactiveAndIrrelevant(t *testing.T) {
	t.Parallel()

	sources := []seminar.Source{
		{Region: "関東", URL: "https://kanto.example.org", Kind: seminar.SourceKindPage, Active: true},
		{Region: "東北", URL: "https://tohoku.example.org", Kind: seminar.SourceKindPage, Active: false},
	}
	reader := &fakeReader{byURL: map[string][]seminar.RawCandidate{
		"https://kanto.example.org": {
			{Region: "関東", Title: "サイトマップ", SourceURL: "https://kanto.example.org/sitemap",
				RawText: "サイトマップ"},
			{Region: "関東", Title: "海技士セミナー 募集中",
				SourceURL: "https://kanto.example.org/1", RawText: "海技士セミナー 募集中"},
		},
		"https://tohoku.example.org": {
			{Region: "東北", Title: "海技士セミナー 募集中",
				SourceURL: "https://tohoku.example.org/1", RawText: "海技士セミナー 募集中"},
		},
	}}
	store := &memStore{}
	notifier := &fakeNotifier{}

	counters, err := newRunner(sources, reader, store, notifier).Run(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 1, counters.Collected, "inactive source and irrelevant link dropped")
}

func TestRunFiltersPastEvents(t *testing.T) {
	t.Parallel()

	sources := []seminar.Source{
		{Region: "関東", URL: "https://kanto.example.org", Kind: seminar.SourceKindPage, Active: true},
	}
	reader := &fakeReader{byURL: map[string][]seminar.RawCandidate{
		"https://kanto.example.org": {
			{Region: "関東", Title: "海技士セミナー 募集中 2025年5月30日",
				SourceURL: "https://kanto.example.org/past", RawText: "海技士セミナー 募集中 2025年5月30日"},
			{Region: "関東", Title: "海技士セミナー 募集中 2025年6月1日",
				SourceURL: "https://kanto.example.org/today", RawText: "海技士セミナー 募集中 2025年6月1日"},
		},
	}}
	store := &memStore{}
	notifier := &fakeNotifier{}

	counters, err := newRunner(sources, reader, store, notifier).Run(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 1, counters.Collected, "yesterday excluded, today kept")
	require.Len(t, store.inserts, 1)
	assert.Equal(t, "https://kanto.example.org/today", store.inserts[0].SourceURL)
}

func TestRunDedupWindowBoundsRepeats(t *testing.T) {
	t.Parallel()

	sources := []seminar.Source{
		{Region: "関東", URL: "https://kanto.example.org", Kind: seminar.SourceKindPage, Active: true},
	}
	candidate := seminar.RawCandidate{
		Region: "関東", Title: "海技士セミナー 募集中",
		SourceURL: "https://kanto.example.org/new", RawText: "海技士セミナー 募集中",
	}
	fp := fingerprint.Compute("海技士セミナー 募集中", "", seminar.StatusOpen)

	for name, tc := range map[string]struct {
		age          time.Duration
		newImportant int
	}{
		"inside window":  {age: 23 * time.Hour, newImportant: 0},
		"outside window": {age: 25 * time.Hour, newImportant: 1},
	} {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			store := &memStore{seeded: []seminar.Event{{
				ID: 1, Region: "関東", Title: "海技士セミナー 募集中",
				Status: seminar.StatusOpen, Fingerprint: fp,
				SourceURL: "https://kanto.example.org/old",
				CreatedAt: testNow.Add(-tc.age),
			}}}
			reader := &fakeReader{byURL: map[string][]seminar.RawCandidate{
				"https://kanto.example.org": {candidate},
			}}
			notifier := &fakeNotifier{}

			counters, err := newRunner(sources, reader, store, notifier).Run(context.Background(), true)
			require.NoError(t, err)
			assert.Equal(t, tc.newImportant, counters.NewImportant)
		})
	}
}

func TestRunStatusReportWhenNothingGated(t *testing.T) {
	t.Parallel()

	sources := []seminar.Source{
		{Region: "関東", URL: "https://kanto.example.org", Kind: seminar.SourceKindPage, Active: true},
	}
	// Relevant but already held, with no importance keyword in sight.
	reader := &fakeReader{byURL: map[string][]seminar.RawCandidate{
		"https://kanto.example.org": {{
			Region: "関東", Title: "海技士セミナー 開催終了",
			SourceURL: "https://kanto.example.org/1", RawText: "海技士セミナー 開催終了",
		}},
	}}
	store := &memStore{}
	notifier := &fakeNotifier{sent: 2}

	counters, err := newRunner(sources, reader, store, notifier).Run(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 1, counters.Collected)
	assert.Zero(t, counters.NewImportant)
	assert.Equal(t, 1, notifier.statusReports)
	assert.Equal(t, 2, counters.Sent)
	assert.Empty(t, store.inserts)
}

func TestRunAbortsWhenStoreUnreachable(t *testing.T) {
	t.Parallel()

	store := &memStore{pingErr: errors.New("dial tcp: connection refused")}
	notifier := &fakeNotifier{}

	_, err := newRunner(nil, &fakeReader{}, store, notifier).Run(context.Background(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store unreachable")
	assert.Zero(t, notifier.statusReports)
}
