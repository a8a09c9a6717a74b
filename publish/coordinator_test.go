package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"album-publisher/config"
	"album-publisher/logging"
	"album-publisher/metadata"
	"album-publisher/schedule"
	"album-publisher/tracking"
	"album-publisher/types"
	"album-publisher/upload"
)

var fixedNow = time.Date(2026, time.January, 19, 10, 0, 0, 0, time.UTC)

func at(day, hour int) time.Time {
	return time.Date(2026, time.January, day, hour, 0, 0, 0, time.UTC)
}

type fakePublisher struct {
	typ   types.ContentType
	fail  map[string]error
	calls []string
}

func (f *fakePublisher) Publish(_ context.Context, slug string) (*types.PublishResult, error) {
	f.calls = append(f.calls, slug)
	if err := f.fail[slug]; err != nil {
		return nil, err
	}
	id := "ID-" + slug
	return &types.PublishResult{ID: id, URL: "https://www.youtube.com/watch?v=" + id, Title: "Title " + slug}, nil
}

type fakeNotifier struct {
	sent []types.Notification
	err  error
}

func (f *fakeNotifier) Notify(_ context.Context, n types.Notification) error {
	f.sent = append(f.sent, n)
	return f.err
}

type memStore struct {
	state   *types.TrackingState
	loadErr error
	saveErr error
	saves   int
}

func (m *memStore) Load(context.Context) (*types.TrackingState, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.state == nil {
		return tracking.Empty(fixedNow), nil
	}
	cp := *m.state
	cp.Videos = append([]types.TrackingRecord{}, m.state.Videos...)
	cp.Shorts = append([]types.TrackingRecord{}, m.state.Shorts...)
	return &cp, nil
}

func (m *memStore) Save(_ context.Context, s *types.TrackingState) error {
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.state = s
	return nil
}

type harness struct {
	c        *Coordinator
	cfg      *config.Config
	video    *fakePublisher
	short    *fakePublisher
	notifier *fakeNotifier
	store    *memStore
	out      *bytes.Buffer
	sleeps   []time.Duration
}

func newHarness(t *testing.T, weeks []types.ScheduledWeek) *harness {
	root := t.TempDir()
	cfg := config.Default()
	cfg.Publish.Timezone = "UTC"
	cfg.Paths.MetadataDir = filepath.Join(root, "youtube-metadata")
	cfg.Paths.Reports = root
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.Paths.MetadataDir, "shorts"), 0755))

	h := &harness{
		cfg:      cfg,
		video:    &fakePublisher{typ: types.Video},
		short:    &fakePublisher{typ: types.Short},
		notifier: &fakeNotifier{},
		store:    &memStore{},
		out:      &bytes.Buffer{},
	}

	c, err := New(cfg, Deps{
		Schedule:   schedule.New(weeks),
		Store:      h.store,
		Catalog:    metadata.New(cfg.Paths.MetadataDir),
		Publishers: map[types.ContentType]upload.Publisher{types.Video: h.video, types.Short: h.short},
		Notifier:   h.notifier,
		Out:        h.out,
		Logger:     logging.Discard(),
	})
	require.NoError(t, err)
	c.now = func() time.Time { return fixedNow }
	c.sleep = func(_ context.Context, d time.Duration) error {
		h.sleeps = append(h.sleeps, d)
		return nil
	}
	h.c = c
	return h
}

func TestRunScheduledEndToEnd(t *testing.T) {
	h := newHarness(t, []types.ScheduledWeek{
		{Week: 1, VideoSlug: "x", VideoDate: at(19, 9), ShortSlug: "y", ShortDate: at(20, 9)},
	})

	run, err := h.c.RunScheduled(context.Background())
	require.NoError(t, err)
	require.Len(t, run.Outcomes, 1)
	assert.Equal(t, types.Outcome{
		Type: types.Video, Slug: "x", Week: 1, Success: true,
		VideoID: "ID-x", URL: "https://www.youtube.com/watch?v=ID-x", Title: "Title x",
	}, run.Outcomes[0])

	require.Equal(t, 1, h.store.saves)
	require.Len(t, h.store.state.Videos, 1)
	assert.Equal(t, types.TrackingRecord{
		Slug:              "x",
		Title:             "Title x",
		PublishedDate:     "2026-01-19",
		PublishedManually: false,
		Type:              types.Video,
		Status:            "published",
		VideoID:           "ID-x",
	}, h.store.state.Videos[0])
	assert.Empty(t, h.store.state.Shorts)

	require.Len(t, h.notifier.sent, 1)
	n := h.notifier.sent[0]
	assert.Equal(t, types.NotifySuccess, n.Type)
	assert.Equal(t, "Published: Title x", n.Subject)
	labels := make([]string, len(n.Metadata))
	for i, f := range n.Metadata {
		labels[i] = f.Label
	}
	assert.Equal(t, []string{"Type", "Slug", "Video ID", "URL", "Published"}, labels)

	require.Len(t, run.Schedule, 1)
	assert.True(t, run.Schedule[0].Published.Video)
	assert.Contains(t, h.out.String(), "Successfully published 1 item(s)")
	assert.NotEmpty(t, run.RunID)
}

func TestRunScheduledIsolatesFailures(t *testing.T) {
	h := newHarness(t, []types.ScheduledWeek{
		{Week: 1, VideoSlug: "a", VideoDate: at(19, 8), ShortSlug: "b", ShortDate: at(19, 9)},
		{Week: 2, VideoSlug: "c", VideoDate: at(19, 10), ShortSlug: "d", ShortDate: at(19, 11)},
	})
	h.video.fail = map[string]error{"a": &upload.NotFoundError{Kind: "media", Path: "out/a-video.mp4"}}
	h.short.fail = map[string]error{"d": &upload.AdapterError{Op: "insert", Slug: "d", Err: errors.New("quotaExceeded")}}

	run, err := h.c.RunScheduled(context.Background())
	require.NoError(t, err)

	require.Len(t, run.Outcomes, 4)
	assert.Equal(t, []string{"a", "c"}, h.video.calls)
	assert.Equal(t, []string{"b", "d"}, h.short.calls)
	assert.Len(t, run.Succeeded(), 2)
	assert.Len(t, run.Failed(), 2)
	assert.Contains(t, run.Outcomes[0].Error, "media not found")
	assert.Contains(t, run.Outcomes[3].Error, "quotaExceeded")

	assert.Len(t, h.store.state.Videos, 1)
	assert.Len(t, h.store.state.Shorts, 1)

	require.Len(t, h.notifier.sent, 4)
	assert.Equal(t, types.NotifyError, h.notifier.sent[0].Type)
	assert.Equal(t, "Failed to publish video: a", h.notifier.sent[0].Subject)
	assert.Equal(t, types.NotifySuccess, h.notifier.sent[1].Type)

	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second, 5 * time.Second}, h.sleeps)
	assert.Contains(t, h.out.String(), "Failed to publish 2 item(s)")
}

func TestRunScheduledNotifierFailureIsIgnored(t *testing.T) {
	weeks := []types.ScheduledWeek{
		{Week: 1, VideoSlug: "a", VideoDate: at(19, 8), ShortSlug: "b", ShortDate: at(19, 9)},
	}

	quiet := newHarness(t, weeks)
	quiet.short.fail = map[string]error{"b": errors.New("boom")}
	want, err := quiet.c.RunScheduled(context.Background())
	require.NoError(t, err)

	noisy := newHarness(t, weeks)
	noisy.short.fail = map[string]error{"b": errors.New("boom")}
	noisy.notifier.err = errors.New("resend down")
	got, err := noisy.c.RunScheduled(context.Background())
	require.NoError(t, err)

	assert.Equal(t, want.Outcomes, got.Outcomes)
	assert.Equal(t, quiet.store.state.Videos, noisy.store.state.Videos)
}

func TestRunScheduledNothingDue(t *testing.T) {
	h := newHarness(t, []types.ScheduledWeek{
		{Week: 1, VideoSlug: "a", VideoDate: at(26, 9), ShortSlug: "b", ShortDate: at(27, 9)},
	})

	run, err := h.c.RunScheduled(context.Background())
	require.NoError(t, err)
	assert.Empty(t, run.Outcomes)
	assert.Zero(t, h.store.saves)
	assert.Empty(t, h.video.calls)
	assert.Empty(t, h.notifier.sent)
}

func TestRunScheduledRerunIsNoop(t *testing.T) {
	weeks := []types.ScheduledWeek{
		{Week: 1, VideoSlug: "x", VideoDate: at(19, 9), ShortSlug: "y", ShortDate: at(20, 9)},
	}
	h := newHarness(t, weeks)
	_, err := h.c.RunScheduled(context.Background())
	require.NoError(t, err)

	// fresh table, same store: the tracking record keeps x from going out twice
	rerun := newHarness(t, weeks)
	rerun.store = h.store
	rerun.c.store = h.store

	run, err := rerun.c.RunScheduled(context.Background())
	require.NoError(t, err)
	assert.Empty(t, run.Outcomes)
	assert.Empty(t, rerun.video.calls)
	assert.Len(t, h.store.state.Videos, 1)
}

func TestRunScheduledRerunAfterMissedReusedSlug(t *testing.T) {
	// x was missed in week 1 and is due again today in week 2
	weeks := []types.ScheduledWeek{
		{Week: 1, VideoSlug: "x", VideoDate: at(12, 9), ShortSlug: "b", ShortDate: at(13, 9)},
		{Week: 2, VideoSlug: "x", VideoDate: at(19, 9), ShortSlug: "c", ShortDate: at(20, 9)},
	}
	h := newHarness(t, weeks)
	run, err := h.c.RunScheduled(context.Background())
	require.NoError(t, err)
	require.Len(t, run.Outcomes, 1)
	assert.Equal(t, 2, run.Outcomes[0].Week)
	assert.False(t, run.Schedule[0].Published.Video)
	assert.True(t, run.Schedule[1].Published.Video)

	rerun := newHarness(t, weeks)
	rerun.store = h.store
	rerun.c.store = h.store

	again, err := rerun.c.RunScheduled(context.Background())
	require.NoError(t, err)
	assert.Empty(t, again.Outcomes)
	assert.Empty(t, rerun.video.calls)
	assert.Len(t, h.store.state.Videos, 1)
}

func TestRunScheduledLoadError(t *testing.T) {
	h := newHarness(t, []types.ScheduledWeek{
		{Week: 1, VideoSlug: "x", VideoDate: at(19, 9), ShortSlug: "y", ShortDate: at(20, 9)},
	})
	h.store.loadErr = errors.New("disk gone")

	_, err := h.c.RunScheduled(context.Background())
	assert.ErrorContains(t, err, "load tracking")
	assert.Empty(t, h.video.calls)
}

func TestRunScheduledSaveErrorKeepsOutcomes(t *testing.T) {
	h := newHarness(t, []types.ScheduledWeek{
		{Week: 1, VideoSlug: "x", VideoDate: at(19, 9), ShortSlug: "y", ShortDate: at(20, 9)},
	})
	h.store.saveErr = errors.New("read-only")

	run, err := h.c.RunScheduled(context.Background())
	assert.ErrorContains(t, err, "save tracking")
	require.NotNil(t, run)
	assert.Len(t, run.Succeeded(), 1)
}

func TestRunScheduledCancelledDuringPause(t *testing.T) {
	h := newHarness(t, []types.ScheduledWeek{
		{Week: 1, VideoSlug: "a", VideoDate: at(19, 8), ShortSlug: "b", ShortDate: at(19, 9)},
	})
	h.c.sleep = func(context.Context, time.Duration) error { return context.Canceled }

	run, err := h.c.RunScheduled(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, run.Outcomes, 1)
	assert.Empty(t, h.short.calls)
	assert.Equal(t, 1, h.store.saves, "successes before the cancel are still tracked")
	assert.Len(t, h.store.state.Videos, 1)
}

func TestRunScheduledUsesConfiguredTimezone(t *testing.T) {
	h := newHarness(t, []types.ScheduledWeek{
		{Week: 1, VideoSlug: "x", VideoDate: time.Date(2026, time.January, 19, 20, 0, 0, 0, time.UTC), ShortSlug: "y", ShortDate: at(25, 9)},
	})
	// 10:00 UTC on the 19th is already the 20th in Tokyo
	h.c.loc = time.FixedZone("JST", 9*60*60)

	run, err := h.c.RunScheduled(context.Background())
	require.NoError(t, err)
	assert.Empty(t, run.Outcomes)
}

func TestNewRequiresCollaborators(t *testing.T) {
	cfg := config.Default()
	_, err := New(cfg, Deps{Store: &memStore{}})
	assert.Error(t, err)
	_, err = New(cfg, Deps{Schedule: schedule.New(nil)})
	assert.Error(t, err)
}

func writeDoc(t *testing.T, dir string, name string, doc types.ContentMetadata) {
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0644))
}

func readReport(t *testing.T, path string) []types.ReportEntry {
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var entries []types.ReportEntry
	require.NoError(t, json.Unmarshal(data, &entries))
	return entries
}

func TestRunBatchExcludesAndOrdersByWeek(t *testing.T) {
	h := newHarness(t, nil)
	dir := h.cfg.Paths.MetadataDir
	writeDoc(t, dir, "a.json", types.ContentMetadata{Slug: "a", Week: 3, Title: "A"})
	writeDoc(t, dir, "b.json", types.ContentMetadata{Slug: "b", Week: 2, Title: "B"})
	writeDoc(t, dir, "cognitive-bloom.json", types.ContentMetadata{Slug: "cognitive-bloom", Week: 1, Title: "CB"})

	run, err := h.c.RunBatch(context.Background(), types.Video, BatchAll)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, h.video.calls)
	assert.Len(t, run.Outcomes, 2)
	assert.Equal(t, []time.Duration{5 * time.Second}, h.sleeps)

	entries := readReport(t, filepath.Join(h.cfg.Paths.Reports, "published-videos.json"))
	require.Len(t, entries, 2)
	assert.Equal(t, types.ReportEntry{VideoID: "ID-b", URL: "https://www.youtube.com/watch?v=ID-b", Title: "Title b", Week: 2, Slug: "b"}, entries[0])
	assert.Zero(t, h.store.saves, "manual batches leave tracking alone")
}

func TestRunBatchTestModePublishesOne(t *testing.T) {
	h := newHarness(t, nil)
	dir := filepath.Join(h.cfg.Paths.MetadataDir, "shorts")
	writeDoc(t, dir, "s1.json", types.ContentMetadata{Slug: "s1", Week: 2, Title: "S1"})
	writeDoc(t, dir, "s2.json", types.ContentMetadata{Slug: "s2", Week: 1, Title: "S2"})
	writeDoc(t, dir, "s3.json", types.ContentMetadata{Slug: "s3", Week: 3, Title: "S3"})

	run, err := h.c.RunBatch(context.Background(), types.Short, BatchTest)
	require.NoError(t, err)
	require.Len(t, run.Outcomes, 1)
	assert.Equal(t, []string{"s2"}, h.short.calls)
	assert.Empty(t, h.sleeps)

	entries := readReport(t, filepath.Join(h.cfg.Paths.Reports, "published-shorts.json"))
	assert.Len(t, entries, 1)
}

func TestRunBatchTestModeFailureIsIsolated(t *testing.T) {
	h := newHarness(t, nil)
	writeDoc(t, h.cfg.Paths.MetadataDir, "a.json", types.ContentMetadata{Slug: "a", Week: 1, Title: "A"})
	h.video.fail = map[string]error{"a": errors.New("upload rejected")}

	run, err := h.c.RunBatch(context.Background(), types.Video, BatchTest)
	require.NoError(t, err)
	require.Len(t, run.Failed(), 1)

	entries := readReport(t, filepath.Join(h.cfg.Paths.Reports, "published-videos.json"))
	require.Len(t, entries, 1)
	assert.Equal(t, "A", entries[0].Title)
	assert.Equal(t, "upload rejected", entries[0].Error)
	require.Len(t, h.notifier.sent, 1)
	assert.Equal(t, types.NotifyError, h.notifier.sent[0].Type)
}

func TestRunBatchEmpty(t *testing.T) {
	h := newHarness(t, nil)
	writeDoc(t, h.cfg.Paths.MetadataDir, "cognitive-bloom.json", types.ContentMetadata{Slug: "cognitive-bloom", Week: 1, Title: "CB"})

	run, err := h.c.RunBatch(context.Background(), types.Video, BatchAll)
	require.NoError(t, err)
	assert.Empty(t, run.Outcomes)
	assert.Empty(t, h.video.calls)
	assert.NoFileExists(t, filepath.Join(h.cfg.Paths.Reports, "published-videos.json"))
}

func TestRunBatchMarksScheduleRows(t *testing.T) {
	h := newHarness(t, []types.ScheduledWeek{
		{Week: 1, VideoSlug: "a", VideoDate: at(26, 9), ShortSlug: "b", ShortDate: at(27, 9)},
	})
	writeDoc(t, h.cfg.Paths.MetadataDir, "a.json", types.ContentMetadata{Slug: "a", Week: 1, Title: "A"})

	run, err := h.c.RunBatch(context.Background(), types.Video, BatchAll)
	require.NoError(t, err)
	require.Len(t, run.Schedule, 1)
	assert.True(t, run.Schedule[0].Published.Video)
	assert.False(t, h.c.table.Weeks()[0].Published.Video, "flags stay with the run")
}

func TestRunBatchThenScheduledOnSameCoordinator(t *testing.T) {
	weeks := []types.ScheduledWeek{
		{Week: 1, VideoSlug: "a", VideoDate: at(19, 9), ShortSlug: "b", ShortDate: at(20, 9)},
	}
	h := newHarness(t, weeks)
	writeDoc(t, h.cfg.Paths.MetadataDir, "a.json", types.ContentMetadata{Slug: "a", Week: 1, Title: "A"})

	_, err := h.c.RunBatch(context.Background(), types.Video, BatchAll)
	require.NoError(t, err)

	run, err := h.c.RunScheduled(context.Background())
	require.NoError(t, err)

	fresh := newHarness(t, weeks)
	want, err := fresh.c.RunScheduled(context.Background())
	require.NoError(t, err)

	require.Len(t, want.Outcomes, 1)
	assert.Equal(t, want.Outcomes, run.Outcomes)
	assert.Equal(t, []string{"a", "a"}, h.video.calls)
}

func TestRunBatchFillsWeekFromSchedule(t *testing.T) {
	h := newHarness(t, []types.ScheduledWeek{
		{Week: 1, VideoSlug: "x", VideoDate: at(12, 9), ShortSlug: "b", ShortDate: at(13, 9)},
		{Week: 4, VideoSlug: "a", VideoDate: at(26, 9), ShortSlug: "c", ShortDate: at(27, 9)},
	})
	writeDoc(t, h.cfg.Paths.MetadataDir, "a.json", types.ContentMetadata{Slug: "a", Title: "A", PublishDate: "soon"})

	run, err := h.c.RunBatch(context.Background(), types.Video, BatchAll)
	require.NoError(t, err)
	require.Len(t, run.Outcomes, 1)
	assert.Equal(t, 4, run.Outcomes[0].Week)
	assert.True(t, run.Schedule[1].Published.Video)
}

func TestRunBatchErrors(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.c.RunBatch(context.Background(), types.ContentType("story"), BatchAll)
	assert.Error(t, err)

	h.c.catalog = metadata.New(filepath.Join(t.TempDir(), "missing"))
	_, err = h.c.RunBatch(context.Background(), types.Video, BatchAll)
	assert.ErrorContains(t, err, "list metadata")
}
