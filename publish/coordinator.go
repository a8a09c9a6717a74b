// Package publish sequences publish attempts: the daily scheduled run and
// the manual batch run. Each item is isolated; one failure never stops the
// rest of the run.
package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"album-publisher/config"
	"album-publisher/logging"
	"album-publisher/metadata"
	"album-publisher/notify"
	"album-publisher/schedule"
	"album-publisher/tracking"
	"album-publisher/types"
	"album-publisher/upload"
)

const (
	ModeScheduled = "scheduled"
	ModeBatch     = "batch"
)

// Deps are the collaborators of a Coordinator
type Deps struct {
	Schedule   *schedule.Table
	Store      tracking.Store
	Catalog    *metadata.Catalog
	Publishers map[types.ContentType]upload.Publisher
	Notifier   notify.Notifier
	Out        io.Writer
	Logger     logrus.FieldLogger
}

// Coordinator runs publish batches
type Coordinator struct {
	cfg        *config.Config
	loc        *time.Location
	table      *schedule.Table
	store      tracking.Store
	catalog    *metadata.Catalog
	publishers map[types.ContentType]upload.Publisher
	notifier   notify.Notifier
	out        io.Writer
	log        logrus.FieldLogger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Coordinator
func New(cfg *config.Config, deps Deps) (*Coordinator, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("timezone: %w", err)
	}
	if deps.Schedule == nil {
		return nil, errors.New("schedule table is required")
	}
	if deps.Store == nil {
		return nil, errors.New("tracking store is required")
	}

	out := deps.Out
	if out == nil {
		out = os.Stdout
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notify.NewLog(deps.Logger)
	}
	catalog := deps.Catalog
	if catalog == nil {
		catalog = metadata.New(cfg.Paths.MetadataDir)
	}

	return &Coordinator{
		cfg:        cfg,
		loc:        loc,
		table:      deps.Schedule,
		store:      deps.Store,
		catalog:    catalog,
		publishers: deps.Publishers,
		notifier:   notifier,
		out:        out,
		log:        logging.Component(deps.Logger, "publish"),
		now:        time.Now,
		sleep:      sleepCtx,
	}, nil
}

func (c *Coordinator) newRun(mode string) *types.RunState {
	return &types.RunState{
		RunID:     uuid.New().String()[:8],
		Mode:      mode,
		StartedAt: c.now().UTC().Format(time.RFC3339),
	}
}

// RunScheduled publishes everything due today and appends a tracking record
// for each success. Nothing due means nothing is saved.
func (c *Coordinator) RunScheduled(ctx context.Context) (*types.RunState, error) {
	run := c.newRun(ModeScheduled)
	log := c.log.WithFields(logrus.Fields{"run_id": run.RunID, "mode": run.Mode})

	now := c.now().In(c.loc)
	log.Infof("Checking for scheduled content: %s", now.Format("2006-01-02"))

	state, err := c.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tracking: %w", err)
	}
	table := c.runTable()
	table.Reconcile(state, c.loc)

	due := table.DueToday(now)
	if len(due) == 0 {
		log.Info("No content scheduled for today, publishing on track")
		run.Schedule = table.Weeks()
		run.CompletedAt = c.now().UTC().Format(time.RFC3339)
		return run, nil
	}
	log.Infof("Found %d item(s) due today", len(due))

	runErr := c.process(ctx, log, run, table, due)

	for _, o := range run.Outcomes {
		if !o.Success {
			continue
		}
		state.Append(types.TrackingRecord{
			Slug:              o.Slug,
			Title:             o.Title,
			PublishedDate:     now.Format("2006-01-02"),
			PublishedManually: false,
			Type:              o.Type,
			Status:            "published",
			VideoID:           o.VideoID,
		})
	}

	if err := c.store.Save(ctx, state); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("save tracking: %w", err))
	} else {
		log.Info("Tracking updated")
	}

	run.Schedule = table.Weeks()
	run.CompletedAt = c.now().UTC().Format(time.RFC3339)
	c.printSummary(run)
	return run, runErr
}

// runTable copies the configured table so flags set during a run never leak
// into the next one
func (c *Coordinator) runTable() *schedule.Table {
	return schedule.New(c.table.Weeks())
}

// process publishes items in order, pausing between them. It only returns an
// error when ctx is cancelled; per-item failures land in run.Outcomes.
func (c *Coordinator) process(ctx context.Context, log logrus.FieldLogger, run *types.RunState, table *schedule.Table, items []types.DueItem) error {
	for i, item := range items {
		if i > 0 && c.cfg.Publish.Delay > 0 {
			log.Infof("Waiting %s before next publish", c.cfg.Publish.Delay)
			if err := c.sleep(ctx, c.cfg.Publish.Delay); err != nil {
				log.WithError(err).Warn("Run cancelled, skipping remaining items")
				return err
			}
		}
		run.Outcomes = append(run.Outcomes, c.publishOne(ctx, log, table, item))
	}
	return nil
}

func (c *Coordinator) publishOne(ctx context.Context, log logrus.FieldLogger, table *schedule.Table, item types.DueItem) types.Outcome {
	log = log.WithFields(logrus.Fields{"type": item.Type, "slug": item.Slug, "week": item.Week})
	log.Infof("Publishing %s: %s", item.Type, item.Slug)

	outcome := types.Outcome{Type: item.Type, Slug: item.Slug, Week: item.Week}

	res, err := c.publish(ctx, item)
	if err != nil {
		outcome.Error = err.Error()
		log.WithError(err).Errorf("Failed to publish %s: %s", item.Type, item.Slug)

		c.notify(ctx, log, types.Notification{
			Type:    types.NotifyError,
			Subject: fmt.Sprintf("Failed to publish %s: %s", item.Type, item.Slug),
			Message: fmt.Sprintf("Error publishing to YouTube: %s", err),
			Metadata: []types.Field{
				{Label: "Type", Value: string(item.Type)},
				{Label: "Slug", Value: item.Slug},
				{Label: "Error", Value: err.Error()},
				{Label: "Time", Value: c.now().In(c.loc).Format(time.RFC1123)},
			},
		})
		return outcome
	}

	outcome.Success = true
	outcome.VideoID = res.ID
	outcome.URL = res.URL
	outcome.Title = res.Title
	table.MarkPublished(item.Type, item.Slug, item.Week)
	log.WithField("video_id", res.ID).Infof("Successfully published: %s", res.URL)

	c.notify(ctx, log, types.Notification{
		Type:    types.NotifySuccess,
		Subject: "Published: " + res.Title,
		Message: fmt.Sprintf("Successfully published %s to YouTube", item.Type),
		Metadata: []types.Field{
			{Label: "Type", Value: string(item.Type)},
			{Label: "Slug", Value: item.Slug},
			{Label: "Video ID", Value: res.ID},
			{Label: "URL", Value: res.URL},
			{Label: "Published", Value: c.now().In(c.loc).Format(time.RFC1123)},
		},
	})
	return outcome
}

func (c *Coordinator) publish(ctx context.Context, item types.DueItem) (*types.PublishResult, error) {
	pub, ok := c.publishers[item.Type]
	if !ok || pub == nil {
		return nil, fmt.Errorf("no publisher for %q", item.Type)
	}
	res, err := pub.Publish(ctx, item.Slug)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("publisher returned no result for %s", item.Slug)
	}
	return res, nil
}

// notify never lets a notification problem reach the run
func (c *Coordinator) notify(ctx context.Context, log logrus.FieldLogger, n types.Notification) {
	if err := c.notifier.Notify(ctx, n); err != nil {
		log.WithError(err).Warn("Notification failed")
	}
}

func (c *Coordinator) printSummary(run *types.RunState) {
	w := c.out
	fmt.Fprintln(w, "\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Fprintln(w, "PUBLISHING SUMMARY")
	fmt.Fprintln(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	if ok := run.Succeeded(); len(ok) > 0 {
		fmt.Fprintf(w, "\n✅ Successfully published %d item(s):\n", len(ok))
		for _, o := range ok {
			fmt.Fprintf(w, "   %s: %s\n   %s\n", o.Type, o.Slug, o.URL)
		}
	}
	if failed := run.Failed(); len(failed) > 0 {
		fmt.Fprintf(w, "\n❌ Failed to publish %d item(s):\n", len(failed))
		for _, o := range failed {
			fmt.Fprintf(w, "   %s: %s\n   Error: %s\n", o.Type, o.Slug, o.Error)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
