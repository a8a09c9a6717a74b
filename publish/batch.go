package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"album-publisher/types"
)

// BatchMode selects how much of the catalog a manual batch publishes
type BatchMode string

const (
	BatchTest BatchMode = "test"
	BatchAll  BatchMode = "all"
)

// RunBatch publishes metadata documents of one type in week order, skipping
// excluded slugs. Test mode publishes only the first one. The report file
// lists every attempted item; the tracking store is not touched.
func (c *Coordinator) RunBatch(ctx context.Context, contentType types.ContentType, mode BatchMode) (*types.RunState, error) {
	if !contentType.Valid() {
		return nil, fmt.Errorf("unknown content type %q", contentType)
	}

	run := c.newRun(ModeBatch)
	log := c.log.WithFields(logrus.Fields{"run_id": run.RunID, "mode": run.Mode, "batch": mode, "type": contentType})

	docs, err := c.catalog.List(contentType)
	if err != nil {
		return nil, fmt.Errorf("list metadata: %w", err)
	}

	excluded := c.cfg.Excluded(string(contentType))
	albums := docs[:0]
	for _, d := range docs {
		if excluded[d.Slug] {
			log.WithField("slug", d.Slug).Debug("Excluded from batch")
			continue
		}
		albums = append(albums, d)
	}
	sort.SliceStable(albums, func(i, j int) bool { return albums[i].Week < albums[j].Week })

	if len(albums) == 0 {
		log.Info("No albums to publish")
		run.CompletedAt = c.now().UTC().Format(time.RFC3339)
		return run, nil
	}

	if mode == BatchTest {
		log.Info("TEST MODE: publishing only the first item")
		albums = albums[:1]
	} else {
		log.Infof("Found %d albums to publish", len(albums))
	}

	table := c.runTable()
	items := make([]types.DueItem, len(albums))
	for i, d := range albums {
		item := types.DueItem{Type: contentType, Slug: d.Slug, Week: d.Week}
		if d.PublishDate != "" {
			date, err := time.Parse(time.RFC3339, d.PublishDate)
			if err != nil {
				log.WithError(err).WithField("slug", d.Slug).Debug("Ignoring unparseable publishDate")
			} else {
				item.Date = date
			}
		}
		if item.Week == 0 {
			item.Week, _ = table.WeekOf(contentType, d.Slug)
		}
		items[i] = item
		log.Infof("  Week %d: %s", item.Week, d.Title)
	}

	runErr := c.process(ctx, log, run, table, items)

	report := make([]types.ReportEntry, 0, len(run.Outcomes))
	for i, o := range run.Outcomes {
		title := o.Title
		if title == "" {
			title = albums[i].Title
		}
		report = append(report, types.ReportEntry{
			VideoID: o.VideoID,
			URL:     o.URL,
			Title:   title,
			Week:    o.Week,
			Slug:    o.Slug,
			Error:   o.Error,
		})
	}

	path := c.ReportPath(contentType)
	if err := WriteReport(path, report); err != nil {
		runErr = errors.Join(runErr, err)
	} else {
		log.Infof("Full report saved to: %s", path)
	}

	run.Schedule = table.Weeks()
	run.CompletedAt = c.now().UTC().Format(time.RFC3339)
	c.printSummary(run)
	return run, runErr
}

// ReportPath is where the batch report for contentType is written
func (c *Coordinator) ReportPath(contentType types.ContentType) string {
	name := c.cfg.Publish.VideoReport
	if contentType == types.Short {
		name = c.cfg.Publish.ShortReport
	}
	return filepath.Join(c.cfg.Paths.Reports, name)
}

// WriteReport writes v as indented JSON
func WriteReport(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
