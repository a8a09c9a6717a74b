package upload

import (
	"context"
	"errors"
	"fmt"
	"time"

	"album-publisher/config"
	"album-publisher/metadata"
	"album-publisher/types"
)

const reschedulePause = time.Second

// RescheduleResult is one line of the reschedule report
type RescheduleResult struct {
	VideoID   string  `json:"videoId"`
	Title     string  `json:"title"`
	Slug      string  `json:"slug"`
	Type      string  `json:"type"`
	Status    string  `json:"status"`
	PublishAt *string `json:"publishAt"`
}

// Reschedule aligns already-uploaded videos with their metadata publishDate:
// past dates go public now, future dates become private with publishAt.
// Items that fail are logged and left out of the results.
func (u *Uploader) Reschedule(ctx context.Context, items []config.RescheduleItem) ([]RescheduleResult, error) {
	u.log.Infof("Found %d videos to reschedule", len(items))

	results := make([]RescheduleResult, 0, len(items))
	for i, item := range items {
		if i > 0 {
			if err := u.sleep(ctx, reschedulePause); err != nil {
				return results, err
			}
		}

		res, err := u.reschedule(ctx, item)
		if err != nil {
			u.log.WithError(err).WithField("slug", item.Slug).Error("Failed to reschedule")
			continue
		}
		results = append(results, *res)
	}
	return results, nil
}

func (u *Uploader) reschedule(ctx context.Context, item config.RescheduleItem) (*RescheduleResult, error) {
	t := types.ContentType(item.Type)
	meta, err := u.catalog.Get(t, item.Slug)
	if errors.Is(err, metadata.ErrNotFound) {
		return nil, &NotFoundError{Kind: "metadata", Path: u.catalog.Path(t, item.Slug), Err: err}
	}
	if err != nil {
		return nil, err
	}

	publishAt, err := time.Parse(time.RFC3339, meta.PublishDate)
	if err != nil {
		return nil, fmt.Errorf("metadata %s: invalid publishDate: %w", item.Slug, err)
	}

	res := &RescheduleResult{VideoID: item.VideoID, Title: meta.Title, Slug: item.Slug, Type: item.Type}
	status := u.status("public")

	if publishAt.After(u.now()) {
		at := publishAt.UTC().Format(time.RFC3339)
		status.PrivacyStatus = "private"
		status.PublishAt = at
		res.Status = "scheduled"
		res.PublishAt = &at
		u.log.Infof("Scheduling %s for %s", meta.Title, at)
	} else {
		res.Status = "public"
		u.log.Warnf("%s: publish date is in the past, setting to public", meta.Title)
	}

	if err := u.api.UpdateStatus(ctx, item.VideoID, status); err != nil {
		return nil, &AdapterError{Op: "update", Slug: item.Slug, Err: err}
	}
	return res, nil
}
