package upload

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/time/rate"
	"google.golang.org/api/youtube/v3"
)

// videoAPI is the slice of the YouTube Data API the publishers use
type videoAPI interface {
	Insert(ctx context.Context, video *youtube.Video, media io.Reader) (*youtube.Video, error)
	SetThumbnail(ctx context.Context, videoID string, media io.Reader) error
	UpdateStatus(ctx context.Context, videoID string, status *youtube.VideoStatus) error
	MyChannel(ctx context.Context) (*youtube.Channel, error)
}

// youtubeAPI calls the Data API v3, one request at a time through the limiter
type youtubeAPI struct {
	svc               *youtube.Service
	limiter           *rate.Limiter
	notifySubscribers bool
}

func newLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}

func (a *youtubeAPI) Insert(ctx context.Context, video *youtube.Video, media io.Reader) (*youtube.Video, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	// Resumable upload, required for files > 5MB
	call := a.svc.Videos.Insert([]string{"snippet", "status"}, video).
		NotifySubscribers(a.notifySubscribers).
		Media(media).
		Context(ctx)
	return call.Do()
}

func (a *youtubeAPI) SetThumbnail(ctx context.Context, videoID string, media io.Reader) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := a.svc.Thumbnails.Set(videoID).Media(media).Context(ctx).Do()
	return err
}

func (a *youtubeAPI) UpdateStatus(ctx context.Context, videoID string, status *youtube.VideoStatus) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}
	video := &youtube.Video{Id: videoID, Status: status}
	_, err := a.svc.Videos.Update([]string{"status"}, video).Context(ctx).Do()
	return err
}

func (a *youtubeAPI) MyChannel(ctx context.Context) (*youtube.Channel, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := a.svc.Channels.List([]string{"snippet", "contentDetails", "statistics"}).
		Mine(true).
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	if len(resp.Items) == 0 {
		return nil, fmt.Errorf("no channel found")
	}
	return resp.Items[0], nil
}
