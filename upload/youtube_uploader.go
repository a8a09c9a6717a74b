package upload

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"album-publisher/config"
	"album-publisher/logging"
	"album-publisher/metadata"
	"album-publisher/types"
)

// Publisher uploads one content item identified by slug
type Publisher interface {
	Publish(ctx context.Context, slug string) (*types.PublishResult, error)
}

// Uploader handles YouTube uploads via Data API v3
type Uploader struct {
	cfg     config.UploadConfig
	api     videoAPI
	catalog *metadata.Catalog
	outDir  string
	log     logrus.FieldLogger
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

// New creates an Uploader on top of an authorized HTTP client
func New(ctx context.Context, cfg *config.Config, client *http.Client, log logrus.FieldLogger) (*Uploader, error) {
	svc, err := youtube.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("youtube service: %w", err)
	}
	api := &youtubeAPI{
		svc:               svc,
		limiter:           newLimiter(cfg.Upload.RequestsPerSecond),
		notifySubscribers: cfg.Upload.NotifySubscribers,
	}
	return newUploader(cfg, api, log), nil
}

func newUploader(cfg *config.Config, api videoAPI, log logrus.FieldLogger) *Uploader {
	return &Uploader{
		cfg:     cfg.Upload,
		api:     api,
		catalog: metadata.New(cfg.Paths.MetadataDir),
		outDir:  cfg.Paths.OutputDir,
		log:     logging.Component(log, "upload"),
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

// Video returns the publisher for full-length videos
func (u *Uploader) Video() Publisher { return &videoPublisher{u} }

// Short returns the publisher for shorts
func (u *Uploader) Short() Publisher { return &shortPublisher{u} }

// Publishers maps each content type to its publisher
func (u *Uploader) Publishers() map[types.ContentType]Publisher {
	return map[types.ContentType]Publisher{
		types.Video: u.Video(),
		types.Short: u.Short(),
	}
}

// MediaPath is where the rendered file for slug is expected
func (u *Uploader) MediaPath(t types.ContentType, slug string) string {
	return filepath.Join(u.outDir, fmt.Sprintf("%s-%s.mp4", slug, t))
}

// ThumbnailPath is where the optional video thumbnail is expected
func (u *Uploader) ThumbnailPath(slug string) string {
	return filepath.Join(u.outDir, slug+"-thumbnail.png")
}

type videoPublisher struct{ u *Uploader }

// Publish uploads a full video. A future publishDate is scheduled (private +
// publishAt); otherwise the metadata privacy status applies immediately.
func (p *videoPublisher) Publish(ctx context.Context, slug string) (*types.PublishResult, error) {
	u := p.u
	meta, mediaPath, err := u.inputs(types.Video, slug)
	if err != nil {
		return nil, err
	}

	status := u.status(meta.PrivacyStatus)
	log := u.log.WithFields(logrus.Fields{"type": types.Video, "slug": slug})

	if meta.PublishDate != "" {
		publishAt, err := time.Parse(time.RFC3339, meta.PublishDate)
		if err != nil {
			return nil, fmt.Errorf("metadata %s: invalid publishDate: %w", slug, err)
		}
		if publishAt.After(u.now()) {
			status.PrivacyStatus = "private" // must be private to schedule
			status.PublishAt = publishAt.UTC().Format(time.RFC3339)
			log.Infof("Scheduled for: %s UTC", status.PublishAt)
		} else {
			log.Warnf("Publish date %s is in the past, publishing immediately as %s", meta.PublishDate, status.PrivacyStatus)
		}
	}

	id, err := u.insert(ctx, meta, mediaPath, status)
	if err != nil {
		return nil, err
	}

	if thumb := u.ThumbnailPath(slug); fileExists(thumb) {
		if err := u.setThumbnail(ctx, id, thumb); err != nil {
			log.WithError(err).Warn("Thumbnail upload failed, video stays published")
		} else {
			log.Info("Thumbnail uploaded")
		}
	}

	url := "https://www.youtube.com/watch?v=" + id
	log.WithField("video_id", id).Infof("Video URL: %s", url)
	return &types.PublishResult{ID: id, URL: url, Title: meta.Title}, nil
}

type shortPublisher struct{ u *Uploader }

// Publish uploads a short immediately with the metadata privacy status
func (p *shortPublisher) Publish(ctx context.Context, slug string) (*types.PublishResult, error) {
	u := p.u
	meta, mediaPath, err := u.inputs(types.Short, slug)
	if err != nil {
		return nil, err
	}

	status := u.status(meta.PrivacyStatus)
	id, err := u.insert(ctx, meta, mediaPath, status)
	if err != nil {
		return nil, err
	}

	url := "https://www.youtube.com/shorts/" + id
	u.log.WithFields(logrus.Fields{"type": types.Short, "slug": slug, "video_id": id}).
		Infof("Short URL: %s", url)
	return &types.PublishResult{ID: id, URL: url, Title: meta.Title}, nil
}

// inputs loads the metadata document and checks the media file exists
func (u *Uploader) inputs(t types.ContentType, slug string) (*types.ContentMetadata, string, error) {
	meta, err := u.catalog.Get(t, slug)
	if errors.Is(err, metadata.ErrNotFound) {
		return nil, "", &NotFoundError{Kind: "metadata", Path: u.catalog.Path(t, slug), Err: err}
	}
	if err != nil {
		return nil, "", err
	}

	mediaPath := u.MediaPath(t, slug)
	if _, err := os.Stat(mediaPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", &NotFoundError{Kind: "media", Path: mediaPath, Err: err}
		}
		return nil, "", err
	}
	return meta, mediaPath, nil
}

func (u *Uploader) status(privacy string) *youtube.VideoStatus {
	if privacy == "" {
		privacy = "private"
	}
	return &youtube.VideoStatus{
		PrivacyStatus:           privacy,
		SelfDeclaredMadeForKids: u.cfg.MadeForKids,
		ForceSendFields:         []string{"SelfDeclaredMadeForKids"},
	}
}

func (u *Uploader) insert(ctx context.Context, meta *types.ContentMetadata, mediaPath string, status *youtube.VideoStatus) (string, error) {
	f, err := os.Open(mediaPath)
	if err != nil {
		return "", fmt.Errorf("open video file: %w", err)
	}
	defer f.Close()

	if fi, err := f.Stat(); err == nil {
		u.log.Infof("Uploading %q (%.1f MB)", meta.Title, float64(fi.Size())/1024/1024)
	}

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:                meta.Title,
			Description:          meta.Description,
			Tags:                 meta.Tags,
			CategoryId:           meta.CategoryID,
			DefaultLanguage:      u.cfg.DefaultLanguage,
			DefaultAudioLanguage: u.cfg.DefaultLanguage,
		},
		Status: status,
	}

	uploaded, err := u.api.Insert(ctx, video, f)
	if err != nil {
		return "", &AdapterError{Op: "insert", Slug: meta.Slug, Err: err}
	}
	return uploaded.Id, nil
}

func (u *Uploader) setThumbnail(ctx context.Context, videoID, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return u.api.SetThumbnail(ctx, videoID, f)
}

func fileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
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
