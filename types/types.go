package types

import "time"

// ContentType is the kind of content item being scheduled or published
type ContentType string

const (
	Video ContentType = "video"
	Short ContentType = "short"
)

// Valid reports whether t is one of the known content types
func (t ContentType) Valid() bool {
	return t == Video || t == Short
}

// PublishedFlags records which halves of a week went out
type PublishedFlags struct {
	Video bool `json:"video" yaml:"video"`
	Short bool `json:"short" yaml:"short"`
}

// ScheduledWeek is one planning unit: a full video plus its paired short
type ScheduledWeek struct {
	Week      int            `json:"week"`
	VideoSlug string         `json:"videoSlug"`
	VideoDate time.Time      `json:"videoDate"`
	ShortSlug string         `json:"shortSlug"`
	ShortDate time.Time      `json:"shortDate"`
	Published PublishedFlags `json:"published"`
}

// DueItem is a schedule entry that needs action
type DueItem struct {
	Type ContentType `json:"type"`
	Slug string      `json:"slug"`
	Date time.Time   `json:"date"`
	Week int         `json:"week"`
}

// PublishResult is what the hosting platform hands back after an upload
type PublishResult struct {
	ID    string `json:"videoId"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

// TrackingRecord is one successfully published item
type TrackingRecord struct {
	Slug              string      `json:"slug" db:"slug"`
	Title             string      `json:"title" db:"title"`
	PublishedDate     string      `json:"publishedDate" db:"published_date"`
	PublishedManually bool        `json:"publishedManually" db:"published_manually"`
	Type              ContentType `json:"type" db:"type"`
	Status            string      `json:"status" db:"status"`
	VideoID           string      `json:"videoId,omitempty" db:"video_id"`
	Views             *int64      `json:"views,omitempty" db:"views"`
}

// TrackingState is the whole persisted tracking document
type TrackingState struct {
	Videos    []TrackingRecord `json:"videos"`
	Shorts    []TrackingRecord `json:"shorts"`
	LastCheck string           `json:"lastCheck"`
}

// Records returns the records of the given type
func (s *TrackingState) Records(t ContentType) []TrackingRecord {
	if t == Short {
		return s.Shorts
	}
	return s.Videos
}

// Append adds a record to the list matching its type
func (s *TrackingState) Append(rec TrackingRecord) {
	if rec.Type == Short {
		s.Shorts = append(s.Shorts, rec)
		return
	}
	s.Videos = append(s.Videos, rec)
}

// ContentMetadata holds all YouTube upload metadata for one slug
type ContentMetadata struct {
	Slug          string   `json:"slug" validate:"required"`
	Week          int      `json:"week" validate:"gte=0"`
	PublishDate   string   `json:"publishDate"`
	Title         string   `json:"title" validate:"required"`
	Description   string   `json:"description"`
	Tags          []string `json:"tags"`
	CategoryID    string   `json:"categoryId"`
	PrivacyStatus string   `json:"privacyStatus" validate:"omitempty,oneof=public private unlisted"`
}

// Outcome is the result of one publish attempt inside a run
type Outcome struct {
	Type    ContentType `json:"type"`
	Slug    string      `json:"slug"`
	Week    int         `json:"week,omitempty"`
	Success bool        `json:"success"`
	Error   string      `json:"error,omitempty"`
	VideoID string      `json:"videoId,omitempty"`
	URL     string      `json:"url,omitempty"`
	Title   string      `json:"title,omitempty"`
}

// ReportEntry is one line of a manual batch report file
type ReportEntry struct {
	VideoID string `json:"videoId"`
	URL     string `json:"url"`
	Title   string `json:"title"`
	Week    int    `json:"week"`
	Slug    string `json:"slug"`
	Error   string `json:"error,omitempty"`
}

// NotificationType classifies a notification
type NotificationType string

const (
	NotifySuccess NotificationType = "success"
	NotifyError   NotificationType = "error"
	NotifyInfo    NotificationType = "info"
)

// Valid reports whether t is one of the known notification types
func (t NotificationType) Valid() bool {
	return t == NotifySuccess || t == NotifyError || t == NotifyInfo
}

// Field is one label/value pair shown in a notification
type Field struct {
	Label string
	Value string
}

// Notification is a message for the out-of-band channel
type Notification struct {
	Type     NotificationType
	Subject  string
	Message  string
	Metadata []Field
}

// RunState tracks one coordinator run
type RunState struct {
	RunID       string    `json:"run_id"`
	Mode        string    `json:"mode"`
	StartedAt   string    `json:"started_at"`
	CompletedAt string    `json:"completed_at"`
	Outcomes    []Outcome `json:"outcomes"`
	// Schedule is the run's view of the table once it finished
	Schedule []ScheduledWeek `json:"schedule,omitempty"`
}

// Succeeded returns the successful outcomes in order
func (r *RunState) Succeeded() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Success {
			out = append(out, o)
		}
	}
	return out
}

// Failed returns the failed outcomes in order
func (r *RunState) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if !o.Success {
			out = append(out, o)
		}
	}
	return out
}
