// Package schedule holds the publishing plan: which video and which short go
// out on which day, and the queries the auto-publisher runs against it.
package schedule

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"album-publisher/types"
)

type weekRow struct {
	Week      int                  `yaml:"week" validate:"gt=0"`
	VideoSlug string               `yaml:"video_slug" validate:"required"`
	VideoDate string               `yaml:"video_date" validate:"required"`
	ShortSlug string               `yaml:"short_slug" validate:"required"`
	ShortDate string               `yaml:"short_date" validate:"required"`
	Published types.PublishedFlags `yaml:"published"`
}

type file struct {
	Weeks []weekRow `yaml:"weeks" validate:"dive"`
}

// Table is the ordered list of scheduled weeks. The published flags are a
// run-scoped view; the tracking store is the source of truth.
type Table struct {
	weeks []types.ScheduledWeek
}

// New builds a table from rows, ordered by week
func New(weeks []types.ScheduledWeek) *Table {
	rows := make([]types.ScheduledWeek, len(weeks))
	copy(rows, weeks)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Week < rows[j].Week })
	return &Table{weeks: rows}
}

// Load reads and validates the schedule file
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schedule: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML schedule document
func Parse(data []byte) (*Table, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse schedule: %w", err)
	}
	if len(f.Weeks) == 0 {
		return nil, fmt.Errorf("schedule has no weeks")
	}
	if err := validator.New().Struct(f); err != nil {
		return nil, fmt.Errorf("invalid schedule: %w", err)
	}

	seen := make(map[int]bool)
	weeks := make([]types.ScheduledWeek, 0, len(f.Weeks))
	for _, row := range f.Weeks {
		if seen[row.Week] {
			return nil, fmt.Errorf("invalid schedule: week %d listed twice", row.Week)
		}
		seen[row.Week] = true

		videoDate, err := time.Parse(time.RFC3339, row.VideoDate)
		if err != nil {
			return nil, fmt.Errorf("invalid schedule: week %d video_date: %w", row.Week, err)
		}
		shortDate, err := time.Parse(time.RFC3339, row.ShortDate)
		if err != nil {
			return nil, fmt.Errorf("invalid schedule: week %d short_date: %w", row.Week, err)
		}

		weeks = append(weeks, types.ScheduledWeek{
			Week:      row.Week,
			VideoSlug: row.VideoSlug,
			VideoDate: videoDate,
			ShortSlug: row.ShortSlug,
			ShortDate: shortDate,
			Published: row.Published,
		})
	}
	return New(weeks), nil
}

// Weeks returns a copy of the rows in week order
func (t *Table) Weeks() []types.ScheduledWeek {
	out := make([]types.ScheduledWeek, len(t.weeks))
	copy(out, t.weeks)
	return out
}

// Len is the number of weeks
func (t *Table) Len() int { return len(t.weeks) }

// DueToday lists unpublished items whose date falls on now's calendar day, in
// week order with the video before the short of the same row.
func (t *Table) DueToday(now time.Time) []types.DueItem {
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	todayEnd := todayStart.AddDate(0, 0, 1)

	inToday := func(d time.Time) bool {
		return !d.Before(todayStart) && d.Before(todayEnd)
	}

	var due []types.DueItem
	for _, w := range t.weeks {
		if !w.Published.Video && inToday(w.VideoDate) {
			due = append(due, types.DueItem{Type: types.Video, Slug: w.VideoSlug, Date: w.VideoDate, Week: w.Week})
		}
		if !w.Published.Short && inToday(w.ShortDate) {
			due = append(due, types.DueItem{Type: types.Short, Slug: w.ShortSlug, Date: w.ShortDate, Week: w.Week})
		}
	}
	return due
}

// NextScheduledItem returns the first unpublished item dated strictly after now
func (t *Table) NextScheduledItem(now time.Time) (types.DueItem, bool) {
	for _, w := range t.weeks {
		if !w.Published.Video && w.VideoDate.After(now) {
			return types.DueItem{Type: types.Video, Slug: w.VideoSlug, Date: w.VideoDate, Week: w.Week}, true
		}
		if !w.Published.Short && w.ShortDate.After(now) {
			return types.DueItem{Type: types.Short, Slug: w.ShortSlug, Date: w.ShortDate, Week: w.Week}, true
		}
	}
	return types.DueItem{}, false
}

// MarkPublished flags the row of the given week carrying slug as the given
// type. When week is 0 or no such row exists, the first still-unpublished row
// carrying slug is flagged instead. Returns false when nothing was flagged.
func (t *Table) MarkPublished(contentType types.ContentType, slug string, week int) bool {
	if week > 0 {
		for i := range t.weeks {
			if t.weeks[i].Week != week {
				continue
			}
			if s, _, flag := t.cell(i, contentType); s == slug {
				*flag = true
				return true
			}
		}
	}
	for i := range t.weeks {
		if s, _, flag := t.cell(i, contentType); s == slug && !*flag {
			*flag = true
			return true
		}
	}
	return false
}

// WeekOf returns the week of the first row carrying slug as the given type
func (t *Table) WeekOf(contentType types.ContentType, slug string) (int, bool) {
	for i := range t.weeks {
		if s, _, _ := t.cell(i, contentType); s == slug {
			return t.weeks[i].Week, true
		}
	}
	return 0, false
}

// Reconcile derives the published flags from the tracking store. Each record
// accounts for one row with the same slug and type: the row dated on the
// record's publishedDate (calendar day in loc) when there is one, otherwise
// the first row no other record accounts for. A slug reused in a later week
// stays due until it has its own record.
func (t *Table) Reconcile(state *types.TrackingState, loc *time.Location) {
	if state == nil {
		return
	}
	if loc == nil {
		loc = time.Local
	}

	type record struct {
		typ  types.ContentType
		slug string
		day  string
	}
	var records []record
	for _, rec := range state.Videos {
		records = append(records, record{types.Video, rec.Slug, rec.PublishedDate})
	}
	for _, rec := range state.Shorts {
		records = append(records, record{types.Short, rec.Slug, rec.PublishedDate})
	}

	claimed := make(map[slot]bool)
	claim := func(rec record, match func(date time.Time) bool) bool {
		for i := range t.weeks {
			k := slot{row: i, typ: rec.typ}
			s, date, flag := t.cell(i, rec.typ)
			if s != rec.slug || claimed[k] || !match(date) {
				continue
			}
			claimed[k] = true
			*flag = true
			return true
		}
		return false
	}

	var undated []record
	for _, rec := range records {
		onDay := func(date time.Time) bool { return date.In(loc).Format("2006-01-02") == rec.day }
		if rec.day == "" || !claim(rec, onDay) {
			undated = append(undated, rec)
		}
	}
	for _, rec := range undated {
		claim(rec, func(time.Time) bool { return true })
	}
}

type slot struct {
	row int
	typ types.ContentType
}

// cell returns the slug, date and published flag of one half of a row
func (t *Table) cell(row int, contentType types.ContentType) (string, time.Time, *bool) {
	w := &t.weeks[row]
	if contentType == types.Short {
		return w.ShortSlug, w.ShortDate, &w.Published.Short
	}
	return w.VideoSlug, w.VideoDate, &w.Published.Video
}
