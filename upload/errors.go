package upload

import "fmt"

// NotFoundError means a local input (metadata document or media file) is missing
type NotFoundError struct {
	Kind string // "metadata" or "media"
	Path string
	Err  error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Path)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// AdapterError wraps a rejection from the YouTube API
type AdapterError struct {
	Op   string
	Slug string
	Err  error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("youtube %s %s: %v", e.Op, e.Slug, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }
