package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"album-publisher/types"
)

// JSONStore keeps the tracking document in a single JSON file
type JSONStore struct {
	path string
	now  func() time.Time
}

// NewJSONStore creates a store backed by path
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path, now: time.Now}
}

// Load reads the file. A missing file is an empty state, not an error.
func (s *JSONStore) Load(ctx context.Context) (*types.TrackingState, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Empty(s.now()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read tracking: %w", err)
	}

	var state types.TrackingState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse tracking %s: %w", s.path, err)
	}
	if state.Videos == nil {
		state.Videos = []types.TrackingRecord{}
	}
	if state.Shorts == nil {
		state.Shorts = []types.TrackingRecord{}
	}
	return &state, nil
}

// Save stamps lastCheck and replaces the file via write-then-rename
func (s *JSONStore) Save(ctx context.Context, state *types.TrackingState) error {
	state.LastCheck = s.now().UTC().Format(time.RFC3339)

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal tracking: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".tracking-*.json")
	if err != nil {
		return fmt.Errorf("write tracking: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return fmt.Errorf("write tracking: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write tracking: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write tracking: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace tracking: %w", err)
	}
	return nil
}
