// Package tracking persists what has been published. It is the source of
// truth the schedule is reconciled against at the start of every run.
package tracking

import (
	"context"
	"time"

	"album-publisher/types"
)

// Store loads and saves the whole tracking document. There is no locking;
// one writer per run is assumed.
type Store interface {
	Load(ctx context.Context) (*types.TrackingState, error)
	Save(ctx context.Context, state *types.TrackingState) error
}

// Empty returns a fresh state with no records
func Empty(now time.Time) *types.TrackingState {
	return &types.TrackingState{
		Videos:    []types.TrackingRecord{},
		Shorts:    []types.TrackingRecord{},
		LastCheck: now.UTC().Format(time.RFC3339),
	}
}
