package upload

import (
	"context"
	"fmt"
)

// ChannelInfo summarizes the authorized channel
type ChannelInfo struct {
	Name        string `json:"name"`
	ID          string `json:"id"`
	Subscribers uint64 `json:"subscribers"`
	Videos      uint64 `json:"videos"`
}

// Channel fetches the channel owned by the authorized account
func (u *Uploader) Channel(ctx context.Context) (*ChannelInfo, error) {
	ch, err := u.api.MyChannel(ctx)
	if err != nil {
		return nil, fmt.Errorf("channels list: %w", err)
	}

	info := &ChannelInfo{ID: ch.Id}
	if ch.Snippet != nil {
		info.Name = ch.Snippet.Title
	}
	if ch.Statistics != nil {
		info.Subscribers = ch.Statistics.SubscriberCount
		info.Videos = ch.Statistics.VideoCount
	}
	return info, nil
}
