package bus

import (
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
)

// SourceObtained is the payload of [TopicSourceObtained]: one chart URL to scrape.
type SourceObtained struct {
	URL string `json:"url"`
}

// PlaylistEvent is the payload of [TopicPlaylistCreated] and
// [TopicPlaylistUpdated]: the identity of a managed Spotify playlist.
type PlaylistEvent struct {
	PlaylistID string `json:"playlistId"`
	Title      string `json:"playlistTitle"`
}

// CoverGenerated is the payload of [TopicCoverGenerated]: a rendered cover
// ready for upload, already base64 encoded for the Spotify endpoint.
type CoverGenerated struct {
	PlaylistID  string `json:"playlistId"`
	ImageBase64 string `json:"base64CoverImage"`
}

// Marshal encodes a payload as a message ready for publishing.
func Marshal(payload any) (*message.Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}
	return NewMessage(data), nil
}

// Unmarshal decodes a message payload into target.
func Unmarshal(msg *message.Message, target any) error {
	if err := json.Unmarshal(msg.Payload, target); err != nil {
		return fmt.Errorf("failed to unmarshal event payload: %w", err)
	}
	return nil
}
