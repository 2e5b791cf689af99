package cover

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/beatsync/internal/bus"
	"github.com/desertthunder/beatsync/internal/services"
	"github.com/desertthunder/beatsync/internal/shared"
)

// CoverAPI is the slice of the Spotify client the cover stages need.
type CoverAPI interface {
	CoverImages(ctx context.Context, playlistID string) ([]services.SpotifyImage, error)
	UploadCoverImage(ctx context.Context, playlistID, imageBase64 string) error
}

// Policy decides, per playlist event, whether a cover must be (re)generated
// and emits the upload job.
//
// Delivery is at-least-once, so the policy never trusts the triggering event
// alone: it re-fetches and re-classifies the live cover first. A duplicate
// event for an already-covered playlist is a no-op.
type Policy struct {
	api       CoverAPI
	renderer  Renderer
	publisher message.Publisher
	logger    *log.Logger
	enabled   bool
}

// NewPolicy creates the policy stage.
func NewPolicy(api CoverAPI, renderer Renderer, publisher message.Publisher, logger *log.Logger, enabled bool) *Policy {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Policy{
		api:       api,
		renderer:  renderer,
		publisher: publisher,
		logger:    logger,
		enabled:   enabled,
	}
}

// HandlePlaylistEvent consumes playlist created/updated events and publishes
// a cover.generated job when the live cover is missing or the mosaic default.
func (p *Policy) HandlePlaylistEvent(msg *message.Message) error {
	if !p.enabled {
		return nil
	}

	var event bus.PlaylistEvent
	if err := bus.Unmarshal(msg, &event); err != nil {
		p.logger.Error("dropping malformed playlist event", "err", err)
		return nil
	}

	encoded, needed, err := p.renderIfNeeded(msg.Context(), event.PlaylistID, event.Title)
	if err != nil {
		return err
	}
	if !needed {
		return nil
	}

	job, err := bus.Marshal(bus.CoverGenerated{PlaylistID: event.PlaylistID, ImageBase64: encoded})
	if err != nil {
		return err
	}
	return p.publisher.Publish(bus.TopicCoverGenerated, job)
}

// Ensure applies the policy to one playlist synchronously, uploading directly
// instead of publishing a job. Used by the one-shot sync command.
func (p *Policy) Ensure(ctx context.Context, playlistID, title string) error {
	if !p.enabled {
		return nil
	}

	encoded, needed, err := p.renderIfNeeded(ctx, playlistID, title)
	if err != nil {
		return err
	}
	if !needed {
		return nil
	}

	p.logger.Info("uploading cover image", "playlist", playlistID)
	return p.api.UploadCoverImage(ctx, playlistID, encoded)
}

// renderIfNeeded re-checks the live cover and renders a replacement when it
// is missing or the mosaic default. Returns needed=false when the current
// cover is already a custom upload.
func (p *Policy) renderIfNeeded(ctx context.Context, playlistID, title string) (string, bool, error) {
	images, err := p.api.CoverImages(ctx, playlistID)
	if err != nil {
		return "", false, fmt.Errorf("failed to fetch cover images for %s: %w", playlistID, err)
	}

	status := Classify(images)
	if status == StatusValid {
		p.logger.Info("valid cover image found", "playlist", title)
		return "", false, nil
	}
	p.logger.Info("no valid cover image found", "playlist", title, "status", status.String())

	imageBytes, err := p.renderer.Render(ctx, CleanTitle(title))
	if err != nil {
		return "", false, fmt.Errorf("failed to render cover for %s: %w", title, err)
	}

	encoded := base64.StdEncoding.EncodeToString(imageBytes)
	if len(encoded) > MaxEncodedBytes {
		return "", false, fmt.Errorf("rendered cover for %s exceeds the %d byte encoded ceiling", title, MaxEncodedBytes)
	}
	return encoded, true, nil
}

// Uploader consumes cover.generated jobs and uploads through the
// authenticated client.
type Uploader struct {
	api    CoverAPI
	logger *log.Logger
}

// NewUploader creates the upload stage.
func NewUploader(api CoverAPI, logger *log.Logger) *Uploader {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Uploader{api: api, logger: logger}
}

// HandleCoverGenerated uploads a rendered cover. The validity re-check makes
// duplicate delivery of the same job harmless.
func (u *Uploader) HandleCoverGenerated(msg *message.Message) error {
	var job bus.CoverGenerated
	if err := bus.Unmarshal(msg, &job); err != nil {
		u.logger.Error("dropping malformed cover job", "err", err)
		return nil
	}

	ctx := msg.Context()

	images, err := u.api.CoverImages(ctx, job.PlaylistID)
	if err != nil {
		return fmt.Errorf("failed to re-check cover for %s: %w", job.PlaylistID, err)
	}
	if Classify(images) == StatusValid {
		u.logger.Debug("cover already valid, skipping upload", "playlist", job.PlaylistID)
		return nil
	}

	u.logger.Info("uploading cover image", "playlist", job.PlaylistID)
	if err := u.api.UploadCoverImage(ctx, job.PlaylistID, job.ImageBase64); err != nil {
		return fmt.Errorf("failed to upload cover for %s: %w", job.PlaylistID, err)
	}

	u.logger.Info("cover image uploaded", "playlist", job.PlaylistID)
	return nil
}
