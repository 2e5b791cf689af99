package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/beatsync/internal/bus"
	"github.com/desertthunder/beatsync/internal/cache"
	"github.com/desertthunder/beatsync/internal/fingerprint"
	"github.com/desertthunder/beatsync/internal/models"
	"github.com/desertthunder/beatsync/internal/shared"
)

// PlaylistAPI is the slice of the Spotify client the reconciler needs.
type PlaylistAPI interface {
	CurrentUserID(ctx context.Context) (string, error)
	Playlists(ctx context.Context) ([]models.TargetPlaylistRef, error)
	CreatePlaylist(ctx context.Context, userID, title, description string) (string, error)
	PlaylistTrackURIs(ctx context.Context, playlistID string) ([]string, error)
	RemoveTracks(ctx context.Context, playlistID string, uris []string) error
	AddTracks(ctx context.Context, playlistID string, uris []string) error
	SearchTrackURI(ctx context.Context, query string) (string, error)
}

// ReconcileResult summarizes one converged playlist.
type ReconcileResult struct {
	Target  models.TargetPlaylistRef
	Created bool // playlist did not exist before this cycle
	Matched int  // tracks resolved to a Spotify identity
	Total   int  // tracks in the source chart
}

// Reconciler converges one Spotify playlist to one source playlist.
//
// The strategy is find-or-create keyed on exact title equality, then
// clear-and-rebuild: remove every current member, re-add the full desired
// list in source order. The rebuild costs extra API calls but guarantees the
// final order equals the chart order exactly, which an incremental diff
// would not.
type Reconciler struct {
	api       PlaylistAPI
	cache     *cache.TrackMatchCache
	publisher message.Publisher
	logger    *log.Logger
}

// NewReconciler creates a reconciler publishing lifecycle events to publisher.
func NewReconciler(api PlaylistAPI, matchCache *cache.TrackMatchCache, publisher message.Publisher, logger *log.Logger) *Reconciler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Reconciler{
		api:       api,
		cache:     matchCache,
		publisher: publisher,
		logger:    logger,
	}
}

// Reconcile converges the target playlist for one source playlist. Running it
// twice with an unchanged source is idempotent: the second run finds the
// playlist by title and rebuilds it to the identical member list.
func (r *Reconciler) Reconcile(ctx context.Context, playlist *models.SourcePlaylist) (*ReconcileResult, error) {
	if err := playlist.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	r.logger.Info("trying to find playlist", "title", playlist.Title)

	target, created, err := r.findOrCreate(ctx, playlist)
	if err != nil {
		return nil, err
	}

	if created {
		if err := r.publishEvent(bus.TopicPlaylistCreated, target); err != nil {
			r.logger.Error("failed to publish playlist created event", "err", err)
		}
	}

	r.logger.Info("deleting tracks from playlist", "title", target.Title)
	if err := r.clear(ctx, target.ID); err != nil {
		return nil, err
	}

	r.logger.Info("adding tracks to playlist", "title", target.Title)
	uris, err := r.resolveTracks(ctx, playlist.Tracks)
	if err != nil {
		return nil, err
	}

	if len(uris) > 0 {
		if err := r.api.AddTracks(ctx, target.ID, uris); err != nil {
			return nil, err
		}
	}
	r.logger.Info("added tracks to playlist", "title", target.Title, "added", len(uris), "total", len(playlist.Tracks))

	if err := r.publishEvent(bus.TopicPlaylistUpdated, target); err != nil {
		r.logger.Error("failed to publish playlist updated event", "err", err)
	}

	return &ReconcileResult{
		Target:  target,
		Created: created,
		Matched: len(uris),
		Total:   len(playlist.Tracks),
	}, nil
}

// findOrCreate locates the target playlist by exact title among the first
// page of the user's playlists, creating it when absent. The title doubles
// as the idempotency key, so repeated cycles (and duplicate message
// delivery) never create a second playlist.
func (r *Reconciler) findOrCreate(ctx context.Context, playlist *models.SourcePlaylist) (models.TargetPlaylistRef, bool, error) {
	existing, err := r.api.Playlists(ctx)
	if err != nil {
		return models.TargetPlaylistRef{}, false, err
	}

	for _, candidate := range existing {
		if candidate.Title == playlist.Title {
			return candidate, false, nil
		}
	}

	r.logger.Info("no playlist found, creating", "source", playlist.URL)

	userID, err := r.api.CurrentUserID(ctx)
	if err != nil {
		return models.TargetPlaylistRef{}, false, err
	}

	id, err := r.api.CreatePlaylist(ctx, userID, playlist.Title, playlist.URL)
	if err != nil {
		return models.TargetPlaylistRef{}, false, err
	}

	return models.TargetPlaylistRef{ID: id, Title: playlist.Title}, true, nil
}

// clear removes every current member. An already empty playlist
// short-circuits the remove call.
func (r *Reconciler) clear(ctx context.Context, playlistID string) error {
	current, err := r.api.PlaylistTrackURIs(ctx, playlistID)
	if err != nil {
		return err
	}

	if len(current) == 0 {
		r.logger.Info("no tracks to delete")
		return nil
	}
	return r.api.RemoveTracks(ctx, playlistID, current)
}

// resolveTracks maps source tracks to Spotify URIs in order, consulting the
// match cache before searching. Unresolvable tracks are skipped and counted,
// never fatal; authorization failures abort the playlist.
func (r *Reconciler) resolveTracks(ctx context.Context, tracks []models.SourceTrack) ([]string, error) {
	uris := make([]string, 0, len(tracks))
	misses := 0

	for _, track := range tracks {
		key := fingerprint.Build(track)

		if uri, ok := r.cache.Lookup(key); ok {
			uris = append(uris, uri)
			continue
		}

		uri, err := r.api.SearchTrackURI(ctx, key)
		switch {
		case errors.Is(err, shared.ErrTrackNotFound):
			misses++
			r.logger.Info("no match", "query", key)
			continue
		case errors.Is(err, shared.ErrAuthorizationRequired), errors.Is(err, shared.ErrNotAuthenticated):
			return nil, err
		case err != nil:
			misses++
			r.logger.Error("track search failed", "query", key, "err", err)
			continue
		}

		r.cache.Store(key, uri)
		uris = append(uris, uri)
	}

	if misses > 0 {
		r.logger.Warn("some tracks could not be resolved", "unresolved", misses, "total", len(tracks))
	}
	return uris, nil
}

func (r *Reconciler) publishEvent(topic string, target models.TargetPlaylistRef) error {
	msg, err := bus.Marshal(bus.PlaylistEvent{PlaylistID: target.ID, Title: target.Title})
	if err != nil {
		return err
	}
	return r.publisher.Publish(topic, msg)
}
