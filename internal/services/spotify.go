package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/beatsync/internal/auth"
	"github.com/desertthunder/beatsync/internal/models"
	"github.com/desertthunder/beatsync/internal/shared"
	"golang.org/x/time/rate"
)

const spotifyBaseURL = "https://api.spotify.com/v1"

// maxTrackBatch is Spotify's per-request item ceiling for playlist writes.
const maxTrackBatch = 100

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyUser represents the authenticated user's profile.
type SpotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type simplePlaylist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type paginatedPlaylists struct {
	Items []simplePlaylist `json:"items"`
	Next  *string          `json:"next"`
	Total int              `json:"total"`
}

type playlistItemTrack struct {
	Track struct {
		URI string `json:"uri"`
	} `json:"track"`
}

type paginatedPlaylistItems struct {
	Items []playlistItemTrack `json:"items"`
	Next  *string             `json:"next"`
}

type searchResponse struct {
	Tracks struct {
		Items []struct {
			URI string `json:"uri"`
		} `json:"items"`
	} `json:"tracks"`
}

// apiError is a non-2xx Spotify API response.
type apiError struct {
	Status int
	Body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("spotify API error: status %d", e.Status)
}

// IsAuthError reports whether err is a 401-class API response.
func IsAuthError(err error) bool {
	var apiErr *apiError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// SpotifyClient is the authenticated, rate limited Spotify Web API client.
type SpotifyClient struct {
	auth       *auth.Manager
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
	baseURL    string
}

// SpotifyClientOpts contains configuration options for creating a SpotifyClient.
type SpotifyClientOpts struct {
	Auth       *auth.Manager
	HTTPClient *http.Client
	Logger     *log.Logger
	// BaseURL overrides the API root, for tests.
	BaseURL string
	// Limiter overrides the politeness limiter; defaults to 5 requests/s.
	Limiter *rate.Limiter
}

// NewSpotifyClient creates a client backed by the given credential manager.
func NewSpotifyClient(opts SpotifyClientOpts) (*SpotifyClient, error) {
	if opts.Auth == nil {
		return nil, fmt.Errorf("%w: credential manager is required", shared.ErrInvalidConfig)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = spotifyBaseURL
	}
	if opts.Limiter == nil {
		opts.Limiter = rate.NewLimiter(rate.Every(200*time.Millisecond), 1)
	}

	return &SpotifyClient{
		auth:       opts.Auth,
		httpClient: opts.HTTPClient,
		limiter:    opts.Limiter,
		logger:     opts.Logger,
		baseURL:    opts.BaseURL,
	}, nil
}

// ProfileProbe validates an access token with a profile fetch, without
// touching the credential manager. Wired as the manager's probe.
func (s *SpotifyClient) ProfileProbe(ctx context.Context, accessToken string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/me", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &apiError{Status: resp.StatusCode}
	}
	return nil
}

// doRequest performs an authenticated request against the Spotify API.
//
// A 401 response triggers one credential state machine re-evaluation and a
// single retry; every other non-2xx status surfaces as an *apiError.
func (s *SpotifyClient) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	retried := false
	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
		}

		token, err := s.auth.AccessToken(ctx)
		if err != nil {
			return err
		}

		var reqBody io.Reader
		contentType := "application/json"
		switch payload := body.(type) {
		case nil:
		case rawBody:
			reqBody = strings.NewReader(payload.data)
			contentType = payload.contentType
		default:
			data, err := json.Marshal(payload)
			if err != nil {
				return fmt.Errorf("failed to marshal request body: %w", err)
			}
			reqBody = bytes.NewReader(data)
		}

		req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, reqBody)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", contentType)

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
		}

		if resp.StatusCode == http.StatusUnauthorized && !retried {
			resp.Body.Close()
			retried = true
			if err := s.auth.Recover(ctx); err != nil {
				return err
			}
			continue
		}

		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return fmt.Errorf("%w", &apiError{Status: resp.StatusCode, Body: string(data)})
		}

		if result != nil {
			if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
				return fmt.Errorf("failed to decode response: %w", err)
			}
		}
		return nil
	}
}

// rawBody carries a non-JSON request body through doRequest.
type rawBody struct {
	data        string
	contentType string
}

// CurrentUserID retrieves the authenticated user's id.
func (s *SpotifyClient) CurrentUserID(ctx context.Context) (string, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return "", err
	}
	return user.ID, nil
}

// Playlists retrieves the first page (50 entries) of the user's playlists.
//
// Accounts with more playlists than one page are a documented design limit
// of find-or-create: a managed playlist beyond the first page would be
// re-created rather than found.
func (s *SpotifyClient) Playlists(ctx context.Context) ([]models.TargetPlaylistRef, error) {
	var response paginatedPlaylists
	if err := s.doRequest(ctx, http.MethodGet, "/me/playlists?limit=50", nil, &response); err != nil {
		return nil, err
	}

	refs := make([]models.TargetPlaylistRef, 0, len(response.Items))
	for _, item := range response.Items {
		refs = append(refs, models.TargetPlaylistRef{ID: item.ID, Title: item.Name})
	}
	return refs, nil
}

// CreatePlaylist creates a public, non-collaborative playlist whose
// description records the source URL, and returns its id.
func (s *SpotifyClient) CreatePlaylist(ctx context.Context, userID, title, description string) (string, error) {
	body := map[string]any{
		"name":          title,
		"description":   description,
		"public":        true,
		"collaborative": false,
	}

	var created struct {
		ID string `json:"id"`
	}
	endpoint := fmt.Sprintf("/users/%s/playlists", url.PathEscape(userID))
	if err := s.doRequest(ctx, http.MethodPost, endpoint, body, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", fmt.Errorf("%w: created playlist has no id", shared.ErrAPIRequest)
	}
	return created.ID, nil
}

// PlaylistTrackURIs retrieves the full member list of a playlist in order,
// following pagination.
func (s *SpotifyClient) PlaylistTrackURIs(ctx context.Context, playlistID string) ([]string, error) {
	var uris []string
	endpoint := fmt.Sprintf("/playlists/%s/tracks?fields=items(track(uri)),next&limit=100", url.PathEscape(playlistID))

	for {
		var page paginatedPlaylistItems
		if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
			return nil, err
		}

		for _, item := range page.Items {
			if item.Track.URI != "" {
				uris = append(uris, item.Track.URI)
			}
		}

		if page.Next == nil || *page.Next == "" {
			break
		}
		next := strings.TrimPrefix(*page.Next, s.baseURL)
		if next == *page.Next {
			// Absolute next link pointing at the production API; strip the
			// default base so test overrides keep working.
			next = strings.TrimPrefix(*page.Next, spotifyBaseURL)
		}
		endpoint = next
	}

	return uris, nil
}

// RemoveTracks bulk-removes the given track URIs from a playlist, chunked to
// the API's per-request ceiling.
func (s *SpotifyClient) RemoveTracks(ctx context.Context, playlistID string, uris []string) error {
	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))

	for _, chunk := range chunkURIs(uris, maxTrackBatch) {
		tracks := make([]map[string]string, 0, len(chunk))
		for _, uri := range chunk {
			tracks = append(tracks, map[string]string{"uri": uri})
		}
		body := map[string]any{"tracks": tracks}

		if err := s.doRequest(ctx, http.MethodDelete, endpoint, body, nil); err != nil {
			return err
		}
	}
	return nil
}

// AddTracks bulk-adds the given track URIs to a playlist in order, chunked to
// the API's per-request ceiling. The concatenation of the chunks equals the
// input order exactly.
func (s *SpotifyClient) AddTracks(ctx context.Context, playlistID string, uris []string) error {
	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))

	for _, chunk := range chunkURIs(uris, maxTrackBatch) {
		body := map[string]any{"uris": chunk}
		if err := s.doRequest(ctx, http.MethodPost, endpoint, body, nil); err != nil {
			return err
		}
	}
	return nil
}

// SearchTrackURI searches for a track and returns the first result's URI.
// No ranking: first result wins. A miss returns [shared.ErrTrackNotFound].
func (s *SpotifyClient) SearchTrackURI(ctx context.Context, query string) (string, error) {
	endpoint := fmt.Sprintf("/search?type=track&limit=1&q=%s", url.QueryEscape(query))

	var response searchResponse
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return "", err
	}

	if len(response.Tracks.Items) == 0 {
		return "", fmt.Errorf("%w: no match for %q", shared.ErrTrackNotFound, query)
	}
	return response.Tracks.Items[0].URI, nil
}

// CoverImages retrieves the playlist's current cover images.
func (s *SpotifyClient) CoverImages(ctx context.Context, playlistID string) ([]SpotifyImage, error) {
	var images []SpotifyImage
	endpoint := fmt.Sprintf("/playlists/%s/images", url.PathEscape(playlistID))
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &images); err != nil {
		return nil, err
	}
	return images, nil
}

// UploadCoverImage replaces the playlist's cover with a base64 encoded JPEG.
func (s *SpotifyClient) UploadCoverImage(ctx context.Context, playlistID, imageBase64 string) error {
	endpoint := fmt.Sprintf("/playlists/%s/images", url.PathEscape(playlistID))
	body := rawBody{data: imageBase64, contentType: "image/jpeg"}
	return s.doRequest(ctx, http.MethodPut, endpoint, body, nil)
}

// chunkURIs splits uris into batches of at most size, preserving order.
func chunkURIs(uris []string, size int) [][]string {
	if len(uris) == 0 {
		return nil
	}

	var chunks [][]string
	for start := 0; start < len(uris); start += size {
		end := min(start+size, len(uris))
		chunks = append(chunks, uris[start:end])
	}
	return chunks
}
