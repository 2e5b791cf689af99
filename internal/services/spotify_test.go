package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/desertthunder/beatsync/internal/auth"
	"github.com/desertthunder/beatsync/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// newTestClient builds a client against a local API server. The server also
// hosts the token endpoint so the credential manager stays offline.
func newTestClient(t *testing.T) (*SpotifyClient, *http.ServeMux) {
	t.Helper()

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "test-access",
			"refresh_token": "test-refresh",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	})

	manager, err := auth.NewManager(auth.ManagerOpts{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		AuthCode:     "test-code",
		Store:        auth.NewFileStore(t.TempDir()),
		Endpoint: oauth2.Endpoint{
			AuthURL:  srv.URL + "/authorize",
			TokenURL: srv.URL + "/token",
		},
	})
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	client, err := NewSpotifyClient(SpotifyClientOpts{
		Auth:    manager,
		BaseURL: srv.URL,
		Limiter: rate.NewLimiter(rate.Inf, 1),
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return client, mux
}

func TestSpotifyClient(t *testing.T) {
	ctx := context.Background()

	t.Run("CurrentUserID", func(t *testing.T) {
		client, mux := newTestClient(t)
		mux.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Authorization"); got != "Bearer test-access" {
				t.Errorf("Authorization header = %q", got)
			}
			json.NewEncoder(w).Encode(map[string]string{"id": "user-1"})
		})

		id, err := client.CurrentUserID(ctx)
		if err != nil {
			t.Fatalf("CurrentUserID failed: %v", err)
		}
		if id != "user-1" {
			t.Errorf("CurrentUserID() = %q, want %q", id, "user-1")
		}
	})

	t.Run("Playlists First Page Only", func(t *testing.T) {
		client, mux := newTestClient(t)
		mux.HandleFunc("/me/playlists", func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("limit"); got != "50" {
				t.Errorf("limit = %q, want 50", got)
			}
			json.NewEncoder(w).Encode(map[string]any{
				"items": []map[string]string{
					{"id": "p1", "name": "First"},
					{"id": "p2", "name": "Second"},
				},
				"next":  "https://api.spotify.com/v1/me/playlists?offset=50",
				"total": 120,
			})
		})

		playlists, err := client.Playlists(ctx)
		if err != nil {
			t.Fatalf("Playlists failed: %v", err)
		}
		if len(playlists) != 2 {
			t.Fatalf("expected 2 playlists, got %d", len(playlists))
		}
		if playlists[0].ID != "p1" || playlists[0].Title != "First" {
			t.Errorf("unexpected first playlist: %+v", playlists[0])
		}
	})

	t.Run("CreatePlaylist Is Public And Non Collaborative", func(t *testing.T) {
		client, mux := newTestClient(t)
		mux.HandleFunc("/users/user-1/playlists", func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			if body["public"] != true {
				t.Error("expected public playlist")
			}
			if body["collaborative"] != false {
				t.Error("expected non-collaborative playlist")
			}
			if body["description"] != "https://example.com/chart" {
				t.Errorf("description = %v", body["description"])
			}
			json.NewEncoder(w).Encode(map[string]string{"id": "new-playlist"})
		})

		id, err := client.CreatePlaylist(ctx, "user-1", "Chart Title", "https://example.com/chart")
		if err != nil {
			t.Fatalf("CreatePlaylist failed: %v", err)
		}
		if id != "new-playlist" {
			t.Errorf("CreatePlaylist() = %q, want %q", id, "new-playlist")
		}
	})

	t.Run("PlaylistTrackURIs Follows Pagination", func(t *testing.T) {
		client, mux := newTestClient(t)
		var srvURL string
		mux.HandleFunc("/playlists/p1/tracks", func(w http.ResponseWriter, r *http.Request) {
			page := map[string]any{}
			if r.URL.Query().Get("offset") == "" {
				page["items"] = []map[string]any{
					{"track": map[string]string{"uri": "spotify:track:1"}},
					{"track": map[string]string{"uri": "spotify:track:2"}},
				}
				page["next"] = srvURL + "/playlists/p1/tracks?offset=2"
			} else {
				page["items"] = []map[string]any{
					{"track": map[string]string{"uri": "spotify:track:3"}},
				}
				page["next"] = nil
			}
			json.NewEncoder(w).Encode(page)
		})
		srvURL = client.baseURL

		uris, err := client.PlaylistTrackURIs(ctx, "p1")
		if err != nil {
			t.Fatalf("PlaylistTrackURIs failed: %v", err)
		}
		want := []string{"spotify:track:1", "spotify:track:2", "spotify:track:3"}
		if len(uris) != len(want) {
			t.Fatalf("expected %d uris, got %d", len(want), len(uris))
		}
		for i := range want {
			if uris[i] != want[i] {
				t.Errorf("uris[%d] = %q, want %q", i, uris[i], want[i])
			}
		}
	})

	t.Run("AddTracks Chunks And Preserves Order", func(t *testing.T) {
		client, mux := newTestClient(t)

		uris := make([]string, 237)
		for i := range uris {
			uris[i] = fmt.Sprintf("spotify:track:%03d", i)
		}

		var batches [][]string
		mux.HandleFunc("/playlists/p1/tracks", func(w http.ResponseWriter, r *http.Request) {
			var body struct {
				URIs []string `json:"uris"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			batches = append(batches, body.URIs)
			w.WriteHeader(http.StatusCreated)
		})

		if err := client.AddTracks(ctx, "p1", uris); err != nil {
			t.Fatalf("AddTracks failed: %v", err)
		}

		if len(batches) != 3 {
			t.Fatalf("expected 3 batches, got %d", len(batches))
		}
		if len(batches[0]) != 100 || len(batches[1]) != 100 || len(batches[2]) != 37 {
			t.Errorf("batch sizes = %d/%d/%d, want 100/100/37", len(batches[0]), len(batches[1]), len(batches[2]))
		}

		var flattened []string
		for _, batch := range batches {
			flattened = append(flattened, batch...)
		}
		for i := range uris {
			if flattened[i] != uris[i] {
				t.Fatalf("order broken at %d: %q != %q", i, flattened[i], uris[i])
			}
		}
	})

	t.Run("RemoveTracks Body Format", func(t *testing.T) {
		client, mux := newTestClient(t)

		var body struct {
			Tracks []map[string]string `json:"tracks"`
		}
		mux.HandleFunc("/playlists/p1/tracks", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodDelete {
				t.Errorf("method = %s, want DELETE", r.Method)
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			w.WriteHeader(http.StatusOK)
		})

		if err := client.RemoveTracks(ctx, "p1", []string{"spotify:track:1", "spotify:track:2"}); err != nil {
			t.Fatalf("RemoveTracks failed: %v", err)
		}

		if len(body.Tracks) != 2 {
			t.Fatalf("expected 2 track objects, got %d", len(body.Tracks))
		}
		if body.Tracks[0]["uri"] != "spotify:track:1" {
			t.Errorf("first track = %v", body.Tracks[0])
		}
	})

	t.Run("SearchTrackURI", func(t *testing.T) {
		t.Run("First Result Wins", func(t *testing.T) {
			client, mux := newTestClient(t)
			mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
				if got := r.URL.Query().Get("q"); got != "strobe deadmau5" {
					t.Errorf("query = %q", got)
				}
				json.NewEncoder(w).Encode(map[string]any{
					"tracks": map[string]any{
						"items": []map[string]string{
							{"uri": "spotify:track:first"},
							{"uri": "spotify:track:second"},
						},
					},
				})
			})

			uri, err := client.SearchTrackURI(ctx, "strobe deadmau5")
			if err != nil {
				t.Fatalf("SearchTrackURI failed: %v", err)
			}
			if uri != "spotify:track:first" {
				t.Errorf("SearchTrackURI() = %q, want first result", uri)
			}
		})

		t.Run("Miss Returns ErrTrackNotFound", func(t *testing.T) {
			client, mux := newTestClient(t)
			mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]any{
					"tracks": map[string]any{"items": []any{}},
				})
			})

			_, err := client.SearchTrackURI(ctx, "nope")
			if !errors.Is(err, shared.ErrTrackNotFound) {
				t.Errorf("expected ErrTrackNotFound, got %v", err)
			}
		})
	})

	t.Run("Unauthorized Triggers One Recovery Retry", func(t *testing.T) {
		client, mux := newTestClient(t)

		calls := 0
		mux.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
			calls++
			if calls == 1 {
				http.Error(w, `{"error":{"status":401}}`, http.StatusUnauthorized)
				return
			}
			json.NewEncoder(w).Encode(map[string]string{"id": "user-1"})
		})

		id, err := client.CurrentUserID(ctx)
		if err != nil {
			t.Fatalf("expected retry to succeed, got %v", err)
		}
		if id != "user-1" {
			t.Errorf("CurrentUserID() = %q, want %q", id, "user-1")
		}
		if calls != 2 {
			t.Errorf("expected 2 calls to /me, got %d", calls)
		}
	})

	t.Run("UploadCoverImage Sends Raw Base64", func(t *testing.T) {
		client, mux := newTestClient(t)
		mux.HandleFunc("/playlists/p1/images", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPut {
				t.Errorf("method = %s, want PUT", r.Method)
			}
			if got := r.Header.Get("Content-Type"); got != "image/jpeg" {
				t.Errorf("content type = %q, want image/jpeg", got)
			}
			body, _ := io.ReadAll(r.Body)
			if string(body) != "aGVsbG8=" {
				t.Errorf("body = %q", string(body))
			}
			w.WriteHeader(http.StatusAccepted)
		})

		if err := client.UploadCoverImage(ctx, "p1", "aGVsbG8="); err != nil {
			t.Fatalf("UploadCoverImage failed: %v", err)
		}
	})

	t.Run("CoverImages", func(t *testing.T) {
		client, mux := newTestClient(t)
		mux.HandleFunc("/playlists/p1/images", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode([]map[string]any{
				{"url": "https://mosaic.scdn.co/abc", "height": 640, "width": 640},
			})
		})

		images, err := client.CoverImages(ctx, "p1")
		if err != nil {
			t.Fatalf("CoverImages failed: %v", err)
		}
		if len(images) != 1 || images[0].URL != "https://mosaic.scdn.co/abc" {
			t.Errorf("unexpected images: %+v", images)
		}
	})

	t.Run("IsAuthError", func(t *testing.T) {
		if !IsAuthError(&apiError{Status: http.StatusUnauthorized}) {
			t.Error("expected 401 to be an auth error")
		}
		if IsAuthError(&apiError{Status: http.StatusNotFound}) {
			t.Error("404 is not an auth error")
		}
		if IsAuthError(errors.New("other")) {
			t.Error("plain errors are not auth errors")
		}
	})
}
