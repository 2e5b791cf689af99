package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/beatsync/internal/shared"
	"golang.org/x/oauth2"
)

// fakeTokenServer is a minimal Spotify accounts endpoint. Responses are keyed
// on grant_type so exchange and refresh can be steered independently.
type fakeTokenServer struct {
	*httptest.Server
	exchangeStatus int
	refreshStatus  int
	refreshDelay   time.Duration
	accessToken    string
	refreshToken   string

	mu            sync.Mutex
	refreshCalls  int
	exchangeCalls int
}

func newFakeTokenServer(t *testing.T) *fakeTokenServer {
	t.Helper()
	fake := &fakeTokenServer{
		exchangeStatus: http.StatusOK,
		refreshStatus:  http.StatusOK,
		accessToken:    "access-token",
		refreshToken:   "refresh-token",
	}

	fake.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}

		status := fake.exchangeStatus
		response := map[string]any{
			"access_token": fake.accessToken,
			"token_type":   "Bearer",
			"expires_in":   3600,
		}

		switch r.FormValue("grant_type") {
		case "refresh_token":
			fake.mu.Lock()
			fake.refreshCalls++
			fake.mu.Unlock()
			time.Sleep(fake.refreshDelay)
			status = fake.refreshStatus
		default:
			fake.mu.Lock()
			fake.exchangeCalls++
			fake.mu.Unlock()
			if fake.refreshToken != "" {
				response["refresh_token"] = fake.refreshToken
			}
		}

		if status != http.StatusOK {
			http.Error(w, `{"error":"invalid_grant"}`, status)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}))
	t.Cleanup(fake.Close)
	return fake
}

func (f *fakeTokenServer) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCalls
}

func newTestManager(t *testing.T, fake *fakeTokenServer, opts ManagerOpts) (*Manager, ValueStore) {
	t.Helper()

	store := opts.Store
	if store == nil {
		store = NewFileStore(t.TempDir())
		opts.Store = store
	}
	opts.ClientID = "client-id"
	opts.ClientSecret = "client-secret"
	opts.Endpoint = oauth2.Endpoint{
		AuthURL:  fake.URL + "/authorize",
		TokenURL: fake.URL + "/token",
	}

	manager, err := NewManager(opts)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	return manager, store
}

func TestManager(t *testing.T) {
	ctx := context.Background()

	t.Run("Missing Credentials Rejected", func(t *testing.T) {
		_, err := NewManager(ManagerOpts{Store: NewFileStore(t.TempDir())})
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("AuthURL Carries Scopes", func(t *testing.T) {
		fake := newFakeTokenServer(t)
		manager, _ := newTestManager(t, fake, ManagerOpts{})

		url := manager.AuthURL()
		for _, scope := range []string{"playlist-modify-public", "playlist-modify-private", "ugc-image-upload"} {
			if !strings.Contains(url, scope) {
				t.Errorf("auth URL missing scope %q: %s", scope, url)
			}
		}
	})

	t.Run("No Credentials Requests Manual Authorization", func(t *testing.T) {
		fake := newFakeTokenServer(t)
		manager, _ := newTestManager(t, fake, ManagerOpts{})

		err := manager.Ensure(ctx)
		if !errors.Is(err, shared.ErrAuthorizationRequired) {
			t.Errorf("expected ErrAuthorizationRequired, got %v", err)
		}
	})

	t.Run("Pending Code Exchanged And Persisted", func(t *testing.T) {
		fake := newFakeTokenServer(t)
		fake.accessToken = "access-1"
		fake.refreshToken = "refresh-1"
		manager, store := newTestManager(t, fake, ManagerOpts{AuthCode: "code-1"})

		if err := manager.Ensure(ctx); err != nil {
			t.Fatalf("expected successful exchange, got %v", err)
		}

		if fake.exchangeCalls != 1 {
			t.Errorf("expected 1 exchange call, got %d", fake.exchangeCalls)
		}
		if access, _ := store.Read(ValueAccessToken); access != "access-1" {
			t.Errorf("persisted access token = %q, want %q", access, "access-1")
		}
		if refresh, _ := store.Read(ValueRefreshToken); refresh != "refresh-1" {
			t.Errorf("persisted refresh token = %q, want %q", refresh, "refresh-1")
		}

		token, err := manager.AccessToken(ctx)
		if err != nil {
			t.Fatalf("AccessToken failed: %v", err)
		}
		if token != "access-1" {
			t.Errorf("AccessToken() = %q, want %q", token, "access-1")
		}
	})

	t.Run("Auth Code Is Single Use", func(t *testing.T) {
		fake := newFakeTokenServer(t)
		manager, store := newTestManager(t, fake, ManagerOpts{AuthCode: "code-1"})

		if err := manager.Ensure(ctx); err != nil {
			t.Fatalf("first ensure failed: %v", err)
		}
		if err := manager.Ensure(ctx); err != nil {
			t.Fatalf("second ensure failed: %v", err)
		}

		// The second pass must take the refresh path, not re-exchange.
		if fake.exchangeCalls != 1 {
			t.Errorf("expected 1 exchange call, got %d", fake.exchangeCalls)
		}
		if fake.refreshCalls == 0 {
			t.Error("expected refresh on second ensure")
		}
		if refresh, _ := store.Read(ValueRefreshToken); refresh == "" {
			t.Error("expected refresh token to remain persisted")
		}
	})

	t.Run("Refresh Keeps Existing Refresh Token", func(t *testing.T) {
		fake := newFakeTokenServer(t)
		fake.accessToken = "access-2"
		fake.refreshToken = ""

		store := NewFileStore(t.TempDir())
		if err := store.Write(ValueAccessToken, "stale-access"); err != nil {
			t.Fatal(err)
		}
		if err := store.Write(ValueRefreshToken, "refresh-0"); err != nil {
			t.Fatal(err)
		}

		manager, _ := newTestManager(t, fake, ManagerOpts{Store: store})

		if err := manager.Ensure(ctx); err != nil {
			t.Fatalf("expected successful refresh, got %v", err)
		}

		if access, _ := store.Read(ValueAccessToken); access != "access-2" {
			t.Errorf("persisted access token = %q, want %q", access, "access-2")
		}
		if refresh, _ := store.Read(ValueRefreshToken); refresh != "refresh-0" {
			t.Errorf("persisted refresh token = %q, want %q", refresh, "refresh-0")
		}
	})

	t.Run("Failed Refresh Clears Tokens", func(t *testing.T) {
		fake := newFakeTokenServer(t)
		fake.refreshStatus = http.StatusBadRequest

		store := NewFileStore(t.TempDir())
		if err := store.Write(ValueAccessToken, "stale-access"); err != nil {
			t.Fatal(err)
		}
		if err := store.Write(ValueRefreshToken, "stale-refresh"); err != nil {
			t.Fatal(err)
		}

		manager, _ := newTestManager(t, fake, ManagerOpts{Store: store})

		err := manager.Ensure(ctx)
		if !errors.Is(err, shared.ErrAuthorizationRequired) {
			t.Fatalf("expected ErrAuthorizationRequired, got %v", err)
		}

		if access, _ := store.Read(ValueAccessToken); access != "" {
			t.Errorf("expected access token deleted, got %q", access)
		}
		if refresh, _ := store.Read(ValueRefreshToken); refresh != "" {
			t.Errorf("expected refresh token deleted, got %q", refresh)
		}
	})

	t.Run("Concurrent Refreshes Collapse", func(t *testing.T) {
		fake := newFakeTokenServer(t)
		fake.accessToken = "access-3"
		fake.refreshDelay = 100 * time.Millisecond

		store := NewFileStore(t.TempDir())
		if err := store.Write(ValueAccessToken, "stale-access"); err != nil {
			t.Fatal(err)
		}
		if err := store.Write(ValueRefreshToken, "refresh-0"); err != nil {
			t.Fatal(err)
		}

		manager, _ := newTestManager(t, fake, ManagerOpts{Store: store})

		const workers = 8
		var wg sync.WaitGroup
		errs := make([]error, workers)
		for i := range workers {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = manager.Refresh(ctx)
			}(i)
		}
		wg.Wait()

		for i, err := range errs {
			if err != nil {
				t.Fatalf("refresh %d failed: %v", i, err)
			}
		}
		if calls := fake.refreshCount(); calls != 1 {
			t.Errorf("refresh round trips = %d, want 1", calls)
		}

		// Every caller adopted the single flight's token.
		token, err := manager.AccessToken(ctx)
		if err != nil {
			t.Fatalf("AccessToken failed: %v", err)
		}
		if token != "access-3" {
			t.Errorf("AccessToken() = %q, want %q", token, "access-3")
		}
		if access, _ := store.Read(ValueAccessToken); access != "access-3" {
			t.Errorf("persisted access token = %q, want %q", access, "access-3")
		}
	})

	t.Run("Refresh Failure Falls Back To Pending Code", func(t *testing.T) {
		fake := newFakeTokenServer(t)
		fake.refreshStatus = http.StatusBadRequest
		fake.accessToken = "access-4"
		fake.refreshToken = "refresh-4"

		store := NewFileStore(t.TempDir())
		if err := store.Write(ValueAccessToken, "stale-access"); err != nil {
			t.Fatal(err)
		}
		if err := store.Write(ValueRefreshToken, "stale-refresh"); err != nil {
			t.Fatal(err)
		}

		manager, _ := newTestManager(t, fake, ManagerOpts{Store: store, AuthCode: "code-2"})

		if err := manager.Ensure(ctx); err != nil {
			t.Fatalf("expected fallback exchange to succeed, got %v", err)
		}

		if fake.exchangeCalls != 1 {
			t.Errorf("expected 1 exchange call, got %d", fake.exchangeCalls)
		}
		if access, _ := store.Read(ValueAccessToken); access != "access-4" {
			t.Errorf("persisted access token = %q, want %q", access, "access-4")
		}
		if refresh, _ := store.Read(ValueRefreshToken); refresh != "refresh-4" {
			t.Errorf("persisted refresh token = %q, want %q", refresh, "refresh-4")
		}
	})

	t.Run("Probe Failure Demotes To Manual Authorization", func(t *testing.T) {
		fake := newFakeTokenServer(t)
		probeErr := errors.New("profile fetch rejected")
		manager, store := newTestManager(t, fake, ManagerOpts{
			AuthCode: "code-1",
			Probe: func(ctx context.Context, accessToken string) error {
				return probeErr
			},
		})

		err := manager.Ensure(ctx)
		if !errors.Is(err, shared.ErrAuthorizationRequired) {
			t.Fatalf("expected ErrAuthorizationRequired, got %v", err)
		}

		if access, _ := store.Read(ValueAccessToken); access != "" {
			t.Errorf("expected access token deleted after probe failure, got %q", access)
		}
	})

	t.Run("Probe Receives Fresh Token", func(t *testing.T) {
		fake := newFakeTokenServer(t)
		fake.accessToken = "probe-me"

		var probed string
		manager, _ := newTestManager(t, fake, ManagerOpts{
			AuthCode: "code-1",
			Probe: func(ctx context.Context, accessToken string) error {
				probed = accessToken
				return nil
			},
		})

		if err := manager.Ensure(ctx); err != nil {
			t.Fatalf("ensure failed: %v", err)
		}
		if probed != "probe-me" {
			t.Errorf("probe received %q, want %q", probed, "probe-me")
		}
	})
}
