package auth

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/beatsync/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
)

// scopes cover playlist writes and cover image uploads.
var scopes = []string{
	"playlist-modify-public",
	"playlist-modify-private",
	"ugc-image-upload",
}

// ProbeFunc validates an access token with a cheap API call (a profile fetch).
type ProbeFunc func(ctx context.Context, accessToken string) error

// ManagerOpts contains configuration options for creating a Manager.
type ManagerOpts struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	// AuthCode is an out-of-band authorization code; consumed at most once.
	AuthCode string
	Store    ValueStore
	Logger   *log.Logger
	// Probe validates the access token after the machine reaches
	// authenticated. Optional; nil skips validation.
	Probe ProbeFunc
	// Endpoint overrides the Spotify OAuth endpoint, for tests.
	Endpoint oauth2.Endpoint
}

// Manager maintains a valid Spotify access credential across restarts.
//
// All entry points are safe for concurrent use: refresh attempts collapse
// into a single in-flight refresh via singleflight, so parallel workers
// cannot race a refresh token into invalidation.
type Manager struct {
	config *oauth2.Config
	store  ValueStore
	logger *log.Logger
	probe  ProbeFunc

	group singleflight.Group

	mu       sync.Mutex
	authCode string
	token    *oauth2.Token
}

// NewManager creates a Manager with the given credentials and store.
func NewManager(opts ManagerOpts) (*Manager, error) {
	if opts.ClientID == "" || opts.ClientSecret == "" {
		return nil, fmt.Errorf("%w: client id and secret are required", shared.ErrMissingCredentials)
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("%w: value store is required", shared.ErrInvalidConfig)
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	endpoint := opts.Endpoint
	if endpoint.AuthURL == "" {
		endpoint = oauth2.Endpoint{AuthURL: spotifyAuthURL, TokenURL: spotifyTokenURL}
	}

	redirectURI := opts.RedirectURI
	if redirectURI == "" {
		redirectURI = "https://example.org/"
	}

	return &Manager{
		config: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  redirectURI,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		store:    opts.Store,
		logger:   opts.Logger,
		probe:    opts.Probe,
		authCode: opts.AuthCode,
	}, nil
}

// AuthURL returns the interactive authorization URL for the manual step.
func (m *Manager) AuthURL() string {
	return m.AuthURLForState(shared.GenerateID())
}

// AuthURLForState returns the authorization URL carrying a caller-chosen
// state token, used by the local callback flow to validate the redirect.
func (m *Manager) AuthURLForState(state string) string {
	return m.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Ensure walks the credential state machine until the manager is
// authenticated or manual authorization is required.
//
// State resolution order: with no credentials at all, manual authorization
// is requested; a pending authorization code is exchanged; persisted tokens
// are refreshed and then probed. A pending code is consumed only by an
// exchange attempt, so a failed refresh can still fall back to it. Every
// failure path deletes both persisted tokens before surfacing the manual
// authorization prompt, so stale partial state never resurfaces after a
// restart.
func (m *Manager) Ensure(ctx context.Context) error {
	accessToken, err := m.store.Read(ValueAccessToken)
	if err != nil {
		return err
	}
	refreshToken, err := m.store.Read(ValueRefreshToken)
	if err != nil {
		return err
	}
	code := m.peekAuthCode()

	switch {
	case accessToken == "" && refreshToken == "" && code == "":
		return m.requestManualAuthorization()

	case accessToken == "" && refreshToken == "" && code != "":
		if err := m.Exchange(ctx, m.takeAuthCode()); err != nil {
			m.logger.Error("authorization code exchange failed", "err", err)
			return m.requestManualAuthorization()
		}

	default:
		// Access token present with a missing refresh token falls through
		// here too: the refresh fails and demotes to unauthenticated.
		if err := m.Refresh(ctx); err != nil {
			m.logger.Error("token refresh failed", "err", err)
			fallback := m.takeAuthCode()
			if fallback == "" {
				return m.requestManualAuthorization()
			}
			m.logger.Info("falling back to pending authorization code")
			if err := m.Exchange(ctx, fallback); err != nil {
				m.logger.Error("authorization code exchange failed", "err", err)
				return m.requestManualAuthorization()
			}
		}
	}

	if m.probe != nil {
		m.logger.Debug("probing access token validity")
		if err := m.probe(ctx, m.currentAccessToken()); err != nil {
			m.logger.Error("access token probe failed", "err", err)
			return m.requestManualAuthorization()
		}
	}

	return nil
}

// AccessToken returns the current access token, running [Manager.Ensure]
// when no token is held yet.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	if token := m.currentAccessToken(); token != "" {
		return token, nil
	}
	if err := m.Ensure(ctx); err != nil {
		return "", err
	}

	token := m.currentAccessToken()
	if token == "" {
		return "", shared.ErrNotAuthenticated
	}
	return token, nil
}

// Recover re-evaluates the state machine after a 401-class API error.
// Callers retry the failed call exactly once on success.
func (m *Manager) Recover(ctx context.Context) error {
	m.logger.Warn("authorization error reported, re-evaluating credential state")

	m.mu.Lock()
	m.token = nil
	m.mu.Unlock()

	return m.Ensure(ctx)
}

// Exchange trades an authorization code for a token pair and persists both.
func (m *Manager) Exchange(ctx context.Context, code string) error {
	token, err := m.config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange auth code: %w", err)
	}
	return m.adopt(token)
}

// Refresh performs one refresh round trip using the persisted refresh token.
// Concurrent calls collapse into a single refresh; the others wait on its
// result.
func (m *Manager) Refresh(ctx context.Context) error {
	result, err, _ := m.group.Do("refresh", func() (any, error) {
		refreshToken, err := m.store.Read(ValueRefreshToken)
		if err != nil {
			return nil, err
		}
		if refreshToken == "" {
			return nil, fmt.Errorf("%w: no refresh token", shared.ErrRefreshFailed)
		}

		source := m.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
		token, err := source.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
		}

		// Spotify omits the refresh token from refresh responses; keep the
		// one we already have.
		if token.RefreshToken == "" {
			token.RefreshToken = refreshToken
		}
		return token, nil
	})
	if err != nil {
		return err
	}

	return m.adopt(result.(*oauth2.Token))
}

// ClearTokens deletes both persisted tokens and forgets the in-memory token.
func (m *Manager) ClearTokens() error {
	m.mu.Lock()
	m.token = nil
	m.mu.Unlock()

	if err := m.store.Delete(ValueAccessToken); err != nil {
		return err
	}
	return m.store.Delete(ValueRefreshToken)
}

// adopt installs a token pair and writes it through to the store. A crash
// between the two writes is the accepted non-atomicity risk documented on
// [ValueStore].
func (m *Manager) adopt(token *oauth2.Token) error {
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()

	if err := m.store.Write(ValueAccessToken, token.AccessToken); err != nil {
		return err
	}
	if token.RefreshToken != "" {
		if err := m.store.Write(ValueRefreshToken, token.RefreshToken); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) requestManualAuthorization() error {
	if err := m.ClearTokens(); err != nil {
		m.logger.Error("failed to clear persisted tokens", "err", err)
	}

	url := m.AuthURL()
	m.logger.Warn("manual authorization required")
	m.logger.Warn("visit the authorization URL, then run `beatsync auth exchange <code>` or set SPOTIFY_AUTH_CODE and restart", "url", url)

	return fmt.Errorf("%w: visit %s", shared.ErrAuthorizationRequired, url)
}

func (m *Manager) currentAccessToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == nil {
		return ""
	}
	return m.token.AccessToken
}

// takeAuthCode consumes the pending authorization code, if any. The code is
// single use; the exchange result (success or failure) supersedes it.
func (m *Manager) takeAuthCode() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	code := m.authCode
	m.authCode = ""
	return code
}

// peekAuthCode reports the pending authorization code without consuming it.
func (m *Manager) peekAuthCode() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authCode
}
