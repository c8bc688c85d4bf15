// Package auth owns the token lifecycle: login and logout, the single
// in-flight refresh shared by every request that observes an expired token,
// the proactive refresh lookahead, and the broadcast of auth-state changes
// to subscribers.
package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/jrsteele09/go-docs-client/credentials"
	clienterrors "github.com/jrsteele09/go-docs-client/internal/errors"
	"github.com/jrsteele09/go-docs-client/transport"
)

// Backend auth endpoints, relative to the API base URL.
const (
	LoginPath    = "api/v1/auth/login/"
	RefreshPath  = "api/v1/auth/token/refresh/"
	LogoutPath   = "api/v1/auth/logout/"
	ProfilePath  = "api/v1/auth/profile/"
	SettingsPath = "api/v1/auth/settings/"
)

const refreshKey = "token-refresh"

// DefaultLookahead is how close to expiry a token is refreshed preemptively
// instead of waiting for a 401.
const DefaultLookahead = 30 * time.Second

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type loginResponse struct {
	Message string            `json:"message"`
	User    *credentials.User `json:"user"`
	Tokens  tokenPair         `json:"tokens"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

// The refresh endpoint returns a rotated refresh token alongside the new
// access token when rotation is enabled server-side.
type refreshResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Manager serializes refresh attempts and keeps the credential store and
// broadcaster consistent through every lifecycle transition.
type Manager struct {
	transport   *transport.Transport
	store       *credentials.Store
	broadcaster *Broadcaster
	lookahead   time.Duration
	log         zerolog.Logger

	refreshGroup singleflight.Group
}

var _ Refresher = (*Manager)(nil)

// ManagerOption modifies a Manager instance.
type ManagerOption func(*Manager)

// WithLookahead overrides the proactive refresh window.
func WithLookahead(lookahead time.Duration) ManagerOption {
	return func(m *Manager) {
		m.lookahead = lookahead
	}
}

// WithManagerLogger sets the manager's logger.
func WithManagerLogger(log zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.log = log
	}
}

// NewManager creates a token lifecycle manager.
func NewManager(t *transport.Transport, store *credentials.Store, broadcaster *Broadcaster, options ...ManagerOption) (*Manager, error) {
	if t == nil {
		return nil, errors.New("[NewManager] transport is required")
	}
	if store == nil {
		return nil, errors.New("[NewManager] store is required")
	}
	if broadcaster == nil {
		return nil, errors.New("[NewManager] broadcaster is required")
	}

	manager := &Manager{
		transport:   t,
		store:       store,
		broadcaster: broadcaster,
		lookahead:   DefaultLookahead,
		log:         zerolog.Nop(),
	}

	for _, opt := range options {
		opt(manager)
	}

	return manager, nil
}

// Login exchanges credentials for a token pair and user snapshot, persists
// them, and notifies subscribers.
func (m *Manager) Login(ctx context.Context, email, password string) (*credentials.User, error) {
	resp, err := m.transport.Do(ctx, transport.Request{
		Method:   http.MethodPost,
		Path:     LoginPath,
		Body:     loginRequest{Email: email, Password: password},
		SkipAuth: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "[Login] login request")
	}

	var decoded loginResponse
	if err := resp.Decode(&decoded); err != nil {
		return nil, errors.Wrap(err, "[Login] decode response")
	}
	if decoded.Tokens.Access == "" {
		return nil, errors.New("[Login] response carried no access token")
	}

	creds := credentials.Credentials{
		AccessToken:  decoded.Tokens.Access,
		RefreshToken: decoded.Tokens.Refresh,
	}
	if err := m.store.Save(ctx, creds, decoded.User); err != nil {
		return nil, errors.Wrap(err, "[Login] persist credentials")
	}

	m.broadcaster.Notify()
	return decoded.User, nil
}

// Logout invalidates the refresh token server-side on a best-effort basis,
// then clears all local state and notifies subscribers.
func (m *Manager) Logout(ctx context.Context) error {
	creds := m.store.Credentials()
	if creds.RefreshToken != "" {
		_, err := m.transport.Do(ctx, transport.Request{
			Method: http.MethodPost,
			Path:   LogoutPath,
			Body:   logoutRequest{RefreshToken: creds.RefreshToken},
		})
		if err != nil {
			// Local state is cleared regardless; the refresh token expires
			// server-side on its own schedule.
			m.log.Warn().Err(err).Msg("server-side logout failed")
		}
	}

	if err := m.store.Clear(ctx); err != nil {
		return errors.Wrap(err, "[Logout] clear credentials")
	}

	m.broadcaster.Notify()
	return nil
}

// Refresh renews the access token. However many callers arrive
// concurrently, exactly one network refresh executes; the rest block on the
// shared in-flight call and share its outcome. A failed refresh escalates
// to a full logout so the client never sits half-authenticated.
func (m *Manager) Refresh(ctx context.Context) error {
	result := m.refreshGroup.DoChan(refreshKey, func() (any, error) {
		// Detached from the first caller's ctx: the refresh outcome is
		// shared state, so one impatient caller must not abort it for the
		// others.
		return nil, m.doRefresh(context.WithoutCancel(ctx))
	})

	select {
	case res := <-result:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) doRefresh(ctx context.Context) error {
	creds := m.store.Credentials()
	if creds.RefreshToken == "" {
		m.escalateLogout(ctx)
		return transport.NewAuthExpiredError("no refresh token available", "")
	}

	resp, err := m.transport.Do(ctx, transport.Request{
		Method:   http.MethodPost,
		Path:     RefreshPath,
		Body:     refreshRequest{Refresh: creds.RefreshToken},
		SkipAuth: true,
	})
	if err != nil {
		m.log.Warn().Err(err).Msg("token refresh failed, clearing session")
		m.escalateLogout(ctx)
		if apiErr, ok := transport.AsError(err); ok {
			return transport.NewAuthExpiredError(apiErr.Message, apiErr.TraceID)
		}
		return transport.NewAuthExpiredError(err.Error(), "")
	}

	var decoded refreshResponse
	if err := resp.Decode(&decoded); err != nil {
		m.escalateLogout(ctx)
		return transport.NewAuthExpiredError("unreadable refresh response", resp.TraceID)
	}
	if decoded.Access == "" {
		m.escalateLogout(ctx)
		return transport.NewAuthExpiredError("refresh response carried no access token", resp.TraceID)
	}

	if err := m.store.UpdateTokens(ctx, decoded.Access, decoded.Refresh); err != nil {
		return errors.Wrap(err, "[doRefresh] persist rotated tokens")
	}

	m.broadcaster.Notify()
	return nil
}

func (m *Manager) escalateLogout(ctx context.Context) {
	if err := m.store.Clear(ctx); err != nil {
		m.log.Error().Err(err).Msg("failed to clear credentials after refresh failure")
	}
	m.broadcaster.Notify()
}

// EnsureFresh refreshes the access token preemptively when its known expiry
// falls inside the lookahead window. Unauthenticated clients are a no-op.
func (m *Manager) EnsureFresh(ctx context.Context) error {
	creds := m.store.Credentials()
	if creds.Empty() || !creds.ExpiresWithin(m.lookahead) {
		return nil
	}
	return m.Refresh(ctx)
}

// FetchProfile retrieves the current user snapshot from the backend,
// replaces the cached copy, and notifies subscribers of the new snapshot.
func (m *Manager) FetchProfile(ctx context.Context) (*credentials.User, error) {
	if err := m.EnsureFresh(ctx); err != nil {
		return nil, err
	}

	resp, err := m.transport.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   ProfilePath,
	})
	if err != nil {
		return nil, errors.Wrap(err, "[FetchProfile] profile request")
	}

	var user credentials.User
	if err := resp.Decode(&user); err != nil {
		return nil, errors.Wrap(err, "[FetchProfile] decode profile")
	}

	if err := m.store.SetUser(ctx, &user); err != nil {
		return nil, errors.Wrap(err, "[FetchProfile] persist profile")
	}

	m.broadcaster.Notify()
	return &user, nil
}

// ProfileUpdate carries the writable profile fields; nil fields are left
// untouched server-side.
type ProfileUpdate struct {
	FirstName  *string `json:"first_name,omitempty"`
	LastName   *string `json:"last_name,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	Avatar     *string `json:"avatar,omitempty"`
	Department *string `json:"department,omitempty"`
	Position   *string `json:"position,omitempty"`
}

// UpdateProfile patches the writable profile fields and replaces the cached
// snapshot with the server's response.
func (m *Manager) UpdateProfile(ctx context.Context, update ProfileUpdate) (*credentials.User, error) {
	if err := m.EnsureFresh(ctx); err != nil {
		return nil, err
	}

	resp, err := m.transport.Do(ctx, transport.Request{
		Method: http.MethodPatch,
		Path:   ProfilePath,
		Body:   update,
	})
	if err != nil {
		return nil, errors.Wrap(err, "[UpdateProfile] profile request")
	}

	var user credentials.User
	if err := resp.Decode(&user); err != nil {
		return nil, errors.Wrap(err, "[UpdateProfile] decode profile")
	}

	if err := m.store.SetUser(ctx, &user); err != nil {
		return nil, errors.Wrap(err, "[UpdateProfile] persist profile")
	}

	m.broadcaster.Notify()
	return &user, nil
}

// Settings holds the per-user preferences stored alongside the profile.
type Settings struct {
	Theme                 string `json:"theme"`
	Language              string `json:"language"`
	EmailNotifications    bool   `json:"email_notifications"`
	PushNotifications     bool   `json:"push_notifications"`
	DefaultClassification string `json:"default_classification"`
	AutoOCR               bool   `json:"auto_ocr"`
}

// SettingsUpdate carries the writable settings fields; nil fields are left
// untouched server-side.
type SettingsUpdate struct {
	Theme                 *string `json:"theme,omitempty"`
	Language              *string `json:"language,omitempty"`
	EmailNotifications    *bool   `json:"email_notifications,omitempty"`
	PushNotifications     *bool   `json:"push_notifications,omitempty"`
	DefaultClassification *string `json:"default_classification,omitempty"`
	AutoOCR               *bool   `json:"auto_ocr,omitempty"`
}

// FetchSettings retrieves the user's preference set. Settings are not part
// of the broadcast auth state, so nothing is persisted locally.
func (m *Manager) FetchSettings(ctx context.Context) (*Settings, error) {
	if err := m.EnsureFresh(ctx); err != nil {
		return nil, err
	}

	resp, err := m.transport.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   SettingsPath,
	})
	if err != nil {
		return nil, errors.Wrap(err, "[FetchSettings] settings request")
	}

	var settings Settings
	if err := resp.Decode(&settings); err != nil {
		return nil, errors.Wrap(err, "[FetchSettings] decode settings")
	}
	return &settings, nil
}

// UpdateSettings patches the writable preference fields and returns the
// server's merged view.
func (m *Manager) UpdateSettings(ctx context.Context, update SettingsUpdate) (*Settings, error) {
	if err := m.EnsureFresh(ctx); err != nil {
		return nil, err
	}

	resp, err := m.transport.Do(ctx, transport.Request{
		Method: http.MethodPatch,
		Path:   SettingsPath,
		Body:   update,
	})
	if err != nil {
		return nil, errors.Wrap(err, "[UpdateSettings] settings request")
	}

	var settings Settings
	if err := resp.Decode(&settings); err != nil {
		return nil, errors.Wrap(err, "[UpdateSettings] decode settings")
	}
	return &settings, nil
}

// HandleUnauthorized reacts to a 401 observed on an authenticated request by
// joining the shared refresh; the caller replays once afterwards.
func (m *Manager) HandleUnauthorized(ctx context.Context) error {
	return m.Refresh(ctx)
}

// CurrentUser returns the locally held profile snapshot, nil when signed out.
func (m *Manager) CurrentUser() *credentials.User {
	return m.store.User()
}

// IsAuthenticated reports whether an access token is currently held.
func (m *Manager) IsAuthenticated() bool {
	return m.store.IsAuthenticated()
}

// Sentinel re-export so callers can errors.Is against the package they
// already import.
var ErrAuthExpired = clienterrors.ErrAuthExpired
