package credentials

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	clienterrors "github.com/jrsteele09/go-docs-client/internal/errors"
)

// Store owns the in-memory credential snapshot and keeps it in sync with a
// durable Repo. Credentials are mutated only through Save, UpdateTokens,
// SetUser, and Clear; readers always get copies.
type Store struct {
	repo Repo
	log  zerolog.Logger

	mu    sync.RWMutex
	creds Credentials
	user  *User
}

// StoreOption modifies a Store instance.
type StoreOption func(*Store)

// WithLogger sets the store's logger.
func WithLogger(log zerolog.Logger) StoreOption {
	return func(s *Store) {
		s.log = log
	}
}

// NewStore creates a credential store backed by the given repo.
func NewStore(repo Repo, options ...StoreOption) (*Store, error) {
	if repo == nil {
		return nil, errors.New("[NewStore] repo is required")
	}

	store := &Store{
		repo: repo,
		log:  zerolog.Nop(),
	}

	for _, opt := range options {
		opt(store)
	}

	return store, nil
}

// Load reads the persisted credentials and user snapshot into memory.
// Missing keys are not an error; the store simply starts unauthenticated.
func (s *Store) Load(ctx context.Context) error {
	creds, user, err := s.read(ctx)
	if err != nil {
		return errors.Wrap(err, "[Load] read repo")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = creds
	s.user = user
	return nil
}

// Save persists a full credential set, deriving the access token expiry
// from the JWT exp claim when the caller did not supply one.
func (s *Store) Save(ctx context.Context, creds Credentials, user *User) error {
	if creds.ExpiresAt.IsZero() && creds.AccessToken != "" {
		if exp, err := TokenExpiry(creds.AccessToken); err == nil {
			creds.ExpiresAt = exp
		} else {
			s.log.Debug().Err(err).Msg("access token carries no usable expiry")
		}
	}

	if err := s.repo.Set(ctx, KeyAccessToken, creds.AccessToken); err != nil {
		return errors.Wrap(err, "[Save] persist access token")
	}
	if err := s.repo.Set(ctx, KeyRefreshToken, creds.RefreshToken); err != nil {
		return errors.Wrap(err, "[Save] persist refresh token")
	}
	if user != nil {
		serialized, err := json.Marshal(user)
		if err != nil {
			return errors.Wrap(err, "[Save] marshal user")
		}
		if err := s.repo.Set(ctx, KeyUser, string(serialized)); err != nil {
			return errors.Wrap(err, "[Save] persist user")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = creds
	if user != nil {
		userCopy := *user
		s.user = &userCopy
	}
	return nil
}

// UpdateTokens replaces the token pair after a refresh, keeping the current
// user snapshot. An empty refresh token keeps the stored one (servers
// without rotation return only a new access token).
func (s *Store) UpdateTokens(ctx context.Context, accessToken, refreshToken string) error {
	s.mu.RLock()
	creds := s.creds
	s.mu.RUnlock()

	creds.AccessToken = accessToken
	creds.ExpiresAt = time.Time{}
	if refreshToken != "" {
		creds.RefreshToken = refreshToken
	}

	return s.Save(ctx, creds, nil)
}

// SetUser replaces the cached user snapshot, e.g. after a profile fetch.
func (s *Store) SetUser(ctx context.Context, user *User) error {
	serialized, err := json.Marshal(user)
	if err != nil {
		return errors.Wrap(err, "[SetUser] marshal user")
	}
	if err := s.repo.Set(ctx, KeyUser, string(serialized)); err != nil {
		return errors.Wrap(err, "[SetUser] persist user")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	userCopy := *user
	s.user = &userCopy
	return nil
}

// Clear removes all persisted and in-memory credential state.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.repo.Delete(ctx, KeyAccessToken, KeyRefreshToken, KeyUser); err != nil {
		return errors.Wrap(err, "[Clear] delete keys")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = Credentials{}
	s.user = nil
	return nil
}

// Credentials returns a copy of the current credential snapshot.
func (s *Store) Credentials() Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds
}

// User returns a copy of the current user snapshot, or nil when
// unauthenticated.
func (s *Store) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	userCopy := *s.user
	return &userCopy
}

// IsAuthenticated reports whether an access token is currently held.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.creds.Empty()
}

// Token implements the transport token source: the current access token and
// whether one is held.
func (s *Store) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds.AccessToken, !s.creds.Empty()
}

// Reload re-reads the repo and reports whether another process changed the
// persisted state since the last load. Used by the auth watch loop so that
// multiple clients sharing a repo converge on the same session.
func (s *Store) Reload(ctx context.Context) (bool, error) {
	creds, user, err := s.read(ctx)
	if err != nil {
		return false, errors.Wrap(err, "[Reload] read repo")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	changed := creds.AccessToken != s.creds.AccessToken ||
		creds.RefreshToken != s.creds.RefreshToken
	s.creds = creds
	s.user = user
	return changed, nil
}

func (s *Store) read(ctx context.Context) (Credentials, *User, error) {
	var creds Credentials

	access, err := s.repo.Get(ctx, KeyAccessToken)
	if err != nil && !errors.Is(err, clienterrors.ErrKeyNotFound) {
		return Credentials{}, nil, err
	}
	creds.AccessToken = access

	refresh, err := s.repo.Get(ctx, KeyRefreshToken)
	if err != nil && !errors.Is(err, clienterrors.ErrKeyNotFound) {
		return Credentials{}, nil, err
	}
	creds.RefreshToken = refresh

	if creds.AccessToken != "" {
		if exp, err := TokenExpiry(creds.AccessToken); err == nil {
			creds.ExpiresAt = exp
		}
	}

	serialized, err := s.repo.Get(ctx, KeyUser)
	if err != nil {
		if errors.Is(err, clienterrors.ErrKeyNotFound) {
			return creds, nil, nil
		}
		return Credentials{}, nil, err
	}

	var user User
	if err := json.Unmarshal([]byte(serialized), &user); err != nil {
		s.log.Warn().Err(err).Msg("discarding unreadable user snapshot")
		return creds, nil, nil
	}
	return creds, &user, nil
}
