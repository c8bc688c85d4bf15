package auth

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-docs-client/credentials"
)

// Listener receives authentication-state transitions. user is nil whenever
// authenticated is false.
type Listener func(authenticated bool, user *credentials.User)

// Subscription is the handle returned by Subscribe. Unsubscribe is
// idempotent.
type Subscription struct {
	id          int
	broadcaster *Broadcaster
	once        sync.Once
}

// Unsubscribe removes the listener. Calling it twice is a no-op.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.broadcaster.remove(s.id)
	})
}

// Refresher triggers a proactive token refresh when the stored access token
// is close to expiry. The lifecycle Manager implements it.
type Refresher interface {
	EnsureFresh(ctx context.Context) error
}

// Broadcaster fans authentication-state changes out to registered
// listeners: logins, logouts, refreshes, and changes made by other
// processes sharing the credential repo.
type Broadcaster struct {
	store *credentials.Store
	log   zerolog.Logger

	mu        sync.Mutex
	listeners []registration
	nextID    int
}

type registration struct {
	id       int
	listener Listener
}

// BroadcasterOption modifies a Broadcaster instance.
type BroadcasterOption func(*Broadcaster)

// WithBroadcasterLogger sets the broadcaster's logger.
func WithBroadcasterLogger(log zerolog.Logger) BroadcasterOption {
	return func(b *Broadcaster) {
		b.log = log
	}
}

// NewBroadcaster creates a broadcaster reading auth state from store.
func NewBroadcaster(store *credentials.Store, options ...BroadcasterOption) *Broadcaster {
	broadcaster := &Broadcaster{
		store: store,
		log:   zerolog.Nop(),
	}

	for _, opt := range options {
		opt(broadcaster)
	}

	return broadcaster
}

// Subscribe registers a listener. Listeners run in registration order.
func (b *Broadcaster) Subscribe(listener Listener) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.listeners = append(b.listeners, registration{id: b.nextID, listener: listener})
	return &Subscription{id: b.nextID, broadcaster: b}
}

func (b *Broadcaster) remove(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, reg := range b.listeners {
		if reg.id == id {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			return
		}
	}
}

// Notify reads the current credential snapshot and invokes every listener
// synchronously. A panicking listener is isolated and logged; the rest
// still run.
func (b *Broadcaster) Notify() {
	authenticated := b.store.IsAuthenticated()
	var user *credentials.User
	if authenticated {
		user = b.store.User()
	}

	b.mu.Lock()
	listeners := make([]registration, len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.Unlock()

	for _, reg := range listeners {
		b.invoke(reg, authenticated, user)
	}
}

func (b *Broadcaster) invoke(reg registration, authenticated bool, user *credentials.User) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().Int("listener_id", reg.id).Any("panic", r).Msg("auth listener panicked")
		}
	}()
	reg.listener(authenticated, user)
}

// Watch runs until ctx is done, reloading the credential repo on each tick
// so that processes sharing the repo converge on the same session, and
// asking the refresher to renew a token that is close to expiry.
func (b *Broadcaster) Watch(ctx context.Context, interval time.Duration, refresher Refresher) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.tick(ctx, refresher)
		}
	}
}

func (b *Broadcaster) tick(ctx context.Context, refresher Refresher) {
	changed, err := b.store.Reload(ctx)
	if err != nil {
		b.log.Warn().Err(err).Msg("credential reload failed")
	} else if changed {
		b.Notify()
	}

	if refresher == nil || !b.store.IsAuthenticated() {
		return
	}
	if err := refresher.EnsureFresh(ctx); err != nil {
		b.log.Warn().Err(err).Msg("proactive token refresh failed")
	}
}
