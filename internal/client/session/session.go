// Package session holds the authentication state of one client instance:
// the bearer credential, the identity behind it and the transitions between
// pending, anonymous and authenticated.
//
// Every transition is published as an Event to subscribers, synchronously
// and in order, so dependent components (the cart) react explicitly instead
// of polling the store.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/atinyakov/GophShop/internal/client/api"
	"github.com/atinyakov/GophShop/internal/client/credential"
	"github.com/atinyakov/GophShop/internal/client/validate"
	"github.com/atinyakov/GophShop/internal/models"
)

// ErrUnauthenticated is returned by operations that need a credential when
// none is held.
var ErrUnauthenticated = errors.New("not authenticated")

// Status is the authentication status of the store.
type Status int

const (
	// StatusPending means a persisted credential is being verified.
	StatusPending Status = iota
	// StatusAnonymous means no credential is held.
	StatusAnonymous
	// StatusAuthenticated means a credential is held and was accepted.
	StatusAuthenticated
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusAnonymous:
		return "anonymous"
	case StatusAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Event announces an authentication change.
type Event struct {
	Status Status
	// Token is the credential in force after the change; empty unless authenticated.
	Token string
}

// API is the subset of the backend used by the store.
type API interface {
	Profile(ctx context.Context, token string) (*models.User, error)
	Login(ctx context.Context, email, password string) (*api.LoginResponse, error)
	Register(ctx context.Context, name, email, password string) error
}

// State is a point-in-time copy of the store.
type State struct {
	Status   Status
	Token    string
	Identity *models.User
}

// Store is the session store. Create it with NewStore and call Initialize once
// at startup.
type Store struct {
	api          API
	slot         credential.Store
	log          *zap.Logger
	validate     *validator.Validate
	fetchTimeout time.Duration
	now          func() time.Time

	mu       sync.RWMutex
	status   Status
	token    string
	identity *models.User
	// gen increases on every transition; background results are dropped when
	// it moved on while they were in flight.
	gen  uint64
	subs map[int]func(Event)
	next int

	// slotMu pairs every credential write with the generation it belongs
	// to, so a write for an outdated generation is skipped.
	slotMu sync.Mutex

	// notifyMu orders event delivery: a transition and its callbacks finish
	// before the next transition is applied.
	notifyMu sync.Mutex

	ready     chan struct{}
	readyOnce sync.Once
	wg        sync.WaitGroup
}

// Option customizes a Store.
type Option func(*Store)

// WithFetchTimeout bounds the background profile fetch started by Login.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Store) { s.fetchTimeout = d }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore returns a store in StatusPending.
func NewStore(a API, slot credential.Store, log *zap.Logger, opts ...Option) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{
		api:          a,
		slot:         slot,
		log:          log,
		validate:     validate.New(),
		fetchTimeout: 10 * time.Second,
		now:          time.Now,
		status:       StatusPending,
		subs:         make(map[int]func(Event)),
		ready:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers fn for every future Event and returns a function that
// removes it. fn runs on the goroutine performing the transition and must not
// call back into blocking Store operations.
func (s *Store) Subscribe(fn func(Event)) func() {
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Ready is closed when the first Initialize has reached a final status.
func (s *Store) Ready() <-chan struct{} { return s.ready }

// Wait blocks until background profile fetches started by Login have finished.
func (s *Store) Wait() { s.wg.Wait() }

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := State{Status: s.status, Token: s.token}
	if s.identity != nil {
		u := *s.identity
		st.Identity = &u
	}
	return st
}

// Token returns the credential and whether the session is authenticated.
func (s *Store) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.status == StatusAuthenticated
}

// Initialize restores a persisted credential. A credential is kept only if the
// backend returns a profile for it; any failure purges it and leaves the store
// anonymous. Initialize never fails.
func (s *Store) Initialize(ctx context.Context) {
	defer s.readyOnce.Do(func() { close(s.ready) })

	token, err := s.slot.Load(ctx)
	if err != nil {
		gen := s.beginTransition()
		if !errors.Is(err, credential.ErrNotFound) {
			// An unreadable slot is cleared so that later logins can write it.
			s.log.Warn("cannot read persisted credential", zap.Error(err))
			s.purgeIf(ctx, gen)
		}
		s.transition(gen, StatusAnonymous, "", nil)
		return
	}

	gen := s.beginPending(token)

	if expired(token, s.now()) {
		s.log.Info("persisted credential expired")
		s.purgeIf(ctx, gen)
		s.transition(gen, StatusAnonymous, "", nil)
		return
	}

	u, err := s.api.Profile(ctx, token)
	if err != nil {
		s.log.Info("persisted credential rejected", zap.Error(err))
		s.purgeIf(ctx, gen)
		s.transition(gen, StatusAnonymous, "", nil)
		return
	}
	s.transition(gen, StatusAuthenticated, token, u)
	s.touchIf(ctx, gen, token)
}

// Login persists token and marks the session authenticated. With a nil
// identity the profile is fetched in the background; a failed fetch leaves
// the session authenticated without an identity.
func (s *Store) Login(ctx context.Context, token string, identity *models.User) {
	var u *models.User
	if identity != nil {
		cp := *identity
		u = &cp
	}

	s.slotMu.Lock()
	if err := s.slot.Save(ctx, token); err != nil {
		s.log.Warn("cannot persist credential", zap.Error(err))
	}
	gen := s.beginTransition()
	s.slotMu.Unlock()

	s.transition(gen, StatusAuthenticated, token, u)

	if identity != nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout)
		defer cancel()

		u, err := s.api.Profile(fctx, token)
		if err != nil {
			s.log.Info("profile fetch after login failed", zap.Error(err))
			return
		}
		s.setIdentity(gen, u)
	}()
}

// Logout purges the credential and clears the identity.
func (s *Store) Logout(ctx context.Context) {
	s.slotMu.Lock()
	s.purge(ctx)
	gen := s.beginTransition()
	s.slotMu.Unlock()

	s.transition(gen, StatusAnonymous, "", nil)
}

// RefreshProfile fetches the identity again. A rejected credential forces a
// logout; other failures are returned and leave the session as it was.
func (s *Store) RefreshProfile(ctx context.Context) (*models.User, error) {
	s.mu.RLock()
	token, status, gen := s.token, s.status, s.gen
	s.mu.RUnlock()
	if status != StatusAuthenticated {
		return nil, ErrUnauthenticated
	}

	u, err := s.api.Profile(ctx, token)
	if err != nil {
		var rej *api.RejectedError
		if errors.As(err, &rej) && rej.Unauthorized() {
			s.logoutIf(ctx, gen)
		}
		return nil, err
	}
	s.setIdentity(gen, u)
	s.touchIf(ctx, gen, token)
	return u, nil
}

// Authenticate logs in with e-mail and password.
func (s *Store) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	form := struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}{email, password}
	if err := s.validate.Struct(form); err != nil {
		return nil, errors.New(validate.Message(err))
	}

	resp, err := s.api.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, api.ErrInvalidResponse
	}
	s.Login(ctx, resp.AccessToken, resp.User)
	return resp.User, nil
}

// Register creates an account. It does not log in.
func (s *Store) Register(ctx context.Context, name, email, password string) error {
	form := struct {
		Name     string `json:"name" validate:"required"`
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=6"`
	}{name, email, password}
	if err := s.validate.Struct(form); err != nil {
		return errors.New(validate.Message(err))
	}
	return s.api.Register(ctx, name, email, password)
}

func (s *Store) beginTransition() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	return s.gen
}

func (s *Store) beginPending(token string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.status = StatusPending
	s.token = token
	s.identity = nil
	return s.gen
}

// transition applies the new state if no newer transition started since gen
// and notifies subscribers.
func (s *Store) transition(gen uint64, status Status, token string, identity *models.User) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.status = status
	s.token = token
	s.identity = identity
	subs := make([]func(Event), 0, len(s.subs))
	for id := 0; id < s.next; id++ {
		if fn, ok := s.subs[id]; ok {
			subs = append(subs, fn)
		}
	}
	s.mu.Unlock()

	ev := Event{Status: status, Token: token}
	s.log.Debug("session transition", zap.Stringer("status", status))
	for _, fn := range subs {
		fn(ev)
	}
}

func (s *Store) setIdentity(gen uint64, u *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || s.status != StatusAuthenticated {
		return
	}
	s.identity = u
}

func (s *Store) currentGen() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// purgeIf deletes the persisted credential unless a transition newer than
// gen has started.
func (s *Store) purgeIf(ctx context.Context, gen uint64) {
	s.slotMu.Lock()
	defer s.slotMu.Unlock()
	if s.currentGen() != gen {
		return
	}
	s.purge(ctx)
}

// touchIf saves token again, refreshing its stored timestamp, unless a
// transition newer than gen has started.
func (s *Store) touchIf(ctx context.Context, gen uint64, token string) {
	s.slotMu.Lock()
	defer s.slotMu.Unlock()
	if s.currentGen() != gen {
		return
	}
	if err := s.slot.Save(ctx, token); err != nil {
		s.log.Warn("cannot refresh persisted credential", zap.Error(err))
	}
}

// logoutIf logs out unless a transition newer than gen has started.
func (s *Store) logoutIf(ctx context.Context, gen uint64) {
	s.slotMu.Lock()
	if s.currentGen() != gen {
		s.slotMu.Unlock()
		return
	}
	s.purge(ctx)
	next := s.beginTransition()
	s.slotMu.Unlock()

	s.transition(next, StatusAnonymous, "", nil)
}

func (s *Store) purge(ctx context.Context) {
	if err := s.slot.Delete(ctx); err != nil {
		s.log.Warn("cannot purge persisted credential", zap.Error(err))
	}
}

// expired reports whether token is a JWT whose exp claim has passed.
// Opaque tokens are never considered expired here; the backend decides.
func expired(token string, now time.Time) bool {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	return claims.ExpiresAt != nil && !claims.ExpiresAt.After(now)
}
