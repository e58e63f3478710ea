// Package session holds the signed in state of a shelf-auth client.
//
// The token is the only stored value. Authentication and roles are
// derived from it on every read so they never drift from the token.
// Decoded roles are display-only; the server re-checks every request.
package session

import (
	"context"
	"sync"

	"github.com/newsshelf/shelf-auth/claims"
	"github.com/newsshelf/shelf-auth/client"
)

// Backend is the auth API the store delegates to. *client.Client
// implements it.
type Backend interface {
	Login(ctx context.Context, creds client.Credentials) (*client.Token, error)
	Register(ctx context.Context, reg client.Registration) (*client.Token, error)
	Me(ctx context.Context, token string) (*client.Profile, error)
	UpdateProfile(ctx context.Context, token string, update client.ProfileUpdate) (*client.Profile, error)
}

type Logger interface {
	Debug(format string, args ...any)
	Warn(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}

// User is the profile shown for the session. When the profile can not be
// fetched it is built from the token claims only.
type User struct {
	ID             string   `json:"id"`
	Email          string   `json:"email"`
	DisplayName    string   `json:"displayName"`
	Bio            string   `json:"bio,omitempty"`
	FavoriteTopics []string `json:"favoriteTopics,omitempty"`
	// FromClaims is set when the profile fetch failed
	FromClaims bool `json:"-"`
}

// Snapshot is the state handed to subscribers
type Snapshot struct {
	Token         string
	Authenticated bool
	Loading       bool
	Roles         []string
	User          *User
}

// Store is the session of one client. Create it once at start up, call
// Restore, and Logout to reset it.
type Store struct {
	mu          sync.Mutex
	backend     Backend
	persister   Persister
	logger      Logger
	token       string
	user        *User
	loading     bool
	generation  uint64
	seq         uint64
	subscribers map[int]*subscriber
	nextSub     int
	inflight    sync.WaitGroup
}

type Option func(*Store)

func WithLogger(l Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewStore returns a store that starts in the loading state until
// Restore runs.
func NewStore(backend Backend, persister Persister, opts ...Option) *Store {
	if persister == nil {
		persister = NewMemoryPersister()
	}

	s := &Store{
		backend:     backend,
		persister:   persister,
		logger:      nopLogger{},
		loading:     true,
		subscribers: map[int]*subscriber{},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *Store) IsAuthenticated() bool {
	return s.Token() != ""
}

// Roles decodes the current token. Malformed tokens yield no roles.
func (s *Store) Roles() []string {
	return claims.RolesFromToken(s.Token())
}

func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

func (s *Store) User() *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers fn for every state change and returns a function
// that removes it. Calls to fn never overlap and the last call always
// carries the newest state; intermediate snapshots may be skipped.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = &subscriber{fn: fn}
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

// Restore reads the persisted token and starts a profile fetch for it
func (s *Store) Restore(ctx context.Context) error {
	env, err := s.persister.Load(ctx)
	if err != nil {
		s.logger.Warn("session restore failed: %v", err)
		env = Envelope{}
	}

	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.token = env.Token
	s.user = nil
	s.loading = false
	s.mu.Unlock()

	s.notify()

	if env.Token != "" {
		s.fetchProfile(ctx, gen, env.Token)
	}

	return err
}

// Login exchanges credentials for a token and persists it
func (s *Store) Login(ctx context.Context, creds client.Credentials) (*client.Token, error) {
	token, err := s.backend.Login(ctx, creds)
	if err != nil {
		return nil, err
	}
	return token, s.adopt(ctx, token.AccessToken)
}

// Register signs up and signs in with the returned token
func (s *Store) Register(ctx context.Context, reg client.Registration) (*client.Token, error) {
	token, err := s.backend.Register(ctx, reg)
	if err != nil {
		return nil, err
	}
	return token, s.adopt(ctx, token.AccessToken)
}

// Logout clears the token locally. Tokens are stateless so there is
// nothing to revoke on the server.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.generation++
	s.token = ""
	s.user = nil
	s.loading = false
	s.mu.Unlock()

	err := s.persister.Clear(ctx)
	s.notify()
	return err
}

// UpdateProfile saves the profile and refreshes the session user
func (s *Store) UpdateProfile(ctx context.Context, update client.ProfileUpdate) (*User, error) {
	s.mu.Lock()
	token, gen := s.token, s.generation
	s.mu.Unlock()

	if token == "" {
		return nil, ErrNotAuthenticated
	}

	profile, err := s.backend.UpdateProfile(ctx, token, update)
	if err != nil {
		return nil, err
	}

	user := userFromProfile(profile)
	if s.apply(gen, user) {
		s.notify()
	}
	return user, nil
}

// Wait blocks until background profile fetches have finished
func (s *Store) Wait() {
	s.inflight.Wait()
}

func (s *Store) adopt(ctx context.Context, token string) error {
	if token == "" {
		return ErrEmptyToken
	}

	if err := s.persister.Save(ctx, Envelope{Token: token}); err != nil {
		return err
	}

	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.token = token
	s.user = nil
	s.loading = false
	s.mu.Unlock()

	s.notify()
	s.fetchProfile(ctx, gen, token)
	return nil
}

// fetchProfile loads the profile in the background. A result is dropped
// when the session moved on (logout or another login) in the meantime.
func (s *Store) fetchProfile(ctx context.Context, gen uint64, token string) {
	ctx = context.WithoutCancel(ctx)

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()

		var user *User
		profile, err := s.backend.Me(ctx, token)
		if err != nil {
			s.logger.Debug("profile fetch failed, using token claims: %v", err)
			user = userFromToken(token)
		} else {
			user = userFromProfile(profile)
		}

		if !s.apply(gen, user) {
			s.logger.Debug("dropping stale profile for generation %d", gen)
			return
		}
		s.notify()
	}()
}

func (s *Store) apply(gen uint64, user *User) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation || s.token == "" {
		return false
	}
	s.user = user
	return true
}

func (s *Store) notify() {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	snap := s.snapshotLocked()
	subs := make([]*subscriber, 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.deliver(seq, snap)
	}
}

// subscriber serializes calls to one callback. A snapshot older than the
// newest one handed over is dropped. While a call is running, newer
// snapshots are parked in pending and the running goroutine delivers the
// latest of them once fn returns, so notify never waits on a slow
// subscriber.
type subscriber struct {
	fn         func(Snapshot)
	mu         sync.Mutex
	seq        uint64
	pending    *Snapshot
	delivering bool
}

func (sub *subscriber) deliver(seq uint64, snap Snapshot) {
	sub.mu.Lock()
	if seq <= sub.seq {
		sub.mu.Unlock()
		return
	}
	sub.seq = seq
	sub.pending = &snap
	if sub.delivering {
		sub.mu.Unlock()
		return
	}
	sub.delivering = true

	for sub.pending != nil {
		next := *sub.pending
		sub.pending = nil
		sub.mu.Unlock()
		sub.fn(next)
		sub.mu.Lock()
	}
	sub.delivering = false
	sub.mu.Unlock()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		Token:         s.token,
		Authenticated: s.token != "",
		Loading:       s.loading,
		Roles:         claims.RolesFromToken(s.token),
	}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	return snap
}

func userFromProfile(p *client.Profile) *User {
	return &User{
		ID:             p.ID,
		Email:          p.Email,
		DisplayName:    p.DisplayName,
		Bio:            p.Bio,
		FavoriteTopics: p.FavoriteTopics,
	}
}

func userFromToken(token string) *User {
	id := claims.IdentityFromToken(token)
	return &User{
		ID:          id.ID,
		Email:       id.Email,
		DisplayName: id.Name,
		FromClaims:  true,
	}
}
