// Package session holds the CLI's signed-in identity and its loading and error state.
package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teamfaces/teamfaces/internal/guard"
	"github.com/teamfaces/teamfaces/internal/keychain"
	"github.com/teamfaces/teamfaces/internal/models"
	"github.com/teamfaces/teamfaces/pkg/client"
)

// DefaultErrorTTL is how long an error stays set before it clears itself.
const DefaultErrorTTL = 5 * time.Second

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("session store closed")

// Provider is the identity provider the store talks to. *client.Client satisfies it.
type Provider interface {
	SetToken(token string)
	Login(ctx context.Context, email, password string) (*client.Session, error)
	Register(ctx context.Context, acct client.Account) (*client.JoinResult, error)
	Logout(ctx context.Context) error
	Me(ctx context.Context) (*models.Identity, error)
	UpdateMe(ctx context.Context, u client.ProfileUpdate) (*models.Identity, error)
	RequestPasswordReset(ctx context.Context, email string) error
	GetMember(ctx context.Context, id uuid.UUID) (*models.Member, error)
}

// Profile is the extra sign-up data.
type Profile struct {
	Name string
}

// State is a snapshot of the store.
type State struct {
	Identity *models.Identity
	Loading  bool
	Err      string
}

// Guard returns the route guard's view of the state.
func (s State) Guard() guard.State {
	return guard.State{Identity: s.Identity, Loading: s.Loading}
}

// event is one session change. A nil identity means signed out.
type event struct {
	identity *models.Identity
	applied  chan struct{}
}

// Store is the single source of truth for who is signed in. One goroutine consumes the
// session-change feed; every event replaces the identity.
type Store struct {
	api      Provider
	kc       keychain.Keychain
	tokenKey string
	errTTL   time.Duration
	logger   *zap.Logger

	mu        sync.RWMutex
	identity  *models.Identity
	loading   bool
	errMsg    string
	errGen    uint64
	errTimer  *time.Timer
	listeners map[int]func(State)
	nextID    int

	events    chan event
	ready     chan struct{}
	readyOnce sync.Once
	startOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

// Config configures a Store.
type Config struct {
	// TokenKey is the keychain entry the session token is kept under.
	TokenKey string
	ErrorTTL time.Duration
}

// New creates a store in the loading state. Call Start to begin consuming session events.
func New(api Provider, kc keychain.Keychain, cfg Config, logger *zap.Logger) *Store {
	if cfg.ErrorTTL <= 0 {
		cfg.ErrorTTL = DefaultErrorTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		api:       api,
		kc:        kc,
		tokenKey:  cfg.TokenKey,
		errTTL:    cfg.ErrorTTL,
		logger:    logger,
		loading:   true,
		listeners: make(map[int]func(State)),
		events:    make(chan event, 4),
		ready:     make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start restores a saved session and begins consuming session events. It is safe to call once;
// later calls are no-ops.
func (s *Store) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		ctx, s.cancel = context.WithCancel(ctx)
		go s.run(ctx)
	})
}

// Close stops the event loop and waits for it.
func (s *Store) Close() {
	s.startOnce.Do(func() { close(s.done) })
	if s.cancel != nil {
		s.cancel()
	}
	<-s.done
	s.mu.Lock()
	if s.errTimer != nil {
		s.errTimer.Stop()
	}
	s.mu.Unlock()
}

// Ready is closed once the first session event has been applied.
func (s *Store) Ready() <-chan struct{} { return s.ready }

// Wait blocks until the store is ready or ctx ends.
func (s *Store) Wait(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the current snapshot.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stateLocked()
}

func (s *Store) stateLocked() State {
	var ident *models.Identity
	if s.identity != nil {
		cp := *s.identity
		ident = &cp
	}
	return State{Identity: ident, Loading: s.loading, Err: s.errMsg}
}

// OnChange registers fn for every state change and returns its removal func.
func (s *Store) OnChange(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify() {
	s.mu.RLock()
	st := s.stateLocked()
	fns := make([]func(State), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()
	for _, fn := range fns {
		fn(st)
	}
}

func (s *Store) run(ctx context.Context) {
	defer close(s.done)
	s.apply(ctx, s.restore(ctx))
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.events:
			s.apply(ctx, ev.identity)
			close(ev.applied)
		}
	}
}

// restore loads the saved token and resolves it to an identity, or nil when there is none.
func (s *Store) restore(ctx context.Context) *models.Identity {
	token, err := s.kc.Get(s.tokenKey)
	if err != nil {
		if !errors.Is(err, keychain.ErrNotFound) {
			s.logger.Warn("read session token", zap.Error(err))
		}
		return nil
	}
	s.api.SetToken(token)
	ident, err := s.api.Me(ctx)
	if err != nil {
		if client.IsStatus(err, http.StatusUnauthorized) {
			_ = s.kc.Delete(s.tokenKey)
		} else {
			s.logger.Warn("restore session", zap.Error(err))
		}
		s.api.SetToken("")
		return nil
	}
	return ident
}

// apply replaces the identity, merging the member card when there is one.
func (s *Store) apply(ctx context.Context, ident *models.Identity) {
	if ident != nil {
		merged := s.merge(ctx, *ident)
		ident = &merged
	}
	s.mu.Lock()
	s.identity = ident
	s.loading = false
	s.mu.Unlock()
	s.readyOnce.Do(func() { close(s.ready) })
	s.notify()
}

func (s *Store) merge(ctx context.Context, ident models.Identity) models.Identity {
	m, err := s.api.GetMember(ctx, ident.ID)
	if err != nil {
		if !client.IsStatus(err, http.StatusNotFound) && !client.IsStatus(err, http.StatusForbidden) {
			s.logger.Debug("member profile unavailable", zap.Error(err))
		}
		return ident
	}
	return ident.MergeMember(m)
}

// emit pushes a session change onto the feed and waits until it has been applied.
func (s *Store) emit(ctx context.Context, ident *models.Identity) error {
	ev := event{identity: ident, applied: make(chan struct{})}
	select {
	case s.events <- ev:
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ev.applied:
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// clearError resets the error at the start of every operation.
func (s *Store) clearError() {
	s.mu.Lock()
	changed := s.errMsg != ""
	s.errMsg = ""
	s.errGen++
	if s.errTimer != nil {
		s.errTimer.Stop()
		s.errTimer = nil
	}
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

// fail records err as a human-readable message that clears itself after the TTL, and returns err.
func (s *Store) fail(err error) error {
	s.mu.Lock()
	s.errMsg = client.Message(err)
	s.errGen++
	gen := s.errGen
	if s.errTimer != nil {
		s.errTimer.Stop()
	}
	s.errTimer = time.AfterFunc(s.errTTL, func() {
		s.mu.Lock()
		if s.errGen != gen {
			s.mu.Unlock()
			return
		}
		s.errMsg = ""
		s.errTimer = nil
		s.mu.Unlock()
		s.notify()
	})
	s.mu.Unlock()
	s.notify()
	return err
}

func (s *Store) saveToken(token string) error {
	s.api.SetToken(token)
	if err := s.kc.Set(s.tokenKey, token); err != nil {
		return err
	}
	return nil
}

// SignUp registers a new identity and signs it in.
func (s *Store) SignUp(ctx context.Context, email, password string, p Profile) error {
	s.clearError()
	res, err := s.api.Register(ctx, client.Account{Name: p.Name, Email: email, Password: password})
	if err != nil {
		return s.fail(err)
	}
	return s.Adopt(ctx, res.Session)
}

// SignIn authenticates and signs in.
func (s *Store) SignIn(ctx context.Context, email, password string) error {
	s.clearError()
	sess, err := s.api.Login(ctx, email, password)
	if err != nil {
		return s.fail(err)
	}
	return s.Adopt(ctx, sess)
}

// Adopt signs in with a session obtained elsewhere (setup, join).
func (s *Store) Adopt(ctx context.Context, sess *client.Session) error {
	if sess == nil {
		return s.fail(errors.New("no session returned"))
	}
	if err := s.saveToken(sess.Token); err != nil {
		s.logger.Warn("session token not persisted", zap.Error(err))
	}
	ident := sess.User
	if err := s.emit(ctx, &ident); err != nil {
		return s.fail(err)
	}
	return nil
}

// SignOut revokes the token and signs out. The local session ends even if revocation fails.
func (s *Store) SignOut(ctx context.Context) error {
	s.clearError()
	revokeErr := s.api.Logout(ctx)
	if revokeErr != nil && !client.IsStatus(revokeErr, http.StatusUnauthorized) {
		s.logger.Warn("token revocation failed", zap.Error(revokeErr))
	} else {
		revokeErr = nil
	}
	s.api.SetToken("")
	if err := s.kc.Delete(s.tokenKey); err != nil {
		s.logger.Warn("delete session token", zap.Error(err))
	}
	if err := s.emit(ctx, nil); err != nil {
		return s.fail(err)
	}
	if revokeErr != nil {
		return s.fail(revokeErr)
	}
	return nil
}

// RequestPasswordReset asks the provider to mail a reset code.
func (s *Store) RequestPasswordReset(ctx context.Context, email string) error {
	s.clearError()
	if err := s.api.RequestPasswordReset(ctx, email); err != nil {
		return s.fail(err)
	}
	return nil
}

// UpdateProfile edits the signed-in identity and refreshes it from the merged stored record.
func (s *Store) UpdateProfile(ctx context.Context, u client.ProfileUpdate) error {
	s.clearError()
	ident, err := s.api.UpdateMe(ctx, u)
	if err != nil {
		return s.fail(err)
	}
	s.Refresh(ctx, ident)
	return nil
}

// Refresh replaces the identity with a freshly stored copy, merged with the member card.
func (s *Store) Refresh(ctx context.Context, ident *models.Identity) {
	if ident == nil {
		return
	}
	merged := s.merge(ctx, *ident)
	s.mu.Lock()
	s.identity = &merged
	s.mu.Unlock()
	s.notify()
}
