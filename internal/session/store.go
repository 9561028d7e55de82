// Package session owns the authenticate/identify/terminate lifecycle and
// publishes it as observable state for guards and screens.
package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	domainauth "github.com/kramabill/billing-krama/internal/domain/auth"
	"github.com/kramabill/billing-krama/internal/domain/billing"
	apperrors "github.com/kramabill/billing-krama/internal/errors"
	"github.com/kramabill/billing-krama/internal/observability/metrics"
	"github.com/kramabill/billing-krama/internal/observability/statsd"
	"github.com/kramabill/billing-krama/internal/ports"
	"github.com/kramabill/billing-krama/internal/seq"
)

// User-facing fallbacks when the backend does not supply a message.
const (
	msgBadCredentials = "Email atau password salah."
	msgInvalidData    = "Data tidak valid."
	msgServer         = "Terjadi kesalahan pada server. Silakan coba lagi."
	msgProfile        = "Gagal memuat profil pengguna."
	msgStorage        = "Gagal menyimpan sesi."
)

const invalidateTimeout = 5 * time.Second

// ErrSuperseded is returned when a newer lifecycle operation overtook this one
// and its response was discarded.
var ErrSuperseded = errors.New("session operation superseded")

// Listener receives a snapshot after every state change.
type Listener func(domainauth.SessionState)

// Options configures a Store.
type Options struct {
	API     ports.AuthAPI
	Tokens  ports.TokenStore
	Logger  *slog.Logger
	Metrics statsd.Sink
}

// Store is the session state holder. It never holds its lock across a
// network or storage call.
type Store struct {
	api     ports.AuthAPI
	tokens  ports.TokenStore
	logger  *slog.Logger
	metrics statsd.Sink

	mu    sync.RWMutex
	phase domainauth.Phase
	token string
	user  *domainauth.User
	// loggingOut is set while Logout talks to the backend.
	loggingOut bool

	initialized bool
	initErr     error
	initGroup   singleflight.Group

	seq seq.Sequencer

	listenerMu sync.Mutex
	listeners  map[int]Listener
	nextID     int
}

// New creates a Store in the Unknown phase.
func New(opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		api:       opts.API,
		tokens:    opts.Tokens,
		logger:    logger.With("component", "session"),
		metrics:   opts.Metrics,
		phase:     domainauth.PhaseUnknown,
		listeners: make(map[int]Listener),
	}
}

// State returns the current snapshot.
func (s *Store) State() domainauth.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() domainauth.SessionState {
	st := domainauth.SessionState{Phase: s.phase}
	if s.user != nil {
		u := *s.user
		st.User = &u
	}
	return st
}

// Token returns the bearer token currently held, or "".
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Subscribe registers fn for change notifications. The returned func
// removes the registration.
func (s *Store) Subscribe(fn Listener) (cancel func()) {
	s.listenerMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenerMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.listenerMu.Lock()
			delete(s.listeners, id)
			s.listenerMu.Unlock()
		})
	}
}

func (s *Store) publish(st domainauth.SessionState) {
	s.listenerMu.Lock()
	fns := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenerMu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}

// Initialize replays a stored token. It runs once; later and concurrent
// callers receive the first run's result. The phase always leaves Unknown.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.RLock()
	done, err := s.initialized, s.initErr
	s.mu.RUnlock()
	if done {
		return err
	}

	_, err, _ = s.initGroup.Do("initialize", func() (any, error) {
		return nil, s.initialize(ctx)
	})
	return err
}

func (s *Store) initialize(ctx context.Context) error {
	s.mu.RLock()
	done, prev := s.initialized, s.initErr
	s.mu.RUnlock()
	if done {
		return prev
	}

	ticket := s.seq.Next()
	err := s.replay(ctx, ticket)

	s.mu.Lock()
	s.initialized = true
	s.initErr = err
	if s.phase == domainauth.PhaseUnknown {
		// A superseded or failed replay still has to end loading.
		s.phase = domainauth.PhaseAnonymous
		s.token = ""
		s.user = nil
	}
	st := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(st)
	return err
}

func (s *Store) replay(ctx context.Context, ticket seq.Ticket) error {
	token, err := s.tokens.Load(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "load stored token failed", "error", err)
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, msgStorage)
	}
	if token == "" {
		s.logger.DebugContext(ctx, "no stored token")
		return nil
	}

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()

	user, err := s.api.Profile(ctx)
	if err != nil {
		s.logger.InfoContext(ctx, "stored token rejected", "error", err)
		s.clearStoredToken(ctx)
		s.mu.Lock()
		if s.seq.Current(ticket) {
			s.token = ""
			s.user = nil
			s.phase = domainauth.PhaseAnonymous
		}
		s.mu.Unlock()
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.seq.Current(ticket) {
		return nil
	}
	s.user = &user
	s.phase = domainauth.PhaseAuthenticated
	return nil
}

// Login exchanges credentials for a session.
func (s *Store) Login(ctx context.Context, email, password string) error {
	start := time.Now()
	err := s.login(ctx, domainauth.Credentials{Email: email, Password: password})
	metrics.Emit(s.metrics, metrics.FlowMetric{Name: metrics.SessionLogin, Duration: time.Since(start), Err: err})
	return err
}

func (s *Store) login(ctx context.Context, creds domainauth.Credentials) error {
	ticket := s.seq.Next()

	res, err := s.api.Login(ctx, creds)
	if err != nil {
		return loginError(err)
	}
	return s.establish(ctx, ticket, res)
}

// Register creates an account. When the backend signs the new account in,
// the session becomes authenticated exactly as after Login.
func (s *Store) Register(ctx context.Context, in billing.RegisterInput) error {
	start := time.Now()
	err := s.register(ctx, in)
	metrics.Emit(s.metrics, metrics.FlowMetric{Name: metrics.SessionRegister, Duration: time.Since(start), Err: err})
	return err
}

func (s *Store) register(ctx context.Context, in billing.RegisterInput) error {
	ticket := s.seq.Next()

	res, err := s.api.Register(ctx, in)
	if err != nil {
		return registerError(err)
	}
	if res.Token == "" {
		s.logger.InfoContext(ctx, "registration accepted without session")
		return nil
	}
	return s.establish(ctx, ticket, res)
}

// establish persists a freshly issued token and resolves its user. The token
// is held in memory only once it is stored, and dropped again when the user
// cannot be resolved.
func (s *Store) establish(ctx context.Context, ticket seq.Ticket, res ports.AuthResult) error {
	if !s.current(ticket) {
		return ErrSuperseded
	}

	if err := s.tokens.Save(ctx, res.Token); err != nil {
		s.logger.ErrorContext(ctx, "persist token failed", "error", err)
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, msgStorage)
	}

	s.mu.Lock()
	if !s.seq.Current(ticket) {
		s.mu.Unlock()
		s.clearStoredToken(ctx)
		return ErrSuperseded
	}
	s.token = res.Token
	s.mu.Unlock()

	user := res.User
	if user == nil {
		profile, err := s.api.Profile(ctx)
		if err != nil {
			// The stored token is kept; the user is resolved on the next replay.
			s.logger.WarnContext(ctx, "profile fetch after sign-in failed", "error", err)
			s.mu.Lock()
			if s.seq.Current(ticket) && s.phase != domainauth.PhaseAuthenticated {
				s.token = ""
			}
			s.mu.Unlock()
			return apperrors.Wrap(err, apperrors.ErrCodeServer, apperrors.UserMessage(err, msgProfile))
		}
		user = &profile
	}

	s.mu.Lock()
	if !s.seq.Current(ticket) {
		s.mu.Unlock()
		return ErrSuperseded
	}
	u := *user
	s.user = &u
	s.phase = domainauth.PhaseAuthenticated
	st := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "signed in", "user_id", u.ID, "role", string(u.Role))
	s.publish(st)
	return nil
}

func (s *Store) current(ticket seq.Ticket) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq.Current(ticket)
}

// Logout ends the session locally. The backend is notified best-effort and
// its failure is only logged.
func (s *Store) Logout(ctx context.Context) {
	s.seq.Invalidate()

	// A 401 from the logout call itself must not read as an expiry.
	s.mu.Lock()
	s.loggingOut = true
	s.mu.Unlock()

	if s.Token() != "" {
		if err := s.api.Logout(ctx); err != nil {
			s.logger.WarnContext(ctx, "backend logout failed", "error", err)
		}
	}

	s.clearStoredToken(ctx)
	s.reset()
}

// UpdateUser replaces the cached identity after a profile edit. It is
// ignored when no session is authenticated.
func (s *Store) UpdateUser(user domainauth.User) {
	s.mu.Lock()
	if s.phase != domainauth.PhaseAuthenticated {
		s.mu.Unlock()
		s.logger.Debug("update user ignored without session")
		return
	}
	u := user
	s.user = &u
	st := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(st)
}

// Invalidate forces the session closed after the backend rejected the
// token. It reports whether an authenticated session was actually ended so
// callers can redirect exactly once.
func (s *Store) Invalidate() bool {
	s.seq.Invalidate()

	s.mu.Lock()
	ended := s.phase == domainauth.PhaseAuthenticated
	wasAuthenticated := ended && !s.loggingOut
	s.token = ""
	s.user = nil
	if s.phase != domainauth.PhaseUnknown {
		s.phase = domainauth.PhaseAnonymous
	}
	st := s.snapshotLocked()
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), invalidateTimeout)
	defer cancel()
	s.clearStoredToken(ctx)

	if wasAuthenticated {
		s.logger.Info("session expired")
		metrics.Emit(s.metrics, metrics.FlowMetric{Name: metrics.SessionInvalidated, Result: metrics.ResultSuccess})
	}
	if ended {
		s.publish(st)
	}
	return wasAuthenticated
}

func (s *Store) reset() {
	s.mu.Lock()
	changed := s.phase != domainauth.PhaseAnonymous || s.token != "" || s.user != nil
	s.loggingOut = false
	s.token = ""
	s.user = nil
	s.phase = domainauth.PhaseAnonymous
	st := s.snapshotLocked()
	s.mu.Unlock()

	if changed {
		s.publish(st)
	}
}

func (s *Store) clearStoredToken(ctx context.Context) {
	if err := s.tokens.Clear(ctx); err != nil {
		s.logger.WarnContext(ctx, "clear stored token failed", "error", err)
	}
}

func loginError(err error) error {
	switch apperrors.StatusOf(err) {
	case http.StatusUnauthorized, http.StatusUnprocessableEntity:
		return &apperrors.AppError{
			Code:    apperrors.ErrCodeAuthentication,
			Message: apperrors.UserMessage(err, msgBadCredentials),
			Cause:   err,
			Status:  apperrors.StatusOf(err),
		}
	}
	return serverError(err)
}

func registerError(err error) error {
	if apperrors.StatusOf(err) == http.StatusUnprocessableEntity {
		return apperrors.Wrap(err, apperrors.ErrCodeValidation, apperrors.UserMessage(err, msgInvalidData))
	}
	return serverError(err)
}

func serverError(err error) error {
	if apperrors.GetCode(err) == apperrors.ErrCodeCanceled {
		return err
	}
	return apperrors.Wrap(err, apperrors.ErrCodeServer, apperrors.UserMessage(err, msgServer))
}
