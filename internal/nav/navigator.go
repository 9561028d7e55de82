package nav

import (
	"log/slog"
	"sync"
	"time"

	domainauth "github.com/kramabill/billing-krama/internal/domain/auth"
	"github.com/kramabill/billing-krama/internal/guard"
	"github.com/kramabill/billing-krama/internal/ports"
)

// maxRedirects bounds how many guard redirects one navigation may follow.
const maxRedirects = 5

// SessionReader exposes the session snapshot guards evaluate.
type SessionReader interface {
	State() domainauth.SessionState
}

// Outcome describes the result of one navigation.
type Outcome struct {
	Requested string
	Match     Match
	Decision  guard.Decision
	// Redirects lists every path visited after Requested, in order.
	Redirects []string
	NotFound  bool
	// Looped is set when the redirect bound was hit.
	Looped bool
}

// Path is the screen the navigation ended on.
func (o Outcome) Path() string { return o.Match.Path }

// Rendered reports whether a screen is now showing.
func (o Outcome) Rendered() bool { return o.Decision.Action == guard.Render && !o.NotFound }

// Navigator moves between screens, applying route guards on every hop.
type Navigator struct {
	router  *Router
	session SessionReader
	logger  *slog.Logger

	mu        sync.Mutex
	current   Outcome
	screen    uint64
	listeners map[int]func(Outcome)
	nextID    int
}

var _ ports.Navigator = (*Navigator)(nil)

// NewNavigator creates a Navigator. A nil router uses DefaultRoutes.
func NewNavigator(router *Router, session SessionReader, logger *slog.Logger) *Navigator {
	if router == nil {
		router = NewRouter()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Navigator{
		router:    router,
		session:   session,
		logger:    logger.With("component", "navigator"),
		listeners: make(map[int]func(Outcome)),
	}
}

// Navigate satisfies ports.Navigator. Navigating to the screen already
// showing is a no-op, so repeated forced redirects to login settle.
func (n *Navigator) Navigate(path string) {
	if normalize(path) == n.Current() {
		return
	}
	n.Open(path)
}

// Open resolves path, follows guard redirects and records the final screen.
// A suspended navigation leaves the current screen unchanged.
func (n *Navigator) Open(path string) Outcome {
	out, _ := n.open(path, nil)
	return out
}

// openIf opens path only while screen is still the one showing. The check
// and the commit happen under the same lock, so a navigation that lands in
// between wins. It reports whether the screen was committed or already
// showing.
func (n *Navigator) openIf(screen uint64, path string) (Outcome, bool) {
	return n.open(path, &screen)
}

func (n *Navigator) open(path string, onScreen *uint64) (Outcome, bool) {
	out := n.resolve(path)

	switch {
	case out.Decision.Action == guard.Suspend:
		n.logger.Debug("navigation suspended", "path", out.Requested)
		return out, false
	case out.Looped:
		n.logger.Error("redirect loop", "path", out.Requested, "redirects", out.Redirects)
		return out, false
	}

	n.mu.Lock()
	if onScreen != nil {
		if n.screen != *onScreen {
			n.mu.Unlock()
			return out, false
		}
		if n.current.Match.Path == out.Match.Path {
			n.mu.Unlock()
			return out, true
		}
	}
	n.current = out
	n.screen++
	listeners := make([]func(Outcome), 0, len(n.listeners))
	for _, fn := range n.listeners {
		listeners = append(listeners, fn)
	}
	n.mu.Unlock()

	if out.NotFound {
		n.logger.Info("screen not found", "path", out.Match.Path)
	} else {
		n.logger.Debug("screen rendered", "path", out.Match.Path, "route", out.Match.Route.Name, "shell", out.Decision.Shell)
	}
	for _, fn := range listeners {
		fn(out)
	}
	return out, true
}

func (n *Navigator) state() domainauth.SessionState {
	if n.session == nil {
		return domainauth.SessionState{Phase: domainauth.PhaseAnonymous}
	}
	return n.session.State()
}

// Current returns the path of the screen showing, or "" before the first
// navigation.
func (n *Navigator) Current() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current.Match.Path
}

// Screen returns the full outcome of the last rendered navigation.
func (n *Navigator) Screen() Outcome {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// Subscribe registers fn for every rendered navigation. The returned func
// removes it.
func (n *Navigator) Subscribe(fn func(Outcome)) func() {
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.listeners[id] = fn
	n.mu.Unlock()

	return func() {
		n.mu.Lock()
		delete(n.listeners, id)
		n.mu.Unlock()
	}
}

// After navigates to path once delay has passed, unless the returned cancel
// func is called first or another screen was shown in the meantime.
func (n *Navigator) After(delay time.Duration, path string) (cancel func()) {
	n.mu.Lock()
	screen := n.screen
	n.mu.Unlock()

	var once sync.Once
	stopped := make(chan struct{})
	timer := time.AfterFunc(delay, func() {
		select {
		case <-stopped:
			return
		default:
		}
		if _, ok := n.openIf(screen, path); !ok {
			n.logger.Debug("delayed navigation dropped", "path", path)
		}
	})

	return func() {
		once.Do(func() {
			close(stopped)
			timer.Stop()
		})
	}
}
