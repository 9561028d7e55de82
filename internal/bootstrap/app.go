package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/kramabill/billing-krama/config"
	"github.com/kramabill/billing-krama/internal/api"
	"github.com/kramabill/billing-krama/internal/cart"
	"github.com/kramabill/billing-krama/internal/checkout"
	"github.com/kramabill/billing-krama/internal/gateway"
	"github.com/kramabill/billing-krama/internal/nav"
	"github.com/kramabill/billing-krama/internal/notify"
	"github.com/kramabill/billing-krama/internal/observability/statsd"
	"github.com/kramabill/billing-krama/internal/ports"
	"github.com/kramabill/billing-krama/internal/session"
)

// AppOptions groups what NewApp needs beyond configuration.
type AppOptions struct {
	Config *config.AppConfig
	Logger *slog.Logger
	// Notices receives user-visible notices; a LogSink on Logger when nil.
	Notices notify.Sink
	// Tokens overrides the configured token store.
	Tokens ports.TokenStore
	// Metrics overrides the configured metrics sink.
	Metrics statsd.Sink
	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// App is the fully wired client.
type App struct {
	Config    config.AppConfig
	Logger    *slog.Logger
	BaseURL   string
	Gateway   *gateway.Gateway
	API       *api.Client
	Session   *session.Store
	Cart      *cart.Store
	Navigator *nav.Navigator
	Checkout  *checkout.Flow
	Notices   notify.Sink
	Metrics   statsd.Sink

	closers []io.Closer
}

// NewApp wires gateway, API client, stores, navigator and checkout flow.
// The gateway reads the bearer token from the session and, on a 401,
// invalidates the session and sends the navigator to login exactly once.
func NewApp(ctx context.Context, opts AppOptions) (*App, error) {
	if opts.Config == nil {
		return nil, errors.New("app config is required")
	}
	cfg := *opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{Config: cfg, Logger: logger}

	app.Notices = opts.Notices
	if app.Notices == nil {
		app.Notices = notify.LogSink{Logger: logger}
	}

	app.Metrics = opts.Metrics
	if app.Metrics == nil {
		sink, closer := NewMetrics(ctx, cfg.Observability.Metrics, logger)
		app.Metrics = sink
		app.closers = append(app.closers, closer)
	}

	tokens := opts.Tokens
	if tokens == nil {
		store, closer, err := NewTokenStore(ctx, cfg.Storage, logger)
		if err != nil {
			_ = app.Close()
			return nil, fmt.Errorf("token store: %w", err)
		}
		tokens = store
		app.closers = append(app.closers, closer)
	}

	baseURL, source := cfg.API.ResolveBaseURL()
	app.BaseURL = baseURL
	logger.Info("backend selected", "base_url", baseURL, "source", source)

	// The gateway and the session refer to each other; the closures below
	// are only called after both exist.
	var (
		sess      *session.Store
		navigator *nav.Navigator
	)
	gw, err := gateway.New(gateway.Config{
		BaseURL: baseURL,
		Tokens:  gateway.TokenSourceFunc(func() string { return sess.Token() }),
		OnSessionExpired: func() {
			if sess.Invalidate() {
				app.Notices.Notify(notify.Info("Sesi Anda telah berakhir. Silakan login kembali."))
				navigator.Navigate(nav.PathLogin)
			}
		},
		Timeout:         cfg.API.Timeout,
		RateLimit:       cfg.API.RateLimitRPS,
		Burst:           cfg.API.RateLimitBurst,
		BreakerFailures: cfg.API.BreakerFailures,
		BreakerCooldown: cfg.API.BreakerCooldown,
		Transport:       opts.Transport,
		Logger:          logger,
	})
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("gateway: %w", err)
	}

	client := api.New(gw)
	sess = session.New(session.Options{
		API:     client,
		Tokens:  tokens,
		Logger:  logger,
		Metrics: app.Metrics,
	})
	navigator = nav.NewNavigator(nav.NewRouter(), sess, logger)

	basket := cart.New(cart.Options{
		Notices: app.Notices,
		Logger:  logger,
		Metrics: app.Metrics,
	})
	flow, err := checkout.New(checkout.Options{
		Payments:             client,
		Cart:                 basket,
		Navigator:            navigator,
		Scheduler:            navigator,
		Notices:              app.Notices,
		Logger:               logger,
		Metrics:              app.Metrics,
		PaymentMethod:        cfg.UI.PaymentMethod,
		ConfirmRedirectDelay: cfg.UI.ConfirmRedirectDelay,
	})
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("checkout: %w", err)
	}

	app.Gateway = gw
	app.API = client
	app.Session = sess
	app.Navigator = navigator
	app.Cart = basket
	app.Checkout = flow
	return app, nil
}

// Start replays the stored token and opens the landing screen. A failed
// replay leaves the session anonymous, so the landing screen is login.
func (a *App) Start(ctx context.Context) nav.Outcome {
	if err := a.Session.Initialize(ctx); err != nil {
		a.Logger.Warn("session initialisation failed", "error", err)
	}
	return a.Navigator.Open(nav.PathRoot)
}

// Close releases connections held by adapters.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
