// Package gateway is the single outbound channel to the billing backend.
// It injects bearer credentials, detects session expiry, and turns every
// non-2xx response into a structured error that keeps the original status
// and body.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	apperrors "github.com/kramabill/billing-krama/internal/errors"
)

const (
	maxResponseBytes       = 4 << 20
	defaultBreakerFailures = 5
	defaultBreakerCooldown = 30 * time.Second
	headerRequestID        = "X-Request-ID"
)

// ErrMalformedBody marks a 2xx response whose body could not be decoded.
var ErrMalformedBody = errors.New("malformed response body")

// errUpstreamStatus signals a 5xx to the circuit breaker while the response
// itself is still handed back to the caller.
var errUpstreamStatus = errors.New("upstream server error")

// TokenSource exposes the current session token. An empty string means the
// request goes out without credentials.
type TokenSource interface {
	Token() string
}

// TokenSourceFunc adapts a function to the TokenSource interface.
type TokenSourceFunc func() string

// Token implements TokenSource.
func (f TokenSourceFunc) Token() string {
	if f == nil {
		return ""
	}
	return f()
}

// Config describes how to reach the backend.
type Config struct {
	// BaseURL is the resolved API origin including its path prefix.
	BaseURL string
	// Tokens supplies the bearer token for each request.
	Tokens TokenSource
	// OnSessionExpired is invoked once for every 401 response.
	OnSessionExpired func()
	// Timeout is the whole-request timeout; zero keeps the transport default.
	Timeout time.Duration
	// RateLimit caps requests per second; zero or less disables pacing.
	RateLimit float64
	// Burst is the limiter bucket size.
	Burst int
	// BreakerFailures is the number of consecutive 5xx/network failures that open the breaker.
	BreakerFailures uint32
	// BreakerCooldown is how long the breaker stays open before probing again.
	BreakerCooldown time.Duration
	// Transport overrides the base round tripper (tests).
	Transport http.RoundTripper
	Logger    *slog.Logger
}

// Request is one backend call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
}

type exchange struct {
	status int
	body   []byte
}

// Gateway performs JSON requests against the backend.
type Gateway struct {
	baseURL   *url.URL
	client    *http.Client
	limiter   *rate.Limiter
	breaker   *gobreaker.CircuitBreaker[exchange]
	onExpired func()
	logger    *slog.Logger
}

// New builds a Gateway. BaseURL must be an absolute http(s) URL.
func New(cfg Config) (*Gateway, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must use http or https", cfg.BaseURL)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("base url %q has no host", cfg.BaseURL)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	baseTransport := cfg.Transport
	if baseTransport == nil {
		baseTransport = http.DefaultTransport
	}

	limit := rate.Inf
	burst := cfg.Burst
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
	}

	return &Gateway{
		baseURL: base,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Jar:       jar,
			Transport: &bearerTransport{tokens: cfg.Tokens, base: baseTransport},
		},
		limiter:   rate.NewLimiter(limit, burst),
		breaker:   newBreaker(cfg, logger),
		onExpired: cfg.OnSessionExpired,
		logger:    logger,
	}, nil
}

func newBreaker(cfg Config, logger *slog.Logger) *gobreaker.CircuitBreaker[exchange] {
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = defaultBreakerFailures
	}
	cooldown := cfg.BreakerCooldown
	if cooldown <= 0 {
		cooldown = defaultBreakerCooldown
	}

	return gobreaker.NewCircuitBreaker[exchange](gobreaker.Settings{
		Name:        "billing-api",
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})
}

// BaseURL returns the resolved backend origin.
func (g *Gateway) BaseURL() string { return g.baseURL.String() }

// Get issues a GET request and decodes the JSON response into out.
func (g *Gateway) Get(ctx context.Context, path string, query url.Values, out any) error {
	return g.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query}, out)
}

// Post issues a POST request with a JSON body.
func (g *Gateway) Post(ctx context.Context, path string, body, out any) error {
	return g.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body}, out)
}

// Put issues a PUT request with a JSON body.
func (g *Gateway) Put(ctx context.Context, path string, body, out any) error {
	return g.Do(ctx, Request{Method: http.MethodPut, Path: path, Body: body}, out)
}

// Delete issues a DELETE request.
func (g *Gateway) Delete(ctx context.Context, path string, out any) error {
	return g.Do(ctx, Request{Method: http.MethodDelete, Path: path}, out)
}

// Do executes req and decodes a 2xx JSON body into out (which may be nil).
// Non-2xx responses come back as *errors.AppError carrying status and body.
func (g *Gateway) Do(ctx context.Context, req Request, out any) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeCanceled, "request aborted")
	}

	httpReq, err := g.newRequest(ctx, req)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "build request")
	}

	start := time.Now()
	ex, err := g.breaker.Execute(func() (exchange, error) {
		return g.roundTrip(httpReq)
	})
	switch {
	case errors.Is(err, errUpstreamStatus):
		// Response is intact; interpreted below.
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return apperrors.Wrap(err, apperrors.ErrCodeServer, "Layanan sedang tidak tersedia. Coba lagi nanti.")
	case err != nil:
		if ctx.Err() != nil {
			return apperrors.Wrap(ctx.Err(), apperrors.ErrCodeCanceled, "request canceled")
		}
		g.logger.DebugContext(ctx, "backend request failed",
			slog.String("method", req.Method),
			slog.String("path", req.Path),
			slog.String("request_id", httpReq.Header.Get(headerRequestID)),
			slog.Any("error", err))
		return apperrors.Wrap(err, apperrors.ErrCodeServer, "Tidak dapat menghubungi server.")
	}

	g.logger.DebugContext(ctx, "backend request",
		slog.String("method", req.Method),
		slog.String("path", req.Path),
		slog.Int("status", ex.status),
		slog.Duration("duration", time.Since(start)),
		slog.String("request_id", httpReq.Header.Get(headerRequestID)))

	return g.interpret(ctx, req, ex, out)
}

func (g *Gateway) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	target := g.baseURL.JoinPath(req.Path)
	if len(req.Query) > 0 {
		target.RawQuery = req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(headerRequestID, uuid.NewString())
	return httpReq, nil
}

func (g *Gateway) roundTrip(req *http.Request) (exchange, error) {
	resp, err := g.client.Do(req)
	if err != nil {
		return exchange{}, err
	}

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	closeErr := resp.Body.Close()
	if readErr != nil {
		return exchange{}, errors.Join(fmt.Errorf("read response body: %w", readErr), closeErr)
	}
	if closeErr != nil {
		return exchange{}, fmt.Errorf("close response body: %w", closeErr)
	}

	ex := exchange{status: resp.StatusCode, body: body}
	if resp.StatusCode >= http.StatusInternalServerError {
		return ex, errUpstreamStatus
	}
	return ex, nil
}

func (g *Gateway) interpret(ctx context.Context, req Request, ex exchange, out any) error {
	if ex.status == http.StatusUnauthorized {
		g.logger.WarnContext(ctx, "backend rejected credentials",
			slog.String("method", req.Method),
			slog.String("path", req.Path))
		if g.onExpired != nil {
			g.onExpired()
		}
		return responseError(ex, apperrors.ErrCodeSessionExpired)
	}

	if ex.status < 200 || ex.status >= 300 {
		return responseError(ex, codeForStatus(ex.status))
	}

	if out == nil || len(bytes.TrimSpace(ex.body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(ex.body, out); err != nil {
		return &apperrors.AppError{
			Code:    apperrors.ErrCodeServer,
			Message: "Respons server tidak valid.",
			Cause:   fmt.Errorf("%w: %w", ErrMalformedBody, err),
			Status:  ex.status,
			Body:    ex.body,
		}
	}
	return nil
}

func codeForStatus(status int) apperrors.ErrorCode {
	switch {
	case status == http.StatusUnprocessableEntity:
		return apperrors.ErrCodeValidation
	case status == http.StatusNotFound:
		return apperrors.ErrCodeNotFound
	case status == http.StatusConflict:
		return apperrors.ErrCodeConflict
	case status >= http.StatusInternalServerError:
		return apperrors.ErrCodeServer
	default:
		return apperrors.ErrCodeRequest
	}
}
