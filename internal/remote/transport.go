// Package remote talks to the two HTTP backends of the clinic: the clinical
// REST API holding patients, doctors and appointments, and the public holiday
// API. Both clients share one [Transport] so timeouts, tracing and request
// IDs are applied the same way to every call.
package remote

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	// DefaultTimeout bounds every remote call end to end.
	DefaultTimeout = 30 * time.Second

	// RequestIDHeader carries the correlation ID on outgoing requests.
	RequestIDHeader = "X-Request-Id"

	defaultUserAgent = "clinicsync"
)

// Transport is the connection policy shared by the remote clients.
type Transport struct {
	// Timeout bounds connect, TLS handshake, response headers and the whole
	// request. Zero means DefaultTimeout.
	Timeout   time.Duration
	UserAgent string
	Logger    *slog.Logger
}

// NewTransport returns a Transport with the given timeout.
func NewTransport(timeout time.Duration, logger *slog.Logger) *Transport {
	return &Transport{Timeout: timeout, UserAgent: defaultUserAgent, Logger: logger}
}

// HTTPClient builds the *http.Client used by both clients. Requests are traced
// with otelhttp and tagged with a request ID.
func (t *Transport) HTTPClient() *http.Client {
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := t.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ua := t.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	base := http.DefaultTransport.(*http.Transport).Clone()
	base.DialContext = (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext
	base.TLSHandshakeTimeout = timeout
	base.ResponseHeaderTimeout = timeout

	return &http.Client{
		Timeout: timeout,
		Transport: &requestIDTransport{
			next:      otelhttp.NewTransport(base),
			userAgent: ua,
			logger:    logger,
		},
	}
}

// requestIDTransport stamps each request with a request ID and user agent and
// logs the exchange at debug level.
type requestIDTransport struct {
	next      http.RoundTripper
	userAgent string
	logger    *slog.Logger
}

func (rt *requestIDTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	id := RequestIDFromContext(req.Context())
	if id == "" {
		id = uuid.NewString()
	}

	// RoundTrippers must not modify the caller's request.
	req = req.Clone(req.Context())
	req.Header.Set(RequestIDHeader, id)
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", rt.userAgent)
	}

	start := time.Now()
	resp, err := rt.next.RoundTrip(req)
	if err != nil {
		rt.logger.Debug("remote request failed",
			"request_id", id,
			"method", req.Method,
			"url", req.URL.Redacted(),
			"duration", time.Since(start),
			"error", err,
		)
		return nil, err
	}
	rt.logger.Debug("remote request",
		"request_id", id,
		"method", req.Method,
		"url", req.URL.Redacted(),
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)
	return resp, nil
}

type requestIDKey struct{}

// ContextWithRequestID returns ctx carrying id. Outgoing requests made with
// the returned context reuse id instead of generating a new one.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request ID stored by
// [ContextWithRequestID], or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
