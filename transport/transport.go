// Package transport performs single HTTP round trips against the
// knowledge-base API: base-URL resolution, JSON codec, auth and trace
// headers, and normalization of every failure into one Error shape. It
// never retries; retry decisions belong to the auth manager (401 replay)
// or to the resilience helpers (caller opt-in).
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	clienterrors "github.com/jrsteele09/go-docs-client/internal/errors"
)

const (
	headerTraceID       = "X-Request-ID"
	headerAuthorization = "Authorization"
	contentTypeJSON     = "application/json"
)

// TokenSource supplies the current access token for the Authorization
// header. The credential store implements it.
type TokenSource interface {
	Token() (accessToken string, ok bool)
}

// Request describes one logical API call.
type Request struct {
	Method      string
	Path        string // relative to the configured base URL
	Query       url.Values
	Body        any       // JSON-encoded when non-nil
	RawBody     io.Reader // pre-encoded body (multipart uploads); wins over Body
	ContentType string    // required with RawBody
	Headers     http.Header
	SkipAuth    bool          // suppress the Authorization header
	Timeout     time.Duration // per-request override
}

// Response is a completed 2xx round trip.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	TraceID    string
}

// Decode unmarshals the response body into out. A nil out discards the
// body; an empty body is treated as no content.
func (r *Response) Decode(out any) error {
	if out == nil || len(r.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, out); err != nil {
		return errors.Wrap(err, "[Response.Decode] unmarshal body")
	}
	return nil
}

// Transport executes requests against one base URL.
type Transport struct {
	baseURL     *url.URL
	httpClient  *http.Client
	tokens      TokenSource
	log         zerolog.Logger
	diagnostics bool
	timeout     time.Duration
}

// Option modifies a Transport instance.
type Option func(*Transport)

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(t *Transport) {
		t.httpClient = client
	}
}

// WithTokenSource attaches the Authorization header supplier.
func WithTokenSource(tokens TokenSource) Option {
	return func(t *Transport) {
		t.tokens = tokens
	}
}

// WithLogger sets the transport's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(t *Transport) {
		t.log = log
	}
}

// WithDiagnostics enables per-request debug logging. Intended for
// non-production environments; it never alters control flow.
func WithDiagnostics(enabled bool) Option {
	return func(t *Transport) {
		t.diagnostics = enabled
	}
}

// WithTimeout sets the default per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(t *Transport) {
		t.timeout = timeout
	}
}

// New creates a Transport for the given base URL.
func New(baseURL string, options ...Option) (*Transport, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "[transport.New] parse base URL")
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, errors.Errorf("[transport.New] base URL %q needs a scheme and host", baseURL)
	}

	transport := &Transport{
		baseURL:    parsed,
		httpClient: &http.Client{},
		log:        zerolog.Nop(),
		timeout:    30 * time.Second,
	}

	for _, opt := range options {
		opt(transport)
	}

	return transport, nil
}

// Do executes one round trip and buffers the response body. Non-2xx
// responses and wire failures come back as a normalized *Error.
func (t *Transport) Do(ctx context.Context, req Request) (*Response, error) {
	return t.roundTrip(ctx, req, nil)
}

// Stream executes one round trip, copying a 2xx body into w instead of
// buffering it. Error responses are still buffered and normalized.
func (t *Transport) Stream(ctx context.Context, req Request, w io.Writer) (*Response, error) {
	return t.roundTrip(ctx, req, w)
}

func (t *Transport) roundTrip(ctx context.Context, req Request, sink io.Writer) (*Response, error) {
	traceID := uuid.NewString()
	started := time.Now()

	httpReq, err := t.buildRequest(ctx, req, traceID)
	if err != nil {
		return nil, err
	}

	timeout := t.timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
		httpReq = httpReq.WithContext(ctx)
	}

	httpResp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, t.normalizeWireError(err, req, traceID)
	}
	defer httpResp.Body.Close()

	success := httpResp.StatusCode >= 200 && httpResp.StatusCode < 300

	response := &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		TraceID:    traceID,
	}

	if success && sink != nil {
		if _, err := io.Copy(sink, httpResp.Body); err != nil {
			return nil, NewNetworkError("response stream interrupted", traceID, err)
		}
	} else {
		body, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return nil, NewNetworkError("failed to read response body", traceID, err)
		}
		response.Body = body
	}

	t.logRequest(req, httpResp.StatusCode, traceID, time.Since(started))

	if !success {
		return nil, normalizeServerError(httpResp.StatusCode, response.Body, traceID)
	}
	return response, nil
}

func (t *Transport) buildRequest(ctx context.Context, req Request, traceID string) (*http.Request, error) {
	target := t.baseURL.JoinPath(req.Path)
	if len(req.Query) > 0 {
		target.RawQuery = req.Query.Encode()
	}

	var body io.Reader
	contentType := ""
	switch {
	case req.RawBody != nil:
		body = req.RawBody
		contentType = req.ContentType
	case req.Body != nil:
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return nil, errors.Wrap(err, "[Transport.buildRequest] marshal body")
		}
		body = bytes.NewReader(encoded)
		contentType = contentTypeJSON
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target.String(), body)
	if err != nil {
		return nil, errors.Wrap(err, "[Transport.buildRequest] new request")
	}

	httpReq.Header.Set("Accept", contentTypeJSON)
	httpReq.Header.Set(headerTraceID, traceID)
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	for key, values := range req.Headers {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}

	if t.tokens != nil && !req.SkipAuth {
		if token, ok := t.tokens.Token(); ok {
			httpReq.Header.Set(headerAuthorization, "Bearer "+token)
		}
	}

	return httpReq, nil
}

func (t *Transport) normalizeWireError(err error, req Request, traceID string) *Error {
	message := "server unreachable"
	cause := err

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		message = "request timed out"
		cause = errors.Wrap(clienterrors.ErrRequestTimeout, err.Error())
	case errors.Is(err, context.Canceled):
		message = "request canceled"
	case strings.Contains(err.Error(), "connection refused"):
		cause = errors.Wrap(clienterrors.ErrUnreachable, err.Error())
	}

	t.logRequest(req, 0, traceID, 0)
	return NewNetworkError(message, traceID, cause)
}

func (t *Transport) logRequest(req Request, status int, traceID string, elapsed time.Duration) {
	if !t.diagnostics {
		return
	}
	t.log.Debug().
		Str("method", req.Method).
		Str("path", req.Path).
		Int("status", status).
		Str("trace_id", traceID).
		Dur("elapsed", elapsed).
		Msg("api request")
}
