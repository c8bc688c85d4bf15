// Package client is the façade every feature module calls through. A
// request travels one visible pipeline: cache lookup, proactive token
// refresh, dispatch, at most one refresh-and-replay on 401, then cache
// write. No hidden interceptors.
package client

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-docs-client/auth"
	"github.com/jrsteele09/go-docs-client/credentials"
	"github.com/jrsteele09/go-docs-client/requestcache"
	"github.com/jrsteele09/go-docs-client/transport"
)

// Client dispatches authenticated API calls with caching and transparent
// token renewal.
type Client struct {
	transport *transport.Transport
	auth      *auth.Manager
	cache     *requestcache.Cache
	log       zerolog.Logger
}

// Option modifies a Client instance.
type Option func(*Client)

// WithCache replaces the default request cache, e.g. to change its TTL.
func WithCache(cache *requestcache.Cache) Option {
	return func(c *Client) {
		c.cache = cache
	}
}

// WithLogger sets the client's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// New wires the façade. The broadcaster subscription keeps the cache in
// step with the session: a logout (including an escalated one after a
// failed refresh) drops every cached payload.
func New(t *transport.Transport, manager *auth.Manager, broadcaster *auth.Broadcaster, options ...Option) (*Client, error) {
	if t == nil {
		return nil, errors.New("[client.New] transport is required")
	}
	if manager == nil {
		return nil, errors.New("[client.New] auth manager is required")
	}
	if broadcaster == nil {
		return nil, errors.New("[client.New] broadcaster is required")
	}

	client := &Client{
		transport: t,
		auth:      manager,
		cache:     requestcache.New(),
		log:       zerolog.Nop(),
	}

	for _, opt := range options {
		opt(client)
	}

	broadcaster.Subscribe(func(authenticated bool, _ *credentials.User) {
		if !authenticated {
			client.cache.Clear()
		}
	})

	return client, nil
}

// Auth exposes the lifecycle manager for login/logout/profile calls.
func (c *Client) Auth() *auth.Manager {
	return c.auth
}

// Cache exposes the request cache for explicit invalidation by feature
// services.
func (c *Client) Cache() *requestcache.Cache {
	return c.cache
}

// Get performs a GET, serving a fresh cached payload when one exists and
// caching permits.
func (c *Client) Get(ctx context.Context, path string, out any, options ...RequestOption) error {
	return c.do(ctx, http.MethodGet, path, nil, out, buildOptions(options))
}

// Post performs a POST and invalidates cached reads under the same
// collection.
func (c *Client) Post(ctx context.Context, path string, body, out any, options ...RequestOption) error {
	return c.do(ctx, http.MethodPost, path, body, out, buildOptions(options))
}

// Put performs a PUT and invalidates cached reads under the same
// collection.
func (c *Client) Put(ctx context.Context, path string, body, out any, options ...RequestOption) error {
	return c.do(ctx, http.MethodPut, path, body, out, buildOptions(options))
}

// Patch performs a PATCH and invalidates cached reads under the same
// collection.
func (c *Client) Patch(ctx context.Context, path string, body, out any, options ...RequestOption) error {
	return c.do(ctx, http.MethodPatch, path, body, out, buildOptions(options))
}

// Delete performs a DELETE and invalidates cached reads under the same
// collection.
func (c *Client) Delete(ctx context.Context, path string, out any, options ...RequestOption) error {
	return c.do(ctx, http.MethodDelete, path, nil, out, buildOptions(options))
}

// UploadFile is one multipart file part.
type UploadFile struct {
	FieldName string
	FileName  string
	Content   io.Reader
}

// Upload sends a multipart form with one file part plus plain fields. The
// form is encoded once up front so the 401 replay can resend it.
func (c *Client) Upload(ctx context.Context, path string, file UploadFile, fields map[string]string, out any, options ...RequestOption) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile(file.FieldName, file.FileName)
	if err != nil {
		return errors.Wrap(err, "[Upload] create file part")
	}
	if _, err := io.Copy(part, file.Content); err != nil {
		return errors.Wrap(err, "[Upload] copy file content")
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return errors.Wrap(err, "[Upload] write field")
		}
	}
	if err := writer.Close(); err != nil {
		return errors.Wrap(err, "[Upload] finalize form")
	}

	opts := buildOptions(options)
	opts.noCache = true

	encoded := buf.Bytes()
	resp, err := c.dispatchWithReplay(ctx, opts, func() transport.Request {
		req := c.buildRequest(http.MethodPost, path, nil, opts)
		req.RawBody = bytes.NewReader(encoded)
		req.ContentType = writer.FormDataContentType()
		return req
	}, nil)
	if err != nil {
		return err
	}

	c.cache.InvalidatePrefix(collectionPrefix(path))
	return resp.Decode(out)
}

// Download streams a GET response body into w. Downloads bypass the cache.
func (c *Client) Download(ctx context.Context, path string, w io.Writer, options ...RequestOption) error {
	opts := buildOptions(options)
	opts.noCache = true

	_, err := c.dispatchWithReplay(ctx, opts, func() transport.Request {
		return c.buildRequest(http.MethodGet, path, nil, opts)
	}, w)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, opts requestOptions) error {
	key := requestcache.Key(path, opts.query)
	cacheable := method == http.MethodGet && !opts.noCache

	if cacheable {
		if payload, ok := c.cache.Get(key); ok {
			cached := &transport.Response{Body: payload}
			return cached.Decode(out)
		}
	}

	resp, err := c.dispatchWithReplay(ctx, opts, func() transport.Request {
		return c.buildRequest(method, path, body, opts)
	}, nil)
	if err != nil {
		return err
	}

	if cacheable {
		c.cache.Set(key, resp.Body, opts.cacheTTL)
	}
	if method != http.MethodGet {
		c.cache.InvalidatePrefix(collectionPrefix(path))
	}

	return resp.Decode(out)
}

// dispatchWithReplay sends the request, and on a 401 joins the shared
// refresh and replays exactly once. A 401 on the replay is terminal.
func (c *Client) dispatchWithReplay(ctx context.Context, opts requestOptions, build func() transport.Request, sink io.Writer) (*transport.Response, error) {
	if !opts.skipAuth {
		if err := c.auth.EnsureFresh(ctx); err != nil {
			if transport.IsAuthExpired(err) {
				return nil, err
			}
			c.log.Warn().Err(err).Msg("proactive refresh failed, dispatching anyway")
		}
	}

	resp, err := c.send(ctx, build(), sink)
	if err == nil || opts.skipAuth || !transport.IsUnauthorized(err) {
		return resp, err
	}

	if refreshErr := c.auth.HandleUnauthorized(ctx); refreshErr != nil {
		return nil, refreshErr
	}

	resp, err = c.send(ctx, build(), sink)
	if err != nil && transport.IsUnauthorized(err) {
		apiErr, _ := transport.AsError(err)
		return nil, transport.NewAuthExpiredError("request unauthorized after token refresh", apiErr.TraceID)
	}
	return resp, err
}

func (c *Client) send(ctx context.Context, req transport.Request, sink io.Writer) (*transport.Response, error) {
	if sink != nil {
		return c.transport.Stream(ctx, req, sink)
	}
	return c.transport.Do(ctx, req)
}

func (c *Client) buildRequest(method, path string, body any, opts requestOptions) transport.Request {
	return transport.Request{
		Method:   method,
		Path:     path,
		Query:    opts.query,
		Body:     body,
		Headers:  opts.headers,
		SkipAuth: opts.skipAuth,
		Timeout:  opts.timeout,
	}
}

// collectionPrefix cuts a resource path at its first numeric segment, so a
// mutation of "documents/documents/42/" (or an action under it) invalidates
// the collection listing and every cached detail beneath it.
func collectionPrefix(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, segment := range segments {
		if isNumeric(segment) {
			return strings.Join(segments[:i], "/") + "/"
		}
	}
	return strings.Trim(path, "/") + "/"
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
