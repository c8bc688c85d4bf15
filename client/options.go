package client

import (
	"net/http"
	"net/url"
	"time"
)

type requestOptions struct {
	query    url.Values
	headers  http.Header
	timeout  time.Duration
	skipAuth bool
	noCache  bool
	cacheTTL time.Duration
}

// RequestOption tunes a single request.
type RequestOption func(*requestOptions)

// WithQuery merges the given query parameters into the request.
func WithQuery(query url.Values) RequestOption {
	return func(o *requestOptions) {
		for key, values := range query {
			for _, value := range values {
				o.query.Add(key, value)
			}
		}
	}
}

// WithQueryParam adds one query parameter.
func WithQueryParam(key, value string) RequestOption {
	return func(o *requestOptions) {
		o.query.Add(key, value)
	}
}

// WithHeader adds one request header.
func WithHeader(key, value string) RequestOption {
	return func(o *requestOptions) {
		o.headers.Add(key, value)
	}
}

// WithTimeout overrides the request timeout.
func WithTimeout(timeout time.Duration) RequestOption {
	return func(o *requestOptions) {
		o.timeout = timeout
	}
}

// WithoutAuth suppresses the Authorization header and the 401
// refresh-and-replay path.
func WithoutAuth() RequestOption {
	return func(o *requestOptions) {
		o.skipAuth = true
	}
}

// WithoutCache forces a network round trip for a GET that would otherwise
// be served from cache.
func WithoutCache() RequestOption {
	return func(o *requestOptions) {
		o.noCache = true
	}
}

// WithCacheTTL overrides the freshness window for this response.
func WithCacheTTL(ttl time.Duration) RequestOption {
	return func(o *requestOptions) {
		o.cacheTTL = ttl
	}
}

func buildOptions(options []RequestOption) requestOptions {
	opts := requestOptions{
		query:   url.Values{},
		headers: http.Header{},
	}
	for _, opt := range options {
		opt(&opts)
	}
	return opts
}
