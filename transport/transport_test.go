package transport_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	clienterrors "github.com/jrsteele09/go-docs-client/internal/errors"
	"github.com/jrsteele09/go-docs-client/transport"
)

type staticTokens string

func (s staticTokens) Token() (string, bool) {
	return string(s), s != ""
}

func TestDoDecodesSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/documents/documents/", r.URL.Path)
		require.Equal(t, "7", r.URL.Query().Get("category"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"count": 1}`))
	}))
	defer server.Close()

	tr, err := transport.New(server.URL)
	require.NoError(t, err)

	resp, err := tr.Do(context.Background(), transport.Request{
		Method: http.MethodGet,
		Path:   "api/v1/documents/documents/",
		Query:  map[string][]string{"category": {"7"}},
	})
	require.NoError(t, err)

	var decoded struct {
		Count int `json:"count"`
	}
	require.NoError(t, resp.Decode(&decoded))
	require.Equal(t, 1, decoded.Count)
}

func TestDoAttachesAuthAndTraceHeaders(t *testing.T) {
	var gotAuth, gotTrace string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotTrace = r.Header.Get("X-Request-ID")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	tr, err := transport.New(server.URL, transport.WithTokenSource(staticTokens("token-1")))
	require.NoError(t, err)

	resp, err := tr.Do(context.Background(), transport.Request{Method: http.MethodGet, Path: "api/v1/auth/profile/"})
	require.NoError(t, err)

	require.Equal(t, "Bearer token-1", gotAuth)
	require.NotEmpty(t, gotTrace)
	require.Equal(t, resp.TraceID, gotTrace)
}

func TestDoSkipAuthSuppressesHeader(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	tr, err := transport.New(server.URL, transport.WithTokenSource(staticTokens("token-1")))
	require.NoError(t, err)

	_, err = tr.Do(context.Background(), transport.Request{
		Method:   http.MethodPost,
		Path:     "api/v1/auth/login/",
		Body:     map[string]string{"email": "a@b.c"},
		SkipAuth: true,
	})
	require.NoError(t, err)
	require.Empty(t, gotAuth)
}

func TestDoNormalizesValidationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"title": ["This field is required."]}`))
	}))
	defer server.Close()

	tr, err := transport.New(server.URL)
	require.NoError(t, err)

	_, err = tr.Do(context.Background(), transport.Request{Method: http.MethodPost, Path: "api/v1/documents/documents/"})
	require.Error(t, err)

	apiErr, ok := transport.AsError(err)
	require.True(t, ok)
	require.Equal(t, transport.KindValidation, apiErr.Kind)
	require.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	require.JSONEq(t, `{"title": ["This field is required."]}`, string(apiErr.Details))
	require.False(t, apiErr.Retryable())
}

func TestDoNormalizesServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"detail": "search index rebuilding", "code": "index_unavailable"}`))
	}))
	defer server.Close()

	tr, err := transport.New(server.URL)
	require.NoError(t, err)

	_, err = tr.Do(context.Background(), transport.Request{Method: http.MethodGet, Path: "api/v1/search/search/"})
	require.Error(t, err)

	apiErr, ok := transport.AsError(err)
	require.True(t, ok)
	require.Equal(t, transport.KindServer, apiErr.Kind)
	require.Equal(t, "index_unavailable", apiErr.Code)
	require.Equal(t, "search index rebuilding", apiErr.Message)
}

func TestDoDefaultsMessageFromStatusText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	tr, err := transport.New(server.URL)
	require.NoError(t, err)

	_, err = tr.Do(context.Background(), transport.Request{Method: http.MethodGet, Path: "x"})
	apiErr, ok := transport.AsError(err)
	require.True(t, ok)
	require.Equal(t, "Bad Gateway", apiErr.Message)
	require.Equal(t, "http_502", apiErr.Code)
}

func TestDoNormalizesNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	tr, err := transport.New(server.URL)
	require.NoError(t, err)

	_, err = tr.Do(context.Background(), transport.Request{Method: http.MethodGet, Path: "x"})
	require.Error(t, err)

	apiErr, ok := transport.AsError(err)
	require.True(t, ok)
	require.Equal(t, transport.KindNetwork, apiErr.Kind)
	require.True(t, apiErr.Retryable())
	require.ErrorIs(t, err, clienterrors.ErrUnreachable)
}

func TestDoTimesOut(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	tr, err := transport.New(server.URL, transport.WithTimeout(20*time.Millisecond))
	require.NoError(t, err)

	_, err = tr.Do(context.Background(), transport.Request{Method: http.MethodGet, Path: "x"})
	require.Error(t, err)

	apiErr, ok := transport.AsError(err)
	require.True(t, ok)
	require.Equal(t, transport.KindNetwork, apiErr.Kind)
	require.ErrorIs(t, err, clienterrors.ErrRequestTimeout)
}

func TestStreamCopiesBody(t *testing.T) {
	payload := bytes.Repeat([]byte("chunk "), 1024)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	tr, err := transport.New(server.URL)
	require.NoError(t, err)

	var sink bytes.Buffer
	_, err = tr.Stream(context.Background(), transport.Request{Method: http.MethodGet, Path: "download"}, &sink)
	require.NoError(t, err)
	require.Equal(t, payload, sink.Bytes())
}

func TestStreamErrorStillNormalized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail": "document not found"}`))
	}))
	defer server.Close()

	tr, err := transport.New(server.URL)
	require.NoError(t, err)

	var sink bytes.Buffer
	_, err = tr.Stream(context.Background(), transport.Request{Method: http.MethodGet, Path: "download"}, &sink)
	require.Error(t, err)
	require.Zero(t, sink.Len())

	apiErr, ok := transport.AsError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	require.Equal(t, "document not found", apiErr.Message)
}

func TestNewRejectsRelativeBaseURL(t *testing.T) {
	_, err := transport.New("localhost:8000")
	require.Error(t, err)
}
