// Package search wraps the full-text search endpoint. Search traffic is
// bursty and repetitive (type-ahead re-issues the same query), so results
// ride the request cache with a short TTL unless the caller asks for fresh
// data.
package search

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/jrsteele09/go-docs-client/client"
	"github.com/jrsteele09/go-docs-client/documents"
)

const searchPath = "api/v1/search/search/"

// resultTTL keeps search memoization short; the index changes more often
// than document metadata.
const resultTTL = 30 * time.Second

// Result is one search hit with its relevance metadata.
type Result struct {
	Document  documents.Document `json:"document"`
	Score     float64            `json:"score"`
	Highlight string             `json:"highlight,omitempty"`
}

// Params shape a search request.
type Params struct {
	Query    string
	Category int64
	FileType string
	Page     int
	PageSize int
	Fresh    bool // bypass the request cache
}

// Service wraps the search endpoint.
type Service struct {
	api *client.Client
}

// NewService creates a search service over the shared client.
func NewService(api *client.Client) *Service {
	return &Service{api: api}
}

// Search runs a full-text query over the document index.
func (s *Service) Search(ctx context.Context, params Params) (*documents.Page[Result], error) {
	if params.Query == "" {
		return nil, errors.New("[search.Search] query is required")
	}

	opts := []client.RequestOption{
		client.WithQueryParam("q", params.Query),
		client.WithCacheTTL(resultTTL),
	}
	if params.Category > 0 {
		opts = append(opts, client.WithQueryParam("category", strconv.FormatInt(params.Category, 10)))
	}
	if params.FileType != "" {
		opts = append(opts, client.WithQueryParam("file_type", params.FileType))
	}
	if params.Page > 0 {
		opts = append(opts, client.WithQueryParam("page", strconv.Itoa(params.Page)))
	}
	if params.PageSize > 0 {
		opts = append(opts, client.WithQueryParam("page_size", strconv.Itoa(params.PageSize)))
	}
	if params.Fresh {
		opts = append(opts, client.WithoutCache())
	}

	var page documents.Page[Result]
	if err := s.api.Get(ctx, searchPath, &page, opts...); err != nil {
		return nil, errors.Wrap(err, "[search.Search]")
	}
	return &page, nil
}
