// Package documents is the typed surface over the document endpoints. All
// calls go through the shared client, so they inherit caching, token
// renewal, and the normalized error shape for free.
package documents

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/jrsteele09/go-docs-client/client"
)

const (
	basePath       = "api/v1/documents/documents/"
	categoriesPath = "api/v1/documents/categories/"
)

// Document statuses reported by the processing pipeline.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

type Document struct {
	ID            int64      `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	FileSize      int64      `json:"file_size"`
	FileType      string     `json:"file_type"`
	FileHash      string     `json:"file_hash,omitempty"`
	Status        string     `json:"status"`
	Category      *Category  `json:"category,omitempty"`
	Tags          []Tag      `json:"tags,omitempty"`
	UploadedBy    string     `json:"uploaded_by,omitempty"`
	ViewCount     int        `json:"view_count"`
	DownloadCount int        `json:"download_count"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parent      *int64 `json:"parent,omitempty"`
}

type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Page is the backend's standard paginated envelope.
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next,omitempty"`
	Previous *string `json:"previous,omitempty"`
	Results  []T     `json:"results"`
}

// ListParams filter and paginate the document listing. Zero values are
// omitted from the query.
type ListParams struct {
	Page     int
	PageSize int
	Category int64
	Status   string
	Search   string
	Ordering string
}

func (p ListParams) options() []client.RequestOption {
	var opts []client.RequestOption
	if p.Page > 0 {
		opts = append(opts, client.WithQueryParam("page", strconv.Itoa(p.Page)))
	}
	if p.PageSize > 0 {
		opts = append(opts, client.WithQueryParam("page_size", strconv.Itoa(p.PageSize)))
	}
	if p.Category > 0 {
		opts = append(opts, client.WithQueryParam("category", strconv.FormatInt(p.Category, 10)))
	}
	if p.Status != "" {
		opts = append(opts, client.WithQueryParam("status", p.Status))
	}
	if p.Search != "" {
		opts = append(opts, client.WithQueryParam("search", p.Search))
	}
	if p.Ordering != "" {
		opts = append(opts, client.WithQueryParam("ordering", p.Ordering))
	}
	return opts
}

// CreateRequest uploads one file with its metadata.
type CreateRequest struct {
	Title       string
	Description string
	Category    int64
	FileName    string
	Content     io.Reader
}

// UpdateRequest carries partial metadata changes; nil fields are left
// untouched.
type UpdateRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Category    *int64  `json:"category,omitempty"`
}

// Service wraps the document endpoints.
type Service struct {
	api *client.Client
}

// NewService creates a document service over the shared client.
func NewService(api *client.Client) *Service {
	return &Service{api: api}
}

// List returns one page of documents matching params.
func (s *Service) List(ctx context.Context, params ListParams) (*Page[Document], error) {
	var page Page[Document]
	if err := s.api.Get(ctx, basePath, &page, params.options()...); err != nil {
		return nil, errors.Wrap(err, "[documents.List]")
	}
	return &page, nil
}

// Get returns one document by ID.
func (s *Service) Get(ctx context.Context, id int64) (*Document, error) {
	var doc Document
	if err := s.api.Get(ctx, detailPath(id), &doc); err != nil {
		return nil, errors.Wrapf(err, "[documents.Get] id %d", id)
	}
	return &doc, nil
}

// Create uploads a new document. The multipart form carries the file plus
// metadata fields; the listing cache is invalidated on success.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Document, error) {
	fields := map[string]string{
		"title": req.Title,
	}
	if req.Description != "" {
		fields["description"] = req.Description
	}
	if req.Category > 0 {
		fields["category"] = strconv.FormatInt(req.Category, 10)
	}

	file := client.UploadFile{
		FieldName: "file",
		FileName:  req.FileName,
		Content:   req.Content,
	}

	var doc Document
	if err := s.api.Upload(ctx, basePath, file, fields, &doc); err != nil {
		return nil, errors.Wrap(err, "[documents.Create]")
	}
	return &doc, nil
}

// Update applies partial metadata changes to a document.
func (s *Service) Update(ctx context.Context, id int64, req UpdateRequest) (*Document, error) {
	var doc Document
	if err := s.api.Patch(ctx, detailPath(id), req, &doc); err != nil {
		return nil, errors.Wrapf(err, "[documents.Update] id %d", id)
	}
	return &doc, nil
}

// Delete removes a document.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.api.Delete(ctx, detailPath(id), nil); err != nil {
		return errors.Wrapf(err, "[documents.Delete] id %d", id)
	}
	return nil
}

// Download streams the document's file content into w.
func (s *Service) Download(ctx context.Context, id int64, w io.Writer) error {
	if err := s.api.Download(ctx, detailPath(id)+"download/", w); err != nil {
		return errors.Wrapf(err, "[documents.Download] id %d", id)
	}
	return nil
}

// Recent returns the most recently uploaded documents.
func (s *Service) Recent(ctx context.Context) ([]Document, error) {
	var docs []Document
	if err := s.api.Get(ctx, basePath+"recent/", &docs); err != nil {
		return nil, errors.Wrap(err, "[documents.Recent]")
	}
	return docs, nil
}

// Popular returns the most viewed documents.
func (s *Service) Popular(ctx context.Context) ([]Document, error) {
	var docs []Document
	if err := s.api.Get(ctx, basePath+"popular/", &docs); err != nil {
		return nil, errors.Wrap(err, "[documents.Popular]")
	}
	return docs, nil
}

func detailPath(id int64) string {
	return fmt.Sprintf("%s%d/", basePath, id)
}
