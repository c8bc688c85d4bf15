package documents

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/jrsteele09/go-docs-client/client"
)

// CategoryService wraps the category endpoints.
type CategoryService struct {
	api *client.Client
}

// NewCategoryService creates a category service over the shared client.
func NewCategoryService(api *client.Client) *CategoryService {
	return &CategoryService{api: api}
}

// List returns one page of categories.
func (s *CategoryService) List(ctx context.Context) (*Page[Category], error) {
	var page Page[Category]
	if err := s.api.Get(ctx, categoriesPath, &page); err != nil {
		return nil, errors.Wrap(err, "[categories.List]")
	}
	return &page, nil
}

// Documents returns the documents filed under one category.
func (s *CategoryService) Documents(ctx context.Context, categoryID int64) (*Page[Document], error) {
	var page Page[Document]
	path := fmt.Sprintf("%s%d/documents/", categoriesPath, categoryID)
	if err := s.api.Get(ctx, path, &page); err != nil {
		return nil, errors.Wrapf(err, "[categories.Documents] id %d", categoryID)
	}
	return &page, nil
}
