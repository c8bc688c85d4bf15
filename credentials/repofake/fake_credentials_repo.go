package repofake

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-docs-client/credentials"
	clienterrors "github.com/jrsteele09/go-docs-client/internal/errors"
)

var _ credentials.Repo = (*FakeCredentialsRepo)(nil)

type FakeCredentialsRepo struct {
	values map[string]string
	lock   sync.RWMutex
}

func NewFakeCredentialsRepo() *FakeCredentialsRepo {
	return &FakeCredentialsRepo{
		values: make(map[string]string),
	}
}

func (r *FakeCredentialsRepo) Get(_ context.Context, key string) (string, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	value, ok := r.values[key]
	if !ok {
		return "", clienterrors.ErrKeyNotFound
	}
	return value, nil
}

func (r *FakeCredentialsRepo) Set(_ context.Context, key, value string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.values[key] = value
	return nil
}

func (r *FakeCredentialsRepo) Delete(_ context.Context, keys ...string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	for _, key := range keys {
		delete(r.values, key)
	}
	return nil
}
