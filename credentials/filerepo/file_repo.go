// Package filerepo persists credentials as a JSON key-value file. It is the
// default repo for single-user sessions: tokens survive process restarts on
// the same machine but never leave it.
package filerepo

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/jrsteele09/go-docs-client/credentials"
	clienterrors "github.com/jrsteele09/go-docs-client/internal/errors"
)

var _ credentials.Repo = (*FileRepo)(nil)

type FileRepo struct {
	path string
	lock sync.Mutex
}

func New(path string) *FileRepo {
	return &FileRepo{path: path}
}

func (r *FileRepo) Get(_ context.Context, key string) (string, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	values, err := r.load()
	if err != nil {
		return "", err
	}

	value, ok := values[key]
	if !ok {
		return "", clienterrors.ErrKeyNotFound
	}
	return value, nil
}

func (r *FileRepo) Set(_ context.Context, key, value string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	values, err := r.load()
	if err != nil {
		return err
	}

	values[key] = value
	return r.save(values)
}

func (r *FileRepo) Delete(_ context.Context, keys ...string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	values, err := r.load()
	if err != nil {
		return err
	}

	for _, key := range keys {
		delete(values, key)
	}
	return r.save(values)
}

func (r *FileRepo) load() (map[string]string, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, errors.Wrap(err, "[FileRepo.load] read credentials file")
	}

	values := make(map[string]string)
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, errors.Wrap(err, "[FileRepo.load] unmarshal credentials file")
	}
	return values, nil
}

func (r *FileRepo) save(values map[string]string) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return errors.Wrap(err, "[FileRepo.save] marshal credentials")
	}

	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return errors.Wrap(err, "[FileRepo.save] create credentials dir")
		}
	}

	// Tokens only; 0600 keeps them out of other local users' reach.
	if err := os.WriteFile(r.path, data, 0o600); err != nil {
		return errors.Wrap(err, "[FileRepo.save] write credentials file")
	}
	return nil
}
