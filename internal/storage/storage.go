package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
)

var ErrUnavailable = errors.New("object storage not configured")

// Store keeps recordings and scenario images under slash-separated keys.
type Store interface {
	Put(ctx context.Context, key string, contentType string, r io.Reader) (size int64, err error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Name() string
}

type Unavailable struct{}

func (Unavailable) Put(context.Context, string, string, io.Reader) (int64, error) {
	return 0, ErrUnavailable
}

func (Unavailable) Open(context.Context, string) (io.ReadCloser, error) {
	return nil, ErrUnavailable
}

func (Unavailable) Name() string { return "none" }

// Fetch copies an object into a local temp file, keeping the key's
// extension so format sniffing still works.
func Fetch(ctx context.Context, s Store, key, dir string) (string, func(), error) {
	rc, err := s.Open(ctx, key)
	if err != nil {
		return "", func() {}, err
	}
	defer rc.Close()

	f, err := os.CreateTemp(dir, "fetch-*"+filepath.Ext(key))
	if err != nil {
		return "", func() {}, err
	}
	cleanup := func() { _ = os.Remove(f.Name()) }

	if _, err := io.Copy(f, rc); err != nil {
		_ = f.Close()
		cleanup()
		return "", func() {}, err
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", func() {}, err
	}
	return f.Name(), cleanup, nil
}
