package blobstore

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/frahmantamala/reimbursement-tracker/internal"
)

// Store keeps receipt files under slash-separated paths. Upload overwrites
// an existing blob at the same path.
type Store interface {
	Upload(ctx context.Context, p string, r io.Reader, contentType string) (string, error)
	Open(ctx context.Context, p string) (io.ReadSeekCloser, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Remove(ctx context.Context, paths ...string) error
	URL(p string) string
}

// New builds the backend named by cfg.Driver. The returned closer releases
// backend resources and is never nil.
func New(cfg internal.StorageConfig) (Store, io.Closer, error) {
	switch cfg.Driver {
	case "", "local":
		s, err := NewLocalStore(cfg.Path, cfg.PublicBaseURL)
		if err != nil {
			return nil, nil, err
		}
		return s, closerFunc(func() error { return nil }), nil
	case "bolt":
		s, err := OpenBoltStore(cfg.Path, cfg.PublicBaseURL)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	}
	return nil, nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
}

// CleanPath normalises p and rejects anything that would escape the store.
func CleanPath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" || strings.HasPrefix(p, "/") || strings.Contains(p, "\\") {
		return "", fmt.Errorf("invalid blob path %q", p)
	}
	cleaned := path.Clean(p)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("invalid blob path %q", p)
	}
	return cleaned, nil
}

func publicURL(base, p string) string {
	return strings.TrimRight(base, "/") + "/" + p
}

func unavailable(err error) error {
	if _, ok := internal.IsAppError(err); ok {
		return err
	}
	return internal.NewBlobStoreUnavailableError(err)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
