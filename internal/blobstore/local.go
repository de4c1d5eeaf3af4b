package blobstore

import (
	"context"
	stderrors "errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/frahmantamala/reimbursement-tracker/internal"
)

// LocalStore keeps blobs as plain files below a root directory.
type LocalStore struct {
	root    string
	baseURL string
}

func NewLocalStore(root, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &LocalStore{root: root, baseURL: baseURL}, nil
}

func (s *LocalStore) URL(p string) string {
	return publicURL(s.baseURL, p)
}

func (s *LocalStore) Upload(ctx context.Context, p string, r io.Reader, _ string) (string, error) {
	p, err := CleanPath(p)
	if err != nil {
		return "", internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}
	if err := ctx.Err(); err != nil {
		return "", unavailable(err)
	}

	full := filepath.Join(s.root, filepath.FromSlash(p))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", unavailable(err)
	}

	// Write beside the target and rename so readers never see a partial file.
	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return "", unavailable(err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", unavailable(err)
	}
	if err := tmp.Close(); err != nil {
		return "", unavailable(err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return "", unavailable(err)
	}
	return s.URL(p), nil
}

func (s *LocalStore) Open(_ context.Context, p string) (io.ReadSeekCloser, error) {
	p, err := CleanPath(p)
	if err != nil {
		return nil, internal.ErrFileNotFound
	}
	f, err := os.Open(filepath.Join(s.root, filepath.FromSlash(p)))
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, internal.ErrFileNotFound
		}
		return nil, unavailable(err)
	}
	if info, err := f.Stat(); err == nil && info.IsDir() {
		f.Close()
		return nil, internal.ErrFileNotFound
	}
	return f, nil
}

// List returns the sorted paths of every blob under prefix.
func (s *LocalStore) List(_ context.Context, prefix string) ([]string, error) {
	prefix, err := CleanPath(prefix)
	if err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}
	dir := filepath.Join(s.root, filepath.FromSlash(prefix))

	paths := make([]string, 0)
	err = filepath.WalkDir(dir, func(full string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".upload-") {
			return nil
		}
		rel, err := filepath.Rel(s.root, full)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, unavailable(err)
	}
	sort.Strings(paths)
	return paths, nil
}

// Remove deletes the given blobs; missing ones are ignored.
func (s *LocalStore) Remove(_ context.Context, paths ...string) error {
	for _, p := range paths {
		p, err := CleanPath(p)
		if err != nil {
			continue
		}
		full := filepath.Join(s.root, filepath.FromSlash(p))
		if err := os.Remove(full); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
			return unavailable(err)
		}
	}
	return nil
}
