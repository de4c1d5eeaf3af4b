package blobstore

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/frahmantamala/reimbursement-tracker/internal"
	bolt "go.etcd.io/bbolt"
)

var blobBucket = []byte("blobs")

// BoltStore keeps every blob in a single bbolt bucket keyed by path, for
// single-node deployments that want one file to back up.
type BoltStore struct {
	db      *bolt.DB
	baseURL string
}

func OpenBoltStore(file, baseURL string) (*BoltStore, error) {
	if dir := filepath.Dir(file); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := bolt.Open(file, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(blobBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltStore{db: db, baseURL: baseURL}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) URL(p string) string {
	return publicURL(s.baseURL, p)
}

func (s *BoltStore) Upload(ctx context.Context, p string, r io.Reader, _ string) (string, error) {
	p, err := CleanPath(p)
	if err != nil {
		return "", internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}
	if err := ctx.Err(); err != nil {
		return "", unavailable(err)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", unavailable(err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(blobBucket).Put([]byte(p), data)
	})
	if err != nil {
		return "", unavailable(err)
	}
	return s.URL(p), nil
}

type readSeekNopCloser struct {
	*bytes.Reader
}

func (readSeekNopCloser) Close() error { return nil }

func (s *BoltStore) Open(_ context.Context, p string) (io.ReadSeekCloser, error) {
	p, err := CleanPath(p)
	if err != nil {
		return nil, internal.ErrFileNotFound
	}

	var data []byte
	err = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(blobBucket).Get([]byte(p))
		if v == nil {
			return internal.ErrFileNotFound
		}
		// v is only valid inside the transaction.
		data = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, unavailable(err)
	}
	return readSeekNopCloser{bytes.NewReader(data)}, nil
}

func (s *BoltStore) List(_ context.Context, prefix string) ([]string, error) {
	prefix, err := CleanPath(prefix)
	if err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}
	dirPrefix := []byte(prefix + "/")

	paths := make([]string, 0)
	err = s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(blobBucket).Cursor()
		for k, _ := c.Seek(dirPrefix); k != nil && bytes.HasPrefix(k, dirPrefix); k, _ = c.Next() {
			paths = append(paths, string(k))
		}
		return nil
	})
	if err != nil {
		return nil, unavailable(err)
	}
	return paths, nil
}

func (s *BoltStore) Remove(_ context.Context, paths ...string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(blobBucket)
		for _, p := range paths {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			if err := b.Delete([]byte(p)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}
