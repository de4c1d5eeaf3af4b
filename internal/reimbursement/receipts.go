package reimbursement

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// ReceiptFile is one uploaded attachment.
type ReceiptFile struct {
	Name        string
	ContentType string
	Content     io.Reader
}

// Receipt is a stored attachment as listed back to clients.
type Receipt struct {
	Name string `json:"name"`
	Path string `json:"path"`
	URL  string `json:"url"`
}

// BlobStore is the subset of the blob backend the lifecycle needs.
type BlobStore interface {
	Upload(ctx context.Context, p string, r io.Reader, contentType string) (string, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Remove(ctx context.Context, paths ...string) error
	URL(p string) string
}

func ReceiptPrefix(userID, requestID string) string {
	return userID + "/reimbursement_requests/" + requestID
}

// submissionPath names a receipt attached at creation. The timestamp and
// index keep same-named files from colliding.
func submissionPath(userID, requestID string, at time.Time, index int, name string) string {
	return fmt.Sprintf("%s/%d_%d_%s", ReceiptPrefix(userID, requestID), at.UnixMilli(), index, SanitizeFilename(name))
}

// editPath names a receipt added while editing; re-uploading a file with the
// same name replaces it.
func editPath(userID, requestID, name string) string {
	return ReceiptPrefix(userID, requestID) + "/" + SanitizeFilename(name)
}

// SanitizeFilename strips directories and the comma used to join URLs.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, ",", "_")
	if name == "" || name == "." || name == "/" || name == ".." {
		return "receipt"
	}
	return name
}

// uploadAll stores files concurrently under the paths produced by pathFor.
// URLs come back in input order; the first failure cancels the rest.
func uploadAll(ctx context.Context, store BlobStore, files []ReceiptFile, pathFor func(int, ReceiptFile) string) ([]string, error) {
	urls := make([]string, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			url, err := store.Upload(gctx, pathFor(i, f), f.Content, f.ContentType)
			if err != nil {
				return fmt.Errorf("upload %s: %w", f.Name, err)
			}
			urls[i] = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return urls, nil
}

// mergeReceipts appends added to existing, skipping URLs already present.
func mergeReceipts(existing, added []string) []string {
	seen := make(map[string]struct{}, len(existing))
	out := make([]string, 0, len(existing)+len(added))
	for _, u := range existing {
		seen[u] = struct{}{}
		out = append(out, u)
	}
	for _, u := range added {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
