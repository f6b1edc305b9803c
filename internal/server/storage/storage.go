// Package storage holds encrypted document blobs. The catalog only ever
// sees opaque blob keys; backends decide where the bytes live.
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/docvault/internal/common"
)

// BlobInfo describes one stored blob.
type BlobInfo struct {
	Key     string
	Size    int64
	ModTime time.Time
}

// BlobStore is the persistence surface for encrypted blobs.
//
// Get of a missing key returns common.ErrorNotFound. Delete of a missing key
// succeeds.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]BlobInfo, error)
}

// ValidKey rejects keys that could escape a flat namespace.
func ValidKey(key string) error {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) || strings.ContainsRune(key, 0) {
		return fmt.Errorf("%w: invalid blob key %q", common.ErrorValidation, key)
	}
	return nil
}
