package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/dmitrijs2005/docvault/internal/filex"
)

// FSStore keeps blobs as 0600 files in a single directory.
type FSStore struct {
	dir string
}

// NewFSStore creates dir with mode 0700 when needed.
func NewFSStore(dir string) (*FSStore, error) {
	abs, err := filex.EnsureDir(dir, 0o700)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorStorage, err)
	}
	return &FSStore{dir: abs}, nil
}

// Dir returns the absolute blob directory.
func (s *FSStore) Dir() string {
	return s.dir
}

func (s *FSStore) Put(_ context.Context, key string, data []byte) error {
	if err := ValidKey(key); err != nil {
		return err
	}
	if err := filex.WriteFileAtomic(filepath.Join(s.dir, key), data, 0o600); err != nil {
		return fmt.Errorf("%w: %v", common.ErrorStorage, err)
	}
	return nil
}

func (s *FSStore) Get(_ context.Context, key string) ([]byte, error) {
	if err := ValidKey(key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: blob %s", common.ErrorNotFound, key)
		}
		return nil, fmt.Errorf("%w: %v", common.ErrorStorage, err)
	}
	return data, nil
}

func (s *FSStore) Delete(_ context.Context, key string) error {
	if err := ValidKey(key); err != nil {
		return err
	}
	if err := filex.RemoveIfExists(filepath.Join(s.dir, key)); err != nil {
		return fmt.Errorf("%w: %v", common.ErrorStorage, err)
	}
	return nil
}

// List returns every regular file in the directory except in-flight temp
// files.
func (s *FSStore) List(ctx context.Context) ([]BlobInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorStorage, err)
	}

	out := make([]BlobInfo, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), filex.TempPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		out = append(out, BlobInfo{Key: e.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}
	return out, nil
}
