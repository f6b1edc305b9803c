// Package scratch manages the decrypted, short-lived copies of documents
// produced for a single view or download.
//
// Artifacts live in one private directory. Every name carries a random
// prefix, so concurrent reads of the same document never share a file.
package scratch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/dmitrijs2005/docvault/internal/filex"
	"github.com/google/uuid"
)

// Dir is a scratch directory for plaintext artifacts.
type Dir struct {
	path string
	now  func() time.Time
}

// New creates path with mode 0700 when needed.
func New(path string) (*Dir, error) {
	abs, err := filex.EnsureDir(path, 0o700)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorStorage, err)
	}
	return &Dir{path: abs, now: time.Now}, nil
}

// Path returns the absolute directory.
func (d *Dir) Path() string {
	return d.path
}

// Create writes content to a fresh artifact named <uuid>_<base><ext> and
// returns its absolute path.
func (d *Dir) Create(base, ext string, content []byte) (string, error) {
	name := uuid.NewString() + "_" + filex.SanitizeName(base) + ext
	path := filepath.Join(d.path, name)

	if err := filex.WriteFileAtomic(path, content, 0o600); err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrorStorage, err)
	}
	return path, nil
}

// Release deletes the artifact at path. An artifact that is already gone
// counts as released. Paths outside the directory are refused.
func (d *Dir) Release(path string) error {
	if filepath.Dir(filepath.Clean(path)) != d.path {
		return fmt.Errorf("%w: %s is not a scratch artifact", common.ErrorValidation, path)
	}
	if err := filex.RemoveIfExists(path); err != nil {
		return fmt.Errorf("%w: %v", common.ErrorStorage, err)
	}
	return nil
}

// ReleaseName is Release for a bare artifact name as handed to clients.
// Any directory components in name are ignored.
func (d *Dir) ReleaseName(name string) error {
	base, err := d.resolve(name)
	if err != nil {
		return err
	}
	return d.Release(base)
}

// Open opens an artifact by name for streaming.
func (d *Dir) Open(name string) (*os.File, error) {
	path, err := d.resolve(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: artifact %s", common.ErrorNotFound, filepath.Base(path))
		}
		return nil, fmt.Errorf("%w: %v", common.ErrorStorage, err)
	}
	return f, nil
}

func (d *Dir) resolve(name string) (string, error) {
	base := filepath.Base(name)
	if base == "." || base == ".." || base == string(filepath.Separator) || strings.HasPrefix(base, filex.TempPrefix) {
		return "", fmt.Errorf("%w: invalid artifact name %q", common.ErrorValidation, name)
	}
	return filepath.Join(d.path, base), nil
}

// Sweep deletes artifacts last modified more than maxAge ago and returns how
// many were removed. Abandoned temp files are swept too.
func (d *Dir) Sweep(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrorStorage, err)
	}

	cutoff := d.now().Add(-maxAge)
	removed := 0
	var errs []error
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := filex.RemoveIfExists(filepath.Join(d.path, e.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	if len(errs) > 0 {
		return removed, fmt.Errorf("%w: %v", common.ErrorStorage, errors.Join(errs...))
	}
	return removed, nil
}
