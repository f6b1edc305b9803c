// Package filex holds small filesystem helpers shared by the blob store and
// the scratch directory.
package filex

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
)

// EnsureDir creates dir (relative paths resolve against the working
// directory) with perm if it does not exist and returns its absolute path.
// An existing directory is tightened to perm.
func EnsureDir(dir string, perm os.FileMode) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("abs %s: %w", dir, err)
	}

	if err := os.MkdirAll(abs, perm); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", abs, err)
	}

	if err := os.Chmod(abs, perm); err != nil {
		return "", fmt.Errorf("chmod %s: %w", abs, err)
	}

	return abs, nil
}

// RemoveIfExists deletes path. A missing file is not an error.
func RemoveIfExists(path string) error {
	err := os.Remove(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// TempPrefix marks in-flight files written by WriteFileAtomic. Directory
// listings skip them.
const TempPrefix = ".tmp-"

// WriteFileAtomic writes data to a temporary file next to path and renames
// it into place, so readers see either nothing or the complete file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, TempPrefix+"*")
	if err != nil {
		return fmt.Errorf("create temp in %s: %w", dir, err)
	}
	tmpName := tmp.Name()

	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Chmod(perm); err != nil {
		cleanup()
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename to %s: %w", path, err)
	}
	return nil
}

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]`)

// SanitizeName keeps only [a-zA-Z0-9_.-] of the base name of name, so the
// result is safe to embed in a storage key. Leading dots are dropped.
func SanitizeName(name string) string {
	s := unsafeNameChars.ReplaceAllString(filepath.Base(name), "")
	for len(s) > 0 && s[0] == '.' {
		s = s[1:]
	}
	if s == "" {
		return "document"
	}
	return s
}
