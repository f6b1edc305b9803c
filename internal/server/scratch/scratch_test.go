package scratch

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDir(t *testing.T) *Dir {
	t.Helper()
	d, err := New(filepath.Join(t.TempDir(), "scratch"))
	require.NoError(t, err)
	return d
}

func TestNew_CreatesPrivateDir(t *testing.T) {
	d := newDir(t)

	info, err := os.Stat(d.Path())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())
}

func TestCreate_UniqueNames(t *testing.T) {
	d := newDir(t)

	a, err := d.Create("lease", ".pdf", []byte("plain"))
	require.NoError(t, err)
	b, err := d.Create("lease", ".pdf", []byte("plain"))
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Equal(t, d.Path(), filepath.Dir(a))
	assert.True(t, strings.HasSuffix(a, "_lease.pdf"), a)

	got, err := os.ReadFile(a)
	require.NoError(t, err)
	assert.Equal(t, "plain", string(got))

	info, err := os.Stat(a)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestCreate_SanitisesBase(t *testing.T) {
	d := newDir(t)

	p, err := d.Create("../../etc/passwd", ".txt", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, d.Path(), filepath.Dir(p))
	assert.True(t, strings.HasSuffix(p, "_passwd.txt"), p)
}

func TestRelease_Idempotent(t *testing.T) {
	d := newDir(t)

	p, err := d.Create("doc", ".txt", []byte("x"))
	require.NoError(t, err)

	require.NoError(t, d.Release(p))
	_, err = os.Stat(p)
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, d.Release(p), "releasing twice is fine")
}

func TestRelease_RefusesOutsidePath(t *testing.T) {
	d := newDir(t)
	outside := filepath.Join(t.TempDir(), "keep.txt")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o600))

	assert.ErrorIs(t, d.Release(outside), common.ErrorValidation)
	assert.ErrorIs(t, d.Release(filepath.Join(d.Path(), "..", "keep.txt")), common.ErrorValidation)

	_, err := os.Stat(outside)
	assert.NoError(t, err)
}

func TestReleaseName_StripsDirectories(t *testing.T) {
	d := newDir(t)

	p, err := d.Create("doc", ".txt", []byte("x"))
	require.NoError(t, err)

	require.NoError(t, d.ReleaseName("../../"+filepath.Base(p)))
	_, err = os.Stat(p)
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, d.ReleaseName("never-existed.txt"))
	assert.ErrorIs(t, d.ReleaseName(".."), common.ErrorValidation)
}

func TestOpen(t *testing.T) {
	d := newDir(t)

	p, err := d.Create("doc", ".txt", []byte("content"))
	require.NoError(t, err)

	f, err := d.Open(filepath.Base(p))
	require.NoError(t, err)
	got, err := io.ReadAll(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, "content", string(got))

	_, err = d.Open("missing.txt")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestSweep_RemovesOnlyOld(t *testing.T) {
	d := newDir(t)

	old, err := d.Create("old", ".txt", []byte("x"))
	require.NoError(t, err)
	fresh, err := d.Create("fresh", ".txt", []byte("x"))
	require.NoError(t, err)

	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	n, err := d.Sweep(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = os.Stat(old)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	assert.NoError(t, err)
}

func TestSweep_UsesClock(t *testing.T) {
	d := newDir(t)
	_, err := d.Create("a", ".txt", []byte("x"))
	require.NoError(t, err)

	d.now = func() time.Time { return time.Now().Add(24 * time.Hour) }

	n, err := d.Sweep(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
