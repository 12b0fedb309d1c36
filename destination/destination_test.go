package destination

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/nguyengg/zipline/internal/blockingpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, path string) map[string]string {
	t.Helper()
	r, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer r.Close()

	out := make(map[string]string)
	for _, f := range r.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		out[f.Name] = string(data)
	}
	return out
}

func TestOpen_AlwaysTruncate(t *testing.T) {
	pool := blockingpool.New(2, 2)
	defer pool.Close()

	path := filepath.Join(t.TempDir(), "out.zip")
	h, err := Open(path, AlwaysTruncate, 0644, pool)
	require.NoError(t, err)

	require.NoError(t, h.WithLock(func(w *zip.Writer) error {
		fw, err := w.Create("a.txt")
		if err != nil {
			return err
		}
		_, err = fw.Write([]byte("a"))
		return err
	}))
	require.NoError(t, h.Close())

	assert.Equal(t, map[string]string{"a.txt": "a"}, readAll(t, path))
}

func TestOpen_AppendOrFail_PreservesExistingEntries(t *testing.T) {
	pool := blockingpool.New(2, 2)
	defer pool.Close()

	path := filepath.Join(t.TempDir(), "out.zip")

	h, err := Open(path, AlwaysTruncate, 0644, pool)
	require.NoError(t, err)
	require.NoError(t, h.WithLock(func(w *zip.Writer) error {
		fw, err := w.Create("first.txt")
		if err != nil {
			return err
		}
		_, err = fw.Write([]byte("first"))
		return err
	}))
	require.NoError(t, h.Close())

	h2, err := Open(path, AppendOrFail, 0644, pool)
	require.NoError(t, err)
	require.NoError(t, h2.WithLock(func(w *zip.Writer) error {
		fw, err := w.Create("second.txt")
		if err != nil {
			return err
		}
		_, err = fw.Write([]byte("second"))
		return err
	}))
	require.NoError(t, h2.Close())

	assert.Equal(t, map[string]string{"first.txt": "first", "second.txt": "second"}, readAll(t, path))
}

func TestOpen_AppendOrFail_RequiresExistingFile(t *testing.T) {
	pool := blockingpool.New(2, 2)
	defer pool.Close()

	path := filepath.Join(t.TempDir(), "missing.zip")
	_, err := Open(path, AppendOrFail, 0644, pool)
	assert.Error(t, err)
}

func TestOpen_OptimisticallyAppend_CreatesWhenAbsent(t *testing.T) {
	pool := blockingpool.New(2, 2)
	defer pool.Close()

	path := filepath.Join(t.TempDir(), "out.zip")
	h, err := Open(path, OptimisticallyAppend, 0644, pool)
	require.NoError(t, err)
	require.NoError(t, h.Close())

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestOpen_AppendToNonZip_PreservesPrefixBytes(t *testing.T) {
	pool := blockingpool.New(2, 2)
	defer pool.Close()

	path := filepath.Join(t.TempDir(), "self.bin")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0755))

	h, err := Open(path, AppendToNonZip, 0755, pool)
	require.NoError(t, err)
	require.NoError(t, h.WithLock(func(w *zip.Writer) error {
		fw, err := w.Create("payload.txt")
		if err != nil {
			return err
		}
		_, err = fw.Write([]byte("payload"))
		return err
	}))
	require.NoError(t, h.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "#!/bin/sh\n")
}
