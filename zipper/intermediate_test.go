package zipper

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/nguyengg/zipline/entryname"
	"github.com/nguyengg/zipline/internal/blockingpool"
	"github.com/nguyengg/zipline/plan"
	"github.com/nguyengg/zipline/zipopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readEntries(t *testing.T, r *zip.Reader) map[string]string {
	t.Helper()
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

func TestZipIntermediate_FilesAndDirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0644))

	chunk := []plan.Item{
		{Kind: plan.Directory, Name: entryname.MustValidate("sub")},
		{
			Kind:   plan.File,
			Source: entryname.FileSource{Name: entryname.MustValidate("sub/a.txt"), Source: filepath.Join(dir, "a.txt")},
			Name:   entryname.MustValidate("sub/a.txt"),
		},
	}

	pool := blockingpool.New(2, 2)
	defer pool.Close()

	resolver := zipopts.DefaultResolver(zipopts.DefaultCompression, zipopts.MTimePolicy{Strategy: zipopts.Reproducible})

	im, err := ZipIntermediate(chunk, resolver, zipopts.DefaultCompression, zipopts.MTimePolicy{Strategy: zipopts.Reproducible}, pool, dir, nil)
	require.NoError(t, err)
	defer im.Close()

	entries := readEntries(t, im.Reader())
	assert.Equal(t, "hello", entries["sub/a.txt"])

	foundDir := false
	for _, f := range im.Reader().File {
		if f.Name == "sub/" {
			foundDir = true
		}
	}
	assert.True(t, foundDir)
}
