package mergearchive

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/nguyengg/zipline/destination"
	"github.com/nguyengg/zipline/internal/blockingpool"
	"github.com/nguyengg/zipline/zipopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSourceArchive(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	for name, content := range entries {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
}

func TestParseArgs_GroupsByPrefixToken(t *testing.T) {
	groups, err := ParseArgs([]string{"a.zip", "+lib/", "b.zip", "c.zip", "+/", "d.zip"})
	require.NoError(t, err)
	require.Len(t, groups, 3)

	assert.Nil(t, groups[0].Prefix)
	assert.Equal(t, []string{"a.zip"}, groups[0].Sources)

	require.NotNil(t, groups[1].Prefix)
	assert.Equal(t, "lib", groups[1].Prefix.String())
	assert.Equal(t, []string{"b.zip", "c.zip"}, groups[1].Sources)

	assert.Nil(t, groups[2].Prefix)
	assert.Equal(t, []string{"d.zip"}, groups[2].Sources)
}

func TestMerge_SplicesEntriesAtRoot(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.zip")
	writeSourceArchive(t, src, map[string]string{"x.txt": "hello"})

	pool := blockingpool.New(2, 2)
	defer pool.Close()

	out := filepath.Join(dir, "out.zip")
	h, err := destination.Open(out, destination.AlwaysTruncate, 0644, pool)
	require.NoError(t, err)

	groups := []Group{{Prefix: nil, Sources: []string{src}}}
	require.NoError(t, Merge(groups, zipopts.MTimePolicy{Strategy: zipopts.Reproducible}, h, pool))
	require.NoError(t, h.Close())

	r, err := zip.OpenReader(out)
	require.NoError(t, err)
	defer r.Close()

	require.Len(t, r.File, 1)
	rc, err := r.File[0].Open()
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	rc.Close()

	assert.Equal(t, "x.txt", r.File[0].Name)
	assert.Equal(t, "hello", string(data))
}

func TestMerge_SynthesizesPrefixDirectory(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.zip")
	writeSourceArchive(t, src, map[string]string{"x.txt": "hello"})

	pool := blockingpool.New(2, 2)
	defer pool.Close()

	out := filepath.Join(dir, "out.zip")
	h, err := destination.Open(out, destination.AlwaysTruncate, 0644, pool)
	require.NoError(t, err)

	groups, err := ParseArgs([]string{"+lib/", src})
	require.NoError(t, err)
	require.NoError(t, Merge(groups, zipopts.MTimePolicy{Strategy: zipopts.Reproducible}, h, pool))
	require.NoError(t, h.Close())

	r, err := zip.OpenReader(out)
	require.NoError(t, err)
	defer r.Close()

	names := make([]string, len(r.File))
	for i, f := range r.File {
		names[i] = f.Name
	}
	assert.Contains(t, names, "lib/")
}
