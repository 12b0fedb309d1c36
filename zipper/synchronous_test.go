package zipper

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/nguyengg/zipline/destination"
	"github.com/nguyengg/zipline/entryname"
	"github.com/nguyengg/zipline/internal/blockingpool"
	"github.com/nguyengg/zipline/plan"
	"github.com/nguyengg/zipline/zipopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestPlan(t *testing.T, dir string) plan.Plan {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("aaaa"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("bbbb"), 0644))

	sources := []entryname.FileSource{
		{Name: entryname.MustValidate("x/a.txt"), Source: filepath.Join(dir, "a.txt")},
		{Name: entryname.MustValidate("x/b.txt"), Source: filepath.Join(dir, "b.txt")},
	}
	p, err := plan.FromFileSources(sources, plan.Modifications{})
	require.NoError(t, err)
	return p
}

func TestZipSynchronous_WritesPlanInOrder(t *testing.T) {
	dir := t.TempDir()
	p := buildTestPlan(t, dir)

	pool := blockingpool.New(2, 2)
	defer pool.Close()

	out := filepath.Join(dir, "out.zip")
	h, err := destination.Open(out, destination.AlwaysTruncate, 0644, pool)
	require.NoError(t, err)

	resolver := zipopts.DefaultResolver(zipopts.DefaultCompression, zipopts.MTimePolicy{Strategy: zipopts.Reproducible})
	require.NoError(t, ZipSynchronous(p, resolver, zipopts.DefaultCompression, zipopts.MTimePolicy{Strategy: zipopts.Reproducible}, h, nil))
	require.NoError(t, h.Close())

	r, err := zip.OpenReader(out)
	require.NoError(t, err)
	defer r.Close()

	names := make([]string, len(r.File))
	for i, f := range r.File {
		names[i] = f.Name
	}
	assert.Equal(t, []string{"x/", "x/a.txt", "x/b.txt"}, names)
}
