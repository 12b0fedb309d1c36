package zipper

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/nguyengg/zipline/destination"
	"github.com/nguyengg/zipline/entryname"
	"github.com/nguyengg/zipline/internal/blockingpool"
	"github.com/nguyengg/zipline/plan"
	"github.com/nguyengg/zipline/zipopts"
	"github.com/stretchr/testify/require"
)

func buildManyFilePlan(t *testing.T, dir string, n int) plan.Plan {
	t.Helper()
	sources := make([]entryname.FileSource, n)
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("f/%04d.txt", i)
		path := filepath.Join(dir, fmt.Sprintf("%04d.txt", i))
		require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf("content-%d", i)), 0644))
		sources[i] = entryname.FileSource{Name: entryname.MustValidate(name), Source: path}
	}
	p, err := plan.FromFileSources(sources, plan.Modifications{})
	require.NoError(t, err)
	return p
}

func TestZipParallel_MatchesSynchronousOutput(t *testing.T) {
	dir := t.TempDir()
	p := buildManyFilePlan(t, dir, 40)

	mtime := zipopts.MTimePolicy{Strategy: zipopts.Reproducible}
	resolver := zipopts.DefaultResolver(zipopts.DefaultCompression, mtime)

	pool := blockingpool.New(4, 4)
	defer pool.Close()

	syncPath := filepath.Join(dir, "sync.zip")
	hs, err := destination.Open(syncPath, destination.AlwaysTruncate, 0644, pool)
	require.NoError(t, err)
	require.NoError(t, ZipSynchronous(p, resolver, zipopts.DefaultCompression, mtime, hs, nil))
	require.NoError(t, hs.Close())

	parPath := filepath.Join(dir, "parallel.zip")
	hp, err := destination.Open(parPath, destination.AlwaysTruncate, 0644, pool)
	require.NoError(t, err)
	require.NoError(t, ZipParallel(p, resolver, zipopts.DefaultCompression, mtime, hp, pool, dir, 7, 3, nil))
	require.NoError(t, hp.Close())

	syncData, err := os.ReadFile(syncPath)
	require.NoError(t, err)
	parData, err := os.ReadFile(parPath)
	require.NoError(t, err)

	require.Equal(t, sha256.Sum256(syncData), sha256.Sum256(parData))
}
