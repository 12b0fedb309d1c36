package crawl

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// relToCwd returns path relative to the working directory, since Crawl rejects a result whose
// unresolved paths are absolute.
func relToCwd(t *testing.T, path string) string {
	t.Helper()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	rel, err := filepath.Rel(cwd, path)
	require.NoError(t, err)
	return rel
}

func unresolvedPaths(t *testing.T, r Result) []string {
	t.Helper()
	r.Sort()
	out := make([]string, len(r.RealFilePaths))
	for i, rp := range r.RealFilePaths {
		out[i] = rp.UnresolvedPath
	}
	return out
}

func TestCrawl_IgnorePatterns(t *testing.T) {
	root := relToCwd(t, t.TempDir())
	writeFile(t, filepath.Join(root, "x", "keep.txt"), "keep")
	writeFile(t, filepath.Join(root, "x", "drop.log"), "drop")

	ignores, err := NewIgnores([]string{`\.log$`})
	require.NoError(t, err)

	result, err := Crawl(context.Background(), []string{filepath.Join(root, "x")}, ignores)
	require.NoError(t, err)

	result.Sort()
	require.Len(t, result.RealFilePaths, 1)
	assert.Contains(t, result.RealFilePaths[0].UnresolvedPath, "keep.txt")
}

func TestCrawl_SymlinkResolvedRelativeToParent(t *testing.T) {
	root := relToCwd(t, t.TempDir())
	writeFile(t, filepath.Join(root, "real", "a.txt"), "a")
	require.NoError(t, os.Symlink("real", filepath.Join(root, "link")))

	result, err := Crawl(context.Background(), []string{filepath.Join(root, "link")}, Ignores{})
	require.NoError(t, err)

	require.Len(t, result.RealFilePaths, 1)
	rp := result.RealFilePaths[0]
	assert.Contains(t, rp.UnresolvedPath, "link")
	assert.Contains(t, rp.ResolvedPath, "real")
}

func TestCrawl_DirectoryRecursion(t *testing.T) {
	root := relToCwd(t, t.TempDir())
	writeFile(t, filepath.Join(root, "a", "b", "c.txt"), "c")
	writeFile(t, filepath.Join(root, "d.txt"), "d")

	result, err := Crawl(context.Background(), []string{root}, Ignores{})
	require.NoError(t, err)
	assert.Len(t, result.RealFilePaths, 2)
}
