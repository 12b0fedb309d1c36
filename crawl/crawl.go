// Package crawl implements the concurrent filesystem walk that produces a deterministic list of
// resolved file paths, applying regex-based ignore patterns and following symlinks relative to
// their parent directory.
package crawl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

// FormatError is returned when an unresolved path survives traversal as an absolute path, which
// should be impossible for well-formed inputs.
type FormatError struct {
	Path string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("crawl input format error: path was absolute: %s", e.Path)
}

// Crawl traverses every root in pathsToCrawl, concurrently classifying siblings, and returns the
// merged, CWD-normalized Result.
func Crawl(ctx context.Context, pathsToCrawl []string, ignores Ignores) (Result, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return Result{}, fmt.Errorf("get working directory error: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	results := make([]Result, len(pathsToCrawl))

	for i, root := range pathsToCrawl {
		i, root := i, root
		g.Go(func() error {
			r, err := crawlSingle(gctx, fromPath(root), ignores)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	result := mergeResults(results)
	result.cleanUpForExport(cwd)

	for _, rp := range result.RealFilePaths {
		if filepath.IsAbs(rp.UnresolvedPath) {
			return Result{}, &FormatError{Path: rp.UnresolvedPath}
		}
	}

	return result, nil
}

// crawlSingle classifies path and recurses into directories/symlinks, honoring ignores.
func crawlSingle(ctx context.Context, path ResolvedPath, ignores Ignores) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	default:
	}

	if ignores.ShouldIgnore(path.UnresolvedPath) {
		return Result{}, nil
	}

	info, err := os.Lstat(path.ResolvedPath)
	if err != nil {
		return Result{}, fmt.Errorf("lstat %q error: %w", path.ResolvedPath, err)
	}

	switch {
	case info.Mode()&os.ModeSymlink != 0:
		return crawlSymlink(ctx, path, ignores)
	case info.IsDir():
		return crawlDirectory(ctx, path, ignores)
	default:
		return Result{RealFilePaths: []ResolvedPath{path}}, nil
	}
}

// crawlSymlink resolves a symlink relative to its parent directory, then reclassifies the target,
// keeping UnresolvedPath pointed at the link itself.
func crawlSymlink(ctx context.Context, path ResolvedPath, ignores Ignores) (Result, error) {
	target, err := os.Readlink(path.ResolvedPath)
	if err != nil {
		return Result{}, fmt.Errorf("readlink %q error: %w", path.ResolvedPath, err)
	}

	resolved := target
	if !filepath.IsAbs(target) {
		resolved = filepath.Join(filepath.Dir(path.ResolvedPath), target)
	}
	newPath := ResolvedPath{
		UnresolvedPath: path.UnresolvedPath,
		ResolvedPath:   resolved,
	}

	return crawlSingle(ctx, newPath, ignores)
}

// crawlDirectory enumerates children concurrently via errgroup, mirroring the original's
// try_join_all fan-out over sibling directory entries.
func crawlDirectory(ctx context.Context, path ResolvedPath, ignores Ignores) (Result, error) {
	entries, err := os.ReadDir(path.ResolvedPath)
	if err != nil {
		return Result{}, fmt.Errorf("read dir %q error: %w", path.ResolvedPath, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	results := make([]Result, len(entries))

	for i, entry := range entries {
		i, entry := i, entry
		g.Go(func() error {
			child := path.join(entry.Name())
			r, err := crawlSingle(gctx, child, ignores)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	return mergeResults(results), nil
}
