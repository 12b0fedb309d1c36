package crawl

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/nguyengg/zipline/entryname"
)

// ResolvedPath pairs a path as encountered during traversal (symlinks not followed) with the same
// path after following symlinks to a real file. The two fields are the exact names the public JSON
// schema contracts on (see Result's json tags).
type ResolvedPath struct {
	UnresolvedPath string `json:"unresolved_path"`
	ResolvedPath   string `json:"resolved_path"`
}

func fromPath(path string) ResolvedPath {
	return ResolvedPath{UnresolvedPath: path, ResolvedPath: path}
}

func (p ResolvedPath) join(child string) ResolvedPath {
	return ResolvedPath{
		UnresolvedPath: filepath.Join(p.UnresolvedPath, child),
		ResolvedPath:   filepath.Join(p.ResolvedPath, child),
	}
}

// cleanUpForExport strips a leading "./" and makes ResolvedPath absolute relative to cwd, matching
// the normalization the crawler applies once at the end of a full crawl.
func (p *ResolvedPath) cleanUpForExport(cwd string) {
	if stripped := strings.TrimPrefix(p.ResolvedPath, "./"); stripped != p.ResolvedPath {
		p.ResolvedPath = stripped
	}
	if !filepath.IsAbs(p.ResolvedPath) {
		p.ResolvedPath = filepath.Join(cwd, p.ResolvedPath)
	}
	if stripped := strings.TrimPrefix(p.UnresolvedPath, "./"); stripped != p.UnresolvedPath {
		p.UnresolvedPath = stripped
	}
}

// Result is the ordered sequence of ResolvedPath produced by a crawl. The JSON field name
// "real_file_paths" is part of the stable interchange contract with external collaborators.
type Result struct {
	RealFilePaths []ResolvedPath `json:"real_file_paths"`
}

// Sort orders RealFilePaths by UnresolvedPath for deterministic comparison (e.g. in tests); a
// crawl's natural output order has no such guarantee since siblings are classified concurrently.
func (r *Result) Sort() {
	sort.Slice(r.RealFilePaths, func(i, j int) bool {
		return r.RealFilePaths[i].UnresolvedPath < r.RealFilePaths[j].UnresolvedPath
	})
}

func mergeResults(results []Result) Result {
	var merged Result
	for _, r := range results {
		merged.RealFilePaths = append(merged.RealFilePaths, r.RealFilePaths...)
	}
	return merged
}

func (r *Result) cleanUpForExport(cwd string) {
	for i := range r.RealFilePaths {
		r.RealFilePaths[i].cleanUpForExport(cwd)
	}
}

// FileSources converts this Result into entryname.FileSource values suitable for plan.FromFileSources,
// validating every UnresolvedPath as an entry name.
func (r Result) FileSources() ([]entryname.FileSource, error) {
	out := make([]entryname.FileSource, 0, len(r.RealFilePaths))
	for _, rp := range r.RealFilePaths {
		name, err := entryname.Validate(rp.UnresolvedPath)
		if err != nil {
			return nil, err
		}
		out = append(out, entryname.FileSource{Name: name, Source: rp.ResolvedPath})
	}
	return out, nil
}
