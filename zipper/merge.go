package zipper

import (
	"archive/zip"

	"github.com/nguyengg/zipline/internal/rawsplice"
)

// MergeArchive appends every entry of source into dest by copying raw compressed bytes verbatim,
// the core primitive behind both the Parallel Merger's intermediate-splicing step and the merge
// front-end's archive splicer. Thin wrapper over internal/rawsplice so that both this package and
// the destination package (which needs the same primitive to implement AppendOrFail) can share one
// implementation without an import cycle.
func MergeArchive(dest *zip.Writer, source *zip.Reader) error {
	return rawsplice.Splice(dest, source)
}
