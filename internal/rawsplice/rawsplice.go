// Package rawsplice implements the one primitive that lets this module avoid recompressing
// content when merging or appending archives: copying a zip.File's raw (still-compressed) bytes
// straight into a destination zip.Writer.
//
// This is grounded directly on archive/zip's own CreateRaw/OpenRaw pair, added in Go 1.17
// specifically to support splicing entries between archives without re-encoding them — the literal
// standard-library equivalent of a merge_archive primitive.
package rawsplice

import (
	"archive/zip"
	"fmt"
	"io"
)

// Splice appends every entry of source to dest by copying its raw compressed bytes verbatim,
// reusing the existing compression method, CRC, and sizes. The destination's central directory
// offsets are recomputed by dest itself when it is later closed.
func Splice(dest *zip.Writer, source *zip.Reader) error {
	for _, f := range source.File {
		if err := SpliceOne(dest, f); err != nil {
			return err
		}
	}
	return nil
}

// SpliceOne copies a single entry's raw bytes into dest.
func SpliceOne(dest *zip.Writer, f *zip.File) error {
	hdr := f.FileHeader

	rawWriter, err := dest.CreateRaw(&hdr)
	if err != nil {
		return fmt.Errorf("create raw entry %q error: %w", hdr.Name, err)
	}

	rawReader, err := f.OpenRaw()
	if err != nil {
		return fmt.Errorf("open raw entry %q error: %w", hdr.Name, err)
	}

	if _, err := io.Copy(rawWriter, rawReader); err != nil {
		return fmt.Errorf("copy raw entry %q error: %w", hdr.Name, err)
	}

	return nil
}
