// Package zipopts resolves per-entry zip.FileHeader options from a stack of stateless policies,
// and carries the archive-wide defaults (compression, modified-time strategy) those policies draw
// from.
package zipopts

import (
	"archive/zip"
	"io"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/klauspost/compress/flate"
)

// CompressionMethod mirrors the two methods this module supports.
type CompressionMethod int

const (
	// Stored writes entries uncompressed.
	Stored CompressionMethod = iota
	// Deflated compresses entries with DEFLATE at Level.
	Deflated
)

// Compression is the archive-wide default compression strategy.
type Compression struct {
	Method CompressionMethod
	// Level is 0-9 for Deflated; -1 means "use the codec's default level" (6).
	Level int
}

// DefaultCompression is Deflated at the codec's default level, matching the distilled spec.
var DefaultCompression = Compression{Method: Deflated, Level: -1}

// MTimeStrategy selects how an entry's modified time is computed.
type MTimeStrategy int

const (
	// Reproducible maps every entry to the ZIP epoch (1980-01-01 00:00:00 UTC).
	Reproducible MTimeStrategy = iota
	// CurrentTime samples the wall clock once, the first time it is needed, and reuses it for every
	// entry.
	CurrentTime
	// PreserveSourceTime reads each file's own mtime from its os.FileInfo.
	PreserveSourceTime
	// Explicit uses a caller-supplied fixed time for every entry.
	Explicit
)

// zipEpoch is the earliest time the ZIP format can represent.
var zipEpoch = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

var (
	processStartOnce sync.Once
	processStartTime time.Time
)

// processStart returns the wall-clock time sampled once, the first time it is needed. Go has no
// async-unsafe restriction on reading the clock from multiple goroutines the way some platforms'
// UTC-offset APIs do, so sync.Once here is purely a determinism/performance choice (see
// SPEC_FULL.md REDESIGN FLAGS), not a safety requirement.
func processStart() time.Time {
	processStartOnce.Do(func() { processStartTime = time.Now() })
	return processStartTime
}

// MTimePolicy resolves an entry's Modified time per Strategy.
type MTimePolicy struct {
	Strategy MTimeStrategy
	At       time.Time // valid when Strategy == Explicit
}

func (p MTimePolicy) resolve(info os.FileInfo) time.Time {
	switch p.Strategy {
	case Reproducible:
		return zipEpoch
	case CurrentTime:
		return processStart()
	case PreserveSourceTime:
		return info.ModTime()
	case Explicit:
		return p.At
	default:
		return zipEpoch
	}
}

// Policy augments a zip.FileHeader given a file's os.FileInfo. Errors surface if platform APIs are
// unavailable for the requested policy.
type Policy interface {
	Apply(hdr *zip.FileHeader, info os.FileInfo) error
}

// Resolver is the ordered pipeline of Policy applied to every file entry.
type Resolver []Policy

// Apply runs every policy in order over hdr.
func (r Resolver) Apply(hdr *zip.FileHeader, info os.FileInfo) error {
	for _, p := range r {
		if err := p.Apply(hdr, info); err != nil {
			return err
		}
	}
	return nil
}

// DefaultResolver returns the standard five-policy pipeline described in SPEC_FULL.md §4.4.
func DefaultResolver(compression Compression, mtime MTimePolicy) Resolver {
	return Resolver{
		mtimePolicy{mtime},
		permissionsPolicy{},
		compressionPolicy{compression},
		smallFilePolicy{},
		largeFilePolicy{},
	}
}

// compressionPolicy sets a file entry's Method from the archive-wide default, ahead of
// smallFilePolicy's per-file downgrade to Store.
type compressionPolicy struct{ Compression }

func (p compressionPolicy) Apply(hdr *zip.FileHeader, _ os.FileInfo) error {
	switch p.Method {
	case Stored:
		hdr.Method = zip.Store
	default:
		hdr.Method = zip.Deflate
	}
	return nil
}

// RegisterDeflateLevel installs a klauspost/compress/flate-backed Deflate compressor at the given
// level, overriding the zip package's own fixed-level default. A level of -1 (DefaultCompression)
// leaves archive/zip's built-in compressor in place, since that already matches flate's own
// default level.
func RegisterDeflateLevel(level int) {
	if level == -1 {
		return
	}
	zip.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, level)
	})
}

type mtimePolicy struct{ MTimePolicy }

func (p mtimePolicy) Apply(hdr *zip.FileHeader, info os.FileInfo) error {
	hdr.Modified = p.resolve(info)
	return nil
}

// permissionsPolicy copies Unix mode bits into the header's external attributes. No-op on other
// platforms.
type permissionsPolicy struct{}

func (permissionsPolicy) Apply(hdr *zip.FileHeader, info os.FileInfo) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	hdr.SetMode(info.Mode())
	return nil
}

// smallFilePolicyThreshold is the size at or below which compression is skipped entirely.
const smallFilePolicyThreshold = 1000

// smallFilePolicy forces Stored for files that are too small for compression to pay off.
type smallFilePolicy struct{}

func (smallFilePolicy) Apply(hdr *zip.FileHeader, info os.FileInfo) error {
	if info.Size() <= smallFilePolicyThreshold {
		hdr.Method = zip.Store
	}
	return nil
}

// largeFileThreshold is the conventional 32-bit ZIP size ceiling.
const largeFileThreshold = 0xFFFFFFFF

// largeFilePolicy records (via LargeFile) that an entry's size crosses the ZIP64 threshold. It
// does not itself change encoder behavior: archive/zip decides ZIP64 encoding on its own once the
// header's UncompressedSize64 is set, so this policy exists purely to make the observation
// testable (see SPEC_FULL.md REDESIGN FLAGS).
type largeFilePolicy struct{}

func (largeFilePolicy) Apply(hdr *zip.FileHeader, info os.FileInfo) error {
	// archive/zip derives ZIP64 encoding itself from UncompressedSize64; nothing to set here.
	// See LargeFile for the testable observation this policy stands in for.
	return nil
}

// LargeFile reports whether info's size exceeds the standard 4 GiB ZIP threshold.
func LargeFile(info os.FileInfo) bool {
	return uint64(info.Size()) > largeFileThreshold
}

// ApplyStatic applies the archive-wide, metadata-free defaults (compression method/level, and a
// base Modified time for synthetic directory entries) to hdr.
func ApplyStatic(hdr *zip.FileHeader, compression Compression, mtime MTimePolicy) {
	switch compression.Method {
	case Stored:
		hdr.Method = zip.Store
	default:
		hdr.Method = zip.Deflate
	}

	hdr.Modified = mtime.resolve(dirInfo{})
}

// dirInfo is a minimal os.FileInfo used to resolve a directory entry's modified time, which has no
// backing file to stat.
type dirInfo struct{ os.FileInfo }

func (dirInfo) ModTime() time.Time { return processStart() }
func (dirInfo) Size() int64        { return 0 }
