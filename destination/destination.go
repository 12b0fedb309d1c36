// Package destination implements the Output Handle (a shared, lockable ZIP writer) and the four
// Destination Opener policies that produce one from a path on disk.
package destination

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/nguyengg/zipline/internal/blockingpool"
	"github.com/nguyengg/zipline/internal/rawsplice"
)

// Handle is the single globally shared mutable resource: a ZIP writer guarded by a mutex. Every
// splice or directory-add acquires the lock for the duration of one call. Go's garbage collector
// owns the handle's lifetime, so — unlike the Arc<Mutex<_>> this mirrors — there is no explicit
// refcount to reclaim: callers simply stop using the pointer once their drain loop has returned,
// which happens only after the last splice has completed.
type Handle struct {
	mu     sync.Mutex
	writer *zip.Writer
	closer io.Closer
}

// WithLock runs fn with the handle's writer locked for its duration. No blocking I/O beyond fn's
// own work should occur while the lock is held.
func (h *Handle) WithLock(fn func(w *zip.Writer) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return fn(h.writer)
}

// Close finalizes the central directory and closes the underlying file.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.writer.Close(); err != nil {
		return fmt.Errorf("close zip writer error: %w", err)
	}
	if h.closer != nil {
		return h.closer.Close()
	}
	return nil
}

// Policy selects one of the four output-opening behaviors.
type Policy int

const (
	// AlwaysTruncate creates or truncates path and hands back a fresh writer.
	AlwaysTruncate Policy = iota
	// AppendOrFail requires path to already exist and appends after its existing entries.
	AppendOrFail
	// OptimisticallyAppend creates path if absent, otherwise behaves like AppendOrFail.
	OptimisticallyAppend
	// AppendToNonZip seeks to the end of an existing (non-zip) file and starts a fresh archive there.
	AppendToNonZip
)

// ErrOpen wraps any failure to open path under the selected Policy.
type ErrOpen struct {
	Policy Policy
	Path   string
	Err    error
}

func (e *ErrOpen) Error() string {
	return fmt.Sprintf("open destination %q under policy %d error: %v", e.Path, e.Policy, e.Err)
}

func (e *ErrOpen) Unwrap() error { return e.Err }

// Open constructs a Handle for path under policy, perm, on the given Pool. Every policy performs
// blocking I/O, so the whole open-and-wrap sequence runs as a single Pool task.
func Open(path string, policy Policy, perm os.FileMode, pool *blockingpool.Pool) (*Handle, error) {
	var h *Handle
	err := <-pool.Go(func() error {
		var (
			w   *zip.Writer
			f   *os.File
			err error
		)

		switch policy {
		case AlwaysTruncate:
			f, err = openTruncate(path, perm)
			if err == nil {
				w = zip.NewWriter(f)
			}
		case AppendOrFail:
			w, f, err = openAppend(path)
		case OptimisticallyAppend:
			w, f, err = openOptimisticAppend(path, perm)
		case AppendToNonZip:
			f, err = openAppendToNonZip(path, perm)
			if err == nil {
				w = zip.NewWriter(f)
			}
		default:
			err = errors.New("unknown policy")
		}
		if err != nil {
			return err
		}

		h = &Handle{writer: w, closer: f}
		return nil
	})
	if err != nil {
		return nil, &ErrOpen{Policy: policy, Path: path, Err: err}
	}

	return h, nil
}

func openTruncate(path string, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
}

// openAppend requires path to exist. Go's archive/zip has no native "append" writer the way the
// teacher ecosystem's zip codec does, so this reads the existing central directory, truncates the
// file to just past the last entry's raw data (discarding the stale central directory that will be
// rewritten wholesale on Close), and re-splices every existing entry's raw bytes into a fresh
// zip.Writer using the same no-recompression primitive the merge stage uses.
func openAppend(path string) (*zip.Writer, *os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, nil, err
	}

	w, err := reopenExistingEntries(f)
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	return w, f, nil
}

func openOptimisticAppend(path string, perm os.FileMode) (*zip.Writer, *os.File, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err == nil {
		return zip.NewWriter(f), f, nil
	}
	if !errors.Is(err, os.ErrExist) {
		return nil, nil, err
	}

	return openAppend(path)
}

// openAppendToNonZip treats the existing file as an opaque prefix payload (e.g. a shebang line):
// seek to the end exactly once, then start a brand new archive there. O_APPEND is deliberately
// avoided — it would reposition the seek cursor on every write, which would corrupt zip.Writer's
// own internal offset bookkeeping since that tracking is independent of the OS file position.
func openAppendToNonZip(path string, perm os.FileMode) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, perm)
	if err != nil {
		return nil, err
	}

	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("seek to end error: %w", err)
	}
	return f, nil
}

// reopenExistingEntries reads f's existing central directory, truncates f to the end of its last
// entry's raw data, and returns a fresh zip.Writer positioned there with every existing entry
// re-spliced in (verbatim, via rawsplice) so that it reappears in the rewritten central directory.
func reopenExistingEntries(f *os.File) (*zip.Writer, error) {
	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat existing archive error: %w", err)
	}

	r, err := zip.NewReader(f, fi.Size())
	if err != nil {
		return nil, fmt.Errorf("read existing central directory error: %w", err)
	}

	var end int64
	for _, entry := range r.File {
		off, err := entry.DataOffset()
		if err != nil {
			return nil, fmt.Errorf("locate data offset for %q error: %w", entry.Name, err)
		}
		if e := off + int64(entry.CompressedSize64); e > end {
			end = e
		}
	}

	if err := f.Truncate(end); err != nil {
		return nil, fmt.Errorf("truncate stale central directory error: %w", err)
	}
	if _, err := f.Seek(end, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek past existing entries error: %w", err)
	}

	w := zip.NewWriter(f)
	if err := rawsplice.Splice(w, r); err != nil {
		return nil, fmt.Errorf("re-splice existing entries error: %w", err)
	}

	return w, nil
}
