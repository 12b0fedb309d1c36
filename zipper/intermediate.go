package zipper

import (
	"archive/zip"
	"fmt"
	"io"
	"os"

	"github.com/nguyengg/zipline/internal/blockingpool"
	"github.com/nguyengg/zipline/internal/spool"
	"github.com/nguyengg/zipline/plan"
	"github.com/nguyengg/zipline/zipopts"
)

// PerFileSpoolThreshold and IntermediateSpoolThreshold are the default spool spill thresholds for,
// respectively, a single file's own spooled archive and a chunk's intermediate spooled archive.
const (
	PerFileSpoolThreshold     = 3 * 1024
	IntermediateSpoolThreshold = 20 * 1024
	// InFlightPerFileSpools bounds how far file I/O may race ahead of the splice step within one
	// chunk's Intermediate Zipper.
	InFlightPerFileSpools = 20
)

// Intermediate is a finished, read-only spooled archive for one plan chunk.
type Intermediate struct {
	spool  *spool.Spool
	reader *zip.Reader
}

// Reader returns the read-only zip.Reader backing this intermediate.
func (i *Intermediate) Reader() *zip.Reader { return i.reader }

// Close releases the intermediate's backing spool.
func (i *Intermediate) Close() error { return i.spool.Close() }

// perFileResult is what flows through the bounded one-shot channel: either a finished per-file
// spooled archive ready to splice, or an error that aborts the whole chunk.
type perFileResult struct {
	sp  *spool.Spool
	hdr zip.FileHeader
	err error
}

// ZipIntermediate builds a spooled temporary archive containing chunk's entries in order, using
// resolver to finalize per-file options and pool to dispatch all blocking file I/O and compression
// work. Per SPEC_FULL.md §4.5, file opens race ahead of the splice step through a bounded channel
// of InFlightPerFileSpools one-shots, but — following the same channel-of-channels pattern
// ZipParallel uses across chunks — each item's one-shot result channel is allocated and pushed
// into the outer queue in dispatch (== plan) order *before* its worker goroutine is spawned, so
// the drain loop below always pairs chunk[i] with the result of chunk[i], regardless of which
// file happens to finish first.
func ZipIntermediate(chunk []plan.Item, resolver zipopts.Resolver, compression zipopts.Compression, mtime zipopts.MTimePolicy, pool *blockingpool.Pool, spoolDir string, progress ProgressReporter) (*Intermediate, error) {
	if progress == nil {
		progress = NoOpProgressReporter
	}

	sp := spool.New(IntermediateSpoolThreshold, spoolDir)
	w := zip.NewWriter(sp)

	results := make(chan chan perFileResult, InFlightPerFileSpools)

	go func() {
		defer close(results)
		for _, item := range chunk {
			ch := make(chan perFileResult, 1)
			results <- ch

			if item.Kind == plan.Directory {
				ch <- perFileResult{}
				continue
			}

			item := item
			go func() {
				sp, hdr, err := buildPerFileSpool(item, resolver, pool, spoolDir, progress)
				ch <- perFileResult{sp: sp, hdr: hdr, err: err}
			}()
		}
	}()

	// Directories must splice in order too, so we re-walk chunk alongside the results channel:
	// a directory item produces a zero-value placeholder above and is handled inline here rather
	// than through the per-file dispatch, since it needs no spooled archive of its own.
	i := 0
	for ch := range results {
		item := chunk[i]
		i++
		res := <-ch

		if item.Kind == plan.Directory {
			hdr := &zip.FileHeader{Name: item.Name.String() + "/"}
			zipopts.ApplyStatic(hdr, compression, mtime)
			if _, err := w.CreateHeader(hdr); err != nil {
				_ = sp.Close()
				return nil, fmt.Errorf("add directory %q error: %w", item.Name.String(), err)
			}
			continue
		}

		if res.err != nil {
			_ = sp.Close()
			return nil, res.err
		}

		if err := <-pool.Go(func() error {
			return spliceOneFileSpool(w, res.sp, res.hdr)
		}); err != nil {
			_ = sp.Close()
			return nil, err
		}
	}

	if err := w.Close(); err != nil {
		_ = sp.Close()
		return nil, fmt.Errorf("finalize intermediate archive error: %w", err)
	}

	ra, size, err := sp.ReaderAt()
	if err != nil {
		_ = sp.Close()
		return nil, err
	}

	r, err := zip.NewReader(ra, size)
	if err != nil {
		_ = sp.Close()
		return nil, fmt.Errorf("reopen intermediate archive error: %w", err)
	}

	return &Intermediate{spool: sp, reader: r}, nil
}

// buildPerFileSpool opens item's source file, resolves its options, and writes it as the sole
// entry of a small per-file spooled archive, entirely on the Pool. This decouples per-file
// compression (CPU-bound, overlappable) from the sequential splice step that follows.
func buildPerFileSpool(item plan.Item, resolver zipopts.Resolver, pool *blockingpool.Pool, spoolDir string, progress ProgressReporter) (*spool.Spool, zip.FileHeader, error) {
	var (
		sp  *spool.Spool
		hdr zip.FileHeader
	)

	err := <-pool.Go(func() error {
		f, err := os.Open(item.Source.Source)
		if err != nil {
			return fmt.Errorf("open %q error: %w", item.Source.Source, err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return fmt.Errorf("stat %q error: %w", item.Source.Source, err)
		}

		hdr = zip.FileHeader{Name: item.Source.Name.String()}
		if err := resolver.Apply(&hdr, info); err != nil {
			return err
		}

		sp = spool.New(PerFileSpoolThreshold, spoolDir)
		w := zip.NewWriter(sp)

		fw, err := w.CreateHeader(&hdr)
		if err != nil {
			return fmt.Errorf("create per-file entry %q error: %w", hdr.Name, err)
		}

		pw := progress.CreateWriter(item.Source.Source, hdr.Name)
		defer pw.Close()
		if _, err := io.Copy(io.MultiWriter(fw, pw), f); err != nil {
			return fmt.Errorf("write per-file entry %q error: %w", hdr.Name, err)
		}
		if err := w.Close(); err != nil {
			return fmt.Errorf("finalize per-file archive %q error: %w", hdr.Name, err)
		}
		return nil
	})

	return sp, hdr, err
}

// spliceOneFileSpool reopens a finished per-file spool as a read-only archive and splices its sole
// entry into the chunk's intermediate writer.
func spliceOneFileSpool(dest *zip.Writer, sp *spool.Spool, _ zip.FileHeader) error {
	defer sp.Close()

	ra, size, err := sp.ReaderAt()
	if err != nil {
		return err
	}

	r, err := zip.NewReader(ra, size)
	if err != nil {
		return fmt.Errorf("reopen per-file archive error: %w", err)
	}

	return MergeArchive(dest, r)
}
