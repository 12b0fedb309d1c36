package zipper

import (
	"archive/zip"
	"fmt"
	"io"
	"os"

	"github.com/nguyengg/zipline/destination"
	"github.com/nguyengg/zipline/plan"
	"github.com/nguyengg/zipline/zipopts"
)

// ZipSynchronous writes p's items directly into out's writer in plan order, with no spooling and
// no concurrency. It exists primarily as the reference implementation that ZipParallel's output
// must match byte-for-byte, and as a fallback for small plans where parallelism isn't worth the
// overhead.
//
// progress is called as each file item is read and written; pass NoOpProgressReporter to disable
// reporting. Directory items are not reported, since there is nothing to read.
func ZipSynchronous(p plan.Plan, resolver zipopts.Resolver, compression zipopts.Compression, mtime zipopts.MTimePolicy, out *destination.Handle, progress ProgressReporter) error {
	if progress == nil {
		progress = NoOpProgressReporter
	}

	for _, item := range p.Items {
		item := item
		if err := out.WithLock(func(w *zip.Writer) error {
			return writeOne(w, item, resolver, compression, mtime, progress)
		}); err != nil {
			return err
		}
	}
	return nil
}

func writeOne(w *zip.Writer, item plan.Item, resolver zipopts.Resolver, compression zipopts.Compression, mtime zipopts.MTimePolicy, progress ProgressReporter) error {
	if item.Kind == plan.Directory {
		hdr := &zip.FileHeader{Name: item.Name.String() + "/"}
		zipopts.ApplyStatic(hdr, compression, mtime)
		if _, err := w.CreateHeader(hdr); err != nil {
			return fmt.Errorf("add directory %q error: %w", item.Name.String(), err)
		}
		return nil
	}

	f, err := os.Open(item.Source.Source)
	if err != nil {
		return fmt.Errorf("open %q error: %w", item.Source.Source, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %q error: %w", item.Source.Source, err)
	}

	hdr := &zip.FileHeader{Name: item.Source.Name.String()}
	if err := resolver.Apply(hdr, info); err != nil {
		return err
	}

	fw, err := w.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("create entry %q error: %w", hdr.Name, err)
	}

	pw := progress.CreateWriter(item.Source.Source, hdr.Name)
	defer pw.Close()
	if _, err := io.Copy(io.MultiWriter(fw, pw), f); err != nil {
		return fmt.Errorf("write entry %q error: %w", hdr.Name, err)
	}
	return nil
}
