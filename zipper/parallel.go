package zipper

import (
	"archive/zip"

	"github.com/hashicorp/go-multierror"
	"github.com/nguyengg/zipline/destination"
	"github.com/nguyengg/zipline/internal/blockingpool"
	"github.com/nguyengg/zipline/plan"
	"github.com/nguyengg/zipline/zipopts"
)

// DefaultChunkSize is the default number of Plan items grouped into one Intermediate Zipper
// invocation.
const DefaultChunkSize = 2000

// DefaultInFlightChunks bounds how many chunks may have an Intermediate Zipper in flight (built but
// not yet spliced into the Output Handle) at once.
const DefaultInFlightChunks = 12

// chunkResult carries one chunk's finished intermediate (or the error that aborts it) back to the
// strictly-ordered draining loop.
type chunkResult struct {
	intermediate *Intermediate
	err          error
}

// ZipParallel builds p in chunks of chunkSize, racing their Intermediate Zippers ahead of the
// splice step through a bounded channel of inFlight one-shots, but always draining and splicing
// results in dispatch (== plan) order — never completion order. This produces bytes identical to
// ZipSynchronous.
func ZipParallel(p plan.Plan, resolver zipopts.Resolver, compression zipopts.Compression, mtime zipopts.MTimePolicy, out *destination.Handle, pool *blockingpool.Pool, spoolDir string, chunkSize, inFlight int, progress ProgressReporter) error {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if inFlight <= 0 {
		inFlight = DefaultInFlightChunks
	}
	if progress == nil {
		progress = NoOpProgressReporter
	}

	chunks := chunkItems(p.Items, chunkSize)
	results := make(chan chan chunkResult, inFlight)

	go func() {
		defer close(results)
		for _, chunk := range chunks {
			ch := make(chan chunkResult, 1)
			results <- ch

			chunk := chunk
			go func() {
				im, err := ZipIntermediate(chunk, resolver, compression, mtime, pool, spoolDir, progress)
				ch <- chunkResult{intermediate: im, err: err}
			}()
		}
	}()

	var errs *multierror.Error
	for ch := range results {
		res := <-ch
		if res.err != nil {
			errs = multierror.Append(errs, res.err)
			continue
		}
		if err := spliceIntermediate(out, res.intermediate); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	return errs.ErrorOrNil()
}

// spliceIntermediate splices im's archive into out under the Output Handle's lock, then releases
// im's backing spool.
func spliceIntermediate(out *destination.Handle, im *Intermediate) error {
	defer im.Close()

	return out.WithLock(func(w *zip.Writer) error {
		return MergeArchive(w, im.Reader())
	})
}

// chunkItems splits items into consecutive slices of at most size length.
func chunkItems(items []plan.Item, size int) [][]plan.Item {
	if len(items) == 0 {
		return nil
	}

	chunks := make([][]plan.Item, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}
