package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/nguyengg/zipline/crawl"
	"github.com/nguyengg/zipline/destination"
	"github.com/nguyengg/zipline/internal"
	"github.com/nguyengg/zipline/internal/blockingpool"
	"github.com/nguyengg/zipline/internal/config"
	"github.com/nguyengg/zipline/plan"
	"github.com/nguyengg/zipline/zipopts"
	"github.com/nguyengg/zipline/zipper"
)

// outputOptions selects the destination archive path and the Destination Opener policy used to
// open it.
type outputOptions struct {
	Output       string `short:"o" long:"output" description:"path to the output ZIP archive" default:"output.zip"`
	OutputPolicy string `long:"output-policy" choice:"truncate" choice:"append" choice:"optimistic-append" choice:"append-non-zip" default:"truncate" description:"how to open an existing output file"`
}

func (o outputOptions) policy() (destination.Policy, error) {
	switch o.OutputPolicy {
	case "", "truncate":
		return destination.AlwaysTruncate, nil
	case "append":
		return destination.AppendOrFail, nil
	case "optimistic-append":
		return destination.OptimisticallyAppend, nil
	case "append-non-zip":
		return destination.AppendToNonZip, nil
	default:
		return 0, fmt.Errorf("unknown output policy %q", o.OutputPolicy)
	}
}

// open dispatches to the local Destination Opener policies, or to OpenS3 when Output names an
// "s3://bucket/key" location, in which case logger (if non-nil) drives upload-progress logging.
func (o outputOptions) open(ctx context.Context, pool *blockingpool.Pool, profile string, logger *log.Logger) (*destination.Handle, error) {
	if strings.HasPrefix(o.Output, "s3://") {
		loader := &config.Loader{Profile: profile}
		loc, err := destination.ParseS3URI(o.Output, loader)
		if err != nil {
			return nil, err
		}
		return destination.OpenS3(ctx, loc, loader, logger, pool)
	}

	policy, err := o.policy()
	if err != nil {
		return nil, err
	}
	return destination.Open(o.Output, policy, 0666, pool)
}

// logger returns the Logger (A4) writing to stderr, or nil when --no-progress asks progress
// logging to stay quiet. --verbose does not change it.
func (v verboseOptions) logger() *log.Logger {
	if v.NoProgress {
		return nil
	}
	return log.New(os.Stderr, "", 0)
}

// compressionOptions selects the archive-wide compression defaults.
type compressionOptions struct {
	Compression string `long:"compression" choice:"stored" choice:"deflated" default:"deflated" description:"archive-wide default compression method"`
	Level       int    `long:"level" default:"-1" description:"deflate level 0-9, -1 for the codec default"`
}

func (o compressionOptions) resolve() (zipopts.Compression, error) {
	switch o.Compression {
	case "", "deflated":
		return zipopts.Compression{Method: zipopts.Deflated, Level: o.Level}, nil
	case "stored":
		return zipopts.Compression{Method: zipopts.Stored}, nil
	default:
		return zipopts.Compression{}, fmt.Errorf("unknown compression method %q", o.Compression)
	}
}

// mtimeOptions selects the modified-time policy applied to every entry.
type mtimeOptions struct {
	MTime   string `long:"mtime" choice:"reproducible" choice:"current-time" choice:"preserve-source-time" default:"reproducible" description:"modified-time strategy for every entry"`
	MTimeAt string `long:"mtime-at" description:"RFC-3339 timestamp that supersedes --mtime for every entry"`
}

func (o mtimeOptions) resolve() (zipopts.MTimePolicy, error) {
	if o.MTimeAt != "" {
		at, err := time.Parse(time.RFC3339, o.MTimeAt)
		if err != nil {
			return zipopts.MTimePolicy{}, fmt.Errorf("parse --mtime-at error: %w", err)
		}
		return zipopts.MTimePolicy{Strategy: zipopts.Explicit, At: at}, nil
	}

	switch o.MTime {
	case "", "reproducible":
		return zipopts.MTimePolicy{Strategy: zipopts.Reproducible}, nil
	case "current-time":
		return zipopts.MTimePolicy{Strategy: zipopts.CurrentTime}, nil
	case "preserve-source-time":
		return zipopts.MTimePolicy{Strategy: zipopts.PreserveSourceTime}, nil
	default:
		return zipopts.MTimePolicy{}, fmt.Errorf("unknown mtime strategy %q", o.MTime)
	}
}

// ignoreOptions collects the repeatable --ignore regex patterns applied during a crawl.
type ignoreOptions struct {
	Ignore []string `long:"ignore" description:"regex pattern to ignore during crawl, relative to the unresolved path (repeatable)"`
}

func (o ignoreOptions) resolve() (crawl.Ignores, error) {
	return crawl.NewIgnores(o.Ignore)
}

// pipelineOptions tunes the Parallel Merger and Intermediate Zipper, falling back to the loaded
// config's [pipeline] section and then the package defaults.
type pipelineOptions struct {
	ChunkSize      int  `long:"chunk-size" description:"number of plan items per intermediate chunk"`
	InFlightChunks int  `long:"in-flight-chunks" description:"number of chunks race-ahead of the destination splice"`
	Synchronous    bool `long:"synchronous" description:"disable the Parallel Merger and write entries directly in plan order"`
}

func (o pipelineOptions) resolveChunking(c config.PipelineConfig) (chunkSize, inFlightChunks int) {
	chunkSize = firstPositive(o.ChunkSize, c.ChunkSize)
	inFlightChunks = firstPositive(o.InFlightChunks, c.InFlightChunks)
	return
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

// configOptions names the optional ini file of default tuning values; CLI flags always override
// whatever it contains.
type configOptions struct {
	Config string `long:"config" description:"path to an ini file of default tuning values; CLI flags override it"`
}

func (o configOptions) load() config.PipelineConfig {
	loader := &config.Loader{}
	if o.Config != "" {
		_ = loader.LoadFile(o.Config)
	} else {
		_, _ = loader.Load(context.Background())
	}
	return loader.ForPipeline()
}

// verboseOptions controls the Logger (A4) level and whether the Progress Reporter (A5) renders.
type verboseOptions struct {
	Verbose    bool `short:"v" long:"verbose" description:"raise logging verbosity"`
	NoProgress bool `long:"no-progress" description:"disable the progress bar even on a TTY"`
}

// progressReporter builds a byte-counting progress bar (A5) sized to the total bytes of p's File
// items, or NoOpProgressReporter when progress rendering is disabled. Multiple files are read
// concurrently by the Parallel Merger, so the reporter tracks each source's last-seen written
// count to turn the per-file rolling totals ProgressReporter reports into one cumulative delta.
func (v verboseOptions) progressReporter(p plan.Plan) zipper.ProgressReporter {
	if v.NoProgress {
		return zipper.NoOpProgressReporter
	}

	var total int64
	for _, item := range p.Items {
		if item.Kind != plan.File {
			continue
		}
		if fi, err := os.Stat(item.Source.Source); err == nil {
			total += fi.Size()
		}
	}

	bar := internal.DefaultBytes(total, "zipping")

	var mu sync.Mutex
	seen := make(map[string]int64)

	return func(src, dst string, written int64, done bool) {
		mu.Lock()
		defer mu.Unlock()

		delta := written - seen[src]
		seen[src] = written
		if done {
			delete(seen, src)
		}

		_ = bar.Add64(delta)
	}
}
