package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/nguyengg/zipline/entryname"
	"github.com/nguyengg/zipline/internal/blockingpool"
	"github.com/nguyengg/zipline/plan"
	"github.com/nguyengg/zipline/zipopts"
	"github.com/nguyengg/zipline/zipper"
)

// Zip compresses files or directories, or a previously captured crawl manifest, into a ZIP
// archive, following the Entry Plan → Parallel Merger pipeline.
type Zip struct {
	outputOptions
	compressionOptions
	mtimeOptions
	pipelineOptions
	configOptions
	verboseOptions

	FromManifest string `long:"from-manifest" description:"read file sources from a crawl manifest instead of positional arguments"`
	Workers      int    `long:"workers" description:"number of goroutines in the blocking pool" default:"0"`

	Args struct {
		Files []string `positional-arg-name:"path" description:"files or directories to add to the archive"`
	} `positional-args:"yes"`

	profile string
}

func (z *Zip) SetProfile(profile string) { z.profile = profile }

func (z *Zip) Execute(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unknown positional arguments: %s", strings.Join(args, " "))
	}
	if (z.FromManifest == "") == (len(z.Args.Files) == 0) {
		return fmt.Errorf("specify either --from-manifest or one or more positional paths, not both")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer stop()

	sources, err := z.fileSources()
	if err != nil {
		return err
	}

	return runZip(ctx, sources, plan.Modifications{}, z.outputOptions, z.compressionOptions, z.mtimeOptions, z.pipelineOptions, z.configOptions, z.verboseOptions, z.profile, z.Workers)
}

func (z *Zip) fileSources() ([]entryname.FileSource, error) {
	if z.FromManifest != "" {
		result, err := readManifest(z.FromManifest)
		if err != nil {
			return nil, err
		}
		return result.FileSources()
	}

	var sources []entryname.FileSource
	for _, path := range z.Args.Files {
		fi, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat %q error: %w", path, err)
		}

		if !fi.IsDir() {
			name, err := entryname.Validate(filepath.ToSlash(filepath.Base(path)))
			if err != nil {
				return nil, fmt.Errorf("derive entry name for %q error: %w", path, err)
			}
			sources = append(sources, entryname.FileSource{Name: name, Source: path})
			continue
		}

		base := filepath.Base(path)
		err = zipper.WalkRegularFiles(context.Background(), path, func(walked string, _ fs.DirEntry) error {
			rel, err := filepath.Rel(path, walked)
			if err != nil {
				return err
			}

			name, err := entryname.Validate(filepath.ToSlash(filepath.Join(base, rel)))
			if err != nil {
				return fmt.Errorf("derive entry name for %q error: %w", walked, err)
			}
			sources = append(sources, entryname.FileSource{Name: name, Source: walked})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk directory %q error: %w", path, err)
		}
	}

	return sources, nil
}

// runZip is the shared tail end of Zip.Execute and the crawl-zip/crawl-zip-merge composites: build
// the Entry Plan, resolve the zip options, open the destination, and dispatch to the Parallel
// Merger or the synchronous fallback.
func runZip(ctx context.Context, sources []entryname.FileSource, mods plan.Modifications, out outputOptions, comp compressionOptions, mt mtimeOptions, pl pipelineOptions, cfg configOptions, v verboseOptions, profile string, workers int) error {
	p, err := plan.FromFileSources(sources, mods)
	if err != nil {
		return fmt.Errorf("build entry plan error: %w", err)
	}

	compression, err := comp.resolve()
	if err != nil {
		return err
	}

	mtime, err := mt.resolve()
	if err != nil {
		return err
	}

	zipopts.RegisterDeflateLevel(compression.Level)

	pool := blockingpool.New(workers, 0)
	defer pool.Close()

	handle, err := out.open(ctx, pool, profile, v.logger())
	if err != nil {
		return err
	}
	defer handle.Close()

	progress := v.progressReporter(p)

	if pl.Synchronous {
		resolver := zipopts.DefaultResolver(compression, mtime)
		return zipper.ZipSynchronous(p, resolver, compression, mtime, handle, progress)
	}

	pipelineConfig := cfg.load()
	chunkSize, inFlight := pl.resolveChunking(pipelineConfig)
	if chunkSize <= 0 {
		chunkSize = zipper.DefaultChunkSize
	}
	if inFlight <= 0 {
		inFlight = zipper.DefaultInFlightChunks
	}

	resolver := zipopts.DefaultResolver(compression, mtime)
	spoolDir := ""
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return zipper.ZipParallel(p, resolver, compression, mtime, handle, pool, spoolDir, chunkSize, inFlight, progress)
}
