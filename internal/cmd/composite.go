package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/nguyengg/zipline/crawl"
	"github.com/nguyengg/zipline/entryname"
	"github.com/nguyengg/zipline/internal/blockingpool"
	"github.com/nguyengg/zipline/mergearchive"
	"github.com/nguyengg/zipline/plan"
)

// CrawlZip crawls then zips in one step, passing the crawl result's file sources directly to the
// zip stage instead of round-tripping them through a JSON manifest file on disk.
type CrawlZip struct {
	outputOptions
	compressionOptions
	mtimeOptions
	pipelineOptions
	configOptions
	verboseOptions
	ignoreOptions

	Workers int `long:"workers" description:"number of goroutines in the blocking pool" default:"0"`

	Args struct {
		Paths []string `positional-arg-name:"path" description:"one or more paths to crawl" required:"yes"`
	} `positional-args:"yes"`

	profile string
}

func (c *CrawlZip) SetProfile(profile string) { c.profile = profile }

func (c *CrawlZip) Execute(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unknown positional arguments: %s", strings.Join(args, " "))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer stop()

	ignores, err := c.ignoreOptions.resolve()
	if err != nil {
		return fmt.Errorf("compile ignore patterns error: %w", err)
	}

	result, err := crawl.Crawl(ctx, c.Args.Paths, ignores)
	if err != nil {
		return fmt.Errorf("crawl error: %w", err)
	}

	sources, err := result.FileSources()
	if err != nil {
		return err
	}

	return runZip(ctx, sources, plan.Modifications{}, c.outputOptions, c.compressionOptions, c.mtimeOptions, c.pipelineOptions, c.configOptions, c.verboseOptions, c.profile, c.Workers)
}

// ZipMerge zips files or directories into a temporary archive, then merges that archive together
// with the given merge-group sources into the final output — skipping a user-visible intermediate
// file the way crawl-zip skips an intermediate manifest.
type ZipMerge struct {
	outputOptions
	compressionOptions
	mtimeOptions
	configOptions
	verboseOptions

	Workers int `long:"workers" description:"number of goroutines in the blocking pool" default:"0"`

	Args struct {
		ZipFiles string   `positional-arg-name:"zip-files" description:"comma-separated files/directories to zip before merging"`
		Groups   []string `positional-arg-name:"source" description:"source ZIP archives, optionally interspersed with +prefix/ tokens"`
	} `positional-args:"yes"`

	profile string
}

func (z *ZipMerge) SetProfile(profile string) { z.profile = profile }

func (z *ZipMerge) Execute(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer stop()

	sources, err := zipFileSourcesFromList(z.Args.ZipFiles)
	if err != nil {
		return err
	}

	return runZipThenMerge(ctx, sources, append(z.Args.Groups, args...), z.outputOptions, z.compressionOptions, z.mtimeOptions, z.configOptions, z.verboseOptions, z.profile, z.Workers)
}

// CrawlZipMerge crawls, zips the result into a temporary archive, then merges that archive
// together with the given merge-group sources into the final output, chaining all three stages
// without any intermediate file becoming part of the CLI surface.
type CrawlZipMerge struct {
	outputOptions
	compressionOptions
	mtimeOptions
	configOptions
	verboseOptions
	ignoreOptions

	Workers int `long:"workers" description:"number of goroutines in the blocking pool" default:"0"`

	Args struct {
		CrawlPaths string   `positional-arg-name:"crawl-paths" description:"comma-separated paths to crawl before zipping"`
		Groups     []string `positional-arg-name:"source" description:"source ZIP archives, optionally interspersed with +prefix/ tokens"`
	} `positional-args:"yes"`

	profile string
}

func (c *CrawlZipMerge) SetProfile(profile string) { c.profile = profile }

func (c *CrawlZipMerge) Execute(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer stop()

	ignores, err := c.ignoreOptions.resolve()
	if err != nil {
		return fmt.Errorf("compile ignore patterns error: %w", err)
	}

	result, err := crawl.Crawl(ctx, strings.Split(c.Args.CrawlPaths, ","), ignores)
	if err != nil {
		return fmt.Errorf("crawl error: %w", err)
	}

	sources, err := result.FileSources()
	if err != nil {
		return err
	}

	return runZipThenMerge(ctx, sources, append(c.Args.Groups, args...), c.outputOptions, c.compressionOptions, c.mtimeOptions, c.configOptions, c.verboseOptions, c.profile, c.Workers)
}

func zipFileSourcesFromList(commaSeparated string) ([]entryname.FileSource, error) {
	z := &Zip{}
	z.Args.Files = strings.Split(commaSeparated, ",")
	return z.fileSources()
}

// runZipThenMerge zips sources into a spooled temporary archive, then hands it to mergearchive.Merge
// as the unprefixed first group ahead of extraGroupTokens.
func runZipThenMerge(ctx context.Context, sources []entryname.FileSource, extraGroupTokens []string, out outputOptions, comp compressionOptions, mt mtimeOptions, cfg configOptions, v verboseOptions, profile string, workers int) error {
	tmp, err := os.CreateTemp("", "zipline-zip-merge-*.zip")
	if err != nil {
		return fmt.Errorf("create temporary archive error: %w", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(tmpPath)

	zipStage := outputOptions{Output: tmpPath, OutputPolicy: "truncate"}
	if err = runZip(ctx, sources, plan.Modifications{}, zipStage, comp, mt, pipelineOptions{}, cfg, verboseOptions{NoProgress: true}, "", workers); err != nil {
		return fmt.Errorf("zip stage error: %w", err)
	}

	groups, err := mergearchive.ParseArgs(append([]string{tmpPath}, extraGroupTokens...))
	if err != nil {
		return fmt.Errorf("parse merge arguments error: %w", err)
	}

	mtime, err := mt.resolve()
	if err != nil {
		return err
	}

	pool := blockingpool.New(workers, 0)
	defer pool.Close()

	handle, err := out.open(ctx, pool, profile, v.logger())
	if err != nil {
		return err
	}
	defer handle.Close()

	return mergearchive.Merge(groups, mtime, handle, pool)
}
