package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/nguyengg/zipline/internal/blockingpool"
	"github.com/nguyengg/zipline/mergearchive"
)

// Merge splices existing ZIP archives into one output archive without recompressing, per the
// "+prefix/ source..." token grammar parsed by mergearchive.ParseArgs.
type Merge struct {
	outputOptions
	mtimeOptions
	configOptions
	verboseOptions

	Workers int `long:"workers" description:"number of goroutines in the blocking pool" default:"0"`

	Args struct {
		Groups []string `positional-arg-name:"source" description:"source ZIP archives, optionally interspersed with +prefix/ tokens" required:"yes"`
	} `positional-args:"yes"`

	profile string
}

func (m *Merge) SetProfile(profile string) { m.profile = profile }

func (m *Merge) Execute(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer stop()

	return runMerge(ctx, m.Args.Groups, args, m.outputOptions, m.mtimeOptions, m.verboseOptions, m.profile, m.Workers)
}

// runMerge is the tail end of Merge.Execute; the zip-merge/crawl-zip-merge composites use
// runZipThenMerge instead.
func runMerge(ctx context.Context, tokens []string, extra []string, out outputOptions, mt mtimeOptions, v verboseOptions, profile string, workers int) error {
	groups, err := mergearchive.ParseArgs(append(tokens, extra...))
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
