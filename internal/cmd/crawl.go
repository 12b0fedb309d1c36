package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/nguyengg/zipline/crawl"
)

// Crawl discovers real files under one or more paths, applying --ignore patterns, and writes the
// resulting crawl.Result as JSON to stdout or to --output.
type Crawl struct {
	ignoreOptions

	Output string `short:"o" long:"output" description:"write the crawl manifest here instead of stdout"`

	Args struct {
		Paths []string `positional-arg-name:"path" description:"one or more paths to crawl" required:"yes"`
	} `positional-args:"yes"`

	profile string
}

func (c *Crawl) SetProfile(profile string) { c.profile = profile }

func (c *Crawl) Execute(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unknown positional arguments: %s", strings.Join(args, " "))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	defer stop()

	result, err := c.run(ctx)
	if err != nil {
		return err
	}

	return writeManifest(c.Output, result)
}

func (c *Crawl) run(ctx context.Context) (crawl.Result, error) {
	ignores, err := c.ignoreOptions.resolve()
	if err != nil {
		return crawl.Result{}, fmt.Errorf("compile ignore patterns error: %w", err)
	}

	result, err := crawl.Crawl(ctx, c.Args.Paths, ignores)
	if err != nil {
		return crawl.Result{}, fmt.Errorf("crawl error: %w", err)
	}

	result.Sort()
	return result, nil
}

// writeManifest serializes result as indented JSON to path, or to stdout if path is empty.
func writeManifest(path string, result crawl.Result) error {
	w := os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create manifest file error: %w", err)
		}
		defer f.Close()
		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("write manifest error: %w", err)
	}

	return nil
}

// readManifest deserializes a crawl.Result previously written by writeManifest.
func readManifest(path string) (crawl.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return crawl.Result{}, fmt.Errorf("open manifest file error: %w", err)
	}
	defer f.Close()

	var result crawl.Result
	if err = json.NewDecoder(f).Decode(&result); err != nil {
		return crawl.Result{}, fmt.Errorf("parse manifest file error: %w", err)
	}

	return result, nil
}
