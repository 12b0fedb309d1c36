// Package cmd implements zipline's go-flags subcommands: crawl, zip, merge, and the three
// in-memory composites that chain them without an intermediate file.
package cmd

import (
	"github.com/jessevdk/go-flags"
)

// profileAware is implemented by subcommands that need the shared --profile override, so
// NewParser can push it down to whichever subcommand is actually invoked.
type profileAware interface {
	SetProfile(profile string)
}

// Zipline is the top-level option group every subcommand is registered under.
type Zipline struct {
	Profile string `short:"p" long:"profile" description:"if given, all AWS operations use this shared profile" value-name:"aws-profile"`

	Crawl Crawl `command:"crawl" description:"discover real files under one or more paths, applying ignore patterns"`
	Zip   Zip   `command:"zip" description:"compress files or a crawl manifest into a ZIP archive"`
	Merge Merge `command:"merge" description:"splice existing ZIP archives into one output archive without recompressing"`

	CrawlZip      CrawlZip      `command:"crawl-zip" description:"crawl then zip in one step, in memory"`
	ZipMerge      ZipMerge      `command:"zip-merge" description:"zip then merge in one step, in memory"`
	CrawlZipMerge CrawlZipMerge `command:"crawl-zip-merge" description:"crawl, zip, then merge in one step, in memory"`
}

// NewParser assembles the zipline command-line parser, wiring the shared --profile option into
// every subcommand that declares itself profileAware.
func NewParser() (*flags.Parser, error) {
	opts := &Zipline{}

	p := flags.NewNamedParser("zipline", flags.Default)
	if _, err := p.AddGroup("Global Options", "", opts); err != nil {
		return nil, err
	}

	p.CommandHandler = func(command flags.Commander, args []string) error {
		if opts.Profile != "" {
			if c, ok := command.(profileAware); ok {
				c.SetProfile(opts.Profile)
			}
		}
		return command.Execute(args)
	}

	return p, nil
}
