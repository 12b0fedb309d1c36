// Package mergearchive implements the merge front-end: splicing a sequence of existing ZIP
// archives (optionally grouped under synthesized path prefixes) into one Output Handle without
// recompressing any entry.
package mergearchive

import (
	"archive/zip"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/nguyengg/zipline/destination"
	"github.com/nguyengg/zipline/entryname"
	"github.com/nguyengg/zipline/internal/blockingpool"
	"github.com/nguyengg/zipline/internal/rawsplice"
	"github.com/nguyengg/zipline/plan"
	"github.com/nguyengg/zipline/zipopts"
	"github.com/nguyengg/zipline/zipper"
)

// NameFormatError wraps a prefix token that fails entryname validation.
type NameFormatError struct {
	Token string
	Err   error
}

func (e *NameFormatError) Error() string {
	return fmt.Sprintf("invalid prefix token %q: %v", e.Token, e.Err)
}

func (e *NameFormatError) Unwrap() error { return e.Err }

// Group is one run of source archive paths sharing a common destination prefix. A nil Prefix means
// the group's entries are spliced at the archive root.
type Group struct {
	Prefix  *entryname.EntryName
	Sources []string
}

// ParseArgs splits a flat argument list into Groups. A token of the form "+prefix/" (including the
// bare "+/") starts a new group; every other token is a source archive path belonging to the
// current group. Tokens before the first "+prefix/" token belong to an implicit root-prefixed
// group.
func ParseArgs(args []string) ([]Group, error) {
	var (
		groups  []Group
		current *Group
	)

	for _, arg := range args {
		if strings.HasPrefix(arg, "+") && strings.HasSuffix(arg, "/") {
			if current != nil {
				groups = append(groups, *current)
			}

			raw := arg[1 : len(arg)-1]
			var prefix *entryname.EntryName
			if raw != "" {
				n, err := entryname.Validate(raw)
				if err != nil {
					return nil, &NameFormatError{Token: arg, Err: err}
				}
				prefix = &n
			}

			current = &Group{Prefix: prefix}
			continue
		}

		if current == nil {
			current = &Group{}
		}
		current.Sources = append(current.Sources, arg)
	}

	if current != nil {
		groups = append(groups, *current)
	}

	return groups, nil
}

// Merge splices every source archive named across groups into out, in order, synthesizing
// directory entries for each group's prefix transition exactly as the Entry Plan does for
// ordinary zip operations. mtime controls the Modified time stamped on synthesized directory
// entries; source archives' own entries are copied verbatim (including their own Modified times).
func Merge(groups []Group, mtime zipopts.MTimePolicy, out *destination.Handle, pool *blockingpool.Pool) error {
	var (
		previous []string
		errs     *multierror.Error
	)

	for _, group := range groups {
		current := prefixComponents(group.Prefix)

		for _, rightmost := range plan.CalculateNewRightmostComponents(previous, current) {
			name := strings.Join(rightmost, "/")
			if err := addDirectory(out, name, mtime); err != nil {
				errs = multierror.Append(errs, err)
			}
		}
		previous = current

		for _, src := range group.Sources {
			if err := spliceSource(out, src, group.Prefix, pool); err != nil {
				errs = multierror.Append(errs, fmt.Errorf("merge %q error: %w", src, err))
			}
		}
	}

	return errs.ErrorOrNil()
}

func prefixComponents(prefix *entryname.EntryName) []string {
	if prefix == nil {
		return nil
	}
	return prefix.Components()
}

func addDirectory(out *destination.Handle, name string, mtime zipopts.MTimePolicy) error {
	hdr := &zip.FileHeader{Name: name + "/"}
	zipopts.ApplyStatic(hdr, zipopts.DefaultCompression, mtime)
	return out.WithLock(func(w *zip.Writer) error {
		_, err := w.CreateHeader(hdr)
		return err
	})
}

// spliceSource opens src as a read-only archive and splices every one of its entries into out,
// under prefix when it is non-nil, entirely as one blocking task on the Pool.
func spliceSource(out *destination.Handle, src string, prefix *entryname.EntryName, pool *blockingpool.Pool) error {
	return <-pool.Go(func() error {
		r, err := zip.OpenReader(src)
		if err != nil {
			return fmt.Errorf("open source archive error: %w", err)
		}
		defer r.Close()

		return out.WithLock(func(w *zip.Writer) error {
			if prefix == nil {
				return zipper.MergeArchive(w, &r.Reader)
			}
			for _, f := range r.File {
				entry := *f
				entry.Name = prefix.String() + "/" + f.Name
				if err := rawsplice.SpliceOne(w, &entry); err != nil {
					return err
				}
			}
			return nil
		})
	})
}
