// Package plan builds the ordered sequence of file and synthetic-directory items that a zip or
// merge operation writes, from a set of file sources and optional path-prefix modifications.
package plan

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nguyengg/zipline/entryname"
)

// DuplicateNameError is returned by FromFileSources when two sources resolve to the same entry
// name.
type DuplicateNameError struct {
	Name          string
	First, Second string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("duplicate entry name %q from sources %q and %q", e.Name, e.First, e.Second)
}

// Modifications controls how prefixes are applied to every item in the plan.
//
// SilentExternalPrefix prepends a path without creating directory entries for its components.
// OwnPrefix prepends and does create a directory entry for each of its components. The external
// prefix always precedes the own prefix in the final name.
type Modifications struct {
	SilentExternalPrefix *entryname.EntryName
	OwnPrefix            *entryname.EntryName
}

// ItemKind distinguishes File from synthetic Directory plan items.
type ItemKind int

const (
	// File is a plan item backed by a real file on disk.
	File ItemKind = iota
	// Directory is a synthetic plan item with no filesystem backing, emitted solely to make
	// the archive's directory structure explicit.
	Directory
)

// Item is one entry of a Plan: either a File wrapping a FileSource, or a synthetic Directory
// naming an intermediate path component.
type Item struct {
	Kind   ItemKind
	Source entryname.FileSource // valid when Kind == File
	Name   entryname.EntryName  // valid when Kind == Directory, or mirrors Source.Name when File
}

// Plan is the ordered, deduplicated sequence of Items ready for writing.
type Plan struct {
	Items []Item
}

// FromFileSources sorts sources by entry name, rejects duplicates, and synthesizes the minimal set
// of directory items needed to make the resulting structure explicit, per entryname.Compare order.
func FromFileSources(sources []entryname.FileSource, mods Modifications) (Plan, error) {
	sorted := make([]entryname.FileSource, len(sources))
	copy(sorted, sources)
	sort.Slice(sorted, func(i, j int) bool {
		return entryname.CompareFileSource(sorted[i], sorted[j]) < 0
	})

	for i := 1; i < len(sorted); i++ {
		if entryname.CompareFileSource(sorted[i-1], sorted[i]) == 0 {
			return Plan{}, &DuplicateNameError{
				Name:   sorted[i].Name.String(),
				First:  sorted[i-1].Source,
				Second: sorted[i].Source,
			}
		}
	}

	prefix, prefixDirItems := combinedPrefix(mods)

	items := make([]Item, 0, len(sorted)+len(prefixDirItems))
	items = append(items, prefixDirItems...)

	var previousComponents []string
	for _, src := range sorted {
		current := src.Name.DirectoryComponents()
		for _, rightmost := range calculateNewRightmostComponents(previousComponents, current) {
			dirName := entryname.MustValidate(strings.Join(rightmost, "/"))
			items = append(items, Item{Kind: Directory, Name: dirName.Prepend(prefix)})
		}
		previousComponents = current

		items = append(items, Item{
			Kind:   File,
			Source: entryname.FileSource{Name: src.Name.Prepend(prefix), Source: src.Source},
			Name:   src.Name.Prepend(prefix),
		})
	}

	return Plan{Items: items}, nil
}

// combinedPrefix folds SilentExternalPrefix and OwnPrefix into one combined EntryName prefix, and
// returns the Directory items required to materialize OwnPrefix's own components (with
// SilentExternalPrefix applied silently ahead of them, per Modifications' contract).
func combinedPrefix(mods Modifications) (entryname.EntryName, []Item) {
	var external entryname.EntryName
	if mods.SilentExternalPrefix != nil {
		external = *mods.SilentExternalPrefix
	}

	if mods.OwnPrefix == nil {
		return external, nil
	}

	own := *mods.OwnPrefix
	items := make([]Item, 0, len(own.Components()))
	for i := range own.Components() {
		partial := entryname.MustValidate(strings.Join(own.Components()[:i+1], "/"))
		items = append(items, Item{Kind: Directory, Name: partial.Prepend(external)})
	}

	combined := own.Prepend(external)
	return combined, items
}

// calculateNewRightmostComponents returns, for each index where current diverges from previous,
// the component slice current[:index+1] (callers join it with "/") — i.e. the minimal set of new
// directory paths needed to
// walk from previous's directory structure to current's. Shared by the Entry Plan's inline
// directory synthesis and the merge front-end's prefix-transition synthesis.
func calculateNewRightmostComponents(previous, current []string) [][]string {
	shared := 0
	for shared < len(previous) && shared < len(current) && previous[shared] == current[shared] {
		shared++
	}

	out := make([][]string, 0, len(current)-shared)
	for i := shared; i < len(current); i++ {
		out = append(out, current[:i+1])
	}
	return out
}

// CalculateNewRightmostComponents exposes calculateNewRightmostComponents for the merge front-end.
func CalculateNewRightmostComponents(previous, current []string) [][]string {
	return calculateNewRightmostComponents(previous, current)
}
