// Package entryname implements the validated, component-split archive-internal path name used
// throughout zipline's entry planning and merging.
package entryname

import (
	"fmt"
	"strings"
)

// FormatError is returned by Validate when a candidate name violates one of the entry name rules.
type FormatError struct {
	Reason string
	Name   string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid entry name %q: %s", e.Name, e.Reason)
}

// EntryName is a validated, '/'-separated relative archive path. The zero value is the empty
// sentinel used only as an initial prefix placeholder; it is not a valid name on its own and must
// never be produced by Validate.
type EntryName struct {
	name       string
	components []string
}

// Validate parses and validates name, rejecting the empty string, a leading '/', a leading "./", a
// trailing '/', and any "//" occurrence.
func Validate(name string) (EntryName, error) {
	switch {
	case name == "":
		return EntryName{}, &FormatError{Reason: "name is empty", Name: name}
	case strings.HasPrefix(name, "/"):
		return EntryName{}, &FormatError{Reason: "name starts with '/'", Name: name}
	case strings.HasPrefix(name, "./"):
		return EntryName{}, &FormatError{Reason: "name starts with './'", Name: name}
	case strings.HasSuffix(name, "/"):
		return EntryName{}, &FormatError{Reason: "name ends with '/'", Name: name}
	case strings.Contains(name, "//"):
		return EntryName{}, &FormatError{Reason: "name contains '//'", Name: name}
	}

	return EntryName{name: name, components: strings.Split(name, "/")}, nil
}

// MustValidate panics if name does not validate. Intended for tests and constant construction.
func MustValidate(name string) EntryName {
	n, err := Validate(name)
	if err != nil {
		panic(err)
	}
	return n
}

// empty reports whether this is the zero-value sentinel.
func (n EntryName) empty() bool { return n.name == "" }

// String returns the raw name.
func (n EntryName) String() string { return n.name }

// Components returns the cached '/'-split components of the name.
func (n EntryName) Components() []string { return n.components }

// DirectoryComponents returns every component but the last (the file name itself).
func (n EntryName) DirectoryComponents() []string {
	if len(n.components) == 0 {
		return nil
	}
	return n.components[:len(n.components)-1]
}

// Prepend returns a new EntryName formed by joining prefix and n with '/'. If prefix is the empty
// sentinel, n is returned unchanged.
func (n EntryName) Prepend(prefix EntryName) EntryName {
	if prefix.empty() {
		return n
	}
	joined := prefix.name + "/" + n.name
	return EntryName{name: joined, components: strings.Split(joined, "/")}
}

// Compare returns -1, 0, or 1 comparing a and b by component-wise lexicographic order, so that
// "a/b" sorts before "a.txt" because "a" < "a.txt" as the first differing component.
func Compare(a, b EntryName) int {
	ac, bc := a.components, b.components
	for i := 0; i < len(ac) && i < len(bc); i++ {
		if ac[i] != bc[i] {
			if ac[i] < bc[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(ac) < len(bc):
		return -1
	case len(ac) > len(bc):
		return 1
	default:
		return 0
	}
}

// Less is a convenience comparator suitable for sort.Slice.
func Less(a, b EntryName) bool { return Compare(a, b) < 0 }
