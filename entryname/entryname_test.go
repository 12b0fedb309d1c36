package entryname

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	tests := map[string]struct {
		name    string
		wantErr bool
	}{
		"ok simple":       {name: "a.txt"},
		"ok nested":       {name: "a/b/c.txt"},
		"empty":           {name: "", wantErr: true},
		"leading slash":   {name: "/a.txt", wantErr: true},
		"leading dotdash": {name: "./a.txt", wantErr: true},
		"trailing slash":  {name: "a/", wantErr: true},
		"double slash":    {name: "a//b.txt", wantErr: true},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Validate(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCompare_ComponentWise(t *testing.T) {
	a := MustValidate("a.txt")
	ab := MustValidate("a/b.txt")

	// "a" < "a.txt" as the first differing component, so "a/b.txt" sorts first.
	assert.True(t, Less(ab, a))
	assert.False(t, Less(a, ab))
}

func TestSort_SiblingOrdering(t *testing.T) {
	names := []EntryName{MustValidate("a.txt"), MustValidate("a/b.txt")}
	sort.Slice(names, func(i, j int) bool { return Less(names[i], names[j]) })

	assert.Equal(t, []string{"a/b.txt", "a.txt"}, stringsOf(names))
}

func TestPrepend(t *testing.T) {
	n := MustValidate("x.txt")
	prefixed := n.Prepend(MustValidate("deps"))
	assert.Equal(t, "deps/x.txt", prefixed.String())
	assert.Equal(t, []string{"deps", "x.txt"}, prefixed.Components())

	// prepending the empty sentinel is a no-op.
	assert.Equal(t, n, n.Prepend(EntryName{}))
}

func TestDirectoryComponents(t *testing.T) {
	n := MustValidate("x/y/z.txt")
	assert.Equal(t, []string{"x", "y"}, n.DirectoryComponents())
}

func stringsOf(names []EntryName) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = n.String()
	}
	return out
}
