package plan

import (
	"testing"

	"github.com/nguyengg/zipline/entryname"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fs(name, source string) entryname.FileSource {
	return entryname.FileSource{Name: entryname.MustValidate(name), Source: source}
}

func namesOf(p Plan) []string {
	out := make([]string, len(p.Items))
	for i, it := range p.Items {
		out[i] = it.Name.String()
	}
	return out
}

func TestFromFileSources_SiblingOrdering(t *testing.T) {
	p, err := FromFileSources([]entryname.FileSource{fs("a.txt", "/a.txt"), fs("a/b.txt", "/a/b.txt")}, Modifications{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "a/b.txt", "a.txt"}, namesOf(p))
}

func TestFromFileSources_NestedDirectorySynthesis(t *testing.T) {
	p, err := FromFileSources([]entryname.FileSource{fs("x/y/z.txt", "/z.txt")}, Modifications{})
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "x/y", "x/y/z.txt"}, namesOf(p))
}

func TestFromFileSources_SharedPrefixReuse(t *testing.T) {
	p, err := FromFileSources([]entryname.FileSource{
		fs("a/b/c.txt", "/c.txt"),
		fs("a/b/d.txt", "/d.txt"),
		fs("a/e.txt", "/e.txt"),
	}, Modifications{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "a/b", "a/b/c.txt", "a/b/d.txt", "a/e.txt"}, namesOf(p))
}

func TestFromFileSources_OwnPrefixApplication(t *testing.T) {
	deps := entryname.MustValidate("deps")
	p, err := FromFileSources([]entryname.FileSource{fs("x.txt", "/x.txt")}, Modifications{OwnPrefix: &deps})
	require.NoError(t, err)
	assert.Equal(t, []string{"deps", "deps/x.txt"}, namesOf(p))

	lib := entryname.MustValidate("lib")
	p, err = FromFileSources([]entryname.FileSource{fs("x.txt", "/x.txt")}, Modifications{
		OwnPrefix:            &deps,
		SilentExternalPrefix: &lib,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"deps", "lib/deps", "lib/deps/x.txt"}, namesOf(p))
}

func TestFromFileSources_DuplicateDetection(t *testing.T) {
	_, err := FromFileSources([]entryname.FileSource{fs("a.txt", "/p1"), fs("a.txt", "/p2")}, Modifications{})
	require.Error(t, err)

	var dupErr *DuplicateNameError
	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, "a.txt", dupErr.Name)
	assert.Equal(t, "/p1", dupErr.First)
	assert.Equal(t, "/p2", dupErr.Second)
}

func TestFromFileSources_SingleFileAtRoot(t *testing.T) {
	p, err := FromFileSources([]entryname.FileSource{fs("a.txt", "/a.txt")}, Modifications{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, namesOf(p))
}

func TestFromFileSources_Empty(t *testing.T) {
	p, err := FromFileSources(nil, Modifications{})
	require.NoError(t, err)
	assert.Empty(t, p.Items)
}

func TestCalculateNewRightmostComponents_MergePrefixTransition(t *testing.T) {
	got := CalculateNewRightmostComponents([]string{"a", "b"}, []string{"a", "c"})
	require.Len(t, got, 1)
	assert.Equal(t, []string{"a", "c"}, got[0])
}
