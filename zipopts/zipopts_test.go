package zipopts

import (
	"archive/zip"
	"io/fs"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeInfo struct {
	size  int64
	mtime time.Time
}

func (f fakeInfo) Name() string       { return "f" }
func (f fakeInfo) Size() int64        { return f.size }
func (f fakeInfo) Mode() fs.FileMode  { return 0644 }
func (f fakeInfo) ModTime() time.Time { return f.mtime }
func (f fakeInfo) IsDir() bool        { return false }
func (f fakeInfo) Sys() any           { return nil }

func TestSmallFilePolicy_Boundary(t *testing.T) {
	tests := map[string]struct {
		size   int64
		stored bool
	}{
		"exactly 1000 bytes forced to stored":       {size: 1000, stored: true},
		"1001 bytes keeps requested method":        {size: 1001, stored: false},
		"tiny file forced to stored":                {size: 10, stored: true},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			hdr := &zip.FileHeader{Method: zip.Deflate}
			err := (smallFilePolicy{}).Apply(hdr, fakeInfo{size: tt.size})
			assert.NoError(t, err)
			if tt.stored {
				assert.Equal(t, zip.Store, hdr.Method)
			} else {
				assert.Equal(t, zip.Deflate, hdr.Method)
			}
		})
	}
}

func TestMTimePolicy_Reproducible(t *testing.T) {
	hdr := &zip.FileHeader{}
	p := mtimePolicy{MTimePolicy{Strategy: Reproducible}}
	assert.NoError(t, p.Apply(hdr, fakeInfo{}))
	assert.Equal(t, zipEpoch, hdr.Modified)
}

func TestMTimePolicy_PreserveSourceTime(t *testing.T) {
	want := time.Date(2020, 3, 4, 5, 6, 0, 0, time.UTC)
	hdr := &zip.FileHeader{}
	p := mtimePolicy{MTimePolicy{Strategy: PreserveSourceTime}}
	assert.NoError(t, p.Apply(hdr, fakeInfo{mtime: want}))
	assert.Equal(t, want, hdr.Modified)
}

func TestLargeFile(t *testing.T) {
	assert.False(t, LargeFile(fakeInfo{size: 100}))
	assert.True(t, LargeFile(fakeInfo{size: largeFileThreshold + 1}))
}

func TestDefaultResolver_Pipeline(t *testing.T) {
	r := DefaultResolver(DefaultCompression, MTimePolicy{Strategy: Reproducible})
	hdr := &zip.FileHeader{Method: zip.Deflate}
	assert.NoError(t, r.Apply(hdr, fakeInfo{size: 5}))
	assert.Equal(t, zip.Store, hdr.Method)
	assert.Equal(t, zipEpoch, hdr.Modified)
}

func TestCompressionPolicy_Stored(t *testing.T) {
	r := DefaultResolver(Compression{Method: Stored}, MTimePolicy{Strategy: Reproducible})
	hdr := &zip.FileHeader{}
	assert.NoError(t, r.Apply(hdr, fakeInfo{size: 1 << 20}))
	assert.Equal(t, zip.Store, hdr.Method)
}

func TestCompressionPolicy_DeflatedLargeFileKeepsDeflate(t *testing.T) {
	r := DefaultResolver(Compression{Method: Deflated, Level: 9}, MTimePolicy{Strategy: Reproducible})
	hdr := &zip.FileHeader{}
	assert.NoError(t, r.Apply(hdr, fakeInfo{size: 1 << 20}))
	assert.Equal(t, zip.Deflate, hdr.Method)
}
