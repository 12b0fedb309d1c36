package spool

import (
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpool_StaysInMemoryBelowThreshold(t *testing.T) {
	s := New(1024, t.TempDir())
	defer s.Close()

	n, err := s.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.False(t, s.spilled)

	r, size, err := s.ReaderAt()
	require.NoError(t, err)
	assert.EqualValues(t, 5, size)

	buf := make([]byte, 5)
	_, err = r.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf))
}

func TestSpool_SpillsToDiskAboveThreshold(t *testing.T) {
	s := New(8, t.TempDir())
	defer s.Close()

	_, err := s.Write([]byte("0123456789"))
	require.NoError(t, err)
	assert.True(t, s.spilled)

	r, size, err := s.ReaderAt()
	require.NoError(t, err)
	assert.EqualValues(t, 10, size)

	buf := make([]byte, 10)
	_, err = r.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(buf))
}

func TestSpool_SeekAndRead(t *testing.T) {
	s := New(1024, t.TempDir())
	defer s.Close()

	_, err := s.Write([]byte("abcdef"))
	require.NoError(t, err)

	_, err = s.Seek(2, io.SeekStart)
	require.NoError(t, err)

	buf := make([]byte, 2)
	n, err := s.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "cd", string(buf))
}

func TestSpool_CloseRemovesTempFile(t *testing.T) {
	s := New(4, t.TempDir())
	_, err := s.Write([]byte("0123456789"))
	require.NoError(t, err)
	require.True(t, s.spilled)

	name := s.file.Name()
	require.NoError(t, s.Close())

	_, statErr := os.Stat(name)
	assert.Error(t, statErr)
}
