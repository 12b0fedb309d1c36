// Package spool provides a spooled temporary file: an io.ReadWriteSeeker that buffers writes in
// memory up to a threshold, then transparently spills to an anonymous on-disk file.
package spool

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/valyala/bytebufferpool"
)

// Spool buffers writes into a pooled bytes.Buffer until Threshold bytes have been written, then
// spills the buffered content plus all subsequent writes into a temp file created on first spill.
//
// Not safe for concurrent use; callers needing concurrent writes must guard a Spool with their own
// lock (the zip.Writer built atop one already serializes access, per destination.Handle).
type Spool struct {
	Threshold int
	Dir       string // directory for the spill file; "" uses os.TempDir semantics via os.CreateTemp

	buf     *bytebufferpool.ByteBuffer
	file    *os.File
	spilled bool
	pos     int64 // write position; buf/file stay in sync with this via Seek
}

// New returns a Spool that spills to disk once more than threshold bytes have been written.
func New(threshold int, dir string) *Spool {
	return &Spool{Threshold: threshold, Dir: dir, buf: bytebufferpool.Get()}
}

// Write appends p, spilling to disk if Threshold is crossed.
func (s *Spool) Write(p []byte) (n int, err error) {
	if s.spilled {
		n, err = s.file.Write(p)
		s.pos += int64(n)
		return
	}

	if s.buf.Len()+len(p) > s.Threshold {
		if err = s.spill(); err != nil {
			return 0, err
		}
		return s.Write(p)
	}

	n, err = s.buf.Write(p)
	s.pos += int64(n)
	return
}

// spill flushes the in-memory buffer to a freshly created temp file and switches subsequent writes
// to it.
func (s *Spool) spill() error {
	f, err := os.CreateTemp(s.Dir, "zipline-spool-*")
	if err != nil {
		return fmt.Errorf("create spool temp file error: %w", err)
	}

	if _, err = f.Write(s.buf.B); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return fmt.Errorf("write buffered spool content error: %w", err)
	}

	bytebufferpool.Put(s.buf)
	s.buf = nil
	s.file = f
	s.spilled = true
	return nil
}

// Seek implements io.Seeker over whichever backing store (memory or disk) is currently active.
func (s *Spool) Seek(offset int64, whence int) (int64, error) {
	if s.spilled {
		n, err := s.file.Seek(offset, whence)
		if err == nil {
			s.pos = n
		}
		return n, err
	}

	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = s.pos
	case io.SeekEnd:
		base = int64(s.buf.Len())
	}
	s.pos = base + offset
	return s.pos, nil
}

// Read reads from the current position, matching the semantics of a normal file: reading at a
// position set by Seek.
func (s *Spool) Read(p []byte) (int, error) {
	if s.spilled {
		return s.file.Read(p)
	}

	if s.pos >= int64(s.buf.Len()) {
		return 0, io.EOF
	}
	n := copy(p, s.buf.B[s.pos:])
	s.pos += int64(n)
	return n, nil
}

// ReaderAt returns an io.ReaderAt over the spool's full content plus the content's length, for
// constructing a archive/zip.Reader once the spool has been finalized (no more writes expected).
func (s *Spool) ReaderAt() (io.ReaderAt, int64, error) {
	if s.spilled {
		fi, err := s.file.Stat()
		if err != nil {
			return nil, 0, fmt.Errorf("stat spool file error: %w", err)
		}
		return s.file, fi.Size(), nil
	}
	return bytes.NewReader(s.buf.B), int64(s.buf.Len()), nil
}

// Close removes the backing temp file, if one was created, and returns the in-memory buffer to the
// pool otherwise.
func (s *Spool) Close() error {
	if s.spilled {
		name := s.file.Name()
		if err := s.file.Close(); err != nil {
			return fmt.Errorf("close spool file error: %w", err)
		}
		return os.Remove(name)
	}

	if s.buf != nil {
		bytebufferpool.Put(s.buf)
		s.buf = nil
	}
	return nil
}
