// Copyright 2021 The s3x Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package body

import (
	"bytes"
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
)

// ErrNotRepeatable is returned, possibly wrapped, by Content.Reset when
// the content cannot be rewound to its mark.
var ErrNotRepeatable = errors.New("s3x/body: content is not repeatable")

// ErrDetached is returned by Reader.Read once the Reader has been
// detached from its content.
var ErrDetached = errors.New("s3x/body: reader detached from content")

// A Kind identifies how a Content replays its bytes.
type Kind int

const (
	// NonReplayable content can be read once. It can only be reset if
	// nothing has been read since the mark.
	NonReplayable Kind = iota
	// Buffered content keeps the bytes read since the mark in memory,
	// up to a limit, and replays them from memory after a reset.
	Buffered
	// File content is backed by a file. Reset reopens the file and
	// seeks to the mark, so it always succeeds.
	File
)

var kindNames = []string{"NonReplayable", "Buffered", "File"}

// String returns the name of the kind.
func (k Kind) String() string {
	return kindNames[k]
}

// A Content is a request body that can be marked and reset so that the
// same bytes can be sent again when a request attempt is retried.
//
// A Content has exactly one mark. Calling Mark replaces the previous
// mark. The zero value is not usable; construct a Content with NewBytes,
// NewBuffered, NewFile or NewNonReplayable.
//
// Content is not safe for concurrent use.
type Content struct {
	kind   Kind
	length int64

	// Buffered and NonReplayable.
	src      io.Reader
	limit    int
	buf      []byte
	pos      int
	overflow bool

	// File.
	path  string
	start int64
	f     *os.File

	offset int64
	mark   int64
}

// NewBytes returns Buffered content which replays b. Because the limit
// equals len(b), the content can always be reset.
func NewBytes(b []byte) *Content {
	c := NewBuffered(bytes.NewReader(b), len(b))
	c.length = int64(len(b))
	return c
}

// NewBuffered returns Buffered content reading from r. Reset succeeds as
// long as no more than limit bytes have been read since the mark.
func NewBuffered(r io.Reader, limit int) *Content {
	if r == nil {
		panic("s3x/body: nil reader")
	}
	if limit < 0 {
		panic("s3x/body: negative limit")
	}
	return &Content{
		kind:   Buffered,
		length: -1,
		src:    r,
		limit:  limit,
	}
}

// NewNonReplayable returns content that reads from r once.
func NewNonReplayable(r io.Reader) *Content {
	if r == nil {
		panic("s3x/body: nil reader")
	}
	return &Content{
		kind:   NonReplayable,
		length: -1,
		src:    r,
	}
}

// NewFile returns File content made of the bytes of the named file
// starting at offset.
func NewFile(path string, offset int64) (*Content, error) {
	if offset < 0 {
		return nil, errors.Errorf("s3x/body: negative offset %d", offset)
	}
	f, err := openAt(path, offset)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrapf(err, "s3x/body: stat %s", path)
	}
	length := info.Size() - offset
	if length < 0 {
		length = 0
	}
	return &Content{
		kind:   File,
		length: length,
		path:   path,
		start:  offset,
		f:      f,
	}, nil
}

func openAt(path string, offset int64) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "s3x/body: open")
	}
	if offset > 0 {
		if _, err = f.Seek(offset, io.SeekStart); err != nil {
			_ = f.Close()
			return nil, errors.Wrapf(err, "s3x/body: seek %s", path)
		}
	}
	return f, nil
}

// Kind returns the content's replay kind.
func (c *Content) Kind() Kind {
	return c.kind
}

// Len returns the total length of the content in bytes, or -1 if the
// length is not known in advance.
func (c *Content) Len() int64 {
	return c.length
}

// Offset returns the number of bytes consumed from the start of the
// content.
func (c *Content) Offset() int64 {
	return c.offset
}

// Consumed returns the number of bytes read since the mark.
func (c *Content) Consumed() int64 {
	return c.offset - c.mark
}

// Read reads the next bytes of the content.
func (c *Content) Read(p []byte) (int, error) {
	switch c.kind {
	case Buffered:
		return c.readBuffered(p)
	case File:
		if c.f == nil {
			return 0, errors.Errorf("s3x/body: read of closed file content %s", c.path)
		}
		n, err := c.f.Read(p)
		c.offset += int64(n)
		return n, err
	default:
		n, err := c.src.Read(p)
		c.offset += int64(n)
		return n, err
	}
}

func (c *Content) readBuffered(p []byte) (int, error) {
	if c.pos < len(c.buf) {
		n := copy(p, c.buf[c.pos:])
		c.pos += n
		c.offset += int64(n)
		return n, nil
	}
	n, err := c.src.Read(p)
	if n > 0 {
		c.offset += int64(n)
		if !c.overflow {
			if len(c.buf)+n > c.limit {
				c.overflow = true
				c.buf = nil
				c.pos = 0
			} else {
				c.buf = append(c.buf, p[:n]...)
				c.pos = len(c.buf)
			}
		}
	}
	return n, err
}

// Mark records the current offset as the point Reset returns to. Any
// previous mark is forgotten.
func (c *Content) Mark() {
	if c.kind == Buffered {
		c.buf = c.buf[c.pos:]
		c.pos = 0
		c.overflow = false
	}
	c.mark = c.offset
}

// Reset rewinds the content to the mark.
//
// Reset always succeeds for File content, provided the file can still
// be opened. For Buffered content it fails if more than the limit was
// read since the mark. For NonReplayable content it fails if any byte
// was read since the mark. Errors caused by the content not being
// replayable wrap ErrNotRepeatable.
func (c *Content) Reset() error {
	switch c.kind {
	case File:
		if c.f != nil {
			_ = c.f.Close()
			c.f = nil
		}
		f, err := openAt(c.path, c.start+c.mark)
		if err != nil {
			return err
		}
		c.f = f
	case Buffered:
		if c.overflow {
			return errors.Wrapf(ErrNotRepeatable, "read %d bytes since mark, limit is %d",
				c.Consumed(), c.limit)
		}
		c.pos = 0
	default:
		if c.Consumed() > 0 {
			return errors.Wrapf(ErrNotRepeatable, "read %d bytes since mark", c.Consumed())
		}
	}
	c.offset = c.mark
	return nil
}

// IsRepeatable reports whether Reset can currently succeed. File content
// is always repeatable; Buffered content is repeatable until more than
// the limit has been read since the mark; NonReplayable content is
// never repeatable.
func (c *Content) IsRepeatable() bool {
	switch c.kind {
	case File:
		return true
	case Buffered:
		return !c.overflow
	default:
		return false
	}
}

// Close releases the file held by File content, and closes the source
// of other content if it is an io.Closer.
func (c *Content) Close() error {
	if c.kind == File {
		if c.f == nil {
			return nil
		}
		err := c.f.Close()
		c.f = nil
		return err
	}
	if closer, ok := c.src.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// A Reader is one request attempt's handle on a Content. The HTTP
// transport may go on reading a request body after it has returned the
// response, so each attempt reads through its own Reader, and the owner
// of the Content detaches it before calling Consumed, Reset or starting
// the next attempt. A detached Reader never touches the Content again.
//
// Reader is safe for concurrent use.
type Reader struct {
	lock sync.Mutex
	c    *Content
}

// NewReader returns a new Reader reading from c.
func (c *Content) NewReader() *Reader {
	return &Reader{c: c}
}

// Read reads from the content, or returns ErrDetached if r has been
// detached.
func (r *Reader) Read(p []byte) (int, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.c == nil {
		return 0, ErrDetached
	}
	return r.c.Read(p)
}

// Detach cuts r off from its content. It waits for a Read in progress
// to return, so if the content's source blocks, Detach blocks too.
func (r *Reader) Detach() {
	r.lock.Lock()
	r.c = nil
	r.lock.Unlock()
}

// Close detaches r. It does not close the content, which outlives the
// attempt.
func (r *Reader) Close() error {
	r.Detach()
	return nil
}
