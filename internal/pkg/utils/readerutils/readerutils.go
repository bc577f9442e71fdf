package readerutils

import (
	"errors"
	"io"
	"sync/atomic"
)

// CountingReader counts the bytes that pass through it.
type CountingReader struct {
	r io.Reader
	n *atomic.Uint64
}

// NewCountingReader wraps r and adds every byte read to n.
func NewCountingReader(r io.Reader, n *atomic.Uint64) *CountingReader {
	return &CountingReader{r: r, n: n}
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.n.Add(uint64(n))
	}
	return n, err
}

// NewCleanupReadCloser returns an io.ReadCloser that runs cleanup after closing rc.
func NewCleanupReadCloser(r io.Reader, rc io.Closer, cleanup func() error) io.ReadCloser {
	return struct {
		io.Reader
		io.Closer
	}{
		Reader: r,
		Closer: closerFunc(func() error {
			return errors.Join(
				rc.Close(),
				cleanup(),
			)
		}),
	}
}

// closerFunc is the basic Close method defined in io.Closer.
type closerFunc func() error

// Close performs close operation by the closerFunc.
func (fn closerFunc) Close() error {
	return fn()
}
