package storage

import "io"

// countingReadCloser reports the number of bytes read when closed.
type countingReadCloser struct {
	rc     io.ReadCloser
	bytes  int64
	report func(int64)
}

func NewCountingReadCloser(rc io.ReadCloser, report func(int64)) io.ReadCloser {
	return &countingReadCloser{rc: rc, report: report}
}

func (c *countingReadCloser) Read(p []byte) (int, error) {
	n, err := c.rc.Read(p)
	c.bytes += int64(n)
	return n, err
}

func (c *countingReadCloser) Close() error {
	if c.report != nil {
		c.report(c.bytes)
		c.report = nil
	}
	return c.rc.Close()
}
