package logio

import (
	"bytes"
	"sync"
)

// Writer is an io.Writer that sends each completed line through Logf.
// It is safe for concurrent use.
type Writer struct {
	Logf func(string, ...interface{})

	mu  sync.Mutex
	buf bytes.Buffer
}

func (lw *Writer) Write(p []byte) (n int, err error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	lw.buf.Write(p)
	lw.flushLines(false)
	return len(p), nil
}

// Sync flushes any partial line.
func (lw *Writer) Sync() error {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	lw.flushLines(true)
	return nil
}

func (lw *Writer) Close() error {
	return lw.Sync()
}

func (lw *Writer) flushLines(all bool) {
	for lw.buf.Len() > 0 {
		i := bytes.IndexByte(lw.buf.Bytes(), '\n')
		switch {
		case i >= 0:
			lw.Logf("%s", lw.buf.Next(i))
			lw.buf.Next(1)
		case all:
			lw.Logf("%s", lw.buf.Next(lw.buf.Len()))
		default:
			return
		}
	}
}
