package pkg

import (
	"io"

	"go.uber.org/multierr"
)

// CombinedWriter fans every write out to all of its writers, e.g. stdout and
// a rotating log file. A failing writer does not stop the others.
type CombinedWriter struct {
	Writers []io.Writer
}

func NewCombinedWriter(writers ...io.Writer) *CombinedWriter {
	return &CombinedWriter{
		Writers: writers,
	}
}

// Write reports the bytes written to the first healthy writer, so callers
// like logrus do not treat a fan-out as a short write.
func (cw *CombinedWriter) Write(p []byte) (int, error) {
	var err error
	n := -1
	for _, w := range cw.Writers {
		written, werr := w.Write(p)
		if werr != nil {
			err = multierr.Append(err, werr)
			continue
		}
		if n < 0 {
			n = written
		}
	}
	if n < 0 {
		n = 0
	}
	return n, err
}
