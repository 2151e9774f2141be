package feed

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/kubo-market/airwatch/internal/domain"
)

const maxLineSize = 1 << 20

// Reader replays newline-delimited JSON samples from r, e.g. a recorded file or stdin.
type Reader struct {
	scanner *bufio.Scanner
	closer  io.Closer
	decoder *Decoder
	line    int
}

// NewReader creates a Reader over r. If r is an io.Closer it is closed by Close.
func NewReader(r io.Reader, decoder *Decoder) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	rd := &Reader{scanner: sc, decoder: decoder}
	if c, ok := r.(io.Closer); ok {
		rd.closer = c
	}
	return rd
}

// Next implements Feed. Blank and malformed lines are skipped.
func (r *Reader) Next(ctx context.Context) (domain.Sample, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.Sample{}, err
		}
		if !r.scanner.Scan() {
			if err := r.scanner.Err(); err != nil {
				return domain.Sample{}, fmt.Errorf("read line %d: %w", r.line+1, err)
			}
			return domain.Sample{}, domain.ErrFeedClosed
		}
		r.line++
		line := bytes.TrimSpace(r.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if s, ok := r.decoder.Decode(line); ok {
			return s, nil
		}
	}
}

// Close implements Feed.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
