package codec

import (
	"bytes"
	"fmt"
	"io"
	"slices"

	"github.com/klauspost/compress/gzip"
)

// gzipFooterSize is reserved in every size check; the footer is only written
// when a blob is completed.
const gzipFooterSize = 8

// GzipDelimited is Delimited with each blob compressed as one gzip member.
// The compressor is flushed after every record so the size of the blob so far
// is known before the next record is added.
type GzipDelimited struct {
	targetSize int
	delim      []byte
	buf        bytes.Buffer
	zw         *gzip.Writer
	records    int
}

var _ BatchCodec = (*GzipDelimited)(nil)

func NewGzipDelimited(targetSize int, delim []byte) (*GzipDelimited, error) {
	if err := validate(targetSize, delim); err != nil {
		return nil, err
	}
	return &GzipDelimited{targetSize: targetSize, delim: slices.Clone(delim)}, nil
}

func (g *GzipDelimited) Write(record []byte) ([]byte, error) {
	if bytes.Contains(record, g.delim) {
		return nil, ErrRecordContainsDelimiter
	}

	var out []byte
	if g.buf.Len()+len(record)+len(g.delim)+gzipFooterSize > g.targetSize {
		var err error
		if out, err = g.Flush(); err != nil {
			return nil, err
		}
	}

	if g.zw == nil {
		g.zw = gzip.NewWriter(&g.buf)
	}
	if _, err := g.zw.Write(record); err != nil {
		return nil, fmt.Errorf("compress record: %w", err)
	}
	if _, err := g.zw.Write(g.delim); err != nil {
		return nil, fmt.Errorf("compress delimiter: %w", err)
	}
	if err := g.zw.Flush(); err != nil {
		return nil, fmt.Errorf("flush compressor: %w", err)
	}
	g.records++
	return out, nil
}

func (g *GzipDelimited) Flush() ([]byte, error) {
	if g.records == 0 {
		return nil, nil
	}
	if err := g.zw.Close(); err != nil {
		return nil, fmt.Errorf("close compressor: %w", err)
	}

	out := bytes.Clone(g.buf.Bytes())
	g.buf.Reset()
	g.zw = nil
	g.records = 0
	return out, nil
}

func (g *GzipDelimited) Read(blob []byte) ([][]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("open gzip blob: %w", err)
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompress blob: %w", err)
	}
	return split(data, g.delim), nil
}
