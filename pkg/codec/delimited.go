package codec

import (
	"bytes"
	"slices"
)

// Delimited writes records back to back, each followed by a delimiter.
type Delimited struct {
	targetSize int
	delim      []byte
	buf        bytes.Buffer
}

var _ BatchCodec = (*Delimited)(nil)

func NewDelimited(targetSize int, delim []byte) (*Delimited, error) {
	if err := validate(targetSize, delim); err != nil {
		return nil, err
	}
	d := &Delimited{targetSize: targetSize, delim: slices.Clone(delim)}
	d.buf.Grow(targetSize)
	return d, nil
}

func (d *Delimited) Write(record []byte) ([]byte, error) {
	if bytes.Contains(record, d.delim) {
		return nil, ErrRecordContainsDelimiter
	}

	var out []byte
	if d.buf.Len()+len(record)+len(d.delim) > d.targetSize {
		out, _ = d.Flush()
	}
	d.buf.Write(record)
	d.buf.Write(d.delim)
	return out, nil
}

func (d *Delimited) Flush() ([]byte, error) {
	if d.buf.Len() == 0 {
		return nil, nil
	}
	out := bytes.Clone(d.buf.Bytes())
	d.buf.Reset()
	return out, nil
}

func (d *Delimited) Read(blob []byte) ([][]byte, error) {
	return split(blob, d.delim), nil
}
