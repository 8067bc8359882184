// Copyright © 2018-2020 Wei Shen <shenwei356@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package seqidx

import (
	"os"

	"github.com/pkg/errors"
)

// SeqReader is a per-caller scoped view over an Index's backing sequence
// file: its own descriptor and its own reusable buffer, matching the
// "each calling thread maintains its own open file handle and buffer"
// contract. Never share a SeqReader across goroutines; create one per
// worker goroutine instead (see Design Notes on thread-local get_seq).
type SeqReader struct {
	idx *Index
	f   *os.File
	buf []byte
}

// NewSeqReader opens idx's backing file and returns a scoped reader. The
// caller owns the returned SeqReader and must Close it when done.
func (idx *Index) NewSeqReader() (*SeqReader, error) {
	f, err := os.Open(idx.path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", idx.path)
	}
	return &SeqReader{idx: idx, f: f, buf: make([]byte, MaxSeqLen)}, nil
}

// Close releases the underlying file descriptor.
func (r *SeqReader) Close() error {
	return r.f.Close()
}

// Get returns the raw sequence bytes for id. The returned slice aliases
// r's internal buffer and is only valid until the next call to Get on
// the same SeqReader (borrowed, not owned) — copy it if it must outlive
// that call.
func (r *SeqReader) Get(id string) ([]byte, error) {
	c, ok := r.idx.records[id]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownID, "%q", id)
	}
	if c.SeqLen > MaxSeqLen {
		return nil, errors.Wrapf(ErrSeqTooLarge, "%q: %d bytes", id, c.SeqLen)
	}
	buf := r.buf[:c.SeqLen]
	n, err := r.f.ReadAt(buf, int64(c.SeqStart))
	if err != nil {
		return nil, errors.Wrapf(err, "read %s @%d", id, c.SeqStart)
	}
	if uint64(n) != c.SeqLen {
		return nil, errors.Wrapf(ErrBadSeqFormat, "%q: short read", id)
	}
	return buf, nil
}
