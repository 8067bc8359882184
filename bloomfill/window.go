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

// Package bloomfill rolls k-mers across a mapped sequence with NtHash and
// admits them into per-k solid-k-mer filters once their multiplicity in a
// counting filter crosses a ramped threshold.
package bloomfill

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
	"github.com/will-rowe/nthash"
)

// ErrInvalidK means k < 1.
var ErrInvalidK = fmt.Errorf("bloomfill: invalid k")

// ErrShortSeq means the sequence is shorter than k.
var ErrShortSeq = fmt.Errorf("bloomfill: sequence shorter than k")

// Window rolls the canonical NtHash code for one k across one sequence.
// It wraps will-rowe/nthash the same way the teacher's top-level
// iterator wraps it for minimizer sketches, but always asks for the
// canonical strand since k-mer identity here must be strand-agnostic.
type Window struct {
	hasher *nthash.NTHi
}

// NewWindow builds a rolling window of length k over s.
func NewWindow(s []byte, k int) (*Window, error) {
	if k < 1 {
		return nil, ErrInvalidK
	}
	if len(s) < k {
		return nil, ErrShortSeq
	}
	hasher, err := nthash.NewHasher(&s, uint(k))
	if err != nil {
		return nil, errors.Wrap(err, "new hasher")
	}
	return &Window{hasher: hasher}, nil
}

// Next returns the next canonical NtHash code, or ok=false at the end.
func (w *Window) Next() (code uint64, ok bool) {
	return w.hasher.Next(true)
}

// Key encodes an NtHash code as the fixed-width big-endian byte key fed
// into the Bloom filter primitives.
func Key(code uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], code)
	return b[:]
}
