// Copyright © 2018 Wei Shen <shenwei356@gmail.com>
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

// Package ioutil provides gzip-transparent file helpers; the ntLink
// mapping loader reads its input through InStream.
package ioutil

import (
	"bufio"
	"io"
	"os"

	"github.com/klauspost/pgzip"
	"github.com/pkg/errors"
)

// gzipMagic is the two leading bytes of a gzip stream.
var gzipMagic = []byte{0x1f, 0x8b}

// InStream opens file for reading, transparently wrapping it in a gzip
// reader when the leading bytes carry the gzip magic number. "-" means
// stdin. The caller must call the returned io.Closer (may be nil).
func InStream(file string) (*bufio.Reader, io.Closer, error) {
	var r io.Reader
	var f *os.File
	var err error

	if file == "-" {
		f = os.Stdin
	} else {
		f, err = os.Open(file)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "open %s", file)
		}
	}
	r = f

	br := bufio.NewReaderSize(r, os.Getpagesize())
	peek, err := br.Peek(2)
	if err == nil && len(peek) == 2 && peek[0] == gzipMagic[0] && peek[1] == gzipMagic[1] {
		gr, err := pgzip.NewReader(br)
		if err != nil {
			f.Close()
			return nil, nil, errors.Wrapf(err, "gzip %s", file)
		}
		return bufio.NewReaderSize(gr, os.Getpagesize()), multiCloser{gr, f}, nil
	}

	return br, f, nil
}

// OutStream creates file for writing, gzip-compressing when gzipped is
// true. "-" means stdout, which is never closed.
func OutStream(file string, gzipped bool) (*bufio.Writer, io.Closer, error) {
	var w *os.File
	var err error

	if file == "-" {
		w = os.Stdout
	} else {
		w, err = os.Create(file)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "create %s", file)
		}
	}

	if gzipped {
		gw := pgzip.NewWriter(w)
		if file == "-" {
			return bufio.NewWriterSize(gw, os.Getpagesize()), gw, nil
		}
		return bufio.NewWriterSize(gw, os.Getpagesize()), multiCloser{gw, w}, nil
	}
	if file == "-" {
		return bufio.NewWriterSize(w, os.Getpagesize()), nil, nil
	}
	return bufio.NewWriterSize(w, os.Getpagesize()), w, nil
}

// multiCloser closes an inner writer/reader (e.g. a gzip stream) before
// the backing file descriptor.
type multiCloser struct {
	inner io.Closer
	outer io.Closer
}

func (m multiCloser) Close() error {
	if err := m.inner.Close(); err != nil {
		m.outer.Close()
		return err
	}
	return m.outer.Close()
}
