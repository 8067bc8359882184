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

package mapping

import (
	"io"
	"os"

	"github.com/biogo/hts/bam"
	"github.com/pkg/errors"
)

// loadBAM decodes a binary BAM stream via biogo/hts/bam, taking the same
// QNAME/RNAME columns as the text SAM path. Unmapped reads (RNAME "*")
// carry no reference and are skipped, matching a target miss.
func loadBAM(path string, targets TargetIndex) (map[string][]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	r, err := bam.NewReader(f, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "bam header %s", path)
	}
	defer r.Close()

	byTarget := make(map[string][]Record, 1024)
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "read BAM record %s", path)
		}
		if rec.Ref == nil {
			continue
		}
		targetID := rec.Ref.Name()
		if !targets.Exists(targetID) {
			continue
		}
		byTarget[targetID] = append(byTarget[targetID], Record{MappedID: rec.Name})
	}
	return byTarget, nil
}
