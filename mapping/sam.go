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
	"strings"

	"github.com/pkg/errors"
	"github.com/shenwei356/breader"
)

// samPair is the (mapped_id, target_id) extracted from one alignment
// line's QNAME/RNAME columns; FLAG and every other column are read by
// the SAM grammar but unused here (the source ignores FLAG entirely, so
// secondary/supplementary alignments are not filtered — see DESIGN.md).
type samPair struct {
	mappedID, targetID string
}

// loadSAM reads a text SAM stream one line per record via breader, which
// is safe here because a SAM record never spans multiple lines.
func loadSAM(path string, targets TargetIndex) (map[string][]Record, error) {
	parseLine := func(line string) (interface{}, bool, error) {
		if line == "" {
			return nil, false, nil
		}
		if strings.HasPrefix(line, "@") {
			return nil, false, nil
		}
		cols := strings.Split(line, "\t")
		if len(cols) < 3 {
			return nil, false, errors.Wrapf(ErrBadMappings, "short SAM line: %q", line)
		}
		return samPair{mappedID: cols[0], targetID: cols[2]}, true, nil
	}

	reader, err := breader.NewBufferedReader(path, 4, 100, parseLine)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}

	byTarget := make(map[string][]Record, 1024)
	for chunk := range reader.Ch {
		if chunk.Err != nil {
			return nil, errors.Wrap(chunk.Err, "read SAM stream")
		}
		for _, data := range chunk.Data {
			p := data.(samPair)
			if !targets.Exists(p.targetID) {
				continue
			}
			byTarget[p.targetID] = append(byTarget[p.targetID], Record{MappedID: p.mappedID})
		}
	}
	return byTarget, nil
}
