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

// Package mapping loads the many-to-many target→mapped relation, either
// from an ntLink triple stream (with adaptive threshold filtering) or
// from a SAM/BAM alignment stream, and serves it read-only thereafter.
package mapping

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/shenwei356/go-logging"
)

var log = logging.MustGetLogger("mapping")

// ErrBadMappings flags a malformed record in the source file.
var ErrBadMappings = errors.New("mapping: malformed record")

// Record is one mapped-sequence supporter of a target.
type Record struct {
	MappedID   string
	MxInCommon uint32
}

// TargetIndex is the subset of seqidx.Index that the mapping store and
// its adaptive filter need: membership and length lookups.
type TargetIndex interface {
	Exists(id string) bool
	SeqLen(id string) (uint64, bool)
}

var emptyRecords = []Record{}

// Store is the immutable, read-only-after-construction mapping table.
type Store struct {
	byTarget map[string][]Record
}

// GetMappings returns the (possibly empty) record vector for target. An
// unknown target yields a shared empty-slice sentinel, never an error.
func (s *Store) GetMappings(target string) []Record {
	if recs, ok := s.byTarget[target]; ok {
		return recs
	}
	return emptyRecords
}

// Len returns the number of targets with an entry in the table. After
// ntLink adaptive filtering an entry may hold no records, and it still
// counts.
func (s *Store) Len() int { return len(s.byTarget) }

// Load dispatches on path's suffix: ".sam"/".bam" take the alignment
// path (no adaptive filter); anything else is treated as ntLink.
func Load(path string, targets TargetIndex, mxMin, mxMax uint, maxPer10kbp float64) (*Store, error) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".sam"):
		byTarget, err := loadSAM(path, targets)
		if err != nil {
			return nil, err
		}
		return &Store{byTarget: byTarget}, nil
	case strings.HasSuffix(lower, ".bam"):
		byTarget, err := loadBAM(path, targets)
		if err != nil {
			return nil, err
		}
		return &Store{byTarget: byTarget}, nil
	default:
		byTarget, err := loadNtLink(path, targets, mxMin)
		if err != nil {
			return nil, err
		}
		adaptiveFilter(byTarget, targets, mxMin, mxMax, maxPer10kbp)
		return &Store{byTarget: byTarget}, nil
	}
}
