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

package batch

import (
	"math"

	"github.com/shenwei356/targetedbf/internal/config"
	"github.com/shenwei356/targetedbf/internal/prng"
	"github.com/shenwei356/targetedbf/mapping"
	"github.com/twotwotwo/sorts"
)

// MappedLengther resolves a mapped sequence's length for quality-ranked
// T0 estimation.
type MappedLengther interface {
	SeqLen(id string) (uint64, bool)
	PhredAvg(id string) float64
}

// byQuality sorts (phred_avg desc, mapped_id asc), matching the
// preferred primary worker's deterministic ingestion order (§4.4, §5).
type byQuality struct {
	recs   []mapping.Record
	mapped MappedLengther
}

func (b *byQuality) Len() int { return len(b.recs) }
func (b *byQuality) Less(i, j int) bool {
	pi, pj := b.mapped.PhredAvg(b.recs[i].MappedID), b.mapped.PhredAvg(b.recs[j].MappedID)
	if pi != pj {
		return pi > pj
	}
	return b.recs[i].MappedID < b.recs[j].MappedID
}
func (b *byQuality) Swap(i, j int) { b.recs[i], b.recs[j] = b.recs[j], b.recs[i] }

// selectQualityRanked sorts recs by quality and returns the first N
// entries plus their derived base threshold T0.
func selectQualityRanked(recs []mapping.Record, n int, mapped MappedLengther) ([]mapping.Record, uint) {
	cp := make([]mapping.Record, len(recs))
	copy(cp, recs)
	sorts.Quicksort(&byQuality{recs: cp, mapped: mapped})

	if n > len(cp) {
		n = len(cp)
	}
	chosen := cp[:n]

	var b uint64
	for _, r := range chosen {
		l, _ := mapped.SeqLen(r.MappedID)
		b += l
	}
	t0 := math.Round(4.66943 + 2.11391e-7*float64(b))
	if t0 < config.MinKmerThreshold {
		t0 = config.MinKmerThreshold
	} else if t0 > config.MaxKmerThreshold {
		t0 = config.MaxKmerThreshold
	}
	return chosen, uint(t0)
}

// selectRandomUniform draws n distinct indices from [0, len(recs)) via
// Floyd's algorithm, using the caller-supplied generator (never a
// package-level global — see Design Notes on the process-wide PRNG).
func selectRandomUniform(recs []mapping.Record, n int, rng *prng.Source) []mapping.Record {
	if n >= len(recs) {
		out := make([]mapping.Record, len(recs))
		copy(out, recs)
		return out
	}
	chosen := make(map[int]struct{}, n)
	for j := len(recs) - n; j < len(recs); j++ {
		t := rng.Intn(j + 1)
		if _, ok := chosen[t]; ok {
			chosen[j] = struct{}{}
		} else {
			chosen[t] = struct{}{}
		}
	}
	out := make([]mapping.Record, 0, n)
	for idx := range chosen {
		out = append(out, recs[idx])
	}
	return out
}
