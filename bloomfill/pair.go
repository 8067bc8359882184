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

package bloomfill

import (
	"io"
	"sync"

	"github.com/cespare/xxhash/v2"
	boom "github.com/tylertreat/BoomFilters"
)

// countingArray is a counting Bloom filter with saturating 8-bit counters,
// as named by the glossary. tylertreat/BoomFilters' CountingBloomFilter
// exposes no per-key multiplicity (its Count reports the filter's total
// element count, and the library never surfaces the individual counter
// slots a key hashes to), so the admission law's post-increment read
// cannot be built on it; this is the counting array it would otherwise
// have been. Each key is hashed to `hashes` slots by double hashing
// (Kirsch-Mitzenmacher) off two independent 64-bit hashes of the key.
type countingArray struct {
	counters []byte
	hashes   uint
}

func newCountingArray(bytes, hashes uint) *countingArray {
	if hashes == 0 {
		hashes = 1
	}
	return &countingArray{counters: make([]byte, bytes), hashes: hashes}
}

func (c *countingArray) slots(key []byte) []uint64 {
	h1 := xxhash.Sum64(key)
	h2 := xxhash.Sum64(append([]byte{0xa5}, key...))
	n := uint64(len(c.counters))
	idx := make([]uint64, c.hashes)
	for i := range idx {
		idx[i] = (h1 + uint64(i)*h2) % n
	}
	return idx
}

// addAndCount increments every slot key hashes to, saturating at 255, and
// returns the minimum counter across those slots — the standard counting
// Bloom filter estimate of key's multiplicity.
func (c *countingArray) addAndCount(key []byte) uint {
	min := byte(255)
	for _, s := range c.slots(key) {
		if c.counters[s] < 255 {
			c.counters[s]++
		}
		if c.counters[s] < min {
			min = c.counters[s]
		}
	}
	return uint(min)
}

// Pair is one k's counting-filter/solid-filter combination: the
// thresholded cumulative evidence store and its deliverable subset. As
// in the teacher's count.go, the filters operate on raw byte keys — here
// the big-endian encoding of a rolled NtHash code, rather than a 2-bit
// packed k-mer, since k-mer identity in this system is its hash, never a
// reconstructable string.
type Pair struct {
	mu       sync.Mutex
	K        int
	Counting *countingArray
	Solid    *boom.PartitionedBloomFilter
}

// NewPair allocates, for k-mers of length k, a fresh counting filter of
// cbfBytes 8-bit counters with hashes slots per key, and a fresh solid
// filter: a BoomFilters partitioned Bloom filter created for bfBytes*8
// elements at a 1% false-positive rate. The solid filter's bit size and
// hash count follow from those two numbers; it is not bfBytes bytes long
// and does not use hashes.
func NewPair(k int, hashes uint, cbfBytes, bfBytes uint) *Pair {
	return &Pair{
		K:        k,
		Counting: newCountingArray(cbfBytes, hashes),
		Solid:    boom.NewPartitionedBloomFilter(bfBytes*8, 0.01),
	}
}

// IncrementAndTest atomically increments key's counter in the counting
// filter and, if the post-increment count reaches threshold, inserts key
// into the solid filter. It is the admission law of §4.3 and the
// thread-safety contract of §5: insert_thresh_contains must be internal
// increment-then-test, race-free even when many goroutines fill the same
// pair concurrently (the random-uniform worker variant).
func (p *Pair) IncrementAndTest(key []byte, threshold uint) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Counting.addAndCount(key) >= threshold {
		p.Solid.Add(key)
	}
}

// WriteSolidTo persists the solid filter in its native binary layout;
// the exact format is delegated to BoomFilters and unspecified here.
func (p *Pair) WriteSolidTo(w io.Writer) (int64, error) {
	return p.Solid.WriteTo(w)
}
