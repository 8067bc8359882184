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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shenwei356/targetedbf/internal/config"
	"github.com/shenwei356/targetedbf/internal/prng"
	"github.com/shenwei356/targetedbf/mapping"
	"github.com/shenwei356/targetedbf/seqidx"
)

type fakeTargets struct{ lens map[string]uint64 }

func (f fakeTargets) SeqLen(id string) (uint64, bool) { v, ok := f.lens[id]; return v, ok }
func (f fakeTargets) Exists(id string) bool           { _, ok := f.lens[id]; return ok }

func buildMappedIdx(t *testing.T, dir string, records map[string]string) *seqidx.Index {
	t.Helper()
	var b strings.Builder
	for id, seq := range records {
		b.WriteString(">" + id + "\n" + seq + "\n")
	}
	p := filepath.Join(dir, "mapped.fa")
	if err := os.WriteFile(p, []byte(b.String()), 0644); err != nil {
		t.Fatal(err)
	}
	idx, err := seqidx.Build(p)
	if err != nil {
		t.Fatal(err)
	}
	return idx
}

// samStore builds a mapping.Store from a synthesized SAM file, since
// Store's fields are unexported outside its own package.
func samStore(t *testing.T, dir string, targets fakeTargets, pairs [][2]string) *mapping.Store {
	t.Helper()
	var b strings.Builder
	for _, p := range pairs {
		b.WriteString(p[0] + "\t0\t" + p[1] + "\t1\t60\t4M\t*\t0\t0\tACGT\tFFFF\n")
	}
	path := filepath.Join(dir, "m.sam")
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatal(err)
	}
	st, err := mapping.Load(path, targets, 1, 10, 1e9)
	if err != nil {
		t.Fatal(err)
	}
	return st
}

func TestWorkerRunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	mappedIdx := buildMappedIdx(t, dir, map[string]string{
		"r1": "ACGTACGTACGTACGTACGTACGTACGTACGT",
	})

	targets := fakeTargets{lens: map[string]uint64{"T1": 1000, "T2": 1000}}
	st := samStore(t, dir, targets, [][2]string{{"r1", "T1"}, {"r1", "T2"}})

	cfg := &config.Config{
		Ks:                   []int{4},
		Hashes:               4,
		SubsampleMaxPer10kbp: 1e6,
		Policy:               config.QualityRanked,
		Threads:              1,
		CountingFilterBytes:  1 << 12,
		SolidFilterBytes:     1 << 12,
	}

	w := NewWorker(cfg, targets, st, mappedIdx, prng.New(1))

	inR, inW, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	go func() {
		inW.WriteString("T1 T2 x")
		inW.Close()
	}()

	if n, err := w.Run("B", inR, dir); err != nil {
		t.Fatal(err)
	} else if n != 2 {
		t.Errorf("expected 2 targets processed, got %d", n)
	}

	if _, err := os.Stat(filepath.Join(dir, "B-k4.bf")); err != nil {
		t.Errorf("expected output filter file: %v", err)
	}
}

func TestUnknownTargetSkippedNotFatal(t *testing.T) {
	dir := t.TempDir()
	mappedIdx := buildMappedIdx(t, dir, map[string]string{"r1": "ACGTACGTACGTACGTACGTACGTACGTACGT"})
	targets := fakeTargets{lens: map[string]uint64{}}
	st := samStore(t, dir, targets, nil)

	cfg := &config.Config{
		Ks: []int{4}, Hashes: 4, SubsampleMaxPer10kbp: 1e6,
		Policy: config.QualityRanked, Threads: 1,
		CountingFilterBytes: 1 << 12, SolidFilterBytes: 1 << 12,
	}
	w := NewWorker(cfg, targets, st, mappedIdx, nil)

	inR, inW, _ := os.Pipe()
	go func() { inW.WriteString("ghost x"); inW.Close() }()

	if _, err := w.Run("B2", inR, dir); err != nil {
		t.Fatalf("unknown target must not be fatal: %v", err)
	}
}
