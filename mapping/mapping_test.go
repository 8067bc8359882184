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
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type fakeIndex struct {
	lens map[string]uint64
}

func (f fakeIndex) Exists(id string) bool        { _, ok := f.lens[id]; return ok }
func (f fakeIndex) SeqLen(id string) (uint64, bool) { v, ok := f.lens[id]; return v, ok }

func writeNtLink(t *testing.T, dir string, triples [][3]string) string {
	t.Helper()
	var b strings.Builder
	for _, tr := range triples {
		fmt.Fprintf(&b, "%s %s %s\n", tr[0], tr[1], tr[2])
	}
	p := filepath.Join(dir, "mappings.ntlink")
	if err := os.WriteFile(p, []byte(b.String()), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

// TestFilterBoundary mirrors seed scenario S3: 30 entries all mx=1 under
// a target of length 10000 and per10kbp=2.0 should converge to tau*=2.
func TestFilterBoundary(t *testing.T) {
	dir := t.TempDir()
	triples := make([][3]string, 30)
	for i := range triples {
		triples[i] = [3]string{fmt.Sprintf("m%d", i), "t", "1"}
	}
	path := writeNtLink(t, dir, triples)

	idx := fakeIndex{lens: map[string]uint64{"t": 10000}}
	store, err := Load(path, idx, 1, 30, 2.0)
	if err != nil {
		t.Fatal(err)
	}
	if got := len(store.GetMappings("t")); got != 0 {
		t.Errorf("residual len = %d, want 0 (all mx=1 < tau*=2)", got)
	}
}

// TestFilterCapOvershoot mirrors seed scenario S4: cap=1, count(min)=50,
// count(max)=0 <= cap, so tau*=max and the residual empties out.
func TestFilterCapOvershoot(t *testing.T) {
	dir := t.TempDir()
	triples := make([][3]string, 50)
	for i := range triples {
		triples[i] = [3]string{fmt.Sprintf("m%d", i), "t", "1"}
	}
	path := writeNtLink(t, dir, triples)

	idx := fakeIndex{lens: map[string]uint64{"t": 10000}}
	store, err := Load(path, idx, 1, 2, 0.0001)
	if err != nil {
		t.Fatal(err)
	}
	if got := len(store.GetMappings("t")); got != 0 {
		t.Errorf("residual len = %d, want 0", got)
	}
}

func TestUnknownTargetSkipped(t *testing.T) {
	dir := t.TempDir()
	path := writeNtLink(t, dir, [][3]string{{"m1", "ghost", "5"}})

	idx := fakeIndex{lens: map[string]uint64{"t": 1000}}
	store, err := Load(path, idx, 1, 10, 100)
	if err != nil {
		t.Fatal(err)
	}
	if got := len(store.GetMappings("ghost")); got != 0 {
		t.Errorf("unknown target should have no mappings, got %d", got)
	}
}

func TestUnknownTargetReturnsEmptyNotNil(t *testing.T) {
	idx := fakeIndex{lens: map[string]uint64{}}
	store := &Store{byTarget: map[string][]Record{}}
	_ = idx
	if recs := store.GetMappings("nope"); recs == nil {
		t.Error("GetMappings on unknown target must return empty slice, not nil")
	}
}

func TestSAMParsesQnameRname(t *testing.T) {
	dir := t.TempDir()
	content := "@HD\tVN:1.6\n" +
		"read1\t0\tT1\t1\t60\t4M\t*\t0\t0\tACGT\tFFFF\n" +
		"read2\t4\t*\t0\t0\t*\t*\t0\t0\tACGT\tFFFF\n"
	p := filepath.Join(dir, "m.sam")
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	idx := fakeIndex{lens: map[string]uint64{"T1": 1000}}
	store, err := Load(p, idx, 1, 10, 100)
	if err != nil {
		t.Fatal(err)
	}
	recs := store.GetMappings("T1")
	if len(recs) != 1 || recs[0].MappedID != "read1" {
		t.Errorf("got %+v", recs)
	}
}
