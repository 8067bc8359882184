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

import "testing"

func TestThresholdTooLowIsFatal(t *testing.T) {
	pairs := []*Pair{NewPair(4, 4, 1<<12, 1<<12)}
	if err := Fill([]byte("ACGTACGT"), []int{4}, 3, pairs); err != ErrThresholdTooLow {
		t.Fatalf("want ErrThresholdTooLow, got %v", err)
	}
}

// TestAdmissionLaw pins seed scenario S5's shape: a periodic 32-base read
// fed once through k=4 with T0=4 (ramped threshold 2 for the first k)
// should admit its k-mers into the solid filter, since each k-mer recurs
// within the read enough times.
func TestAdmissionLaw(t *testing.T) {
	s := []byte("ACGTACGTACGTACGTACGTACGTACGTACGT")
	pairs := []*Pair{NewPair(4, 4, 1<<16, 1<<16)}

	if err := Fill(s, []int{4}, 4, pairs); err != nil {
		t.Fatal(err)
	}

	w, err := NewWindow(s, 4)
	if err != nil {
		t.Fatal(err)
	}
	code, ok := w.Next()
	if !ok {
		t.Fatal("expected at least one k-mer")
	}
	if !pairs[0].Solid.Test(Key(code)) {
		t.Errorf("first k-mer should be solid after repeated exposure on a periodic sequence")
	}
}

func TestShortSequenceSkipped(t *testing.T) {
	pairs := []*Pair{NewPair(21, 4, 1<<12, 1<<12)}
	if err := Fill([]byte("ACG"), []int{21}, 4, pairs); err != nil {
		t.Fatalf("short sequence for one k should be skipped, not fatal: %v", err)
	}
}
