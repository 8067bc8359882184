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

import "fmt"

// ErrThresholdTooLow flags T0 < 4, fatal per §4.3.
var ErrThresholdTooLow = fmt.Errorf("bloomfill: base threshold below 4")

// Fill rolls s across every k in ks and feeds each k-mer's canonical
// hash into pairs[i].IncrementAndTest with the ramped threshold
// T0-2+i, admitting it into the solid filter once that threshold is
// reached. pairs and ks are parallel, indexed 0..n-1.
func Fill(s []byte, ks []int, t0 uint, pairs []*Pair) error {
	if t0 < 4 {
		return ErrThresholdTooLow
	}
	for i, k := range ks {
		threshold := t0 - 2 + uint(i)
		w, err := NewWindow(s, k)
		if err == ErrShortSeq {
			continue // sequence shorter than this k contributes nothing
		}
		if err != nil {
			return err
		}
		p := pairs[i]
		for {
			code, ok := w.Next()
			if !ok {
				break
			}
			p.IncrementAndTest(Key(code), threshold)
		}
	}
	return nil
}
