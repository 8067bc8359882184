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
	"bufio"
	"math"
	"strconv"

	"github.com/pkg/errors"

	tbfio "github.com/shenwei356/targetedbf/internal/ioutil"
)

// loadNtLink reads the whitespace-separated (mapped_id, target_id, mx)
// triple stream. Line breaks carry no meaning — triples are recovered
// positionally — so this scans words rather than lines; shenwei356/breader
// is line-oriented and would risk splitting a triple across a chunk
// boundary, so plain bufio.Scanner with ScanWords is used here instead.
func loadNtLink(path string, targets TargetIndex, mxMin uint) (map[string][]Record, error) {
	r, closer, err := tbfio.InStream(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	if closer != nil {
		defer closer.Close()
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	sc.Split(bufio.ScanWords)

	byTarget := make(map[string][]Record, 1024)

	for {
		mappedID, ok, err := nextToken(sc)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		targetID, ok, err := nextToken(sc)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errors.Wrap(ErrBadMappings, "truncated triple")
		}
		mxTok, ok, err := nextToken(sc)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errors.Wrap(ErrBadMappings, "truncated triple")
		}

		mx, err := strconv.ParseUint(mxTok, 10, 32)
		if err != nil {
			return nil, errors.Wrapf(ErrBadMappings, "non-numeric mx %q", mxTok)
		}

		if !targets.Exists(targetID) {
			continue
		}
		if uint(mx) < mxMin {
			continue
		}
		byTarget[targetID] = append(byTarget[targetID], Record{MappedID: mappedID, MxInCommon: uint32(mx)})
	}

	return byTarget, nil
}

func nextToken(sc *bufio.Scanner) (string, bool, error) {
	if sc.Scan() {
		return sc.Text(), true, nil
	}
	if err := sc.Err(); err != nil {
		return "", false, errors.Wrap(err, "scan ntLink stream")
	}
	return "", false, nil
}

// adaptiveFilter caps each target's mapped-per-target density following
// the binary search in §4.2: the residual set keeps only records whose
// mx_in_common reaches the derived threshold τ*.
func adaptiveFilter(byTarget map[string][]Record, targets TargetIndex, mxMin, mxMax uint, maxPer10kbp float64) {
	for targetID, recs := range byTarget {
		if len(recs) == 0 {
			continue
		}
		length, ok := targets.SeqLen(targetID)
		if !ok {
			continue
		}
		capLimit := uint64(math.Ceil(float64(length) * maxPer10kbp / 10000))
		if capLimit < 1 {
			capLimit = 1
		}

		countAtLeast := func(threshold uint) int {
			n := 0
			for _, r := range recs {
				if uint(r.MxInCommon) >= threshold {
					n++
				}
			}
			return n
		}

		var tau uint
		switch {
		case uint64(countAtLeast(mxMin)) <= capLimit:
			tau = mxMin
		case uint64(countAtLeast(mxMax)) > capLimit:
			tau = mxMax
		default:
			lo, hi := mxMin, mxMax
			for hi-lo > 1 {
				mid := lo + (hi-lo)/2
				if uint64(countAtLeast(mid)) > capLimit {
					lo = mid
				} else {
					hi = mid
				}
			}
			tau = hi
		}

		filtered := recs[:0:0]
		for _, r := range recs {
			if uint(r.MxInCommon) >= tau {
				filtered = append(filtered, r)
			}
		}
		byTarget[targetID] = filtered
	}
}
