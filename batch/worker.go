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

// Package batch implements one batch's worker lifecycle (C4): consume
// target IDs from a pipe, fetch and filter their mapped-sequence
// supporters, roll k-mers through a shared per-batch filter pair, and
// save the solid filters.
package batch

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/shenwei356/go-logging"
	"github.com/shenwei356/targetedbf/bloomfill"
	"github.com/shenwei356/targetedbf/internal/config"
	"github.com/shenwei356/targetedbf/internal/prng"
	"github.com/shenwei356/targetedbf/mapping"
	"github.com/shenwei356/targetedbf/seqidx"
)

var log = logging.MustGetLogger("batch")

// Sentinel token terminating a target-id stream (§6).
const Sentinel = "x"

// TargetIndex is the subset of seqidx.Index the worker needs for a
// target's length.
type TargetIndex interface {
	SeqLen(id string) (uint64, bool)
}

// Worker runs one batch at a time; construct a new Worker per batch (its
// filter pairs are single-batch scoped, per the ownership rule in §3).
type Worker struct {
	cfg       *config.Config
	targets   TargetIndex
	mappings  *mapping.Store
	mappedIdx *seqidx.Index
	rng       *prng.Source // only used by the RandomUniform policy
}

// NewWorker builds a worker sharing the process's read-only indexes and
// mapping table. rng may be nil for the QualityRanked policy.
func NewWorker(cfg *config.Config, targets TargetIndex, mappings *mapping.Store, mappedIdx *seqidx.Index, rng *prng.Source) *Worker {
	return &Worker{cfg: cfg, targets: targets, mappings: mappings, mappedIdx: mappedIdx, rng: rng}
}

// Run consumes whitespace-separated target IDs from in until Sentinel or
// EOF, fills one filter pair per configured k, and saves each solid
// filter to {outDir}/{name}-k{K}.bf. It does not touch the completion
// pipe or remove any FIFO — that is the server's responsibility. It
// returns the number of target ids consumed, for the caller's metrics.
func (w *Worker) Run(name string, in *os.File, outDir string) (int, error) {
	pairs := make([]*bloomfill.Pair, len(w.cfg.Ks))
	for i, k := range w.cfg.Ks {
		pairs[i] = bloomfill.NewPair(k, w.cfg.Hashes, w.cfg.CountingFilterBytes, w.cfg.SolidFilterBytes)
	}

	mappedReader, err := w.mappedIdx.NewSeqReader()
	if err != nil {
		return 0, errors.Wrap(err, "open mapped sequence file")
	}
	defer mappedReader.Close()

	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	sc.Split(bufio.ScanWords)

	nTargets := 0
	for sc.Scan() {
		targetID := sc.Text()
		if targetID == "" {
			continue
		}
		if targetID == Sentinel {
			break
		}
		if err := w.processTarget(targetID, pairs, mappedReader); err != nil {
			return nTargets, err
		}
		nTargets++
	}
	if err := sc.Err(); err != nil {
		return nTargets, errors.Wrapf(err, "read target ids for batch %s", name)
	}
	log.Infof("batch %s: processed %d targets", name, nTargets)

	written := make([]string, 0, len(w.cfg.Ks))
	for i, k := range w.cfg.Ks {
		outPath := filepath.Join(outDir, fmt.Sprintf("%s-k%d.bf", name, k))
		f, err := os.Create(outPath)
		if err != nil {
			removeFiles(written)
			return nTargets, errors.Wrapf(err, "create %s", outPath)
		}
		_, werr := pairs[i].WriteSolidTo(f)
		cerr := f.Close()
		if werr != nil {
			os.Remove(outPath)
			removeFiles(written)
			return nTargets, errors.Wrapf(werr, "write %s", outPath)
		}
		if cerr != nil {
			os.Remove(outPath)
			removeFiles(written)
			return nTargets, errors.Wrapf(cerr, "close %s", outPath)
		}
		written = append(written, outPath)
	}
	return nTargets, nil
}

// removeFiles deletes the .bf files a failed batch already wrote, so the
// driver never observes a torn result set: either every k's filter is
// present or none are.
func removeFiles(paths []string) {
	for _, p := range paths {
		os.Remove(p)
	}
}

func (w *Worker) processTarget(targetID string, pairs []*bloomfill.Pair, mappedReader *seqidx.SeqReader) error {
	length, ok := w.targets.SeqLen(targetID)
	if !ok {
		// Per §4.4/§7: a missing target id is "no mappings", not fatal.
		return nil
	}
	recs := w.mappings.GetMappings(targetID)
	if len(recs) == 0 {
		return nil
	}

	cap2 := int(math.Floor(float64(length) * w.cfg.SubsampleMaxPer10kbp / 10000))
	n := len(recs)
	if cap2 < n {
		n = cap2
	}
	if n <= 0 {
		return nil
	}

	var chosen []mapping.Record
	var t0 uint
	switch w.cfg.Policy {
	case config.QualityRanked:
		chosen, t0 = selectQualityRanked(recs, n, w.mappedIdx)
		return w.fillSequential(chosen, t0, pairs, mappedReader)
	default:
		chosen = selectRandomUniform(recs, n, w.rng)
		t0 = w.cfg.KmerThreshold
		return w.fillConcurrent(chosen, t0, pairs)
	}
}

// fillSequential processes mappings in order on the caller's own
// SeqReader: the quality-ranked variant's ingestion order is load-bearing
// for the counting filter's threshold-crossing observations (§5).
func (w *Worker) fillSequential(chosen []mapping.Record, t0 uint, pairs []*bloomfill.Pair, reader *seqidx.SeqReader) error {
	for _, r := range chosen {
		s, err := reader.Get(r.MappedID)
		if err != nil {
			return errors.Wrapf(err, "fetch mapped sequence %s", r.MappedID)
		}
		if err := bloomfill.Fill(s, w.cfg.Ks, t0, pairs); err != nil {
			return errors.Wrapf(err, "fill from %s", r.MappedID)
		}
	}
	return nil
}

// fillConcurrent fans one fetch+fill task out per chosen mapping across a
// goroutine pool bounded by Config.Threads. Each pool slot owns its own
// SeqReader, opened once and reused for every task it runs — the contract
// forbids sharing one reader across concurrent goroutines (§3, §5, §9),
// but nothing requires a fresh one per mapping record, and a batch can
// carry far more chosen records than worker slots.
func (w *Worker) fillConcurrent(chosen []mapping.Record, t0 uint, pairs []*bloomfill.Pair) error {
	threads := w.cfg.Threads
	if threads < 1 {
		threads = 1
	}

	readers := make(chan *seqidx.SeqReader, threads)
	for i := 0; i < threads; i++ {
		reader, err := w.mappedIdx.NewSeqReader()
		if err != nil {
			close(readers)
			for rd := range readers {
				rd.Close()
			}
			return errors.Wrap(err, "open mapped sequence reader")
		}
		readers <- reader
	}
	defer func() {
		close(readers)
		for rd := range readers {
			rd.Close()
		}
	}()

	sem := make(chan struct{}, threads)
	var wg sync.WaitGroup
	errCh := make(chan error, len(chosen))

	for _, r := range chosen {
		r := r
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			reader := <-readers
			defer func() { readers <- reader }()

			s, err := reader.Get(r.MappedID)
			if err != nil {
				errCh <- errors.Wrapf(err, "fetch mapped sequence %s", r.MappedID)
				return
			}
			if err := bloomfill.Fill(s, w.cfg.Ks, t0, pairs); err != nil {
				errCh <- errors.Wrapf(err, "fill from %s", r.MappedID)
			}
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		if err != nil {
			return err
		}
	}
	return nil
}
