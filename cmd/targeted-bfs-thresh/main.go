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

// Command targeted-bfs-thresh is the threshold-parametric batch server
// variant: it runs the random-uniform selection policy with a
// constructor-supplied, fixed k-mer base threshold instead of deriving one
// from mapped-sequence quality.
//
//	targeted-bfs-thresh target_seqs target_index mappings mapped_seqs mapped_index \
//	                    kmer_threshold threads k1 k2 ...
package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shenwei356/util/pathutil"
	"github.com/spf13/cobra"

	"github.com/shenwei356/targetedbf/batch"
	"github.com/shenwei356/targetedbf/guard"
	"github.com/shenwei356/targetedbf/internal/clilog"
	"github.com/shenwei356/targetedbf/internal/config"
	"github.com/shenwei356/targetedbf/internal/metrics"
	"github.com/shenwei356/targetedbf/internal/prng"
	"github.com/shenwei356/targetedbf/mapping"
	"github.com/shenwei356/targetedbf/seqidx"
	"github.com/shenwei356/targetedbf/server"
)

func requireFile(path string) {
	ok, err := pathutil.Exists(path)
	clilog.CheckError(err)
	if !ok {
		clilog.CheckError(fmt.Errorf("no such file: %s", path))
	}
}

func init() {
	clilog.Init()
}

var metricsAddr string

var rootCmd = &cobra.Command{
	Use:   "targeted-bfs-thresh target_seqs target_index mappings mapped_seqs mapped_index kmer_threshold threads k1 [k2 ...]",
	Short: "Batch server building per-target solid k-mer Bloom filters (random-uniform policy)",
	Args:  cobra.MinimumNArgs(8),
	Run:   run,
}

func init() {
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "listen address for an opt-in Prometheus /metrics endpoint")
}

func run(cmd *cobra.Command, args []string) {
	cfg := &config.Config{
		TargetSeqsFile:  args[0],
		TargetIndexFile: args[1],
		MappingsFile:    args[2],
		MappedSeqsFile:  args[3],
		MappedIndexFile: args[4],

		Hashes:               4,
		MxThresholdMin:       1,
		MxThresholdMax:       1 << 16,
		// The random-uniform variant still needs a density cap for C2's
		// adaptive filter; there is no separate CLI knob for it, so it
		// mirrors the subsample cap supplied below.
		Policy:              config.RandomUniform,
		CountingFilterBytes: 1 << 24,
		SolidFilterBytes:    1 << 24,
		BaseDir:             ".",
		MetricsAddr:         metricsAddr,
	}

	kmerThreshold, err := strconv.ParseUint(args[5], 10, 64)
	clilog.CheckError(err)
	cfg.KmerThreshold = uint(kmerThreshold)

	threads, err := strconv.Atoi(args[6])
	clilog.CheckError(err)
	cfg.Threads = threads
	cfg.SubsampleMaxPer10kbp = 1e9 // unbounded unless a future CLI knob narrows it
	cfg.MxMaxMappedSeqsPerTarget10kbp = 1e9

	for _, a := range args[7:] {
		k, err := strconv.Atoi(a)
		clilog.CheckError(err)
		cfg.Ks = append(cfg.Ks, k)
	}

	clilog.CheckError(cfg.Validate())

	for _, f := range []string{cfg.TargetSeqsFile, cfg.TargetIndexFile, cfg.MappingsFile, cfg.MappedSeqsFile, cfg.MappedIndexFile} {
		requireFile(f)
	}

	if cfg.MetricsAddr != "" {
		metrics.Enable(cfg.MetricsAddr)
	}

	targetIdxFile, err := os.Open(cfg.TargetIndexFile)
	clilog.CheckError(err)
	targetIdx, err := seqidx.Load(targetIdxFile, cfg.TargetSeqsFile)
	targetIdxFile.Close()
	clilog.CheckError(err)

	mappedIdxFile, err := os.Open(cfg.MappedIndexFile)
	clilog.CheckError(err)
	mappedIdx, err := seqidx.Load(mappedIdxFile, cfg.MappedSeqsFile)
	mappedIdxFile.Close()
	clilog.CheckError(err)

	mappingStore, err := mapping.Load(cfg.MappingsFile, targetIdx, cfg.MxThresholdMin, cfg.MxThresholdMax, cfg.MxMaxMappedSeqsPerTarget10kbp)
	clilog.CheckError(err)

	rng := prng.New(time.Now().UnixNano() ^ int64(os.Getpid()))

	newWorker := func() server.WorkerRunner {
		return batch.NewWorker(cfg, targetIdx, mappingStore, mappedIdx, rng)
	}

	srv, err := server.New(cfg, newWorker)
	clilog.CheckError(err)

	orphaned := guard.Watch()
	done := make(chan error, 1)
	go func() { done <- srv.Run() }()

	select {
	case err := <-done:
		clilog.CheckError(err)
	case <-orphaned:
		fmt.Fprintln(os.Stderr, "targeted-bfs-thresh: parent process exited, shutting down")
		os.Exit(1)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
