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

// Package config holds the immutable run parameters shared by the batch
// server and its workers. It replaces the global options singleton the
// source relied on (see Design Notes): a Config is built once from argv
// and handed down by pointer, never mutated after construction.
package config

import "fmt"

// SelectionPolicy picks which of a target's mapped sequences enter a batch.
type SelectionPolicy uint8

const (
	// QualityRanked sorts by (phred_avg desc, mapped_id asc) and takes the
	// first N, deriving T0 from the summed length of the chosen sequences.
	QualityRanked SelectionPolicy = iota
	// RandomUniform draws N distinct indices uniformly; T0 is a fixed
	// constructor parameter.
	RandomUniform
)

func (p SelectionPolicy) String() string {
	if p == RandomUniform {
		return "random-uniform"
	}
	return "quality-ranked"
}

// MinKmerThreshold is the floor T0 must clear (§4.3).
const MinKmerThreshold = 4

// MaxKmerThreshold is the ceiling applied to the quality-ranked T0 estimate.
const MaxKmerThreshold = 13

// Config is the immutable parameter set for one server/worker process.
type Config struct {
	TargetSeqsFile  string
	TargetIndexFile string
	MappingsFile    string
	MappedSeqsFile  string
	MappedIndexFile string

	Ks []int // k values, in the order passed on argv

	Hashes uint // H, hashes per Bloom filter

	// Mapping adaptive filter thresholds (ntLink path only).
	MxThresholdMin                uint
	MxThresholdMax                uint
	MxMaxMappedSeqsPerTarget10kbp float64

	// Batch-worker subsampling cap.
	SubsampleMaxPer10kbp float64

	// Policy selects which worker variant runs.
	Policy SelectionPolicy

	// KmerThreshold is T0 for the RandomUniform policy; unused otherwise.
	KmerThreshold uint

	Threads int

	// CountingFilterBytes is the counting filter's size in bytes per k;
	// SolidFilterBytes*8 is the element capacity the solid filter is
	// created for (see bloomfill.NewPair).
	CountingFilterBytes uint
	SolidFilterBytes    uint

	// BaseDir is where the well-known and per-batch FIFOs are created.
	// Defaults to the process CWD; ~ is expanded via go-homedir.
	BaseDir string

	// MetricsAddr, when non-empty, starts a Prometheus endpoint.
	MetricsAddr string
}

// Validate checks cross-field invariants that argument parsing alone
// cannot, matching the BadArgs taxonomy of the error handling design.
func (c *Config) Validate() error {
	if len(c.Ks) == 0 {
		return fmt.Errorf("config: at least one k value is required")
	}
	if c.Hashes == 0 {
		return fmt.Errorf("config: hash count must be positive")
	}
	if c.Threads < 1 {
		return fmt.Errorf("config: threads must be positive")
	}
	if c.Policy == QualityRanked {
		if c.MxThresholdMax <= c.MxThresholdMin {
			return fmt.Errorf("config: mx_threshold_max must exceed mx_threshold_min")
		}
	} else if c.KmerThreshold < MinKmerThreshold {
		return fmt.Errorf("config: kmer_threshold %d < %d", c.KmerThreshold, MinKmerThreshold)
	}
	return nil
}
