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

// Package seqidx builds and serves the byte-offset index over a FASTA or
// FASTQ file: one entry per record recording where its sequence line
// starts, how long it is, and (FASTQ only) its mean Phred quality.
package seqidx

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	bioseq "github.com/shenwei356/bio/seq"
	"github.com/pkg/errors"
	"github.com/shenwei356/go-logging"
)

var log = logging.MustGetLogger("seqidx")

// MaxSeqLen is the per-build cap on a single record's sequence length; a
// positioned fetch for a longer record fails with ErrSeqTooLarge.
const MaxSeqLen = 20 << 20 // 20 MiB

// Sentinel errors, matching the BadIndex/UnknownId/SeqTooLarge taxonomy.
var (
	ErrUnknownID    = errors.New("seqidx: unknown identifier")
	ErrSeqTooLarge  = errors.New("seqidx: sequence exceeds MaxSeqLen")
	ErrBadIndex     = errors.New("seqidx: malformed index line")
	ErrBadSeqFormat = errors.New("seqidx: malformed FASTA/FASTQ record")
)

// Coords is one record's position within the backing sequence file.
type Coords struct {
	SeqStart  uint64
	SeqLen    uint64
	PhredAvg  float64
	isFASTQ   bool // whether PhredAvg is meaningful
}

// Index is an immutable, concurrency-safe map from identifier to Coords,
// plus the path of the backing sequence file it was built from.
type Index struct {
	path    string
	records map[string]Coords
	order   []string // insertion order, for deterministic persistence
	isFASTQ bool
}

// Path returns the backing sequence file path.
func (idx *Index) Path() string { return idx.path }

// Len returns the number of indexed records.
func (idx *Index) Len() int { return len(idx.records) }

// Exists reports whether id is present.
func (idx *Index) Exists(id string) bool {
	_, ok := idx.records[id]
	return ok
}

// SeqLen returns a record's sequence length, or (0, false) if unknown.
func (idx *Index) SeqLen(id string) (uint64, bool) {
	c, ok := idx.records[id]
	if !ok {
		return 0, false
	}
	return c.SeqLen, true
}

// PhredAvg returns a record's mean Phred score; 0 for FASTA-built indexes
// or unknown identifiers.
func (idx *Index) PhredAvg(id string) float64 {
	return idx.records[id].PhredAvg
}

// Build scans path once, detecting FASTA vs FASTQ from the first byte.
func Build(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	br := bufio.NewReaderSize(f, os.Getpagesize())
	first, err := br.Peek(1)
	if err != nil {
		if err == io.EOF {
			return &Index{path: path, records: map[string]Coords{}}, nil
		}
		return nil, errors.Wrapf(err, "peek %s", path)
	}

	idx := &Index{path: path, records: make(map[string]Coords, 1024)}
	if first[0] == '@' {
		idx.isFASTQ = true
		err = idx.buildFASTQ(br)
	} else {
		err = idx.buildFASTA(br)
	}
	if err != nil {
		return nil, err
	}
	return idx, nil
}

func headerID(line string) (string, error) {
	if len(line) == 0 || (line[0] != '>' && line[0] != '@') {
		return "", ErrBadSeqFormat
	}
	body := line[1:]
	if sp := strings.IndexAny(body, " \t"); sp >= 0 {
		body = body[:sp]
	}
	if body == "" {
		return "", ErrBadSeqFormat
	}
	return body, nil
}

func (idx *Index) buildFASTA(br *bufio.Reader) error {
	var offset uint64
	for {
		header, err := br.ReadString('\n')
		if len(header) == 0 && err == io.EOF {
			break
		}
		if err != nil && err != io.EOF {
			return errors.Wrapf(err, "read %s", idx.path)
		}
		id, herr := headerID(strings.TrimRight(header, "\r\n"))
		if herr != nil {
			return errors.Wrap(herr, "fasta header")
		}
		offset += uint64(len(header))
		if err == io.EOF {
			return errors.Wrapf(ErrBadSeqFormat, "%s: header without sequence line", id)
		}

		seqLine, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return errors.Wrapf(err, "read %s", idx.path)
		}
		if len(seqLine) == 0 {
			return errors.Wrapf(ErrBadSeqFormat, "%s: header without sequence line", id)
		}
		seqStart := offset
		seqStr := strings.TrimRight(seqLine, "\r\n")
		offset += uint64(len(seqLine))

		if _, verr := bioseq.NewSeq(bioseq.DNA, []byte(seqStr)); verr != nil {
			log.Warningf("%s: illegal base ignored: %s", id, verr)
		}

		idx.records[id] = Coords{SeqStart: seqStart, SeqLen: uint64(len(seqStr))}
		idx.order = append(idx.order, id)

		if err == io.EOF {
			break
		}
	}
	return nil
}

func (idx *Index) buildFASTQ(br *bufio.Reader) error {
	var offset uint64
	for {
		header, err := br.ReadString('\n')
		if len(header) == 0 && err == io.EOF {
			break
		}
		if err != nil && err != io.EOF {
			return errors.Wrapf(err, "read %s", idx.path)
		}
		id, herr := headerID(strings.TrimRight(header, "\r\n"))
		if herr != nil {
			return errors.Wrap(herr, "fastq header")
		}
		offset += uint64(len(header))

		seqLine, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return errors.Wrapf(err, "read %s", idx.path)
		}
		if len(seqLine) == 0 {
			return errors.Wrapf(ErrBadSeqFormat, "%s: header without sequence line", id)
		}
		seqStart := offset
		seqStr := strings.TrimRight(seqLine, "\r\n")
		offset += uint64(len(seqLine))

		if _, verr := bioseq.NewSeq(bioseq.DNA, []byte(seqStr)); verr != nil {
			log.Warningf("%s: illegal base ignored: %s", id, verr)
		}

		plusLine, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return errors.Wrapf(err, "read %s", idx.path)
		}
		offset += uint64(len(plusLine))

		qualLine, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return errors.Wrapf(err, "read %s", idx.path)
		}
		qual := strings.TrimRight(qualLine, "\r\n")
		offset += uint64(len(qualLine))

		if len(qual) != len(seqStr) {
			return errors.Wrapf(ErrBadSeqFormat, "%s: quality/sequence length mismatch", id)
		}

		var sum int
		for i := 0; i < len(qual); i++ {
			sum += int(qual[i]) - 33
		}
		var avg float64
		if len(qual) > 0 {
			avg = float64(sum) / float64(len(qual))
		}

		idx.records[id] = Coords{SeqStart: seqStart, SeqLen: uint64(len(seqStr)), PhredAvg: avg, isFASTQ: true}
		idx.order = append(idx.order, id)

		if err == io.EOF {
			break
		}
	}
	return nil
}

// Save persists the index in the tab-separated text format of §6.
func (idx *Index) Save(w io.Writer) error {
	bw := bufio.NewWriterSize(w, os.Getpagesize())
	for _, id := range idx.order {
		c := idx.records[id]
		if idx.isFASTQ {
			fmt.Fprintf(bw, "%s\t%d\t%d\t%v\n", id, c.SeqStart, c.SeqLen, c.PhredAvg)
		} else {
			fmt.Fprintf(bw, "%s\t%d\t%d\n", id, c.SeqStart, c.SeqLen)
		}
	}
	return bw.Flush()
}

// Load reads an index previously written by Save. seqPath is recorded as
// the backing sequence file for subsequent NewSeqReader calls.
func Load(r io.Reader, seqPath string) (*Index, error) {
	idx := &Index{path: seqPath, records: make(map[string]Coords, 1024)}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		cols := strings.Split(line, "\t")
		if len(cols) != 3 && len(cols) != 4 {
			return nil, errors.Wrapf(ErrBadIndex, "%q", line)
		}
		start, err := strconv.ParseUint(cols[1], 10, 64)
		if err != nil {
			return nil, errors.Wrapf(ErrBadIndex, "seq_start %q", cols[1])
		}
		length, err := strconv.ParseUint(cols[2], 10, 64)
		if err != nil {
			return nil, errors.Wrapf(ErrBadIndex, "seq_len %q", cols[2])
		}
		c := Coords{SeqStart: start, SeqLen: length}
		if len(cols) == 4 {
			phred, err := strconv.ParseFloat(cols[3], 64)
			if err != nil {
				return nil, errors.Wrapf(ErrBadIndex, "phred_avg %q", cols[3])
			}
			c.PhredAvg = phred
			c.isFASTQ = true
			idx.isFASTQ = true
		}
		idx.records[cols[0]] = c
		idx.order = append(idx.order, cols[0])
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "scan index")
	}
	return idx, nil
}
