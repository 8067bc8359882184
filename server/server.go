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

// Package server implements the batch server (C5): the long-lived process
// that accepts batch names over a well-known FIFO, hands each one a pair of
// per-batch FIFOs, and runs a batch.Worker once the driver on the other end
// of the pipe has handed over its target ids.
package server

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/shenwei356/go-logging"
	"golang.org/x/sys/unix"

	"github.com/shenwei356/targetedbf/batch"
	"github.com/shenwei356/targetedbf/internal/config"
	"github.com/shenwei356/targetedbf/internal/metrics"
)

var log = logging.MustGetLogger("server")

// Well-known FIFO names, relative to Config.BaseDir (§4.5).
const (
	nameInputFIFO       = "batch_name_input"
	targetIDsReadyFIFO  = "batch_target_ids_input_ready"
	fifoMode            = 0600
	targetIDsInputSfx   = "-target_ids_input"
	bfsReadyFIFOSuffix  = "-bfs_ready"
)

// WorkerRunner matches batch.Worker's Run method, seamed for tests.
type WorkerRunner interface {
	Run(name string, in *os.File, outDir string) (int, error)
}

// NewWorkerFunc builds one WorkerRunner per accepted batch name.
type NewWorkerFunc func() WorkerRunner

// state names the lifecycle a batch passes through, logged at each
// transition (§4.5). It carries no behavior of its own.
type state string

const (
	stateNameRead      state = "NameRead"
	statePipesCreated  state = "PipesCreated"
	stateHandshakeAcked state = "HandshakeAcked"
	stateWorkerRunning state = "WorkerRunning"
	stateFiltersSaved  state = "FiltersSaved"
	stateReadyAcked    state = "ReadyAcked"
	statePipesRemoved  state = "PipesRemoved"
)

// Server owns the well-known FIFOs and dispatches one goroutine per
// accepted batch, bounded by Config.Threads concurrent workers.
type Server struct {
	cfg       *config.Config
	newWorker NewWorkerFunc
	baseDir   string
}

// New resolves Config.BaseDir (expanding a leading ~ via go-homedir) and
// returns a Server ready to Run.
func New(cfg *config.Config, newWorker NewWorkerFunc) (*Server, error) {
	dir := cfg.BaseDir
	if dir == "" {
		dir = "."
	}
	expanded, err := homedir.Expand(dir)
	if err != nil {
		return nil, errors.Wrap(err, "expand base dir")
	}
	return &Server{cfg: cfg, newWorker: newWorker, baseDir: expanded}, nil
}

func (s *Server) path(name string) string { return filepath.Join(s.baseDir, name) }

// Run creates the two well-known FIFOs, accepts batch names until the
// Sentinel token, and blocks until every dispatched batch has finished.
// It removes the well-known FIFOs before returning.
func (s *Server) Run() error {
	namePath := s.path(nameInputFIFO)
	readyPath := s.path(targetIDsReadyFIFO)

	if err := mkfifo(namePath); err != nil {
		return errors.Wrapf(err, "create %s", namePath)
	}
	if err := mkfifo(readyPath); err != nil {
		return errors.Wrapf(err, "create %s", readyPath)
	}
	defer os.Remove(namePath)
	defer os.Remove(readyPath)

	nameIn, err := os.Open(namePath)
	if err != nil {
		return errors.Wrapf(err, "open %s", namePath)
	}
	defer nameIn.Close()

	sem := make(chan struct{}, s.cfg.Threads)
	var wg sync.WaitGroup

	sc := bufio.NewScanner(nameIn)
	sc.Split(bufio.ScanWords)

	for sc.Scan() {
		name := sc.Text()
		if name == "" {
			continue
		}
		if name == batch.Sentinel {
			log.Info("server: sentinel received, no more batches")
			break
		}

		st := stateNameRead
		log.Debugf("batch %s: %s", name, st)

		targetIDsPath := s.path(name + targetIDsInputSfx)
		bfsReadyPath := s.path(name + bfsReadyFIFOSuffix)

		if err := mkfifo(targetIDsPath); err != nil {
			return errors.Wrapf(err, "create %s", targetIDsPath)
		}
		if err := mkfifo(bfsReadyPath); err != nil {
			os.Remove(targetIDsPath)
			return errors.Wrapf(err, "create %s", bfsReadyPath)
		}
		st = statePipesCreated
		log.Debugf("batch %s: %s", name, st)

		// The handshake ack MUST happen here, synchronously in the
		// acceptor loop, before the worker is spawned (§4.5, §9): a
		// pipelining driver is allowed to open targetIDsPath the instant
		// it sees this token, so both per-batch FIFOs must already exist
		// and the ack must not be gated behind a prior batch's worker
		// finishing.
		if err := writeToken(readyPath); err != nil {
			os.Remove(targetIDsPath)
			os.Remove(bfsReadyPath)
			return errors.Wrapf(err, "ack handshake for %s", name)
		}
		st = stateHandshakeAcked
		log.Debugf("batch %s: %s", name, st)

		metrics.BatchAccepted()
		sem <- struct{}{}
		wg.Add(1)
		go func(name, targetIDsPath, bfsReadyPath string) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := s.runBatch(name, targetIDsPath, bfsReadyPath); err != nil {
				log.Errorf("batch %s: %s", name, err)
			}
		}(name, targetIDsPath, bfsReadyPath)
	}
	if err := sc.Err(); err != nil {
		return errors.Wrap(err, "read batch_name_input")
	}

	wg.Wait()
	return nil
}

// runBatch runs the worker once the driver has handed over target ids and
// signals completion. The per-batch FIFOs are created and the handshake is
// acknowledged synchronously in Run before this is dispatched; this only
// covers WorkerRunning through PipesRemoved.
func (s *Server) runBatch(name, targetIDsPath, bfsReadyPath string) error {
	defer func() {
		os.Remove(targetIDsPath)
		os.Remove(bfsReadyPath)
		log.Debugf("batch %s: %s", name, statePipesRemoved)
	}()

	start := time.Now()
	targetIn, err := os.Open(targetIDsPath)
	if err != nil {
		return errors.Wrapf(err, "open %s", targetIDsPath)
	}
	metrics.ObserveFIFOWait(time.Since(start))
	defer targetIn.Close()

	log.Debugf("batch %s: %s", name, stateWorkerRunning)
	worker := s.newWorker()
	n, err := worker.Run(name, targetIn, s.baseDir)
	if err != nil {
		return errors.Wrapf(err, "run batch %s", name)
	}
	metrics.TargetsProcessed(n)

	log.Debugf("batch %s: %s", name, stateFiltersSaved)

	if err := writeToken(bfsReadyPath); err != nil {
		return errors.Wrapf(err, "signal bfs_ready for %s", name)
	}
	log.Debugf("batch %s: %s", name, stateReadyAcked)

	metrics.BatchCompleted()
	return nil
}

// mkfifo creates a FIFO, tolerating one that already exists from a prior
// crashed run (the redesign note on crash recovery covers cleanup; the
// server itself just clears a stale node before retrying).
func mkfifo(path string) error {
	if err := unix.Mkfifo(path, fifoMode); err != nil {
		if os.IsExist(err) {
			os.Remove(path)
			return unix.Mkfifo(path, fifoMode)
		}
		return err
	}
	return nil
}

// writeToken opens path for writing — blocking until the driver opens its
// read end — and writes the single-byte rendezvous token (§6).
func writeToken(path string) error {
	start := time.Now()
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	metrics.ObserveFIFOWait(time.Since(start))
	defer f.Close()
	_, err = fmt.Fprint(f, "1")
	return err
}
