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

package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shenwei356/targetedbf/internal/config"
)

// waitForPath polls until path exists or t fails the test.
func waitForPath(t *testing.T, path string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); err == nil {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", path)
}

type fakeWorker struct {
	ran  chan string
	n    int
	fail error
}

func (f *fakeWorker) Run(name string, in *os.File, outDir string) (int, error) {
	if f.ran != nil {
		f.ran <- name
	}
	return f.n, f.fail
}

// TestServerSentinelOnlyExit pins seed scenario S6: a server that only
// ever receives the sentinel must exit cleanly without creating any
// per-batch FIFO and without invoking a worker.
func TestServerSentinelOnlyExit(t *testing.T) {
	dir := t.TempDir()
	calls := 0
	srv, err := New(&config.Config{BaseDir: dir, Threads: 1}, func() WorkerRunner {
		calls++
		return &fakeWorker{}
	})
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- srv.Run() }()

	namePath := filepath.Join(dir, nameInputFIFO)
	waitForPath(t, namePath)

	w, err := os.OpenFile(namePath, os.O_WRONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	w.WriteString("x")
	w.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("server.Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not exit on sentinel")
	}
	if calls != 0 {
		t.Errorf("expected no workers dispatched, got %d", calls)
	}
	if _, err := os.Stat(namePath); !os.IsNotExist(err) {
		t.Errorf("well-known FIFO %s should be removed", namePath)
	}
}

// TestServerBatchLifecycle pins seed scenario S5: one batch runs the full
// NameRead through PipesRemoved state machine and the driver observes its
// bfs_ready token.
func TestServerBatchLifecycle(t *testing.T) {
	dir := t.TempDir()
	ran := make(chan string, 1)
	srv, err := New(&config.Config{BaseDir: dir, Threads: 2}, func() WorkerRunner {
		return &fakeWorker{ran: ran, n: 3}
	})
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- srv.Run() }()

	namePath := filepath.Join(dir, nameInputFIFO)
	waitForPath(t, namePath)

	nameW, err := os.OpenFile(namePath, os.O_WRONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	go func() {
		nameW.WriteString("B ")
		nameW.WriteString("x")
		nameW.Close()
	}()

	readyPath := filepath.Join(dir, targetIDsReadyFIFO)
	ackR, err := os.Open(readyPath)
	if err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 1)
	if _, err := ackR.Read(buf); err != nil {
		t.Fatal(err)
	}
	ackR.Close()

	targetIDsPath := filepath.Join(dir, "B-target_ids_input")
	waitForPath(t, targetIDsPath)
	tW, err := os.OpenFile(targetIDsPath, os.O_WRONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	tW.WriteString("x")
	tW.Close()

	select {
	case name := <-ran:
		if name != "B" {
			t.Errorf("worker ran for %q, want B", name)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("worker never ran")
	}

	bfsReadyPath := filepath.Join(dir, "B-bfs_ready")
	waitForPath(t, bfsReadyPath)
	bR, err := os.Open(bfsReadyPath)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := bR.Read(buf); err != nil {
		t.Fatal(err)
	}
	bR.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("server.Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not exit")
	}

	for _, p := range []string{targetIDsPath, bfsReadyPath, namePath, readyPath} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("FIFO %s should be removed after shutdown", p)
		}
	}
}
