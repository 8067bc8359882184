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

// Package guard ties the batch server's lifetime to its parent driver
// process (C6): if the driver dies without sending the sentinel, the
// server should not linger holding stale FIFOs. On Linux this installs
// PR_SET_PDEATHSIG so the kernel delivers SIGTERM the instant the parent
// exits; on every platform, Linux included, it also polls getppid().
package guard

import (
	"os"
	"os/signal"
	"syscall"
	"time"
)

// pollInterval is how often the portable fallback checks for orphaning.
const pollInterval = time.Second

// Watch arranges for the current process to receive SIGTERM once its
// parent exits, and returns a channel that is closed when that happens
// (whether detected by signal or by the polling fallback). Callers
// typically select on the returned channel alongside their own shutdown
// signal.
func Watch() <-chan struct{} {
	orphaned := make(chan struct{})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM)

	install()

	ppid := os.Getppid()
	go func() {
		defer close(orphaned)
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-sigCh:
				return
			case <-ticker.C:
				if os.Getppid() != ppid || os.Getppid() == 1 {
					return
				}
			}
		}
	}()

	return orphaned
}
