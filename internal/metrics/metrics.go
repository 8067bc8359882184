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

// Package metrics provides opt-in Prometheus instrumentation for the batch
// server. It is disabled by default; every exported Observe/Inc function is
// a no-op until Enable starts the collector, mirroring the gating pattern
// used for optional telemetry around a hot request path.
package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shenwei356/go-logging"
)

var log = logging.MustGetLogger("metrics")

var enabledFlag int32

func isEnabled() bool { return atomic.LoadInt32(&enabledFlag) == 1 }

var (
	batchesAccepted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "targetedbf_batches_accepted_total",
		Help: "Batch names read from batch_name_input.",
	})
	batchesCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "targetedbf_batches_completed_total",
		Help: "Batches that wrote bfs_ready.",
	})
	targetsProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "targetedbf_targets_processed_total",
		Help: "Target IDs consumed across all batches.",
	})
	batchesInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "targetedbf_batches_in_flight",
		Help: "Batch workers currently running.",
	})
	fifoWaitSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "targetedbf_fifo_open_wait_seconds",
		Help:    "Time blocked opening a FIFO for a rendezvous write or read.",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(batchesAccepted, batchesCompleted, targetsProcessed, batchesInFlight, fifoWaitSeconds)
}

// Enable starts the /metrics endpoint on addr. Call at most once.
func Enable(addr string) {
	atomic.StoreInt32(&enabledFlag, 1)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Warningf("metrics endpoint stopped: %s", err)
		}
	}()
	log.Infof("metrics endpoint listening on %s", addr)
}

// BatchAccepted records one batch name read off batch_name_input.
func BatchAccepted() {
	if !isEnabled() {
		return
	}
	batchesAccepted.Inc()
	batchesInFlight.Inc()
}

// BatchCompleted records one batch having written bfs_ready.
func BatchCompleted() {
	if !isEnabled() {
		return
	}
	batchesCompleted.Inc()
	batchesInFlight.Dec()
}

// TargetsProcessed adds n to the cumulative processed-target counter.
func TargetsProcessed(n int) {
	if !isEnabled() {
		return
	}
	targetsProcessed.Add(float64(n))
}

// ObserveFIFOWait records how long a FIFO open call blocked.
func ObserveFIFOWait(d time.Duration) {
	if !isEnabled() {
		return
	}
	fifoWaitSeconds.Observe(d.Seconds())
}
