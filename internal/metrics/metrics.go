/*
 * nucleus - Prometheus metrics sink.
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package metrics implements nucleus.MetricsSink with Prometheus
// counters, exposed over HTTP via promhttp for an operator dashboard
// or scrape target.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Sink implements nucleus.MetricsSink.
type Sink struct {
	dispatches        prometheus.Counter
	blocks            prometheus.Counter
	unblocks          prometheus.Counter
	deadlocks         prometheus.Counter
	cleanHalts        prometheus.Counter
	deviceCompletions prometheus.Counter
}

// New registers the nucleus's counters against reg and returns a Sink.
func New(reg prometheus.Registerer) *Sink {
	factory := promauto.With(reg)
	return &Sink{
		dispatches: factory.NewCounter(prometheus.CounterOpts{
			Name: "nucleus_dispatches_total",
			Help: "Number of times the scheduler dispatched a process to the CPU.",
		}),
		blocks: factory.NewCounter(prometheus.CounterOpts{
			Name: "nucleus_blocks_total",
			Help: "Number of times a process blocked on P, wait-io, or wait-clock.",
		}),
		unblocks: factory.NewCounter(prometheus.CounterOpts{
			Name: "nucleus_unblocks_total",
			Help: "Number of times a blocked process was released back to the ready queue.",
		}),
		deadlocks: factory.NewCounter(prometheus.CounterOpts{
			Name: "nucleus_deadlocks_total",
			Help: "Number of times the dispatcher detected a deadlock and panicked.",
		}),
		cleanHalts: factory.NewCounter(prometheus.CounterOpts{
			Name: "nucleus_clean_halts_total",
			Help: "Number of times the dispatcher reached a clean halt (no processes left).",
		}),
		deviceCompletions: factory.NewCounter(prometheus.CounterOpts{
			Name: "nucleus_device_completions_total",
			Help: "Number of device-interrupt completions serviced.",
		}),
	}
}

func (s *Sink) Dispatch()         { s.dispatches.Inc() }
func (s *Sink) Block()            { s.blocks.Inc() }
func (s *Sink) Unblock()          { s.unblocks.Inc() }
func (s *Sink) Deadlock()         { s.deadlocks.Inc() }
func (s *Sink) CleanHalt()        { s.cleanHalts.Inc() }
func (s *Sink) DeviceCompletion() { s.deviceCompletions.Inc() }

// Handler returns the promhttp handler for reg, for the caller to
// mount on whatever mux the bootstrap wires up.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
