/*
 * nucleus - Bootstrap.
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

// Command nucleus bootstraps the kernel: parses flags, wires a logger,
// loads a boot manifest, constructs the kernel, creates the first
// process from the manifest, and runs until a shutdown signal arrives
// or the dispatch loop returns.
package main

import (
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	getopt "github.com/pborman/getopt/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/umps3/nucleus/internal/bootconfig"
	"github.com/umps3/nucleus/internal/logging"
	"github.com/umps3/nucleus/internal/metrics"
	"github.com/umps3/nucleus/internal/nucleus"
	"github.com/umps3/nucleus/internal/shell"
	"github.com/umps3/nucleus/internal/todclock"
)

const busWords = 4096

func main() {
	optManifest := getopt.StringLong("boot", 'b', "boot.manifest", "Boot manifest file")
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optMetricsAddr := getopt.StringLong("metrics", 'm', "", "Prometheus metrics listen address (disabled if empty)")
	optShell := getopt.BoolLong("shell", 's', "Start the interactive debug shell")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	preLog := slog.New(logging.NewDefault())

	var file *os.File
	if *optLogFile != "" {
		var err error
		file, err = os.Create(*optLogFile)
		if err != nil {
			preLog.Error("cannot create log file", "path", *optLogFile, "error", err)
			os.Exit(1)
		}
	}
	programLevel := new(slog.LevelVar)
	programLevel.Set(slog.LevelDebug)
	out := os.Stderr
	var handler slog.Handler
	if file != nil {
		handler = logging.New(file, &slog.HandlerOptions{Level: programLevel}, true)
	} else {
		handler = logging.New(out, &slog.HandlerOptions{Level: programLevel}, false)
	}
	log := slog.New(handler)
	slog.SetDefault(log)

	log.Info("nucleus starting")

	manifest, err := bootconfig.Load(*optManifest)
	if err != nil {
		log.Error("failed to load boot manifest", "path", *optManifest, "error", err)
		os.Exit(1)
	}

	clock := todclock.New()
	k := nucleus.NewKernel(log, clock, busWords)

	if *optMetricsAddr != "" {
		reg := prometheus.NewRegistry()
		k.Metrics = metrics.New(reg)
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(reg))
		go func() {
			log.Info("metrics server listening", "addr", *optMetricsAddr)
			if err := http.ListenAndServe(*optMetricsAddr, mux); err != nil {
				log.Error("metrics server stopped", "error", err)
			}
		}()
	}

	for _, d := range manifest.DeviceReady {
		k.Regs.Quad(d.Line, d.Device).Status = d.Status
		k.Regs.RaiseLine(d.Line, d.Device)
	}

	boot, err := k.Pool.Alloc()
	if err != nil {
		log.Error("cannot allocate the boot process", "error", err)
		os.Exit(1)
	}
	bootState := k.Pool.Get(boot)
	bootState.State.PC = manifest.InitialPC
	bootState.State.SetSP(manifest.InitialSP)
	bootState.State.Status = manifest.InitialStatus
	bootState.WaitKey = 0
	k.EnqueueReady(boot)
	k.ProcessCount = 1

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go runDispatchLoop(k, log, done)

	if *optShell {
		go shell.Run(k, os.Stdout)
	}

	select {
	case <-sigChan:
		log.Info("got shutdown signal")
	case <-done:
		log.Info("dispatch loop finished")
	}
}

// runDispatchLoop calls Dispatch once and logs the outcome: the boot
// process dispatched, an idle CPU, a clean halt, or a recovered
// deadlock panic. Exceptions and interrupts are not modeled here as
// asynchronous hardware events (there is no real CPU behind this
// bootstrap); this is where a real front end would instead pump
// trap/IRQ events off a channel into k.HandleException/HandleInterrupt.
func runDispatchLoop(k *nucleus.Kernel, log *slog.Logger, done chan<- struct{}) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			log.Error("nucleus halted abnormally", "panic", r)
		}
	}()

	out := k.Dispatch()
	if out.Halted {
		log.Info("nucleus halted cleanly")
		return
	}
	if out.Idle {
		log.Debug("nucleus idling, waiting for an interrupt")
		return
	}
	log.Debug("dispatched process", "pid", out.Resumed)
}
