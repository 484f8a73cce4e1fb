/*
 * nucleus - Kernel state, scheduler, exception dispatcher, and
 * interrupt dispatcher.
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

// Package nucleus bundles the kernel's state, its scheduler, its
// exception dispatcher, and its interrupt dispatcher into one package:
// all four pieces are methods on the one *Kernel value they share, with
// no package-level mutable singleton, so every handler takes its Kernel
// explicitly and multiple kernels can coexist in the same process.
package nucleus

import (
	"log/slog"

	"github.com/umps3/nucleus/internal/asl"
	"github.com/umps3/nucleus/internal/devreg"
	"github.com/umps3/nucleus/internal/membus"
	"github.com/umps3/nucleus/internal/pcb"
)

// TODSource is the TOD clock surface the nucleus depends on: a single
// monotonic tick reading. *todclock.Clock satisfies it; tests supply a
// fake with a manually-advanced counter instead.
type TODSource interface {
	Now() uint64
}

// TimeSlice is the preemption quantum, in TOD ticks (5ms at a
// microsecond-scale clock).
const TimeSlice uint64 = 5000

// PseudoClockInterval is the interval timer period, in TOD ticks (100ms).
const PseudoClockInterval uint64 = 100000

// Infinity is the countdown value that effectively never fires,
// armed on the PLT while the scheduler idles.
const Infinity uint64 = ^uint64(0)

// ExceptionKind distinguishes the two pass-up-or-die destinations.
type ExceptionKind int

const (
	PageFault ExceptionKind = iota
	GeneralExc
	numExceptionKinds
)

// SupportContext is the (stack pointer, status, program counter)
// triple the support layer registers per exception kind, loaded by
// pass-up when the corresponding fault occurs.
type SupportContext struct {
	SP     uint32
	Status uint32
	PC     uint32
}

// Support is the opaque structure a process may register at SYS1.
// The nucleus never interprets it beyond this shape: two state-save
// slots and two load contexts, one pair per exception kind.
type Support struct {
	Context [numExceptionKinds]SupportContext
	State   [numExceptionKinds]pcb.ProcessorState
}

// MetricsSink receives nucleus lifecycle events. Kernel.Metrics is
// never nil (NewKernel installs a no-op sink by default); implementing
// this interface is how internal/metrics observes the kernel without
// the kernel importing it back.
type MetricsSink interface {
	Dispatch()
	Block()
	Unblock()
	Deadlock()
	CleanHalt()
	DeviceCompletion()
}

type noopMetrics struct{}

func (noopMetrics) Dispatch()         {}
func (noopMetrics) Block()            {}
func (noopMetrics) Unblock()          {}
func (noopMetrics) Deadlock()         {}
func (noopMetrics) CleanHalt()        {}
func (noopMetrics) DeviceCompletion() {}

// Kernel is the single nucleus-state value threaded through every
// handler (C3), plus the components it owns (C1/C2) and the hardware
// surface it drives (C6's device registers, the TOD clock).
type Kernel struct {
	Pool *pcb.Pool
	ASL  *asl.List
	Bus  *membus.Bus
	Regs *devreg.RegisterFile
	Clock TODSource
	Log   *slog.Logger
	Metrics MetricsSink

	// C3 globals.
	ProcessCount     int
	SoftBlockedCount int
	ReadyTail        pcb.PID
	Current          pcb.PID
	StartTOD         uint64
	ExceptionState   pcb.ProcessorState

	// Device-semaphore table: devreg.NumSlots fixed bus addresses,
	// one per (line, device[, sub-device]) slot. Bus address 0 stays
	// reserved for the ASL's head sentinel, so this table starts at 1.
	DeviceSemBase membus.Addr

	// Preemption timer countdown, read/armed by the scheduler and the
	// PLT interrupt handler (there is no real hardware here to own it).
	pltCountdown uint64

	halted  bool
	haltErr error
}

// NewKernel wires a fresh, empty kernel: all PCBs free, ASL holding
// only its sentinels, a bus sized to hold the device-semaphore table
// plus headroom for user-level semaphores.
func NewKernel(log *slog.Logger, clock TODSource, busWords int) *Kernel {
	pool := pcb.NewPool()
	k := &Kernel{
		Pool:          pool,
		ASL:           asl.New(pool),
		Bus:           membus.NewBus(busWords),
		Regs:          &devreg.RegisterFile{},
		Clock:         clock,
		Log:           log,
		Metrics:       noopMetrics{},
		ReadyTail:     pcb.NoPID,
		Current:       pcb.NoPID,
		DeviceSemBase: 1,
	}
	return k
}

// DeviceSemAddr returns the bus address backing the device-semaphore
// table slot for (line, device, isWrite).
func (k *Kernel) DeviceSemAddr(line, device int, isWrite bool) membus.Addr {
	return k.DeviceSemBase + membus.Addr(devreg.Slot(line, device, isWrite))
}

// PseudoClockAddr returns the bus address backing the pseudo-clock counter.
func (k *Kernel) PseudoClockAddr() membus.Addr {
	return k.DeviceSemBase + membus.Addr(devreg.PseudoClockSlot)
}

// IsDeviceKey reports whether addr falls within the device-semaphore
// table (used by SYS2 to decide whether to restore soft_blocked_count
// or release a non-device semaphore).
func (k *Kernel) IsDeviceKey(addr membus.Addr) bool {
	lo := k.DeviceSemBase
	hi := k.DeviceSemBase + membus.Addr(devreg.NumSlots)
	return addr >= lo && addr < hi
}
