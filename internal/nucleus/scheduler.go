/*
 * nucleus - Scheduler.
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
package nucleus

import (
	"errors"

	"github.com/umps3/nucleus/internal/pcb"
)

// ErrDeadlock is the panic value Dispatch raises when the ready queue
// is empty, no process is soft-blocked, and processes remain. There is
// deliberately no error return type for nucleus-internal conditions:
// every path out of the nucleus either loads a process, idles, halts,
// or panics, and Go's panic is the vehicle for "halts the machine with
// a distinguishing signal".
var ErrDeadlock = errors.New("nucleus: deadlock (processes exist, none ready, none soft-blocked)")

// Outcome is what Dispatch/YieldTo hand back to whatever invoked the
// trap or interrupt path that led here. It is the only way control
// "returns" from the nucleus: callers never fall through past it.
type Outcome struct {
	// Resumed is the PID now current, or pcb.NoPID if the CPU is idling
	// (waiting for an interrupt) or has cleanly halted.
	Resumed pcb.PID
	Idle    bool
	Halted  bool

	// Support carries SYS8's opaque support-structure pointer back to
	// the caller; nil on every Outcome but sysSupport's.
	Support interface{}
}

// accrue charges the current process for the interval [StartTOD, now)
// before Current is reassigned. Dispatch and YieldTo call it; the PLT
// and interrupt paths charge the interrupted process directly.
func (k *Kernel) accrue(now uint64) {
	if k.Current == pcb.NoPID {
		return
	}
	k.Pool.Get(k.Current).CPUTime += now - k.StartTOD
}

// Dispatch is the single entry point that yields the CPU to whichever
// process the scheduling policy selects next:
//
//  1. ready queue non-empty -> pop and run it, full new slice.
//  2. no processes left -> clean halt.
//  3. some process soft-blocked -> idle, waiting for an interrupt.
//  4. otherwise -> deadlock.
func (k *Kernel) Dispatch() Outcome {
	now := k.Clock.Now()
	k.accrue(now)

	if !k.Pool.QueueEmpty(k.ReadyTail) {
		newTail, pid := k.Pool.QueueRemoveHead(k.ReadyTail)
		k.ReadyTail = newTail
		k.Current = pid
		k.pltCountdown = TimeSlice
		k.StartTOD = now
		k.Metrics.Dispatch()
		return Outcome{Resumed: pid}
	}

	if k.ProcessCount == 0 {
		k.Current = pcb.NoPID
		k.halted = true
		k.Metrics.CleanHalt()
		return Outcome{Resumed: pcb.NoPID, Halted: true}
	}

	if k.SoftBlockedCount > 0 {
		k.Current = pcb.NoPID
		k.pltCountdown = Infinity
		return Outcome{Resumed: pcb.NoPID, Idle: true}
	}

	k.Metrics.Deadlock()
	panic(ErrDeadlock)
}

// YieldTo resumes pid without touching the preemption timer: the
// remainder of the current slice belongs to it. Used by handlers that
// finished work for the current process without blocking or
// terminating it (e.g. a completed SYS1/SYS4/SYS6/SYS8).
func (k *Kernel) YieldTo(pid pcb.PID) Outcome {
	now := k.Clock.Now()
	k.accrue(now)
	k.Current = pid
	k.StartTOD = now
	return Outcome{Resumed: pid}
}

// EnqueueReady appends pid to the ready queue.
func (k *Kernel) EnqueueReady(pid pcb.PID) {
	k.ReadyTail = k.Pool.QueueInsertTail(k.ReadyTail, pid)
}

// Halted reports whether the kernel reached a clean halt.
func (k *Kernel) Halted() bool { return k.halted }

// PLTCountdown returns the armed preemption-timer countdown.
func (k *Kernel) PLTCountdown() uint64 { return k.pltCountdown }
