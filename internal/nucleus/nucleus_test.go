/*
 * nucleus - Kernel core tests.
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
	"io"
	"log/slog"
	"testing"

	"github.com/umps3/nucleus/internal/membus"
	"github.com/umps3/nucleus/internal/pcb"
)

// fakeClock is a TODSource that plays back a fixed sequence of
// readings, one per call to Now(), holding on the last value once the
// sequence is exhausted. Exact CPU-time deltas across a Dispatch/
// HandleInterrupt call (which may read the clock more than once per
// call) are only assertable this way — a wall-clock-driven source
// can't be paused mid-call to distinguish two internal reads.
type fakeClock struct {
	vals []uint64
	i    int
}

func newFakeClock(vals ...uint64) *fakeClock { return &fakeClock{vals: vals} }

func (c *fakeClock) Now() uint64 {
	v := c.vals[c.i]
	if c.i < len(c.vals)-1 {
		c.i++
	}
	return v
}

func newTestKernel(t *testing.T) (*Kernel, *fakeClock) {
	t.Helper()
	return newTestKernelWithClock(t, newFakeClock(0))
}

func newTestKernelWithClock(t *testing.T, clk *fakeClock) (*Kernel, *fakeClock) {
	t.Helper()
	k := NewKernel(slog.New(slog.NewTextHandler(io.Discard, nil)), clk, 4096)
	return k, clk
}

// spawnReady allocates a PCB, puts it straight on the ready queue, and
// bumps ProcessCount to match (mirroring what sysCreate does for a child).
func spawnReady(t *testing.T, k *Kernel) pcb.PID {
	t.Helper()
	id, err := k.Pool.Alloc()
	if err != nil {
		t.Fatalf("Pool.Alloc(): %v", err)
	}
	k.EnqueueReady(id)
	k.ProcessCount++
	return id
}

func TestDispatchRunsReadyProcess(t *testing.T) {
	k, _ := newTestKernel(t)
	id := spawnReady(t, k)

	out := k.Dispatch()
	if out.Resumed != id {
		t.Fatalf("Dispatch() resumed %v, want %v", out.Resumed, id)
	}
	if k.Current != id {
		t.Errorf("Current = %v, want %v", k.Current, id)
	}
	if k.PLTCountdown() != TimeSlice {
		t.Errorf("PLTCountdown() = %d, want %d (fresh slice)", k.PLTCountdown(), TimeSlice)
	}
}

func TestDispatchCleanHaltWhenNoProcesses(t *testing.T) {
	k, _ := newTestKernel(t)
	out := k.Dispatch()
	if !out.Halted {
		t.Fatalf("Dispatch() on empty kernel did not report Halted")
	}
	if !k.Halted() {
		t.Errorf("Halted() = false after a halting Dispatch()")
	}
}

func TestDispatchIdlesWhenSoftBlocked(t *testing.T) {
	k, _ := newTestKernel(t)
	spawnReady(t, k)
	k.Dispatch() // consume the only ready process
	k.SoftBlockedCount = 1

	out := k.Dispatch()
	if !out.Idle {
		t.Fatalf("Dispatch() = %+v, want Idle", out)
	}
	if k.PLTCountdown() != Infinity {
		t.Errorf("PLTCountdown() = %d while idling, want Infinity", k.PLTCountdown())
	}
}

func TestDispatchDeadlockPanics(t *testing.T) {
	k, _ := newTestKernel(t)
	spawnReady(t, k)
	k.Dispatch()
	k.SoftBlockedCount = 0
	// ProcessCount is still 1, ready queue empty, nothing soft-blocked.

	defer func() {
		r := recover()
		if r != ErrDeadlock {
			t.Fatalf("recover() = %v, want ErrDeadlock", r)
		}
	}()
	k.Dispatch()
	t.Fatal("Dispatch() did not panic on deadlock")
}

func TestAccrueChargesElapsedInterval(t *testing.T) {
	k, _ := newTestKernelWithClock(t, newFakeClock(0, 1500))
	id := spawnReady(t, k)
	k.Dispatch() // reads 0, StartTOD = 0

	k.YieldTo(id) // reads 1500, charges 1500-0

	if got := k.Pool.Get(id).CPUTime; got != 1500 {
		t.Errorf("CPUTime = %d, want 1500", got)
	}
}

func TestYieldToPreservesPLTCountdown(t *testing.T) {
	k, _ := newTestKernel(t)
	id := spawnReady(t, k)
	k.Dispatch()
	k.pltCountdown = 2000 // simulate partial slice consumption

	k.YieldTo(id)
	if k.PLTCountdown() != 2000 {
		t.Errorf("PLTCountdown() = %d after YieldTo, want unchanged 2000", k.PLTCountdown())
	}
}

func TestSysCreateAndTerminateTree(t *testing.T) {
	k, _ := newTestKernel(t)
	parent := spawnReady(t, k)
	k.Dispatch()

	var st pcb.ProcessorState
	st.Regs[pcb.RegA0] = 1 // SYS1
	out := k.handleSyscall(st, &SysCreateArgs{})
	if out.Resumed != parent {
		t.Fatalf("sysCreate did not resume the creator: %+v", out)
	}
	if k.Pool.Get(parent).State.V0() != 0 {
		t.Errorf("sysCreate v0 = %d, want 0 on success", k.Pool.Get(parent).State.V0())
	}
	if k.ProcessCount != 2 {
		t.Fatalf("ProcessCount = %d, want 2 after create", k.ProcessCount)
	}

	child := k.Pool.Get(parent).FirstChild()
	if child == pcb.NoPID {
		t.Fatal("parent has no child after SYS1")
	}

	// SYS2 on the parent should recursively free parent and child.
	var term pcb.ProcessorState
	term.Regs[pcb.RegA0] = 2
	k.handleSyscall(term, nil)
	if k.ProcessCount != 0 {
		t.Errorf("ProcessCount = %d after terminating the tree, want 0", k.ProcessCount)
	}
	if k.Pool.FreeCount() != pcb.MaxProc {
		t.Errorf("FreeCount() = %d after terminating the tree, want %d", k.Pool.FreeCount(), pcb.MaxProc)
	}
}

func TestSysPBlocksOnZeroSemaphore(t *testing.T) {
	k, _ := newTestKernel(t)
	id := spawnReady(t, k)
	other := spawnReady(t, k) // keeps Dispatch from deadlocking once id blocks
	k.Dispatch()

	key := membus.Addr(100)
	var st pcb.ProcessorState
	st.Regs[pcb.RegA0] = 3
	st.Regs[pcb.RegA1] = uint32(key)
	out := k.handleSyscall(st, nil)

	if out.Resumed != other {
		t.Errorf("Dispatch() after blocking P = %+v, want it to resume the other ready process %v", out, other)
	}
	if k.Pool.Get(id).WaitKey != key {
		t.Errorf("WaitKey = %v, want %v after blocking P", k.Pool.Get(id).WaitKey, key)
	}
}

func TestSysPThenSysVWakesWaiter(t *testing.T) {
	k, _ := newTestKernel(t)
	waiter := spawnReady(t, k)
	k.Dispatch() // Current = waiter, ready queue now empty

	signaler := spawnReady(t, k) // queued ready so P's internal Dispatch has somewhere to go

	key := membus.Addr(200)
	var pst pcb.ProcessorState
	pst.Regs[pcb.RegA0] = 3
	pst.Regs[pcb.RegA1] = uint32(key)
	out := k.handleSyscall(pst, nil)
	if out.Resumed != signaler {
		t.Fatalf("Dispatch() after waiter blocked = %+v, want it to resume %v", out, signaler)
	}

	var vst pcb.ProcessorState
	vst.Regs[pcb.RegA0] = 4
	vst.Regs[pcb.RegA1] = uint32(key)
	k.handleSyscall(vst, nil)

	if k.Pool.Get(waiter).WaitKey != membus.Reserved {
		t.Errorf("waiter still blocked after V: WaitKey = %v", k.Pool.Get(waiter).WaitKey)
	}
	// The waiter should be back on the ready queue.
	head := k.Pool.QueuePeekHead(k.ReadyTail)
	if head != waiter {
		t.Errorf("ready-queue head = %v, want woken waiter %v", head, waiter)
	}
}

func TestDeviceInterruptWakesWaiterAndCreditsCPUTime(t *testing.T) {
	// Reads, in call order: waiter's Dispatch (1), the internal Dispatch
	// inside its wait-io call (2), runner's Dispatch (3), HandleInterrupt's
	// irqTOD (4), and the credit read inside handleDeviceInterrupt (5).
	k, _ := newTestKernelWithClock(t, newFakeClock(0, 0, 1000, 1250, 1260))
	waiter := spawnReady(t, k)
	k.Dispatch()

	const line, device = 3, 2
	var wst pcb.ProcessorState
	wst.Regs[pcb.RegA0] = 5 // SYS5 wait-io
	wst.Regs[pcb.RegA1] = line
	wst.Regs[pcb.RegA2] = device
	wst.Regs[pcb.RegA3] = 1 // read
	k.handleSyscall(wst, nil)

	if k.SoftBlockedCount != 1 {
		t.Fatalf("SoftBlockedCount = %d after wait-io, want 1", k.SoftBlockedCount)
	}

	runner := spawnReady(t, k)
	k.Dispatch() // reads 1000, StartTOD = 1000

	k.Regs.RaiseLine(line, device)
	k.Regs.Quad(line, device).Status = 0xABCD

	out := k.HandleInterrupt(k.Pool.Get(runner).State) // irqTOD=1250, credit-read=1260

	if k.SoftBlockedCount != 0 {
		t.Errorf("SoftBlockedCount = %d after device completion, want 0", k.SoftBlockedCount)
	}
	if got := k.Pool.Get(waiter).State.V0(); got != 0xABCD {
		t.Errorf("woken process v0 = %#x, want status 0xABCD", got)
	}
	if k.Pool.Get(waiter).CPUTime != 10 {
		t.Errorf("woken process CPUTime = %d, want 10 (device-service credit)", k.Pool.Get(waiter).CPUTime)
	}
	if out.Resumed != runner {
		t.Errorf("HandleInterrupt() did not resume the interrupted runner: %+v", out)
	}
	if k.Pool.Get(runner).CPUTime != 250 {
		t.Errorf("runner CPUTime = %d, want 250", k.Pool.Get(runner).CPUTime)
	}
}

func TestPLTInterruptPreemptsAndRequeues(t *testing.T) {
	// A lone process hit by its own PLT expiry is requeued and
	// immediately redispatched to itself, with a fresh full slice and
	// its run interval credited.
	k, _ := newTestKernelWithClock(t, newFakeClock(0, TimeSlice, TimeSlice+1))
	running := spawnReady(t, k)
	k.Dispatch() // reads 0, StartTOD = 0

	state := k.Pool.Get(running).State
	state.Cause = uint32(1) << (8 + 1) // pending bit for the PLT line
	out := k.HandleInterrupt(state)    // irqTOD = TimeSlice; redispatch reads TimeSlice+1

	if out.Resumed != running {
		t.Fatalf("HandleInterrupt() = %+v, want the sole process redispatched to itself", out)
	}
	if k.Current != running {
		t.Errorf("Current = %v, want %v", k.Current, running)
	}
	if k.PLTCountdown() != TimeSlice {
		t.Errorf("PLTCountdown() = %d after redispatch, want a fresh %d", k.PLTCountdown(), TimeSlice)
	}
	if k.Pool.Get(running).CPUTime != TimeSlice {
		t.Errorf("preempted process CPUTime = %d, want %d", k.Pool.Get(running).CPUTime, TimeSlice)
	}
}

func TestIntervalTimerDrainsAllPseudoClockWaiters(t *testing.T) {
	k, _ := newTestKernel(t)
	waiters := []pcb.PID{spawnReady(t, k), spawnReady(t, k), spawnReady(t, k)}
	k.Dispatch() // Current = waiters[0], the other two still ready

	// Each wait-clock call blocks whichever process is current and its
	// own internal Dispatch() advances Current to the next ready waiter.
	for range waiters {
		var st pcb.ProcessorState
		st.Regs[pcb.RegA0] = 7 // SYS7 wait-clock
		k.handleSyscall(st, nil)
	}
	if k.SoftBlockedCount != len(waiters) {
		t.Fatalf("SoftBlockedCount = %d, want %d", k.SoftBlockedCount, len(waiters))
	}

	var state pcb.ProcessorState
	state.Cause = uint32(1) << (8 + 2) // pending bit for the interval-timer line
	k.HandleInterrupt(state)

	if k.SoftBlockedCount != 0 {
		t.Errorf("SoftBlockedCount = %d after interval tick, want 0", k.SoftBlockedCount)
	}
	for _, w := range waiters {
		if k.Pool.Get(w).WaitKey != membus.Reserved {
			t.Errorf("waiter %v still blocked after interval tick", w)
		}
	}
}
