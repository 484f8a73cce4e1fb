/*
 * nucleus - Exception dispatcher and the eight supervisor calls.
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

// HandleException decodes an exception cause and routes it to the
// matching SYS1-8 handler, or to the pass-up-or-die path for anything
// that isn't a recognized syscall. Each handler is a small, named
// function; handleSyscall selects it with a switch on the call number.
package nucleus

import (
	"github.com/umps3/nucleus/internal/membus"
	"github.com/umps3/nucleus/internal/pcb"
)

// SysCreateArgs carries SYS1's two pointer-valued arguments (a1: new
// process state, a2: support structure). The nucleus models every
// other syscall argument as a plain register value, but SYS1's "new
// state" and "support pointer" are conceptually pointers into the
// caller's address space; since this module does not implement a
// general-purpose memory-backed struct loader, the caller resolves them
// and passes the result here instead of through membus.
type SysCreateArgs struct {
	State   pcb.ProcessorState
	Support interface{}
}

// HandleException is the exception dispatcher's single entry point: it
// reads the 5-bit cause code out of the already-saved exception state
// and routes to the interrupt dispatcher, a syscall, or a pass-up-or-die
// trap. create is only consulted when the saved state turns out to be
// a SYS1 call; pass nil otherwise.
func (k *Kernel) HandleException(state pcb.ProcessorState, create *SysCreateArgs) Outcome {
	switch code := causeCode(state.Cause); {
	case code == causeInterrupt:
		return k.HandleInterrupt(state)
	case code == causeTLBModification || code == causeTLBLoad || code == causeTLBStore:
		return k.passUpOrDie(state, PageFault)
	case code == causeSyscall:
		return k.handleSyscall(state, create)
	default:
		return k.passUpOrDie(state, GeneralExc)
	}
}

// HandleTLBTrap and HandleProgramTrap are direct entry points for
// callers (tests, the bootstrap) that already know the trap kind.
func (k *Kernel) HandleTLBTrap(state pcb.ProcessorState) Outcome {
	return k.passUpOrDie(state, PageFault)
}

func (k *Kernel) HandleProgramTrap(state pcb.ProcessorState) Outcome {
	return k.passUpOrDie(state, GeneralExc)
}

func (k *Kernel) handleSyscall(saved pcb.ProcessorState, create *SysCreateArgs) Outcome {
	// Re-entering the same syscall forever is the one mistake this
	// advance prevents: the saved PC still points at the SYSCALL
	// instruction until we move it past.
	saved.PC += 4

	if isUserMode(saved.Status) {
		saved.Cause = withCauseCode(saved.Cause, causeReservedInstr)
		return k.passUpOrDie(saved, GeneralExc)
	}

	num := saved.A0()
	if num < 1 || num > 8 {
		return k.passUpOrDie(saved, GeneralExc)
	}

	cur := k.Current
	k.Pool.Get(cur).State = saved
	st := &k.Pool.Get(cur).State

	switch num {
	case 1:
		return k.sysCreate(cur, st, create)
	case 2:
		return k.sysTerminate(cur)
	case 3:
		return k.sysP(cur, st)
	case 4:
		return k.sysV(cur, st)
	case 5:
		return k.sysWaitIO(cur, st)
	case 6:
		return k.sysCPUTime(cur, st)
	case 7:
		return k.sysWaitClock(cur, st)
	case 8:
		return k.sysSupport(cur)
	default:
		panic("nucleus: syscall number range already checked")
	}
}

// sysCreate is SYS1.
func (k *Kernel) sysCreate(cur pcb.PID, cst *pcb.ProcessorState, args *SysCreateArgs) Outcome {
	child, err := k.Pool.Alloc()
	if err != nil {
		cst.SetV0(^uint32(0)) // -1
		return k.YieldTo(cur)
	}
	cp := k.Pool.Get(child)
	if args != nil {
		cp.State = args.State
		cp.Support = args.Support
	}
	cp.CPUTime = 0
	cp.WaitKey = membus.Reserved
	k.Pool.InsertChild(cur, child)
	k.EnqueueReady(child)
	k.ProcessCount++
	cst.SetV0(0)
	return k.YieldTo(cur)
}

// sysTerminate is SYS2: recursively free current and its descendants.
func (k *Kernel) sysTerminate(cur pcb.PID) Outcome {
	k.terminateTree(cur, true)
	return k.Dispatch()
}

// terminateTree frees pid and, first, every descendant of pid
// (depth bounded by MaxProc, so plain recursion is fine).
func (k *Kernel) terminateTree(pid pcb.PID, isTarget bool) {
	for {
		child := k.Pool.RemoveFirstChild(pid)
		if child == pcb.NoPID {
			break
		}
		k.terminateTree(child, false)
	}
	k.terminateOne(pid, isTarget)
}

// terminateOne detaches pid from whichever linkage currently owns it
// and returns its descriptor to the pool.
func (k *Kernel) terminateOne(pid pcb.PID, isTarget bool) {
	pc := k.Pool.Get(pid)
	switch {
	case isTarget:
		// The call target is "current": not on any queue, only in its
		// parent's sibling list.
		k.Pool.Detach(pid)
	case pc.WaitKey != membus.Reserved:
		key := pc.WaitKey
		k.ASL.OutBlocked(pid)
		if k.IsDeviceKey(key) {
			k.SoftBlockedCount--
		} else {
			// Non-device semaphores obey ordinary counting-semaphore
			// algebra: aborting a blocked P must restore the unit it
			// would have consumed. Device counters encode in-flight
			// I/O via SoftBlockedCount instead; bumping the counter
			// itself here would lie to the interrupt path.
			k.Bus.Increment(key)
		}
	default:
		k.ReadyTail, _ = k.Pool.QueueRemove(k.ReadyTail, pid)
	}
	k.Pool.Release(pid)
	k.ProcessCount--
}

// sysP is SYS3.
func (k *Kernel) sysP(cur pcb.PID, st *pcb.ProcessorState) Outcome {
	key := membus.Addr(st.A1())
	if k.Bus.Decrement(key) < 0 {
		_ = k.ASL.InsertBlocked(key, cur)
		k.Metrics.Block()
		return k.Dispatch()
	}
	return k.YieldTo(cur)
}

// sysV is SYS4.
func (k *Kernel) sysV(cur pcb.PID, st *pcb.ProcessorState) Outcome {
	key := membus.Addr(st.A1())
	if k.Bus.Increment(key) <= 0 {
		if waiter := k.ASL.RemoveBlocked(key); waiter != pcb.NoPID {
			k.EnqueueReady(waiter)
			k.Metrics.Unblock()
		}
	}
	return k.YieldTo(cur)
}

// sysWaitIO is SYS5. Unlike P, a wait-io request always blocks: the
// requested I/O cannot have completed synchronously, so there is no
// "else resume" branch — soft_blocked_count is incremented
// unconditionally, on the block path.
func (k *Kernel) sysWaitIO(cur pcb.PID, st *pcb.ProcessorState) Outcome {
	line := int(st.A1())
	device := int(st.A2())
	isRead := st.A3() != 0
	addr := k.DeviceSemAddr(line, device, !isRead)

	k.Bus.Decrement(addr)
	k.SoftBlockedCount++
	_ = k.ASL.InsertBlocked(addr, cur)
	k.Metrics.Block()
	return k.Dispatch()
}

// sysCPUTime is SYS6.
func (k *Kernel) sysCPUTime(cur pcb.PID, st *pcb.ProcessorState) Outcome {
	now := k.Clock.Now()
	cp := k.Pool.Get(cur)
	cp.CPUTime += now - k.StartTOD
	k.StartTOD = now
	st.SetV0(uint32(cp.CPUTime))
	return k.YieldTo(cur)
}

// sysWaitClock is SYS7.
func (k *Kernel) sysWaitClock(cur pcb.PID, st *pcb.ProcessorState) Outcome {
	addr := k.PseudoClockAddr()
	k.Bus.Decrement(addr)
	k.SoftBlockedCount++
	_ = k.ASL.InsertBlocked(addr, cur)
	k.Metrics.Block()
	return k.Dispatch()
}

// sysSupport is SYS8. The support pointer is opaque and never
// interpreted by the core; it travels back to the caller via
// Outcome.Support rather than packed into v0, the same out-of-band
// treatment SYS1 uses for its pointer-valued arguments.
func (k *Kernel) sysSupport(cur pcb.PID) Outcome {
	out := k.YieldTo(cur)
	out.Support = k.Pool.Get(cur).Support
	return out
}

// passUpOrDie implements the pass-up-or-die rule: forward the fault to
// the current process's support layer if it registered one, otherwise
// terminate it (and its descendants) and dispatch.
func (k *Kernel) passUpOrDie(state pcb.ProcessorState, kind ExceptionKind) Outcome {
	cur := k.Current
	pc := k.Pool.Get(cur)
	pc.State = state

	if sup, ok := pc.Support.(*Support); ok && sup != nil {
		sup.State[kind] = state
		ctx := sup.Context[kind]
		next := pc.State
		next.PC = ctx.PC
		next.Status = ctx.Status
		next.SetSP(ctx.SP)
		pc.State = next
		return k.YieldTo(cur)
	}

	k.terminateTree(cur, true)
	return k.Dispatch()
}
