/*
 * nucleus - Interrupt dispatcher.
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

// HandleInterrupt scans the pending-interrupt bitmap in strict-priority
// order (PLT, interval timer, device lines lowest-first) and services
// the highest-priority source. A process a device interrupt wakes is
// credited CPU time for the device-servicing interval itself: the
// dispatcher reads the clock again after acknowledging the device and
// charges that second interval to the woken process, separately from
// the ordinary slice charge applied to whichever process was running
// when the interrupt arrived.
package nucleus

import (
	"github.com/umps3/nucleus/internal/devreg"
	"github.com/umps3/nucleus/internal/pcb"
)

// HandleInterrupt is the interrupt dispatcher's entry point. It reads
// the TOD on entry, then decodes the 8-bit
// pending field (bit 0 reserved) in strict priority order: PLT,
// interval timer, device lines 3..7 lowest first.
func (k *Kernel) HandleInterrupt(state pcb.ProcessorState) Outcome {
	irqTOD := k.Clock.Now()

	pending := k.Regs.LinePending() | PendingLines(state.Cause)
	pending &^= 1 // bit 0 reserved

	switch {
	case pending&(1<<devreg.LinePLT) != 0:
		return k.handlePLT(state, irqTOD)
	case pending&(1<<devreg.LineIntervalTmr) != 0:
		return k.handleIntervalTimer(state, irqTOD)
	}
	for line := devreg.LineDeviceMin; line <= devreg.LineDeviceMax; line++ {
		if pending&(1<<uint(line)) != 0 {
			return k.handleDeviceInterrupt(line, state, irqTOD)
		}
	}
	// Hardware state that cannot be parsed (a pending bit with no
	// owning line or device) falls through to dispatch rather than
	// wedging the nucleus.
	return k.Dispatch()
}

func (k *Kernel) handlePLT(state pcb.ProcessorState, irqTOD uint64) Outcome {
	k.pltCountdown = TimeSlice
	k.Regs.SetLinePending(devreg.LinePLT, false)

	if k.Current == pcb.NoPID {
		// The timer fired during idle; nothing to preempt.
		return k.Dispatch()
	}
	cur := k.Current
	pc := k.Pool.Get(cur)
	pc.State = state
	pc.CPUTime += irqTOD - k.StartTOD
	k.EnqueueReady(cur)
	k.Current = pcb.NoPID
	return k.Dispatch()
}

func (k *Kernel) handleIntervalTimer(state pcb.ProcessorState, irqTOD uint64) Outcome {
	k.Regs.SetLinePending(devreg.LineIntervalTmr, false)

	addr := k.PseudoClockAddr()
	for {
		pid := k.ASL.RemoveBlocked(addr)
		if pid == pcb.NoPID {
			break
		}
		k.EnqueueReady(pid)
		k.SoftBlockedCount--
		k.Metrics.Unblock()
	}
	// The counter is always <= 0 between ticks; after releasing every
	// waiter it must land on exactly 0.
	k.Bus.Write(addr, 0)

	return k.resumeCurrentAfterIRQ(state, irqTOD)
}

func (k *Kernel) handleDeviceInterrupt(line int, state pcb.ProcessorState, irqTOD uint64) Outcome {
	device, ok := k.Regs.LowestPendingDevice(line)
	if !ok {
		return k.resumeCurrentAfterIRQ(state, irqTOD)
	}

	q := k.Regs.Quad(line, device)
	isWrite := false
	var status uint32
	if line == devreg.LineTerminal && q.XmitStatus() != devreg.StatusReady {
		isWrite = true
		status = q.XmitStatus()
		q.SetXmitCommand(devreg.CmdAck)
	} else if line == devreg.LineTerminal {
		status = q.RecvStatus()
		q.SetRecvCommand(devreg.CmdAck)
	} else {
		status = q.Status
		q.Command = devreg.CmdAck
	}
	k.Regs.AckDevice(line, device)
	k.Metrics.DeviceCompletion()

	addr := k.DeviceSemAddr(line, device, isWrite)
	if k.Bus.Increment(addr) <= 0 {
		if waiter := k.ASL.RemoveBlocked(addr); waiter != pcb.NoPID {
			pc := k.Pool.Get(waiter)
			pc.State.SetV0(status)
			k.EnqueueReady(waiter)
			k.SoftBlockedCount--
			// Credit the device-servicing interval to the process the
			// completion just woke, exactly as the original nucleus does.
			now := k.Clock.Now()
			pc.CPUTime += now - irqTOD
			k.Metrics.Unblock()
		}
		// No waiter: the completion is lost to that specific process,
		// but the counter still reflects the signal.
	}

	return k.resumeCurrentAfterIRQ(state, irqTOD)
}

// resumeCurrentAfterIRQ implements the common tail of the interval-
// timer and device-interrupt paths: if a process was running, snapshot
// its state, charge it for the interval it ran, and resume it with
// its remaining slice untouched; otherwise dispatch.
func (k *Kernel) resumeCurrentAfterIRQ(state pcb.ProcessorState, irqTOD uint64) Outcome {
	if k.Current == pcb.NoPID {
		return k.Dispatch()
	}
	cur := k.Current
	pc := k.Pool.Get(cur)
	pc.State = state
	pc.CPUTime += irqTOD - k.StartTOD
	k.StartTOD = irqTOD
	return Outcome{Resumed: cur}
}
