/*
 * nucleus - MMIO device register area.
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

// Package devreg models the MMIO device register area: one status/
// command quad per device on each interrupt line, plus the pending-bit
// bitmaps the interrupt dispatcher scans to find the next device to
// service.
package devreg

// Interrupt lines. Line 0 is reserved for exceptions/syscalls (cause
// code 0 routes to the interrupt dispatcher itself, decoded by pending
// bit rather than by this table).
const (
	LinePLT         = 1 // Local processor timer (preemption)
	LineIntervalTmr = 2 // Pseudo-clock
	LineDeviceMin   = 3
	LineDeviceMax   = 7
	LineTerminal    = 7
	DevicesPerLine  = 8
)

// NumSlots is the fixed device-semaphore table size: one slot per
// device on each of the five device lines, a second block of 8 for
// terminal transmit sub-devices, plus one pseudo-clock slot.
const NumSlots = (LineDeviceMax-LineDeviceMin+1)*DevicesPerLine + DevicesPerLine + 1

// PseudoClockSlot is the fixed final slot, reserved for the pseudo-clock counter.
const PseudoClockSlot = NumSlots - 1

// Slot computes the device-semaphore-table index for (line, device),
// offsetting into the second half of the table for terminal transmit
// requests. isWrite is only meaningful for LineTerminal.
func Slot(line, device int, isWrite bool) int {
	slot := (line-LineDeviceMin)*DevicesPerLine + device
	if line == LineTerminal && isWrite {
		slot += DevicesPerLine
	}
	return slot
}

// Command and status codes for the MMIO register quad.
const (
	CmdAck      uint32 = 1
	StatusReady uint32 = 1
)

// Quad is a single device's register set: status, command, and two
// data registers. Terminal devices reinterpret the same four words as
// (recv-status, recv-command, xmit-status, xmit-command).
type Quad struct {
	Status  uint32
	Command uint32
	Data0   uint32
	Data1   uint32
}

func (q *Quad) RecvStatus() uint32      { return q.Status }
func (q *Quad) XmitStatus() uint32      { return q.Data0 }
func (q *Quad) SetRecvCommand(c uint32) { q.Command = c }
func (q *Quad) SetXmitCommand(c uint32) { q.Data1 = c }

// RegisterFile holds the MMIO register quads for every device on
// lines 3..7, plus the interrupt-pending bitmaps the interrupt
// dispatcher scans: one global line-pending byte (bit i = line i has a
// pending interrupt, bit 0 reserved) and one per-line device bitmap.
type RegisterFile struct {
	quads       [LineDeviceMax - LineDeviceMin + 1][DevicesPerLine]Quad
	linePending uint8
	devPending  [LineDeviceMax - LineDeviceMin + 1]uint8
}

func lineIndex(line int) int { return line - LineDeviceMin }

// Quad returns the register quad for (line, device).
func (r *RegisterFile) Quad(line, device int) *Quad {
	return &r.quads[lineIndex(line)][device]
}

// RaiseLine sets the global pending bit for line and the per-line
// device-pending bit for device, as hardware would when a device
// completes or signals attention.
func (r *RegisterFile) RaiseLine(line, device int) {
	r.linePending |= 1 << uint(line)
	r.devPending[lineIndex(line)] |= 1 << uint(device)
}

// AckDevice clears the device's pending bit, and the line's pending bit
// if it was the last device pending on that line.
func (r *RegisterFile) AckDevice(line, device int) {
	r.devPending[lineIndex(line)] &^= 1 << uint(device)
	if r.devPending[lineIndex(line)] == 0 {
		r.linePending &^= 1 << uint(line)
	}
}

// LinePending returns the 8-bit pending field (bit 0 reserved, bit 1
// PLT, bit 2 interval timer, bits 3..7 device lines).
func (r *RegisterFile) LinePending() uint8 { return r.linePending }

// SetLinePending forces the line-pending bit for line (used by the PLT
// and interval-timer simulation, which have no per-device register).
func (r *RegisterFile) SetLinePending(line int, pending bool) {
	if pending {
		r.linePending |= 1 << uint(line)
	} else {
		r.linePending &^= 1 << uint(line)
	}
}

// LowestPendingDevice returns the lowest-numbered device on line with a
// pending bit set, or (-1, false) if none.
func (r *RegisterFile) LowestPendingDevice(line int) (int, bool) {
	bm := r.devPending[lineIndex(line)]
	if bm == 0 {
		return -1, false
	}
	for d := 0; d < DevicesPerLine; d++ {
		if bm&(1<<uint(d)) != 0 {
			return d, true
		}
	}
	return -1, false
}
