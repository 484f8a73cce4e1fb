/*
 * nucleus - Process control block pool.
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

// Package pcb holds the fixed-size process descriptor arena: a pool of
// MaxProc PCBs linked by index rather than pointer, so the ready queue,
// the ASL's wait queues, and the parent/sibling descendant tree can all
// share the one backing array without aliasing each other.
package pcb

import (
	"errors"

	"github.com/umps3/nucleus/internal/membus"
)

// MaxProc is the fixed number of process descriptors the pool holds.
const MaxProc = 20

// PID indexes a descriptor in the pool. NoPID marks the absence of a link.
type PID int32

// NoPID is the null link value, valid in queue links, tree links, and as a tail handle.
const NoPID PID = -1

// ErrExhausted is returned by Alloc when no descriptor is free.
var ErrExhausted = errors.New("pcb: pool exhausted")

// ProcessorState is the complete architectural state saved and restored
// on every dispatch: status, cause, program counter, the HI/LO
// multiply/divide registers, and 31 general-purpose registers.
type ProcessorState struct {
	Status  uint32
	Cause   uint32
	PC      uint32
	EntryHi uint32
	HI      uint32
	LO      uint32
	Regs    [31]uint32
}

// Register indices into ProcessorState.Regs, following the MIPS
// calling convention (Regs[i] holds architectural register r(i+1), r0
// being hardwired zero and not stored).
const (
	RegV0 = 1  // r2: syscall/return value
	RegA0 = 3  // r4: syscall number
	RegA1 = 4  // r5: syscall argument 1
	RegA2 = 5  // r6: syscall argument 2
	RegA3 = 6  // r7: syscall argument 3
	RegSP = 28 // r29: stack pointer
)

func (s *ProcessorState) V0() uint32     { return s.Regs[RegV0] }
func (s *ProcessorState) SetV0(v uint32) { s.Regs[RegV0] = v }
func (s *ProcessorState) A0() uint32     { return s.Regs[RegA0] }
func (s *ProcessorState) A1() uint32     { return s.Regs[RegA1] }
func (s *ProcessorState) A2() uint32     { return s.Regs[RegA2] }
func (s *ProcessorState) A3() uint32     { return s.Regs[RegA3] }
func (s *ProcessorState) SP() uint32     { return s.Regs[RegSP] }
func (s *ProcessorState) SetSP(v uint32) { s.Regs[RegSP] = v }

// PCB is a single process descriptor. Queue and tree linkage fields are
// unexported: they are manipulated only through Pool's queue/tree
// operations so that invariants I-P1..I-P3 can only be broken from
// within this package.
type PCB struct {
	State   ProcessorState
	CPUTime uint64
	WaitKey membus.Addr // membus.Reserved (0) iff not blocked
	Support interface{}

	allocated bool

	qPrev, qNext PID

	parent       PID
	firstChild   PID
	leftSibling  PID
	rightSibling PID
}

// Parent, FirstChild report the PCB's place in the descendant tree.
func (p *PCB) Parent() PID     { return p.parent }
func (p *PCB) FirstChild() PID { return p.firstChild }

// Pool is the fixed-size arena of process descriptors.
type Pool struct {
	procs [MaxProc]PCB
	free  []PID
}

// NewPool returns a pool with all MaxProc descriptors free.
func NewPool() *Pool {
	p := &Pool{free: make([]PID, 0, MaxProc)}
	for i := PID(MaxProc - 1); i >= 0; i-- {
		p.free = append(p.free, i)
	}
	return p
}

// FreeCount returns the number of unallocated descriptors, for tests (I-8/9/11).
func (p *Pool) FreeCount() int { return len(p.free) }

// Alloc returns a zeroed descriptor or ErrExhausted.
func (p *Pool) Alloc() (PID, error) {
	if len(p.free) == 0 {
		return NoPID, ErrExhausted
	}
	pid := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	p.procs[pid] = PCB{
		qPrev: NoPID, qNext: NoPID,
		parent: NoPID, firstChild: NoPID, leftSibling: NoPID, rightSibling: NoPID,
		WaitKey:   membus.Reserved,
		allocated: true,
	}
	return pid, nil
}

// Release returns pid to the free pool. The caller must have already
// unlinked it from any queue or tree. Idempotent on NoPID.
func (p *Pool) Release(pid PID) {
	if pid == NoPID {
		return
	}
	p.procs[pid].allocated = false
	p.procs[pid] = PCB{qPrev: NoPID, qNext: NoPID, parent: NoPID, firstChild: NoPID, leftSibling: NoPID, rightSibling: NoPID}
	p.free = append(p.free, pid)
}

// Get returns the descriptor for pid. Callers must only pass a pid
// obtained from Alloc, a queue op, or a tree op; NoPID is invalid here.
func (p *Pool) Get(pid PID) *PCB {
	return &p.procs[pid]
}

// --- process queue: doubly-linked circular list, tail-handle represented ---

// QueueEmpty reports whether the queue identified by tail is empty.
func (p *Pool) QueueEmpty(tail PID) bool { return tail == NoPID }

// QueueHead returns the head of the queue identified by tail (NoPID if empty).
func (p *Pool) QueueHead(tail PID) PID {
	if tail == NoPID {
		return NoPID
	}
	return p.procs[tail].qNext
}

// QueueInsertTail appends pid to the queue identified by tail and
// returns the queue's new tail handle.
func (p *Pool) QueueInsertTail(tail, pid PID) PID {
	pc := &p.procs[pid]
	if tail == NoPID {
		pc.qNext = pid
		pc.qPrev = pid
		return pid
	}
	head := p.procs[tail].qNext
	pc.qNext = head
	pc.qPrev = tail
	p.procs[head].qPrev = pid
	p.procs[tail].qNext = pid
	return pid
}

// QueueRemoveHead removes and returns the head of the queue identified
// by tail. Returns the queue's new tail handle and the removed pid
// (NoPID if the queue was empty).
func (p *Pool) QueueRemoveHead(tail PID) (PID, PID) {
	head := p.QueueHead(tail)
	if head == NoPID {
		return tail, NoPID
	}
	return p.QueueRemove(tail, head)
}

// QueueRemove removes pid from the queue identified by tail. pid must
// currently be linked in that queue. Returns the queue's new tail handle.
func (p *Pool) QueueRemove(tail, pid PID) (PID, PID) {
	pc := &p.procs[pid]
	if pc.qNext == pid {
		// Sole element.
		pc.qNext, pc.qPrev = NoPID, NoPID
		if tail == pid {
			return NoPID, pid
		}
		return tail, pid
	}
	prev, next := pc.qPrev, pc.qNext
	p.procs[prev].qNext = next
	p.procs[next].qPrev = prev
	newTail := tail
	if tail == pid {
		newTail = prev
	}
	pc.qNext, pc.qPrev = NoPID, NoPID
	return newTail, pid
}

// QueuePeekHead returns the head of the queue without removing it.
func (p *Pool) QueuePeekHead(tail PID) PID { return p.QueueHead(tail) }

// QueueLen returns the number of elements in the queue identified by tail.
func (p *Pool) QueueLen(tail PID) int {
	if tail == NoPID {
		return 0
	}
	n := 0
	cur := p.procs[tail].qNext
	for {
		n++
		if cur == tail {
			return n
		}
		cur = p.procs[cur].qNext
	}
}

// --- descendant tree: parent + LIFO sibling list ---

// InsertChild places child at the head of parent's sibling list.
func (p *Pool) InsertChild(parent, child PID) {
	cp := &p.procs[child]
	pp := &p.procs[parent]
	cp.parent = parent
	cp.leftSibling = NoPID
	cp.rightSibling = pp.firstChild
	if pp.firstChild != NoPID {
		p.procs[pp.firstChild].leftSibling = child
	}
	pp.firstChild = child
}

// RemoveFirstChild detaches and returns parent's first child (NoPID if none).
func (p *Pool) RemoveFirstChild(parent PID) PID {
	child := p.procs[parent].firstChild
	if child == NoPID {
		return NoPID
	}
	p.Detach(child)
	return child
}

// Detach removes pid from its parent's sibling list. No-op if pid has no parent.
func (p *Pool) Detach(pid PID) {
	cp := &p.procs[pid]
	parent := cp.parent
	if parent == NoPID {
		return
	}
	left, right := cp.leftSibling, cp.rightSibling
	if left != NoPID {
		p.procs[left].rightSibling = right
	} else {
		p.procs[parent].firstChild = right
	}
	if right != NoPID {
		p.procs[right].leftSibling = left
	}
	cp.parent, cp.leftSibling, cp.rightSibling = NoPID, NoPID, NoPID
}
