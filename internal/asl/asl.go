/*
 * nucleus - Active semaphore list.
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

// Package asl implements the active semaphore list: a fixed-size,
// key-sorted array of semaphore descriptors, each holding a FIFO wait
// queue. Two permanent sentinel entries (key 0 and key MaxUint32) bound
// the list so insertion and lookup never need a special case for the
// first or last real entry.
package asl

import (
	"errors"
	"math"

	"github.com/umps3/nucleus/internal/membus"
	"github.com/umps3/nucleus/internal/pcb"
)

// MaxEntries is MaxProc+2: one descriptor per process plus the two sentinels.
const MaxEntries = pcb.MaxProc + 2

// ErrNoFreeDescriptor is returned by InsertBlocked when a new key needs
// a descriptor and the free list is empty.
var ErrNoFreeDescriptor = errors.New("asl: no free descriptor")

const sentinelHeadKey membus.Addr = membus.Reserved
const sentinelTailKey membus.Addr = membus.Addr(math.MaxUint32)

type entry struct {
	key       membus.Addr
	waitTail  pcb.PID // tail handle of this key's wait queue
	next      int32   // index of next entry in sorted order, -1 at tail sentinel
	allocated bool
}

// List is the sorted, array-backed index from synchronization address
// to a FIFO of blocked PCBs. All operations are O(active keys).
type List struct {
	pool    *pcb.Pool
	entries [MaxEntries]entry
	head    int32 // index of sentinel with key 0
	free    []int32
}

// New returns an empty ASL (just the two sentinels) over pool.
func New(pool *pcb.Pool) *List {
	l := &List{pool: pool}
	// entries[0] = head sentinel, entries[1] = tail sentinel, rest free.
	l.entries[0] = entry{key: sentinelHeadKey, waitTail: pcb.NoPID, next: 1, allocated: true}
	l.entries[1] = entry{key: sentinelTailKey, waitTail: pcb.NoPID, next: -1, allocated: true}
	l.head = 0
	l.free = make([]int32, 0, MaxEntries-2)
	for i := int32(MaxEntries - 1); i >= 2; i-- {
		l.free = append(l.free, i)
	}
	return l
}

// find returns the index of the entry with the given key, and the
// index of its immediate predecessor in sorted order. If no entry with
// that key exists, found is -1 and pred is the entry that would
// precede it (never the virtual head, since the head sentinel's key 0
// is always a valid predecessor).
func (l *List) find(key membus.Addr) (found, pred int32) {
	pred = l.head
	cur := l.entries[l.head].next
	for cur != -1 {
		if l.entries[cur].key == key {
			return cur, pred
		}
		if l.entries[cur].key > key {
			return -1, pred
		}
		pred = cur
		cur = l.entries[cur].next
	}
	return -1, pred
}

// InsertBlocked blocks pid on key: appends to an existing wait queue,
// or allocates a new sorted entry when key is not yet active. Sets
// pid's WaitKey. Fails with ErrNoFreeDescriptor only when key is new
// and the descriptor free list is empty.
func (l *List) InsertBlocked(key membus.Addr, pid pcb.PID) error {
	found, pred := l.find(key)
	if found == -1 {
		if len(l.free) == 0 {
			return ErrNoFreeDescriptor
		}
		idx := l.free[len(l.free)-1]
		l.free = l.free[:len(l.free)-1]
		l.entries[idx] = entry{key: key, waitTail: pcb.NoPID, next: l.entries[pred].next, allocated: true}
		l.entries[pred].next = idx
		found = idx
	}
	e := &l.entries[found]
	e.waitTail = l.pool.QueueInsertTail(e.waitTail, pid)
	l.pool.Get(pid).WaitKey = key
	return nil
}

// unsplice removes entry idx (not a sentinel) from the sorted chain and
// frees its descriptor.
func (l *List) unsplice(idx int32) {
	_, pred := l.find(l.entries[idx].key)
	l.entries[pred].next = l.entries[idx].next
	l.entries[idx] = entry{}
	l.free = append(l.free, idx)
}

// RemoveBlocked removes and returns the head of key's wait queue,
// clearing its WaitKey. Frees the descriptor if the queue drains.
// Returns pcb.NoPID if key has no active entry.
func (l *List) RemoveBlocked(key membus.Addr) pcb.PID {
	found, _ := l.find(key)
	if found == -1 {
		return pcb.NoPID
	}
	e := &l.entries[found]
	newTail, head := l.pool.QueueRemoveHead(e.waitTail)
	if head == pcb.NoPID {
		return pcb.NoPID
	}
	e.waitTail = newTail
	l.pool.Get(head).WaitKey = membus.Reserved
	if l.pool.QueueEmpty(e.waitTail) {
		l.unsplice(found)
	}
	return head
}

// KeyStatus describes one active (non-sentinel) semaphore entry, for
// inspection tools that need to see what's currently blocked.
type KeyStatus struct {
	Key     membus.Addr
	Waiting int
}

// Snapshot returns every active key in sorted order along with the
// number of PCBs currently blocked on it. The two permanent sentinels
// are never included.
func (l *List) Snapshot() []KeyStatus {
	var out []KeyStatus
	cur := l.entries[l.head].next
	for cur != -1 && l.entries[cur].key != sentinelTailKey {
		e := &l.entries[cur]
		out = append(out, KeyStatus{Key: e.key, Waiting: l.pool.QueueLen(e.waitTail)})
		cur = e.next
	}
	return out
}

// PeekBlocked returns the head of key's wait queue without removing it.
func (l *List) PeekBlocked(key membus.Addr) pcb.PID {
	found, _ := l.find(key)
	if found == -1 {
		return pcb.NoPID
	}
	return l.pool.QueuePeekHead(l.entries[found].waitTail)
}

// OutBlocked removes pid from the wait queue identified by its own
// WaitKey. Returns pcb.NoPID if pid is not found there. Unlike
// RemoveBlocked, it does not clear pid's WaitKey. Frees the descriptor
// if the queue drains.
func (l *List) OutBlocked(pid pcb.PID) pcb.PID {
	key := l.pool.Get(pid).WaitKey
	found, _ := l.find(key)
	if found == -1 {
		return pcb.NoPID
	}
	e := &l.entries[found]
	// Rotate the queue once, dropping pid if it is there; the other
	// waiters keep their FIFO order.
	removed := pcb.NoPID
	for n := l.pool.QueueLen(e.waitTail); n > 0; n-- {
		var head pcb.PID
		e.waitTail, head = l.pool.QueueRemoveHead(e.waitTail)
		if head == pid {
			removed = head
			continue
		}
		e.waitTail = l.pool.QueueInsertTail(e.waitTail, head)
	}
	if removed == pcb.NoPID {
		return pcb.NoPID
	}
	if l.pool.QueueEmpty(e.waitTail) {
		l.unsplice(found)
	}
	return removed
}
