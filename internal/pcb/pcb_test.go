/*
 * nucleus - Process control block pool tests.
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
package pcb

import "testing"

func TestAllocReleaseRoundTrip(t *testing.T) {
	p := NewPool()
	if got := p.FreeCount(); got != MaxProc {
		t.Fatalf("FreeCount() = %d, want %d", got, MaxProc)
	}

	var ids []PID
	for i := 0; i < MaxProc; i++ {
		id, err := p.Alloc()
		if err != nil {
			t.Fatalf("Alloc() #%d: %v", i, err)
		}
		ids = append(ids, id)
	}
	if p.FreeCount() != 0 {
		t.Fatalf("FreeCount() = %d, want 0 after exhausting pool", p.FreeCount())
	}
	if _, err := p.Alloc(); err != ErrExhausted {
		t.Fatalf("Alloc() on exhausted pool = %v, want ErrExhausted", err)
	}

	for _, id := range ids {
		p.Release(id)
	}
	if got := p.FreeCount(); got != MaxProc {
		t.Fatalf("FreeCount() = %d, want %d after releasing everything", got, MaxProc)
	}
}

func TestAllocZeroesDescriptor(t *testing.T) {
	p := NewPool()
	id, _ := p.Alloc()
	p.Get(id).CPUTime = 1234
	p.Get(id).WaitKey = 7
	p.Release(id)

	id2, _ := p.Alloc()
	pc := p.Get(id2)
	if pc.CPUTime != 0 || pc.WaitKey != 0 {
		t.Fatalf("Alloc() after release did not zero descriptor: CPUTime=%d WaitKey=%d", pc.CPUTime, pc.WaitKey)
	}
}

func TestQueueFIFO(t *testing.T) {
	p := NewPool()
	ids := make([]PID, 4)
	for i := range ids {
		ids[i], _ = p.Alloc()
	}

	tail := NoPID
	for _, id := range ids {
		tail = p.QueueInsertTail(tail, id)
	}

	var out []PID
	for !p.QueueEmpty(tail) {
		var pid PID
		tail, pid = p.QueueRemoveHead(tail)
		out = append(out, pid)
	}
	if len(out) != len(ids) {
		t.Fatalf("drained %d entries, want %d", len(out), len(ids))
	}
	for i, id := range ids {
		if out[i] != id {
			t.Errorf("FIFO order broken at %d: got %v, want %v", i, out[i], id)
		}
	}
	if !p.QueueEmpty(tail) {
		t.Errorf("queue not empty after draining, tail=%v", tail)
	}
}

func TestQueueRemoveMiddle(t *testing.T) {
	p := NewPool()
	a, _ := p.Alloc()
	b, _ := p.Alloc()
	c, _ := p.Alloc()

	tail := NoPID
	tail = p.QueueInsertTail(tail, a)
	tail = p.QueueInsertTail(tail, b)
	tail = p.QueueInsertTail(tail, c)

	tail, removed := p.QueueRemove(tail, b)
	if removed != b {
		t.Fatalf("QueueRemove returned %v, want %v", removed, b)
	}

	var out []PID
	for !p.QueueEmpty(tail) {
		var pid PID
		tail, pid = p.QueueRemoveHead(tail)
		out = append(out, pid)
	}
	want := []PID{a, c}
	if len(out) != len(want) {
		t.Fatalf("drained %v, want %v", out, want)
	}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("order[%d] = %v, want %v", i, out[i], want[i])
		}
	}
}

func TestQueueSingleElementRemove(t *testing.T) {
	p := NewPool()
	a, _ := p.Alloc()
	tail := p.QueueInsertTail(NoPID, a)
	tail, removed := p.QueueRemove(tail, a)
	if removed != a {
		t.Fatalf("QueueRemove = %v, want %v", removed, a)
	}
	if !p.QueueEmpty(tail) {
		t.Errorf("queue of one not empty after removing its only member")
	}
}

func TestTreeChildOrderIsLIFO(t *testing.T) {
	p := NewPool()
	parent, _ := p.Alloc()
	var children []PID
	for i := 0; i < 3; i++ {
		c, _ := p.Alloc()
		p.InsertChild(parent, c)
		children = append(children, c)
	}

	// Children were inserted in order children[0], children[1], children[2];
	// the sibling list is LIFO so FirstChild should be the last inserted.
	if got := p.Get(parent).FirstChild(); got != children[2] {
		t.Fatalf("FirstChild() = %v, want %v (most recently inserted)", got, children[2])
	}

	var popped []PID
	for {
		c := p.RemoveFirstChild(parent)
		if c == NoPID {
			break
		}
		popped = append(popped, c)
	}
	want := []PID{children[2], children[1], children[0]}
	if len(popped) != len(want) {
		t.Fatalf("popped %v, want %v", popped, want)
	}
	for i := range want {
		if popped[i] != want[i] {
			t.Errorf("pop order[%d] = %v, want %v", i, popped[i], want[i])
		}
	}
	if p.Get(parent).FirstChild() != NoPID {
		t.Errorf("parent still reports a child after popping all of them")
	}
}

func TestDetachMiddleSibling(t *testing.T) {
	p := NewPool()
	parent, _ := p.Alloc()
	a, _ := p.Alloc()
	b, _ := p.Alloc()
	c, _ := p.Alloc()
	p.InsertChild(parent, a)
	p.InsertChild(parent, b)
	p.InsertChild(parent, c)
	// Sibling order is now c, b, a (LIFO).

	p.Detach(b)
	if p.Get(b).Parent() != NoPID {
		t.Errorf("detached child still reports a parent")
	}

	var remaining []PID
	for cur := p.Get(parent).FirstChild(); cur != NoPID; cur = p.procs[cur].rightSibling {
		remaining = append(remaining, cur)
	}
	want := []PID{c, a}
	if len(remaining) != len(want) {
		t.Fatalf("remaining siblings = %v, want %v", remaining, want)
	}
	for i := range want {
		if remaining[i] != want[i] {
			t.Errorf("sibling[%d] = %v, want %v", i, remaining[i], want[i])
		}
	}
}
