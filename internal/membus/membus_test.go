/*
 * nucleus - Word-addressed bus tests.
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
package membus

import "testing"

func TestReadWriteRoundTrip(t *testing.T) {
	b := NewBus(8)
	b.Write(3, 42)
	if got := b.Read(3); got != 42 {
		t.Errorf("Read(3) = %d, want 42", got)
	}
}

func TestIncrementDecrement(t *testing.T) {
	b := NewBus(4)
	if got := b.Increment(1); got != 1 {
		t.Errorf("Increment = %d, want 1", got)
	}
	if got := b.Increment(1); got != 2 {
		t.Errorf("Increment = %d, want 2", got)
	}
	if got := b.Decrement(1); got != 1 {
		t.Errorf("Decrement = %d, want 1", got)
	}
}

func TestOutOfRangeAddrPanics(t *testing.T) {
	b := NewBus(2)
	defer func() {
		if recover() == nil {
			t.Fatal("Read of an out-of-range address did not panic")
		}
	}()
	b.Read(5)
}

func TestNewBusMinimumSize(t *testing.T) {
	b := NewBus(0)
	if b.Size() != 1 {
		t.Errorf("Size() = %d, want 1 for a zero-word request", b.Size())
	}
}

func TestReservedAddrIsZero(t *testing.T) {
	if Reserved != 0 {
		t.Errorf("Reserved = %d, want 0", Reserved)
	}
}
