/*
 * nucleus - Simulated word-addressed bus.
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

// Package membus implements a flat, word-addressed bus: an array of
// int32 cells addressed by an opaque Addr, with no byte-level
// addressing since nothing above it ever interprets a word's contents.
package membus

import "fmt"

// Addr is an opaque word address. The ASL and P/V handlers compare and
// order Addr values but never interpret them beyond that; only Bus
// dereferences them.
type Addr uint32

// Reserved is the address kept permanently clear for the ASL's head
// sentinel. Address 0 is never handed out as a real
// semaphore key so it can never collide with the sentinel key.
const Reserved Addr = 0

// Bus is a fixed-size array of words. It backs the device-semaphore
// table and the general-purpose semaphore counters that P and V
// operate on.
type Bus struct {
	words []int32
}

// NewBus allocates a bus of the given word count. Word 0 is reserved.
func NewBus(words int) *Bus {
	if words < 1 {
		words = 1
	}
	return &Bus{words: make([]int32, words)}
}

func (b *Bus) checkAddr(addr Addr) {
	if int(addr) >= len(b.words) {
		panic(fmt.Sprintf("membus: address %d out of range (size %d)", addr, len(b.words)))
	}
}

// Read returns the word at addr.
func (b *Bus) Read(addr Addr) int32 {
	b.checkAddr(addr)
	return b.words[addr]
}

// Write stores v at addr.
func (b *Bus) Write(addr Addr, v int32) {
	b.checkAddr(addr)
	b.words[addr] = v
}

// Decrement subtracts one from the word at addr and returns the new value.
func (b *Bus) Decrement(addr Addr) int32 {
	b.checkAddr(addr)
	b.words[addr]--
	return b.words[addr]
}

// Increment adds one to the word at addr and returns the new value.
func (b *Bus) Increment(addr Addr) int32 {
	b.checkAddr(addr)
	b.words[addr]++
	return b.words[addr]
}

// Size returns the number of addressable words.
func (b *Bus) Size() int {
	return len(b.words)
}
