/*
 * nucleus - Time-of-day clock.
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

// Package todclock provides a monotonic, microsecond-scale time-of-day
// source: a single tick counter derived from wall time.
package todclock

import "time"

// Clock is a monotonic, microsecond-scale time-of-day source. Ticks
// never go backward; tests can fix the origin with NewAt.
type Clock struct {
	origin time.Time
}

// New returns a Clock whose origin is the current wall-clock time.
func New() *Clock {
	return &Clock{origin: time.Now()}
}

// NewAt returns a Clock with a caller-supplied origin, for deterministic tests.
func NewAt(origin time.Time) *Clock {
	return &Clock{origin: origin}
}

// Now returns the current TOD in microsecond-scale ticks since the clock's origin.
func (c *Clock) Now() uint64 {
	return uint64(time.Since(c.origin).Microseconds())
}
