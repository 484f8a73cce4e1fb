/*
 * nucleus - Cause/status word encoding.
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

// Cause and status bit layout: bits 2..6 of the cause word carry the
// 5-bit exception code, bits 8..15 carry the pending-interrupt line
// bitmap, and the status word's low bit is the user-previous
// (user-mode) indicator.
const (
	causeCodeShift = 2
	causeCodeMask  = 0x1f

	causePendingShift = 8
	causePendingMask  = 0xff

	statusUserMode uint32 = 1 << 0
)

// Exception codes, as routed by HandleException.
const (
	causeInterrupt        = 0
	causeTLBModification  = 1
	causeTLBLoad          = 2
	causeTLBStore         = 3
	causeSyscall          = 8
	causeReservedInstr    = 10
)

func causeCode(cause uint32) uint32 {
	return (cause >> causeCodeShift) & causeCodeMask
}

func withCauseCode(cause, code uint32) uint32 {
	return (cause &^ (causeCodeMask << causeCodeShift)) | ((code & causeCodeMask) << causeCodeShift)
}

// PendingLines extracts the 8-bit pending-interrupt bitmap from a cause word.
func PendingLines(cause uint32) uint8 {
	return uint8((cause >> causePendingShift) & causePendingMask)
}

func isUserMode(status uint32) bool {
	return status&statusUserMode != 0
}
