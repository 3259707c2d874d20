/*
 * GVM - Instruction entry garbage collection.
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

package retire

import "github.com/rcornwell/gvm/warp"

// GC removes entries from the smallest dispatch_id upward while they
// are both retired and have a settled (non-pending) verdict, stopping
// at the first entry that fails the predicate so dispatch_id order is
// preserved and nothing behind a pending entry is ever reclaimed.
func GC(reg *warp.Registry) {
	for _, w := range reg.All() {
		for _, d := range append([]uint32{}, w.Ordered()...) {
			e := w.Insn(d)
			if e == nil {
				continue
			}
			if e.CmpPass == warp.CmpPending || !e.Retired {
				break
			}
			w.RemoveInsn(d)
		}
	}
}
