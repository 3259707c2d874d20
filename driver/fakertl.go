/*
 * GVM - Scriptable fake RTL event source.
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

package driver

import "github.com/rcornwell/gvm/intake"

// FakeRTL is a scripted event source: a queue of per-cycle
// intake.Buffer contents, played back one cycle at a time. It replaces
// the real RTL shim's DPI-C callbacks for tests and the demo.
//
// Events accumulate into a staging buffer via the Add* methods, one
// call per observed RTL event, exactly as a live DPI-C shim would
// append them between clock edges; Commit seals the cycle by draining
// the staging buffer onto the playback queue.
type FakeRTL struct {
	cycles  []intake.Buffer
	pos     int
	pending intake.Buffer
}

// NewFakeRTL returns a fake RTL source with no scripted cycles.
func NewFakeRTL() *FakeRTL {
	return &FakeRTL{}
}

// Push appends one cycle's worth of already-assembled events to the
// playback queue, bypassing the Add*/Commit staging lifecycle. Useful
// for tests that build a whole Buffer at once.
func (f *FakeRTL) Push(buf intake.Buffer) {
	f.cycles = append(f.cycles, buf)
}

// AddCta2Warp stages one new-warp event for the cycle under construction.
func (f *FakeRTL) AddCta2Warp(e intake.Cta2Warp) {
	f.pending.AddCta2Warp(e)
}

// AddInsnDispatch stages one instruction-dispatch event for the cycle
// under construction.
func (f *FakeRTL) AddInsnDispatch(e intake.InsnDispatch) {
	f.pending.AddInsnDispatch(e)
}

// AddXRegWb stages one scalar writeback event for the cycle under
// construction.
func (f *FakeRTL) AddXRegWb(e intake.XRegWb) {
	f.pending.AddXRegWb(e)
}

// AddVRegWb stages one vector-lane writeback event for the cycle under
// construction.
func (f *FakeRTL) AddVRegWb(e intake.VRegWb) {
	f.pending.AddVRegWb(e)
}

// AddXRegSample stages one scalar register file sample for the cycle
// under construction.
func (f *FakeRTL) AddXRegSample(e intake.XRegSample) {
	f.pending.AddXRegSample(e)
}

// AddBarrierDone stages one barrier-quorum event for the cycle under
// construction.
func (f *FakeRTL) AddBarrierDone(e intake.BarrierDone) {
	f.pending.AddBarrierDone(e)
}

// Commit seals the cycle under construction: it drains the staging
// buffer built up by the Add* calls since the last Commit (or since
// construction) and appends the result to the playback queue.
func (f *FakeRTL) Commit() {
	f.cycles = append(f.cycles, f.pending.Drain())
}

// Next returns the next scripted cycle's events, or an empty Buffer
// and false once the queue is exhausted.
func (f *FakeRTL) Next() (intake.Buffer, bool) {
	if f.pos >= len(f.cycles) {
		return intake.Buffer{}, false
	}
	buf := f.cycles[f.pos]
	f.pos++
	return buf, true
}

// Remaining reports how many scripted cycles are left.
func (f *FakeRTL) Remaining() int {
	return len(f.cycles) - f.pos
}
