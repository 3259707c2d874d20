/*
 * GVM - Event intake buffers.
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

// Package intake buffers one cycle's worth of RTL observation events,
// one slice per event kind, appended by RTL shim callbacks and drained
// wholesale by the ingest pipeline at the start of each GVM cycle.
package intake

// Cta2Warp reports one new warp dispatched to hardware.
type Cta2Warp struct {
	SoftwareWGID   uint32
	SoftwareWarpID uint32
	SMID           uint32
	HardwareWarpID uint32
	SGPRBase       uint32
	VGPRBase       uint32
	WGSlotID       uint32
	NumThreads     uint32
}

// InsnDispatch reports one instruction injected into the pipeline.
type InsnDispatch struct {
	SMID           uint32
	HardwareWarpID uint32
	PC             uint32
	Insn           uint32
	DispatchID     uint32
	IsExtended     bool
}

// XRegWb reports a scalar writeback.
type XRegWb struct {
	SMID           uint32
	HardwareWarpID uint32
	PC             uint32
	Insn           uint32
	DispatchID     uint32
	RegIdx         uint32
	RD             uint32
}

// VRegWb reports one lane of a vector writeback. Lanes arrive
// independently and are aggregated by (SMID, HardwareWarpID, DispatchID).
type VRegWb struct {
	SMID           uint32
	HardwareWarpID uint32
	PC             uint32
	Insn           uint32
	DispatchID     uint32
	RegIdx         uint32
	ThreadIdx      uint32
	RDLane         uint32
	MaskLane       bool
}

// XRegSample reports one word of the scalar register file, sampled
// every cycle across all banks.
type XRegSample struct {
	SMID         uint32
	BankID       uint32
	NumBanks     uint32
	NumSGPRSlots uint32
	WordIdx      uint32
	Word         uint32
}

// BarrierDone reports a barrier quorum reached for one (SM, warp-group
// slot) pair.
type BarrierDone struct {
	SMID       uint32
	WGSlotID   uint32
	PC         uint32
	Insn       uint32
	DispatchID uint32
}

// Buffer accumulates one cycle's events, one slice per kind. It is not
// safe for concurrent use; the cooperative model has RTL callbacks
// append between GVM cycles and the ingest pipeline drain at the start
// of the next one, never both at once.
type Buffer struct {
	Cta2Warps     []Cta2Warp
	InsnDispatches []InsnDispatch
	XRegWbs       []XRegWb
	VRegWbs       []VRegWb
	XRegSamples   []XRegSample
	BarrierDones  []BarrierDone
}

func (b *Buffer) AddCta2Warp(e Cta2Warp)         { b.Cta2Warps = append(b.Cta2Warps, e) }
func (b *Buffer) AddInsnDispatch(e InsnDispatch) { b.InsnDispatches = append(b.InsnDispatches, e) }
func (b *Buffer) AddXRegWb(e XRegWb)             { b.XRegWbs = append(b.XRegWbs, e) }
func (b *Buffer) AddVRegWb(e VRegWb)             { b.VRegWbs = append(b.VRegWbs, e) }
func (b *Buffer) AddXRegSample(e XRegSample)     { b.XRegSamples = append(b.XRegSamples, e) }
func (b *Buffer) AddBarrierDone(e BarrierDone)   { b.BarrierDones = append(b.BarrierDones, e) }

// Drain returns a shallow copy of the buffer's contents and clears it
// in place, ready for the next cycle's RTL callbacks.
func (b *Buffer) Drain() Buffer {
	out := *b
	b.Cta2Warps = nil
	b.InsnDispatches = nil
	b.XRegWbs = nil
	b.VRegWbs = nil
	b.XRegSamples = nil
	b.BarrierDones = nil
	return out
}
