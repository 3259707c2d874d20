/*
 * GVM - DUT ingest pipeline.
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

// Package ingest turns one cycle's drained intake.Buffer into updates
// on the warp registry: warp create/destroy, instruction dispatch,
// scalar/vector writeback completion, barrier completion, scalar
// register sampling, and new-warp REF seeding signalling.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"math/bits"

	"github.com/rcornwell/gvm/classify"
	"github.com/rcornwell/gvm/intake"
	"github.com/rcornwell/gvm/warp"
)

// FatalError wraps an ingest-time invariant violation: duplicate warp
// identity, dispatch_id reuse, or a completion on a retire-relevant
// barrier entry via the wrong channel.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return "ingest: " + e.Err.Error() }
func (e *FatalError) Unwrap() error { return e.Err }

func fatalf(format string, args ...any) *FatalError {
	return &FatalError{Err: fmt.Errorf(format, args...)}
}

// Config carries the ingest-relevant subset of engine configuration.
type Config struct {
	EndprgMask  uint32
	EndprgValue uint32
	// XRegUsage is the number of scalar registers tracked per warp,
	// a multiple of the bank count. The Cta2Warp event carries only
	// sgpr_base (the bank-relative window start); usage width is a
	// design-time constant of the SM, not sampled per warp.
	XRegUsage uint32
}

// Pipeline runs the fixed DUT-ingest sub-steps of one GVM cycle in
// order (create, destroy, dispatch, completion marking, register
// sampling), and returns the logical keys of warps created this cycle
// so the caller can do the REF seeding step via set_warp_xreg, since
// REF itself is outside this module.
type Pipeline struct {
	Log *slog.Logger
}

// vkey aggregates vector writeback lanes before they are folded into a
// warp's InsnEntry.
type vkey struct {
	sm, hw, dispatch uint32
}

// Run executes warp create, warp destroy, dispatch, completion marking
// (scalar, vector, barrier), scalar register sampling and returns the
// set of newly created warp keys.
func (p *Pipeline) Run(ctx context.Context, buf intake.Buffer, reg *warp.Registry, tables classify.Tables, cfg Config) ([]warp.Key, error) {
	_ = ctx
	var created []warp.Key

	// 1. Warp create.
	for _, e := range buf.Cta2Warps {
		key := warp.Key{SoftwareWGID: e.SoftwareWGID, SoftwareWarpID: e.SoftwareWarpID}
		hw := warp.HWKey{SMID: e.SMID, HardwareWarpID: e.HardwareWarpID}
		if _, ok := reg.ByKey(key); ok {
			return nil, fatalf("warp create: key %v already live", key)
		}
		if _, ok := reg.ByHW(hw); ok {
			return nil, fatalf("warp create: hardware binding %v already live", hw)
		}
		_, err := reg.Create(key, hw, e.WGSlotID, e.NumThreads, e.SGPRBase, cfg.XRegUsage)
		if err != nil {
			return nil, fatalf("warp create: %v", err)
		}
		created = append(created, key)
	}

	// 2. Warp destroy: any InsnDispatch whose raw insn matches endprg.
	for _, e := range buf.InsnDispatches {
		if e.Insn&cfg.EndprgMask != cfg.EndprgValue {
			continue
		}
		hw := warp.HWKey{SMID: e.SMID, HardwareWarpID: e.HardwareWarpID}
		if _, ok := reg.ByHW(hw); !ok {
			return nil, fatalf("warp destroy: no live warp at %v for endprg", hw)
		}
		if err := reg.Destroy(hw); err != nil {
			return nil, fatalf("warp destroy: %v", err)
		}
	}

	// 3. Dispatch: create an InstructionEntry for every InsnDispatch.
	// The endprg dispatch itself also passes through here; since step 2
	// already destroyed its warp, the lookup below finds it gone and
	// logs a harmless stray rather than creating a dangling entry.
	for _, e := range buf.InsnDispatches {
		hw := warp.HWKey{SMID: e.SMID, HardwareWarpID: e.HardwareWarpID}
		w, ok := reg.ByHW(hw)
		if !ok {
			p.debugf("dispatch: stray event, warp gone at %v dispatch_id=%d", hw, e.DispatchID)
			continue
		}
		if w.Insn(e.DispatchID) != nil {
			return nil, fatalf("dispatch: dispatch_id %d already present on warp %v", e.DispatchID, w.Key)
		}
		entry := &warp.InsnEntry{
			PC:         e.PC,
			Insn:       e.Insn,
			DispatchID: e.DispatchID,
			IsExtended: e.IsExtended,
		}
		entry.RetireCare = tables.RetireCareInsn(e.Insn)
		entry.SingleCmpCare = tables.SingleCmpCareInsn(e.Insn)
		entry.IsBarrier = tables.BarrierInsn(e.Insn)
		if !entry.SingleCmpCare {
			entry.CmpPass = warp.CmpPass
		}
		if err := w.AddInsn(entry); err != nil {
			return nil, fatalf("dispatch: %v", err)
		}
	}

	// 4a. Scalar writeback completion.
	for _, e := range buf.XRegWbs {
		hw := warp.HWKey{SMID: e.SMID, HardwareWarpID: e.HardwareWarpID}
		w, ok := reg.ByHW(hw)
		if !ok {
			p.debugf("xreg_wb: stray event, warp gone at %v dispatch_id=%d", hw, e.DispatchID)
			continue
		}
		entry := w.Insn(e.DispatchID)
		if entry == nil {
			p.debugf("xreg_wb: stray event, dispatch_id %d gone on warp %v", e.DispatchID, w.Key)
			continue
		}
		if !entry.RetireCare || entry.IsBarrier {
			return nil, fatalf("xreg_wb: entry dispatch_id=%d on warp %v is not a scalar retire-care instruction", e.DispatchID, w.Key)
		}
		entry.Done = true
		if entry.SingleCmpCare {
			entry.DutDone = true
			entry.DutResult = warp.InsnResult{
				Kind: warp.ResultXReg,
				XReg: warp.XRegResult{RegIdx: e.RegIdx, RD: e.RD},
			}
		}
	}

	// 4b. Vector writeback completion, aggregated per lane first.
	vagg := map[vkey]*warp.VRegResult{}
	vregIdx := map[vkey]uint32{}
	vorder := []vkey{}
	for _, e := range buf.VRegWbs {
		k := vkey{sm: e.SMID, hw: e.HardwareWarpID, dispatch: e.DispatchID}
		res, ok := vagg[k]
		if !ok {
			res = &warp.VRegResult{RegIdx: e.RegIdx}
			vagg[k] = res
			vregIdx[k] = e.RegIdx
			vorder = append(vorder, k)
		}
		if e.ThreadIdx < uint32(len(res.RD)) {
			res.RD[e.ThreadIdx] = e.RDLane
			res.Mask[e.ThreadIdx] = e.MaskLane
		}
	}
	for _, k := range vorder {
		hw := warp.HWKey{SMID: k.sm, HardwareWarpID: k.hw}
		w, ok := reg.ByHW(hw)
		if !ok {
			p.debugf("vreg_wb: stray event, warp gone at %v dispatch_id=%d", hw, k.dispatch)
			continue
		}
		entry := w.Insn(k.dispatch)
		if entry == nil {
			p.debugf("vreg_wb: stray event, dispatch_id %d gone on warp %v", k.dispatch, w.Key)
			continue
		}
		if entry.RetireCare || entry.IsBarrier {
			return nil, fatalf("vreg_wb: entry dispatch_id=%d on warp %v is retire-relevant or a barrier", k.dispatch, w.Key)
		}
		entry.Done = true
		if entry.SingleCmpCare {
			entry.DutDone = true
			entry.DutResult = warp.InsnResult{
				Kind: warp.ResultVReg,
				VReg: *vagg[k],
			}
		}
	}

	// 4c. Barrier completion, identified by (sm_id, wg_slot_id, pc).
	for _, e := range buf.BarrierDones {
		w := findByBarrierSlot(reg, e.SMID, e.WGSlotID)
		if w == nil {
			p.debugf("barrier_done: stray event, no warp at sm=%d wg_slot=%d", e.SMID, e.WGSlotID)
			continue
		}
		entry := findBarrierEntry(w, e.PC)
		if entry == nil {
			p.debugf("barrier_done: stray event, no barrier at pc=0x%x on warp %v", e.PC, w.Key)
			continue
		}
		entry.Done = true
	}

	// 5. Scalar register sampling: bank-interleaved reconstruction.
	sampleWarps(buf.XRegSamples, reg)

	return created, nil
}

func (p *Pipeline) debugf(format string, args ...any) {
	if p.Log == nil {
		return
	}
	p.Log.Debug(fmt.Sprintf(format, args...))
}

func findByBarrierSlot(reg *warp.Registry, sm, wgSlot uint32) *warp.Record {
	for _, w := range reg.All() {
		if w.SMID == sm && w.WGSlotID == wgSlot {
			return w
		}
	}
	return nil
}

// findBarrierEntry returns the warp's unretired barrier entry at pc.
// At most one is assumed live at a time per warp per the spec's open
// question on barrier identification safety.
func findBarrierEntry(w *warp.Record, pc uint32) *warp.InsnEntry {
	for _, d := range w.Ordered() {
		e := w.Insn(d)
		if e.IsBarrier && e.PC == pc && !e.Retired {
			return e
		}
	}
	return nil
}

// sampleWarps reconstructs each live warp's scalar register shadow
// from the bank-interleaved sample stream, then forces index 0 to
// zero, per spec §4.2 step 5.
func sampleWarps(samples []intake.XRegSample, reg *warp.Registry) {
	if len(samples) == 0 {
		return
	}
	// words[sm][bank][wordIdx] = value
	words := map[uint32]map[uint32]map[uint32]uint32{}
	numBanksBySM := map[uint32]uint32{}
	for _, s := range samples {
		bySM, ok := words[s.SMID]
		if !ok {
			bySM = map[uint32]map[uint32]uint32{}
			words[s.SMID] = bySM
		}
		byBank, ok := bySM[s.BankID]
		if !ok {
			byBank = map[uint32]uint32{}
			bySM[s.BankID] = byBank
		}
		byBank[s.WordIdx] = s.Word
		numBanksBySM[s.SMID] = s.NumBanks
	}

	for _, w := range reg.All() {
		numBanks, ok := numBanksBySM[w.SMID]
		if !ok || numBanks == 0 || bits.OnesCount32(numBanks) != 1 {
			continue
		}
		log2Banks := bits.TrailingZeros32(numBanks)
		shadow := make([]uint32, w.XRegUsage)
		for i := uint32(0); i < w.XRegUsage; i++ {
			bank := (i + w.HardwareWarpID) % numBanks
			slot := (w.XRegBase + i) >> uint(log2Banks)
			if byBank, ok := words[w.SMID][bank]; ok {
				shadow[i] = byBank[slot]
			}
		}
		if len(shadow) > 0 {
			shadow[0] = 0
		}
		w.CurrXReg = shadow
	}
}
