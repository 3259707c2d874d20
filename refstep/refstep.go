/*
 * GVM - Reference model stepper.
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

// Package refstep walks the reference model by the retired count
// decided for each warp this cycle, aligning program counters,
// capturing per-step results, and handling barrier rendezvous across
// two passes.
package refstep

import (
	"context"
	"fmt"

	"github.com/rcornwell/gvm/retire"
	"github.com/rcornwell/gvm/warp"
)

// FatalError wraps a REF-stepping invariant violation: PC misalignment
// at a retire point, or REF failing to advance over a barrier in pass B.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return "refstep: " + e.Err.Error() }
func (e *FatalError) Unwrap() error { return e.Err }

// StepResult is what one REF step reports.
type StepResult struct {
	PC       uint32
	Insn     uint32
	Kind     warp.ResultKind
	XReg     warp.XRegResult
	VReg     warp.VRegResult
}

// Model is the reference-model interface GVM drives. The production
// adapter lives outside this module; driver supplies a fake for tests.
type Model interface {
	SetWarpXReg(ctx context.Context, key warp.Key, values []uint32) error
	NextPC(ctx context.Context, key warp.Key) (uint32, error)
	Step(ctx context.Context, key warp.Key) (StepResult, error)
	GetXReg(ctx context.Context, key warp.Key) ([]uint32, error)
}

// Stepper drives Model across a retire.Batch.
type Stepper struct{}

// Advance implements Pass A (per-instruction stepping) and Pass B
// (barrier rendezvous) for every item in batch, mutating reg in place:
// REF results are folded into each stepped entry and
// next_retire_dispatch_id is advanced as entries retire.
func (s *Stepper) Advance(ctx context.Context, model Model, reg *warp.Registry, batch retire.Batch) (retire.Batch, error) {
	out := make(retire.Batch, len(batch))
	copy(out, batch)

	for i := range out {
		item := &out[i]
		w, ok := reg.ByKey(item.Key)
		if !ok {
			continue
		}
		retry, err := s.passA(ctx, model, w, item.RetireCount)
		if err != nil {
			return nil, err
		}
		item.BarrierRetry = retry
	}

	for i := range out {
		item := &out[i]
		if !(item.BarrierIncluded && item.BarrierRetry) {
			continue
		}
		w, ok := reg.ByKey(item.Key)
		if !ok {
			continue
		}
		if err := s.passB(ctx, model, w); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// passA steps REF once per instruction in the prefix of length cnt
// starting at next_retire_dispatch_id. It returns true if the batch
// item needs a pass B barrier retry (the final instruction is a
// barrier that did not advance REF's pc).
func (s *Stepper) passA(ctx context.Context, model Model, w *warp.Record, cnt uint32) (bool, error) {
	for i := uint32(0); i < cnt; i++ {
		entry := w.Insn(w.NextRetireDispatchID)
		if entry == nil {
			return false, &FatalError{Err: fmt.Errorf(
				"warp %v: missing entry for next_retire_dispatch_id %d", w.Key, w.NextRetireDispatchID)}
		}

		if entry.IsExtended {
			if _, err := model.Step(ctx, w.Key); err != nil {
				return false, &FatalError{Err: fmt.Errorf("warp %v: regext prefix step: %w", w.Key, err)}
			}
		}

		pc, err := model.NextPC(ctx, w.Key)
		if err != nil {
			return false, &FatalError{Err: fmt.Errorf("warp %v: next_pc: %w", w.Key, err)}
		}
		if pc != entry.PC {
			return false, &FatalError{Err: fmt.Errorf(
				"warp %v: REF pc 0x%x diverges from DUT pc 0x%x at dispatch_id %d", w.Key, pc, entry.PC, entry.DispatchID)}
		}

		res, err := model.Step(ctx, w.Key)
		if err != nil {
			return false, &FatalError{Err: fmt.Errorf("warp %v: step: %w", w.Key, err)}
		}
		switch res.Kind {
		case warp.ResultXReg:
			entry.RefResult = warp.InsnResult{Kind: warp.ResultXReg, XReg: res.XReg}
		case warp.ResultVReg:
			entry.RefResult = warp.InsnResult{Kind: warp.ResultVReg, VReg: res.VReg}
		}
		entry.RefDone = true

		postPC, err := model.NextPC(ctx, w.Key)
		if err != nil {
			return false, &FatalError{Err: fmt.Errorf("warp %v: post-step next_pc: %w", w.Key, err)}
		}

		if postPC == pc && entry.IsBarrier {
			return true, nil
		}
		entry.Retired = true
		w.NextRetireDispatchID++
	}
	return false, nil
}

// passB steps REF once more over the barrier rendezvous at
// next_retire_dispatch_id, asserting it was not extended or
// single-cmp-care and that REF's pc now advances.
func (s *Stepper) passB(ctx context.Context, model Model, w *warp.Record) error {
	entry := w.Insn(w.NextRetireDispatchID)
	if entry == nil {
		return &FatalError{Err: fmt.Errorf(
			"warp %v: missing barrier entry for next_retire_dispatch_id %d", w.Key, w.NextRetireDispatchID)}
	}
	if entry.IsExtended || entry.SingleCmpCare {
		return &FatalError{Err: fmt.Errorf(
			"warp %v: barrier entry at dispatch_id %d is extended or single-cmp care", w.Key, entry.DispatchID)}
	}

	pc, err := model.NextPC(ctx, w.Key)
	if err != nil {
		return &FatalError{Err: fmt.Errorf("warp %v: next_pc: %w", w.Key, err)}
	}
	if pc != entry.PC {
		return &FatalError{Err: fmt.Errorf(
			"warp %v: REF pc 0x%x diverges from DUT pc 0x%x at barrier dispatch_id %d", w.Key, pc, entry.PC, entry.DispatchID)}
	}

	if _, err := model.Step(ctx, w.Key); err != nil {
		return &FatalError{Err: fmt.Errorf("warp %v: barrier step: %w", w.Key, err)}
	}

	postPC, err := model.NextPC(ctx, w.Key)
	if err != nil {
		return &FatalError{Err: fmt.Errorf("warp %v: post-barrier next_pc: %w", w.Key, err)}
	}
	if postPC == pc {
		return &FatalError{Err: fmt.Errorf(
			"warp %v: REF deadlocked on barrier at dispatch_id %d", w.Key, entry.DispatchID)}
	}

	entry.Retired = true
	w.NextRetireDispatchID++
	return nil
}
