/*
 * GVM - DUT/REF comparators.
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

// Package compare implements single-instruction result comparison and
// post-retire scalar register-file comparison between DUT and REF.
package compare

import (
	"log/slog"
	"math"

	"github.com/rcornwell/gvm/classify"
	"github.com/rcornwell/gvm/warp"
)

// Config holds the fp32 tolerance parameters: |dut-ref| <= atol + rtol*|ref|.
type Config struct {
	FP32Atol float32
	FP32Rtol float32
}

// DefaultConfig matches the reference model's default tolerance.
func DefaultConfig() Config {
	return Config{FP32Atol: 1e-3, FP32Rtol: 1e-3}
}

// SingleInsn runs the single-instruction comparator over every
// in-flight entry on w that is single-cmp-care, dut_done, ref_done and
// still pending a verdict.
func SingleInsn(log *slog.Logger, cfg Config, tables classify.Tables, w *warp.Record) {
	for _, d := range w.Ordered() {
		e := w.Insn(d)
		if !e.SingleCmpCare || !e.DutDone || !e.RefDone || e.CmpPass != warp.CmpPending {
			continue
		}
		verdict := singleInsnVerdict(log, cfg, tables, w, e)
		e.CmpPass = verdict
	}
}

func singleInsnVerdict(log *slog.Logger, cfg Config, tables classify.Tables, w *warp.Record, e *warp.InsnEntry) warp.CmpVerdict {
	if e.DutResult.Kind != e.RefResult.Kind || e.DutResult.Kind == warp.ResultNone {
		logUnknown(log, w, e)
		return warp.CmpUnknown
	}

	switch e.DutResult.Kind {
	case warp.ResultXReg:
		d, r := e.DutResult.XReg, e.RefResult.XReg
		if d.RegIdx != r.RegIdx || d.RD != r.RD {
			logMismatch(log, w, e, "xreg result mismatch")
			return warp.CmpFail
		}
		return warp.CmpPass

	case warp.ResultVReg:
		d, r := e.DutResult.VReg, e.RefResult.VReg
		if d.RegIdx != r.RegIdx || d.Mask != r.Mask {
			logMismatch(log, w, e, "vreg mask or reg_idx mismatch")
			return warp.CmpFail
		}
		fp32 := tables.FP32VregInsn(e.Insn)
		for lane := 0; lane < w32Lanes(w); lane++ {
			if !d.Mask[lane] {
				continue
			}
			if fp32 {
				if !fp32WithinTolerance(d.RD[lane], r.RD[lane], cfg) {
					logMismatch(log, w, e, "vreg fp32 lane mismatch")
					return warp.CmpFail
				}
			} else if d.RD[lane] != r.RD[lane] {
				logMismatch(log, w, e, "vreg lane mismatch")
				return warp.CmpFail
			}
		}
		return warp.CmpPass

	default:
		logUnknown(log, w, e)
		return warp.CmpUnknown
	}
}

func w32Lanes(w *warp.Record) int {
	if w.NumThreads == 0 || w.NumThreads > 32 {
		return 32
	}
	return int(w.NumThreads)
}

func fp32WithinTolerance(dutBits, refBits uint32, cfg Config) bool {
	d := math.Float32frombits(dutBits)
	r := math.Float32frombits(refBits)
	diff := d - r
	if diff < 0 {
		diff = -diff
	}
	ref := r
	if ref < 0 {
		ref = -ref
	}
	return float64(diff) <= float64(cfg.FP32Atol)+float64(cfg.FP32Rtol)*float64(ref)
}

// Retire compares refXReg, REF's scalar register file for w's key as
// fetched by the caller, against w's sampled shadow across
// [0, xreg_usage), with the DUT side's index 0 forced to 0. Mismatches are
// logged but never abort the run.
func Retire(log *slog.Logger, w *warp.Record, refXReg []uint32) {
	n := int(w.XRegUsage)
	for i := 0; i < n && i < len(w.CurrXReg) && i < len(refXReg); i++ {
		dut := w.CurrXReg[i]
		if i == 0 {
			dut = 0
		}
		if dut != refXReg[i] {
			if log != nil {
				log.Error("GVM retire compare mismatch",
					slog.Any("warp", w.Key),
					slog.Int("reg_idx", i),
					slog.Uint64("dut", uint64(dut)),
					slog.Uint64("ref", uint64(refXReg[i])))
			}
		}
	}
}

func logMismatch(log *slog.Logger, w *warp.Record, e *warp.InsnEntry, msg string) {
	if log == nil {
		return
	}
	log.Error(msg,
		slog.Any("warp", w.Key),
		slog.Uint64("pc", uint64(e.PC)),
		slog.Uint64("insn", uint64(e.Insn)),
		slog.Uint64("dispatch_id", uint64(e.DispatchID)))
}

func logUnknown(log *slog.Logger, w *warp.Record, e *warp.InsnEntry) {
	if log == nil {
		return
	}
	log.Warn("unknown REF insn_type under single-cmp care",
		slog.Any("warp", w.Key),
		slog.Uint64("dispatch_id", uint64(e.DispatchID)))
}
