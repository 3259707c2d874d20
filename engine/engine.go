/*
 * GVM - Engine orchestration.
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

// Package engine ties the intake, warp, classify, ingest, retire,
// refstep and compare packages together into the two-phase GVM cycle:
// ingest (consume events, update DUT shadow state) then step (retire
// eligible prefixes, step REF, compare).
package engine

import (
	"context"
	"log/slog"

	"github.com/rcornwell/gvm/classify"
	"github.com/rcornwell/gvm/compare"
	"github.com/rcornwell/gvm/ingest"
	"github.com/rcornwell/gvm/intake"
	"github.com/rcornwell/gvm/refstep"
	"github.com/rcornwell/gvm/retire"
	hexfmt "github.com/rcornwell/gvm/util/hex"
	"github.com/rcornwell/gvm/warp"
)

// Config is the spec's external configuration block.
type Config struct {
	FP32Atol      float32
	FP32Rtol      float32
	XRegFileSize  uint32
	NumThreadsMax uint32
	EndprgOpcode  uint32
	EndprgMask    uint32
}

// DefaultConfig mirrors the reference model's defaults.
func DefaultConfig() Config {
	return Config{
		FP32Atol:      1e-3,
		FP32Rtol:      1e-3,
		XRegFileSize:  256,
		NumThreadsMax: 32,
		EndprgOpcode:  classify.EndprgOpcode,
		EndprgMask:    classify.EndprgMask,
	}
}

// Engine owns one instance of the warp registry and drives one GVM
// cycle per call to Cycle. It is not safe for concurrent use; the
// simulator's clock loop owns it from a single goroutine.
type Engine struct {
	Config   Config
	Tables   classify.Tables
	Log      *slog.Logger
	Model    refstep.Model
	Registry *warp.Registry

	ingest  ingest.Pipeline
	arbiter retire.Arbiter
	stepper refstep.Stepper
}

// New builds an Engine ready to run, with a fresh empty warp registry.
func New(cfg Config, tables classify.Tables, model refstep.Model, log *slog.Logger) *Engine {
	return &Engine{
		Config:   cfg,
		Tables:   tables,
		Log:      log,
		Model:    model,
		Registry: warp.NewRegistry(),
		ingest:   ingest.Pipeline{Log: log},
	}
}

// Cycle runs one GVM cycle against buf: ingest, then retire-arbiter and
// REF-stepper for the cycle's retire batch, then the single-instruction
// comparator over every live warp and the retire comparator over the
// batch. It returns the retire batch decided this cycle for the
// caller's observability (e.g. scenario tests).
func (eng *Engine) Cycle(ctx context.Context, buf intake.Buffer) (retire.Batch, error) {
	icfg := ingest.Config{
		EndprgMask:  eng.Config.EndprgMask,
		EndprgValue: eng.Config.EndprgOpcode,
		XRegUsage:   eng.Config.XRegFileSize,
	}

	created, err := eng.ingest.Run(ctx, buf, eng.Registry, eng.Tables, icfg)
	if err != nil {
		return nil, err
	}

	for _, key := range created {
		w, ok := eng.Registry.ByKey(key)
		if !ok {
			continue
		}
		if err := eng.Model.SetWarpXReg(ctx, key, w.CurrXReg); err != nil {
			return nil, &refstep.FatalError{Err: err}
		}
	}

	batch, err := eng.arbiter.Check(eng.Registry)
	if err != nil {
		return nil, err
	}

	batch, err = eng.stepper.Advance(ctx, eng.Model, eng.Registry, batch)
	if err != nil {
		return nil, err
	}

	cmpCfg := compare.Config{FP32Atol: eng.Config.FP32Atol, FP32Rtol: eng.Config.FP32Rtol}

	// The single-instruction comparator runs over every live warp every
	// cycle, independent of whether that warp retired anything this
	// cycle: a warp can have both DutDone and RefDone pending compare
	// while sitting out the retire batch entirely.
	for _, w := range eng.Registry.All() {
		compare.SingleInsn(eng.Log, cmpCfg, eng.Tables, w)
	}

	for _, item := range batch {
		w, ok := eng.Registry.ByKey(item.Key)
		if !ok {
			continue
		}

		if item.RetireCount == 0 {
			continue
		}
		refXReg, err := eng.Model.GetXReg(ctx, item.Key)
		if err != nil {
			return nil, &refstep.FatalError{Err: err}
		}
		compare.Retire(eng.Log, w, refXReg)

		if eng.Log != nil {
			eng.Log.Info("GVM retire",
				slog.Any("warp", item.Key),
				slog.Uint64("retire_count", uint64(item.RetireCount)),
				slog.Bool("barrier_included", item.BarrierIncluded))
			eng.logRetiredEntries(w, item)
		}
	}

	retire.GC(eng.Registry)

	return batch, nil
}

// logRetiredEntries debug-logs one line per instruction item just
// retired, disassembling each insn for the log line the way the
// original GVM logs a mnemonic ahead of its retire message.
func (eng *Engine) logRetiredEntries(w *warp.Record, item retire.Item) {
	last := w.NextRetireDispatchID
	first := last - item.RetireCount
	for d := first; d != last; d++ {
		e := w.Insn(d)
		if e == nil {
			continue
		}
		mnemonic, err := eng.Tables.Disasm(e.Insn)
		if err != nil {
			mnemonic = "?"
		}
		eng.Log.Debug("GVM retire",
			slog.Uint64("sm_id", uint64(w.SMID)),
			slog.Uint64("hardware_warp_id", uint64(w.HardwareWarpID)),
			slog.Uint64("software_wg_id", uint64(w.Key.SoftwareWGID)),
			slog.Uint64("software_warp_id", uint64(w.Key.SoftwareWarpID)),
			slog.Uint64("dispatch_id", uint64(d)),
			slog.String("pc", hexfmt.Word32(e.PC)),
			slog.String("insn", hexfmt.Word32(e.Insn)),
			slog.String("mnemonic", mnemonic))
	}
}
