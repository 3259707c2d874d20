package engine_test

import (
	"bytes"
	"context"
	"log/slog"
	"math"
	"strings"
	"testing"

	"github.com/rcornwell/gvm/classify"
	"github.com/rcornwell/gvm/driver"
	"github.com/rcornwell/gvm/engine"
	"github.com/rcornwell/gvm/intake"
	"github.com/rcornwell/gvm/warp"
)

func newTestEngine(ref *driver.FakeRef) *engine.Engine {
	cfg := engine.DefaultConfig()
	return engine.New(cfg, classify.DefaultTables(), ref, nil)
}

// Scenario 1: solo scalar add.
func TestScenarioSoloScalarAdd(t *testing.T) {
	ref := driver.NewFakeRef()
	key := warp.Key{SoftwareWGID: 0, SoftwareWarpID: 0}
	ref.Script(key, driver.ScriptedStep{PC: 0x1000, Kind: warp.ResultXReg, XReg: warp.XRegResult{RegIdx: 2, RD: 2}})

	eng := newTestEngine(ref)

	var buf intake.Buffer
	buf.AddCta2Warp(intake.Cta2Warp{SoftwareWGID: 0, SoftwareWarpID: 0, SMID: 0, HardwareWarpID: 0, NumThreads: 32})
	buf.AddInsnDispatch(intake.InsnDispatch{SMID: 0, HardwareWarpID: 0, PC: 0x1000, Insn: 0x00208113, DispatchID: 0}) // ADDI x2,x1,2

	if _, err := eng.Cycle(context.Background(), buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var buf2 intake.Buffer
	buf2.AddXRegWb(intake.XRegWb{SMID: 0, HardwareWarpID: 0, DispatchID: 0, RegIdx: 2, RD: 2})
	batch, err := eng.Cycle(context.Background(), buf2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch) != 1 || batch[0].RetireCount != 1 {
		t.Fatalf("got batch %v, want one retire of count 1", batch)
	}

	xreg, _ := ref.GetXReg(context.Background(), key)
	if len(xreg) < 3 || xreg[2] != 2 {
		t.Errorf("got REF xreg %v, want xreg[2]=2", xreg)
	}
}

// Scenario 2: unordered vector writeback — no retire until the
// preceding scalar LUI completes, then the LUI retires alone: the
// trailing vector entry is not retire-care and only folds into a batch
// ahead of a later care-and-done entry.
func TestScenarioUnorderedVectorWriteback(t *testing.T) {
	ref := driver.NewFakeRef()
	key := warp.Key{SoftwareWGID: 0, SoftwareWarpID: 0}
	ref.Script(key,
		driver.ScriptedStep{PC: 0x1000, Kind: warp.ResultXReg, XReg: warp.XRegResult{RegIdx: 1, RD: 0x10}},
		driver.ScriptedStep{PC: 0x1004, Kind: warp.ResultVReg, VReg: warp.VRegResult{RegIdx: 3}},
	)

	eng := newTestEngine(ref)

	var buf intake.Buffer
	buf.AddCta2Warp(intake.Cta2Warp{SoftwareWGID: 0, SoftwareWarpID: 0, SMID: 0, HardwareWarpID: 0, NumThreads: 32})
	buf.AddInsnDispatch(intake.InsnDispatch{SMID: 0, HardwareWarpID: 0, PC: 0x1000, Insn: 0x00000037, DispatchID: 0}) // LUI
	buf.AddInsnDispatch(intake.InsnDispatch{SMID: 0, HardwareWarpID: 0, PC: 0x1004, Insn: 0x00000057, DispatchID: 1}) // VADD_VV
	// Lanes arrive out of order, lane 31 before lane 0.
	buf.AddVRegWb(intake.VRegWb{SMID: 0, HardwareWarpID: 0, DispatchID: 1, RegIdx: 3, ThreadIdx: 31, MaskLane: true})
	buf.AddVRegWb(intake.VRegWb{SMID: 0, HardwareWarpID: 0, DispatchID: 1, RegIdx: 3, ThreadIdx: 0, MaskLane: true})

	batch, err := eng.Cycle(context.Background(), buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch) != 0 {
		t.Fatalf("expected no retire before LUI completes, got %v", batch)
	}

	var buf2 intake.Buffer
	buf2.AddXRegWb(intake.XRegWb{SMID: 0, HardwareWarpID: 0, DispatchID: 0, RegIdx: 1, RD: 0x10})
	batch, err = eng.Cycle(context.Background(), buf2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch) != 1 || batch[0].RetireCount != 1 {
		t.Fatalf("got batch %v, want one retire of the LUI alone", batch)
	}
}

// Scenario 3: barrier rendezvous across two warps in the same cycle.
func TestScenarioBarrierRendezvous(t *testing.T) {
	ref := driver.NewFakeRef()
	keyA := warp.Key{SoftwareWGID: 0, SoftwareWarpID: 0}
	keyB := warp.Key{SoftwareWGID: 0, SoftwareWarpID: 1}

	for _, key := range []warp.Key{keyA, keyB} {
		ref.Script(key,
			driver.ScriptedStep{PC: 0x5000, Kind: warp.ResultXReg},
			driver.ScriptedStep{PC: 0x5004, Stall: true}, // barrier: pass A stalls
			driver.ScriptedStep{PC: 0x5008},              // pass B: pc now past the barrier
		)
	}

	eng := newTestEngine(ref)

	var buf intake.Buffer
	buf.AddCta2Warp(intake.Cta2Warp{SoftwareWGID: 0, SoftwareWarpID: 0, SMID: 0, HardwareWarpID: 0, WGSlotID: 0, NumThreads: 32})
	buf.AddCta2Warp(intake.Cta2Warp{SoftwareWGID: 0, SoftwareWarpID: 1, SMID: 0, HardwareWarpID: 1, WGSlotID: 1, NumThreads: 32})
	buf.AddInsnDispatch(intake.InsnDispatch{SMID: 0, HardwareWarpID: 0, PC: 0x5000, Insn: 0x00000013, DispatchID: 0}) // ADDI
	buf.AddInsnDispatch(intake.InsnDispatch{SMID: 0, HardwareWarpID: 1, PC: 0x5000, Insn: 0x00000013, DispatchID: 0})
	buf.AddInsnDispatch(intake.InsnDispatch{SMID: 0, HardwareWarpID: 0, PC: 0x5004, Insn: 0x0400400b, DispatchID: 1}) // BARRIER
	buf.AddInsnDispatch(intake.InsnDispatch{SMID: 0, HardwareWarpID: 1, PC: 0x5004, Insn: 0x0400400b, DispatchID: 1})
	buf.AddXRegWb(intake.XRegWb{SMID: 0, HardwareWarpID: 0, DispatchID: 0, RegIdx: 1})
	buf.AddXRegWb(intake.XRegWb{SMID: 0, HardwareWarpID: 1, DispatchID: 0, RegIdx: 1})
	buf.AddBarrierDone(intake.BarrierDone{SMID: 0, WGSlotID: 0, PC: 0x5004, DispatchID: 1})
	buf.AddBarrierDone(intake.BarrierDone{SMID: 0, WGSlotID: 1, PC: 0x5004, DispatchID: 1})

	batch, err := eng.Cycle(context.Background(), buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("got %d batch items, want 2", len(batch))
	}
	for _, item := range batch {
		if !item.BarrierIncluded {
			t.Errorf("warp %v: expected barrier_included", item.Key)
		}
		if item.RetireCount != 2 {
			t.Errorf("warp %v: got retire count %d, want 2", item.Key, item.RetireCount)
		}
	}
}

// Scenario 6: endprg cleanup — the warp is removed immediately, and a
// stray completion afterward is logged, not fatal.
func TestScenarioEndprgCleanup(t *testing.T) {
	ref := driver.NewFakeRef()
	eng := newTestEngine(ref)

	var buf intake.Buffer
	buf.AddCta2Warp(intake.Cta2Warp{SoftwareWGID: 0, SoftwareWarpID: 0, SMID: 0, HardwareWarpID: 0, NumThreads: 32})
	buf.AddInsnDispatch(intake.InsnDispatch{SMID: 0, HardwareWarpID: 0, PC: 0x9000, Insn: classify.EndprgOpcode, DispatchID: 4})
	if _, err := eng.Cycle(context.Background(), buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := eng.Registry.ByKey(warp.Key{SoftwareWGID: 0, SoftwareWarpID: 0}); ok {
		t.Fatal("expected warp to be removed after endprg")
	}

	var buf2 intake.Buffer
	buf2.AddXRegWb(intake.XRegWb{SMID: 0, HardwareWarpID: 0, DispatchID: 4, RegIdx: 1})
	if _, err := eng.Cycle(context.Background(), buf2); err != nil {
		t.Fatalf("expected a stray post-endprg completion to be logged, not fatal: %v", err)
	}
}

// Scenario 4: an fp32 vector result within tolerance of REF's passes
// the single-instruction comparator without being logged as a mismatch.
func TestScenarioFP32ToleranceWithinBoundPasses(t *testing.T) {
	ref := driver.NewFakeRef()
	key := warp.Key{SoftwareWGID: 0, SoftwareWarpID: 0}

	dutBits := math.Float32bits(1.0000001)
	refBits := math.Float32bits(1.0)

	ref.Script(key,
		driver.ScriptedStep{PC: 0x2000, Kind: warp.ResultVReg, VReg: warp.VRegResult{RegIdx: 4, RD: fillLane(refBits), Mask: fillMask()}},
		driver.ScriptedStep{PC: 0x2004, Kind: warp.ResultXReg, XReg: warp.XRegResult{RegIdx: 1, RD: 0x7}},
	)

	var logBuf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&logBuf, nil))
	eng := engine.New(engine.DefaultConfig(), classify.DefaultTables(), ref, log)

	var buf intake.Buffer
	buf.AddCta2Warp(intake.Cta2Warp{SoftwareWGID: 0, SoftwareWarpID: 0, SMID: 0, HardwareWarpID: 0, NumThreads: 32})
	buf.AddInsnDispatch(intake.InsnDispatch{SMID: 0, HardwareWarpID: 0, PC: 0x2000, Insn: 0x00001057, DispatchID: 0}) // VFADD_VV
	buf.AddInsnDispatch(intake.InsnDispatch{SMID: 0, HardwareWarpID: 0, PC: 0x2004, Insn: 0x00208093, DispatchID: 1}) // ADDI, retire care
	buf.AddVRegWb(intake.VRegWb{SMID: 0, HardwareWarpID: 0, DispatchID: 0, RegIdx: 4, ThreadIdx: 0, RDLane: dutBits, MaskLane: true})

	if _, err := eng.Cycle(context.Background(), buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var buf2 intake.Buffer
	buf2.AddXRegWb(intake.XRegWb{SMID: 0, HardwareWarpID: 0, DispatchID: 1, RegIdx: 1, RD: 0x7})
	batch, err := eng.Cycle(context.Background(), buf2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch) != 1 || batch[0].RetireCount != 2 {
		t.Fatalf("got batch %v, want one retire spanning both dispatch slots", batch)
	}
	if strings.Contains(logBuf.String(), "fp32 lane mismatch") {
		t.Errorf("did not expect a tolerance mismatch to be logged, got: %s", logBuf.String())
	}
}

// Scenario 5: a DUT/REF scalar register-file mismatch at retire is
// logged but does not abort the cycle.
func TestScenarioScalarRetireMismatchIsLoggedNotFatal(t *testing.T) {
	ref := driver.NewFakeRef()
	key := warp.Key{SoftwareWGID: 0, SoftwareWarpID: 0}
	ref.Script(key, driver.ScriptedStep{PC: 0x1000, Kind: warp.ResultXReg, XReg: warp.XRegResult{RegIdx: 2, RD: 42}})

	var logBuf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&logBuf, nil))
	cfg := engine.DefaultConfig()
	cfg.XRegFileSize = 4
	eng := engine.New(cfg, classify.DefaultTables(), ref, log)

	var buf intake.Buffer
	buf.AddCta2Warp(intake.Cta2Warp{SoftwareWGID: 0, SoftwareWarpID: 0, SMID: 0, HardwareWarpID: 0, NumThreads: 32})
	buf.AddInsnDispatch(intake.InsnDispatch{SMID: 0, HardwareWarpID: 0, PC: 0x1000, Insn: 0x00208093, DispatchID: 0}) // ADDI
	if _, err := eng.Cycle(context.Background(), buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var buf2 intake.Buffer
	buf2.AddXRegWb(intake.XRegWb{SMID: 0, HardwareWarpID: 0, DispatchID: 0, RegIdx: 2, RD: 42})
	// DUT's sampled shadow disagrees with what REF will hold at reg_idx 2.
	for i := uint32(0); i < 4; i++ {
		word := uint32(0)
		if i == 2 {
			word = 99
		}
		buf2.AddXRegSample(intake.XRegSample{SMID: 0, BankID: 0, WordIdx: i, Word: word, NumBanks: 1})
	}
	batch, err := eng.Cycle(context.Background(), buf2)
	if err != nil {
		t.Fatalf("expected a retire-time scalar mismatch to be logged, not fatal: %v", err)
	}
	if len(batch) != 1 || batch[0].RetireCount != 1 {
		t.Fatalf("got batch %v, want one retire of count 1", batch)
	}
	if !strings.Contains(logBuf.String(), "GVM retire compare mismatch") {
		t.Errorf("expected a retire compare mismatch to be logged, got: %s", logBuf.String())
	}

	xreg, _ := ref.GetXReg(context.Background(), key)
	if len(xreg) < 3 || xreg[2] != 42 {
		t.Errorf("got REF xreg %v, want xreg[2]=42", xreg)
	}
}

func fillLane(bits uint32) [32]uint32 {
	var rd [32]uint32
	rd[0] = bits
	return rd
}

func fillMask() [32]bool {
	var mask [32]bool
	mask[0] = true
	return mask
}
