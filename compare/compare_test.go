package compare

import (
	"bytes"
	"log/slog"
	"math"
	"strings"
	"testing"

	"github.com/rcornwell/gvm/classify"
	"github.com/rcornwell/gvm/warp"
)

func mkWarp(t *testing.T) *warp.Record {
	t.Helper()
	reg := warp.NewRegistry()
	w, err := reg.Create(warp.Key{}, warp.HWKey{}, 0, 32, 0, 32)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return w
}

func TestSingleInsnXRegExactMatch(t *testing.T) {
	w := mkWarp(t)
	e := &warp.InsnEntry{
		DispatchID: 0, SingleCmpCare: true, DutDone: true, RefDone: true,
		DutResult: warp.InsnResult{Kind: warp.ResultXReg, XReg: warp.XRegResult{RegIdx: 2, RD: 5}},
		RefResult: warp.InsnResult{Kind: warp.ResultXReg, XReg: warp.XRegResult{RegIdx: 2, RD: 5}},
	}
	if err := w.AddInsn(e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	SingleInsn(nil, DefaultConfig(), classify.DefaultTables(), w)
	if e.CmpPass != warp.CmpPass {
		t.Errorf("got verdict %d, want pass", e.CmpPass)
	}
}

func TestSingleInsnXRegMismatch(t *testing.T) {
	w := mkWarp(t)
	e := &warp.InsnEntry{
		DispatchID: 0, SingleCmpCare: true, DutDone: true, RefDone: true,
		DutResult: warp.InsnResult{Kind: warp.ResultXReg, XReg: warp.XRegResult{RegIdx: 2, RD: 5}},
		RefResult: warp.InsnResult{Kind: warp.ResultXReg, XReg: warp.XRegResult{RegIdx: 2, RD: 6}},
	}
	if err := w.AddInsn(e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	SingleInsn(nil, DefaultConfig(), classify.DefaultTables(), w)
	if e.CmpPass != warp.CmpFail {
		t.Errorf("got verdict %d, want fail", e.CmpPass)
	}
}

func TestSingleInsnVRegFP32Tolerance(t *testing.T) {
	w := mkWarp(t)
	dut := math.Float32bits(1.0000001)
	ref := math.Float32bits(1.0)

	var mask [32]bool
	mask[0] = true
	var dutRD, refRD [32]uint32
	dutRD[0] = dut
	refRD[0] = ref

	e := &warp.InsnEntry{
		DispatchID: 0, Insn: 0x00001057, // VFADD_VV
		SingleCmpCare: true, DutDone: true, RefDone: true,
		DutResult: warp.InsnResult{Kind: warp.ResultVReg, VReg: warp.VRegResult{RegIdx: 1, RD: dutRD, Mask: mask}},
		RefResult: warp.InsnResult{Kind: warp.ResultVReg, VReg: warp.VRegResult{RegIdx: 1, RD: refRD, Mask: mask}},
	}
	if err := w.AddInsn(e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	SingleInsn(nil, DefaultConfig(), classify.DefaultTables(), w)
	if e.CmpPass != warp.CmpPass {
		t.Errorf("got verdict %d, want pass within fp32 tolerance", e.CmpPass)
	}

	e.CmpPass = warp.CmpPending
	SingleInsn(nil, Config{FP32Atol: 0, FP32Rtol: 0}, classify.DefaultTables(), w)
	if e.CmpPass != warp.CmpFail {
		t.Errorf("got verdict %d, want fail with zero tolerance", e.CmpPass)
	}
}

func TestSingleInsnVRegBitwiseForNonFP32(t *testing.T) {
	w := mkWarp(t)
	var mask [32]bool
	mask[0] = true
	var dutRD, refRD [32]uint32
	dutRD[0] = 7
	refRD[0] = 8

	e := &warp.InsnEntry{
		DispatchID: 0, Insn: 0x00000057, // VADD_VV, not fp32
		SingleCmpCare: true, DutDone: true, RefDone: true,
		DutResult: warp.InsnResult{Kind: warp.ResultVReg, VReg: warp.VRegResult{RegIdx: 1, RD: dutRD, Mask: mask}},
		RefResult: warp.InsnResult{Kind: warp.ResultVReg, VReg: warp.VRegResult{RegIdx: 1, RD: refRD, Mask: mask}},
	}
	if err := w.AddInsn(e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	SingleInsn(nil, DefaultConfig(), classify.DefaultTables(), w)
	if e.CmpPass != warp.CmpFail {
		t.Errorf("got verdict %d, want fail for bitwise-unequal non-fp32 lanes", e.CmpPass)
	}
}

func TestRetireCompareForcesX0Zero(t *testing.T) {
	w := mkWarp(t)
	w.CurrXReg = []uint32{0x77, 0x11}
	var logBuf bytes.Buffer
	Retire(slog.New(slog.NewTextHandler(&logBuf, nil)), w, []uint32{0x99, 0x11})
	if !strings.Contains(logBuf.String(), "reg_idx=0 dut=0 ref=153") || strings.Contains(logBuf.String(), "reg_idx=1") {
		t.Errorf("expected only an x0 mismatch with the DUT side forced to 0, got: %s", logBuf.String())
	}
}
