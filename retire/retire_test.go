package retire

import (
	"testing"

	"github.com/rcornwell/gvm/warp"
)

func mkWarp(t *testing.T) (*warp.Registry, *warp.Record) {
	t.Helper()
	reg := warp.NewRegistry()
	w, err := reg.Create(warp.Key{SoftwareWGID: 0, SoftwareWarpID: 0}, warp.HWKey{SMID: 0, HardwareWarpID: 0}, 0, 32, 0, 32)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return reg, w
}

func TestArbiterSimpleRetire(t *testing.T) {
	reg, w := mkWarp(t)
	if err := w.AddInsn(&warp.InsnEntry{DispatchID: 0, RetireCare: true, Done: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a := &Arbiter{}
	batch, err := a.Check(reg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch) != 1 {
		t.Fatalf("got %d batch items, want 1", len(batch))
	}
	if batch[0].RetireCount != 1 {
		t.Errorf("got retire count %d, want 1", batch[0].RetireCount)
	}
}

func TestArbiterStopsOnIncompleteCareEntry(t *testing.T) {
	reg, w := mkWarp(t)
	if err := w.AddInsn(&warp.InsnEntry{DispatchID: 0, RetireCare: true, Done: false}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a := &Arbiter{}
	batch, err := a.Check(reg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch) != 0 {
		t.Fatalf("expected no retirable batch, got %v", batch)
	}
}

func TestArbiterNonCareEntriesFoldIntoNextCareDone(t *testing.T) {
	reg, w := mkWarp(t)
	// dispatch_id 0: vector op, not retire_care, no completion yet required for retire.
	if err := w.AddInsn(&warp.InsnEntry{DispatchID: 0, RetireCare: false}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// dispatch_id 1: scalar op, retire_care, done.
	if err := w.AddInsn(&warp.InsnEntry{DispatchID: 1, RetireCare: true, Done: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a := &Arbiter{}
	batch, err := a.Check(reg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch) != 1 || batch[0].RetireCount != 2 {
		t.Fatalf("got batch %v, want one item with retire count 2", batch)
	}
}

func TestArbiterAbandonsBatchOnOutOfOrderCompletion(t *testing.T) {
	reg, w := mkWarp(t)
	if err := w.AddInsn(&warp.InsnEntry{DispatchID: 0, RetireCare: true, Done: false}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := w.AddInsn(&warp.InsnEntry{DispatchID: 1, RetireCare: true, Done: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a := &Arbiter{}
	batch, err := a.Check(reg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch) != 0 {
		t.Fatalf("expected the batch to be abandoned for out-of-order completion, got %v", batch)
	}
}

func TestArbiterBarrierFencesForwardCompletions(t *testing.T) {
	reg, w := mkWarp(t)
	if err := w.AddInsn(&warp.InsnEntry{DispatchID: 0, RetireCare: true, Done: true, IsBarrier: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := w.AddInsn(&warp.InsnEntry{DispatchID: 1, RetireCare: true, Done: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a := &Arbiter{}
	if _, err := a.Check(reg); err == nil {
		t.Fatal("expected a fatal error: completion past a closed barrier")
	}
}

func TestGCStopsAtFirstUnsettledEntry(t *testing.T) {
	reg, w := mkWarp(t)
	if err := w.AddInsn(&warp.InsnEntry{DispatchID: 0, Retired: true, CmpPass: warp.CmpPass}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := w.AddInsn(&warp.InsnEntry{DispatchID: 1, Retired: true, CmpPass: warp.CmpPending}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := w.AddInsn(&warp.InsnEntry{DispatchID: 2, Retired: true, CmpPass: warp.CmpPass}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	GC(reg)

	if w.Insn(0) != nil {
		t.Error("expected dispatch_id 0 to be collected")
	}
	if w.Insn(1) == nil {
		t.Error("expected dispatch_id 1 (pending) to survive")
	}
	if w.Insn(2) == nil {
		t.Error("expected dispatch_id 2 to survive: it is behind a pending entry")
	}
}
