package warp

import "testing"

func TestRegistryCreateUniqueness(t *testing.T) {
	reg := NewRegistry()
	key := Key{SoftwareWGID: 0, SoftwareWarpID: 0}
	hw := HWKey{SMID: 0, HardwareWarpID: 0}

	if _, err := reg.Create(key, hw, 0, 32, 0, 32); err != nil {
		t.Fatalf("unexpected error on first create: %v", err)
	}

	if _, err := reg.Create(key, HWKey{SMID: 1, HardwareWarpID: 1}, 0, 32, 0, 32); err == nil {
		t.Fatal("expected error creating a second warp with the same Key")
	}

	if _, err := reg.Create(Key{SoftwareWGID: 1, SoftwareWarpID: 1}, hw, 0, 32, 0, 32); err == nil {
		t.Fatal("expected error creating a second warp with the same hardware binding")
	}
}

func TestRegistryDestroy(t *testing.T) {
	reg := NewRegistry()
	key := Key{SoftwareWGID: 0, SoftwareWarpID: 0}
	hw := HWKey{SMID: 0, HardwareWarpID: 0}
	if _, err := reg.Create(key, hw, 0, 32, 0, 32); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := reg.Destroy(hw); err != nil {
		t.Fatalf("unexpected error destroying live warp: %v", err)
	}
	if _, ok := reg.ByKey(key); ok {
		t.Fatal("expected warp to be gone after destroy")
	}
	if err := reg.Destroy(hw); err == nil {
		t.Fatal("expected error destroying an already-gone warp")
	}
}

func TestRecordAddInsnOrderingAndDuplicateRejection(t *testing.T) {
	reg := NewRegistry()
	key := Key{SoftwareWGID: 0, SoftwareWarpID: 0}
	hw := HWKey{SMID: 0, HardwareWarpID: 0}
	w, err := reg.Create(key, hw, 0, 32, 0, 32)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := w.AddInsn(&InsnEntry{DispatchID: 5}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.BaseDispatchID != 5 || w.NextRetireDispatchID != 5 {
		t.Errorf("expected base/next_retire dispatch_id to be set to first seen dispatch_id 5, got base=%d next=%d",
			w.BaseDispatchID, w.NextRetireDispatchID)
	}

	if err := w.AddInsn(&InsnEntry{DispatchID: 7}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := w.AddInsn(&InsnEntry{DispatchID: 6}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	order := w.Ordered()
	want := []uint32{5, 6, 7}
	if len(order) != len(want) {
		t.Fatalf("got %d ordered entries, want %d", len(order), len(want))
	}
	for i, d := range want {
		if order[i] != d {
			t.Errorf("order[%d] = %d, want %d", i, order[i], d)
		}
	}

	if err := w.AddInsn(&InsnEntry{DispatchID: 6}); err == nil {
		t.Fatal("expected error re-adding dispatch_id 6")
	}
}

func TestRecordRemoveInsn(t *testing.T) {
	reg := NewRegistry()
	w, _ := reg.Create(Key{}, HWKey{}, 0, 32, 0, 32)
	if err := w.AddInsn(&InsnEntry{DispatchID: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := w.AddInsn(&InsnEntry{DispatchID: 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	w.RemoveInsn(1)
	if w.Insn(1) != nil {
		t.Fatal("expected dispatch_id 1 to be gone after RemoveInsn")
	}
	order := w.Ordered()
	if len(order) != 1 || order[0] != 2 {
		t.Fatalf("got order %v, want [2]", order)
	}
}
