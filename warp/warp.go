/*
 * GVM - Warp registry and in-flight instruction bookkeeping.
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

// Package warp tracks logical warp identity and the in-flight
// instruction window DUT observations accumulate against it, across
// the lifetime of a warp from CTA dispatch to endprg.
package warp

import (
	"fmt"
	"sort"
)

// Key identifies a logical warp across its lifetime, independent of
// the hardware binding (sm_id, hardware_warp_id), which may be
// reassigned across CTA lifecycles.
type Key struct {
	SoftwareWGID   uint32
	SoftwareWarpID uint32
}

// HWKey identifies the hardware binding a warp currently occupies.
type HWKey struct {
	SMID           uint32
	HardwareWarpID uint32
}

// ResultKind tags the payload carried by an InsnEntry's DUT/REF result.
type ResultKind int

const (
	// ResultNone means the instruction carries no writeback payload
	// GVM cares about (retire-care-only scalar ops with no single-cmp
	// interest, or REF's DONT_CARE step result).
	ResultNone ResultKind = iota
	ResultXReg
	ResultVReg
)

// XRegResult is a scalar writeback payload.
type XRegResult struct {
	RegIdx uint32
	RD     uint32
}

// VRegResult is a vector writeback payload, aggregated across lanes.
type VRegResult struct {
	RegIdx uint32
	RD     [32]uint32
	Mask   [32]bool
}

// InsnResult is a tagged variant over the result kinds a DUT or REF
// step may produce; the comparator switches on Kind.
type InsnResult struct {
	Kind ResultKind
	XReg XRegResult
	VReg VRegResult
}

// CmpVerdict is the outcome of a single-instruction comparison.
type CmpVerdict int

const (
	CmpPending CmpVerdict = 0
	CmpPass    CmpVerdict = 1
	CmpFail    CmpVerdict = -1
	CmpUnknown CmpVerdict = -2
)

// InsnEntry is one in-flight dispatched instruction tracked against a
// warp, from dispatch through retire and garbage collection.
type InsnEntry struct {
	// static
	PC         uint32
	Insn       uint32
	DispatchID uint32
	IsExtended bool

	// classification
	RetireCare    bool
	SingleCmpCare bool
	IsBarrier     bool

	// DUT status
	Done     bool
	Retired  bool
	DutDone  bool
	DutResult InsnResult

	// REF status
	RefDone   bool
	RefResult InsnResult

	// verdict
	CmpPass CmpVerdict
}

// Record is the mutable state GVM maintains for one logical warp.
type Record struct {
	Key Key

	SMID           uint32
	HardwareWarpID uint32
	WGSlotID       uint32
	NumThreads     uint32

	XRegBase  uint32
	XRegUsage uint32

	// insns is the in-flight instruction store, ordered ascending by
	// dispatch_id. A map plus a sorted key cache is used rather than a
	// ring buffer because the in-flight window is unbounded in the
	// general case (retire may stall indefinitely behind a barrier).
	insns    map[uint32]*InsnEntry
	order    []uint32
	orderOK  bool

	BaseDispatchID       uint32
	BaseDispatchIDSet    bool
	NextRetireDispatchID uint32

	// CurrXReg is the sampled scalar register shadow, length XRegUsage,
	// index 0 forced to zero.
	CurrXReg []uint32
}

func newRecord(key Key, hw HWKey, wgSlot, numThreads, xregBase, xregUsage uint32) *Record {
	return &Record{
		Key:            key,
		SMID:           hw.SMID,
		HardwareWarpID: hw.HardwareWarpID,
		WGSlotID:       wgSlot,
		NumThreads:     numThreads,
		XRegBase:       xregBase,
		XRegUsage:      xregUsage,
		insns:          make(map[uint32]*InsnEntry),
	}
}

// HWKey returns the warp's current hardware binding.
func (r *Record) HWKey() HWKey {
	return HWKey{SMID: r.SMID, HardwareWarpID: r.HardwareWarpID}
}

// Insn returns the in-flight entry for dispatchID, or nil if absent.
func (r *Record) Insn(dispatchID uint32) *InsnEntry {
	return r.insns[dispatchID]
}

// AddInsn inserts a new entry. It returns an error if dispatchID is
// already present on this warp.
func (r *Record) AddInsn(e *InsnEntry) error {
	if _, ok := r.insns[e.DispatchID]; ok {
		return fmt.Errorf("warp %v: dispatch_id %d already present", r.Key, e.DispatchID)
	}
	r.insns[e.DispatchID] = e
	r.order = append(r.order, e.DispatchID)
	r.orderOK = false
	if !r.BaseDispatchIDSet {
		r.BaseDispatchID = e.DispatchID
		r.NextRetireDispatchID = e.DispatchID
		r.BaseDispatchIDSet = true
	}
	return nil
}

// Ordered returns the in-flight dispatch_ids in ascending order.
func (r *Record) Ordered() []uint32 {
	if !r.orderOK {
		sort.Slice(r.order, func(i, j int) bool { return r.order[i] < r.order[j] })
		r.orderOK = true
	}
	return r.order
}

// RemoveInsn deletes an entry, e.g. after garbage collection.
func (r *Record) RemoveInsn(dispatchID uint32) {
	if _, ok := r.insns[dispatchID]; !ok {
		return
	}
	delete(r.insns, dispatchID)
	for i, d := range r.order {
		if d == dispatchID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Registry owns every live WarpRecord, indexed both by logical Key and
// by current hardware binding, enforcing the uniqueness invariant that
// no two records may share either at one instant.
type Registry struct {
	byKey map[Key]*Record
	byHW  map[HWKey]*Record
}

// NewRegistry returns an empty warp registry.
func NewRegistry() *Registry {
	return &Registry{
		byKey: make(map[Key]*Record),
		byHW:  make(map[HWKey]*Record),
	}
}

// Create instantiates a new warp record. It is an error if either Key
// or HWKey is already live.
func (reg *Registry) Create(key Key, hw HWKey, wgSlot, numThreads, xregBase, xregUsage uint32) (*Record, error) {
	if _, ok := reg.byKey[key]; ok {
		return nil, fmt.Errorf("warp: key %v already live", key)
	}
	if _, ok := reg.byHW[hw]; ok {
		return nil, fmt.Errorf("warp: hardware binding %v already live", hw)
	}
	r := newRecord(key, hw, wgSlot, numThreads, xregBase, xregUsage)
	reg.byKey[key] = r
	reg.byHW[hw] = r
	return r, nil
}

// ByKey looks up a live warp by logical key.
func (reg *Registry) ByKey(key Key) (*Record, bool) {
	r, ok := reg.byKey[key]
	return r, ok
}

// ByHW looks up a live warp by current hardware binding.
func (reg *Registry) ByHW(hw HWKey) (*Record, bool) {
	r, ok := reg.byHW[hw]
	return r, ok
}

// Destroy removes the warp currently bound to hw. It is an error if no
// warp occupies that binding.
func (reg *Registry) Destroy(hw HWKey) error {
	r, ok := reg.byHW[hw]
	if !ok {
		return fmt.Errorf("warp: no live warp at hardware binding %v", hw)
	}
	delete(reg.byHW, hw)
	delete(reg.byKey, r.Key)
	return nil
}

// All returns every live warp record. Order is unspecified.
func (reg *Registry) All() []*Record {
	out := make([]*Record, 0, len(reg.byKey))
	for _, r := range reg.byKey {
		out = append(out, r)
	}
	return out
}
