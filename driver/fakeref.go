/*
 * GVM - Scriptable fake reference model for tests and the demo driver.
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

// Package driver stands in for the "simulator main loop" GVM's own
// spec keeps out of scope: a scriptable fake RTL event source, a
// scriptable fake reference model, and an interactive console wired
// around the engine for manual exercise.
package driver

import (
	"context"
	"fmt"

	"github.com/rcornwell/gvm/refstep"
	"github.com/rcornwell/gvm/warp"
)

// ScriptedStep is one instruction a FakeRef will report on Step, queued
// per warp key and reported in the order Step is called for that warp.
type ScriptedStep struct {
	PC     uint32
	Insn   uint32
	Kind   warp.ResultKind
	XReg   warp.XRegResult
	VReg   warp.VRegResult
	// Stall, when true, makes this Step a no-op: pc does not advance.
	// Used to script barrier rendezvous in tests.
	Stall bool
}

// FakeRef is a deterministic, fully scripted refstep.Model used by
// tests and cmd/gvmdemo: each warp has a queue of ScriptedSteps and a
// register file, with no real execution semantics.
type FakeRef struct {
	steps   map[warp.Key][]ScriptedStep
	pos     map[warp.Key]int
	xreg    map[warp.Key][]uint32
	lastPC  map[warp.Key]uint32
	stalled map[warp.Key]map[int]bool
}

// NewFakeRef returns an empty scripted reference model.
func NewFakeRef() *FakeRef {
	return &FakeRef{
		steps:   map[warp.Key][]ScriptedStep{},
		pos:     map[warp.Key]int{},
		xreg:    map[warp.Key][]uint32{},
		lastPC:  map[warp.Key]uint32{},
		stalled: map[warp.Key]map[int]bool{},
	}
}

// Script appends steps to key's queue.
func (f *FakeRef) Script(key warp.Key, steps ...ScriptedStep) {
	f.steps[key] = append(f.steps[key], steps...)
}

// SetWarpXReg implements refstep.Model.
func (f *FakeRef) SetWarpXReg(ctx context.Context, key warp.Key, values []uint32) error {
	f.xreg[key] = append([]uint32{}, values...)
	return nil
}

// NextPC implements refstep.Model: the pc of the step at the current
// queue position, or the last executed step's pc if the queue is
// exhausted (idle).
func (f *FakeRef) NextPC(ctx context.Context, key warp.Key) (uint32, error) {
	steps := f.steps[key]
	pos := f.pos[key]
	if pos >= len(steps) {
		return f.lastPC[key], nil
	}
	return steps[pos].PC, nil
}

// Step implements refstep.Model: advances the queue position unless
// the current step is a Stall, in which case pc does not move. A
// Stall only holds up the first Step call that reaches it, modelling
// a barrier quorum wait of exactly one pass; the next call at the
// same position advances, matching passB's rendezvous step. Step on a
// queue exhausted of scripted steps returns an error; NextPC on such a
// queue reports the last pc reached, so a trailing NextPC check after
// the final scripted instruction still succeeds.
func (f *FakeRef) Step(ctx context.Context, key warp.Key) (refstep.StepResult, error) {
	steps := f.steps[key]
	pos := f.pos[key]
	if pos >= len(steps) {
		return refstep.StepResult{}, fmt.Errorf("driver: fake REF queue exhausted for warp %v", key)
	}
	s := steps[pos]
	visited := f.stalled[key]
	if visited == nil {
		visited = map[int]bool{}
		f.stalled[key] = visited
	}
	if s.Stall && !visited[pos] {
		visited[pos] = true
	} else {
		f.pos[key] = pos + 1
		f.lastPC[key] = s.PC
		if s.Kind == warp.ResultXReg {
			f.setReg(key, int(s.XReg.RegIdx), s.XReg.RD)
		}
	}
	return refstep.StepResult{PC: s.PC, Insn: s.Insn, Kind: s.Kind, XReg: s.XReg, VReg: s.VReg}, nil
}

// GetXReg implements refstep.Model.
func (f *FakeRef) GetXReg(ctx context.Context, key warp.Key) ([]uint32, error) {
	return append([]uint32{}, f.xreg[key]...), nil
}

func (f *FakeRef) setReg(key warp.Key, idx int, val uint32) {
	regs := f.xreg[key]
	for len(regs) <= idx {
		regs = append(regs, 0)
	}
	if idx != 0 {
		regs[idx] = val
	}
	f.xreg[key] = regs
}
