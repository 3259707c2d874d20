/*
 * GVM - Retire arbiter.
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

// Package retire decides, per warp, the maximal prefix of dispatched
// instructions that may be retired against the reference model this
// cycle, and later prunes fully-settled instruction entries.
package retire

import (
	"fmt"

	"github.com/rcornwell/gvm/warp"
)

// FatalError wraps a retire-time invariant violation: a completed
// instruction observed past a closed barrier on the same warp.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return "retire: " + e.Err.Error() }
func (e *FatalError) Unwrap() error { return e.Err }

// Item describes how far one warp may advance REF this step.
type Item struct {
	Key             warp.Key
	RetireCount     uint32
	BarrierIncluded bool
	BarrierRetry    bool
}

// Batch is the set of retire decisions made in one GVM cycle.
type Batch []Item

// Arbiter scans the warp registry and produces a retire Batch.
type Arbiter struct{}

// Check implements the three-pass scan of the retire arbiter: walk the
// ascending prefix starting at next_retire_dispatch_id, accumulate a
// retirable count up to and including the last care-and-done entry
// (stopping at a barrier), then verify no later completion has
// already raced ahead of that boundary.
func (a *Arbiter) Check(reg *warp.Registry) (Batch, error) {
	var batch Batch
	for _, w := range reg.All() {
		item, err := a.checkWarp(w)
		if err != nil {
			return nil, err
		}
		if item != nil {
			batch = append(batch, *item)
		}
	}
	return batch, nil
}

func (a *Arbiter) checkWarp(w *warp.Record) (*Item, error) {
	order := w.Ordered()
	start := -1
	for i, d := range order {
		if d == w.NextRetireDispatchID {
			start = i
			break
		}
	}
	if start == -1 {
		return nil, nil
	}

	finalCnt := uint32(0)
	temp := uint32(0)
	barriered := false
	stopIdx := start

	i := start
	for ; i < len(order); i++ {
		e := w.Insn(order[i])
		if !e.RetireCare {
			temp++
			continue
		}
		if e.Done {
			finalCnt += temp + 1
			temp = 0
			stopIdx = i + 1
			if e.IsBarrier {
				barriered = true
				i++
				break
			}
			continue
		}
		break
	}

	// Scan the remainder for races past the chosen boundary.
	for j := stopIdx; j < len(order); j++ {
		e := w.Insn(order[j])
		if e.RetireCare && e.Done {
			if barriered {
				return nil, &FatalError{Err: fmt.Errorf(
					"warp %v: instruction at dispatch_id %d completed past a closed barrier", w.Key, order[j])}
			}
			// Not yet safely closable this cycle: abandon the batch
			// for this warp.
			return nil, nil
		}
	}

	if finalCnt == 0 {
		return nil, nil
	}
	return &Item{
		Key:             w.Key,
		RetireCount:     finalCnt,
		BarrierIncluded: barriered,
		BarrierRetry:    false,
	}, nil
}
