/*
 * GVM - Instruction classifier.
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

// Package classify holds the mask/value pattern tables that decide, for
// a raw instruction word, whether it drives retire, whether its result
// is single-instruction comparable, whether it is a barrier, and
// whether it is an fp32 vector op subject to tolerance comparison.
package classify

import "fmt"

// Pattern matches a raw instruction word iff (insn & Mask) == Value.
type Pattern struct {
	Mask     uint32
	Value    uint32
	Mnemonic string
}

// Matches reports whether insn matches this pattern.
func (p Pattern) Matches(insn uint32) bool {
	return insn&p.Mask == p.Value
}

// Tables holds the four classifier lists of spec §6. The union of
// RetireCare, SingleCmpCare and Barrier, plus the display-only
// BARRIERSUB pattern, forms the disasm table.
type Tables struct {
	RetireCare    []Pattern
	SingleCmpCare []Pattern
	FP32Vreg      []Pattern
	Barrier       []Pattern
}

// Care reports whether insn matches any pattern in table.
func Care(insn uint32, table []Pattern) bool {
	for _, p := range table {
		if p.Matches(insn) {
			return true
		}
	}
	return false
}

// Disasm returns the single matching mnemonic for insn across
// RetireCare, SingleCmpCare, Barrier and the display-only BARRIERSUB
// pattern. It returns an error if no pattern matches (not a
// configuration error, just "unnamed") or if more than one distinct
// mnemonic matches (a genuine configuration error per spec §3); the
// latter error lists the matching mnemonics.
func (t Tables) Disasm(insn uint32) (string, error) {
	seen := map[string]bool{}
	var name string
	var names []string
	for _, table := range [][]Pattern{t.RetireCare, t.SingleCmpCare, t.Barrier, disasmExtra()} {
		for _, p := range table {
			if p.Matches(insn) {
				if !seen[p.Mnemonic] {
					seen[p.Mnemonic] = true
					name = p.Mnemonic
					names = append(names, p.Mnemonic)
				}
			}
		}
	}
	switch len(seen) {
	case 0:
		return "", fmt.Errorf("classify: no disasm match for insn 0x%08x", insn)
	case 1:
		return name, nil
	default:
		return "", fmt.Errorf("classify: multiple disasm matches for insn 0x%08x: %v", insn, names)
	}
}

// RetireCareInsn reports whether insn drives retire (a scalar writeback or
// a barrier/endprg instruction).
func (t Tables) RetireCareInsn(insn uint32) bool { return Care(insn, t.RetireCare) }

// SingleCmpCareInsn reports whether insn's result is subject to
// single-instruction comparison (vector writebacks).
func (t Tables) SingleCmpCareInsn(insn uint32) bool { return Care(insn, t.SingleCmpCare) }

// BarrierInsn reports whether insn is a barrier/endprg instruction.
func (t Tables) BarrierInsn(insn uint32) bool { return Care(insn, t.Barrier) }

// FP32VregInsn reports whether insn's vector result should be compared
// with floating point tolerance rather than bitwise equality.
func (t Tables) FP32VregInsn(insn uint32) bool { return Care(insn, t.FP32Vreg) }
