/*
 * GVM - Default instruction pattern tables.
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

package classify

// xregInsns are the scalar RV32IM-derived ops that drive retire.
var xregInsns = []Pattern{
	{Mask: 0x0000007f, Value: 0x00000037, Mnemonic: "LUI"},
	{Mask: 0x0000007f, Value: 0x00000017, Mnemonic: "AUIPC"},
	{Mask: 0x0000007f, Value: 0x0000006f, Mnemonic: "JAL"},
	{Mask: 0x0000707f, Value: 0x00000067, Mnemonic: "JALR"},
	{Mask: 0x0000707f, Value: 0x00000013, Mnemonic: "ADDI"},
	{Mask: 0x0000707f, Value: 0x00002013, Mnemonic: "SLTI"},
	{Mask: 0x0000707f, Value: 0x00003013, Mnemonic: "SLTIU"},
	{Mask: 0x0000707f, Value: 0x00004013, Mnemonic: "XORI"},
	{Mask: 0xfe00707f, Value: 0x00001013, Mnemonic: "SLLI"},
	{Mask: 0xfe00707f, Value: 0x00005013, Mnemonic: "SRLI"},
	{Mask: 0xfe00707f, Value: 0x40005013, Mnemonic: "SRAI"},
	{Mask: 0xfe00707f, Value: 0x00000033, Mnemonic: "ADD"},
	{Mask: 0xfe00707f, Value: 0x40000033, Mnemonic: "SUB"},
	{Mask: 0xfe00707f, Value: 0x00001033, Mnemonic: "SLL"},
	{Mask: 0xfe00707f, Value: 0x00002033, Mnemonic: "SLT"},
	{Mask: 0xfe00707f, Value: 0x00003033, Mnemonic: "SLTU"},
	{Mask: 0xfe00707f, Value: 0x00004033, Mnemonic: "XOR"},
	{Mask: 0xfe00707f, Value: 0x00005033, Mnemonic: "SRL"},
	{Mask: 0xfe00707f, Value: 0x40005033, Mnemonic: "SRA"},
	{Mask: 0xfe00707f, Value: 0x00006033, Mnemonic: "OR"},
	{Mask: 0xfe00707f, Value: 0x00007033, Mnemonic: "AND"},
	{Mask: 0xfe00707f, Value: 0x02000033, Mnemonic: "MUL"},
	{Mask: 0x8000707f, Value: 0x00007057, Mnemonic: "VSETVLI"},
	{Mask: 0x0000707f, Value: 0x00002073, Mnemonic: "CSRRS"},
	{Mask: 0x0000707f, Value: 0x00006073, Mnemonic: "CSRRSI"},
	{Mask: 0x0000707f, Value: 0x00001073, Mnemonic: "CSRRW"},
	{Mask: 0x0000707f, Value: 0x00005073, Mnemonic: "CSRRWI"},
	{Mask: 0x0000707f, Value: 0x00003073, Mnemonic: "CSRRC"},
	{Mask: 0x0000707f, Value: 0x00007073, Mnemonic: "CSRRCI"},
	{Mask: 0x0000707f, Value: 0x00002003, Mnemonic: "LW"},
	{Mask: 0x0000707f, Value: 0x0000305b, Mnemonic: "SETRPC"},
}

// vregInsns are the vector writeback ops that drive single-instruction
// compare rather than retire.
var vregInsns = []Pattern{
	{Mask: 0xfff0707f, Value: 0x5e004057, Mnemonic: "VMV_V_X"},
	{Mask: 0xfc00707f, Value: 0x00004057, Mnemonic: "VADD_VX"},
	{Mask: 0xfc00707f, Value: 0x08001057, Mnemonic: "VFSUB_VV"},
	{Mask: 0xfc00707f, Value: 0x90001057, Mnemonic: "VFMUL_VV"},
	{Mask: 0x8000707f, Value: 0x0000202b, Mnemonic: "VLW_V"},
	{Mask: 0xfc0ff07f, Value: 0x4c001057, Mnemonic: "VFSQRT_V"},
	{Mask: 0xfc00707f, Value: 0xa0001057, Mnemonic: "VFMADD_VV"},
	{Mask: 0xfc00707f, Value: 0x88006057, Mnemonic: "VREMU_VX"},
	{Mask: 0xfc00707f, Value: 0x94003057, Mnemonic: "VSLL_VI"},
	{Mask: 0xfdfff07f, Value: 0x5008a057, Mnemonic: "VID_V"},
	{Mask: 0x0000707f, Value: 0x0000207b, Mnemonic: "VLW12_V"},
	{Mask: 0xfc00707f, Value: 0x18001057, Mnemonic: "VFMAX_VV"},
	{Mask: 0x0000707f, Value: 0x0000100b, Mnemonic: "VSUB12_VI"},
	{Mask: 0xfc00707f, Value: 0x94006057, Mnemonic: "VMUL_VX"},
	{Mask: 0xfc00707f, Value: 0x00003057, Mnemonic: "VADD_VI"},
	{Mask: 0xfc00707f, Value: 0x00001057, Mnemonic: "VFADD_VV"},
	{Mask: 0xfc00707f, Value: 0x00000057, Mnemonic: "VADD_VV"},
	{Mask: 0x0000707f, Value: 0x0000407b, Mnemonic: "VLBU12_V"},
	{Mask: 0xfc00707f, Value: 0xa4006057, Mnemonic: "VMADD_VX"},
	{Mask: 0xfc00707f, Value: 0x24000057, Mnemonic: "VAND_VV"},
	{Mask: 0xfc00707f, Value: 0x80006057, Mnemonic: "VDIVU_VX"},
	{Mask: 0xfc00707f, Value: 0x6c004057, Mnemonic: "VMSLT_VX"},
	{Mask: 0xfc00707f, Value: 0x6c001057, Mnemonic: "VMFLT_VV"},
	{Mask: 0xfc00707f, Value: 0x2c003057, Mnemonic: "VXOR_VI"},
	{Mask: 0xfc00707f, Value: 0x08000057, Mnemonic: "VSUB_VV"},
	{Mask: 0xfc00707f, Value: 0x68004057, Mnemonic: "VMSLTU_VX"},
	{Mask: 0xfc00707f, Value: 0xa4002057, Mnemonic: "VMADD_VV"},
	{Mask: 0xfc00707f, Value: 0xa4003057, Mnemonic: "VSRA_VI"},
	{Mask: 0xfc00707f, Value: 0x74003057, Mnemonic: "VMSLE_VI"},
	{Mask: 0xfc00707f, Value: 0x08004057, Mnemonic: "VSUB_VX"},
}

// warpBarrierInsns are the synchronizing / warp-teardown ops.
// BARRIERSUB is carried for disasm fidelity but excluded from the
// barrier-care table: the original GVM does not support it yet, so no
// barrier-quorum handling should be attempted for it.
var warpBarrierInsns = []Pattern{
	{Mask: 0xfe00707f, Value: 0x0400400b, Mnemonic: "BARRIER"},
	{Mask: 0xfe00707f, Value: 0x0000400b, Mnemonic: "ENDPRG"},
}

var barrierSubInsn = Pattern{Mask: 0xfe00707f, Value: 0x0600400b, Mnemonic: "BARRIERSUB"}

// fp32VregInsns is the subset of vregInsns whose results are compared
// with floating point tolerance rather than bitwise equality.
var fp32VregInsns = []Pattern{
	{Mask: 0xfc00707f, Value: 0x08001057, Mnemonic: "VFSUB_VV"},
	{Mask: 0xfc00707f, Value: 0x90001057, Mnemonic: "VFMUL_VV"},
	{Mask: 0xfc0ff07f, Value: 0x4c001057, Mnemonic: "VFSQRT_V"},
	{Mask: 0xfc00707f, Value: 0xa0001057, Mnemonic: "VFMADD_VV"},
	{Mask: 0xfc00707f, Value: 0x18001057, Mnemonic: "VFMAX_VV"},
	{Mask: 0xfc00707f, Value: 0x00001057, Mnemonic: "VFADD_VV"},
}

// EndprgOpcode is the literal raw instruction word ingest.Pipeline
// matches to tear down a warp (mask 0xfe00707f, value 0x0000400b).
const EndprgOpcode uint32 = 0x0000400b

// EndprgMask is the mask applied to a dispatched insn before comparing
// against EndprgOpcode.
const EndprgMask uint32 = 0xfe00707f

// DefaultTables returns the classifier tables ported verbatim from the
// reference GVM's care-instruction lists. BARRIERSUB is included in
// the disasm table (for mnemonic fidelity) but not in Barrier, since
// it carries no supported quorum semantics.
func DefaultTables() Tables {
	barrier := append([]Pattern{}, warpBarrierInsns...)

	retireCare := append([]Pattern{}, xregInsns...)
	retireCare = append(retireCare, barrier...)

	singleCmpCare := append([]Pattern{}, vregInsns...)

	fp32Vreg := append([]Pattern{}, fp32VregInsns...)

	return Tables{
		RetireCare:    retireCare,
		SingleCmpCare: singleCmpCare,
		FP32Vreg:      fp32Vreg,
		Barrier:       barrier,
	}
}

// disasmExtra carries mnemonics shown by Disasm but excluded from the
// Barrier care table, mirroring the original's disasm_table which
// includes BARRIERSUB for display only.
func disasmExtra() []Pattern {
	return []Pattern{barrierSubInsn}
}
