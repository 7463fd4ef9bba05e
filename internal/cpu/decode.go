/*
 * msim - RV32IMA instruction decode
 *
 * Copyright 2026, MSIM Authors
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

package cpu

// Op tags every decoded instruction the step engine can execute. Using an
// enum plus a switch, rather than a function-pointer or closure per slot,
// keeps the decoded-instruction cache cache-friendly and portable (spec §9).
type Op uint8

const (
	OpIllegal Op = iota
	OpLUI
	OpAUIPC
	OpJAL
	OpJALR
	OpBEQ
	OpBNE
	OpBLT
	OpBGE
	OpBLTU
	OpBGEU
	OpLB
	OpLH
	OpLW
	OpLBU
	OpLHU
	OpSB
	OpSH
	OpSW
	OpADDI
	OpSLTI
	OpSLTIU
	OpXORI
	OpORI
	OpANDI
	OpSLLI
	OpSRLI
	OpSRAI
	OpADD
	OpSUB
	OpSLL
	OpSLT
	OpSLTU
	OpXOR
	OpSRL
	OpSRA
	OpOR
	OpAND
	OpFENCE
	OpECALL
	OpEBREAK
	OpMRET
	OpSRET
	OpWFI
	OpSFENCEVMA
	OpCSRRW
	OpCSRRS
	OpCSRRC
	OpCSRRWI
	OpCSRRSI
	OpCSRRCI
	// M extension.
	OpMUL
	OpMULH
	OpMULHSU
	OpMULHU
	OpDIV
	OpDIVU
	OpREM
	OpREMU
	// A extension.
	OpLRW
	OpSCW
	OpAMOSWAPW
	OpAMOADDW
	OpAMOXORW
	OpAMOANDW
	OpAMOORW
	OpAMOMINW
	OpAMOMAXW
	OpAMOMINUW
	OpAMOMAXUW
)

// Decoded is one pre-decoded instruction, pre-extracting every operand
// field the executor needs so the hot execute path never re-parses the
// instruction word. It is what the DIC actually caches.
type Decoded struct {
	Op     Op
	Rd     uint8
	Rs1    uint8
	Rs2    uint8
	Imm    int32
	Csr    uint16
	Raw    uint32
	Aq, Rl bool
}

// DecodeWord is the exported form of decodeWord used to bind a dic.Cache
// to this package's instruction set from outside (package sim).
func DecodeWord(phys uint64, word uint32) any {
	return decodeWord(phys, word)
}

func signExtend(v uint32, bits uint) int32 {
	shift := 32 - bits
	return int32(v<<shift) >> shift
}

// decodeWord decodes one RV32IMA instruction word, pre-extracting its
// fields. phys is unused by decoding itself but kept for symmetry with the
// dic.Decoder signature.
func decodeWord(_ uint64, word uint32) Decoded {
	d := Decoded{Raw: word}
	opcode := word & 0x7f
	rd := uint8((word >> 7) & 0x1f)
	funct3 := (word >> 12) & 0x7
	rs1 := uint8((word >> 15) & 0x1f)
	rs2 := uint8((word >> 20) & 0x1f)
	funct7 := (word >> 25) & 0x7f

	d.Rd, d.Rs1, d.Rs2 = rd, rs1, rs2

	switch opcode {
	case 0x37: // LUI
		d.Op = OpLUI
		d.Imm = int32(word & 0xfffff000)
	case 0x17: // AUIPC
		d.Op = OpAUIPC
		d.Imm = int32(word & 0xfffff000)
	case 0x6f: // JAL
		d.Op = OpJAL
		imm := ((word >> 31) & 1 << 20) | ((word >> 21) & 0x3ff << 1) |
			((word >> 20) & 1 << 11) | ((word >> 12) & 0xff << 12)
		d.Imm = signExtend(imm, 21)
	case 0x67: // JALR
		d.Op = OpJALR
		d.Imm = signExtend(word>>20, 12)
	case 0x63: // Branches
		imm := ((word >> 31) & 1 << 12) | ((word >> 7) & 1 << 11) |
			((word >> 25) & 0x3f << 5) | ((word >> 8) & 0xf << 1)
		d.Imm = signExtend(imm, 13)
		switch funct3 {
		case 0:
			d.Op = OpBEQ
		case 1:
			d.Op = OpBNE
		case 4:
			d.Op = OpBLT
		case 5:
			d.Op = OpBGE
		case 6:
			d.Op = OpBLTU
		case 7:
			d.Op = OpBGEU
		default:
			d.Op = OpIllegal
		}
	case 0x03: // Loads
		d.Imm = signExtend(word>>20, 12)
		switch funct3 {
		case 0:
			d.Op = OpLB
		case 1:
			d.Op = OpLH
		case 2:
			d.Op = OpLW
		case 4:
			d.Op = OpLBU
		case 5:
			d.Op = OpLHU
		default:
			d.Op = OpIllegal
		}
	case 0x23: // Stores
		imm := ((word >> 25) & 0x7f << 5) | ((word >> 7) & 0x1f)
		d.Imm = signExtend(imm, 12)
		switch funct3 {
		case 0:
			d.Op = OpSB
		case 1:
			d.Op = OpSH
		case 2:
			d.Op = OpSW
		default:
			d.Op = OpIllegal
		}
	case 0x13: // Immediate ALU
		d.Imm = signExtend(word>>20, 12)
		switch funct3 {
		case 0:
			d.Op = OpADDI
		case 2:
			d.Op = OpSLTI
		case 3:
			d.Op = OpSLTIU
		case 4:
			d.Op = OpXORI
		case 6:
			d.Op = OpORI
		case 7:
			d.Op = OpANDI
		case 1:
			d.Op = OpSLLI
			d.Imm = int32(rs2)
		case 5:
			d.Imm = int32(rs2)
			if funct7&0x20 != 0 {
				d.Op = OpSRAI
			} else {
				d.Op = OpSRLI
			}
		default:
			d.Op = OpIllegal
		}
	case 0x33: // Register ALU / M extension
		if funct7 == 0x01 {
			switch funct3 {
			case 0:
				d.Op = OpMUL
			case 1:
				d.Op = OpMULH
			case 2:
				d.Op = OpMULHSU
			case 3:
				d.Op = OpMULHU
			case 4:
				d.Op = OpDIV
			case 5:
				d.Op = OpDIVU
			case 6:
				d.Op = OpREM
			case 7:
				d.Op = OpREMU
			}
			break
		}
		switch funct3 {
		case 0:
			if funct7&0x20 != 0 {
				d.Op = OpSUB
			} else {
				d.Op = OpADD
			}
		case 1:
			d.Op = OpSLL
		case 2:
			d.Op = OpSLT
		case 3:
			d.Op = OpSLTU
		case 4:
			d.Op = OpXOR
		case 5:
			if funct7&0x20 != 0 {
				d.Op = OpSRA
			} else {
				d.Op = OpSRL
			}
		case 6:
			d.Op = OpOR
		case 7:
			d.Op = OpAND
		default:
			d.Op = OpIllegal
		}
	case 0x0f:
		d.Op = OpFENCE
	case 0x73: // SYSTEM
		switch funct3 {
		case 0:
			switch {
			case word == 0x00000073:
				d.Op = OpECALL
			case word == 0x00100073:
				d.Op = OpEBREAK
			case word == 0x30200073:
				d.Op = OpMRET
			case word == 0x10200073:
				d.Op = OpSRET
			case word == 0x10500073:
				d.Op = OpWFI
			case funct7 == 0x09:
				d.Op = OpSFENCEVMA
			default:
				d.Op = OpIllegal
			}
		case 1:
			d.Op, d.Csr = OpCSRRW, uint16(word>>20)
		case 2:
			d.Op, d.Csr = OpCSRRS, uint16(word>>20)
		case 3:
			d.Op, d.Csr = OpCSRRC, uint16(word>>20)
		case 5:
			d.Op, d.Csr = OpCSRRWI, uint16(word>>20)
			d.Imm = int32(rs1)
		case 6:
			d.Op, d.Csr = OpCSRRSI, uint16(word>>20)
			d.Imm = int32(rs1)
		case 7:
			d.Op, d.Csr = OpCSRRCI, uint16(word>>20)
			d.Imm = int32(rs1)
		default:
			d.Op = OpIllegal
		}
	case 0x2f: // RV32A
		d.Aq = funct7&0x2 != 0
		d.Rl = funct7&0x1 != 0
		if funct3 != 2 {
			d.Op = OpIllegal
			break
		}
		switch funct7 >> 2 {
		case 0x00:
			d.Op = OpAMOADDW
		case 0x01:
			d.Op = OpAMOSWAPW
		case 0x02:
			d.Op = OpLRW
		case 0x03:
			d.Op = OpSCW
		case 0x04:
			d.Op = OpAMOXORW
		case 0x08:
			d.Op = OpAMOORW
		case 0x0c:
			d.Op = OpAMOANDW
		case 0x10:
			d.Op = OpAMOMINW
		case 0x14:
			d.Op = OpAMOMAXW
		case 0x18:
			d.Op = OpAMOMINUW
		case 0x1c:
			d.Op = OpAMOMAXUW
		default:
			d.Op = OpIllegal
		}
	default:
		d.Op = OpIllegal
	}
	return d
}
