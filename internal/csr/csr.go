/*
 * msim - RISC-V control-and-status register file
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

// Package csr models the machine/supervisor control-and-status register
// file of a single RV32IMA hart: mstatus, the trap CSRs, satp, the memory-
// mapped timer pair, and the performance-counter bank.
package csr

// Number identifies a CSR by its 12-bit address.
type Number uint16

// CSR addresses this core implements.
const (
	Sstatus    Number = 0x100
	Sie        Number = 0x104
	Stvec      Number = 0x105
	Scounteren Number = 0x106
	Sscratch   Number = 0x140
	Sepc       Number = 0x141
	Scause     Number = 0x142
	Stval      Number = 0x143
	Sip        Number = 0x144
	Satp       Number = 0x180

	Mstatus    Number = 0x300
	Misa       Number = 0x301
	Medeleg    Number = 0x302
	Mideleg    Number = 0x303
	Mie        Number = 0x304
	Mtvec      Number = 0x305
	Mcounteren Number = 0x306
	Mscratch   Number = 0x340
	Mepc       Number = 0x341
	Mcause     Number = 0x342
	Mtval      Number = 0x343
	Mip        Number = 0x344

	Mcycle        Number = 0xb00
	Minstret      Number = 0xb02
	Mhpmcounter3  Number = 0xb03 // ... through 0xb1f for index 0..28.
	Mcountinhibit Number = 0x320
	Mhpmevent3    Number = 0x323 // ... through 0x33f for index 0..28.

	Mhartid Number = 0xf14
)

// mstatus / sstatus bit positions.
const (
	statusSIE  = 1 << 1
	statusMIE  = 1 << 3
	statusSPIE = 1 << 5
	statusMPIE = 1 << 7
	statusSPP  = 1 << 8
	statusMPRV = 1 << 17
	statusSUM  = 1 << 18
	statusMXR  = 1 << 19

	mppShift = 11
	mppMask  = 0x3 << mppShift

	// sstatusMask selects the bits of mstatus that are S-visible.
	sstatusMask = statusSIE | statusSPIE | statusSPP | statusSUM | statusMXR
)

// Interrupt cause bits (low bits of mip/mie/mcause when the interrupt flag
// is set).
const (
	SSIBit = 1 << 1
	MSIBit = 1 << 3
	STIBit = 1 << 5
	MTIBit = 1 << 7
	SEIBit = 1 << 9
	MEIBit = 1 << 11

	sMask = SSIBit | STIBit | SEIBit // Interrupts an S-mode trap can take.
)

// Privilege levels.
type Privilege uint8

const (
	User       Privilege = 0
	Supervisor Privilege = 1
	Machine    Privilege = 3
)

const hpmCount = 29 // hpmcounter3..hpmcounter31 / mhpmevent3..mhpmevent31.

// HPM event selectors (spec §4.4).
const (
	EventUCycles = iota
	EventSCycles
	EventMCycles
	EventWCycles
)

// File is the CSR state of one hart.
type File struct {
	Mstatus uint32
	Misa    uint32
	Medeleg uint32
	Mideleg uint32
	Mie     uint32
	Mip     uint32
	Mtvec   uint32
	Mepc    uint32
	Mcause  uint32
	Mtval   uint32

	Stvec  uint32
	Sepc   uint32
	Scause uint32
	Stval  uint32

	Mscratch uint32
	Sscratch uint32

	Satp uint32

	Mhartid uint32

	Mtime     uint64
	Mtimecmp  uint64
	Scyclecmp uint32

	Cycle         uint64
	Instret       uint64
	Hpmcounter    [hpmCount]uint64
	Hpmevent      [hpmCount]uint32
	Mcountinhibit uint32

	// ExternalSEIP is the platform-level external interrupt line (e.g. a
	// PLIC claim), ORed into the S-visible view of mip.SEIP but never
	// itself written by M-mode CSR writes to mip.
	ExternalSEIP bool

	// LastTickTime is the host wall-clock reading at the previous step,
	// used to advance Mtime by elapsed real time.
	LastTickTime int64

	// TvalNext carries the value the next trap should place into
	// mtval/stval (faulting address or illegal instruction word); the step
	// engine sets it before calling into trap delivery and clears it after.
	TvalNext uint32
}

// New returns a CSR file with architectural reset values.
func New(hartID uint32) *File {
	f := &File{Mhartid: hartID}
	f.Misa = (1 << 8) | (1 << 12) | (1 << 0) | (1 << 18) | (1 << 20) | (1 << 30) // I M A U S, XLEN=32.
	return f
}

// EffectiveMip is mip with the platform external-interrupt line ORed into
// SEIP, per spec §3.
func (f *File) EffectiveMip() uint32 {
	mip := f.Mip
	if f.ExternalSEIP {
		mip |= SEIBit
	}
	return mip
}

// EffectiveSstatus masks mstatus down to the S-visible view.
func (f *File) EffectiveSstatus() uint32 {
	return f.Mstatus & sstatusMask
}

// MPP returns the mstatus.MPP field as a Privilege.
func (f *File) MPP() Privilege {
	return Privilege((f.Mstatus & mppMask) >> mppShift)
}

// SetMPP writes the mstatus.MPP field.
func (f *File) SetMPP(p Privilege) {
	f.Mstatus = (f.Mstatus &^ mppMask) | (uint32(p) << mppShift)
}

// SPP returns mstatus.SPP as a Privilege (only ever User or Supervisor).
func (f *File) SPP() Privilege {
	if f.Mstatus&statusSPP != 0 {
		return Supervisor
	}
	return User
}

// SetSPP writes mstatus.SPP.
func (f *File) SetSPP(p Privilege) {
	if p == Supervisor {
		f.Mstatus |= statusSPP
	} else {
		f.Mstatus &^= statusSPP
	}
}

func bitSet(v uint32, mask uint32, set bool) uint32 {
	if set {
		return v | mask
	}
	return v &^ mask
}

func (f *File) MIE() bool  { return f.Mstatus&statusMIE != 0 }
func (f *File) MPIE() bool { return f.Mstatus&statusMPIE != 0 }
func (f *File) SIE() bool  { return f.Mstatus&statusSIE != 0 }
func (f *File) SPIE() bool { return f.Mstatus&statusSPIE != 0 }
func (f *File) MPRV() bool { return f.Mstatus&statusMPRV != 0 }
func (f *File) SUM() bool  { return f.Mstatus&statusSUM != 0 }
func (f *File) MXR() bool  { return f.Mstatus&statusMXR != 0 }

func (f *File) SetMIE(v bool)  { f.Mstatus = bitSet(f.Mstatus, statusMIE, v) }
func (f *File) SetMPIE(v bool) { f.Mstatus = bitSet(f.Mstatus, statusMPIE, v) }
func (f *File) SetSIE(v bool)  { f.Mstatus = bitSet(f.Mstatus, statusSIE, v) }
func (f *File) SetSPIE(v bool) { f.Mstatus = bitSet(f.Mstatus, statusSPIE, v) }

// TvecMode and TvecBase decode an mtvec/stvec encoded value: {base[31:2],
// mode[1:0]}.
const (
	TvecDirect   = 0
	TvecVectored = 1
)

func TvecMode(tvec uint32) uint32 { return tvec & 0x3 }
func TvecBase(tvec uint32) uint32 { return tvec &^ 0x3 }

// Read implements the Zicsr CSR read for supported addresses. ok is false
// for an unimplemented address; priv is not checked, so every implemented
// CSR is readable from any privilege level.
func (f *File) Read(num Number, priv Privilege) (uint32, bool) {
	switch num {
	case Mstatus:
		return f.Mstatus, true
	case Sstatus:
		return f.EffectiveSstatus(), true
	case Misa:
		return f.Misa, true
	case Medeleg:
		return f.Medeleg, true
	case Mideleg:
		return f.Mideleg, true
	case Mie:
		return f.Mie, true
	case Sie:
		return f.Mie & sMask, true
	case Mip:
		return f.EffectiveMip(), true
	case Sip:
		return f.EffectiveMip() & sMask, true
	case Mtvec:
		return f.Mtvec, true
	case Stvec:
		return f.Stvec, true
	case Mepc:
		return f.Mepc, true
	case Sepc:
		return f.Sepc, true
	case Mcause:
		return f.Mcause, true
	case Scause:
		return f.Scause, true
	case Mtval:
		return f.Mtval, true
	case Stval:
		return f.Stval, true
	case Mscratch:
		return f.Mscratch, true
	case Sscratch:
		return f.Sscratch, true
	case Satp:
		// TVM-style restriction is out of scope; satp is always readable
		// from S in this core.
		return f.Satp, true
	case Mhartid:
		return f.Mhartid, true
	case Mcycle:
		return uint32(f.Cycle), true
	case Minstret:
		return uint32(f.Instret), true
	case Mcountinhibit:
		return f.Mcountinhibit, true
	}
	if num >= Mhpmcounter3 && num < Mhpmcounter3+hpmCount {
		return uint32(f.Hpmcounter[num-Mhpmcounter3]), true
	}
	if num >= Mhpmevent3 && num < Mhpmevent3+hpmCount {
		return f.Hpmevent[num-Mhpmevent3], true
	}
	return 0, false
}

// Write implements the Zicsr CSR write for supported addresses. ok is false
// for an unimplemented address; writes to sstatus are folded into mstatus.
func (f *File) Write(num Number, value uint32) bool {
	switch num {
	case Mstatus:
		f.Mstatus = value
	case Sstatus:
		f.Mstatus = (f.Mstatus &^ sstatusMask) | (value & sstatusMask)
	case Medeleg:
		f.Medeleg = value
	case Mideleg:
		f.Mideleg = value
	case Mie:
		f.Mie = value
	case Sie:
		f.Mie = (f.Mie &^ sMask) | (value & sMask)
	case Mip:
		// Software may only set the bits architecturally writable from
		// M-mode (SSIP and SEIP here); writing SEIP touches only the software
		// copy, never ExternalSEIP.
		f.Mip = (f.Mip &^ (SSIBit | SEIBit)) | (value & (SSIBit | SEIBit))
	case Sip:
		f.Mip = (f.Mip &^ SSIBit) | (value & SSIBit)
	case Mtvec:
		f.Mtvec = value
	case Stvec:
		f.Stvec = value
	case Mepc:
		f.Mepc = value &^ 0x3
	case Sepc:
		f.Sepc = value &^ 0x3
	case Mcause:
		f.Mcause = value
	case Scause:
		f.Scause = value
	case Mtval:
		f.Mtval = value
	case Stval:
		f.Stval = value
	case Mscratch:
		f.Mscratch = value
	case Sscratch:
		f.Sscratch = value
	case Satp:
		f.Satp = value
	case Mcountinhibit:
		f.Mcountinhibit = value
	default:
		if num >= Mhpmevent3 && num < Mhpmevent3+hpmCount {
			f.Hpmevent[num-Mhpmevent3] = value
			return true
		}
		return false
	}
	return true
}

// SatpBare reports whether satp selects bare (identity) translation.
func (f *File) SatpBare() bool {
	return f.Satp>>31 == 0
}

// SatpPPN returns the root page table's physical page number.
func (f *File) SatpPPN() uint32 {
	return f.Satp & 0x3fffff
}
