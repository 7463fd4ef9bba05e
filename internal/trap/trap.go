/*
 * msim - Trap classification and delegation
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

// Package trap defines RISC-V exception/interrupt codes and the
// delegation/priority rules used to pick a trap's target privilege mode.
// A trap.Cause is never surfaced to the host: it is consumed by the step
// engine within the same step and turned into a guest-visible trap entry.
package trap

import "github.com/PeterHero/msim/internal/csr"

// Cause is a flattened exception/interrupt discriminant: synchronous
// exception codes occupy the low bits; an interrupt sets InterruptBit.
type Cause uint32

// InterruptBit is ORed into a Cause to mark it asynchronous (spec §4.5).
const InterruptBit Cause = 1 << 31

// None means "no trap fired this step".
const None Cause = 0xffffffff

func (c Cause) IsInterrupt() bool { return c&InterruptBit != 0 }
func (c Cause) Code() uint32      { return uint32(c &^ InterruptBit) }

// Async builds an interrupt Cause from a bare interrupt code.
func Async(code uint32) Cause { return Cause(code) | InterruptBit }

// Sync builds a synchronous exception Cause from a bare exception code.
func Sync(code uint32) Cause { return Cause(code) }

// Synchronous exception codes (RISC-V privileged spec table).
const (
	InstructionAddressMisaligned = 0
	InstructionAccessFault       = 1
	IllegalInstruction           = 2
	Breakpoint                   = 3
	LoadAddressMisaligned        = 4
	LoadAccessFault              = 5
	StoreAMOAddressMisaligned    = 6
	StoreAMOAccessFault          = 7
	EcallFromU                   = 8
	EcallFromS                   = 9
	EcallFromM                   = 11
	InstructionPageFault         = 12
	LoadPageFault                = 13
	StoreAMOPageFault            = 15
)

// Interrupt codes.
const (
	SSI = 1
	MSI = 3
	STI = 5
	MTI = 7
	SEI = 9
	MEI = 11
)

// Delegated reports whether cause should be taken in S-mode rather than
// M-mode, given the current privilege and the medeleg/mideleg registers
// (spec §4.5): delegation only matters when priv != Machine, and only an
// interrupt/exception whose delegation bit is set may move to S.
func Delegated(c Cause, priv csr.Privilege, medeleg, mideleg uint32) bool {
	if priv == csr.Machine {
		return false
	}
	code := c.Code()
	if code >= 32 {
		return false
	}
	if c.IsInterrupt() {
		return mideleg&(1<<code) != 0
	}
	return medeleg&(1<<code) != 0
}

// mPriority lists MEI, MSI, MTI, SEI, SSI, STI in the M-mode scan order and
// sPriority lists SEI, SSI, STI in the S-mode scan order, per spec §4.5.
var mPriority = []uint32{MEI, MSI, MTI, SEI, SSI, STI}
var sPriority = []uint32{SEI, SSI, STI}

// Pending selects the single highest-priority interrupt to deliver this
// step, or (None, false) if none is pending. It implements the two-stage
// scan of spec §4.5: first decide whether M-mode can take an interrupt at
// all, then S-mode. mip is the effective mip (ExternalSEIP already ORed
// in by the caller); mstatusMIE/mstatusSIE are mstatus.MIE/mstatus.SIE.
func Pending(priv csr.Privilege, mstatusMIE, mstatusSIE bool, mip, mie, mideleg uint32) (Cause, bool) {
	canM := (priv == csr.Machine && mstatusMIE) || priv < csr.Machine
	if canM {
		active := mip & mie &^ mideleg
		if code, ok := highest(active, mPriority); ok {
			return Async(code), true
		}
	}
	canS := (priv == csr.Supervisor && mstatusSIE) || priv < csr.Supervisor
	if !canS {
		return None, false
	}
	active := mip & mie & sMask
	if code, ok := highest(active, sPriority); ok {
		return Async(code), true
	}
	return None, false
}

const sMask = 1<<SSI | 1<<STI | 1<<SEI

func highest(active uint32, order []uint32) (uint32, bool) {
	for _, code := range order {
		if active&(1<<code) != 0 {
			return code, true
		}
	}
	return 0, false
}

// Intent is the kind of memory access; PageFaultFor and MisalignedFor pick
// the page-fault/misaligned exception code for it, per spec §4.3/§4.6.
type Intent int

const (
	IntentLoad Intent = iota
	IntentStore
	IntentFetch
)

func PageFaultFor(i Intent) uint32 {
	switch i {
	case IntentStore:
		return StoreAMOPageFault
	case IntentFetch:
		return InstructionPageFault
	default:
		return LoadPageFault
	}
}

func MisalignedFor(i Intent) uint32 {
	switch i {
	case IntentStore:
		return StoreAMOAddressMisaligned
	case IntentFetch:
		return InstructionAddressMisaligned
	default:
		return LoadAddressMisaligned
	}
}
