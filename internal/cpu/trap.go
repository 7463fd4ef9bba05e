/*
 * msim - Trap entry and return
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

import (
	"github.com/PeterHero/msim/internal/csr"
	"github.com/PeterHero/msim/internal/trap"
)

// handleTrap delivers cause, choosing M or S entry by delegation (spec
// §4.5). It clears Stdby unconditionally, matching "any incoming
// interrupt... clears it on the next trap" (spec §4.6) and the symmetric
// synchronous-exception case.
func (c *CPU) handleTrap(cause trap.Cause) {
	if trap.Delegated(cause, c.Priv, c.Csr.Medeleg, c.Csr.Mideleg) {
		c.enterS(cause)
	} else {
		c.enterM(cause)
	}
	c.Stdby = false
}

func (c *CPU) enterM(cause trap.Cause) {
	epc := c.PC
	if cause.IsInterrupt() {
		epc = c.PCNext
	}
	c.Csr.Mepc = epc
	c.Csr.Mcause = uint32(cause)
	c.Csr.Mtval = c.Csr.TvalNext

	c.Csr.SetMPIE(c.Csr.MIE())
	c.Csr.SetMIE(false)
	c.Csr.SetMPP(c.Priv)
	c.Priv = csr.Machine

	c.enterVia(c.Csr.Mtvec, cause)
}

func (c *CPU) enterS(cause trap.Cause) {
	epc := c.PC
	if cause.IsInterrupt() {
		epc = c.PCNext
	}
	c.Csr.Sepc = epc
	c.Csr.Scause = uint32(cause)
	c.Csr.Stval = c.Csr.TvalNext

	c.Csr.SetSPIE(c.Csr.SIE())
	c.Csr.SetSIE(false)
	c.Csr.SetSPP(c.Priv)
	c.Priv = csr.Supervisor

	c.enterVia(c.Csr.Stvec, cause)
}

// enterVia computes the next PC from an mtvec/stvec value: direct mode
// always enters at base; vectored mode enters at base+4*cause for
// interrupts and at base for exceptions (spec §4.5). Any other mode value
// is architecturally illegal at entry and is treated as fatal here,
// matching spec §7's "host error" class.
func (c *CPU) enterVia(tvec uint32, cause trap.Cause) {
	mode := csr.TvecMode(tvec)
	base := csr.TvecBase(tvec)
	switch mode {
	case csr.TvecDirect:
		c.PC = base
	case csr.TvecVectored:
		if cause.IsInterrupt() {
			c.PC = base + 4*cause.Code()
		} else {
			c.PC = base
		}
	default:
		panic("cpu: tvec mode is neither direct nor vectored")
	}
	c.PCNext = c.PC + 4
}

// execMret and execSret return to the saved privilege and PC. Like
// JAL/JALR/branches (spec invariant 2), they write PCNext rather than PC
// directly: the step engine commits PCNext into PC once execute returns,
// since a non-trapping step's PC write must go through that same path.
func (c *CPU) execMret() trap.Cause {
	if c.Priv != csr.Machine {
		return trap.Sync(trap.IllegalInstruction)
	}
	prevPriv := c.Csr.MPP()
	c.Csr.SetMIE(c.Csr.MPIE())
	c.Csr.SetMPIE(true)
	c.Csr.SetMPP(csr.User)
	c.Priv = prevPriv
	c.PCNext = c.Csr.Mepc
	return trap.None
}

func (c *CPU) execSret() trap.Cause {
	if c.Priv < csr.Supervisor {
		return trap.Sync(trap.IllegalInstruction)
	}
	prevPriv := c.Csr.SPP()
	c.Csr.SetSIE(c.Csr.SPIE())
	c.Csr.SetSPIE(true)
	c.Csr.SetSPP(csr.User)
	c.Priv = prevPriv
	c.PCNext = c.Csr.Sepc
	return trap.None
}
