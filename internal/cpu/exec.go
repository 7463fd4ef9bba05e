/*
 * msim - RV32IMA instruction execution
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
	"github.com/PeterHero/msim/internal/mmu"
	"github.com/PeterHero/msim/internal/trap"
)

// execute runs one decoded instruction and returns the trap cause it
// raised, or trap.None. A taken branch/jump writes PCNext directly,
// overriding the step engine's default pc_next = pc + 4 (spec invariant 2).
func (c *CPU) execute(d Decoded) trap.Cause {
	r := &c.Regs
	switch d.Op {
	case OpLUI:
		r[d.Rd] = uint32(d.Imm)
	case OpAUIPC:
		r[d.Rd] = c.PC + uint32(d.Imm)
	case OpJAL:
		r[d.Rd] = c.PC + 4
		c.PCNext = c.PC + uint32(d.Imm)
	case OpJALR:
		target := (r[d.Rs1] + uint32(d.Imm)) &^ 1
		r[d.Rd] = c.PC + 4
		c.PCNext = target

	case OpBEQ, OpBNE, OpBLT, OpBGE, OpBLTU, OpBGEU:
		if branchTaken(d.Op, r[d.Rs1], r[d.Rs2]) {
			c.PCNext = c.PC + uint32(d.Imm)
		}

	case OpLB, OpLH, OpLW, OpLBU, OpLHU:
		return c.execLoad(d)
	case OpSB, OpSH, OpSW:
		return c.execStore(d)

	case OpADDI:
		r[d.Rd] = r[d.Rs1] + uint32(d.Imm)
	case OpSLTI:
		r[d.Rd] = b2u(int32(r[d.Rs1]) < d.Imm)
	case OpSLTIU:
		r[d.Rd] = b2u(r[d.Rs1] < uint32(d.Imm))
	case OpXORI:
		r[d.Rd] = r[d.Rs1] ^ uint32(d.Imm)
	case OpORI:
		r[d.Rd] = r[d.Rs1] | uint32(d.Imm)
	case OpANDI:
		r[d.Rd] = r[d.Rs1] & uint32(d.Imm)
	case OpSLLI:
		r[d.Rd] = r[d.Rs1] << uint(d.Imm&0x1f)
	case OpSRLI:
		r[d.Rd] = r[d.Rs1] >> uint(d.Imm&0x1f)
	case OpSRAI:
		r[d.Rd] = uint32(int32(r[d.Rs1]) >> uint(d.Imm&0x1f))

	case OpADD:
		r[d.Rd] = r[d.Rs1] + r[d.Rs2]
	case OpSUB:
		r[d.Rd] = r[d.Rs1] - r[d.Rs2]
	case OpSLL:
		r[d.Rd] = r[d.Rs1] << (r[d.Rs2] & 0x1f)
	case OpSLT:
		r[d.Rd] = b2u(int32(r[d.Rs1]) < int32(r[d.Rs2]))
	case OpSLTU:
		r[d.Rd] = b2u(r[d.Rs1] < r[d.Rs2])
	case OpXOR:
		r[d.Rd] = r[d.Rs1] ^ r[d.Rs2]
	case OpSRL:
		r[d.Rd] = r[d.Rs1] >> (r[d.Rs2] & 0x1f)
	case OpSRA:
		r[d.Rd] = uint32(int32(r[d.Rs1]) >> (r[d.Rs2] & 0x1f))
	case OpOR:
		r[d.Rd] = r[d.Rs1] | r[d.Rs2]
	case OpAND:
		r[d.Rd] = r[d.Rs1] & r[d.Rs2]

	case OpFENCE:
		// No caching effects modeled beyond the DIC, which PM already
		// invalidates on every write; FENCE is a no-op.

	case OpECALL:
		switch c.Priv {
		case csr.Machine:
			return trap.Sync(trap.EcallFromM)
		case csr.Supervisor:
			return trap.Sync(trap.EcallFromS)
		default:
			return trap.Sync(trap.EcallFromU)
		}
	case OpEBREAK:
		return trap.Sync(trap.Breakpoint)
	case OpMRET:
		return c.execMret()
	case OpSRET:
		return c.execSret()
	case OpWFI:
		c.Stdby = true
	case OpSFENCEVMA:
		// TLB is not modeled (every translation re-walks); no-op.

	case OpCSRRW, OpCSRRS, OpCSRRC, OpCSRRWI, OpCSRRSI, OpCSRRCI:
		return c.execCsr(d)

	case OpMUL, OpMULH, OpMULHSU, OpMULHU, OpDIV, OpDIVU, OpREM, OpREMU:
		c.execM(d)

	case OpLRW, OpSCW, OpAMOSWAPW, OpAMOADDW, OpAMOXORW, OpAMOANDW, OpAMOORW,
		OpAMOMINW, OpAMOMAXW, OpAMOMINUW, OpAMOMAXUW:
		return c.execAtomic(d)

	default:
		return trap.Sync(trap.IllegalInstruction)
	}
	r[0] = 0
	return trap.None
}

func branchTaken(op Op, a, b uint32) bool {
	switch op {
	case OpBEQ:
		return a == b
	case OpBNE:
		return a != b
	case OpBLT:
		return int32(a) < int32(b)
	case OpBGE:
		return int32(a) >= int32(b)
	case OpBLTU:
		return a < b
	case OpBGEU:
		return a >= b
	}
	return false
}

func b2u(v bool) uint32 {
	if v {
		return 1
	}
	return 0
}

func (c *CPU) execLoad(d Decoded) trap.Cause {
	virt := c.Regs[d.Rs1] + uint32(d.Imm)
	var width int
	switch d.Op {
	case OpLB, OpLBU:
		width = 1
	case OpLH, OpLHU:
		width = 2
	default:
		width = 4
	}
	v, tc := c.readWidth(virt, width, trap.IntentLoad, true)
	if tc != trap.None {
		c.Csr.TvalNext = virt
		return tc
	}
	switch d.Op {
	case OpLB:
		v = uint32(int32(int8(v)))
	case OpLH:
		v = uint32(int32(int16(v)))
	}
	c.Regs[d.Rd] = v
	c.Regs[0] = 0
	return trap.None
}

func (c *CPU) execStore(d Decoded) trap.Cause {
	virt := c.Regs[d.Rs1] + uint32(d.Imm)
	width := 4
	switch d.Op {
	case OpSB:
		width = 1
	case OpSH:
		width = 2
	}
	tc := c.writeWidth(virt, width, c.Regs[d.Rs2], true)
	if tc != trap.None {
		c.Csr.TvalNext = virt
	}
	return tc
}

func (c *CPU) execM(d Decoded) {
	r := &c.Regs
	a, b := int32(r[d.Rs1]), int32(r[d.Rs2])
	ua, ub := r[d.Rs1], r[d.Rs2]
	switch d.Op {
	case OpMUL:
		r[d.Rd] = uint32(a * b)
	case OpMULH:
		r[d.Rd] = uint32((int64(a) * int64(b)) >> 32)
	case OpMULHSU:
		r[d.Rd] = uint32((int64(a) * int64(ub)) >> 32)
	case OpMULHU:
		r[d.Rd] = uint32((uint64(ua) * uint64(ub)) >> 32)
	case OpDIV:
		switch {
		case b == 0:
			r[d.Rd] = 0xffffffff
		case a == -0x80000000 && b == -1:
			r[d.Rd] = uint32(a)
		default:
			r[d.Rd] = uint32(a / b)
		}
	case OpDIVU:
		if ub == 0 {
			r[d.Rd] = 0xffffffff
		} else {
			r[d.Rd] = ua / ub
		}
	case OpREM:
		switch {
		case b == 0:
			r[d.Rd] = uint32(a)
		case a == -0x80000000 && b == -1:
			r[d.Rd] = 0
		default:
			r[d.Rd] = uint32(a % b)
		}
	case OpREMU:
		if ub == 0 {
			r[d.Rd] = ua
		} else {
			r[d.Rd] = ua % ub
		}
	}
	r[0] = 0
}

// execAtomic implements LR.W/SC.W and the AMO family (spec §4.7). All of
// them operate on a 4-byte-aligned physical word.
func (c *CPU) execAtomic(d Decoded) trap.Cause {
	virt := c.Regs[d.Rs1]
	if virt&0x3 != 0 {
		c.Csr.TvalNext = virt
		return trap.Sync(trap.StoreAMOAddressMisaligned)
	}
	eff := mmu.EffectivePrivilege(c.Priv, c.Csr.MPRV(), c.Csr.MPP(), trap.IntentStore)
	phys, tc := c.translate(virt, trap.IntentStore, eff, true)
	if tc != trap.None {
		c.Csr.TvalNext = virt
		return tc
	}

	if d.Op == OpLRW {
		c.ReservedAddr = phys &^ 3
		c.ReservedValid = true
		v := c.Mem.Read32(phys, true)
		c.Regs[d.Rd] = v
		c.Regs[0] = 0
		return trap.None
	}

	if d.Op == OpSCW {
		if c.ReservedValid && c.ReservedAddr == phys&^3 {
			c.Mem.Write32(phys, c.Regs[d.Rs2], true)
			c.ReservedValid = false
			c.Regs[d.Rd] = 0
		} else {
			c.Regs[d.Rd] = 1
		}
		c.Regs[0] = 0
		return trap.None
	}

	old := c.Mem.Read32(phys, true)
	val := c.Regs[d.Rs2]
	var result uint32
	switch d.Op {
	case OpAMOSWAPW:
		result = val
	case OpAMOADDW:
		result = old + val
	case OpAMOXORW:
		result = old ^ val
	case OpAMOANDW:
		result = old & val
	case OpAMOORW:
		result = old | val
	case OpAMOMINW:
		if int32(old) < int32(val) {
			result = old
		} else {
			result = val
		}
	case OpAMOMAXW:
		if int32(old) > int32(val) {
			result = old
		} else {
			result = val
		}
	case OpAMOMINUW:
		if old < val {
			result = old
		} else {
			result = val
		}
	case OpAMOMAXUW:
		if old > val {
			result = old
		} else {
			result = val
		}
	}
	c.Mem.Write32(phys, result, true)
	c.Regs[d.Rd] = old
	c.Regs[0] = 0
	return trap.None
}

// execCsr implements the six Zicsr instructions. The old value is always
// read first (even for csrrw with rd=x0, which must not trigger a fault
// beyond the normal read-then-write ordering).
func (c *CPU) execCsr(d Decoded) trap.Cause {
	num := csr.Number(d.Csr)
	old, ok := c.Csr.Read(num, c.Priv)
	if !ok {
		return trap.Sync(trap.IllegalInstruction)
	}
	var writeVal uint32
	write := true
	switch d.Op {
	case OpCSRRW:
		writeVal = c.Regs[d.Rs1]
	case OpCSRRS:
		writeVal = old | c.Regs[d.Rs1]
		write = d.Rs1 != 0
	case OpCSRRC:
		writeVal = old &^ c.Regs[d.Rs1]
		write = d.Rs1 != 0
	case OpCSRRWI:
		writeVal = uint32(d.Imm)
	case OpCSRRSI:
		writeVal = old | uint32(d.Imm)
		write = d.Imm != 0
	case OpCSRRCI:
		writeVal = old &^ uint32(d.Imm)
		write = d.Imm != 0
	}
	if write {
		if !c.Csr.Write(num, writeVal) {
			return trap.Sync(trap.IllegalInstruction)
		}
	}
	c.Regs[d.Rd] = old
	c.Regs[0] = 0
	return trap.None
}
