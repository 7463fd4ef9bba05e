/*
 * msim - RV32IMA hart: state, step engine, host interface
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

// Package cpu implements the RV32IMA execution engine: architectural
// state, the Sv32-backed memory accessors, the decode/execute step, trap
// delivery, and the host-facing operations the outer shell and devices
// call (step, set_pc, interrupt_up/down, sc_access, init, done).
package cpu

import (
	"errors"
	"fmt"
	"time"

	"github.com/PeterHero/msim/internal/csr"
	"github.com/PeterHero/msim/internal/dic"
	"github.com/PeterHero/msim/internal/memory"
	"github.com/PeterHero/msim/internal/mmu"
	"github.com/PeterHero/msim/internal/trap"
)

// CPU is one RV32IMA hart.
type CPU struct {
	PC     uint32
	PCNext uint32
	Regs   [32]uint32
	Priv   csr.Privilege
	Stdby  bool

	ReservedAddr  uint64
	ReservedValid bool

	Csr *csr.File
	Mem *memory.Map
	Dic *dic.Cache

	mtimeAddr     uint64
	mtimecmpAddr  uint64
	timerMMIOSize uint64
}

// New creates a hart bound to mem and the shared decoded-instruction cache
// dic, with MTIME/MTIMECMP mapped at the given 8-byte-aligned physical
// addresses (spec §4.4, §6).
func New(hartID uint32, mem *memory.Map, cache *dic.Cache, mtimeAddr, mtimecmpAddr uint64) *CPU {
	c := &CPU{
		Csr:           csr.New(hartID),
		Mem:           mem,
		Dic:           cache,
		mtimeAddr:     mtimeAddr,
		mtimecmpAddr:  mtimecmpAddr,
		timerMMIOSize: 8,
	}
	c.PCNext = c.PC + 4
	return c
}

// Done tears the hart down. The decoded-instruction cache is global (spec
// §9) and is cleared by the owning simulator, not per-hart, so Done is
// presently a no-op reserved for future per-hart teardown.
func (c *CPU) Done() {}

// SetPC sets PC and PCNext = value+4; value must be 4-byte aligned.
func (c *CPU) SetPC(value uint32) error {
	if value&0x3 != 0 {
		return errors.New("cpu: set_pc requires a 4-byte-aligned address")
	}
	c.PC = value
	c.PCNext = value + 4
	return nil
}

// InterruptUp raises an external interrupt line (spec §4.8). SEI sets the
// platform-level ExternalSEIP line; MSI/SSI/MEI set the corresponding mip
// bit directly; any other code is coerced to MEI.
func (c *CPU) InterruptUp(no uint32) {
	switch no {
	case trap.SEI:
		c.Csr.ExternalSEIP = true
	case trap.MSI:
		c.Csr.Mip |= csr.MSIBit
	case trap.SSI:
		c.Csr.Mip |= csr.SSIBit
	case trap.MEI:
		c.Csr.Mip |= csr.MEIBit
	default:
		c.Csr.Mip |= csr.MEIBit
	}
}

// InterruptDown clears an external interrupt line, symmetric with
// InterruptUp.
func (c *CPU) InterruptDown(no uint32) {
	switch no {
	case trap.SEI:
		c.Csr.ExternalSEIP = false
	case trap.MSI:
		c.Csr.Mip &^= csr.MSIBit
	case trap.SSI:
		c.Csr.Mip &^= csr.SSIBit
	case trap.MEI:
		c.Csr.Mip &^= csr.MEIBit
	default:
		c.Csr.Mip &^= csr.MEIBit
	}
}

// ScAccess is called by the physical memory map for every successful
// store (spec §4.7): it invalidates the LR/SC reservation if the store
// touches the reserved word.
func (c *CPU) ScAccess(phys uint64) bool {
	aligned := phys &^ 3
	if c.ReservedValid && c.ReservedAddr == aligned {
		c.ReservedValid = false
		return true
	}
	return false
}

// Step executes one tick of the step engine (spec §4.6).
func (c *CPU) Step() {
	var excepted bool
	var cause trap.Cause = trap.None
	wasStdby := c.Stdby

	if !c.Stdby {
		cause = c.fetchAndExecute()
		excepted = cause != trap.None
	}

	c.Csr.AdvanceMtime(time.Now().UnixNano())
	c.Csr.AccountStep(c.Priv, excepted, c.Stdby)
	c.Csr.UpdateTimerInterrupts()

	var trapped bool
	if excepted {
		c.handleTrap(cause)
		trapped = true
	} else if ic, ok := c.pendingInterrupt(); ok {
		c.handleTrap(ic)
		trapped = true
	}

	// A trap already placed the correct vector address into PC/PCNext via
	// enterVia; only a trap-free step (and one that didn't start the step
	// parked in WFI) advances past the instruction that just ran.
	if !trapped && !wasStdby {
		c.PC = c.PCNext
		c.PCNext = c.PC + 4
	}
	c.Regs[0] = 0
	c.Csr.TvalNext = 0
}

func (c *CPU) pendingInterrupt() (trap.Cause, bool) {
	mip := c.Csr.EffectiveMip()
	return trap.Pending(c.Priv, c.Csr.MIE(), c.Csr.SIE(), mip, c.Csr.Mie, c.Csr.Mideleg)
}

// fetchAndExecute performs the fetch-decode-execute portion of one step
// and returns the resulting trap cause, or trap.None.
func (c *CPU) fetchAndExecute() trap.Cause {
	eff := mmu.EffectivePrivilege(c.Priv, false, c.Csr.MPP(), trap.IntentFetch)
	phys, tc := c.translate(c.PC, trap.IntentFetch, eff, true)
	if tc != trap.None {
		c.Csr.TvalNext = c.PC
		return tc
	}
	if c.PC&0x3 != 0 {
		c.Csr.TvalNext = c.PC
		return trap.Sync(trap.MisalignedFor(trap.IntentFetch))
	}

	slot := c.Dic.Fetch(phys)
	d, ok := slot.(Decoded)
	if !ok {
		d = decodeWord(phys, c.Mem.Read32(phys, true))
	}
	cause := c.execute(d)
	if cause == trap.Sync(trap.IllegalInstruction) {
		c.Csr.TvalNext = d.Raw
	}
	return cause
}

// translate resolves a virtual address to a physical one, handling both
// the bare/Sv32 MMU decision and the MTIME/MTIMECMP MMIO carve-out of
// spec §4.4.
func (c *CPU) translate(virt uint32, intent trap.Intent, eff csr.Privilege, noisy bool) (uint64, trap.Cause) {
	if !mmu.Active(c.Csr.SatpBare(), eff) {
		return uint64(virt), trap.None
	}
	res, tc := mmu.Translate(c.Mem, c.Csr.Satp, eff, c.Csr.SUM(), c.Csr.MXR(), virt, intent, noisy)
	if tc != trap.None {
		return 0, tc
	}
	return res.Phys, trap.None
}

// timerMMIO reports whether phys/width is a legal MTIME/MTIMECMP access:
// only at M-mode effective privilege, and only when naturally aligned
// (spec §4.4).
func (c *CPU) timerMMIO(phys uint64, width int, eff csr.Privilege) (csr.TimerRegister, uint32, bool) {
	if eff != csr.Machine {
		return 0, 0, false
	}
	check := func(base uint64) (uint32, bool) {
		if phys < base || phys+uint64(width) > base+c.timerMMIOSize {
			return 0, false
		}
		if phys%uint64(width) != 0 {
			return 0, false
		}
		return uint32(phys - base), true
	}
	if off, ok := check(c.mtimeAddr); ok {
		return csr.RegMtime, off, true
	}
	if off, ok := check(c.mtimecmpAddr); ok {
		return csr.RegMtimecmp, off, true
	}
	return 0, 0, false
}

// readWidth/writeWidth are the host-facing read_mem{8,16,32}/write_mem
// operations (spec §6): translate, honor alignment, and dispatch to the
// timer MMIO carve-out or the physical memory map.
func (c *CPU) readWidth(virt uint32, width int, intent trap.Intent, noisy bool) (uint32, trap.Cause) {
	if virt%uint32(width) != 0 {
		// Page faults take priority over alignment faults (spec §6), so
		// attempt translation first when paging is active.
		eff := mmu.EffectivePrivilege(c.Priv, c.Csr.MPRV(), c.Csr.MPP(), intent)
		if mmu.Active(c.Csr.SatpBare(), eff) {
			if _, tc := c.translate(virt, intent, eff, noisy); tc != trap.None {
				return 0, tc
			}
		}
		return 0, trap.Sync(trap.MisalignedFor(intent))
	}
	eff := mmu.EffectivePrivilege(c.Priv, c.Csr.MPRV(), c.Csr.MPP(), intent)
	phys, tc := c.translate(virt, intent, eff, noisy)
	if tc != trap.None {
		return 0, tc
	}
	if reg, off, ok := c.timerMMIO(phys, width, eff); ok {
		return c.Csr.ReadTimerMMIO(reg, off, width), trap.None
	}
	var v uint32
	switch width {
	case 1:
		v = c.Mem.Read8(phys, noisy)
	case 2:
		v = c.Mem.Read16(phys, noisy)
	default:
		v = c.Mem.Read32(phys, noisy)
	}
	return v, trap.None
}

func (c *CPU) writeWidth(virt uint32, width int, value uint32, noisy bool) trap.Cause {
	intent := trap.IntentStore
	if virt%uint32(width) != 0 {
		eff := mmu.EffectivePrivilege(c.Priv, c.Csr.MPRV(), c.Csr.MPP(), intent)
		if mmu.Active(c.Csr.SatpBare(), eff) {
			if _, tc := c.translate(virt, intent, eff, noisy); tc != trap.None {
				return tc
			}
		}
		return trap.Sync(trap.MisalignedFor(intent))
	}
	eff := mmu.EffectivePrivilege(c.Priv, c.Csr.MPRV(), c.Csr.MPP(), intent)
	phys, tc := c.translate(virt, intent, eff, noisy)
	if tc != trap.None {
		return tc
	}
	if reg, off, ok := c.timerMMIO(phys, width, eff); ok {
		c.Csr.WriteTimerMMIO(reg, off, width, value)
		return trap.None
	}
	var ok bool
	switch width {
	case 1:
		ok = c.Mem.Write8(phys, value, noisy)
	case 2:
		ok = c.Mem.Write16(phys, value, noisy)
	default:
		ok = c.Mem.Write32(phys, value, noisy)
	}
	if !ok {
		return trap.Sync(trap.StoreAMOAccessFault)
	}
	return trap.None
}

// Disassemble is a debug-only helper (not used by execution) that renders
// the instruction at virt in a minimal mnemonic form. No shell command
// calls it.
func (c *CPU) Disassemble(virt uint32) string {
	eff := mmu.EffectivePrivilege(c.Priv, false, c.Csr.MPP(), trap.IntentFetch)
	phys, tc := c.translate(virt, trap.IntentFetch, eff, false)
	if tc != trap.None {
		return "<unmapped>"
	}
	word := c.Mem.Read32(phys, false)
	d := decodeWord(phys, word)
	return fmt.Sprintf("%08x  %s", word, mnemonic(d))
}
