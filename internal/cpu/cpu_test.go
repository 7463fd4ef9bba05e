/*
 * msim - RV32IMA core test cases
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
	"testing"

	"github.com/PeterHero/msim/internal/csr"
	"github.com/PeterHero/msim/internal/dic"
	"github.com/PeterHero/msim/internal/memory"
)

// newTestCPU builds a hart over a single RAM region big enough for every
// test's code and data, with the timer pair mapped well away from it.
func newTestCPU(t *testing.T) *CPU {
	t.Helper()
	mem := memory.NewMap()
	if _, err := mem.AddRAM(0, 0x10000); err != nil {
		t.Fatalf("AddRAM: %v", err)
	}
	cache := dic.New(mem, DecodeWord)
	c := New(0, mem, cache, 0x20000, 0x20008)
	mem.SetStoreHook(func(phys uint64) { c.ScAccess(phys) })
	return c
}

func (c *CPU) storeWord(addr, word uint32) {
	c.Mem.Write32(uint64(addr), word, true)
}

// S1: add x1, x2, x3 at pc=0x1000; regs[2]=7, regs[3]=5 -> regs[1]=12, pc=0x1004.
func TestStepAdd(t *testing.T) {
	c := newTestCPU(t)
	c.SetPC(0x1000)
	c.storeWord(0x1000, 0x003100b3) // add x1, x2, x3
	c.Regs[2] = 7
	c.Regs[3] = 5

	c.Step()

	if c.Regs[1] != 12 {
		t.Fatalf("regs[1] = %d, want 12", c.Regs[1])
	}
	if c.PC != 0x1004 {
		t.Fatalf("pc = %#x, want 0x1004", c.PC)
	}
	if c.PCNext != c.PC+4 {
		t.Fatalf("pc_next = %#x, want pc+4 = %#x", c.PCNext, c.PC+4)
	}
}

// S2: an all-zero word at pc=0x2000 in M-mode with mtvec=0x100|direct traps
// to illegal instruction, landing back in M-mode.
func TestStepIllegalInstruction(t *testing.T) {
	c := newTestCPU(t)
	c.Priv = csr.Machine
	c.Csr.Mtvec = 0x100 | csr.TvecDirect
	c.SetPC(0x2000)
	c.storeWord(0x2000, 0x00000000)

	c.Step()

	if c.Csr.Mcause != 2 {
		t.Fatalf("mcause = %d, want 2", c.Csr.Mcause)
	}
	if c.Csr.Mepc != 0x2000 {
		t.Fatalf("mepc = %#x, want 0x2000", c.Csr.Mepc)
	}
	if c.Csr.Mtval != 0 {
		t.Fatalf("mtval = %#x, want 0", c.Csr.Mtval)
	}
	if c.PC != 0x100 {
		t.Fatalf("pc = %#x, want 0x100", c.PC)
	}
	if c.Priv != csr.Machine {
		t.Fatalf("priv = %d, want Machine", c.Priv)
	}
	if c.Csr.MPP() != csr.Machine {
		t.Fatalf("mstatus.MPP = %d, want Machine", c.Csr.MPP())
	}
}

// S3: ECALL from U-mode, delegated to S via medeleg bit 8.
func TestStepEcallFromUDelegated(t *testing.T) {
	c := newTestCPU(t)
	c.Priv = csr.User
	c.Csr.Mtvec = 0x400 | csr.TvecDirect
	c.Csr.Medeleg = 1 << 8
	c.Csr.Stvec = 0x800 | csr.TvecDirect
	c.SetPC(0x3000)
	c.storeWord(0x3000, 0x00000073) // ecall

	c.Step()

	if c.Priv != csr.Supervisor {
		t.Fatalf("priv = %d, want Supervisor", c.Priv)
	}
	if c.Csr.Sepc != 0x3000 {
		t.Fatalf("sepc = %#x, want 0x3000", c.Csr.Sepc)
	}
	if c.Csr.Scause != 8 {
		t.Fatalf("scause = %d, want 8", c.Csr.Scause)
	}
	if c.PC != 0x800 {
		t.Fatalf("pc = %#x, want 0x800", c.PC)
	}
	if c.Csr.SPP() != csr.User {
		t.Fatalf("sstatus.SPP = %d, want User", c.Csr.SPP())
	}
}

// S4: LR.w reserves addr 0x40; an intervening SW invalidates it so a
// subsequent SC.w fails (regs[rd]=1); without the intervening store, SC.w
// succeeds (regs[rd]=0) and updates memory.
func TestLrScReservation(t *testing.T) {
	c := newTestCPU(t)
	c.Priv = csr.Machine
	c.Regs[1] = 0x40 // base for lr/sc/sw
	c.Regs[2] = 0xdeadbeef

	c.SetPC(0x1000)
	c.storeWord(0x1000, 0x1000a1af) // lr.w x3, (x1)
	c.Step()
	if !c.ReservedValid || c.ReservedAddr != 0x40 {
		t.Fatalf("lr.w did not set a reservation on 0x40")
	}

	// A plain store to the reserved word invalidates the reservation.
	c.Mem.Write32(0x40, 0x11111111, true)
	if c.ReservedValid {
		t.Fatalf("store to reserved address did not invalidate reservation")
	}

	c.SetPC(0x1008)
	c.storeWord(0x1008, 0x1820a1af) // sc.w x3, x2, (x1)
	c.Step()
	if c.Regs[3] != 1 {
		t.Fatalf("sc.w after invalidated reservation: regs[3] = %d, want 1 (failure)", c.Regs[3])
	}

	// Fresh reservation, no intervening store: sc.w now succeeds.
	c.SetPC(0x100c)
	c.storeWord(0x100c, 0x1000a1af) // lr.w x3, (x1)
	c.Step()
	c.SetPC(0x1010)
	c.storeWord(0x1010, 0x1820a1af) // sc.w x3, x2, (x1)
	c.Step()
	if c.Regs[3] != 0 {
		t.Fatalf("sc.w after fresh reservation: regs[3] = %d, want 0 (success)", c.Regs[3])
	}
	if got := c.Mem.Read32(0x40, true); got != 0xdeadbeef {
		t.Fatalf("sc.w did not update memory: got %#x, want 0xdeadbeef", got)
	}
}

// S5: satp active, leaf PTE with U=1,R=1, effective priv=S, sstatus.SUM=0:
// a load from the mapped U-page raises load_page_fault with stval=virt.
func TestSv32LoadPageFaultSumViolation(t *testing.T) {
	c := newTestCPU(t)
	c.Priv = csr.Supervisor
	c.Csr.SetMIE(false)
	c.Csr.Medeleg = 1 << 13 // delegate load_page_fault to S, per the scenario's framing.
	c.Csr.Stvec = 0x900 | csr.TvecDirect

	const (
		rootPT = 0x2000
		leafPT = 0x3000
		virt   = 0x00400000 // vpn1=1, vpn0=0
	)
	// satp: mode=1 (Sv32), ppn = rootPT>>12.
	c.Csr.Satp = (1 << 31) | uint32(rootPT>>12)

	// Level-1 PTE at vpn1=0: supervisor V,R,X megapage identity-mapping the
	// code at pc=0x1000, so the fetch itself translates.
	c.storeWord(rootPT+0*4, 0x1|0x2|0x8)

	// Level-1 PTE at vpn1=1 points at the level-0 table, non-leaf.
	l1 := uint32(leafPT>>12)<<10 | 0x1 // V=1, R=W=X=0
	c.storeWord(rootPT+1*4, l1)

	// Level-0 PTE at vpn0=0: V=1,R=1,U=1, points at a physical data page.
	const dataPage = 0x4000
	l0 := uint32(dataPage>>12)<<10 | 0x1 | 0x2 | 0x10 // V, R, U
	c.storeWord(leafPT+0*4, l0)

	c.SetPC(0x1000)
	// lw x1, 0(x2); x2 = virt.
	c.storeWord(0x1000, 0x00012083)
	c.Regs[2] = virt

	c.Step()

	if c.Csr.Scause != uint32(13) { // load_page_fault = 13
		t.Fatalf("scause = %d, want 13 (load_page_fault)", c.Csr.Scause)
	}
	if c.Csr.Stval != virt {
		t.Fatalf("stval = %#x, want %#x", c.Csr.Stval, uint32(virt))
	}
}

// S6: mtime=100, mtimecmp=50, mie.MTIE=1, mstatus.MIE=1, priv=M: a single
// step traps with mcause = interrupt|7 (MTI) and mepc = pc_next.
func TestTimerInterrupt(t *testing.T) {
	c := newTestCPU(t)
	c.Priv = csr.Machine
	c.Csr.Mtime = 100
	c.Csr.Mtimecmp = 50
	c.Csr.Mie |= csr.MTIBit
	c.Csr.SetMIE(true)
	c.Csr.Mtvec = 0x100 | csr.TvecDirect

	c.SetPC(0x1000)
	c.storeWord(0x1000, 0x00000013) // addi x0, x0, 0 (nop)

	wantEpc := c.PCNext
	c.Step()

	wantCause := uint32(7) | (1 << 31)
	if c.Csr.Mcause != wantCause {
		t.Fatalf("mcause = %#x, want %#x", c.Csr.Mcause, wantCause)
	}
	if c.Csr.Mepc != wantEpc {
		t.Fatalf("mepc = %#x, want pc_next = %#x", c.Csr.Mepc, wantEpc)
	}
}

// Invariant 1: after every step, regs[0] == 0, even when something wrote
// to it between steps.
func TestRegisterZeroAlwaysZero(t *testing.T) {
	c := newTestCPU(t)
	c.SetPC(0x1000)
	c.storeWord(0x1000, 0x00100093) // addi x1, x0, 1
	c.Step()
	c.Regs[0] = 0xffffffff
	c.SetPC(0x1004)
	c.storeWord(0x1004, 0x00000013) // nop
	c.Step()
	if c.Regs[0] != 0 {
		t.Fatalf("regs[0] = %#x, want 0", c.Regs[0])
	}
}

// Invariant 2: a non-branching, non-standby step advances pc_next = pc+4.
func TestDefaultPcAdvance(t *testing.T) {
	c := newTestCPU(t)
	c.SetPC(0x2000)
	c.storeWord(0x2000, 0x00000013) // nop
	c.Step()
	if c.PC != 0x2004 {
		t.Fatalf("pc = %#x, want 0x2004", c.PC)
	}
	if c.PCNext != 0x2008 {
		t.Fatalf("pc_next = %#x, want 0x2008", c.PCNext)
	}
}

// MRET/SRET round-trip: entering a trap and returning restores the saved
// privilege and PC.
func TestMretRestoresPrivilegeAndPc(t *testing.T) {
	c := newTestCPU(t)
	c.Priv = csr.Machine
	c.Csr.Mtvec = 0x100 | csr.TvecDirect
	c.SetPC(0x2000)
	c.storeWord(0x2000, 0x00000000) // illegal, traps to M
	c.Step()
	if c.PC != 0x100 {
		t.Fatalf("pc after trap = %#x, want 0x100", c.PC)
	}

	c.storeWord(0x100, 0x30200073) // mret
	c.Step()
	if c.PC != 0x2000 {
		t.Fatalf("pc after mret = %#x, want 0x2000", c.PC)
	}
	if c.Priv != csr.Machine {
		t.Fatalf("priv after mret = %d, want Machine (mpp was Machine)", c.Priv)
	}
}

// WFI sets Stdby, and Stdby is cleared the moment a trap (here, a timer
// interrupt) is delivered.
func TestWfiWokenByInterrupt(t *testing.T) {
	c := newTestCPU(t)
	c.Priv = csr.Machine
	c.Csr.Mtvec = 0x100 | csr.TvecDirect
	c.SetPC(0x1000)
	c.storeWord(0x1000, 0x10500073) // wfi
	c.Step()
	if !c.Stdby {
		t.Fatalf("wfi did not set Stdby")
	}

	c.Csr.Mtime = 100
	c.Csr.Mtimecmp = 1
	c.Csr.Mie |= csr.MTIBit
	c.Csr.SetMIE(true)
	c.Step()
	if c.Stdby {
		t.Fatalf("pending timer interrupt did not clear Stdby")
	}
	if c.PC != 0x100 {
		t.Fatalf("pc = %#x, want 0x100 (trap taken while in standby)", c.PC)
	}
}

// Illegal tvec mode values 2/3 are architecturally undefined and the step
// engine treats entry through one as fatal.
func TestEnterViaInvalidTvecModePanics(t *testing.T) {
	c := newTestCPU(t)
	c.Priv = csr.Machine
	c.Csr.Mtvec = 0x100 | 2 // reserved mode
	c.SetPC(0x1000)
	c.storeWord(0x1000, 0x00000000) // illegal instruction

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected a panic on an invalid tvec mode")
		}
	}()
	c.Step()
}
