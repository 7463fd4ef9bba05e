/*
 * msim - Sv32 MMU
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

// Package mmu implements the Sv32 two-level page walk over the physical
// memory map.
package mmu

import (
	"github.com/PeterHero/msim/internal/csr"
	"github.com/PeterHero/msim/internal/memory"
	"github.com/PeterHero/msim/internal/trap"
)

const (
	pteSize  = 4
	pageBits = 12
	pageSize = 1 << pageBits
	vpnBits  = 10
	vpnMask  = (1 << vpnBits) - 1
)

// PTE bit positions.
const (
	pteV = 1 << 0
	pteR = 1 << 1
	pteW = 1 << 2
	pteX = 1 << 3
	pteU = 1 << 4
	pteG = 1 << 5
	pteA = 1 << 6
	pteD = 1 << 7
)

// Result is a successful translation.
type Result struct {
	Phys uint64
}

// Translate walks satp/mem to translate virt for the given intent at
// effective privilege eff. noisy controls whether the walk writes back
// A/D bits. On success it returns the physical address with the page
// offset (or megapage offset) preserved from virt, per spec invariant 6.
// On failure it returns the page-fault Cause appropriate to intent.
func Translate(mem *memory.Map, satp uint32, eff csr.Privilege, sum, mxr bool, virt uint32, intent trap.Intent, noisy bool) (Result, trap.Cause) {
	vpn1 := (virt >> 22) & vpnMask
	vpn0 := (virt >> 12) & vpnMask
	offset := virt & (pageSize - 1)

	a := uint64(satp&0x3fffff) << pageBits
	pteAddr := a + uint64(vpn1)*pteSize
	pte := mem.Read32(pteAddr, noisy)

	if !valid(pte) {
		return Result{}, trap.Sync(trap.PageFaultFor(intent))
	}

	if leaf(pte) {
		// Megapage: PPN[0] of a level-1 leaf must be zero.
		if (pte>>10)&0x3ff != 0 {
			return Result{}, trap.Sync(trap.PageFaultFor(intent))
		}
		if c := checkPerm(pte, eff, sum, mxr, intent); c != trap.None {
			return Result{}, c
		}
		pte = setAccessed(mem, pteAddr, pte, intent == trap.IntentStore, noisy)
		ppn1 := (pte >> 20) & 0x3ff
		phys := (uint64(ppn1) << 22) | uint64(virt&0x3fffff)
		return Result{Phys: phys}, trap.None
	}

	// Descend to the level-0 table.
	a = uint64((pte>>10)&0x3fffff) << pageBits
	pteAddr = a + uint64(vpn0)*pteSize
	pte = mem.Read32(pteAddr, noisy)

	if !valid(pte) || !leaf(pte) {
		return Result{}, trap.Sync(trap.PageFaultFor(intent))
	}

	if c := checkPerm(pte, eff, sum, mxr, intent); c != trap.None {
		return Result{}, c
	}
	pte = setAccessed(mem, pteAddr, pte, intent == trap.IntentStore, noisy)
	ppn := (pte >> 10) & 0x3fffff
	phys := (uint64(ppn) << pageBits) | uint64(offset)
	return Result{Phys: phys}, trap.None
}

func valid(pte uint32) bool {
	v := pte&pteV != 0
	w := pte&pteW != 0
	r := pte&pteR != 0
	return v && !(w && !r)
}

func leaf(pte uint32) bool {
	return pte&(pteR|pteW|pteX) != 0
}

// checkPerm implements spec §4.3 step 5 (is_access_allowed).
func checkPerm(pte uint32, eff csr.Privilege, sum, mxr bool, intent trap.Intent) trap.Cause {
	ok := false
	switch intent {
	case trap.IntentStore:
		ok = pte&pteW != 0
	case trap.IntentFetch:
		ok = pte&pteX != 0
	default:
		ok = pte&pteR != 0 || (mxr && pte&pteX != 0)
	}
	if !ok {
		return trap.Sync(trap.PageFaultFor(intent))
	}

	isU := pte&pteU != 0
	switch eff {
	case csr.Supervisor:
		if isU {
			if intent == trap.IntentFetch {
				return trap.Sync(trap.PageFaultFor(intent))
			}
			if !sum {
				return trap.Sync(trap.PageFaultFor(intent))
			}
		}
	case csr.User:
		if !isU {
			return trap.Sync(trap.PageFaultFor(intent))
		}
	}
	return trap.None
}

// setAccessed sets PTE.A (and .D on a store), writing the PTE back to
// memory only when noisy. Per spec's open question, a write-back that
// would itself fault is not checked — it proceeds silently, matching the
// teacher's MMU write-back behavior.
func setAccessed(mem *memory.Map, pteAddr uint64, pte uint32, isStore, noisy bool) uint32 {
	updated := pte | pteA
	if isStore {
		updated |= pteD
	}
	if noisy && updated != pte {
		mem.Write32(pteAddr, updated, true)
	}
	return updated
}

// EffectivePrivilege implements spec §4.3: MPRV redirects non-fetch
// accesses to MPP, except fetches which always use priv.
func EffectivePrivilege(priv csr.Privilege, mprv bool, mpp csr.Privilege, intent trap.Intent) csr.Privilege {
	if mprv && intent != trap.IntentFetch {
		return mpp
	}
	return priv
}

// Active reports whether translation should run at all: satp is non-bare
// and effective privilege is S or below.
func Active(satpBare bool, eff csr.Privilege) bool {
	return !satpBare && eff <= csr.Supervisor
}
