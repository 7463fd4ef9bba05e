/*
 * msim - Counter accounting and memory-mapped timer
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

package csr

// mcountinhibit bit layout (spec §4.4): bit 0 gates cycle, bit 2 gates
// instret, bit i+3 gates hpmcounter[i].
const (
	inhibitCY = 1 << 0
	inhibitIR = 1 << 2
)

// AccountStep advances cycle, instret, and the hpm counters for one step.
// excepted is true when the step produced a synchronous exception;
// standby is true while the hart is in WFI. Per §4.4, instret additionally
// requires no exception and not standby.
func (f *File) AccountStep(priv Privilege, excepted, standby bool) {
	if f.Mcountinhibit&inhibitCY == 0 {
		f.Cycle++
	}
	if f.Mcountinhibit&inhibitIR == 0 && !excepted && !standby {
		f.Instret++
	}
	for i := 0; i < hpmCount; i++ {
		if f.Mcountinhibit&(1<<(i+3)) != 0 {
			continue
		}
		if f.hpmEventActive(i, priv, standby) {
			f.Hpmcounter[i]++
		}
	}
}

func (f *File) hpmEventActive(i int, priv Privilege, standby bool) bool {
	switch f.Hpmevent[i] {
	case EventUCycles:
		return priv == User
	case EventSCycles:
		return priv == Supervisor
	case EventMCycles:
		return priv == Machine
	case EventWCycles:
		return standby
	default:
		return false
	}
}

// AdvanceMtime moves mtime forward by the host wall-clock delta since the
// previous tick, matching spec §4.4: mtime += now - last_tick_time.
func (f *File) AdvanceMtime(now int64) {
	if f.LastTickTime != 0 {
		delta := now - f.LastTickTime
		if delta > 0 {
			f.Mtime += uint64(delta)
		}
	}
	f.LastTickTime = now
}

// UpdateTimerInterrupts recomputes mip.STIP and mip.MTIP from the current
// counter values, per spec §4.5.
func (f *File) UpdateTimerInterrupts() {
	if uint32(f.Cycle) >= f.Scyclecmp {
		f.Mip |= STIBit
	} else {
		f.Mip &^= STIBit
	}
	if f.Mtime >= f.Mtimecmp {
		f.Mip |= MTIBit
	} else {
		f.Mip &^= MTIBit
	}
}

// TimerRegister identifies which half of the 64-bit MTIME/MTIMECMP pair an
// MMIO access touches.
type TimerRegister int

const (
	RegMtime TimerRegister = iota
	RegMtimecmp
)

// ReadTimerMMIO extracts a width-correct slice of the 64-bit register at
// bit offset (virt mod 8)*8, per spec §4.4.
func (f *File) ReadTimerMMIO(reg TimerRegister, byteOffset uint32, width int) uint32 {
	var full uint64
	if reg == RegMtime {
		full = f.Mtime
	} else {
		full = f.Mtimecmp
	}
	shift := (byteOffset % 8) * 8
	mask := uint64(1)<<(uint(width)*8) - 1
	return uint32((full >> shift) & mask)
}

// WriteTimerMMIO inserts a width-correct slice into the 64-bit register at
// bit offset (virt mod 8)*8.
func (f *File) WriteTimerMMIO(reg TimerRegister, byteOffset uint32, width int, value uint32) {
	shift := (byteOffset % 8) * 8
	mask := uint64(1)<<(uint(width)*8) - 1
	insert := (uint64(value) & mask) << shift
	clear := ^(mask << shift)
	if reg == RegMtime {
		f.Mtime = (f.Mtime & clear) | insert
	} else {
		f.Mtimecmp = (f.Mtimecmp & clear) | insert
	}
}
