/*
 * msim - Physical memory map test set
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

package memory

import (
	"testing"

	"github.com/PeterHero/msim/internal/device"
)

type fakeDevice struct {
	reads  []uint32
	writes []uint32
	val    uint32
}

func (d *fakeDevice) Read(addr uint32, _ device.Width, _ bool) uint32 {
	d.reads = append(d.reads, addr)
	return d.val
}

func (d *fakeDevice) Write(addr uint32, _ device.Width, value uint32, _ bool) bool {
	d.writes = append(d.writes, addr)
	d.val = value
	return true
}

func (d *fakeDevice) Step4() {}
func (d *fakeDevice) Done()  {}

func TestRAMReadWriteRoundTrip(t *testing.T) {
	m := NewMap()
	if _, err := m.AddRAM(0, FrameSize); err != nil {
		t.Fatalf("AddRAM failed: %v", err)
	}
	if !m.Write32(0x10, 0xcafebabe, true) {
		t.Fatalf("write rejected")
	}
	if v := m.Read32(0x10, true); v != 0xcafebabe {
		t.Errorf("Read32 = %#x, want 0xcafebabe", v)
	}
	if v := m.Read8(0x10, true); v != 0xbe {
		t.Errorf("Read8 = %#x, want 0xbe (little endian)", v)
	}
}

func TestRAMSizeMustBeFrameAligned(t *testing.T) {
	m := NewMap()
	if _, err := m.AddRAM(0, FrameSize+1); err == nil {
		t.Errorf("non-frame-aligned RAM size should be rejected")
	}
}

func TestROMRejectsWrites(t *testing.T) {
	m := NewMap()
	if _, err := m.AddROM(0, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("AddROM failed: %v", err)
	}
	if m.Write32(0, 0, true) {
		t.Errorf("ROM should reject writes")
	}
	if v := m.Read32(0, true); v != 0x04030201 {
		t.Errorf("ROM readback = %#x, want 0x04030201", v)
	}
}

func TestUnmappedReadsReturnAllOnes(t *testing.T) {
	m := NewMap()
	if v := m.Read32(0x1000, true); v != 0xffffffff {
		t.Errorf("unmapped Read32 = %#x, want 0xffffffff", v)
	}
	if v := m.Read8(0x1000, true); v != 0xff {
		t.Errorf("unmapped Read8 = %#x, want 0xff", v)
	}
}

func TestUnmappedWritesFail(t *testing.T) {
	m := NewMap()
	if m.Write32(0x1000, 1, true) {
		t.Errorf("unmapped write should fail")
	}
}

func TestDeviceRegionDispatchesReadWrite(t *testing.T) {
	m := NewMap()
	dev := &fakeDevice{}
	if _, err := m.AddDevice(0x2000, 8, dev); err != nil {
		t.Fatalf("AddDevice failed: %v", err)
	}
	if !m.Write32(0x2004, 42, true) {
		t.Fatalf("device write rejected")
	}
	if len(dev.writes) != 1 || dev.writes[0] != 4 {
		t.Errorf("device write offset wrong: %+v", dev.writes)
	}
	dev.val = 7
	if v := m.Read32(0x2004, true); v != 7 {
		t.Errorf("device read = %d, want 7", v)
	}
}

func TestWriteInvalidatesFrameAndFiresStoreHook(t *testing.T) {
	m := NewMap()
	if _, err := m.AddRAM(0, FrameSize); err != nil {
		t.Fatalf("AddRAM failed: %v", err)
	}
	var hooked []uint64
	m.SetStoreHook(func(phys uint64) { hooked = append(hooked, phys) })

	frame := m.FindFrame(0x10)
	if frame == nil {
		t.Fatalf("FindFrame returned nil for RAM address")
	}
	frame.Valid = true

	m.Write8(0x13, 0xff, true)
	if frame.Valid {
		t.Errorf("write should invalidate the covering frame")
	}
	if len(hooked) != 1 || hooked[0] != 0x10 {
		t.Errorf("store hook should fire with the 4-byte-aligned address, got %v", hooked)
	}
}

func TestFindFrameNilForROMAndDevice(t *testing.T) {
	m := NewMap()
	if _, err := m.AddROM(0, []byte{0, 0, 0, 0}); err != nil {
		t.Fatalf("AddROM failed: %v", err)
	}
	if _, err := m.AddDevice(0x1000, 4, &fakeDevice{}); err != nil {
		t.Fatalf("AddDevice failed: %v", err)
	}
	if m.FindFrame(0) != nil {
		t.Errorf("FindFrame should be nil for a ROM region")
	}
	if m.FindFrame(0x1000) != nil {
		t.Errorf("FindFrame should be nil for a device region")
	}
}

func TestNoisyFalseReadStillReachesDevice(t *testing.T) {
	m := NewMap()
	dev := &fakeDevice{}
	if _, err := m.AddDevice(0x3000, 4, dev); err != nil {
		t.Fatalf("AddDevice failed: %v", err)
	}
	m.Read32(0x3000, false)
	if len(dev.reads) != 1 {
		t.Fatalf("expected the read call to reach the device regardless of noisy")
	}
}
