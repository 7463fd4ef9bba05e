/*
 * msim - Physical memory map
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

// Package memory models the physical address space: an ordered list of
// non-overlapping regions (RAM, ROM, memory-mapped devices), plus the
// per-frame metadata the decoded-instruction cache relies on.
package memory

import (
	"fmt"

	"github.com/PeterHero/msim/internal/device"
)

const (
	// FrameSize is the RAM granularity the decoded-instruction cache and
	// the frame table operate on.
	FrameSize = 4096

	outOfRange uint32 = 0xffffffff // Value returned for unmapped reads.
)

// Frame is the metadata kept for one 4 KiB frame of RAM. Valid means "the
// decoded-instruction cache entry for this frame reflects current memory";
// it is cleared on every write into the frame and set again once the
// instruction cache re-decodes it.
type Frame struct {
	Valid bool
}

// Region is one entry of the physical memory map. Regions never overlap.
// A RAM/ROM region is backed by Bytes; a device region has Dev set and
// Bytes is nil.
type Region struct {
	Start    uint64 // First physical address covered.
	Size     uint64 // Size in bytes.
	Writable bool   // False for ROM.
	Bytes    []byte // RAM/ROM backing store, nil for devices.
	Dev      device.Device
	frames   []Frame // One per FrameSize of Bytes, only when Dev == nil.
}

func (r *Region) contains(phys uint64) bool {
	return phys >= r.Start && phys < r.Start+r.Size
}

// Map is the physical address space: a linear scan over a small number of
// regions. Region count is expected to be tens, not thousands, so no
// indexing beyond a slice is warranted.
type Map struct {
	regions []*Region

	// onStore is invoked for every successful write, physical address
	// 4-byte aligned down, so LR/SC reservations can be probed. Set by the
	// simulator wiring layer; nil is a legal no-op.
	onStore func(phys uint64)
}

// NewMap returns an empty physical memory map.
func NewMap() *Map {
	return &Map{}
}

// AddRAM installs a writable RAM region of size bytes starting at start.
// size must be a multiple of FrameSize.
func (m *Map) AddRAM(start, size uint64) (*Region, error) {
	if size%FrameSize != 0 {
		return nil, fmt.Errorf("memory: RAM region size %d is not frame-aligned", size)
	}
	r := &Region{
		Start:    start,
		Size:     size,
		Writable: true,
		Bytes:    make([]byte, size),
		frames:   make([]Frame, size/FrameSize),
	}
	if err := m.add(r); err != nil {
		return nil, err
	}
	return r, nil
}

// AddROM installs a read-only region pre-populated with image.
func (m *Map) AddROM(start uint64, image []byte) (*Region, error) {
	r := &Region{
		Start:    start,
		Size:     uint64(len(image)),
		Writable: false,
		Bytes:    append([]byte(nil), image...),
	}
	if err := m.add(r); err != nil {
		return nil, err
	}
	return r, nil
}

// AddDevice installs a memory-mapped peripheral occupying [start, start+size).
func (m *Map) AddDevice(start, size uint64, dev device.Device) (*Region, error) {
	r := &Region{Start: start, Size: size, Writable: true, Dev: dev}
	if err := m.add(r); err != nil {
		return nil, err
	}
	return r, nil
}

func (m *Map) add(r *Region) error {
	for _, other := range m.regions {
		if r.Start < other.Start+other.Size && other.Start < r.Start+r.Size {
			return fmt.Errorf("memory: region [%#x,%#x) overlaps [%#x,%#x)",
				r.Start, r.Start+r.Size, other.Start, other.Start+other.Size)
		}
	}
	m.regions = append(m.regions, r)
	return nil
}

// SetStoreHook installs the callback invoked after every successful write.
func (m *Map) SetStoreHook(fn func(phys uint64)) {
	m.onStore = fn
}

func (m *Map) find(phys uint64) *Region {
	for _, r := range m.regions {
		if r.contains(phys) {
			return r
		}
	}
	return nil
}

// FindFrame returns the frame metadata backing phys, or nil if phys does not
// lie in a RAM region (ROM and device regions have no frame table entry).
func (m *Map) FindFrame(phys uint64) *Frame {
	r := m.find(phys)
	if r == nil || r.Dev != nil || !r.Writable {
		return nil
	}
	idx := (phys - r.Start) / FrameSize
	if int(idx) >= len(r.frames) {
		return nil
	}
	return &r.frames[idx]
}

// Read8/Read16/Read32 fetch a width-correct value from phys. Reads outside
// any region return all-ones, masked to width. noisy=false suppresses side
// effects on device reads.
func (m *Map) Read8(phys uint64, noisy bool) uint32  { return m.read(phys, 1, noisy) & 0xff }
func (m *Map) Read16(phys uint64, noisy bool) uint32 { return m.read(phys, 2, noisy) & 0xffff }
func (m *Map) Read32(phys uint64, noisy bool) uint32 { return m.read(phys, 4, noisy) }

func (m *Map) read(phys uint64, width int, noisy bool) uint32 {
	r := m.find(phys)
	if r == nil {
		return outOfRange
	}
	if r.Dev != nil {
		return r.Dev.Read(uint32(phys-r.Start), device.Width(width), noisy)
	}
	off := phys - r.Start
	if off+uint64(width) > r.Size {
		return outOfRange
	}
	var v uint32
	for i := 0; i < width; i++ {
		v |= uint32(r.Bytes[off+uint64(i)]) << (8 * i)
	}
	return v
}

// Write8/Write16/Write32 store a width-correct value at phys. They return
// false if no region maps phys or the region is not writable. Any write to
// a RAM frame clears that frame's Valid bit, invalidating the decoded-
// instruction cache entry that covers it, and calls the store hook so LR/SC
// reservations can be probed.
func (m *Map) Write8(phys uint64, value uint32, noisy bool) bool {
	return m.write(phys, 1, value, noisy)
}

func (m *Map) Write16(phys uint64, value uint32, noisy bool) bool {
	return m.write(phys, 2, value, noisy)
}

func (m *Map) Write32(phys uint64, value uint32, noisy bool) bool {
	return m.write(phys, 4, value, noisy)
}

func (m *Map) write(phys uint64, width int, value uint32, noisy bool) bool {
	r := m.find(phys)
	if r == nil || !r.Writable {
		return false
	}
	if r.Dev != nil {
		ok := r.Dev.Write(uint32(phys-r.Start), device.Width(width), value, noisy)
		if ok && m.onStore != nil {
			m.onStore(phys &^ 3)
		}
		return ok
	}
	off := phys - r.Start
	if off+uint64(width) > r.Size {
		return false
	}
	for i := 0; i < width; i++ {
		r.Bytes[off+uint64(i)] = byte(value >> (8 * i))
	}
	idx := off / FrameSize
	if int(idx) < len(r.frames) {
		r.frames[idx].Valid = false
	}
	if m.onStore != nil {
		m.onStore(phys &^ 3)
	}
	return true
}
