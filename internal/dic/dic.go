/*
 * msim - Decoded-instruction cache
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

// Package dic is the decoded-instruction cache: it maps a frame-aligned
// physical address to a pre-decoded array of instructions, amortizing
// decode cost across repeated fetches of the same page. It is a single
// structure shared by every hart in the simulator (spec §9), and its only
// synchronization token is the owning frame's Valid bit (spec §5).
package dic

import (
	"github.com/PeterHero/msim/internal/memory"
)

const slotsPerFrame = memory.FrameSize / 4

// Slot is one decoded instruction: a tagged opcode plus its pre-extracted
// operand fields. The concrete Decoded type lives in package cpu; dic only
// needs to move it around, so it is carried as an opaque interface{}
// populated by the Decoder callback.
type Slot = any

// Decoder decodes the 32-bit word at a physical address into a Slot.
type Decoder func(phys uint64, word uint32) Slot

type entry struct {
	frameAddr uint64
	frame     *memory.Frame
	decoded   [slotsPerFrame]Slot
}

// Cache is the decoded-instruction cache. It is safe to use only under the
// single-thread-per-step invariant described in spec §5.
type Cache struct {
	mem     *memory.Map
	decode  Decoder
	entries []*entry
}

// New returns an empty cache bound to mem, decoding words with decode.
func New(mem *memory.Map, decode Decoder) *Cache {
	return &Cache{mem: mem, decode: decode}
}

func alignDown(phys uint64) uint64 {
	return phys &^ (memory.FrameSize - 1)
}

// Fetch returns the decoded slot for the instruction at phys, rebuilding
// the owning frame's entry if it is missing or stale (spec §4.2).
func (c *Cache) Fetch(phys uint64) Slot {
	frameAddr := alignDown(phys)
	idx := int(phys-frameAddr) / 4

	for _, e := range c.entries {
		if e.frameAddr == frameAddr {
			if e.frame != nil && !e.frame.Valid {
				c.decodeFrame(e)
			}
			return e.decoded[idx]
		}
	}

	frame := c.mem.FindFrame(frameAddr)
	if frame == nil {
		// Non-RAM: bypass the cache entirely with a one-shot decode.
		word := c.mem.Read32(phys, true)
		return c.decode(phys, word)
	}

	e := &entry{frameAddr: frameAddr, frame: frame}
	c.entries = append(c.entries, e)
	c.decodeFrame(e)
	return e.decoded[idx]
}

func (c *Cache) decodeFrame(e *entry) {
	for i := 0; i < slotsPerFrame; i++ {
		phys := e.frameAddr + uint64(i*4)
		word := c.mem.Read32(phys, false)
		e.decoded[i] = c.decode(phys, word)
	}
	if e.frame != nil {
		e.frame.Valid = true
	}
}

// ClearAll discards every cached entry. Called when any hart is destroyed
// (spec §4.2); the present design shares one cache across all harts.
func (c *Cache) ClearAll() {
	c.entries = nil
}
