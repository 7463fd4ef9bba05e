/*
 * msim - Memory-mapped device interface
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

// Package device defines the uniform interface memory-mapped peripherals
// implement, and that the physical memory map dispatches to.
package device

// Width is the access width of a device read or write, in bytes.
type Width int

const (
	Width8  Width = 1
	Width16 Width = 2
	Width32 Width = 4
)

// Device is a memory-mapped peripheral: printer, disk, terminal, interrupt
// controller. The physical memory map calls into it synchronously; a Device
// must never block.
type Device interface {
	// Read returns the value at addr, width bytes wide. noisy=false
	// suppresses any side effect the read would otherwise have (used during
	// page-table walks and debugger dumps).
	Read(addr uint32, width Width, noisy bool) uint32

	// Write stores value at addr, width bytes wide. Returns false if the
	// device rejects the write.
	Write(addr uint32, width Width, value uint32, noisy bool) bool

	// Step4 is invoked every 4 simulated ticks by the scheduler.
	Step4()

	// Done shuts the device down, closing any open files or connections.
	Done()
}

// InterruptSink receives level-triggered external interrupt requests raised
// by a device, typically a PLIC-style aggregator.
type InterruptSink interface {
	InterruptUp(no uint32)
	InterruptDown(no uint32)
}
