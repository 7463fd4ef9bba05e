/*
 * msim - External interrupt aggregator
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

// Package plic is a minimal external-interrupt aggregator: up to 32 device
// lines, each maskable, scanned in fixed priority order for the single
// pending source to report through a claim register — the RV32 analogue of
// the teacher's sys_channel.ChanScan, which scans subchannels in priority
// order for the one pending IRQ to post (spec §4.8's interrupt_up(MEI) is
// the equivalent of the teacher's PostExtIrq).
package plic

import (
	"fmt"

	"github.com/PeterHero/msim/internal/command/command"
	"github.com/PeterHero/msim/internal/device"
)

// Register offsets within the aggregator's MMIO window.
const (
	RegPending  = 0x0 // Read-only: bitmask of lines currently asserted.
	RegEnable   = 0x4 // R/W: bitmask of lines the hart wants to hear about.
	RegClaim    = 0x8 // Read: claim (and latch) the highest-priority enabled pending line; 32 if none.
	RegComplete = 0xc // Write: the line number just serviced, clearing its claim latch.
)

// Sink receives the aggregated external-interrupt line (spec §4.8, MEI).
type Sink interface {
	InterruptUp(no uint32)
	InterruptDown(no uint32)
}

// PLIC aggregates up to 32 level-triggered device lines into one external
// interrupt line toward the hart.
type PLIC struct {
	pending uint32
	enable  uint32
	claimed bool

	sink  Sink
	meiNo uint32
}

// New returns an aggregator that raises meiNo on sink whenever an enabled
// line is pending and not already claimed.
func New(sink Sink, meiNo uint32) *PLIC {
	return &PLIC{sink: sink, meiNo: meiNo}
}

// InterruptUp asserts device line no (0-31). The PLIC itself satisfies the
// same Sink shape its attached devices expect, so a device raising its own
// line and the PLIC raising the aggregated MEI line toward the hart are the
// same call.
func (p *PLIC) InterruptUp(no uint32) {
	if no > 31 {
		return
	}
	p.pending |= 1 << no
	p.refresh()
}

// InterruptDown deasserts device line no, symmetric with InterruptUp.
func (p *PLIC) InterruptDown(no uint32) {
	if no > 31 {
		return
	}
	p.pending &^= 1 << no
	p.refresh()
}

func (p *PLIC) refresh() {
	if p.sink == nil {
		return
	}
	if !p.claimed && p.pending&p.enable != 0 {
		p.sink.InterruptUp(p.meiNo)
	} else {
		p.sink.InterruptDown(p.meiNo)
	}
}

// highest returns the lowest-numbered asserted-and-enabled line, the
// aggregator's fixed priority order, or (32, false) if none is pending.
func (p *PLIC) highest() (uint32, bool) {
	active := p.pending & p.enable
	if active == 0 {
		return 32, false
	}
	for i := uint32(0); i < 32; i++ {
		if active&(1<<i) != 0 {
			return i, true
		}
	}
	return 32, false
}

// Read implements device.Device.
func (p *PLIC) Read(addr uint32, _ device.Width, noisy bool) uint32 {
	switch addr {
	case RegPending:
		return p.pending
	case RegEnable:
		return p.enable
	case RegClaim:
		no, ok := p.highest()
		if noisy && ok {
			p.claimed = true
			p.refresh()
		}
		return no
	default:
		return 0xffffffff
	}
}

// Write implements device.Device.
func (p *PLIC) Write(addr uint32, _ device.Width, value uint32, _ bool) bool {
	switch addr {
	case RegEnable:
		p.enable = value
		p.refresh()
		return true
	case RegComplete:
		p.claimed = false
		p.refresh()
		return true
	default:
		return false
	}
}

// Step4 implements device.Device; the aggregator is purely reactive.
func (p *PLIC) Step4() {}

// Done implements device.Device.
func (p *PLIC) Done() {}

// Options implements command.Device; the aggregator takes no attach
// arguments.
func (p *PLIC) Options(int) []command.Options { return nil }

// Attach is unsupported; the aggregator has no backing file.
func (p *PLIC) Attach([]*command.Option) error {
	return fmt.Errorf("plic: device does not support attach")
}

// Detach is unsupported, symmetric with Attach.
func (p *PLIC) Detach() error {
	return fmt.Errorf("plic: device does not support detach")
}

// Show implements command.Device.
func (p *PLIC) Show() (string, error) {
	no, ok := p.highest()
	claim := "none"
	if ok {
		claim = fmt.Sprintf("%d", no)
	}
	return fmt.Sprintf("plic: pending=%#x enable=%#x claimed=%v highest=%s",
		p.pending, p.enable, p.claimed, claim), nil
}
