/*
 * msim - External interrupt aggregator test set
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

package plic

import (
	"testing"

	"github.com/PeterHero/msim/internal/device"
)

type fakeSink struct {
	up   []uint32
	down []uint32
}

func (f *fakeSink) InterruptUp(no uint32)   { f.up = append(f.up, no) }
func (f *fakeSink) InterruptDown(no uint32) { f.down = append(f.down, no) }

func TestPendingEnabledRaisesMEI(t *testing.T) {
	sink := &fakeSink{}
	p := New(sink, 11)

	p.InterruptUp(3)
	if len(sink.up) != 0 {
		t.Errorf("line raised but not enabled should not raise MEI, got %v", sink.up)
	}

	p.Write(RegEnable, device.Width32, 1<<3, true)
	if len(sink.up) != 1 || sink.up[0] != 11 {
		t.Errorf("enabling a pending line should raise MEI 11, got %v", sink.up)
	}
}

func TestClaimLatchesAndBlocksReraise(t *testing.T) {
	sink := &fakeSink{}
	p := New(sink, 11)
	p.InterruptUp(5)
	p.Write(RegEnable, device.Width32, 1<<5, true)

	no := p.Read(RegClaim, device.Width32, true)
	if no != 5 {
		t.Errorf("claim should return line 5, got %d", no)
	}
	if len(sink.down) == 0 {
		t.Errorf("claiming the only pending line should drop MEI")
	}

	downBefore := len(sink.down)
	p.InterruptUp(5)
	if len(sink.down) != downBefore+1 {
		t.Errorf("MEI should stay down while line 5 is claimed")
	}
}

func TestCompleteClearsLatch(t *testing.T) {
	sink := &fakeSink{}
	p := New(sink, 11)
	p.InterruptUp(5)
	p.Write(RegEnable, device.Width32, 1<<5, true)
	p.Read(RegClaim, device.Width32, true)

	p.Write(RegComplete, device.Width32, 5, true)
	if len(sink.up) == 0 || sink.up[len(sink.up)-1] != 11 {
		t.Errorf("completing claim with line still pending should re-raise MEI")
	}
}

func TestPriorityOrderIsLowestNumberFirst(t *testing.T) {
	sink := &fakeSink{}
	p := New(sink, 11)
	p.InterruptUp(7)
	p.InterruptUp(2)
	p.Write(RegEnable, device.Width32, (1<<7)|(1<<2), true)

	no := p.Read(RegClaim, device.Width32, true)
	if no != 2 {
		t.Errorf("claim should prefer lowest numbered pending line, got %d", no)
	}
}

func TestClaimNoiselessDoesNotLatch(t *testing.T) {
	sink := &fakeSink{}
	p := New(sink, 11)
	p.InterruptUp(4)
	p.Write(RegEnable, device.Width32, 1<<4, true)

	before := len(sink.down)
	p.Read(RegClaim, device.Width32, false)
	if p.claimed {
		t.Errorf("a noisy=false claim read must not latch")
	}
	if len(sink.down) != before {
		t.Errorf("noiseless claim read should not change interrupt state")
	}
}

func TestNoLineOutOfRangeIgnored(t *testing.T) {
	sink := &fakeSink{}
	p := New(sink, 11)
	p.InterruptUp(32)
	p.InterruptUp(99)
	if p.pending != 0 {
		t.Errorf("out of range lines must be ignored, pending=%#x", p.pending)
	}
}

func TestShowReportsState(t *testing.T) {
	p := New(&fakeSink{}, 11)
	p.InterruptUp(1)
	p.Write(RegEnable, device.Width32, 1<<1, true)
	s, err := p.Show()
	if err != nil {
		t.Fatalf("Show returned error: %v", err)
	}
	if s == "" {
		t.Errorf("Show returned empty string")
	}
}

func TestAttachDetachUnsupported(t *testing.T) {
	p := New(&fakeSink{}, 11)
	if err := p.Attach(nil); err == nil {
		t.Errorf("Attach should be unsupported")
	}
	if err := p.Detach(); err == nil {
		t.Errorf("Detach should be unsupported")
	}
}
