/*
 * msim - Event scheduler test cases
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

package event

import "testing"

type probe struct {
	iarg int
	at   int
}

func (p *probe) callback(iarg int) {
	p.iarg = iarg
	p.at = tick
}

// tick stands in for the step loop's global cycle counter.
var tick int

func TestSingleEventFiresAtDeadline(t *testing.T) {
	tick = 0
	s := NewScheduler()
	var a probe
	s.Add("a", a.callback, 10, 1)
	for i := 0; i < 20; i++ {
		tick++
		s.Advance(1)
	}
	if a.at != 10 {
		t.Errorf("event fired at %d, want 10", a.at)
	}
	if a.iarg != 1 {
		t.Errorf("iarg = %d, want 1", a.iarg)
	}
}

func TestTwoEventsDistinctDeadlines(t *testing.T) {
	tick = 0
	s := NewScheduler()
	var a, b probe
	s.Add("a", a.callback, 10, 1)
	s.Add("b", b.callback, 5, 2)
	for i := 0; i < 20; i++ {
		tick++
		s.Advance(1)
	}
	if a.at != 10 || a.iarg != 1 {
		t.Errorf("a fired at %d/%d, want 10/1", a.at, a.iarg)
	}
	if b.at != 5 || b.iarg != 2 {
		t.Errorf("b fired at %d/%d, want 5/2", b.at, b.iarg)
	}
}

func TestSameDeadlineBothFire(t *testing.T) {
	tick = 0
	s := NewScheduler()
	var a, b probe
	s.Add("a", a.callback, 10, 1)
	s.Add("b", b.callback, 10, 2)
	for i := 0; i < 20; i++ {
		tick++
		s.Advance(1)
	}
	if a.at != 10 || b.at != 10 {
		t.Errorf("a/b fired at %d/%d, want 10/10", a.at, b.at)
	}
}

func TestEventAddedFromWithinCallback(t *testing.T) {
	tick = 0
	s := NewScheduler()
	var a, c probe
	c2 := func(iarg int) {
		c.iarg = iarg
		c.at = tick
		s.Add("a", a.callback, iarg, iarg)
	}
	s.Add("c", c2, 10, 2)
	for i := 0; i < 30; i++ {
		tick++
		s.Advance(1)
	}
	if c.at != 10 || c.iarg != 2 {
		t.Errorf("c fired at %d/%d, want 10/2", c.at, c.iarg)
	}
	if a.at != 12 || a.iarg != 2 {
		t.Errorf("a fired at %d/%d, want 12/2 (10 + 2 more ticks)", a.at, a.iarg)
	}
}

func TestCancelRemovesPendingEvent(t *testing.T) {
	tick = 0
	s := NewScheduler()
	var a, b probe
	s.Add("a", a.callback, 10, 5)
	s.Add("b", b.callback, 20, 2)
	for i := 0; i < 30; i++ {
		tick++
		s.Advance(1)
		if a.iarg == 5 {
			s.Cancel("b", 2)
		}
	}
	if a.at != 10 || a.iarg != 5 {
		t.Errorf("a fired at %d/%d, want 10/5", a.at, a.iarg)
	}
	if b.at != 0 || b.iarg != 0 {
		t.Errorf("b fired at %d/%d, want 0/0 (cancelled before it fired)", b.at, b.iarg)
	}
}

func TestCancelMiddleOfThree(t *testing.T) {
	tick = 0
	s := NewScheduler()
	var a, b, d probe
	s.Add("a", a.callback, 10, 5)
	s.Add("b", b.callback, 20, 2)
	s.Add("d", d.callback, 30, 3)
	for i := 0; i < 30; i++ {
		tick++
		s.Advance(1)
		if a.iarg == 5 {
			s.Cancel("b", 2)
		}
	}
	if b.at != 0 || b.iarg != 0 {
		t.Errorf("b fired at %d/%d, want 0/0", b.at, b.iarg)
	}
	if d.at != 30 || d.iarg != 3 {
		t.Errorf("d fired at %d/%d, want 30/3 (unaffected by b's cancellation)", d.at, d.iarg)
	}
}

func TestZeroTicksFiresImmediately(t *testing.T) {
	s := NewScheduler()
	var a probe
	tick = 7
	s.Add("a", a.callback, 0, 5)
	if a.at != 7 || a.iarg != 5 {
		t.Errorf("zero-tick event did not fire synchronously: at=%d iarg=%d", a.at, a.iarg)
	}
}
