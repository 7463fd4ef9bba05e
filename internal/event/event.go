/*
 * msim - Event scheduler
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

// Package event is a delta-queue timer scheduler: callbacks are installed
// with a relative tick count and fire as the scheduler is advanced one
// tick at a time by the step loop. Unlike the teacher's package-level
// scheduler, a Scheduler here is an explicit value owned by one simulator
// instance, so multiple cores (or tests) never share timer state.
package event

// Callback receives the iarg the event was registered with.
type Callback func(iarg int)

type timer struct {
	ticks int // Ticks remaining relative to the previous entry in the list.
	cb    Callback
	iarg  int
	tag   any // Identifies the timer for Cancel; typically the owning device.
	prev  *timer
	next  *timer
}

// Scheduler is an ordered list of pending timers, kept in fire-order with
// each entry's ticks field relative to the one before it (so advancing
// time is a single decrement of the head, not a walk of the whole list).
type Scheduler struct {
	head *timer
	tail *timer
}

// NewScheduler returns an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Add installs cb to fire after the given number of ticks, tagged with tag
// so a later Cancel(tag, iarg) can remove it before it fires. ticks <= 0
// runs cb immediately instead of queuing it.
func (s *Scheduler) Add(tag any, cb Callback, ticks int, iarg int) {
	if ticks <= 0 {
		cb(iarg)
		return
	}

	t := &timer{ticks: ticks, cb: cb, iarg: iarg, tag: tag}

	cur := s.head
	if cur == nil {
		s.head = t
		s.tail = t
		return
	}
	for cur != nil {
		if t.ticks <= cur.ticks {
			cur.ticks -= t.ticks
			t.prev = cur.prev
			t.next = cur
			cur.prev = t
			if t.prev != nil {
				t.prev.next = t
			} else {
				s.head = t
			}
			return
		}
		t.ticks -= cur.ticks
		cur = cur.next
	}
	t.prev = s.tail
	s.tail.next = t
	s.tail = t
}

// Cancel removes the first queued timer matching tag and iarg, if any.
func (s *Scheduler) Cancel(tag any, iarg int) {
	for cur := s.head; cur != nil; cur = cur.next {
		if cur.tag != tag || cur.iarg != iarg {
			continue
		}
		if cur.next != nil {
			cur.next.ticks += cur.ticks
			cur.next.prev = cur.prev
		} else {
			s.tail = cur.prev
		}
		if cur.prev != nil {
			cur.prev.next = cur.next
		} else {
			s.head = cur.next
		}
		return
	}
}

// Advance moves time forward by n ticks, firing every timer whose relative
// deadline has elapsed.
func (s *Scheduler) Advance(n int) {
	if s.head == nil {
		return
	}
	s.head.ticks -= n
	for s.head != nil && s.head.ticks <= 0 {
		fired := s.head
		s.head = fired.next
		if s.head != nil {
			s.head.prev = nil
			s.head.ticks += fired.ticks // Carry any overshoot of n.
		} else {
			s.tail = nil
		}
		fired.cb(fired.iarg)
	}
}
