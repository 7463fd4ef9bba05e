/*
 * msim - Simulator wiring and run loop
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

// Package sim is the outer scheduler binding the physical memory map, the
// decoded-instruction cache, one or more harts, and the attached devices
// into a single runnable machine. It is the RV32IMA analogue of the
// teacher's emu/core run loop: one host thread drives step() across every
// hart in round robin (spec §5 — the core is single-threaded cooperative;
// nothing inside a step may block), with devices ticked every 4 steps.
package sim

import (
	"log/slog"
	"sync"
	"time"

	"github.com/PeterHero/msim/internal/cpu"
	"github.com/PeterHero/msim/internal/device"
	"github.com/PeterHero/msim/internal/dic"
	"github.com/PeterHero/msim/internal/event"
	"github.com/PeterHero/msim/internal/memory"
)

// Sim is one machine: a shared physical memory map and decoded-instruction
// cache, a set of harts stepped round robin, and the devices attached to
// the memory map.
type Sim struct {
	Mem       *memory.Map
	Dic       *dic.Cache
	Harts     []*cpu.CPU
	Scheduler *event.Scheduler

	devices []device.Device
	named   []Named

	mu      sync.Mutex
	running bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// New builds an empty machine over mem, decoding fetched words with
// cpu.DecodeWord. Callers add harts with AddHart and devices with
// AddDevice before calling Run/Step.
func New(mem *memory.Map) *Sim {
	s := &Sim{
		Mem:       mem,
		Dic:       dic.New(mem, cpu.DecodeWord),
		Scheduler: event.NewScheduler(),
		done:      make(chan struct{}),
	}
	mem.SetStoreHook(s.onStore)
	return s
}

// onStore fans every memory write out to each hart's LR/SC probe (spec
// §4.7); any hart holding a reservation on the written word loses it,
// regardless of which hart performed the store.
func (s *Sim) onStore(phys uint64) {
	for _, h := range s.Harts {
		h.ScAccess(phys)
	}
}

// AddHart constructs and registers a new hart sharing this machine's memory
// map and decoded-instruction cache.
func (s *Sim) AddHart(mtimeAddr, mtimecmpAddr uint64) *cpu.CPU {
	h := cpu.New(uint32(len(s.Harts)), s.Mem, s.Dic, mtimeAddr, mtimecmpAddr)
	s.Harts = append(s.Harts, h)
	return h
}

// Named is one device registered under a shell-visible name, for the
// attach/detach/show commands (SPEC_FULL.md's device registry supplement).
type Named struct {
	Name string
	Addr uint64
	Dev  device.Device
}

// step4Interval is the tick period named by spec §6: step4(dev) fires every
// 4 ticks.
const step4Interval = 4

// AddDevice registers dev for Step4 ticking under name, addressed at addr
// for the shell's "show"/"attach"/"detach" commands, and arms a self-
// rearming scheduler timer that calls dev.Step4() every step4Interval
// ticks. Devices that also need memory visibility should additionally be
// installed into Mem separately; this registry only drives the periodic
// tick and shell lookup.
func (s *Sim) AddDevice(name string, addr uint64, dev device.Device) {
	s.devices = append(s.devices, dev)
	s.named = append(s.named, Named{Name: name, Addr: addr, Dev: dev})

	var tick event.Callback
	tick = func(_ int) {
		dev.Step4()
		s.Scheduler.Add(dev, tick, step4Interval, 0)
	}
	s.Scheduler.Add(dev, tick, step4Interval, 0)
}

// Devices returns every registered device, in registration order.
func (s *Sim) Devices() []Named {
	return s.named
}

// Device looks up a registered device by name.
func (s *Sim) Device(name string) (Named, bool) {
	for _, n := range s.named {
		if n.Name == name {
			return n, true
		}
	}
	return Named{}, false
}

// Step runs exactly one step on every hart, in hart-index order, then
// advances the scheduler by one tick (spec §5's round robin). The scheduler
// is what actually invokes each device's Step4 every step4Interval ticks
// (see AddDevice); Step itself carries no device-specific logic.
func (s *Sim) Step() {
	for _, h := range s.Harts {
		h.Step()
	}
	s.Scheduler.Advance(1)
}

// Run drives Step in a loop on a background goroutine until Stop is called.
// Unlike the teacher's packet-driven core, control is a plain method call:
// this simulator has no multi-process telnet frontend to arbitrate with.
func (s *Sim) Run() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-done:
				return
			default:
				s.Step()
			}
		}
	}()
}

// Stop halts a running Run goroutine and waits (with a timeout) for it to
// exit, matching the teacher's core.Stop.
func (s *Sim) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.done)
	s.mu.Unlock()

	waited := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(time.Second):
		slog.Default().Warn("sim: timed out waiting for run loop to stop")
	}
}

// Running reports whether Run's goroutine is currently executing.
func (s *Sim) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Done tears every hart and device down, in the teacher's Shutdown idiom,
// then clears the shared decoded-instruction cache (spec §9's "cleared when
// any hart is done" contract, applied here at whole-machine teardown since
// the cache is shared across every hart of one Sim).
func (s *Sim) Done() {
	s.Stop()
	for _, h := range s.Harts {
		h.Done()
	}
	for _, d := range s.devices {
		d.Done()
	}
	s.Dic.ClearAll()
}
