/*
 * msim - Configuration-driven machine builder
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

// Package machine registers the configparser keywords ("ram", "rom",
// "uart", "plic", "hart") that turn a config script into a populated
// sim.Sim. The registration closures capture one target *sim.Sim through an
// explicit Build call rather than package init functions. configparser's
// registry is still a single package-global map, so a later Build call
// replaces the keywords registered by an earlier one: one machine is built
// per process.
package machine

import (
	"fmt"
	"os"
	"strconv"

	"github.com/PeterHero/msim/internal/config/configparser"
	"github.com/PeterHero/msim/internal/memory"
	"github.com/PeterHero/msim/internal/plic"
	"github.com/PeterHero/msim/internal/sim"
	"github.com/PeterHero/msim/internal/uart"
)

// MtimeAddr/MtimecmpAddr are the fixed physical addresses every hart's
// memory-mapped timer registers are published at (spec §6).
const (
	MtimeAddr    = 0x0200_0000
	MtimecmpAddr = 0x0200_4000
)

func optValue(opts []configparser.Option, name string) (string, bool) {
	for _, o := range opts {
		if o.Name == name {
			return o.EqualOpt, true
		}
	}
	return "", false
}

// Build registers the config keywords needed to populate m from a script.
// The registrations stay in configparser's package-global registry; Build
// returns nothing and there is no way to undo them.
func Build(m *sim.Sim) {
	configparser.RegisterModel("ram", func(addr uint64, _ string, opts []configparser.Option) error {
		sizeStr, ok := optValue(opts, "size")
		if !ok {
			return fmt.Errorf("ram at %#x: requires size=<bytes>", addr)
		}
		size, err := strconv.ParseUint(sizeStr, 0, 64)
		if err != nil {
			return fmt.Errorf("ram at %#x: invalid size %q: %w", addr, sizeStr, err)
		}
		if size%memory.FrameSize != 0 {
			size = ((size / memory.FrameSize) + 1) * memory.FrameSize
		}
		_, err = m.Mem.AddRAM(addr, size)
		return err
	})

	configparser.RegisterModel("rom", func(addr uint64, _ string, opts []configparser.Option) error {
		path, ok := optValue(opts, "file")
		if !ok {
			return fmt.Errorf("rom at %#x: requires file=<path>", addr)
		}
		image, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		_, err = m.Mem.AddROM(addr, image)
		return err
	})

	configparser.RegisterModel("hart", func(_ uint64, _ string, _ []configparser.Option) error {
		m.AddHart(MtimeAddr, MtimecmpAddr)
		return nil
	})

	configparser.RegisterModel("plic", func(addr uint64, _ string, opts []configparser.Option) error {
		if len(m.Harts) == 0 {
			return fmt.Errorf("plic at %#x: declare at least one hart first", addr)
		}
		meiStr, _ := optValue(opts, "mei")
		mei := uint64(11) // Standard RISC-V MEI cause code.
		if meiStr != "" {
			v, err := strconv.ParseUint(meiStr, 0, 32)
			if err != nil {
				return fmt.Errorf("plic at %#x: invalid mei %q: %w", addr, meiStr, err)
			}
			mei = v
		}
		agg := plic.New(m.Harts[0], uint32(mei))
		if _, err := m.Mem.AddDevice(addr, 0x10, agg); err != nil {
			return err
		}
		m.AddDevice("plic", addr, agg)
		return nil
	})

	configparser.RegisterModel("uart", func(addr uint64, _ string, opts []configparser.Option) error {
		d, ok := m.Device("plic")
		if !ok {
			return fmt.Errorf("uart at %#x: declare plic before uart", addr)
		}
		agg, ok := d.Dev.(*plic.PLIC)
		if !ok {
			return fmt.Errorf("uart at %#x: plic device has the wrong type", addr)
		}
		lineStr, ok := optValue(opts, "irq")
		if !ok {
			return fmt.Errorf("uart at %#x: requires irq=<line>", addr)
		}
		line, err := strconv.ParseUint(lineStr, 0, 32)
		if err != nil {
			return fmt.Errorf("uart at %#x: invalid irq %q: %w", addr, lineStr, err)
		}
		dev := uart.New(os.Stdout, os.Stdin, agg, uint32(line))
		if _, err := m.Mem.AddDevice(addr, 0x8, dev); err != nil {
			return err
		}
		m.AddDevice("uart", addr, dev)
		return nil
	})
}
