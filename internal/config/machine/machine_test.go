/*
 * msim - Configuration-driven machine builder test set
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

package machine

import (
	"os"
	"testing"

	"github.com/PeterHero/msim/internal/config/configparser"
	"github.com/PeterHero/msim/internal/memory"
	"github.com/PeterHero/msim/internal/plic"
	"github.com/PeterHero/msim/internal/sim"
	"github.com/PeterHero/msim/internal/uart"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	tmp, err := os.CreateTemp("", "msim-machine-*.cfg")
	if err != nil {
		t.Fatalf("create temp config: %v", err)
	}
	if _, err := tmp.WriteString(body); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	tmp.Close()
	t.Cleanup(func() { os.Remove(tmp.Name()) })
	return tmp.Name()
}

func TestBuildRAMAndHart(t *testing.T) {
	m := sim.New(memory.NewMap())
	Build(m)

	path := writeConfig(t, "ram 0 size=4096\nhart 0\n")
	if err := configparser.LoadConfigFile(path); err != nil {
		t.Fatalf("LoadConfigFile failed: %v", err)
	}

	if len(m.Harts) != 1 {
		t.Fatalf("expected 1 hart, got %d", len(m.Harts))
	}
	if ok := m.Mem.Write32(0, 0x12345678, true); !ok {
		t.Errorf("RAM region at 0 should accept writes")
	}
	if v := m.Mem.Read32(0, true); v != 0x12345678 {
		t.Errorf("RAM readback = %#x, want 0x12345678", v)
	}
}

func TestBuildRAMRoundsSizeUpToFrame(t *testing.T) {
	m := sim.New(memory.NewMap())
	Build(m)

	path := writeConfig(t, "ram 0 size=100\n")
	if err := configparser.LoadConfigFile(path); err != nil {
		t.Fatalf("LoadConfigFile failed: %v", err)
	}
	if ok := m.Mem.Write32(memory.FrameSize-4, 1, true); !ok {
		t.Errorf("rounded-up RAM region should cover the full frame")
	}
}

func TestBuildRAMMissingSize(t *testing.T) {
	m := sim.New(memory.NewMap())
	Build(m)

	path := writeConfig(t, "ram 0\n")
	if err := configparser.LoadConfigFile(path); err == nil {
		t.Errorf("ram with no size option should fail")
	}
}

func TestBuildROM(t *testing.T) {
	m := sim.New(memory.NewMap())
	Build(m)

	image, err := os.CreateTemp("", "msim-rom-*.bin")
	if err != nil {
		t.Fatalf("create temp rom image: %v", err)
	}
	defer os.Remove(image.Name())
	if _, err := image.Write([]byte{0xde, 0xad, 0xbe, 0xef}); err != nil {
		t.Fatalf("write rom image: %v", err)
	}
	image.Close()

	path := writeConfig(t, "rom 0x10000 file=\""+image.Name()+"\"\n")
	if err := configparser.LoadConfigFile(path); err != nil {
		t.Fatalf("LoadConfigFile failed: %v", err)
	}
	if v := m.Mem.Read32(0x10000, true); v != 0xefbeadde {
		t.Errorf("ROM readback = %#x, want 0xefbeadde", v)
	}
	if ok := m.Mem.Write32(0x10000, 0, true); ok {
		t.Errorf("ROM region should reject writes")
	}
}

func TestBuildPLICRequiresHart(t *testing.T) {
	m := sim.New(memory.NewMap())
	Build(m)

	path := writeConfig(t, "plic 0xc000000\n")
	if err := configparser.LoadConfigFile(path); err == nil {
		t.Errorf("plic with no hart declared should fail")
	}
}

func TestBuildPLICAndUART(t *testing.T) {
	m := sim.New(memory.NewMap())
	Build(m)

	path := writeConfig(t, "hart 0\nplic 0xc000000\nuart 0x10000000 irq=1\n")
	if err := configparser.LoadConfigFile(path); err != nil {
		t.Fatalf("LoadConfigFile failed: %v", err)
	}

	plicDev, ok := m.Device("plic")
	if !ok {
		t.Fatalf("plic not registered in the device registry")
	}
	if _, ok := plicDev.Dev.(*plic.PLIC); !ok {
		t.Errorf("registered plic has the wrong type: %T", plicDev.Dev)
	}

	uartDev, ok := m.Device("uart")
	if !ok {
		t.Fatalf("uart not registered in the device registry")
	}
	if _, ok := uartDev.Dev.(*uart.UART); !ok {
		t.Errorf("registered uart has the wrong type: %T", uartDev.Dev)
	}
}

func TestBuildUARTRequiresPLICFirst(t *testing.T) {
	m := sim.New(memory.NewMap())
	Build(m)

	path := writeConfig(t, "hart 0\nuart 0x10000000 irq=1\n")
	if err := configparser.LoadConfigFile(path); err == nil {
		t.Errorf("uart declared before plic should fail")
	}
}

func TestBuildUARTRequiresIRQ(t *testing.T) {
	m := sim.New(memory.NewMap())
	Build(m)

	path := writeConfig(t, "hart 0\nplic 0xc000000\nuart 0x10000000\n")
	if err := configparser.LoadConfigFile(path); err == nil {
		t.Errorf("uart with no irq option should fail")
	}
}
