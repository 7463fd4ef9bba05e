/*
 * msim - Byte-stream console UART
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

// Package uart is a minimal byte-stream console device: the guest's analogue
// of the teacher's model1052 inquiry console, stripped of EBCDIC translation
// and the channel protocol since this core talks to devices over plain
// memory-mapped registers rather than a channel subsystem. It exists to
// exercise the device.Device interface and InterruptUp/Down end to end, not
// to be a faithful 16550.
package uart

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/PeterHero/msim/internal/command/command"
	"github.com/PeterHero/msim/internal/device"
)

var errNoFile = errors.New("uart: attach requires file=<path>")

// Register offsets within the UART's 8-byte window.
const (
	RegData   = 0 // Read: pop one buffered input byte (0 if empty). Write: emit one byte.
	RegStatus = 4 // Read-only: bit0 RX-data-ready, bit1 TX-always-ready.
)

const (
	statusRxReady = 1 << 0
	statusTxReady = 1 << 1
)

// Sink is notified when the UART's receive FIFO becomes non-empty, so the
// owning simulator can raise an external interrupt line (spec §4.8).
type Sink interface {
	InterruptUp(no uint32)
	InterruptDown(no uint32)
}

// UART is a one-byte-at-a-time console device: an output writer and a
// buffered input queue fed from an input reader on a background goroutine,
// matching the teacher's pattern of receiving terminal input asynchronously
// (model1052tel.ReceiveChar) and draining it synchronously from CPU context.
type UART struct {
	out io.Writer

	mu      sync.Mutex
	rx      []byte
	sink    Sink
	irqNo   uint32
	inFile  *os.File // Non-nil iff input was attached to a file by the shell.
	inName  string
	pumpGen int // Bumped on Detach so a stale pump goroutine stops feeding rx.
}

// New returns a UART that writes guest output to out and, if in is
// non-nil, reads console input from in on a background goroutine.
func New(out io.Writer, in io.Reader, sink Sink, irqNo uint32) *UART {
	u := &UART{out: out, sink: sink, irqNo: irqNo}
	if in != nil {
		go u.pump(in, u.pumpGen)
	}
	return u
}

func (u *UART) pump(in io.Reader, gen int) {
	r := bufio.NewReader(in)
	for {
		b, err := r.ReadByte()
		if err != nil {
			return
		}
		u.mu.Lock()
		if gen != u.pumpGen {
			u.mu.Unlock()
			return
		}
		wasEmpty := len(u.rx) == 0
		u.rx = append(u.rx, b)
		u.mu.Unlock()
		if wasEmpty && u.sink != nil {
			u.sink.InterruptUp(u.irqNo)
		}
	}
}

// Options implements command.Device.
func (u *UART) Options(kind int) []command.Options {
	if kind != command.ValidAttach {
		return nil
	}
	return []command.Options{{Name: "file", OptionType: command.OptionFile, OptionValid: command.ValidAttach}}
}

// Attach redirects console input from the named file, replacing whatever
// input source (if any) was previously feeding the receive FIFO.
func (u *UART) Attach(options []*command.Option) error {
	var path string
	for _, opt := range options {
		if opt.Name == "file" {
			path = opt.EqualOpt
		}
	}
	if path == "" {
		return errNoFile
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}

	u.mu.Lock()
	u.pumpGen++
	gen := u.pumpGen
	old := u.inFile
	u.inFile = f
	u.inName = path
	u.mu.Unlock()

	if old != nil {
		old.Close()
	}
	go u.pump(f, gen)
	return nil
}

// Detach stops feeding console input from whatever file was attached.
func (u *UART) Detach() error {
	u.mu.Lock()
	u.pumpGen++
	old := u.inFile
	u.inFile = nil
	u.inName = ""
	u.mu.Unlock()
	if old != nil {
		return old.Close()
	}
	return nil
}

// Show implements command.Device.
func (u *UART) Show() (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.inFile == nil {
		return "uart: input console, no file attached", nil
	}
	return "uart: input attached to " + u.inName, nil
}

// Read implements device.Device.
func (u *UART) Read(addr uint32, _ device.Width, noisy bool) uint32 {
	switch addr {
	case RegData:
		u.mu.Lock()
		defer u.mu.Unlock()
		if len(u.rx) == 0 {
			return 0
		}
		b := u.rx[0]
		if noisy {
			u.rx = u.rx[1:]
			if len(u.rx) == 0 && u.sink != nil {
				u.sink.InterruptDown(u.irqNo)
			}
		}
		return uint32(b)
	case RegStatus:
		u.mu.Lock()
		defer u.mu.Unlock()
		status := uint32(statusTxReady)
		if len(u.rx) > 0 {
			status |= statusRxReady
		}
		return status
	default:
		return 0xffffffff
	}
}

// Write implements device.Device.
func (u *UART) Write(addr uint32, _ device.Width, value uint32, _ bool) bool {
	switch addr {
	case RegData:
		if u.out != nil {
			if _, err := u.out.Write([]byte{byte(value)}); err != nil {
				slog.Default().Warn("uart: write failed", "error", err)
				return false
			}
		}
		return true
	case RegStatus:
		return false // Read-only.
	default:
		return false
	}
}

// Step4 implements device.Device. Input arrival is interrupt-driven via the
// background pump goroutine, so there is nothing to do on a tick.
func (u *UART) Step4() {}

// Done implements device.Device: it detaches and closes any attached input
// file. The stdin pump goroutine has no handle to close; it exits on its
// next read error or its next byte after a generation bump.
func (u *UART) Done() {
	_ = u.Detach()
}
