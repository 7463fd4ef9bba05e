/*
 * msim - Command interface
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

// Package command declares the shell-facing surface a memory-mapped device
// may optionally implement, beyond the core's device.Device interface, so
// the operator shell can attach/detach backing files and print device
// status without the core depending on the shell at all.
package command

// Option is one parsed `name[=value]` argument to an attach/show command.
type Option struct {
	Name     string
	EqualOpt string
	Value    int
}

// Option argument kinds.
const (
	OptionSwitch = 1 + iota
	OptionFile
	OptionNumber
)

// Command kinds an Options entry may be valid for.
const (
	ValidAttach = 1 << iota
	ValidShow
)

// Options describes one argument a device accepts for a given command kind.
type Options struct {
	Name        string
	OptionType  int
	OptionValid int
}

// Device is implemented by peripherals that want shell-level attach/detach/
// show support. Devices that don't need it (most memory/ROM regions) simply
// don't implement it; the parser falls back to a generic region dump.
type Device interface {
	Options(kind int) []Options
	Attach(options []*Option) error
	Detach() error
	Show() (string, error)
}
