/*
 * msim - Command parser
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

// Package parser tokenizes and dispatches operator shell commands against a
// running sim.Sim: step/continue/stop, show, set pc, attach/detach, and
// profile. The core itself exposes none of this (spec.md ties the command
// interpreter to the shell, not the core).
package parser

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode"

	"github.com/PeterHero/msim/internal/command/command"
	"github.com/PeterHero/msim/internal/sim"
)

type cmd struct {
	name     string
	min      int
	process  func(*cmdLine, *sim.Sim) (bool, error)
	complete func(*cmdLine, *sim.Sim) []string
}

type cmdLine struct {
	line string
	pos  int
}

var cmdList = []cmd{
	{name: "attach", min: 2, process: attach, complete: deviceComplete},
	{name: "detach", min: 2, process: detach, complete: deviceComplete},
	{name: "set", min: 3, process: set},
	{name: "quit", min: 4, process: quit},
	{name: "stop", min: 3, process: stop},
	{name: "continue", min: 1, process: cont},
	{name: "step", min: 2, process: step},
	{name: "show", min: 2, process: show, complete: deviceComplete},
	{name: "profile", min: 3, process: profile},
}

// ProcessCommand executes one line of shell input against m. The bool
// result reports whether the shell should exit (the "quit" command).
func ProcessCommand(commandLine string, m *sim.Sim) (bool, error) {
	line := cmdLine{line: commandLine}
	name := line.getWord(false)

	match := matchList(name)
	if len(match) == 0 {
		return false, errors.New("command not found: " + name)
	}
	if len(match) > 1 {
		return false, errors.New("ambiguous command: " + name)
	}
	return match[0].process(&line, m)
}

// CompleteCmd returns tab-completion candidates for a partial command line.
func CompleteCmd(commandLine string, m *sim.Sim) []string {
	line := cmdLine{line: commandLine}
	name := line.getWord(false)

	if !line.isEOL() && line.line[line.pos] == ' ' {
		line.skipSpace()
		match := matchList(name)
		if len(match) != 1 || match[0].complete == nil {
			return nil
		}
		return match[0].complete(&line, m)
	}

	matches := matchList(name)
	out := make([]string, len(matches))
	for i, c := range matches {
		out[i] = c.name
	}
	return out
}

func matchCommand(c cmd, name string) bool {
	if len(name) > len(c.name) {
		return false
	}
	for i := range name {
		if c.name[i] != name[i] {
			return false
		}
	}
	return len(name) >= c.min
}

func matchList(name string) []cmd {
	if name == "" {
		return nil
	}
	var out []cmd
	for _, c := range cmdList {
		if matchCommand(c, name) {
			out = append(out, c)
		}
	}
	return out
}

func (line *cmdLine) skipSpace() {
	for line.pos < len(line.line) && unicode.IsSpace(rune(line.line[line.pos])) {
		line.pos++
	}
}

func (line *cmdLine) isEOL() bool {
	if line.pos >= len(line.line) {
		return true
	}
	return line.line[line.pos] == '#'
}

func (line *cmdLine) getNext() byte {
	line.pos++
	if line.isEOL() {
		return 0
	}
	return line.line[line.pos]
}

func (line *cmdLine) getPeek() byte {
	if line.pos+1 >= len(line.line) {
		return 0
	}
	return line.line[line.pos+1]
}

// getWord reads the next alphabetic token, stopping at '=' only if equal is
// true (used when an option's name is immediately followed by a value).
func (line *cmdLine) getWord(equal bool) string {
	line.skipSpace()
	if line.isEOL() {
		return ""
	}
	start := line.pos
	value := ""
	by := line.line[line.pos]
	for {
		if !unicode.IsLetter(rune(by)) {
			line.pos = start
			return ""
		}
		value += string(by)
		by = line.getNext()
		if line.isEOL() || unicode.IsSpace(rune(by)) {
			break
		}
		if by == '=' {
			if equal {
				break
			}
			line.pos = start
			return ""
		}
	}
	return strings.ToLower(value)
}

// getToken reads the next whitespace-delimited token, letters or digits,
// unlike getWord which only accepts tokens that start with a letter. Used
// where a token may name either a device (alphabetic) or a hart index
// (numeric), e.g. "show 0" vs "show uart".
func (line *cmdLine) getToken() string {
	line.skipSpace()
	start := line.pos
	for !line.isEOL() && !unicode.IsSpace(rune(line.line[line.pos])) {
		line.pos++
	}
	return strings.ToLower(line.line[start:line.pos])
}

// parseQuoteString parses either a bare space-terminated token or a
// "double-quoted string with "" escaping quotes inside it".
func (line *cmdLine) parseQuoteString() (string, bool) {
	inQuote := false
	value := ""
	if line.getPeek() == '"' {
		inQuote = true
		_ = line.getNext()
	}
	for {
		by := line.getNext()
		if by == '"' && inQuote {
			by = line.getNext()
			if by != '"' {
				return value, true
			}
		}
		space := unicode.IsSpace(rune(by))
		if !inQuote && (space || by == 0) {
			return value, true
		}
		value += string(by)
		if line.isEOL() {
			return value, !inQuote
		}
	}
}

// getNumber parses a decimal or 0x-prefixed hex integer token.
func (line *cmdLine) getNumber() (uint64, error) {
	line.skipSpace()
	start := line.pos
	for !line.isEOL() && !unicode.IsSpace(rune(line.line[line.pos])) {
		line.pos++
	}
	tok := line.line[start:line.pos]
	if tok == "" {
		return 0, errors.New("expected a number")
	}
	if strings.HasPrefix(tok, "0x") || strings.HasPrefix(tok, "0X") {
		return strconv.ParseUint(tok[2:], 16, 64)
	}
	return strconv.ParseUint(tok, 10, 64)
}

func (line *cmdLine) getOptions() []*command.Option {
	var opts []*command.Option
	for {
		line.skipSpace()
		if line.isEOL() {
			return opts
		}
		name := line.getWord(true)
		if name == "" {
			return opts
		}
		opt := &command.Option{Name: name}
		if !line.isEOL() && line.line[line.pos] == '=' {
			v, _ := line.parseQuoteString()
			opt.EqualOpt = v
		}
		opts = append(opts, opt)
	}
}

func deviceComplete(line *cmdLine, m *sim.Sim) []string {
	line.skipSpace()
	prefix := line.line[line.pos:]
	var out []string
	for _, d := range m.Devices() {
		if strings.HasPrefix(d.Name, prefix) {
			out = append(out, d.Name+" ")
		}
	}
	return out
}

func asCommandDevice(d sim.Named) (command.Device, error) {
	cd, ok := d.Dev.(command.Device)
	if !ok {
		return nil, fmt.Errorf("device %s does not support shell commands", d.Name)
	}
	return cd, nil
}

func attach(line *cmdLine, m *sim.Sim) (bool, error) {
	slog.Debug("command attach")
	name := line.getToken()
	d, ok := m.Device(name)
	if !ok {
		return false, fmt.Errorf("no such device: %s", name)
	}
	cd, err := asCommandDevice(d)
	if err != nil {
		return false, err
	}
	opts := line.getOptions()
	if len(opts) == 0 {
		return false, errors.New("attach requires at least one option")
	}
	return false, cd.Attach(opts)
}

func detach(line *cmdLine, m *sim.Sim) (bool, error) {
	slog.Debug("command detach")
	name := line.getToken()
	d, ok := m.Device(name)
	if !ok {
		return false, fmt.Errorf("no such device: %s", name)
	}
	cd, err := asCommandDevice(d)
	if err != nil {
		return false, err
	}
	return false, cd.Detach()
}

// set handles "set pc <hart> <value>".
func set(line *cmdLine, m *sim.Sim) (bool, error) {
	slog.Debug("command set")
	what := line.getWord(false)
	if what != "pc" {
		return false, fmt.Errorf("unknown set target: %s", what)
	}
	hartNum, err := line.getNumber()
	if err != nil {
		return false, err
	}
	value, err := line.getNumber()
	if err != nil {
		return false, err
	}
	if int(hartNum) >= len(m.Harts) {
		return false, fmt.Errorf("no such hart: %d", hartNum)
	}
	return false, m.Harts[hartNum].SetPC(uint32(value))
}

func quit(_ *cmdLine, _ *sim.Sim) (bool, error) {
	slog.Debug("command quit")
	return true, nil
}

func stop(_ *cmdLine, m *sim.Sim) (bool, error) {
	slog.Debug("command stop")
	m.Stop()
	return false, nil
}

func cont(_ *cmdLine, m *sim.Sim) (bool, error) {
	slog.Debug("command continue")
	m.Run()
	return false, nil
}

// step handles "step [n]"; n defaults to 1. The machine must not already be
// running (spec §5: a step in flight always runs to completion, and the
// shell drives single steps only while stopped).
func step(line *cmdLine, m *sim.Sim) (bool, error) {
	slog.Debug("command step")
	if m.Running() {
		return false, errors.New("machine is running; stop first")
	}
	n := uint64(1)
	line.skipSpace()
	if !line.isEOL() {
		var err error
		n, err = line.getNumber()
		if err != nil {
			return false, err
		}
	}
	for i := uint64(0); i < n; i++ {
		m.Step()
	}
	return false, nil
}

// show handles "show" (machine summary), "show <hart>" (hart state), and
// "show <device>" (device status via command.Device.Show).
func show(line *cmdLine, m *sim.Sim) (bool, error) {
	slog.Debug("command show")
	line.skipSpace()
	if line.isEOL() {
		fmt.Printf("harts: %d, devices: %d, running: %v\n", len(m.Harts), len(m.Devices()), m.Running())
		return false, nil
	}
	name := line.getToken()
	if hartNum, err := strconv.ParseUint(name, 10, 32); err == nil && int(hartNum) < len(m.Harts) {
		h := m.Harts[hartNum]
		fmt.Printf("hart %d: pc=%#08x priv=%d stdby=%v\n", hartNum, h.PC, h.Priv, h.Stdby)
		return false, nil
	}
	d, ok := m.Device(name)
	if !ok {
		return false, fmt.Errorf("no such hart or device: %s", name)
	}
	cd, err := asCommandDevice(d)
	if err != nil {
		return false, err
	}
	out, err := cd.Show()
	if err != nil {
		return false, err
	}
	fmt.Println(out)
	return false, nil
}
