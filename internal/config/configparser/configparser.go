/*
 * msim - Configuration file parser
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

// Package configparser reads the text script the shell loads at startup to
// build a machine: which memory regions and devices exist, and at which
// physical addresses. The core itself never reads a config file (spec.md
// ties the grammar to the shell, not the core); this package is that shell
// collaborator.
package configparser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"
)

// NoAddr marks an option with no associated physical address.
const NoAddr uint64 = ^uint64(0)

// Option is one comma-joined `name[=value[,value...]]` token on a config
// line.
type Option struct {
	Name     string
	EqualOpt string
	Value    []*string
}

type modelName struct {
	model string
}

// FirstOption is the token immediately following the model/keyword name:
// either a physical address (hex or decimal, optionally K/M-suffixed) or a
// bare string.
type FirstOption struct {
	addr   uint64
	isAddr bool
	value  string
}

type optionLine struct {
	line string
	pos  int
}

/* Configuration file format:
 *
 * '#' indicates comment, rest of line is ignored.
 * <line> := <model> <whitespace> <address> <whitespace> <options> |
 *            <keyword> <whitespace> <value> *(<commaopt>)
 * <address> ::= <number> | ['0x']<hexnumber> | <number><K|M>
 *              (an all-digit token is read as decimal)
 * <options> ::= *(<option> *(<whitespace>))
 * <option> ::= <opt> *(',' *(<whitespace>) <string>)
 * <opt> := <string> ['=' <quoteopt>]
 * <quoteopt> ::= <string> | '"' *(<letter> | <whitespace>) '"'
 */

// Model type, registered via RegisterModel/RegisterOption/RegisterSwitch.
const (
	TypeModel   = 1 + iota // Device/region: requires a physical address.
	TypeOption              // Single value keyword, e.g. "log trace".
	TypeOptions             // Keyword taking a comma-separated option list.
	TypeSwitch              // Bare flag keyword, no value.
)

type modelDef struct {
	create func(uint64, string, []Option) error
	ty     int
}

var models = map[string]modelDef{}

var lineNumber int

func getModel(mod string) int {
	model, ok := models[mod]
	if !ok {
		return 0
	}
	return model.ty
}

// RegisterModel registers a memory-mapped component keyword (e.g. "ram",
// "uart", "plic") that always takes a physical address as its first token.
// Called by machine.Build for each component keyword it supports.
func RegisterModel(mod string, fn func(addr uint64, value string, opts []Option) error) {
	mod = strings.ToUpper(mod)
	model := modelDef{create: fn, ty: TypeModel}
	models[mod] = model
}

// RegisterSwitch registers a bare-flag keyword, e.g. "trace".
func RegisterSwitch(mod string, fn func(addr uint64, value string, opts []Option) error) {
	mod = strings.ToUpper(mod)
	model := modelDef{create: fn, ty: TypeSwitch}
	models[mod] = model
}

// RegisterOption registers a single-value keyword, e.g. "log logfile.txt".
func RegisterOption(mod string, fn func(addr uint64, value string, opts []Option) error) {
	mod = strings.ToUpper(mod)
	model := modelDef{create: fn, ty: TypeOption}
	models[mod] = model
}

// RegisterOptions registers a keyword taking a value plus a comma-separated
// option list, e.g. "uart 10000000 irq=1".
func RegisterOptions(mod string, fn func(addr uint64, value string, opts []Option) error) {
	mod = strings.ToUpper(mod)
	model := modelDef{create: fn, ty: TypeOptions}
	models[mod] = model
}

func createModel(mod string, first *FirstOption, options []Option) error {
	mod = strings.ToUpper(mod)
	model, ok := models[mod]
	if !ok {
		return errors.New("unknown keyword: " + mod)
	}
	if model.ty != TypeModel {
		return errors.New("not an addressed keyword: " + mod)
	}
	return model.create(first.addr, "", options)
}

func createOption(mod string, first *FirstOption) error {
	mod = strings.ToUpper(mod)
	model, ok := models[mod]
	if !ok {
		return errors.New("unknown keyword: " + mod)
	}
	if model.ty != TypeOption {
		return errors.New("not a value keyword: " + mod)
	}
	return model.create(NoAddr, first.value, nil)
}

func createOptions(mod string, first *FirstOption, options []Option) error {
	mod = strings.ToUpper(mod)
	model, ok := models[mod]
	if !ok {
		return errors.New("unknown keyword: " + mod)
	}
	if model.ty != TypeOptions {
		return errors.New("not an options keyword: " + mod)
	}
	addr := NoAddr
	if first.isAddr {
		addr = first.addr
	}
	return model.create(addr, first.value, options)
}

func createSwitch(mod string) error {
	mod = strings.ToUpper(mod)
	model, ok := models[mod]
	if !ok {
		return errors.New("unknown switch: " + mod)
	}
	if model.ty != TypeSwitch {
		return errors.New("not a switch keyword: " + mod)
	}
	return model.create(NoAddr, "", nil)
}

// LoadConfigFile reads and applies every line of the config script at name,
// dispatching each to the handler registered for its keyword.
func LoadConfigFile(name string) error {
	file, err := os.Open(name)
	if err != nil {
		return err
	}
	defer file.Close()

	lineNumber = 0
	reader := bufio.NewReader(file)
	for {
		line := optionLine{}
		line.line, err = reader.ReadString('\n')
		lineNumber++
		if len(line.line) == 0 && err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
		if err := line.parseLine(); err != nil {
			return err
		}
	}
	return nil
}

func (line *optionLine) parseLine() error {
	model := line.parseModel()
	if model == nil {
		return nil
	}
	switch getModel(model.model) {
	case TypeModel:
		first := line.parseFirst()
		if first == nil || !first.isAddr {
			return fmt.Errorf("keyword %s requires a physical address, line %d", model.model, lineNumber)
		}
		options, err := line.parseOptions()
		if err != nil {
			return err
		}
		return createModel(model.model, first, options)

	case TypeOption:
		first := line.parseFirst()
		line.skipSpace()
		if !line.isEOL() || first == nil {
			return fmt.Errorf("option %s not followed by a single value, line %d", model.model, lineNumber)
		}
		return createOption(model.model, first)

	case TypeOptions:
		first := line.parseFirst()
		if first == nil {
			return fmt.Errorf("option %s not followed by a value, line %d", model.model, lineNumber)
		}
		options, err := line.parseOptions()
		if err != nil {
			return err
		}
		return createOptions(model.model, first, options)

	case TypeSwitch:
		line.skipSpace()
		if !line.isEOL() {
			return fmt.Errorf("switch %s followed by options, line %d", model.model, lineNumber)
		}
		return createSwitch(model.model)

	case 0:
		return fmt.Errorf("no keyword %s registered, line %d", model.model, lineNumber)
	}
	return nil
}

func (line *optionLine) skipSpace() {
	for line.pos < len(line.line) && unicode.IsSpace(rune(line.line[line.pos])) {
		line.pos++
	}
}

func (line *optionLine) isEOL() bool {
	if line.pos >= len(line.line) {
		return true
	}
	return line.line[line.pos] == '#'
}

func (line *optionLine) getNext(inQuote bool) byte {
	line.pos++
	if line.isEOL() {
		return 0
	}
	by := line.line[line.pos]
	if unicode.IsLetter(rune(by)) || unicode.IsNumber(rune(by)) || inQuote {
		return by
	}
	return 0
}

func (line *optionLine) getPeek() byte {
	if line.pos+1 >= len(line.line) {
		return 0
	}
	return line.line[line.pos+1]
}

func (line *optionLine) parseModel() *modelName {
	line.skipSpace()
	if line.isEOL() {
		return nil
	}
	model := modelName{}
	for !line.isEOL() {
		by := line.line[line.pos]
		if !unicode.IsLetter(rune(by)) && !unicode.IsNumber(rune(by)) {
			break
		}
		model.model += string(by)
		line.pos++
	}
	model.model = strings.ToUpper(model.model)
	return &model
}

// parseFirst parses the whitespace-delimited token right after the keyword:
// a bare decimal/hex address (optionally K/M-suffixed) or, failing that, a
// plain string value.
func (line *optionLine) parseFirst() *FirstOption {
	line.skipSpace()
	if line.isEOL() {
		return nil
	}

	value := ""
	for !line.isEOL() {
		by := line.line[line.pos]
		if unicode.IsSpace(rune(by)) {
			break
		}
		value += string(by)
		line.pos++
	}

	option := FirstOption{addr: NoAddr, value: value}
	if addr, ok := parseAddress(value); ok {
		option.addr = addr
		option.isAddr = true
	}
	return &option
}

// parseAddress accepts "0x"-prefixed or bare hex, a plain decimal number, or
// a decimal number suffixed with K or M (1024/1048576 multiplier).
func parseAddress(value string) (uint64, bool) {
	if value == "" {
		return 0, false
	}
	suffix := value[len(value)-1]
	mult := uint64(1)
	digits := value
	switch suffix {
	case 'K', 'k':
		mult = 1024
		digits = value[:len(value)-1]
	case 'M', 'm':
		mult = 1024 * 1024
		digits = value[:len(value)-1]
	}
	if digits == "" {
		return 0, false
	}
	if n, err := strconv.ParseUint(digits, 10, 64); err == nil {
		return n * mult, true
	}
	hex := strings.TrimPrefix(strings.TrimPrefix(value, "0x"), "0X")
	if n, err := strconv.ParseUint(hex, 16, 64); err == nil {
		return n, true
	}
	return 0, false
}

func (line *optionLine) parseQuoteString() (string, bool) {
	inQuote := false
	value := ""

	if line.getPeek() == '"' {
		inQuote = true
		_ = line.getNext(true)
	}

	for {
		by := line.getNext(inQuote)
		if by == '"' && inQuote {
			by = line.getNext(inQuote)
			if by != '"' {
				return value, true
			}
		}
		space := unicode.IsSpace(rune(by))
		if !inQuote && (space || by == 0 || by == ',') {
			return value, true
		}
		value += string(by)
		if line.isEOL() {
			return value, !inQuote
		}
	}
}

func (line *optionLine) getName() (string, error) {
	if line.isEOL() {
		return "", nil
	}
	by := line.line[line.pos]
	if !unicode.IsLetter(rune(by)) {
		if !line.isEOL() {
			return "", fmt.Errorf("invalid option, line %d pos %d", lineNumber, line.pos)
		}
		return "", nil
	}
	value := ""
	for {
		value += string(by)
		by = line.getNext(false)
		if by == 0 {
			break
		}
	}
	return value, nil
}

func (line *optionLine) parseOption() (*Option, error) {
	line.skipSpace()
	value, err := line.getName()
	if value == "" {
		return nil, err
	}

	option := Option{Name: value}
	if line.isEOL() {
		return &option, nil
	}

	if line.line[line.pos] == '=' {
		v, ok := line.parseQuoteString()
		if !ok {
			return nil, fmt.Errorf("invalid quoted string, line %d pos %d", lineNumber, line.pos)
		}
		option.EqualOpt = v
	}

	line.skipSpace()
	for !line.isEOL() && line.line[line.pos] == ',' {
		line.pos++
		line.skipSpace()
		v, err := line.getName()
		if err != nil {
			return nil, err
		}
		if v != "" {
			option.Value = append(option.Value, &v)
		}
		line.skipSpace()
	}
	return &option, nil
}

func (line *optionLine) parseOptions() ([]Option, error) {
	options := []Option{}
	for {
		option, err := line.parseOption()
		if err != nil {
			return nil, err
		}
		if option == nil {
			break
		}
		options = append(options, *option)
	}
	return options, nil
}
