/*
 * msim - Profile command
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

package parser

import (
	"errors"
	"fmt"
	"os"
	"runtime/pprof"
	"sort"

	"github.com/google/pprof/profile"

	"github.com/PeterHero/msim/internal/sim"
)

// profile handles "profile <n> <steps>": runs the machine for the given
// number of steps under a CPU profile, then decodes the captured profile
// with google/pprof and prints the top-n hottest functions — an operator's
// window onto the decode/execute dispatch path, the spec's stated
// speed-critical share of the core.
func profile(line *cmdLine, m *sim.Sim) (bool, error) {
	topN, err := line.getNumber()
	if err != nil {
		return false, err
	}
	steps, err := line.getNumber()
	if err != nil {
		return false, err
	}
	if m.Running() {
		return false, errors.New("machine is running; stop first")
	}

	tmp, err := os.CreateTemp("", "msim-profile-*.pprof")
	if err != nil {
		return false, err
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if err := pprof.StartCPUProfile(tmp); err != nil {
		return false, err
	}
	for i := uint64(0); i < steps; i++ {
		m.Step()
	}
	pprof.StopCPUProfile()

	if _, err := tmp.Seek(0, 0); err != nil {
		return false, err
	}
	prof, err := profile.Parse(tmp)
	if err != nil {
		return false, err
	}

	printTopFunctions(prof, int(topN))
	return false, nil
}

func printTopFunctions(prof *profile.Profile, topN int) {
	samples := make(map[string]int64)
	for _, s := range prof.Sample {
		if len(s.Value) == 0 {
			continue
		}
		for _, loc := range s.Location {
			for _, line := range loc.Line {
				if line.Function == nil {
					continue
				}
				samples[line.Function.Name] += s.Value[0]
			}
		}
	}

	names := make([]string, 0, len(samples))
	for name := range samples {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return samples[names[i]] > samples[names[j]] })

	if topN <= 0 || topN > len(names) {
		topN = len(names)
	}
	for i := 0; i < topN; i++ {
		fmt.Printf("%8d  %s\n", samples[names[i]], names[i])
	}
}
