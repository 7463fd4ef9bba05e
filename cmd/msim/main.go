/*
 * msim - Main process
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

package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	getopt "github.com/pborman/getopt/v2"

	"github.com/PeterHero/msim/internal/command/reader"
	"github.com/PeterHero/msim/internal/config/configparser"
	"github.com/PeterHero/msim/internal/config/machine"
	"github.com/PeterHero/msim/internal/memory"
	"github.com/PeterHero/msim/internal/sim"
	"github.com/PeterHero/msim/internal/util/logger"
)

func main() {
	optConfig := getopt.StringLong("config", 'c', "msim.cfg", "Configuration file")
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	var file *os.File
	if *optLogFile != "" {
		var err error
		file, err = os.Create(*optLogFile)
		if err != nil {
			slog.Error("can't create log file: " + err.Error())
			os.Exit(1)
		}
	}
	programLevel := new(slog.LevelVar)
	programLevel.Set(slog.LevelInfo)
	slog.SetDefault(slog.New(logger.NewHandler(file, &slog.HandlerOptions{Level: programLevel}, false)))

	slog.Info("msim started")

	if _, err := os.Stat(*optConfig); os.IsNotExist(err) {
		slog.Error("configuration file " + *optConfig + " not found")
		os.Exit(1)
	}

	m := sim.New(memory.NewMap())
	machine.Build(m)

	if err := configparser.LoadConfigFile(*optConfig); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}

	if len(m.Harts) == 0 {
		slog.Error("configuration declared no harts")
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	consoleDone := make(chan struct{})
	go func() {
		reader.ConsoleReader(m)
		close(consoleDone)
	}()

	select {
	case <-sigChan:
		slog.Info("got quit signal")
	case <-consoleDone:
	}

	slog.Info("shutting down")
	m.Done()
}
