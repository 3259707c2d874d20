/*
 * GVM - Demo process.
 *
 * Copyright 2024, Richard Cornwell
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

// Command gvmdemo wires the GVM engine to a scriptable fake RTL source
// and fake reference model, for manual exercise of the verification
// engine from an interactive console. It is the "simulator main loop"
// stand-in the core GVM packages deliberately keep out of scope.
package main

import (
	"context"
	"log/slog"
	"os"

	getopt "github.com/pborman/getopt/v2"

	"github.com/rcornwell/gvm/classify"
	config "github.com/rcornwell/gvm/config/gvmconfig"
	"github.com/rcornwell/gvm/driver"
	"github.com/rcornwell/gvm/engine"
	"github.com/rcornwell/gvm/intake"
	logger "github.com/rcornwell/gvm/util/logger"
	"github.com/rcornwell/gvm/warp"
)

func main() {
	optConfig := getopt.StringLong("config", 'c', "", "Configuration file")
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optDebug := getopt.BoolLong("debug", 'd', "Debug logging to stderr")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	var file *os.File
	if *optLogFile != "" {
		f, err := os.Create(*optLogFile)
		if err != nil {
			slog.Error("can't create log file: " + err.Error())
			os.Exit(1)
		}
		file = f
	}
	programLevel := new(slog.LevelVar)
	programLevel.Set(slog.LevelDebug)
	log := slog.New(logger.NewHandler(file, &slog.HandlerOptions{Level: programLevel, AddSource: false}, optDebug))
	slog.SetDefault(log)

	log.Info("GVM demo started")

	cfg := config.Default()
	if *optConfig != "" {
		loaded, err := config.Load(*optConfig)
		if err != nil {
			log.Error(err.Error())
			os.Exit(1)
		}
		cfg = loaded
	}

	ref := driver.NewFakeRef()
	eng := engine.New(cfg.Engine(), classify.DefaultTables(), ref, log)
	rtl := driver.NewFakeRTL()
	scriptDemo(ref, rtl)
	clk := driver.NewClock(eng, rtl, log)

	go clk.Run(context.Background())
	driver.ConsoleReader(clk)
	clk.Stop()
	clk.Wait()
}

// scriptDemo stages a minimal three-cycle program for one warp, so
// "run" at the console has something to drive: dispatch an ADDI, land
// its writeback and let it retire solo, then dispatch the ENDPRG that
// tears the warp down. The ADDI's writeback has to land in its own
// cycle ahead of the ENDPRG dispatch — ingest destroys the warp on the
// same cycle an endprg-matching instruction is dispatched, so a
// writeback for an earlier dispatch_id arriving in that same cycle
// would find the warp already gone. Events are staged one
// RTL-callback-at-a-time through FakeRTL's Add* methods and sealed
// with Commit, mirroring how a live RTL shim would accumulate a
// cycle's worth of DPI-C callbacks before GVM consumes them.
func scriptDemo(ref *driver.FakeRef, rtl *driver.FakeRTL) {
	key := warp.Key{SoftwareWGID: 0, SoftwareWarpID: 0}
	ref.Script(key,
		driver.ScriptedStep{PC: 0x1000, Kind: warp.ResultXReg, XReg: warp.XRegResult{RegIdx: 2, RD: 2}},
		driver.ScriptedStep{PC: 0x1004, Kind: warp.ResultNone},
	)

	rtl.AddCta2Warp(intake.Cta2Warp{SoftwareWGID: 0, SoftwareWarpID: 0, SMID: 0, HardwareWarpID: 0, NumThreads: 32})
	rtl.AddInsnDispatch(intake.InsnDispatch{SMID: 0, HardwareWarpID: 0, PC: 0x1000, Insn: 0x00208113, DispatchID: 0}) // ADDI x2,x1,2
	rtl.Commit()

	rtl.AddXRegWb(intake.XRegWb{SMID: 0, HardwareWarpID: 0, DispatchID: 0, RegIdx: 2, RD: 2})
	rtl.Commit()

	rtl.AddInsnDispatch(intake.InsnDispatch{SMID: 0, HardwareWarpID: 0, PC: 0x1004, Insn: classify.EndprgOpcode, DispatchID: 1})
	rtl.Commit()
}
