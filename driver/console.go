/*
 * GVM - Demo clock loop and interactive console.
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

package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/rcornwell/gvm/engine"
)

// Clock owns the cooperative clock loop: each tick drains one scripted
// RTL cycle into the engine. It runs on its own goroutine, synchronized
// with the console goroutine via cmds, mirroring the teacher's split
// between telnet/command I/O and the single-threaded core.
type Clock struct {
	Engine *engine.Engine
	RTL    *FakeRTL
	Log    *slog.Logger

	cmds chan string
	done chan struct{}
}

// NewClock wires a clock loop around eng and rtl.
func NewClock(eng *engine.Engine, rtl *FakeRTL, log *slog.Logger) *Clock {
	return &Clock{
		Engine: eng,
		RTL:    rtl,
		Log:    log,
		cmds:   make(chan string),
		done:   make(chan struct{}),
	}
}

// Run processes console commands until "quit" or the command channel
// is closed. It is meant to run on its own goroutine alongside
// ConsoleReader, which feeds Run via SendCommand.
func (c *Clock) Run(ctx context.Context) {
	defer close(c.done)
	for cmd := range c.cmds {
		if c.handle(ctx, cmd) {
			return
		}
	}
}

// SendCommand enqueues one console command for the clock goroutine.
func (c *Clock) SendCommand(cmd string) {
	c.cmds <- cmd
}

// Stop closes the command channel, causing Run to return once drained.
func (c *Clock) Stop() {
	close(c.cmds)
}

// Wait blocks until Run has returned.
func (c *Clock) Wait() {
	<-c.done
}

func (c *Clock) handle(ctx context.Context, cmd string) (quit bool) {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return false
	}
	switch fields[0] {
	case "step":
		n := 1
		if len(fields) > 1 {
			if v, err := strconv.Atoi(fields[1]); err == nil {
				n = v
			}
		}
		c.step(ctx, n)
	case "run":
		for c.RTL.Remaining() > 0 {
			c.step(ctx, 1)
		}
	case "quit", "exit":
		return true
	default:
		fmt.Println("unknown command: " + fields[0])
	}
	return false
}

func (c *Clock) step(ctx context.Context, n int) {
	for i := 0; i < n; i++ {
		buf, ok := c.RTL.Next()
		if !ok {
			fmt.Println("no more scripted cycles")
			return
		}
		if _, err := c.Engine.Cycle(ctx, buf); err != nil {
			if c.Log != nil {
				c.Log.Error("GVM cycle aborted: " + err.Error())
			}
			fmt.Println("Error: " + err.Error())
			return
		}
	}
}

// ConsoleReader reads operator commands from an interactive line
// editor and forwards them to clk, mirroring the teacher's
// command/reader.ConsoleReader built on github.com/peterh/liner.
func ConsoleReader(clk *Clock) {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(func(line string) []string {
		candidates := []string{"step", "run", "quit"}
		out := make([]string, 0, len(candidates))
		for _, c := range candidates {
			if strings.HasPrefix(c, line) {
				out = append(out, c)
			}
		}
		return out
	})

	for {
		command, err := line.Prompt("GVM> ")
		if err == nil {
			line.AppendHistory(command)
			clk.SendCommand(command)
			if command == "quit" || command == "exit" {
				return
			}
			continue
		}

		if errors.Is(err, liner.ErrPromptAborted) {
			clk.SendCommand("quit")
			return
		}
		slog.Error("error reading line: " + err.Error())
	}
}
