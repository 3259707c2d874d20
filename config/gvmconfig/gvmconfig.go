/*
 * GVM - Configuration file parser
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

// Package gvmconfig loads the demo driver's engine configuration from
// a small "key = value" text file: one setting per line, "#" comments
// and blank lines ignored. This is not GVM's own concern (the engine
// takes an engine.Config literal) — it exists only for cmd/gvmdemo.
package gvmconfig

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rcornwell/gvm/engine"
)

// Config is the demo driver's on-disk configuration, mapped 1:1 onto
// engine.Config plus driver-only fields.
type Config struct {
	FP32Atol      float32
	FP32Rtol      float32
	XRegFileSize  uint32
	NumThreadsMax uint32
	EndprgOpcode  uint32
	EndprgMask    uint32
	LogFile       string
	Debug         bool
}

// Engine returns the engine.Config subset of c.
func (c *Config) Engine() engine.Config {
	return engine.Config{
		FP32Atol:      c.FP32Atol,
		FP32Rtol:      c.FP32Rtol,
		XRegFileSize:  c.XRegFileSize,
		NumThreadsMax: c.NumThreadsMax,
		EndprgOpcode:  c.EndprgOpcode,
		EndprgMask:    c.EndprgMask,
	}
}

// Default returns the engine's published default configuration with
// no log file and debug off.
func Default() *Config {
	d := engine.DefaultConfig()
	return &Config{
		FP32Atol:      d.FP32Atol,
		FP32Rtol:      d.FP32Rtol,
		XRegFileSize:  d.XRegFileSize,
		NumThreadsMax: d.NumThreadsMax,
		EndprgOpcode:  d.EndprgOpcode,
		EndprgMask:    d.EndprgMask,
	}
}

// Load reads path and overlays recognized keys onto the defaults.
// Unrecognized keys produce an error naming the offending line number.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gvmconfig: %w", err)
	}
	defer f.Close()

	cfg := Default()
	reader := bufio.NewReader(f)
	lineNum := 0
	for {
		line, err := reader.ReadString('\n')
		lineNum++
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && !strings.HasPrefix(trimmed, "#") {
			if perr := applyLine(cfg, trimmed); perr != nil {
				return nil, fmt.Errorf("gvmconfig: %s:%d: %w", path, lineNum, perr)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("gvmconfig: %s:%d: %w", path, lineNum, err)
		}
	}
	return cfg, nil
}

func applyLine(cfg *Config, line string) error {
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return fmt.Errorf("expected key = value, got %q", line)
	}
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)

	switch key {
	case "fp32_atol":
		v, err := strconv.ParseFloat(value, 32)
		if err != nil {
			return err
		}
		cfg.FP32Atol = float32(v)
	case "fp32_rtol":
		v, err := strconv.ParseFloat(value, 32)
		if err != nil {
			return err
		}
		cfg.FP32Rtol = float32(v)
	case "xreg_file_size":
		v, err := strconv.ParseUint(value, 0, 32)
		if err != nil {
			return err
		}
		cfg.XRegFileSize = uint32(v)
	case "num_threads_max":
		v, err := strconv.ParseUint(value, 0, 32)
		if err != nil {
			return err
		}
		cfg.NumThreadsMax = uint32(v)
	case "endprg_opcode":
		v, err := strconv.ParseUint(value, 0, 32)
		if err != nil {
			return err
		}
		cfg.EndprgOpcode = uint32(v)
	case "endprg_mask":
		v, err := strconv.ParseUint(value, 0, 32)
		if err != nil {
			return err
		}
		cfg.EndprgMask = uint32(v)
	case "log_file":
		cfg.LogFile = value
	case "debug":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		cfg.Debug = v
	default:
		return fmt.Errorf("unrecognized key %q", key)
	}
	return nil
}
