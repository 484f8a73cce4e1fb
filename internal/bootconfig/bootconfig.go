/*
 * nucleus - Boot manifest parser.
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

// Package bootconfig parses a boot manifest: a line-oriented directive
// file (bufio line scan, '#' comments) giving the first process's
// initial PC/SP/status and any devices to pre-arm as pending at boot.
package bootconfig

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Manifest describes the first process the nucleus dispatches and any
// device-table state to preload before the dispatch loop starts.
type Manifest struct {
	InitialPC     uint32
	InitialSP     uint32
	InitialStatus uint32
	DeviceReady   []DeviceReady // devices to mark attention-pending at boot
}

// DeviceReady requests that a device be raised as already having a
// pending interrupt when the nucleus starts (used to script automated
// boot-time self-tests without a real device backing it).
type DeviceReady struct {
	Line   int
	Device int
	Status uint32
}

// Load reads a manifest file. Directive syntax, one per line:
//
//	# comment
//	pc <hex>
//	sp <hex>
//	status <hex>
//	device <line> <device> <status-hex>
func Load(name string) (*Manifest, error) {
	file, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return parse(file)
}

func parse(r io.Reader) (*Manifest, error) {
	m := &Manifest{}
	scanner := bufio.NewScanner(r)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := parseDirective(m, line); err != nil {
			return nil, fmt.Errorf("bootconfig: line %d: %w", lineNumber, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

func parseDirective(m *Manifest, line string) error {
	fields := strings.Fields(line)
	keyword := fields[0]
	args := fields[1:]

	switch keyword {
	case "pc":
		v, err := parseHexArg(args, 0)
		if err != nil {
			return err
		}
		m.InitialPC = v
	case "sp":
		v, err := parseHexArg(args, 0)
		if err != nil {
			return err
		}
		m.InitialSP = v
	case "status":
		v, err := parseHexArg(args, 0)
		if err != nil {
			return err
		}
		m.InitialStatus = v
	case "device":
		if len(args) != 3 {
			return errors.New("device requires <line> <device> <status-hex>")
		}
		line, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("device line: %w", err)
		}
		dev, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("device number: %w", err)
		}
		status, err := strconv.ParseUint(strings.TrimPrefix(args[2], "0x"), 16, 32)
		if err != nil {
			return fmt.Errorf("device status: %w", err)
		}
		m.DeviceReady = append(m.DeviceReady, DeviceReady{Line: line, Device: dev, Status: uint32(status)})
	default:
		return fmt.Errorf("unknown directive %q", keyword)
	}
	return nil
}

func parseHexArg(args []string, idx int) (uint32, error) {
	if idx >= len(args) {
		return 0, errors.New("missing value")
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(args[idx], "0x"), 16, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}
