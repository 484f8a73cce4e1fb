/*
 * nucleus - Debug shell.
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

// Package shell implements a small interactive debug console: a liner
// prompt loop with history and tab completion, dispatching each line to
// a named command that inspects live Kernel state.
package shell

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/peterh/liner"

	"github.com/umps3/nucleus/internal/nucleus"
	"github.com/umps3/nucleus/internal/pcb"
)

var commandNames = []string{"ps", "ready", "asl", "halted", "help", "quit"}

// Run starts an interactive liner session inspecting k, writing
// command output to out. It returns when the user quits or aborts
// (Ctrl-D/Ctrl-C).
func Run(k *nucleus.Kernel, out io.Writer) {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(func(partial string) []string {
		var matches []string
		for _, name := range commandNames {
			if strings.HasPrefix(name, partial) {
				matches = append(matches, name)
			}
		}
		return matches
	})

	for {
		input, err := line.Prompt("nucleus> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				return
			}
			slog.Error("shell: error reading line", "error", err)
			return
		}
		line.AppendHistory(input)

		quit, err := dispatch(k, out, input)
		if err != nil {
			fmt.Fprintln(out, "error:", err)
		}
		if quit {
			return
		}
	}
}

func dispatch(k *nucleus.Kernel, out io.Writer, input string) (quit bool, err error) {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return false, nil
	}
	switch fields[0] {
	case "quit", "exit":
		return true, nil
	case "help":
		fmt.Fprintln(out, strings.Join(commandNames, " "))
	case "ps":
		printProcessList(k, out)
	case "ready":
		printReadyQueue(k, out)
	case "asl":
		printASL(k, out)
	case "halted":
		fmt.Fprintln(out, k.Halted())
	default:
		return false, fmt.Errorf("unknown command %q (try help)", fields[0])
	}
	return false, nil
}

func printProcessList(k *nucleus.Kernel, out io.Writer) {
	fmt.Fprintf(out, "current=%v process_count=%d soft_blocked=%d free=%d/%d\n",
		k.Current, k.ProcessCount, k.SoftBlockedCount, k.Pool.FreeCount(), pcb.MaxProc)
}

func printReadyQueue(k *nucleus.Kernel, out io.Writer) {
	tail := k.ReadyTail
	if k.Pool.QueueEmpty(tail) {
		fmt.Fprintln(out, "(empty)")
		return
	}
	head := k.Pool.QueueHead(tail)
	fmt.Fprintf(out, "head=%v tail=%v\n", head, tail)
}

func printASL(k *nucleus.Kernel, out io.Writer) {
	keys := k.ASL.Snapshot()
	if len(keys) == 0 {
		fmt.Fprintln(out, "(empty)")
		return
	}
	for _, ks := range keys {
		fmt.Fprintf(out, "key=%v waiting=%d\n", ks.Key, ks.Waiting)
	}
}
