// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package repl is an interactive shell around a tvmdbg.Session, useful
// for exercising a trace script by hand. It drives the session with the
// scripted tvmdbg/fakevm emulator, since this repository ships no
// binding to the real native emulator.
package repl

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/tvmdbg/tvmdbg"
	"github.com/tvmdbg/tvmdbg/fakevm"
)

const prompt = "(tvmdbg) "

var (
	errNoSession = errors.New("no session prepared; use PREPARE first")
)

// UsageError signals a command was called with the wrong shape of
// arguments.
type UsageError struct{}

func (e *UsageError) Error() string { return "wrong command usage" }

func NewUsageError() error { return &UsageError{} }

// Command is one REPL verb: its usage string and the handler invoked
// with the remaining whitespace-separated arguments.
type Command struct {
	Usage   string
	Handler func(r *Repl, args []string) error
}

// Repl owns at most one live Session plus the scripted driver feeding
// it, and drains its event channel on a background goroutine so stop
// and output events print as soon as they are available.
type Repl struct {
	session  *tvmdbg.Session
	cells    *tvmdbg.CellIndex
	scanner  *bufio.Scanner
	commands map[string]Command
}

func NewRepl() *Repl {
	r := &Repl{
		scanner: bufio.NewScanner(os.Stdin),
	}
	r.commands = map[string]Command{
		"PREPARE": {
			Usage:   "PREPARE <trace-script-path-or-url> [get|tx]",
			Handler: (*Repl).handlePrepare,
		},
		"CONTINUE": {
			Usage:   "CONTINUE",
			Handler: (*Repl).handleContinue,
		},
		"STEPIN": {
			Usage:   "STEPIN",
			Handler: (*Repl).handleStepIn,
		},
		"STEPOVER": {
			Usage:   "STEPOVER",
			Handler: (*Repl).handleStepOver,
		},
		"STEPOUT": {
			Usage:   "STEPOUT",
			Handler: (*Repl).handleStepOut,
		},
		"BREAK": {
			Usage:   "BREAK <path> <line>",
			Handler: (*Repl).handleBreak,
		},
		"CLEARBP": {
			Usage:   "CLEARBP <path>",
			Handler: (*Repl).handleClearBreakpoints,
		},
		"LOCALS": {
			Usage:   "LOCALS",
			Handler: (*Repl).handleLocals,
		},
		"GLOBALS": {
			Usage:   "GLOBALS",
			Handler: (*Repl).handleGlobals,
		},
		"STACK": {
			Usage:   "STACK",
			Handler: (*Repl).handleStack,
		},
		"LOAD": {
			Usage:   "LOAD <cell-graph-path-or-url>",
			Handler: (*Repl).handleLoad,
		},
		"CELL": {
			Usage:   "CELL <hash>",
			Handler: (*Repl).handleCell,
		},
		"/help": {
			Usage:   "/help",
			Handler: (*Repl).handleHelp,
		},
		"/clear": {
			Usage:   "/clear",
			Handler: (*Repl).handleClear,
		},
		"/quit": {
			Usage:   "/quit",
			Handler: (*Repl).handleQuit,
		},
	}
	return r
}

func Start() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		fmt.Println("\nBye!")
		os.Exit(0)
	}()

	NewRepl().run()
}

func (r *Repl) run() {
	fmt.Print(prompt)

	for r.scanner.Scan() {
		line := r.scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			fmt.Print(prompt)
			continue
		}

		cmdName := parts[0]
		args := parts[1:]

		if cmd, ok := r.commands[cmdName]; ok {
			if err := cmd.Handler(r, args); err != nil {
				var usageErr *UsageError
				if errors.As(err, &usageErr) {
					fmt.Fprintln(os.Stderr, Red(fmt.Sprintf("Usage: %s", cmd.Usage)))
				} else {
					fmt.Fprintln(os.Stderr, Red(fmt.Sprintf("Error: %s", err)))
				}
			}
		} else {
			fmt.Fprintln(os.Stderr, Red(fmt.Sprintf("Error: unknown command: %s", cmdName)))
		}
		fmt.Print(prompt)
	}
}

func (r *Repl) handlePrepare(args []string) error {
	if len(args) != 1 && len(args) != 2 {
		return NewUsageError()
	}
	source := args[0]
	kind := tvmdbg.GetMethod
	if len(args) == 2 && args[1] == "tx" {
		kind = tvmdbg.Transaction
	}

	rc, err := ResolveSource(source)
	if err != nil {
		return err
	}
	defer rc.Close()

	trace, err := fakevm.LoadTraceScript(rc)
	if err != nil {
		return err
	}

	root, pool, debugInfo, driver, err := fakevm.BuildFixture(kind, trace, nil, tvmdbg.SetupResult{Code: 1}, nil)
	if err != nil {
		return err
	}

	sess, err := tvmdbg.Prepare(driver, tvmdbg.PrepareArgs{
		Kind:      kind,
		RootHash:  root,
		CellPool:  pool,
		DebugInfo: fakevm.NewReader(debugInfo),
	}, tvmdbg.DefaultConfig())
	if err != nil {
		return err
	}

	r.session = sess
	go r.drainEvents(sess)

	fmt.Println(Green(fmt.Sprintf("session prepared (%s), %d trace events", kind, len(trace))))
	return nil
}

func (r *Repl) drainEvents(sess *tvmdbg.Session) {
	for ev := range sess.Events() {
		switch ev.Kind {
		case tvmdbg.Output:
			fmt.Println(ev.Line)
		case tvmdbg.End:
			fmt.Println(Yellow(fmt.Sprintf("end: result=%v", ev.Result)))
		default:
			fmt.Println(Yellow(fmt.Sprintf("%s: %s", ev.Kind, formatFrames(ev.Frames))))
		}
	}
}

func formatFrames(frames []tvmdbg.StackFrame) string {
	if len(frames) == 0 {
		return "<no frames>"
	}
	top := frames[len(frames)-1]
	return fmt.Sprintf("%s:%d (%s)", top.Path, top.Line, top.Function)
}

func (r *Repl) handleContinue(args []string) error {
	if r.session == nil {
		return errNoSession
	}
	return r.session.Continue()
}

func (r *Repl) handleStepIn(args []string) error {
	if r.session == nil {
		return errNoSession
	}
	return r.session.StepIn()
}

func (r *Repl) handleStepOver(args []string) error {
	if r.session == nil {
		return errNoSession
	}
	return r.session.StepOver()
}

func (r *Repl) handleStepOut(args []string) error {
	if r.session == nil {
		return errNoSession
	}
	return r.session.StepOut()
}

func (r *Repl) handleBreak(args []string) error {
	if r.session == nil {
		return errNoSession
	}
	if len(args) != 2 {
		return NewUsageError()
	}
	line, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid line: %s", args[1])
	}
	bp := r.session.SetBreakpoint(args[0], uint32(line))
	fmt.Println(Green(fmt.Sprintf("breakpoint #%d set, verified=%v", bp.ID, bp.Verified)))
	return nil
}

func (r *Repl) handleClearBreakpoints(args []string) error {
	if r.session == nil {
		return errNoSession
	}
	if len(args) != 1 {
		return NewUsageError()
	}
	r.session.ClearBreakpoints(args[0])
	return nil
}

func (r *Repl) handleLocals(args []string) error {
	if r.session == nil {
		return errNoSession
	}
	locals, ok, err := r.session.Locals()
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("locals unavailable (not stopped on a statement)")
		return nil
	}
	for name, val := range locals {
		fmt.Printf("  %s = %s\n", name, val.String())
	}
	return nil
}

func (r *Repl) handleGlobals(args []string) error {
	if r.session == nil {
		return errNoSession
	}
	globals, ok, err := r.session.Globals()
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("globals unavailable (C7 is not a tuple)")
		return nil
	}
	for name, val := range globals {
		fmt.Printf("  %s = %s\n", name, val.String())
	}
	return nil
}

func (r *Repl) handleStack(args []string) error {
	if r.session == nil {
		return errNoSession
	}
	for i, f := range r.session.StackTrace() {
		fmt.Printf("  #%d %s at %s:%d\n", i, f.Function, f.Path, f.Line)
	}
	return nil
}

func (r *Repl) handleLoad(args []string) error {
	if len(args) != 1 {
		return NewUsageError()
	}

	rc, err := ResolveSource(args[0])
	if err != nil {
		return err
	}
	defer rc.Close()

	rootHash, pool, err := tvmdbg.ReadCellGraph(rc)
	if err != nil {
		return err
	}
	idx, err := tvmdbg.BuildCellIndex(rootHash, pool)
	if err != nil {
		return err
	}

	r.cells = idx
	fmt.Println(Green(fmt.Sprintf("loaded %d cells, root %s", idx.Len(), rootHash)))
	return nil
}

func (r *Repl) handleCell(args []string) error {
	if r.cells == nil {
		return errors.New("no cell graph loaded; use LOAD first")
	}
	if len(args) != 1 {
		return NewUsageError()
	}

	cell, ok := r.cells.Get(args[0])
	if !ok {
		return fmt.Errorf("no such cell: %s", args[0])
	}

	fmt.Printf("hash=%s bits=%d refs=%d\n", cell.Hash, cell.BitLen, len(cell.Refs))
	for i, ref := range cell.Refs {
		fmt.Printf("  ref[%d] = %s\n", i, ref)
	}
	return nil
}

func (r *Repl) handleClear(args []string) error {
	fmt.Print("\033[H\033[2J")
	r.session = nil
	return nil
}

func (r *Repl) handleQuit(args []string) error {
	os.Exit(0)
	return nil
}

func (r *Repl) handleHelp(args []string) error {
	fmt.Println(strings.Repeat("-", terminalWidth()))
	for _, cmd := range r.commands {
		fmt.Println(cmd.Usage)
	}
	fmt.Println(strings.Repeat("-", terminalWidth()))
	return nil
}
