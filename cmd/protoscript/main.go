// Command protoscript is the embedder-facing entry point for the core
// runtime, grounded on sentra-language-sentra's cmd/sentra/main.go
// command-dispatch shape, narrowed to the commands this core supports:
// starting a VM, reporting its state, and draining its event queue.
// Exit codes follow spec.md §6: 0 on success, non-zero on an uncaught
// error.
package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"

	"protoscript/internal/psvm"
)

const version = "0.1.0"

var commandAliases = map[string]string{
	"s": "stats",
	"e": "events",
	"v": "version",
	"h": "help",
}

func main() {
	os.Exit(run(os.Args[1:]))
}

// run implements the full command dispatch and returns a process exit
// code rather than calling os.Exit directly, so the same entry point can
// be driven in-process by the testscript harness in main_test.go.
func run(args []string) int {
	if len(args) == 0 {
		showUsage()
		return 0
	}

	cmd := args[0]
	if alias, ok := commandAliases[cmd]; ok {
		cmd = alias
	}

	switch cmd {
	case "help", "--help", "-h":
		showUsage()
		return 0
	case "version", "--version", "-v":
		fmt.Println("protoscript", version)
		return 0
	case "stats":
		return runStats()
	case "events":
		return runEvents(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "protoscript: unknown command %q\n", args[0])
		showUsage()
		return 1
	}
}

func showUsage() {
	fmt.Println(`protoscript - ProtoScript core runtime CLI

Usage:
  protoscript stats            start a VM, report its initial state
  protoscript events <url>     start a VM, bridge a websocket into its
                                event queue, and print events as they arrive
  protoscript version
  protoscript help`)
}

// colorWriter wraps stderr, applying ANSI coloring only when stderr is a
// real terminal — the mattn/go-isatty gate, per SPEC_FULL.md's CLI
// ambient-stack entry.
func colorWriter() (w *bufio.Writer, colorize func(code, text string) string) {
	w = bufio.NewWriter(os.Stderr)
	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		colorize = func(code, text string) string {
			return "\x1b[" + code + "m" + text + "\x1b[0m"
		}
	} else {
		colorize = func(_, text string) string { return text }
	}
	return w, colorize
}

func runStats() int {
	vm := psvm.New()
	psvm.Activate(vm)
	defer vm.Deactivate()

	w, colorize := colorWriter()
	defer w.Flush()

	fmt.Fprintln(w, colorize("32", vm.String()))
	return 0
}

func runEvents(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "protoscript events: missing websocket URL")
		return 1
	}

	vm := psvm.New()
	psvm.Activate(vm)
	defer vm.Deactivate()

	w, colorize := colorWriter()
	defer w.Flush()

	if err := dialAndDrain(vm, args[0], w, colorize); err != nil {
		fmt.Fprintln(w, colorize("31", "protoscript: "+err.Error()))
		w.Flush()
		return 1
	}
	return 0
}
