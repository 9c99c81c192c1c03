package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"protoscript/internal/hostbridge"
	"protoscript/internal/psstring"
	"protoscript/internal/psvalue"
	"protoscript/internal/psvm"
)

// dialAndDrain bridges a websocket URL into vm's event queue and prints
// every event until interrupted (Ctrl-C), then closes the bridge
// cleanly and returns.
func dialAndDrain(vm *psvm.VM, url string, w *bufio.Writer, colorize func(code, text string) string) error {
	bridge, err := hostbridge.Dial(vm, url)
	if err != nil {
		return err
	}
	defer bridge.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-sigCh:
			return nil
		case <-ticker.C:
			for {
				v, ok := vm.Events().Next()
				if !ok {
					break
				}
				fmt.Fprintln(w, colorize("36", describeEvent(v)))
				w.Flush()
			}
		}
	}
}

func describeEvent(v psvalue.Value) string {
	if s := psstring.FromValue(v); s != nil {
		return s.ToString()
	}
	return psvalue.TypeName(v)
}
