package cmd

import (
	"bufio"
	"os"
	"os/signal"
	"syscall"
)

// stopOnEnterOrSignal returns a channel closed when the user presses Enter
// or the process receives SIGINT/SIGTERM.
func stopOnEnterOrSignal() <-chan struct{} {
	stop := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	enter := make(chan struct{})
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		scanner.Scan()
		close(enter)
	}()

	go func() {
		defer signal.Stop(sigChan)
		select {
		case <-sigChan:
		case <-enter:
		}
		close(stop)
	}()

	return stop
}
