package exitguard

// The host MUST outlive the tool.
// A termination request is data, not an instruction.
// One guard per process. Never nest.

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"sync"
)

// ErrActive is returned by Install when a guard is already installed.
var ErrActive = errors.New("exitguard: guard already installed")

// ExitError is the intercepted termination request of a guarded tool.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d intercepted", e.Code)
}

// PanicError carries a panic raised by a guarded function.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes the panic value when it is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

type guard struct {
	mu   sync.Mutex
	exit *ExitError
}

// record keeps the first request only
func (g *guard) record(code int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.exit == nil {
		g.exit = &ExitError{Code: code}
	}
}

var (
	mu      sync.Mutex
	current *guard

	// osExit is swapped in tests
	osExit = os.Exit
)

// Install installs the process-wide guard. While it is installed every call
// to Exit, from any goroutine, is recorded instead of ending the process.
func Install() error {
	mu.Lock()
	defer mu.Unlock()
	if current != nil {
		return ErrActive
	}
	current = &guard{}
	return nil
}

// Remove uninstalls the guard and returns the first intercepted request,
// or nil when nothing tried to exit.
func Remove() *ExitError {
	mu.Lock()
	g := current
	current = nil
	mu.Unlock()

	if g == nil {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.exit
}

// Installed reports whether a guard is currently installed.
func Installed() bool {
	mu.Lock()
	defer mu.Unlock()
	return current != nil
}

// Exit is the termination primitive for embedded tools.
//
// Without a guard it ends the process with code, like os.Exit. With a guard
// installed the code is recorded and the calling goroutine is stopped with
// runtime.Goexit; its deferred calls still run.
func Exit(code int) {
	mu.Lock()
	g := current
	mu.Unlock()

	if g == nil {
		osExit(code)
		return
	}
	g.record(code)
	runtime.Goexit()
}

type outcome struct {
	err error
}

// Trap runs fn under a freshly installed guard and always removes it before
// returning. fn runs on its own goroutine so that an intercepted Exit can stop
// it without stopping the caller. A panic in fn is returned as *PanicError.
//
// The first result is the intercepted request, if any; the second is fn's
// own error. Trap fails with ErrActive when another guard is installed.
func Trap(fn func() error) (*ExitError, error) {
	if err := Install(); err != nil {
		return nil, err
	}

	done := make(chan outcome, 1)
	go func() {
		var o outcome
		returned := false
		defer func() {
			if !returned {
				// nil here means Goexit, i.e. an intercepted Exit
				if r := recover(); r != nil {
					o.err = &PanicError{Value: r, Stack: debug.Stack()}
				}
			}
			done <- o
		}()
		o.err = fn()
		returned = true
	}()

	o := <-done
	return Remove(), o.err
}
