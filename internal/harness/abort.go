package harness

import (
	"errors"
	"fmt"
	"strings"
)

// AbortError is the panic value AbortTB raises when the harness aborts.
type AbortError struct {
	Message string
}

func (e *AbortError) Error() string {
	return "harness aborted: " + e.Message
}

// AbortTB adapts the harness to code that is not a Go test, such as the
// CLI's scenario runner. Fatal failures panic with *AbortError; Catch turns
// that panic back into an error.
type AbortTB struct {
	errors   []string
	cleanups []func()
}

// NewAbortTB creates an AbortTB.
func NewAbortTB() *AbortTB {
	return &AbortTB{}
}

// Helper is a no-op.
func (*AbortTB) Helper() {}

// Errorf records a failure message.
func (a *AbortTB) Errorf(format string, args ...any) {
	a.errors = append(a.errors, strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// FailNow aborts with the messages recorded so far.
func (a *AbortTB) FailNow() {
	msg := strings.Join(a.errors, "; ")
	if msg == "" {
		msg = "FailNow called"
	}
	panic(&AbortError{Message: msg})
}

// Fatalf records a message and aborts.
func (a *AbortTB) Fatalf(format string, args ...any) {
	a.Errorf(format, args...)
	a.FailNow()
}

// Cleanup registers fn to run on Close, last registered first.
func (a *AbortTB) Cleanup(fn func()) {
	a.cleanups = append(a.cleanups, fn)
}

// Close runs the registered cleanups.
func (a *AbortTB) Close() {
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		a.cleanups[i]()
	}
	a.cleanups = nil
}

// Messages returns the recorded failure messages.
func (a *AbortTB) Messages() []string {
	return append([]string(nil), a.errors...)
}

// Catch runs fn and returns the *AbortError it panicked with, if any.
// Other panics propagate.
func Catch(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			var abort *AbortError
			if e, ok := r.(error); ok && errors.As(e, &abort) {
				err = abort
				return
			}
			panic(r)
		}
	}()
	fn()
	return nil
}
