package errors

import (
	"fmt"
	"runtime"
)

const stackTraceSize = 10

// StackFrame is one entry in a captured stack trace.
type StackFrame struct {
	Func string
	File string
	Line int
}

func (f StackFrame) String() string {
	return fmt.Sprintf("%s:%d - %s", f.File, f.Line, f.Func)
}

// Stack returns the stack captured when err was first
// annotated by this package, or nil.
func Stack(err error) []StackFrame {
	if a, ok := err.(annotated); ok {
		return a.stack
	}
	return nil
}

func getStack(skip int, size int) []StackFrame {
	pcs := make([]uintptr, size)
	n := runtime.Callers(skip+1, pcs)
	if n == 0 {
		return nil
	}
	frames := runtime.CallersFrames(pcs[:n])

	var trace []StackFrame
	for {
		f, more := frames.Next()
		trace = append(trace, StackFrame{Func: f.Function, File: f.File, Line: f.Line})
		if !more {
			break
		}
	}
	return trace
}
