// Package errors annotates errors with context, user-facing detail,
// key-value data and the stack of the first annotation, while keeping
// the original (root) error available for comparison.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// New returns an error that formats as the given text.
func New(text string) error {
	return errors.New(text)
}

// Is and As forward to the standard library so callers need
// only import this package.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target interface{}) bool { return errors.As(err, target) }

// annotated is the error type produced by every function in
// this package. It is a value type; each annotation returns a
// modified copy.
type annotated struct {
	msg    string
	detail []string
	data   map[string]interface{}
	stack  []StackFrame
	root   error
}

func (e annotated) Error() string { return e.msg }

// Unwrap exposes the root error to errors.Is and errors.As.
func (e annotated) Unwrap() error { return e.root }

// Root returns the original error that was annotated by one or
// more calls to Wrap, WithDetail or WithData. If err was not
// produced by this package, it is returned unchanged.
func Root(err error) error {
	if a, ok := err.(annotated); ok {
		return a.root
	}
	return err
}

// annotate is the common path for every exported constructor.
// skip counts frames above the caller of annotate that are
// omitted from a freshly captured stack.
func annotate(err error, msg string, skip int) error {
	if err == nil {
		return nil
	}
	a, ok := err.(annotated)
	if !ok {
		a = annotated{
			root:  err,
			msg:   err.Error(),
			stack: getStack(skip+2, stackTraceSize),
		}
	}
	if msg != "" {
		a.msg = msg + ": " + a.msg
	}
	return a
}

// Wrap prefixes err's message with the arguments, formatted as
// in fmt.Sprint, and records a stack trace the first time err
// is annotated. Wrap returns nil if err is nil.
func Wrap(err error, a ...interface{}) error {
	return annotate(err, fmt.Sprint(a...), 1)
}

// Wrapf is like Wrap, formatting as in fmt.Sprintf.
func Wrapf(err error, format string, a ...interface{}) error {
	return annotate(err, fmt.Sprintf(format, a...), 1)
}

// WithDetail wraps err with text and also records text as a
// detail message, retrievable with Detail. Detail messages are
// meant to be shown to whoever supplied the failing input.
func WithDetail(err error, text string) error {
	if err == nil {
		return nil
	}
	if text == "" {
		return err
	}
	a := annotate(err, text, 1).(annotated)
	a.detail = append(a.detail[:len(a.detail):len(a.detail)], text)
	return a
}

// WithDetailf is like WithDetail, formatting as in fmt.Sprintf.
func WithDetailf(err error, format string, v ...interface{}) error {
	if err == nil {
		return nil
	}
	text := fmt.Sprintf(format, v...)
	a := annotate(err, text, 1).(annotated)
	a.detail = append(a.detail[:len(a.detail):len(a.detail)], text)
	return a
}

// Detail returns the detail messages attached to err, joined
// by "; ", or the empty string.
func Detail(err error) string {
	a, _ := err.(annotated)
	return strings.Join(a.detail, "; ")
}

// WithData returns err annotated with the key-value pairs in
// keyval (k1, v1, k2, v2, ...), merged over any data err
// already carries. Keys must be strings.
func WithData(err error, keyval ...interface{}) error {
	if err == nil {
		return nil
	}
	merged := make(map[string]interface{}, len(keyval)/2)
	for k, v := range Data(err) {
		merged[k] = v
	}
	for i := 0; i+1 < len(keyval); i += 2 {
		merged[keyval[i].(string)] = keyval[i+1]
	}
	a := annotate(err, "", 1).(annotated)
	a.data = merged
	return a
}

// Data returns the key-value data attached to err, if any.
func Data(err error) map[string]interface{} {
	a, _ := err.(annotated)
	return a.data
}

// Sub returns an error with new's root and message, carrying
// the stack, detail and data of old. It is useful for
// translating a low-level error into a package sentinel without
// losing context. Sub returns nil if old is nil.
func Sub(new, old error) error {
	if old == nil {
		return nil
	}
	a, ok := old.(annotated)
	if !ok {
		return annotate(new, "", 1)
	}
	a.root = new
	a.msg = new.Error() + ": " + a.msg
	return a
}
