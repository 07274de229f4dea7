package diag

import (
	"errors"
	"strings"
)

// List collects the errors of one unit in report order.
type List struct {
	errs []error
}

func (l *List) Add(err error) {
	if err != nil {
		l.errs = append(l.errs, err)
	}
}

func (l *List) Len() int { return len(l.errs) }

func (l *List) Errors() []error { return l.errs }

// Err returns the collected errors as one error, or nil when there are none.
func (l *List) Err() error {
	if len(l.errs) == 0 {
		return nil
	}
	return &ListError{Errs: append([]error(nil), l.errs...)}
}

// HasInternal reports whether any collected error is an InternalError.
func (l *List) HasInternal() bool {
	for _, err := range l.errs {
		var ie *InternalError
		if errors.As(err, &ie) {
			return true
		}
	}
	return false
}

// ListError is the error form of a List. errors.As walks every entry.
type ListError struct {
	Errs []error
}

func (e *ListError) Error() string {
	lines := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		lines[i] = err.Error()
	}
	return strings.Join(lines, "\n")
}

func (e *ListError) Unwrap() []error { return e.Errs }
