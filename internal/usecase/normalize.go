package usecase

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/V4T54L/loanapp/internal/domain"
	"github.com/pkg/errors"
)

type stackTracer interface {
	StackTrace() errors.StackTrace
}

type stacker interface {
	Stack() string
}

type namer interface {
	Name() string
}

// RecoveredError turns a recovered panic value into an error with a stack.
func RecoveredError(r any) error {
	if err, ok := r.(error); ok {
		return errors.WithStack(err)
	}
	return errors.Errorf("panic: %v", r)
}

// describeFailure extracts message, name and stack from an arbitrary failure
// value. It never panics: a misbehaving Error or Name method yields the
// defaults.
func describeFailure(failure any) (message, name string, stack *string) {
	defer func() {
		if r := recover(); r != nil {
			message, name, stack = domain.UnknownMessage, domain.DefaultErrorName, nil
		}
	}()

	message, name = domain.UnknownMessage, domain.DefaultErrorName
	if isNil(failure) {
		return message, name, nil
	}

	switch f := failure.(type) {
	case error:
		if m := f.Error(); m != "" {
			message = m
		}
		return message, errorName(f), errorStack(f)
	case map[string]any:
		if m, ok := f["message"].(string); ok && m != "" {
			message = m
		}
		if n, ok := f["name"].(string); ok && n != "" {
			name = n
		}
		if s, ok := f["stack"].(string); ok && s != "" {
			stack = &s
		}
	case map[string]string:
		if m := f["message"]; m != "" {
			message = m
		}
		if n := f["name"]; n != "" {
			name = n
		}
		if s := f["stack"]; s != "" {
			stack = &s
		}
	}
	return message, name, stack
}

// errorName walks the wrap chain and returns the first Name() or exported
// type name it finds.
func errorName(err error) string {
	for e := err; e != nil; e = errors.Unwrap(e) {
		if n, ok := e.(namer); ok {
			if s := n.Name(); s != "" {
				return s
			}
		}
		if s := exportedTypeName(e); s != "" {
			return s
		}
	}
	return domain.DefaultErrorName
}

func exportedTypeName(v any) string {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	s := t.Name()
	if r, _ := utf8.DecodeRuneInString(s); s != "" && unicode.IsUpper(r) {
		return s
	}
	return ""
}

// errorStack returns the stack of the outermost error in the chain that
// carries one.
func errorStack(err error) *string {
	for e := err; e != nil; e = errors.Unwrap(e) {
		switch st := e.(type) {
		case stackTracer:
			s := strings.TrimPrefix(fmt.Sprintf("%+v", st.StackTrace()), "\n")
			return &s
		case stacker:
			if s := st.Stack(); s != "" {
				return &s
			}
		}
	}
	return nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
