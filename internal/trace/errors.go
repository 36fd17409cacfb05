package trace

import (
	"fmt"
	"reflect"
)

// ErrorInfo is the normalized form any failure takes on the wire.
type ErrorInfo struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
	Code    string `json:"code,omitempty"`
}

// Error implements the error interface so normalized remote errors can
// flow back through ordinary error returns.
func (e *ErrorInfo) Error() string {
	if e.Name == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

type coder interface{ Code() string }

type stackCarrier interface{ Stack() string }

// NormalizeError converts any recovered or returned value into an
// ErrorInfo. Already-normalized values pass through; errors keep their
// concrete type name; anything else is stringified.
func NormalizeError(v any) *ErrorInfo {
	switch e := v.(type) {
	case nil:
		return nil
	case *ErrorInfo:
		return e
	case ErrorInfo:
		return &e
	case error:
		info := &ErrorInfo{
			Name:    errorName(e),
			Message: e.Error(),
		}
		if c, ok := e.(coder); ok {
			info.Code = c.Code()
		}
		if s, ok := e.(stackCarrier); ok {
			info.Stack = s.Stack()
		}
		return info
	case string:
		return &ErrorInfo{Name: "Error", Message: e}
	default:
		return &ErrorInfo{Name: "Error", Message: fmt.Sprint(v)}
	}
}

func errorName(err error) string {
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if name := t.Name(); name != "" && name != "errorString" {
		return name
	}
	return "Error"
}
