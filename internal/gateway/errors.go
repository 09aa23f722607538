package gateway

import "fmt"

// ToolError is a handler failure that should reach the caller verbatim as a
// JSON-RPC error.
type ToolError struct {
	Code    int
	Message string
}

func (e *ToolError) Error() string {
	return e.Message
}

func NewToolError(code int, format string, args ...any) *ToolError {
	return &ToolError{Code: code, Message: fmt.Sprintf(format, args...)}
}
