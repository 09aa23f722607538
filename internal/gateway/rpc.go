// Package gateway implements the JSON-RPC tool dispatcher that fronts the
// Finance Angle backend. Transports hand it raw request bytes and write back
// whatever Response it produces.
package gateway

import "encoding/json"

const (
	JSONRPCVersion  = "2.0"
	ProtocolVersion = "2024-11-05"
	ServerName      = "finance-angle-mcp"
	ServerVersion   = "0.1.0"
)

// JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeServerError    = -32000
)

// Request is one JSON-RPC call. ID is kept raw so it can be echoed exactly.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response carries either Result or Error. A nil ID marshals as null.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return e.Message
}

// NewResult builds a success response for id.
func NewResult(id json.RawMessage, result any) Response {
	return Response{JSONRPC: JSONRPCVersion, ID: normalizeID(id), Result: result}
}

// NewError builds an error response for id.
func NewError(id json.RawMessage, code int, message string) Response {
	return Response{
		JSONRPC: JSONRPCVersion,
		ID:      normalizeID(id),
		Error:   &RPCError{Code: code, Message: message},
	}
}

func normalizeID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return nil
	}
	return id
}

type initializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	ServerInfo      serverInfo         `json:"serverInfo"`
	Capabilities    serverCapabilities `json:"capabilities"`
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type serverCapabilities struct {
	Tools   toolsCapability `json:"tools"`
	Logging struct{}        `json:"logging"`
}

type toolsCapability struct {
	ListChanged bool           `json:"listChanged"`
	Call        callCapability `json:"call"`
}

type callCapability struct {
	Parallel bool `json:"parallel"`
}

type listResult[T any] struct {
	NextCursor *string `json:"nextCursor"`
	Items      []T     `json:"-"`
	key        string
}

// MarshalJSON writes the items under their method-specific key next to a
// null cursor, e.g. {"nextCursor":null,"tools":[...]}.
func (l listResult[T]) MarshalJSON() ([]byte, error) {
	items := l.Items
	if items == nil {
		items = []T{}
	}
	return json.Marshal(map[string]any{
		"nextCursor": l.NextCursor,
		l.key:        items,
	})
}
