package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"financeangle/internal/log"
)

// Dispatcher maps JSON-RPC methods onto the tool registry. It holds no
// mutable state and is shared by every transport and connection.
type Dispatcher struct {
	registry *Registry
	logger   *log.Logger
	calls    *log.StructuredLogger
}

func NewDispatcher(registry *Registry, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentGateway)
	return &Dispatcher{
		registry: registry,
		logger:   logger,
		calls:    log.NewStructuredLogger(logger),
	}
}

// HandleRaw decodes one request and dispatches it. Bodies that are not a
// JSON-RPC request object get a parse error with a null id.
func (d *Dispatcher) HandleRaw(ctx context.Context, raw []byte) Response {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil || strings.TrimSpace(req.Method) == "" {
		d.logger.WarnContext(ctx, "Rejected malformed request", "bytes", len(raw))
		return NewError(nil, CodeParseError, "Invalid JSON")
	}
	return d.Dispatch(ctx, req)
}

// Dispatch produces exactly one response for req.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Response {
	d.logger.DebugContext(ctx, "Dispatching request", log.FieldRPCMethod, req.Method)

	switch req.Method {
	case "initialize":
		return NewResult(req.ID, initializeResult{
			ProtocolVersion: ProtocolVersion,
			ServerInfo:      serverInfo{Name: ServerName, Version: ServerVersion},
			Capabilities: serverCapabilities{
				Tools: toolsCapability{ListChanged: false, Call: callCapability{Parallel: true}},
			},
		})
	case "ping":
		return NewResult(req.ID, struct{}{})
	case "tools/list":
		return NewResult(req.ID, listResult[*mcp.Tool]{Items: d.registry.List(), key: "tools"})
	case "resources/list":
		return NewResult(req.ID, listResult[any]{key: "resources"})
	case "prompts/list":
		return NewResult(req.ID, listResult[any]{key: "prompts"})
	case "logging/setLevel":
		d.logger.InfoContext(ctx, fmt.Sprintf("logging/setLevel requested: %s", requestedLevel(req.Params)))
		return NewResult(req.ID, struct{}{})
	case "tools/call":
		return d.callTool(ctx, req)
	}
	return NewError(req.ID, CodeMethodNotFound, fmt.Sprintf("Method %s not implemented", req.Method))
}

func requestedLevel(params json.RawMessage) string {
	var p struct {
		Level string `json:"level"`
	}
	if err := json.Unmarshal(params, &p); err != nil || p.Level == "" {
		return "unspecified"
	}
	return p.Level
}

type callParams struct {
	ToolName  string          `json:"toolName"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

func (d *Dispatcher) callTool(ctx context.Context, req Request) Response {
	trimmed := bytes.TrimSpace(req.Params)
	var params callParams
	if len(trimmed) == 0 || trimmed[0] != '{' || json.Unmarshal(trimmed, &params) != nil {
		return NewError(req.ID, CodeServerError, "Invalid params for tools/call")
	}

	name := strings.TrimSpace(params.ToolName)
	if name == "" {
		name = strings.TrimSpace(params.Name)
	}
	if name == "" {
		d.logger.WarnContext(ctx, "tools/call without a tool name")
		return NewError(req.ID, CodeServerError, "toolName (or name) is required for tools/call")
	}

	tool, ok := d.registry.Lookup(name)
	if !ok {
		d.logger.WarnContext(ctx, "Unknown tool requested", log.FieldTool, name)
		return NewError(req.ID, CodeServerError, "Unknown tool "+name)
	}

	start := time.Now()
	result, err := d.invoke(ctx, tool, ParseArgs(params.Arguments))
	d.calls.LogToolCall(ctx, req.Method, name, time.Since(start).Milliseconds(), err)
	if err != nil {
		var te *ToolError
		if errors.As(err, &te) {
			return NewError(req.ID, te.Code, te.Message)
		}
		return NewError(req.ID, CodeServerError, err.Error())
	}
	return NewResult(req.ID, result)
}

// invoke runs the handler, turning a panic into a ToolError so the serving
// loop never dies with it.
func (d *Dispatcher) invoke(ctx context.Context, tool Tool, args Args) (result *mcp.CallToolResult, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			d.logger.ErrorContext(ctx, "Tool panicked", log.FieldTool, tool.Definition.Name, "panic", fmt.Sprint(recovered))
			result, err = nil, NewToolError(CodeServerError, "Tool execution failed")
		}
	}()

	result, err = tool.Handler(ctx, args)
	if err == nil && result == nil {
		result = &mcp.CallToolResult{Content: []mcp.Content{}}
	}
	if err != nil && strings.TrimSpace(err.Error()) == "" {
		err = NewToolError(CodeServerError, "Tool execution failed")
	}
	return result, err
}
