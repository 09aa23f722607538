package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Handler executes one tool call.
type Handler func(ctx context.Context, args Args) (*mcp.CallToolResult, error)

// Tool pairs an advertised definition with its handler.
type Tool struct {
	Definition *mcp.Tool
	Handler    Handler
}

// Registry is the fixed tool table. It is built once and only read after.
type Registry struct {
	tools []Tool
	index map[string]int
}

// NewRegistry keeps tools in the given order. Nil definitions or handlers,
// blank names and duplicates are rejected.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{
		tools: make([]Tool, 0, len(tools)),
		index: make(map[string]int, len(tools)),
	}
	for i, t := range tools {
		if t.Definition == nil || t.Handler == nil {
			return nil, fmt.Errorf("tool %d: definition and handler are required", i)
		}
		name := strings.TrimSpace(t.Definition.Name)
		if name == "" {
			return nil, fmt.Errorf("tool %d: name is required", i)
		}
		if _, dup := r.index[name]; dup {
			return nil, fmt.Errorf("duplicate tool name %q", name)
		}
		r.index[name] = len(r.tools)
		r.tools = append(r.tools, t)
	}
	return r, nil
}

func (r *Registry) Lookup(name string) (Tool, bool) {
	i, ok := r.index[name]
	if !ok {
		return Tool{}, false
	}
	return r.tools[i], true
}

// List returns the definitions in registration order.
func (r *Registry) List() []*mcp.Tool {
	defs := make([]*mcp.Tool, len(r.tools))
	for i, t := range r.tools {
		defs[i] = t.Definition
	}
	return defs
}

func (r *Registry) Len() int {
	return len(r.tools)
}
