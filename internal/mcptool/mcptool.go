// Package mcptool offers the style extractor as an MCP tool.
package mcptool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"stylextract/pagestyle"
)

// Runner is satisfied by *pagestyle.Extractor.
type Runner interface {
	Run(ctx context.Context, raw string) string
}

type extractReq struct {
	URL string `json:"url"`
}

var inputSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"url": map[string]any{"type": "string", "description": "Page URL, e.g. https://www.google.com"},
	},
	"required": []string{"url"},
}

// Register adds the StyleExtractorTool to srv. The tool result is the plain
// tool string; extraction failures come back as "Error: ..." text rather
// than as tool errors.
func Register(srv *mcp.Server, runner Runner) {
	tool := &mcp.Tool{
		Name:        pagestyle.ToolName,
		Description: pagestyle.ToolDescription,
		InputSchema: inputSchema,
	}
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var r extractReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("invalid arguments: %w", err))
			return &res, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: runner.Run(ctx, r.URL)}},
		}, nil
	})
}

// NewServer builds an MCP server exposing only the extractor tool.
func NewServer(runner Runner, version string) *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: "stylextract", Version: version}, nil)
	Register(srv, runner)
	return srv
}
