package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/armatrix/kaya"
	"github.com/armatrix/kaya/internal/schema"
)

// remoteHandle forwards a capability to one tool of a bridge.
type remoteHandle struct {
	m    *Manager
	tool string
}

var (
	_ kaya.Handle       = (*remoteHandle)(nil)
	_ kaya.Availability = (*remoteHandle)(nil)
)

func (h *remoteHandle) Kind() kaya.Kind { return kaya.KindRemote }

// Available is false while the bridge is down or when the server does not
// offer the tool.
func (h *remoteHandle) Available() bool {
	_, _, ok := h.m.lookup(h.tool)
	return ok
}

func (h *remoteHandle) Description() string {
	if t, _, _ := h.m.lookup(h.tool); t.Description != "" {
		return t.Description
	}
	return fmt.Sprintf("Tool %q provided by the %s bridge", h.tool, h.m.name)
}

func (h *remoteHandle) Schema() anthropic.ToolInputSchemaParam {
	t, _, _ := h.m.lookup(h.tool)
	if t.RawInputSchema != nil {
		return schema.FromRaw(t.RawInputSchema)
	}
	raw, err := json.Marshal(t.InputSchema)
	if err != nil {
		return anthropic.ToolInputSchemaParam{}
	}
	return schema.FromRaw(raw)
}

func (h *remoteHandle) Invoke(ctx context.Context, input json.RawMessage) (*kaya.ToolResult, error) {
	args, err := decodeArgs(input)
	if err != nil {
		return kaya.ErrorResult(fmt.Sprintf("invalid input: %s", err)), nil
	}

	h.m.logger.Debug("bridge call", "tool", h.tool)
	res, err := h.m.call(ctx, h.tool, args)
	if err != nil {
		h.m.logger.Warn("bridge call failed", "tool", h.tool, slog.Any("error", err))
		return kaya.ErrorResult(fmt.Sprintf("%s: %s", ToolName(h.m.name, h.tool), err)), nil
	}
	return convertResult(res), nil
}

// convertResult maps MCP content onto message content blocks. Images are
// kept as images; anything else unknown is passed along as JSON text.
func convertResult(res *mcp.CallToolResult) *kaya.ToolResult {
	out := &kaya.ToolResult{IsError: res.IsError}
	for _, c := range res.Content {
		switch v := c.(type) {
		case mcp.TextContent:
			out.Content = append(out.Content, anthropic.NewTextBlock(v.Text))
		case *mcp.TextContent:
			out.Content = append(out.Content, anthropic.NewTextBlock(v.Text))
		case mcp.ImageContent:
			out.Content = append(out.Content, anthropic.NewImageBlockBase64(v.MIMEType, v.Data))
		case *mcp.ImageContent:
			out.Content = append(out.Content, anthropic.NewImageBlockBase64(v.MIMEType, v.Data))
		default:
			if data, err := json.Marshal(v); err == nil {
				out.Content = append(out.Content, anthropic.NewTextBlock(string(data)))
			}
		}
	}
	if len(out.Content) == 0 && res.StructuredContent != nil {
		if data, err := json.Marshal(res.StructuredContent); err == nil {
			out.Content = append(out.Content, anthropic.NewTextBlock(string(data)))
		}
	}
	if len(out.Content) == 0 {
		out.Content = append(out.Content, anthropic.NewTextBlock("(no output)"))
	}
	return out
}
