package bridge

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

// Client is the subset of an MCP client the manager needs.
type Client interface {
	Initialize(ctx context.Context, request mcp.InitializeRequest) (*mcp.InitializeResult, error)
	ListTools(ctx context.Context, request mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// Dialer opens a client for cfg. The returned client has not been initialized.
type Dialer func(ctx context.Context, cfg ServerConfig, logger *slog.Logger) (Client, error)

// Dial opens an mcp-go client over the transport cfg selects.
func Dial(ctx context.Context, cfg ServerConfig, logger *slog.Logger) (Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Resolved() {
	case TransportStdio:
		c, err := mcpclient.NewStdioMCPClient(cfg.Command, cfg.envSlice(), cfg.Args...)
		if err != nil {
			return nil, fmt.Errorf("launch %s: %w", cfg.Command, err)
		}
		if stderr, ok := mcpclient.GetStderr(c); ok {
			go func() {
				sc := bufio.NewScanner(stderr)
				for sc.Scan() {
					logger.Debug("bridge stderr", "line", sc.Text())
				}
			}()
		}
		return c, nil

	default:
		var opts []transport.StreamableHTTPCOption
		if len(cfg.Headers) > 0 {
			opts = append(opts, transport.WithHTTPHeaders(cfg.Headers))
		}
		t, err := transport.NewStreamableHTTP(cfg.URL, opts...)
		if err != nil {
			return nil, fmt.Errorf("create http transport: %w", err)
		}
		c := mcpclient.NewClient(t)
		if err := c.Start(ctx); err != nil {
			return nil, fmt.Errorf("start http client: %w", err)
		}
		return c, nil
	}
}
