// Package mcp serves the assistant as Model Context Protocol tools over stdio,
// so that back-office agents can ask questions and read usage reports.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/pario-ai/bistro/pkg/chat"
	"github.com/pario-ai/bistro/pkg/models"
)

// Assistant answers questions and reports its state. *chat.Service implements it.
type Assistant interface {
	Respond(ctx context.Context, req chat.Request) (models.Reply, error)
	Status(ctx context.Context) models.ChatStatus
}

// UsageReporter is the read side of the usage ledger.
type UsageReporter interface {
	Summary(ctx context.Context, since time.Time) ([]models.UsageSummary, error)
	Daily(ctx context.Context, since time.Time) ([]models.DailyUsage, error)
}

// Server is a line-delimited JSON-RPC 2.0 server.
type Server struct {
	assistant Assistant
	usage     UsageReporter
	version   string
	logger    *zap.Logger
}

// New creates a Server. usage may be nil.
func New(a Assistant, usage UsageReporter, version string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		assistant: a,
		usage:     usage,
		version:   version,
		logger:    logger.With(zap.String("component", "mcp")),
	}
}

// Run reads one request per line from r and writes responses to w until r
// is exhausted or ctx is cancelled.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.write(w, errorResponse(nil, CodeParseError, "parse error"))
			continue
		}

		if resp := s.dispatch(ctx, &req); resp != nil {
			s.write(w, resp)
		}
	}
	return scanner.Err()
}

// dispatch returns nil for notifications.
func (s *Server) dispatch(ctx context.Context, req *Request) *Response {
	switch req.Method {
	case "initialize":
		return resultResponse(req.ID, InitializeResult{
			ProtocolVersion: protocolVersion,
			ServerInfo:      ServerInfo{Name: "bistro", Version: s.version},
			Capabilities:    map[string]any{"tools": map[string]any{}},
		})
	case "notifications/initialized":
		return nil
	case "tools/list":
		return resultResponse(req.ID, ToolsListResult{Tools: toolDefinitions()})
	case "tools/call":
		var params ToolCallParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(req.ID, CodeInvalidParams, "invalid params")
		}
		t, ok := findTool(params.Name)
		if !ok {
			return resultResponse(req.ID, errorResult(fmt.Sprintf("unknown tool: %s", params.Name)))
		}
		s.logger.Debug("tool call", zap.String("tool", params.Name))
		return resultResponse(req.ID, t.handle(ctx, s, params.Arguments))
	default:
		return errorResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("unknown method: %s", req.Method))
	}
}

func (s *Server) write(w io.Writer, resp *Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("marshal response", zap.Error(err))
		return
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		s.logger.Error("write response", zap.Error(err))
	}
}
