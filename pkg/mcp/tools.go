package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/pario-ai/bistro/pkg/chat"
)

type askArgs struct {
	Question       string `json:"question"`
	ConversationID string `json:"conversation_id"`
}

type usageArgs struct {
	Since string `json:"since"`
}

type tool struct {
	def    ToolDefinition
	handle func(ctx context.Context, s *Server, args json.RawMessage) ToolCallResult
}

var tools = []tool{
	{
		def: ToolDefinition{
			Name:        "bistro_ask",
			Description: "Ask the restaurant assistant a guest question. Answers come from the cache, the AI provider or the canned topic table.",
			InputSchema: map[string]any{
				"type":     "object",
				"required": []string{"question"},
				"properties": map[string]any{
					"question": map[string]any{
						"type":        "string",
						"description": "The guest's question, e.g. \"Jakie jest menu?\"",
					},
					"conversation_id": map[string]any{
						"type":        "string",
						"description": "Conversation to continue (optional)",
					},
				},
			},
		},
		handle: handleAsk,
	},
	{
		def: ToolDefinition{
			Name:        "bistro_stats",
			Description: "Show how answers were served (cache, API, fallback), the savings rate and the estimated API cost.",
			InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
		},
		handle: handleStats,
	},
	{
		def: ToolDefinition{
			Name:        "bistro_usage",
			Description: "Show ledger usage by source and model, plus a per-day breakdown.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"since": map[string]any{
						"type":        "string",
						"description": "Start date in YYYY-MM-DD format (optional, defaults to the start of the month)",
					},
				},
			},
		},
		handle: handleUsage,
	},
	{
		def: ToolDefinition{
			Name:        "bistro_budget",
			Description: "Show live API usage against the configured budget policies.",
			InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
		},
		handle: handleBudget,
	},
}

func toolDefinitions() []ToolDefinition {
	defs := make([]ToolDefinition, len(tools))
	for i, t := range tools {
		defs[i] = t.def
	}
	return defs
}

func findTool(name string) (tool, bool) {
	for _, t := range tools {
		if t.def.Name == name {
			return t, true
		}
	}
	return tool{}, false
}

func handleAsk(ctx context.Context, s *Server, raw json.RawMessage) ToolCallResult {
	var args askArgs
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return errorResult("invalid arguments: " + err.Error())
		}
	}
	if strings.TrimSpace(args.Question) == "" {
		return errorResult("question is required")
	}

	reply, err := s.assistant.Respond(ctx, chat.Request{
		Prompt:         args.Question,
		ConversationID: args.ConversationID,
	})
	if err != nil {
		if errors.Is(err, chat.ErrUpstream) {
			return errorResult("the AI provider failed and no canned answer matched: " + err.Error())
		}
		return errorResult(err.Error())
	}
	return textResult(formatReply(reply))
}

func handleStats(ctx context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	return textResult(formatStatus(s.assistant.Status(ctx)))
}

func handleUsage(ctx context.Context, s *Server, raw json.RawMessage) ToolCallResult {
	if s.usage == nil {
		return errorResult("usage ledger is not available")
	}

	var args usageArgs
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return errorResult("invalid arguments: " + err.Error())
		}
	}

	now := time.Now().UTC()
	since := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	if args.Since != "" {
		t, err := time.Parse("2006-01-02", args.Since)
		if err != nil {
			return errorResult("invalid since date, expected YYYY-MM-DD")
		}
		since = t
	}

	summary, err := s.usage.Summary(ctx, since)
	if err != nil {
		return errorResult("usage summary failed: " + err.Error())
	}
	daily, err := s.usage.Daily(ctx, since)
	if err != nil {
		return errorResult("daily usage failed: " + err.Error())
	}
	return textResult(formatSummary(summary) + "\n" + formatDaily(daily))
}

func handleBudget(ctx context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	return textResult(formatBudgetStatus(s.assistant.Status(ctx).Budget))
}
