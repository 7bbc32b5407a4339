package models

import "time"

// Usage represents token usage from an LLM response.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// UsageRecord is one answered guest question as stored in the usage ledger.
type UsageRecord struct {
	ID               int64     `json:"id"`
	ConversationID   string    `json:"conversation_id,omitempty"`
	Source           Source    `json:"source"`
	Topic            Topic     `json:"topic,omitempty"`
	Model            string    `json:"model,omitempty"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	LatencyMs        int64     `json:"latency_ms"`
	Failed           bool      `json:"failed,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// UsageSummary aggregates ledger rows by source and model.
type UsageSummary struct {
	Source          Source `json:"source"`
	Model           string `json:"model"`
	RequestCount    int    `json:"request_count"`
	TotalPrompt     int    `json:"total_prompt"`
	TotalCompletion int    `json:"total_completion"`
	TotalTokens     int    `json:"total_tokens"`
}

// DailyUsage is a per-day breakdown of answers by source.
type DailyUsage struct {
	Day      string `json:"day"`
	Cached   int64  `json:"cached"`
	API      int64  `json:"api"`
	Fallback int64  `json:"fallback"`
	Tokens   int64  `json:"tokens"`
}
