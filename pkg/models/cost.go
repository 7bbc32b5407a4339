package models

// CostStats summarises how requests were answered and what the API calls cost.
type CostStats struct {
	Cached        int64   `json:"cached"`
	API           int64   `json:"api"`
	Fallback      int64   `json:"fallback"`
	Total         int64   `json:"total"`
	SavingsRate   float64 `json:"savings_rate"`
	EstimatedCost float64 `json:"estimated_cost"`
}

// UsageCounters are the raw per-process answer counts.
type UsageCounters struct {
	Cached   int64 `json:"cached"`
	API      int64 `json:"api"`
	Fallback int64 `json:"fallback"`
}
