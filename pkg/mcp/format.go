package mcp

import (
	"fmt"
	"strings"

	"github.com/pario-ai/bistro/pkg/models"
)

func formatReply(r models.Reply) string {
	var b strings.Builder
	b.WriteString(r.Text)
	fmt.Fprintf(&b, "\n\n[source: %s, cached: %t", r.Source, r.WasCached)
	if r.Topic != "" {
		fmt.Fprintf(&b, ", topic: %s", r.Topic)
	}
	b.WriteString("]")
	return b.String()
}

func formatStatus(st models.ChatStatus) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Mode: %s\n", st.Mode)
	if st.Model != "" {
		fmt.Fprintf(&b, "Model: %s (breaker %s)\n", st.Model, st.Breaker)
	}
	fmt.Fprintf(&b, "\nAnswers\n"+
		"  Cached:    %d\n"+
		"  API:       %d\n"+
		"  Fallback:  %d\n"+
		"  Total:     %d\n"+
		"  Savings:   %.1f%%\n"+
		"  Est. cost: $%.4f\n",
		st.Cost.Cached, st.Cost.API, st.Cost.Fallback, st.Cost.Total,
		st.Cost.SavingsRate*100, st.Cost.EstimatedCost)
	b.WriteString("\n" + formatCacheStats(st.Cache))
	return b.String()
}

// formatSummary formats usage summaries as a text table.
func formatSummary(rows []models.UsageSummary) string {
	if len(rows) == 0 {
		return "No usage data found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-10s %-25s %8s %10s %10s %10s\n",
		"Source", "Model", "Requests", "Prompt", "Completion", "Total")
	b.WriteString(strings.Repeat("-", 78) + "\n")
	for _, r := range rows {
		model := r.Model
		if model == "" {
			model = "-"
		}
		fmt.Fprintf(&b, "%-10s %-25s %8d %10d %10d %10d\n",
			r.Source, model, r.RequestCount, r.TotalPrompt, r.TotalCompletion, r.TotalTokens)
	}
	return b.String()
}

func formatDaily(days []models.DailyUsage) string {
	if len(days) == 0 {
		return "No daily usage found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-10s %8s %8s %8s %10s\n", "Day", "Cached", "API", "Fallback", "Tokens")
	b.WriteString(strings.Repeat("-", 48) + "\n")
	for _, d := range days {
		fmt.Fprintf(&b, "%-10s %8d %8d %8d %10d\n", d.Day, d.Cached, d.API, d.Fallback, d.Tokens)
	}
	return b.String()
}

// formatBudgetStatus formats budget statuses as a text table.
func formatBudgetStatus(statuses []models.BudgetStatus) string {
	if len(statuses) == 0 {
		return "No budget policies configured."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-8s %10s %10s %12s %12s %9s\n",
		"Period", "Max Calls", "Calls", "Max Tokens", "Tokens", "Exhausted")
	b.WriteString(strings.Repeat("-", 66) + "\n")
	for _, s := range statuses {
		fmt.Fprintf(&b, "%-8s %10s %10d %12s %12d %9t\n",
			s.Policy.Period, limit(s.Policy.MaxAPICalls), s.APICalls,
			limit(s.Policy.MaxTokens), s.Tokens, s.Exhausted)
	}
	return b.String()
}

func limit(n int64) string {
	if n <= 0 {
		return "-"
	}
	return fmt.Sprint(n)
}

// formatCacheStats formats cache stats as text.
func formatCacheStats(stats models.CacheStats) string {
	total := stats.Hits + stats.Misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total) * 100
	}
	return fmt.Sprintf("Cache\n"+
		"  Entries:   %d\n"+
		"  Hits:      %d\n"+
		"  Misses:    %d\n"+
		"  Evictions: %d\n"+
		"  Hit rate:  %.1f%%\n",
		stats.Entries, stats.Hits, stats.Misses, stats.Evictions, hitRate)
}
