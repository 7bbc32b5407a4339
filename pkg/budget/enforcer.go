package budget

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pario-ai/bistro/pkg/models"
)

// ErrBudgetExceeded is returned when live API usage has reached a policy cap.
var ErrBudgetExceeded = errors.New("budget exceeded")

// Usage is the subset of the ledger the enforcer reads.
type Usage interface {
	APICallsSince(ctx context.Context, since time.Time) (int64, error)
	TokensSince(ctx context.Context, since time.Time) (int64, error)
}

// Enforcer checks API usage against budget policies.
type Enforcer struct {
	policies []models.BudgetPolicy
	usage    Usage
	now      func() time.Time
}

// New creates an Enforcer with the given policies and usage source.
func New(policies []models.BudgetPolicy, u Usage) *Enforcer {
	return &Enforcer{policies: policies, usage: u, now: time.Now}
}

// Check returns ErrBudgetExceeded if any policy is exhausted.
func (e *Enforcer) Check(ctx context.Context) error {
	statuses, err := e.Status(ctx)
	if err != nil {
		return fmt.Errorf("budget check: %w", err)
	}
	for _, s := range statuses {
		if s.Exhausted {
			return ErrBudgetExceeded
		}
	}
	return nil
}

// Status returns current usage for every policy.
func (e *Enforcer) Status(ctx context.Context) ([]models.BudgetStatus, error) {
	statuses := make([]models.BudgetStatus, 0, len(e.policies))

	for _, p := range e.policies {
		since := periodStart(p.Period, e.now())
		calls, err := e.usage.APICallsSince(ctx, since)
		if err != nil {
			return nil, fmt.Errorf("budget status: %w", err)
		}
		tokens, err := e.usage.TokensSince(ctx, since)
		if err != nil {
			return nil, fmt.Errorf("budget status: %w", err)
		}
		exhausted := (p.MaxAPICalls > 0 && calls >= p.MaxAPICalls) ||
			(p.MaxTokens > 0 && tokens >= p.MaxTokens)
		statuses = append(statuses, models.BudgetStatus{
			Policy:    p,
			APICalls:  calls,
			Tokens:    tokens,
			Exhausted: exhausted,
		})
	}
	return statuses, nil
}

func periodStart(period models.BudgetPeriod, now time.Time) time.Time {
	now = now.UTC()
	switch period {
	case models.BudgetMonthly:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	default: // daily
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
}
