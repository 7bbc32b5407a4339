package models

// BudgetPeriod defines the time window for a budget policy.
type BudgetPeriod string

const (
	BudgetDaily   BudgetPeriod = "daily"
	BudgetMonthly BudgetPeriod = "monthly"
)

// BudgetPolicy caps live API usage per period. A zero cap is unlimited.
type BudgetPolicy struct {
	MaxAPICalls int64        `json:"max_api_calls,omitempty" yaml:"max_api_calls"`
	MaxTokens   int64        `json:"max_tokens,omitempty" yaml:"max_tokens"`
	Period      BudgetPeriod `json:"period" yaml:"period"`
}

// BudgetStatus shows current usage against a policy.
type BudgetStatus struct {
	Policy    BudgetPolicy `json:"policy"`
	APICalls  int64        `json:"api_calls"`
	Tokens    int64        `json:"tokens"`
	Exhausted bool         `json:"exhausted"`
}
