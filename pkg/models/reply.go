package models

// Source classifies where an answer came from.
type Source string

const (
	SourceCache    Source = "cache"
	SourceAPI      Source = "api"
	SourceFallback Source = "fallback"
)

// Topic is a key of the canned-answer table.
type Topic string

const (
	TopicMenu        Topic = "menu"
	TopicHours       Topic = "hours"
	TopicLocation    Topic = "location"
	TopicDelivery    Topic = "delivery"
	TopicReservation Topic = "reservation"
	TopicPayment     Topic = "payment"
	TopicLoyalty     Topic = "loyalty"
	TopicEvents      Topic = "events"
	TopicPromotions  Topic = "promotions"
)

// Reply is the answer returned to a guest.
// Topic is set only for fallback answers that matched a topic.
type Reply struct {
	Text      string `json:"text"`
	WasCached bool   `json:"was_cached"`
	Source    Source `json:"source"`
	Topic     Topic  `json:"topic,omitempty"`
}

// ChatStatus is a point-in-time view of the assistant for the status endpoint.
type ChatStatus struct {
	Mode     string         `json:"mode"`
	Model    string         `json:"model,omitempty"`
	Breaker  string         `json:"breaker,omitempty"`
	BudgetOK bool           `json:"budget_ok"`
	Topics   []Topic        `json:"topics"`
	Cache    CacheStats     `json:"cache"`
	Cost     CostStats      `json:"cost"`
	Budget   []BudgetStatus `json:"budget,omitempty"`
}
