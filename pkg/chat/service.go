// Package chat answers guest questions from the cache, the chat completion
// API or the canned fallback table, and accounts for every answer.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pario-ai/bistro/pkg/budget"
	"github.com/pario-ai/bistro/pkg/cache"
	"github.com/pario-ai/bistro/pkg/cost"
	"github.com/pario-ai/bistro/pkg/fallback"
	"github.com/pario-ai/bistro/pkg/history"
	"github.com/pario-ai/bistro/pkg/metrics"
	"github.com/pario-ai/bistro/pkg/models"
	"github.com/pario-ai/bistro/pkg/upstream"
)

const (
	ModeLive = "live"
	ModeDemo = "demo"
)

var (
	// ErrUpstream is returned when the API failed and no canned answer matched.
	ErrUpstream = errors.New("chat: upstream failed and no fallback matched")
)

// Completer generates answers. *upstream.Client implements it.
type Completer interface {
	Configured() bool
	Model() string
	BreakerState() string
	Complete(ctx context.Context, messages []models.ChatMessage) (*upstream.Completion, error)
}

// Recorder persists answered questions. *ledger.SQLiteLedger implements it.
type Recorder interface {
	Record(ctx context.Context, rec models.UsageRecord) error
}

// BudgetChecker gates live API calls. *budget.Enforcer implements it.
type BudgetChecker interface {
	Check(ctx context.Context) error
	Status(ctx context.Context) ([]models.BudgetStatus, error)
}

// Options tunes the service.
type Options struct {
	SystemPrompt string
	// HistoryTurns is how many previous question/answer pairs are sent along.
	HistoryTurns int
}

// Deps are the collaborators of a Service. Cache, Fallback and Cost are
// required; the rest may be nil.
type Deps struct {
	Cache    *cache.ResponseCache
	Fallback *fallback.Responder
	Upstream Completer
	History  history.Store
	Cost     *cost.Tracker
	Ledger   Recorder
	Budget   BudgetChecker
	Metrics  *metrics.Collector
	Logger   *zap.Logger
}

// Request is one guest question.
type Request struct {
	Prompt         string
	ConversationID string
}

// Service is the chat pipeline.
type Service struct {
	opts Options
	deps Deps
	log  *zap.Logger
}

// New creates a Service.
func New(opts Options, deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.HistoryTurns < 0 {
		opts.HistoryTurns = 0
	}
	return &Service{
		opts: opts,
		deps: deps,
		log:  logger.With(zap.String("component", "chat")),
	}
}

// Live reports whether questions may reach the completion API.
func (s *Service) Live() bool {
	return s.deps.Upstream != nil && s.deps.Upstream.Configured()
}

// Respond answers a guest question. It returns ErrUpstream only when the
// API failed and the question matched no canned topic.
func (s *Service) Respond(ctx context.Context, req Request) (models.Reply, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		// Nothing to ask about; the guest gets the contact message.
		return s.answerOffline(ctx, req, prompt), nil
	}

	if hit, ok := s.deps.Cache.Get(prompt); ok {
		reply := models.Reply{Text: hit.Text, WasCached: true, Source: hit.Source, Topic: hit.Topic}
		s.account(ctx, req, reply, usage{})
		return reply, nil
	}

	if !s.Live() {
		return s.answerOffline(ctx, req, prompt), nil
	}
	if s.budgetExhausted(ctx) {
		return s.answerOffline(ctx, req, prompt), nil
	}

	messages := s.buildMessages(ctx, req.ConversationID, prompt)

	start := time.Now()
	completion, err := s.deps.Upstream.Complete(ctx, messages)
	latency := time.Since(start)
	if err != nil {
		return s.degrade(ctx, req, prompt, latency, err)
	}

	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordUpstream(latency, completion.Usage.PromptTokens, completion.Usage.CompletionTokens)
	}

	s.deps.Cache.Set(prompt, completion.Text)
	s.appendHistory(ctx, req.ConversationID, prompt, completion.Text)

	reply := models.Reply{Text: completion.Text, Source: models.SourceAPI}
	s.account(ctx, req, reply, usage{
		model:     completion.Model,
		tokens:    completion.Usage,
		latencyMs: latency.Milliseconds(),
	})
	return reply, nil
}

// answerOffline serves a canned answer, or the contact message when no topic matches.
func (s *Service) answerOffline(ctx context.Context, req Request, prompt string) models.Reply {
	reply := models.Reply{
		Text:      s.deps.Fallback.ContactMessage(),
		WasCached: true,
		Source:    models.SourceFallback,
	}
	if ans, ok := s.deps.Fallback.Match(prompt); ok {
		reply.Text = ans.Text
		reply.Topic = ans.Topic
	}
	s.account(ctx, req, reply, usage{})
	return reply
}

func (s *Service) degrade(ctx context.Context, req Request, prompt string, latency time.Duration, cause error) (models.Reply, error) {
	reason := failureReason(cause)
	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordUpstreamError(reason)
	}

	ans, ok := s.deps.Fallback.Match(prompt)
	if !ok {
		s.log.Error("completion failed without fallback",
			zap.String("reason", reason), zap.Error(cause))
		s.account(ctx, req, models.Reply{Source: models.SourceAPI}, usage{
			latencyMs: latency.Milliseconds(),
			failed:    true,
		})
		return models.Reply{}, fmt.Errorf("%w: %w", ErrUpstream, cause)
	}

	s.log.Warn("completion failed, serving fallback",
		zap.String("reason", reason),
		zap.String("topic", string(ans.Topic)),
		zap.Error(cause))
	reply := models.Reply{Text: ans.Text, WasCached: true, Source: models.SourceFallback, Topic: ans.Topic}
	s.account(ctx, req, reply, usage{latencyMs: latency.Milliseconds(), failed: true})
	return reply, nil
}

func (s *Service) budgetExhausted(ctx context.Context) bool {
	if s.deps.Budget == nil {
		return false
	}
	err := s.deps.Budget.Check(ctx)
	switch {
	case err == nil:
		return false
	case errors.Is(err, budget.ErrBudgetExceeded):
		s.log.Info("api budget exhausted, answering offline")
		return true
	default:
		// An unreadable ledger must not silence the assistant.
		s.log.Warn("budget check failed", zap.Error(err))
		return false
	}
}

func (s *Service) buildMessages(ctx context.Context, conversationID, prompt string) []models.ChatMessage {
	messages := []models.ChatMessage{{Role: models.RoleSystem, Content: s.opts.SystemPrompt}}

	if s.deps.History != nil && conversationID != "" && s.opts.HistoryTurns > 0 {
		past, err := s.deps.History.Recent(ctx, conversationID, s.opts.HistoryTurns*2)
		if err != nil {
			s.log.Warn("load history", zap.String("conversation_id", conversationID), zap.Error(err))
		}
		messages = append(messages, past...)
	}
	return append(messages, models.ChatMessage{Role: models.RoleUser, Content: prompt})
}

func (s *Service) appendHistory(ctx context.Context, conversationID, prompt, answer string) {
	if s.deps.History == nil || conversationID == "" {
		return
	}
	err := s.deps.History.Append(ctx, conversationID,
		models.ChatMessage{Role: models.RoleUser, Content: prompt},
		models.ChatMessage{Role: models.RoleAssistant, Content: answer},
	)
	if err != nil {
		s.log.Warn("save history", zap.String("conversation_id", conversationID), zap.Error(err))
	}
}

type usage struct {
	model     string
	tokens    models.Usage
	latencyMs int64
	failed    bool
}

// account counts one answer in the tracker, metrics and ledger.
func (s *Service) account(ctx context.Context, req Request, reply models.Reply, u usage) {
	s.deps.Cost.TrackSource(reply.Source)

	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordResponse(string(reply.Source))
		s.deps.Metrics.SetCacheEntries(s.deps.Cache.Len())
	}

	if s.deps.Ledger == nil {
		return
	}
	rec := models.UsageRecord{
		ConversationID:   req.ConversationID,
		Source:           reply.Source,
		Topic:            reply.Topic,
		Model:            u.model,
		PromptTokens:     u.tokens.PromptTokens,
		CompletionTokens: u.tokens.CompletionTokens,
		TotalTokens:      u.tokens.TotalTokens,
		LatencyMs:        u.latencyMs,
		Failed:           u.failed,
	}
	if err := s.deps.Ledger.Record(context.WithoutCancel(ctx), rec); err != nil {
		s.log.Warn("record usage", zap.Error(err))
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, upstream.ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, upstream.ErrStatus):
		return "status"
	case errors.Is(err, upstream.ErrEmptyResponse):
		return "empty"
	default:
		return "transport"
	}
}

// Status reports the current mode and counters.
func (s *Service) Status(ctx context.Context) models.ChatStatus {
	st := models.ChatStatus{
		Mode:     ModeDemo,
		BudgetOK: true,
		Topics:   s.deps.Fallback.Topics(),
		Cache:    s.deps.Cache.Stats(),
		Cost:     s.deps.Cost.Stats(),
	}
	if s.Live() {
		st.Mode = ModeLive
		st.Model = s.deps.Upstream.Model()
		st.Breaker = s.deps.Upstream.BreakerState()
	}
	if s.deps.Budget != nil {
		statuses, err := s.deps.Budget.Status(ctx)
		if err != nil {
			s.log.Warn("budget status", zap.Error(err))
		}
		st.Budget = statuses
		for _, b := range statuses {
			if b.Exhausted {
				st.BudgetOK = false
			}
		}
	}
	return st
}

// ResetStats zeroes the answer counters.
func (s *Service) ResetStats() {
	s.deps.Cost.Reset()
}

// ClearCache drops every cached answer.
func (s *Service) ClearCache() {
	s.deps.Cache.Clear()
	if s.deps.Metrics != nil {
		s.deps.Metrics.SetCacheEntries(0)
	}
}

// ContactMessage is the reply used when nothing better is available.
func (s *Service) ContactMessage() string {
	return s.deps.Fallback.ContactMessage()
}
