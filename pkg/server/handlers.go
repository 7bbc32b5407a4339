package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pario-ai/bistro/pkg/chat"
	"github.com/pario-ai/bistro/pkg/models"
)

const (
	maxBodyBytes     = 16 << 10
	maxMessageLength = 1000
	usageDateLayout  = "2006-01-02"
	defaultUsageDays = 30
)

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId"`
}

type chatResponse struct {
	Response       string        `json:"response"`
	Cached         bool          `json:"cached"`
	Source         models.Source `json:"source"`
	Topic          models.Topic  `json:"topic,omitempty"`
	ConversationID string        `json:"conversationId"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		writeJSONError(w, http.StatusBadRequest, "message is required")
		return
	}
	if utf8.RuneCountInString(req.Message) > maxMessageLength {
		writeJSONError(w, http.StatusBadRequest, "message is too long")
		return
	}
	if req.ConversationID == "" {
		req.ConversationID = uuid.NewString()
	}

	reply, err := s.chat.Respond(r.Context(), chat.Request{
		Prompt:         req.Message,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		// Guests never see a provider failure.
		s.logger.Error("chat respond failed",
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.Error(err))
		reply = models.Reply{
			Text:      s.chat.ContactMessage(),
			WasCached: true,
			Source:    models.SourceFallback,
		}
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Response:       reply.Text,
		Cached:         reply.WasCached,
		Source:         reply.Source,
		Topic:          reply.Topic,
		ConversationID: req.ConversationID,
	})
}

type publicStatus struct {
	Mode   string            `json:"mode"`
	Topics []models.Topic    `json:"topics"`
	Cache  models.CacheStats `json:"cache"`
	Cost   models.CostStats  `json:"cost"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.chat.Status(r.Context())
	writeJSON(w, http.StatusOK, publicStatus{
		Mode:   st.Mode,
		Topics: st.Topics,
		Cache:  st.Cache,
		Cost:   st.Cost,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.chat.Status(r.Context()))
}

func (s *Server) handleResetStats(w http.ResponseWriter, r *http.Request) {
	s.chat.ResetStats()
	s.logger.Info("answer counters reset", zap.String("request_id", RequestIDFromContext(r.Context())))
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	s.chat.ClearCache()
	s.logger.Info("response cache cleared", zap.String("request_id", RequestIDFromContext(r.Context())))
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

type usageResponse struct {
	Since   string                `json:"since"`
	Summary []models.UsageSummary `json:"summary"`
	Daily   []models.DailyUsage   `json:"daily"`
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	if s.usage == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "usage ledger disabled")
		return
	}

	since := time.Now().UTC().AddDate(0, 0, -defaultUsageDays).Truncate(24 * time.Hour)
	if raw := r.URL.Query().Get("since"); raw != "" {
		t, err := time.Parse(usageDateLayout, raw)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "since must be YYYY-MM-DD")
			return
		}
		since = t
	}

	summary, err := s.usage.Summary(r.Context(), since)
	if err != nil {
		s.logger.Error("usage summary", zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, "usage query failed")
		return
	}
	daily, err := s.usage.Daily(r.Context(), since)
	if err != nil {
		s.logger.Error("daily usage", zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, "usage query failed")
		return
	}

	writeJSON(w, http.StatusOK, usageResponse{
		Since:   since.Format(usageDateLayout),
		Summary: summary,
		Daily:   daily,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
