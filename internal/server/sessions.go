package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/arbachegit/iconsai-core/internal/registry"
)

// historyResponse is the conversation snapshot for a device.
type historyResponse struct {
	SessionID string             `json:"sessionId"`
	UserName  string             `json:"userName,omitempty"`
	Messages  []registry.Message `json:"messages"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	device := r.PathValue("device")

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	h, err := s.sessions.RecentHistory(device, limit, r.URL.Query().Get("module"))
	if err != nil {
		s.registryError(w, err)
		return
	}
	if h.Messages == nil {
		h.Messages = []registry.Message{}
	}
	writeJSON(w, http.StatusOK, historyResponse{
		SessionID: h.SessionID,
		UserName:  h.UserName,
		Messages:  h.Messages,
	})
}

// saveMessageRequest appends one conversation turn.
type saveMessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Module  string `json:"module,omitempty"`
}

func (s *Server) handleSaveMessage(w http.ResponseWriter, r *http.Request) {
	device := r.PathValue("device")

	var req saveMessageRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed message: "+err.Error())
		return
	}
	if req.Role != "user" && req.Role != "assistant" {
		writeError(w, http.StatusBadRequest, `role must be "user" or "assistant"`)
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	info, err := s.sessions.GetOrCreate(device)
	if err != nil {
		s.registryError(w, err)
		return
	}

	id, err := s.sessions.SaveMessage(info.SessionID, req.Role, req.Content, req.Module)
	if err != nil {
		s.registryError(w, err)
		return
	}

	// User turns may carry a self-introduction worth remembering.
	userName := info.UserName
	if req.Role == "user" {
		userName = s.sessions.DetectName(info.SessionID, req.Content, info.UserName)
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"messageId": id,
		"sessionId": info.SessionID,
		"userName":  userName,
	})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	device := r.PathValue("device")

	info, err := s.sessions.GetOrCreate(device)
	if err != nil {
		s.registryError(w, err)
		return
	}
	s.sessions.EndSession(info.SessionID)

	writeJSON(w, http.StatusOK, map[string]string{
		"sessionId": info.SessionID,
		"status":    "ended",
	})
}

// registryError maps registry failures onto HTTP statuses.
func (s *Server) registryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrFull):
		writeError(w, http.StatusServiceUnavailable, "session table is full")
	case errors.Is(err, registry.ErrNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	default:
		s.log.Error("registry operation failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
