package server

import (
	"net/http"

	"github.com/arbachegit/iconsai-core/internal/karaoke"
)

// clockSyncRequest is one NTP-style probe from a client. ClientRecvTime
// completes the previous sample when present; zero means this is the opening
// half of a new sample.
type clockSyncRequest struct {
	SessionID      string  `json:"sessionId"`
	ClientSendTime float64 `json:"clientSendTime"`
	ClientRecvTime float64 `json:"clientRecvTime,omitempty"`
}

func (s *Server) handleClockSync(w http.ResponseWriter, r *http.Request) {
	var req clockSyncRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed clock-sync request: "+err.Error())
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "sessionId is required")
		return
	}
	if req.ClientSendTime <= 0 {
		writeError(w, http.StatusBadRequest, "clientSendTime is required")
		return
	}

	status := s.coord.ProcessClockSync(req.SessionID, req.ClientSendTime, req.ClientRecvTime)
	writeJSON(w, http.StatusOK, status)
}

// playbackRequest addresses one sync session.
type playbackRequest struct {
	SessionID string `json:"sessionId"`
}

// playbackResponse reports the session's sync state after a transition.
type playbackResponse struct {
	SessionID   string        `json:"sessionId"`
	State       karaoke.State `json:"state"`
	LookaheadMs float64       `json:"lookaheadMs"`
}

func (s *Server) playbackSession(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req playbackRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed playback request: "+err.Error())
		return "", false
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "sessionId is required")
		return "", false
	}
	return req.SessionID, true
}

func (s *Server) handlePlaybackStart(w http.ResponseWriter, r *http.Request) {
	id, ok := s.playbackSession(w, r)
	if !ok {
		return
	}
	st := s.coord.StartPlayback(id)
	writeJSON(w, http.StatusOK, playbackResponse{
		SessionID:   id,
		State:       st,
		LookaheadMs: s.coord.Lookahead(id),
	})
}

func (s *Server) handlePlaybackPause(w http.ResponseWriter, r *http.Request) {
	id, ok := s.playbackSession(w, r)
	if !ok {
		return
	}
	st := s.coord.PausePlayback(id)
	writeJSON(w, http.StatusOK, playbackResponse{
		SessionID:   id,
		State:       st,
		LookaheadMs: s.coord.Lookahead(id),
	})
}

func (s *Server) handlePlaybackEnd(w http.ResponseWriter, r *http.Request) {
	id, ok := s.playbackSession(w, r)
	if !ok {
		return
	}
	s.coord.EndSession(id)
	writeJSON(w, http.StatusOK, map[string]string{
		"sessionId": id,
		"status":    "ended",
	})
}
