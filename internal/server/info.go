package server

import "net/http"

// streamInfo describes the streaming endpoint's defaults so clients can size
// their capture pipeline before connecting.
type streamInfo struct {
	SampleRate        int    `json:"sampleRate"`
	Language          string `json:"language"`
	Format            string `json:"format"`
	ProcessWindowMs   int64  `json:"processWindowMs"`
	MinSilenceMs      int64  `json:"minSilenceMs"`
	TrailingOverlapMs int64  `json:"trailingOverlapMs"`
	ActiveSessions    int64  `json:"activeSessions"`
}

func (s *Server) handleRealtimeInfo(w http.ResponseWriter, r *http.Request) {
	cfg := s.realtime.Config()
	writeJSON(w, http.StatusOK, streamInfo{
		SampleRate:        cfg.SampleRate,
		Language:          cfg.Language,
		Format:            "pcm16",
		ProcessWindowMs:   cfg.ProcessWindow.Milliseconds(),
		MinSilenceMs:      cfg.MinSilence.Milliseconds(),
		TrailingOverlapMs: cfg.TrailingOverlap.Milliseconds(),
		ActiveSessions:    s.realtime.ActiveSessions(),
	})
}
