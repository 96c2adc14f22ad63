package server_test

import (
	"net/http"
	"testing"
	"time"
)

func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

func TestClockSyncFirstProbe(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	status, body := e.postJSON(t, "/v1/clock-sync", map[string]any{
		"sessionId":      "sync-1",
		"clientSendTime": nowSeconds(),
	})
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if body["serverRecvTime"].(float64) <= 0 {
		t.Error("serverRecvTime not set")
	}
	if body["serverSendTime"].(float64) <= 0 {
		t.Error("serverSendTime not set")
	}
	// No completed round-trip yet: the lookahead stays at the default.
	if got := body["lookaheadMs"].(float64); got != 100 {
		t.Errorf("lookaheadMs = %v, want 100", got)
	}
	if got := body["state"]; got != "syncing" {
		t.Errorf("state = %v, want syncing", got)
	}
}

func TestClockSyncCompletedExchange(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	send := nowSeconds()
	status, _ := e.postJSON(t, "/v1/clock-sync", map[string]any{
		"sessionId":      "sync-2",
		"clientSendTime": send,
	})
	if status != http.StatusOK {
		t.Fatalf("first probe status = %d, want 200", status)
	}

	status, body := e.postJSON(t, "/v1/clock-sync", map[string]any{
		"sessionId":      "sync-2",
		"clientSendTime": nowSeconds(),
		"clientRecvTime": nowSeconds(),
	})
	if status != http.StatusOK {
		t.Fatalf("second probe status = %d, want 200", status)
	}
	if got := body["state"]; got != "ready" {
		t.Errorf("state = %v, want ready", got)
	}
	rtt := body["estimatedRttMs"].(float64)
	if rtt < 0 {
		t.Errorf("estimatedRttMs = %v, want >= 0", rtt)
	}
	la := body["lookaheadMs"].(float64)
	if la < 50 || la > 200 {
		t.Errorf("lookaheadMs = %v, want within [50, 200]", la)
	}
}

func TestClockSyncValidation(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	status, body := e.postJSON(t, "/v1/clock-sync", map[string]any{
		"clientSendTime": nowSeconds(),
	})
	if status != http.StatusBadRequest {
		t.Errorf("missing sessionId: status = %d, want 400", status)
	}
	if body["error"] == nil {
		t.Error("missing sessionId: no error message")
	}

	status, _ = e.postJSON(t, "/v1/clock-sync", map[string]any{
		"sessionId": "sync-3",
	})
	if status != http.StatusBadRequest {
		t.Errorf("missing clientSendTime: status = %d, want 400", status)
	}
}

func TestPlaybackLifecycle(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	status, _ := e.postJSON(t, "/v1/clock-sync", map[string]any{
		"sessionId":      "play-1",
		"clientSendTime": nowSeconds(),
	})
	if status != http.StatusOK {
		t.Fatalf("clock-sync status = %d, want 200", status)
	}

	status, body := e.postJSON(t, "/v1/playback/start", map[string]any{"sessionId": "play-1"})
	if status != http.StatusOK {
		t.Fatalf("start status = %d, want 200", status)
	}
	if got := body["state"]; got != "playing" {
		t.Errorf("state after start = %v, want playing", got)
	}
	if body["lookaheadMs"].(float64) <= 0 {
		t.Error("lookaheadMs not reported")
	}

	status, body = e.postJSON(t, "/v1/playback/pause", map[string]any{"sessionId": "play-1"})
	if status != http.StatusOK {
		t.Fatalf("pause status = %d, want 200", status)
	}
	if got := body["state"]; got != "paused" {
		t.Errorf("state after pause = %v, want paused", got)
	}

	status, body = e.postJSON(t, "/v1/playback/end", map[string]any{"sessionId": "play-1"})
	if status != http.StatusOK {
		t.Fatalf("end status = %d, want 200", status)
	}
	if got := body["status"]; got != "ended" {
		t.Errorf("status after end = %v, want ended", got)
	}
	if got := e.coord.SessionCount(); got != 0 {
		t.Errorf("SessionCount after end = %d, want 0", got)
	}
}

func TestPlaybackRequiresSessionID(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	for _, path := range []string{"/v1/playback/start", "/v1/playback/pause", "/v1/playback/end"} {
		status, _ := e.postJSON(t, path, map[string]any{})
		if status != http.StatusBadRequest {
			t.Errorf("POST %s without sessionId: status = %d, want 400", path, status)
		}
	}
}
