package karaoke

import (
	"math"
	"testing"
	"time"

	"github.com/arbachegit/iconsai-core/pkg/timing"
)

func TestProcessClockSyncFirstExchange(t *testing.T) {
	c := New(nil)

	status := c.ProcessClockSync("dev-1", unix(time.Now()), 0)

	if status.ServerRecvTime == 0 || status.ServerSendTime == 0 {
		t.Error("server times must be set")
	}
	if status.State != StateSyncing {
		t.Errorf("state: got %q, want %q", status.State, StateSyncing)
	}
	if status.LookaheadMs != DefaultLookaheadMs {
		t.Errorf("lookahead before estimate: got %v, want %v", status.LookaheadMs, DefaultLookaheadMs)
	}
}

func TestProcessClockSyncCompletesSample(t *testing.T) {
	c := New(nil)

	// Simulate a client whose clock matches the server and whose RTT is
	// about 80 ms by spacing the reported client times around server time.
	now := unix(time.Now())
	first := c.ProcessClockSync("dev-1", now-0.04, 0)

	// Client received the first response 40 ms after serverSend.
	clientRecv := first.ServerSendTime + 0.04
	status := c.ProcessClockSync("dev-1", clientRecv+0.5, clientRecv)

	if status.State != StateReady {
		t.Errorf("state after completed sample: got %q, want %q", status.State, StateReady)
	}
	if status.EstimatedRttMs <= 0 {
		t.Errorf("rtt estimate: got %v, want > 0", status.EstimatedRttMs)
	}
	// lookahead = clamp(rtt/2+50, 50, 200)
	want := status.EstimatedRttMs/2 + 50
	if want < 50 {
		want = 50
	}
	if want > 200 {
		want = 200
	}
	if status.LookaheadMs != want {
		t.Errorf("lookahead: got %v, want %v", status.LookaheadMs, want)
	}
}

func TestLookaheadClamp(t *testing.T) {
	s := &session{lookaheadMs: DefaultLookaheadMs}

	// A huge RTT must clamp at the maximum.
	s.samples = []sample{{clientSend: 0, serverRecv: 0.5, serverSend: 0.5, clientRecv: 1.0}}
	s.updateEstimate()
	if s.lookaheadMs != maxLookaheadMs {
		t.Errorf("high rtt: lookahead %v, want %v", s.lookaheadMs, maxLookaheadMs)
	}

	// A negative RTT (client clock skew) must clamp at the minimum.
	s.samples = []sample{{clientSend: 1.0, serverRecv: 0, serverSend: 0, clientRecv: 0.5}}
	s.updateEstimate()
	if s.lookaheadMs != minLookaheadMs {
		t.Errorf("low rtt: lookahead %v, want %v", s.lookaheadMs, minLookaheadMs)
	}
}

func TestUpdateEstimateUsesMedian(t *testing.T) {
	s := &session{}
	// Four samples with 100 ms RTT and one 2 s outlier.
	for i := 0; i < 4; i++ {
		s.samples = append(s.samples, sample{clientSend: 0, serverRecv: 0.05, serverSend: 0.05, clientRecv: 0.1})
	}
	s.samples = append(s.samples, sample{clientSend: 0, serverRecv: 1.0, serverSend: 1.0, clientRecv: 2.0})

	s.updateEstimate()
	if s.rttMs != 100 {
		t.Errorf("median rtt: got %v, want 100", s.rttMs)
	}
}

func TestAdjustedTimestamps(t *testing.T) {
	c := New(nil)
	words := []timing.WordTiming{
		{Word: "Olá", Start: 0.5, End: 0.8},
		{Word: "mundo", Start: 1.0, End: 1.3},
	}

	adjusted := c.AdjustedTimestamps("dev-1", words)

	// Default lookahead is 100 ms.
	if adjusted[0].Start >= 0.5 {
		t.Errorf("first word not shifted earlier: %v", adjusted[0].Start)
	}
	if adjusted[1].Start >= 1.0 {
		t.Errorf("second word not shifted earlier: %v", adjusted[1].Start)
	}
	if adjusted[0].Start != 0.4 {
		t.Errorf("first word start: got %v, want 0.4", adjusted[0].Start)
	}
}

func TestPlaybackStateTransitions(t *testing.T) {
	c := New(nil)

	if st := c.StartPlayback("dev-1"); st != StatePlaying {
		t.Errorf("got %q, want %q", st, StatePlaying)
	}
	if st := c.PausePlayback("dev-1"); st != StatePaused {
		t.Errorf("got %q, want %q", st, StatePaused)
	}
}

func TestEndSession(t *testing.T) {
	c := New(nil)
	c.StartPlayback("dev-1")
	c.EndSession("dev-1")
	if c.SessionCount() != 0 {
		t.Errorf("session count after end: got %d", c.SessionCount())
	}
	// Ending twice is a no-op.
	c.EndSession("dev-1")
}

func TestSweepIdle(t *testing.T) {
	c := New(nil)
	base := time.Now()
	c.now = func() time.Time { return base }

	c.StartPlayback("stale")
	c.now = func() time.Time { return base.Add(2 * time.Hour) }
	c.StartPlayback("fresh")

	removed := c.SweepIdle(time.Hour)
	if removed != 1 {
		t.Fatalf("removed: got %d, want 1", removed)
	}
	if c.SessionCount() != 1 {
		t.Errorf("remaining sessions: got %d, want 1", c.SessionCount())
	}
}

func TestUpdateEstimateSkipsHalfOpenSamples(t *testing.T) {
	s := &session{}
	// Two probes whose responses the client never acknowledged.
	s.samples = append(s.samples,
		sample{clientSend: 100.0, serverRecv: 100.05, serverSend: 100.05},
		sample{clientSend: 101.0, serverRecv: 101.05, serverSend: 101.05},
	)
	// One completed sample with a 500 ms round trip.
	s.samples = append(s.samples, sample{
		clientSend: 102.0, serverRecv: 102.25, serverSend: 102.25, clientRecv: 102.5,
	})

	s.updateEstimate()
	if s.rttMs != 500 {
		t.Errorf("rtt: got %v, want 500 (half-open samples leaked into the median)", s.rttMs)
	}
}

func TestProcessClockSyncIgnoresLostResponses(t *testing.T) {
	c := New(nil)
	now := unix(time.Now())

	// The client misses the first two responses, so it keeps re-probing
	// without a clientRecvTime. Those samples can never complete.
	c.ProcessClockSync("dev-1", now, 0)
	c.ProcessClockSync("dev-1", now+1, 0)
	c.ProcessClockSync("dev-1", now+2, 0)

	// The third response finally arrives 500 ms after its probe.
	status := c.ProcessClockSync("dev-1", now+3, now+2.5)
	if status.State != StateReady {
		t.Fatalf("state: got %q, want %q", status.State, StateReady)
	}
	if math.Abs(status.EstimatedRttMs-500) > 0.01 {
		t.Errorf("rtt: got %v, want 500", status.EstimatedRttMs)
	}
}

func TestClockSampleWindowBounded(t *testing.T) {
	c := New(nil)
	now := unix(time.Now())

	for i := 0; i < 100; i++ {
		c.ProcessClockSync("dev-1", now+float64(i), 0)
	}

	c.mu.Lock()
	n := len(c.sessions["dev-1"].samples)
	c.mu.Unlock()
	if n > rawWindow {
		t.Errorf("samples retained: got %d, want at most %d", n, rawWindow)
	}
}

func TestProcessClockSyncMissingSendTime(t *testing.T) {
	c := New(nil)

	status := c.ProcessClockSync("dev-1", 0, 0)
	if status.State != StateError {
		t.Errorf("state: got %q, want %q", status.State, StateError)
	}

	// The broken exchange records no sample; a proper probe starts over.
	next := c.ProcessClockSync("dev-1", unix(time.Now()), 0)
	if next.State != StateSyncing {
		t.Errorf("state after recovery: got %q, want %q", next.State, StateSyncing)
	}
}
