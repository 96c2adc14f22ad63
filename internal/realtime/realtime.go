// Package realtime implements the streaming transcription session behind the
// live voice WebSocket.
//
// Audio arrives as small PCM chunks. Each session buffers them, gates the
// stream through a voice activity classifier, and drives a segmentation
// state machine: silence keeps the session listening, speech opens a segment
// that is re-decoded once per process window to emit growing partial
// transcriptions, and enough trailing silence closes the segment with a
// final transcription carrying word timestamps. A short tail of audio is
// kept across segment boundaries so a word straddling the cut is not lost.
//
// All mutable segmentation state is confined to the session's single
// processing goroutine; SendAudio and the events channel are the only
// crossing points.
package realtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arbachegit/iconsai-core/pkg/provider/stt"
	"github.com/arbachegit/iconsai-core/pkg/provider/vad"
	"github.com/arbachegit/iconsai-core/pkg/timing"
)

// Status labels a transcription event.
type Status string

const (
	StatusListening   Status = "listening"    // waiting for speech
	StatusSpeechStart Status = "speech_start" // a speech segment opened
	StatusPartial     Status = "partial"      // interim text for the open segment
	StatusFinal       Status = "final"        // authoritative text for a closed segment
	StatusEnd         Status = "end"          // session finished
	StatusError       Status = "error"
)

// Event is one transcription event emitted to the client.
type Event struct {
	Status     Status              `json:"status"`
	Text       string              `json:"text"`
	Words      []timing.WordTiming `json:"words"`
	Confidence float64             `json:"confidence"`
	Timestamp  float64             `json:"timestamp"`
	Error      string              `json:"error,omitempty"`
}

// Config holds the segmentation parameters for a session.
type Config struct {
	// SampleRate of incoming PCM in Hz. Zero means 16000.
	SampleRate int

	// Language hint forwarded to the STT provider. Empty means "pt".
	Language string

	// ProcessWindow is how much new audio accumulates before the session
	// classifies and re-decodes. Zero means 1 s.
	ProcessWindow time.Duration

	// MinSilence is how much consecutive silence closes an open speech
	// segment. Zero means 500 ms.
	MinSilence time.Duration

	// TrailingOverlap is how much audio is carried across a segment
	// boundary into the next segment. Zero means 250 ms.
	TrailingOverlap time.Duration

	// FlushTimeout bounds the final decode when the session closes with an
	// open segment. Zero means 10 s.
	FlushTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.SampleRate <= 0 {
		c.SampleRate = 16000
	}
	if c.Language == "" {
		c.Language = "pt"
	}
	if c.ProcessWindow <= 0 {
		c.ProcessWindow = time.Second
	}
	if c.MinSilence <= 0 {
		c.MinSilence = 500 * time.Millisecond
	}
	if c.TrailingOverlap <= 0 {
		c.TrailingOverlap = 250 * time.Millisecond
	}
	if c.FlushTimeout <= 0 {
		c.FlushTimeout = 10 * time.Second
	}
	return c
}

// Stats summarizes a session's lifetime, reported to the client on end.
type Stats struct {
	ChunksReceived int     `json:"chunksReceived"`
	AudioSeconds   float64 `json:"audioSeconds"`
	Partials       int     `json:"partials"`
	Finals         int     `json:"finals"`
}

// Service creates sessions against a fixed STT provider. The classifier and
// segmentation defaults can be swapped at runtime (config hot reload);
// already-open sessions keep the configuration they started with.
type Service struct {
	stt    stt.Provider
	log    *slog.Logger
	active atomic.Int64

	mu  sync.RWMutex
	vad vad.Classifier
	cfg Config
}

// NewService wires a transcription provider and a voice activity classifier
// into a session factory. A nil classifier disables gating: everything
// counts as speech, which suits push-to-talk clients. A nil logger falls
// back to slog.Default.
func NewService(provider stt.Provider, classifier vad.Classifier, cfg Config, log *slog.Logger) *Service {
	if classifier == nil {
		classifier = vad.Always(true)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		stt: provider,
		vad: classifier,
		cfg: cfg.withDefaults(),
		log: log,
	}
}

// ActiveSessions reports how many sessions are currently open.
func (s *Service) ActiveSessions() int64 {
	return s.active.Load()
}

// Config returns the service's effective (defaulted) configuration.
func (s *Service) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Reconfigure replaces the default segmentation parameters for sessions
// opened from now on.
func (s *Service) Reconfigure(cfg Config) {
	s.mu.Lock()
	s.cfg = cfg.withDefaults()
	s.mu.Unlock()
}

// SetClassifier replaces the voice activity classifier. Nil disables gating.
func (s *Service) SetClassifier(classifier vad.Classifier) {
	if classifier == nil {
		classifier = vad.Always(true)
	}
	s.mu.Lock()
	s.vad = classifier
	s.mu.Unlock()
}

func (s *Service) classifier() vad.Classifier {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vad
}

// NewSession opens a streaming session. The returned session is immediately
// emitting on Events; the caller must drain that channel until it closes and
// must call Close when the audio source is done.
func (s *Service) NewSession(ctx context.Context) *Session {
	return s.NewSessionWith(ctx, Config{})
}

// NewSessionWith opens a session whose parameters override the service
// defaults. Zero-valued fields keep the service configuration, so callers
// only set what a client negotiated (typically language and sample rate).
func (s *Service) NewSessionWith(ctx context.Context, override Config) *Session {
	cfg := s.Config()
	if override.SampleRate > 0 {
		cfg.SampleRate = override.SampleRate
	}
	if override.Language != "" {
		cfg.Language = override.Language
	}
	if override.ProcessWindow > 0 {
		cfg.ProcessWindow = override.ProcessWindow
	}
	if override.MinSilence > 0 {
		cfg.MinSilence = override.MinSilence
	}
	if override.TrailingOverlap > 0 {
		cfg.TrailingOverlap = override.TrailingOverlap
	}
	if override.FlushTimeout > 0 {
		cfg.FlushTimeout = override.FlushTimeout
	}
	sess := &Session{
		svc:     s,
		cfg:     cfg,
		log:     s.log,
		audioCh: make(chan []int16, 256),
		events:  make(chan Event, 64),
		done:    make(chan struct{}),
	}
	s.active.Add(1)
	sess.wg.Add(1)
	go sess.processLoop(ctx)
	return sess
}

// Session is one live streaming transcription. See the package comment for
// the state machine.
type Session struct {
	svc *Service
	cfg Config
	log *slog.Logger

	audioCh chan []int16
	events  chan Event

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup

	statsMu sync.Mutex
	stats   Stats
}

// SendAudio queues a chunk of 16-bit mono PCM for processing. Calling
// SendAudio after Close returns an error.
func (s *Session) SendAudio(pcm []int16) error {
	select {
	case <-s.done:
		return errors.New("realtime: session is closed")
	default:
	}
	select {
	case s.audioCh <- pcm:
		return nil
	case <-s.done:
		return errors.New("realtime: session is closed")
	}
}

// Events returns the channel of transcription events. It is closed after the
// end event once the session shuts down.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Config returns the session's effective (defaulted) configuration.
func (s *Session) Config() Config {
	return s.cfg
}

// Stats returns a snapshot of the session's counters.
func (s *Session) Stats() Stats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}

// Close stops the session: any open speech segment is flushed as a final
// transcription, the end event is emitted, and the events channel is closed.
// Calling Close more than once is safe and returns nil.
func (s *Session) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
	return nil
}

// emit delivers an event without ever blocking the processing goroutine.
// The events channel is generously buffered; if the consumer has fallen 64
// events behind, dropping is better than stalling the audio path.
func (s *Session) emit(ev Event) {
	ev.Timestamp = float64(time.Now().UnixNano()) / 1e9
	select {
	case s.events <- ev:
	default:
		s.log.Warn("event dropped, consumer too slow", "status", ev.Status)
	}
}

// processLoop owns all segmentation state for the session.
func (s *Session) processLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.events)
	defer s.svc.active.Add(-1)

	var (
		segment     []int16 // audio for the current segment, including carried overlap
		window      []int16 // new audio since the last classification
		speaking    bool
		silenceSamp int // consecutive silence samples while speaking
	)

	windowSamples := samples(s.cfg.ProcessWindow, s.cfg.SampleRate)
	silenceSamples := samples(s.cfg.MinSilence, s.cfg.SampleRate)
	overlapSamples := samples(s.cfg.TrailingOverlap, s.cfg.SampleRate)

	s.emit(Event{Status: StatusListening})

	// finishSegment decodes the whole segment as its authoritative final
	// transcription and resets to listening, carrying the trailing overlap.
	finishSegment := func(decodeCtx context.Context) {
		speaking = false
		silenceSamp = 0
		if len(segment) == 0 {
			return
		}

		res, err := s.svc.stt.Transcribe(decodeCtx, stt.Request{
			PCM:        segment,
			SampleRate: s.cfg.SampleRate,
			Language:   s.cfg.Language,
			WantWords:  true,
		})
		if err != nil {
			s.log.Error("final decode failed", "err", err)
			s.emit(Event{Status: StatusError, Error: err.Error()})
		} else {
			if !timing.Sorted(res.Words) {
				// Clients scan word timings forward; repair a provider that
				// reported them out of order.
				s.log.Warn("final word timings out of order, re-sorting")
				timing.Sort(res.Words)
			}
			s.emit(Event{
				Status:     StatusFinal,
				Text:       res.Text,
				Words:      res.Words,
				Confidence: res.Confidence,
			})
			s.addFinal()
		}

		if overlapSamples > 0 && len(segment) > overlapSamples {
			tail := make([]int16, overlapSamples)
			copy(tail, segment[len(segment)-overlapSamples:])
			segment = tail
		} else {
			segment = nil
		}
	}

	// flush closes an open segment with a dedicated timeout, independent of
	// ctx which may already be cancelled during shutdown. Audio that never
	// filled a whole window still gets decoded so a short last utterance is
	// not lost; a segment holding nothing but carried overlap is skipped.
	flush := func() {
		if !speaking && len(segment) <= overlapSamples {
			return
		}
		fc, cancel := context.WithTimeout(context.Background(), s.cfg.FlushTimeout)
		defer cancel()
		finishSegment(fc)
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			s.emit(Event{Status: StatusEnd})
			return

		case <-s.done:
			// Close may race with the last SendAudio calls; take whatever is
			// still queued into the segment before flushing.
			for drained := false; !drained; {
				select {
				case chunk := <-s.audioCh:
					s.addChunk(len(chunk))
					segment = append(segment, chunk...)
				default:
					drained = true
				}
			}
			flush()
			s.emit(Event{Status: StatusEnd})
			return

		case chunk := <-s.audioCh:
			s.addChunk(len(chunk))
			segment = append(segment, chunk...)
			window = append(window, chunk...)

			if len(window) < windowSamples {
				continue
			}

			speech, err := s.svc.classifier().Classify(window)
			if err != nil {
				// Classifier failure must not stall the pipeline; treat the
				// window as speech and let the decoder sort it out.
				s.log.Warn("vad classify failed", "err", err)
				speech = true
			}
			windowLen := len(window)
			window = window[:0]

			switch {
			case speech:
				if !speaking {
					speaking = true
					s.emit(Event{Status: StatusSpeechStart})
				}
				silenceSamp = 0

				res, err := s.svc.stt.Transcribe(ctx, stt.Request{
					PCM:        segment,
					SampleRate: s.cfg.SampleRate,
					Language:   s.cfg.Language,
				})
				if err != nil {
					// Partial decodes are best-effort; the final decode is
					// the one that must land. Keep buffering, the model may
					// succeed on a longer segment.
					s.log.Warn("partial decode failed", "err", err)
					s.emit(Event{
						Status: StatusError,
						Error:  "could not transcribe just now, still listening",
					})
					continue
				}
				if res.Text != "" {
					s.emit(Event{
						Status:     StatusPartial,
						Text:       res.Text,
						Confidence: res.Confidence,
					})
					s.addPartial()
				}

			case speaking:
				silenceSamp += windowLen
				if silenceSamp >= silenceSamples {
					finishSegment(ctx)
					s.emit(Event{Status: StatusListening})
				}

			default:
				// Leading silence: keep only the overlap tail so the buffer
				// does not grow while nobody speaks.
				if len(segment) > overlapSamples {
					segment = segment[len(segment)-overlapSamples:]
				}
			}
		}
	}
}

func (s *Session) addChunk(sampleCount int) {
	s.statsMu.Lock()
	s.stats.ChunksReceived++
	s.stats.AudioSeconds += float64(sampleCount) / float64(s.cfg.SampleRate)
	s.statsMu.Unlock()
}

func (s *Session) addPartial() {
	s.statsMu.Lock()
	s.stats.Partials++
	s.statsMu.Unlock()
}

func (s *Session) addFinal() {
	s.statsMu.Lock()
	s.stats.Finals++
	s.statsMu.Unlock()
}

func samples(d time.Duration, sampleRate int) int {
	return int(d.Seconds() * float64(sampleRate))
}
