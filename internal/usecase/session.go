package usecase

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	"voicescribe/internal/domain"
	"voicescribe/internal/ports"
)

// Config controls how a session drives its recognizer.
type Config struct {
	Recognition   ports.RecognitionOptions
	Logger        *slog.Logger
	MeterProvider metric.MeterProvider
}

// TranscriptionSession bridges an event-driven recognition capability to the
// recording state and transcript text shown by the presentation layer.
type TranscriptionSession struct {
	recognizer ports.SpeechRecognizer
	rules      ports.RulesEngine
	events     ports.EventSink
	opts       ports.RecognitionOptions
	log        *slog.Logger
	metrics    sessionMetrics
	supported  bool

	mu sync.Mutex
	// publishMu serializes notifications. It is always taken before mu and
	// never while mu is held, so sinks may call Snapshot.
	publishMu sync.Mutex

	// version counts observable changes; fullVersion is the last change that
	// needs a full snapshot and published the last change delivered.
	version     uint64
	fullVersion uint64
	published   uint64

	state        domain.RecordingState
	buffer       transcriptBuffer
	errorMessage string
	sessionID    string
	hadSpeech    bool
	completed    bool
	stopping     bool
	closed       bool
}

var _ ports.RecognitionSink = (*TranscriptionSession)(nil)

// NewTranscriptionSession probes the recognizer once. An unsupported recognizer
// turns every recording command into a no-op for the life of the session.
func NewTranscriptionSession(
	recognizer ports.SpeechRecognizer,
	rules ports.RulesEngine,
	events ports.EventSink,
	cfg Config,
) *TranscriptionSession {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if events == nil {
		events = noopEventSink{}
	}

	s := &TranscriptionSession{
		recognizer: recognizer,
		rules:      rules,
		events:     events,
		opts:       cfg.Recognition,
		log:        logger.With(slog.String("component", "session")),
		metrics:    newSessionMetrics(cfg.MeterProvider),
		supported:  recognizer != nil && recognizer.Supported(),
		state:      domain.RecordingStateIdle,
	}
	if !s.supported {
		s.log.Warn("speech recognition capability unavailable")
	}
	return s
}

// StartRecording asks the recognizer to begin listening. It clears a previous
// recognition error first.
func (s *TranscriptionSession) StartRecording(ctx context.Context) {
	s.start(ctx, true)
}

// StopRecording asks the recognizer to stop. The session returns to idle once
// the recognizer confirms the end of the run.
func (s *TranscriptionSession) StopRecording() {
	if !s.supported {
		return
	}

	s.mu.Lock()
	if s.closed || s.state != domain.RecordingStateListening || s.stopping {
		s.mu.Unlock()
		return
	}
	s.stopping = true
	id := s.sessionID
	s.mu.Unlock()

	s.events.Cue(domain.CueEnd)
	s.log.Info("recording stop requested", slog.String("session_id", id))

	if err := s.recognizer.Stop(); err != nil {
		s.log.Warn("recognizer stop failed", slog.String("session_id", id), slog.String("error", err.Error()))
		s.OnRecognitionEnd()
	}
}

// Toggle stops a listening session and starts an idle one. It does nothing
// while the session is processing or in error.
func (s *TranscriptionSession) Toggle(ctx context.Context) {
	if !s.supported {
		return
	}

	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	if state == domain.RecordingStateListening {
		s.StopRecording()
		return
	}
	s.start(ctx, false)
}

func (s *TranscriptionSession) start(ctx context.Context, clearError bool) {
	if !s.supported {
		return
	}

	s.mu.Lock()
	if !s.canStartLocked(clearError) {
		s.mu.Unlock()
		return
	}
	s.state = domain.RecordingStateProcessing
	s.errorMessage = ""
	s.hadSpeech = false
	s.stopping = false
	s.sessionID = uuid.NewString()
	id := s.sessionID
	s.publishLocked(true)

	s.events.Cue(domain.CueBegin)
	s.metrics.recordStart(ctx)
	s.log.Info("recording requested", slog.String("session_id", id), slog.String("language", s.opts.Language))

	if err := s.recognizer.Start(ctx, s.opts, s); err != nil {
		code := domain.RecognitionErrorCodeOf(err)
		s.log.Error("recognizer start failed",
			slog.String("session_id", id),
			slog.String("code", string(code)),
			slog.String("error", err.Error()),
		)
		s.OnRecognitionError(code)
	}
}

func (s *TranscriptionSession) canStartLocked(clearError bool) bool {
	if s.closed {
		return false
	}
	switch s.state {
	case domain.RecordingStateIdle:
		return true
	case domain.RecordingStateError:
		return clearError
	default:
		return false
	}
}

// HandleRecognition dispatches a recognizer callback.
func (s *TranscriptionSession) HandleRecognition(event domain.RecognitionEvent) {
	switch event.Kind {
	case domain.RecognitionEventStarted:
		s.OnRecognitionStarted()
	case domain.RecognitionEventResult:
		s.OnRecognitionResult(event.Results)
	case domain.RecognitionEventError:
		s.OnRecognitionError(event.Code)
	case domain.RecognitionEventEnd:
		s.OnRecognitionEnd()
	default:
		s.log.Debug("unknown recognition event", slog.String("kind", string(event.Kind)))
	}
}

// OnRecognitionStarted confirms a pending start.
func (s *TranscriptionSession) OnRecognitionStarted() {
	s.mu.Lock()
	if s.closed || s.state != domain.RecordingStateProcessing {
		s.mu.Unlock()
		return
	}
	s.state = domain.RecordingStateListening
	s.errorMessage = ""
	s.hadSpeech = false
	s.log.Info("listening", slog.String("session_id", s.sessionID))
	s.publishLocked(true)
}

// OnRecognitionResult applies one recognition update in index order. Final
// segments are committed; the last provisional segment becomes the interim text.
func (s *TranscriptionSession) OnRecognitionResult(results []domain.RecognitionResult) {
	s.mu.Lock()
	if s.closed || s.state != domain.RecordingStateListening {
		s.mu.Unlock()
		return
	}

	before := s.buffer.interim
	committed := 0
	for _, result := range results {
		if !result.Final {
			s.buffer.SetInterim(result.Text)
			continue
		}
		if s.buffer.Commit(s.applyRules(result.Text)) {
			committed++
			s.hadSpeech = true
		}
	}

	if committed > 0 {
		s.metrics.recordSegments(context.Background(), committed)
		s.publishLocked(true)
		return
	}
	if s.buffer.interim != before {
		s.publishLocked(false)
		return
	}
	s.mu.Unlock()
}

// OnRecognitionError moves a pending or listening session to the error state
// with a mapped message. Errors for a finished run are ignored.
func (s *TranscriptionSession) OnRecognitionError(code domain.RecognitionErrorCode) {
	if code == "" {
		code = domain.RecognitionErrorOther
	}

	s.mu.Lock()
	if s.closed || (s.state != domain.RecordingStateListening && s.state != domain.RecordingStateProcessing) {
		s.mu.Unlock()
		return
	}
	s.state = domain.RecordingStateError
	s.errorMessage = ErrorMessage(code)
	s.buffer.ClearInterim()
	s.stopping = false
	s.metrics.recordError(context.Background(), code)
	s.log.Warn("recognition error", slog.String("session_id", s.sessionID), slog.String("code", string(code)))
	s.publishLocked(true)
}

// OnRecognitionEnd returns the session to idle. A preceding error is kept.
func (s *TranscriptionSession) OnRecognitionEnd() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	// A run that ends while listening without a stop request stopped on its
	// own, so collaborators still get the end cue.
	endCue := s.state == domain.RecordingStateListening && !s.stopping
	if s.state != domain.RecordingStateError {
		s.state = domain.RecordingStateIdle
	}
	s.buffer.ClearInterim()
	if s.hadSpeech {
		s.completed = true
	}
	s.hadSpeech = false
	s.stopping = false
	s.log.Info("recognition ended", slog.String("session_id", s.sessionID), slog.Bool("speech_completed", s.completed))
	s.publishLocked(true)

	if endCue {
		s.events.Cue(domain.CueEnd)
	}
}

// SetTranscript replaces the committed text with a user edit.
func (s *TranscriptionSession) SetTranscript(text string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.buffer.SetCommitted(text)
	s.completed = false
	s.publishLocked(true)
}

// Clear empties the transcript and error message without touching the recording state.
func (s *TranscriptionSession) Clear() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.buffer.Reset()
	s.errorMessage = ""
	s.completed = false
	s.publishLocked(true)
}

// Snapshot returns the current observable state.
func (s *TranscriptionSession) Snapshot() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Close releases the recognizer. Later commands and callbacks are ignored.
func (s *TranscriptionSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	active := s.state == domain.RecordingStateListening || s.state == domain.RecordingStateProcessing
	s.state = domain.RecordingStateIdle
	s.buffer.ClearInterim()
	s.mu.Unlock()

	if !active || !s.supported {
		return nil
	}
	return s.recognizer.Stop()
}

func (s *TranscriptionSession) applyRules(text string) string {
	if s.rules == nil {
		return text
	}
	transformed, err := s.rules.Apply(text)
	if err != nil {
		s.log.Warn("rules failed; keeping raw segment", slog.String("error", err.Error()))
		return text
	}
	return transformed
}

func (s *TranscriptionSession) snapshotLocked() domain.Snapshot {
	snapshot := domain.Snapshot{
		State:           s.state,
		CommittedText:   s.buffer.committed,
		InterimText:     s.buffer.interim,
		ErrorMessage:    s.errorMessage,
		Supported:       s.supported,
		SpeechCompleted: s.completed,
		SessionID:       s.sessionID,
	}
	if !s.supported {
		snapshot.UnsupportedMessage = UnsupportedMessage
	}
	return snapshot
}

// publishLocked must be called with mu held and releases it. When full is
// false only the interim text changed.
func (s *TranscriptionSession) publishLocked(full bool) {
	s.version++
	if full {
		s.fullVersion = s.version
	}
	s.mu.Unlock()
	s.publish()
}

// publish delivers the latest state. A change already covered by a newer
// delivery is skipped, so observers never see state go backwards.
func (s *TranscriptionSession) publish() {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.Lock()
	if s.version <= s.published {
		s.mu.Unlock()
		return
	}
	full := s.fullVersion > s.published
	s.published = s.version
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	if full {
		s.events.SessionChanged(snapshot)
		return
	}
	s.events.InterimChanged(snapshot.InterimText)
}

type noopEventSink struct{}

func (noopEventSink) SessionChanged(domain.Snapshot) {}
func (noopEventSink) InterimChanged(string)          {}
func (noopEventSink) Cue(domain.Cue)                 {}
