// Package recognition turns a streaming transcription provider and a
// microphone capture into a continuous speech recognition capability.
package recognition

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"voicescribe/internal/domain"
	"voicescribe/internal/ports"
)

var (
	ErrUnsupported    = errors.New("speech recognition is not available")
	ErrAlreadyRunning = errors.New("speech recognition is already running")
)

// Config controls capture and streaming for each recognition run.
type Config struct {
	Audio           ports.AudioConfig
	Streaming       ports.StreamingConfig
	ChunkSize       int
	FinalizeTimeout time.Duration
	// Probe reports why the capability is unavailable. It runs once.
	Probe  func() error
	Logger *slog.Logger
}

// Recognizer implements ports.SpeechRecognizer on top of an audio capture and
// a streaming provider. Only one run is active at a time.
type Recognizer struct {
	audio      ports.AudioCapture
	provider   ports.TranscriptionProvider
	cfg        Config
	log        *slog.Logger
	supportErr error

	mu      sync.Mutex
	current *run
	latest  *run
}

var _ ports.SpeechRecognizer = (*Recognizer)(nil)

func NewRecognizer(audio ports.AudioCapture, provider ports.TranscriptionProvider, cfg Config) *Recognizer {
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 4096
	}
	if cfg.FinalizeTimeout <= 0 {
		cfg.FinalizeTimeout = 4 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	r := &Recognizer{
		audio:    audio,
		provider: provider,
		cfg:      cfg,
		log:      logger.With(slog.String("component", "recognizer")),
	}
	if audio == nil || provider == nil {
		r.supportErr = ErrUnsupported
	} else if cfg.Probe != nil {
		r.supportErr = cfg.Probe()
	}
	if r.supportErr != nil {
		r.log.Warn("recognizer unsupported", slog.String("reason", r.supportErr.Error()))
	}
	return r
}

// Supported reports the result of the probe taken at construction.
func (r *Recognizer) Supported() bool {
	return r.supportErr == nil
}

// SupportError explains why Supported is false.
func (r *Recognizer) SupportError() error {
	return r.supportErr
}

// Start opens a provider stream and begins capturing audio. Callbacks are
// delivered to sink from a single goroutine: started, results, an optional
// error, then end.
func (r *Recognizer) Start(ctx context.Context, opts ports.RecognitionOptions, sink ports.RecognitionSink) error {
	if r.supportErr != nil {
		return domain.NewRecognitionError(domain.RecognitionErrorOther, ErrUnsupported)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current != nil {
		return domain.NewRecognitionError(domain.RecognitionErrorOther, ErrAlreadyRunning)
	}

	streamCfg := r.cfg.Streaming
	streamCfg.InterimResults = opts.InterimResults
	if lang := strings.TrimSpace(opts.Language); lang != "" {
		streamCfg.Language = lang
	}

	runCtx, cancel := context.WithCancel(ctx)
	stream, err := r.provider.StartStreaming(runCtx, streamCfg)
	if err != nil {
		cancel()
		return classify(err, domain.RecognitionErrorNetwork)
	}

	audioSession, err := r.audio.Start(runCtx, r.cfg.Audio)
	if err != nil {
		_ = stream.Close()
		cancel()
		return classify(err, domain.RecognitionErrorAudioCapture)
	}

	active := &run{
		cancel:     cancel,
		audio:      audioSession,
		stream:     stream,
		continuous: opts.Continuous,
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
	}
	r.current = active
	r.latest = active

	go r.consume(active, sink)
	return nil
}

// Stop ends capture for the active run. The provider flushes its final
// results before end is delivered. Stop is idempotent.
func (r *Recognizer) Stop() error {
	r.mu.Lock()
	active := r.current
	r.mu.Unlock()

	if active == nil {
		return nil
	}
	r.stopRun(active)
	return nil
}

// Wait blocks until the most recent run, if any, has delivered end.
func (r *Recognizer) Wait() {
	r.mu.Lock()
	latest := r.latest
	r.mu.Unlock()

	if latest != nil {
		<-latest.done
	}
}

func (r *Recognizer) stopRun(active *run) {
	if !active.requestStop() {
		return
	}
	active.mu.Lock()
	if !active.finished {
		active.watchdog = time.AfterFunc(r.cfg.FinalizeTimeout, func() {
			r.log.Warn("provider did not finalize in time; closing stream")
			_ = active.stream.Close()
		})
	}
	active.mu.Unlock()
	if err := active.audio.Stop(); err != nil {
		r.log.Warn("audio capture did not stop cleanly", slog.String("error", err.Error()))
	}
}

func (r *Recognizer) consume(active *run, sink ports.RecognitionSink) {
	defer close(active.done)

	sink.HandleRecognition(domain.RecognitionEvent{Kind: domain.RecognitionEventStarted})

	pumpErr := make(chan error, 1)
	go func() {
		pumpErr <- pumpAudioChunks(active.audio, active.stream, r.cfg.ChunkSize)
		// Closing the send side lets the provider flush its final results.
		_ = active.stream.CloseSend()
	}()

	heard := false
	for result := range active.stream.Results() {
		spoken := strings.TrimSpace(result.Text) != ""
		heard = heard || spoken
		sink.HandleRecognition(domain.RecognitionEvent{
			Kind:    domain.RecognitionEventResult,
			Results: []domain.RecognitionResult{result},
		})
		if result.Final && spoken && !active.continuous {
			go r.stopRun(active)
		}
	}

	streamErr := waitForStream(active.stream, r.cfg.FinalizeTimeout)

	var audioErr error
	select {
	case audioErr = <-pumpErr:
	default:
		// The provider went away while capture was still running.
		_ = active.audio.Stop()
		<-pumpErr
	}

	active.finish()
	r.mu.Lock()
	if r.current == active {
		r.current = nil
	}
	r.mu.Unlock()

	stopped := active.stopRequested()
	err := streamErr
	if err == nil && !stopped {
		err = audioErr
	}
	if err == nil && !stopped && !heard {
		err = domain.NewRecognitionError(domain.RecognitionErrorNoSpeech, errors.New("stream ended without speech"))
	}
	if err != nil {
		code := classifyCode(err, domain.RecognitionErrorNetwork)
		r.log.Warn("recognition run failed", slog.String("code", string(code)), slog.String("error", err.Error()))
		sink.HandleRecognition(domain.RecognitionEvent{Kind: domain.RecognitionEventError, Code: code})
	}
	sink.HandleRecognition(domain.RecognitionEvent{Kind: domain.RecognitionEventEnd})
}

func classify(err error, fallback domain.RecognitionErrorCode) error {
	var recErr *domain.RecognitionError
	if errors.As(err, &recErr) {
		return err
	}
	return domain.NewRecognitionError(fallback, err)
}

func classifyCode(err error, fallback domain.RecognitionErrorCode) domain.RecognitionErrorCode {
	var recErr *domain.RecognitionError
	if errors.As(err, &recErr) && recErr.Code != "" {
		return recErr.Code
	}
	return fallback
}

type run struct {
	cancel     context.CancelFunc
	audio      ports.AudioSession
	stream     ports.StreamingSession
	continuous bool

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}

	mu       sync.Mutex
	watchdog *time.Timer
	finished bool
}

func (r *run) requestStop() bool {
	requested := false
	r.stopOnce.Do(func() {
		close(r.stopCh)
		requested = true
	})
	return requested
}

func (r *run) stopRequested() bool {
	select {
	case <-r.stopCh:
		return true
	default:
		return false
	}
}

func (r *run) finish() {
	r.mu.Lock()
	r.finished = true
	if r.watchdog != nil {
		r.watchdog.Stop()
	}
	r.mu.Unlock()
	r.cancel()
	_ = r.stream.Close()
}
