package ports

import (
	"context"
	"io"

	"voicescribe/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// StreamingConfig describes provider-agnostic streaming settings.
type StreamingConfig struct {
	SampleRate     int
	Channels       int
	Encoding       string
	Language       string
	InterimResults bool
}

// StreamingSession is an active provider websocket session.
type StreamingSession interface {
	SendAudio(chunk []byte) error
	CloseSend() error
	Results() <-chan domain.RecognitionResult
	Wait() error
	Close() error
}

// TranscriptionProvider starts streaming transcription sessions.
type TranscriptionProvider interface {
	StartStreaming(ctx context.Context, cfg StreamingConfig) (StreamingSession, error)
}

// RecognitionOptions are passed to a recognizer on start.
type RecognitionOptions struct {
	Continuous     bool
	InterimResults bool
	Language       string
}

// RecognitionSink receives capability callbacks. Implementations must tolerate
// calls from any goroutine.
type RecognitionSink interface {
	HandleRecognition(event domain.RecognitionEvent)
}

// SpeechRecognizer is the continuous speech-to-text capability owned by a session.
type SpeechRecognizer interface {
	// Supported reports whether the capability is available at all.
	Supported() bool
	Start(ctx context.Context, opts RecognitionOptions, sink RecognitionSink) error
	Stop() error
}

// RulesEngine transforms transcripts using deterministic rules.
type RulesEngine interface {
	Apply(text string) (string, error)
}

// EventSink receives session updates for the presentation layer.
type EventSink interface {
	SessionChanged(snapshot domain.Snapshot)
	InterimChanged(text string)
	Cue(cue domain.Cue)
}
