package domain

import (
	"errors"
	"fmt"
)

// RecordingState models the microphone lifecycle of a transcription session.
type RecordingState string

const (
	RecordingStateIdle       RecordingState = "idle"
	RecordingStateListening  RecordingState = "listening"
	RecordingStateProcessing RecordingState = "processing"
	RecordingStateError      RecordingState = "error"
)

// RecognitionErrorCode identifies a transient recognition failure.
type RecognitionErrorCode string

const (
	RecognitionErrorNoSpeech     RecognitionErrorCode = "no-speech"
	RecognitionErrorAudioCapture RecognitionErrorCode = "audio-capture"
	RecognitionErrorNotAllowed   RecognitionErrorCode = "not-allowed"
	RecognitionErrorNetwork      RecognitionErrorCode = "network"
	RecognitionErrorOther        RecognitionErrorCode = "other"
)

// RecognitionError carries a classified failure from a recognition capability.
type RecognitionError struct {
	Code RecognitionErrorCode
	Err  error
}

func (e *RecognitionError) Error() string {
	if e.Err == nil {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *RecognitionError) Unwrap() error {
	return e.Err
}

// NewRecognitionError wraps err with a recognition error code.
func NewRecognitionError(code RecognitionErrorCode, err error) error {
	return &RecognitionError{Code: code, Err: err}
}

// RecognitionErrorCodeOf classifies err, defaulting to RecognitionErrorOther.
func RecognitionErrorCodeOf(err error) RecognitionErrorCode {
	var recErr *RecognitionError
	if errors.As(err, &recErr) && recErr.Code != "" {
		return recErr.Code
	}
	return RecognitionErrorOther
}

// RecognitionResult is one segment of a recognition update.
type RecognitionResult struct {
	Text  string `json:"text"`
	Final bool   `json:"final"`
}

// RecognitionEventKind enumerates the callbacks a capability delivers.
type RecognitionEventKind string

const (
	RecognitionEventStarted RecognitionEventKind = "started"
	RecognitionEventResult  RecognitionEventKind = "result"
	RecognitionEventError   RecognitionEventKind = "error"
	RecognitionEventEnd     RecognitionEventKind = "end"
)

// RecognitionEvent is a single callback from a recognition capability.
type RecognitionEvent struct {
	Kind    RecognitionEventKind
	Results []RecognitionResult
	Code    RecognitionErrorCode
}

// Cue is a notification for collaborators such as a sound player.
type Cue string

const (
	CueBegin Cue = "begin"
	CueEnd   Cue = "end"
)

// Snapshot is the read-only view of a session exposed to the presentation layer.
type Snapshot struct {
	State              RecordingState `json:"recordingState"`
	CommittedText      string         `json:"committedText"`
	InterimText        string         `json:"interimText"`
	ErrorMessage       string         `json:"errorMessage,omitempty"`
	Supported          bool           `json:"isSupported"`
	UnsupportedMessage string         `json:"unsupportedMessage,omitempty"`
	SpeechCompleted    bool           `json:"speechCompleted"`
	SessionID          string         `json:"sessionId,omitempty"`
}
