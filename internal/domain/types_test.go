package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestRecognitionErrorCodeOf(t *testing.T) {
	t.Parallel()

	base := errors.New("handshake 403")
	wrapped := fmt.Errorf("start stream: %w", NewRecognitionError(RecognitionErrorNotAllowed, base))

	if got := RecognitionErrorCodeOf(wrapped); got != RecognitionErrorNotAllowed {
		t.Fatalf("expected not-allowed, got %s", got)
	}
	if !errors.Is(wrapped, base) {
		t.Fatalf("expected cause to unwrap")
	}
	if got := RecognitionErrorCodeOf(base); got != RecognitionErrorOther {
		t.Fatalf("expected other for unclassified error, got %s", got)
	}
	if got := RecognitionErrorCodeOf(nil); got != RecognitionErrorOther {
		t.Fatalf("expected other for nil, got %s", got)
	}
}

func TestRecognitionErrorMessage(t *testing.T) {
	t.Parallel()

	if got := NewRecognitionError(RecognitionErrorNetwork, errors.New("reset")).Error(); got != "network: reset" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := (&RecognitionError{Code: RecognitionErrorNoSpeech}).Error(); got != "no-speech" {
		t.Fatalf("unexpected message %q", got)
	}
}
