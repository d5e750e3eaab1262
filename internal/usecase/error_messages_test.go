package usecase

import (
	"testing"

	"voicescribe/internal/domain"
)

func TestErrorMessage(t *testing.T) {
	t.Parallel()

	cases := map[domain.RecognitionErrorCode]string{
		domain.RecognitionErrorNoSpeech:     "No speech detected. Please try again.",
		domain.RecognitionErrorAudioCapture: "Microphone access denied or unavailable.",
		domain.RecognitionErrorNotAllowed:   "Microphone permission denied. Please allow microphone access.",
		domain.RecognitionErrorNetwork:      "Network error. Please check your connection.",
		domain.RecognitionErrorOther:        "Speech recognition error: other",
		"aborted":                           "Speech recognition error: aborted",
		"":                                  "Speech recognition error: other",
	}

	for code, want := range cases {
		if got := ErrorMessage(code); got != want {
			t.Fatalf("code %q: expected %q, got %q", code, want, got)
		}
	}
}
