package usecase

import (
	"fmt"

	"voicescribe/internal/domain"
)

// UnsupportedMessage is shown when no recognition capability is available.
const UnsupportedMessage = "Speech recognition is not supported on this system. Configure a Deepgram API key and make sure ffmpeg is installed."

// ErrorMessage maps a recognition error code to a user-facing message.
func ErrorMessage(code domain.RecognitionErrorCode) string {
	switch code {
	case domain.RecognitionErrorNoSpeech:
		return "No speech detected. Please try again."
	case domain.RecognitionErrorAudioCapture:
		return "Microphone access denied or unavailable."
	case domain.RecognitionErrorNotAllowed:
		return "Microphone permission denied. Please allow microphone access."
	case domain.RecognitionErrorNetwork:
		return "Network error. Please check your connection."
	default:
		if code == "" {
			code = domain.RecognitionErrorOther
		}
		return fmt.Sprintf("Speech recognition error: %s", code)
	}
}
