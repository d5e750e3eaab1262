package usecase

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// transcriptBuffer holds finalized text and the current partial hypothesis.
// It is guarded by the owning session's mutex.
type transcriptBuffer struct {
	committed string
	interim   string
}

// Commit appends a final segment and drops the interim hypothesis it supersedes.
// It reports whether any text was appended.
func (b *transcriptBuffer) Commit(segment string) bool {
	b.interim = ""

	text := strings.TrimSpace(segment)
	if text == "" {
		return false
	}
	b.committed = appendSegment(b.committed, text)
	return true
}

// SetInterim replaces the interim hypothesis wholesale.
func (b *transcriptBuffer) SetInterim(text string) bool {
	if b.interim == text {
		return false
	}
	b.interim = text
	return true
}

func (b *transcriptBuffer) ClearInterim() {
	b.interim = ""
}

func (b *transcriptBuffer) SetCommitted(text string) {
	b.committed = text
}

func (b *transcriptBuffer) Reset() {
	b.committed = ""
	b.interim = ""
}

func appendSegment(existing string, segment string) string {
	if existing == "" {
		return segment
	}
	last, _ := utf8.DecodeLastRuneInString(existing)
	if unicode.IsSpace(last) {
		return existing + segment
	}
	return existing + " " + segment
}
