package usecase

import "testing"

func TestTranscriptBufferCommitSeparators(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		existing string
		segment  string
		want     string
	}{
		{name: "empty", existing: "", segment: "hello", want: "hello"},
		{name: "space added", existing: "hello", segment: "world", want: "hello world"},
		{name: "trailing space", existing: "hello ", segment: "world", want: "hello world"},
		{name: "trailing newline", existing: "hello\n", segment: "world", want: "hello\nworld"},
		{name: "segment trimmed", existing: "a", segment: "  b  ", want: "a b"},
		{name: "unicode", existing: "café", segment: "crème", want: "café crème"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			b := transcriptBuffer{committed: tc.existing, interim: "pending"}
			if !b.Commit(tc.segment) {
				t.Fatalf("expected commit to append")
			}
			if b.committed != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, b.committed)
			}
			if b.interim != "" {
				t.Fatalf("expected interim cleared, got %q", b.interim)
			}
		})
	}
}

func TestTranscriptBufferBlankCommit(t *testing.T) {
	t.Parallel()

	b := transcriptBuffer{committed: "kept", interim: "draft"}
	if b.Commit(" \t") {
		t.Fatalf("expected blank segment to be skipped")
	}
	if b.committed != "kept" || b.interim != "" {
		t.Fatalf("unexpected buffer: %+v", b)
	}
}

func TestTranscriptBufferInterimAndReset(t *testing.T) {
	t.Parallel()

	var b transcriptBuffer
	if !b.SetInterim("he") {
		t.Fatalf("expected change")
	}
	if b.SetInterim("he") {
		t.Fatalf("expected no change for same text")
	}

	b.SetCommitted("typed")
	b.ClearInterim()
	if b.committed != "typed" || b.interim != "" {
		t.Fatalf("unexpected buffer: %+v", b)
	}

	b.SetInterim("x")
	b.Reset()
	if b.committed != "" || b.interim != "" {
		t.Fatalf("expected empty buffer after reset: %+v", b)
	}
}
