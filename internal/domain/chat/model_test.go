package chat

import (
	"strings"
	"testing"
)

func TestCanonicalPair(t *testing.T) {
	tests := []struct {
		name  string
		a, b  string
		wantA string
		wantB string
	}{
		{"already ordered", "doc1", "pat1", "doc1", "pat1"},
		{"reversed", "pat1", "doc1", "doc1", "pat1"},
		{"equal", "doc1", "doc1", "doc1", "doc1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotA, gotB := CanonicalPair(tt.a, tt.b)
			if gotA != tt.wantA || gotB != tt.wantB {
				t.Errorf("CanonicalPair(%q, %q) = (%q, %q), want (%q, %q)",
					tt.a, tt.b, gotA, gotB, tt.wantA, tt.wantB)
			}
		})
	}
}

func TestParticipantKey_OrderIndependent(t *testing.T) {
	if ParticipantKey("doc1", "pat1") != ParticipantKey("pat1", "doc1") {
		t.Error("expected the same key for both orderings")
	}
	if ParticipantKey("doc1", "pat1") != "doc1|pat1" {
		t.Errorf("unexpected key %q", ParticipantKey("doc1", "pat1"))
	}
}

func TestPreview(t *testing.T) {
	t.Run("short text unchanged", func(t *testing.T) {
		if got := Preview("Hello", PreviewLimit); got != "Hello" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("exactly at limit unchanged", func(t *testing.T) {
		text := strings.Repeat("a", PreviewLimit)
		if got := Preview(text, PreviewLimit); got != text {
			t.Errorf("got %q", got)
		}
	})

	t.Run("long text truncated with marker", func(t *testing.T) {
		text := strings.Repeat("a", PreviewLimit+1)
		want := strings.Repeat("a", PreviewLimit) + "..."
		if got := Preview(text, PreviewLimit); got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("multi-byte text cut on rune boundary", func(t *testing.T) {
		text := strings.Repeat("ä", 60)
		got := Preview(text, PreviewLimit)
		want := strings.Repeat("ä", 50) + "..."
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})
}

func TestConversation_HasParticipant(t *testing.T) {
	c := &Conversation{ParticipantA: "doc1", ParticipantB: "pat1"}
	if !c.HasParticipant("doc1") || !c.HasParticipant("pat1") {
		t.Error("expected both participants to match")
	}
	if c.HasParticipant("nurse1") {
		t.Error("expected non-participant to not match")
	}
}
