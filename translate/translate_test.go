package translate

import (
	"errors"
	"io"
	"testing"
)

func TestSliceStream(t *testing.T) {
	s := NewSliceStream("a", "b")
	for _, want := range []string{"a", "b"} {
		got, err := s.Next()
		if err != nil || got != want {
			t.Fatalf("Next() = %q, %v, want %q", got, err, want)
		}
	}
	if _, err := s.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("exhausted Next() error = %v, want io.EOF", err)
	}
	if _, err := s.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Next() after EOF error = %v, want io.EOF", err)
	}
}

func TestBuildMessages(t *testing.T) {
	req := Request{
		Text:           "how are you",
		TargetLanguage: "French",
		History: []Exchange{
			{Source: "hello.", Translation: "bonjour."},
		},
	}

	t.Run("chat carries system role and history", func(t *testing.T) {
		msgs := BuildMessages(ProviderChat, req)
		if len(msgs) != 4 {
			t.Fatalf("message count = %d, want 4", len(msgs))
		}
		if msgs[0].Role != "system" {
			t.Errorf("first role = %q, want system", msgs[0].Role)
		}
		if msgs[1].Role != "user" || msgs[2].Role != "assistant" {
			t.Errorf("history roles = %q, %q", msgs[1].Role, msgs[2].Role)
		}
		if msgs[2].Content != "bonjour." {
			t.Errorf("history translation = %q", msgs[2].Content)
		}
		if msgs[3].Role != "user" {
			t.Errorf("last role = %q, want user", msgs[3].Role)
		}
	})

	t.Run("gemma folds instruction into user message", func(t *testing.T) {
		msgs := BuildMessages(ProviderGemma, req)
		if len(msgs) != 3 {
			t.Fatalf("message count = %d, want 3", len(msgs))
		}
		for _, m := range msgs {
			if m.Role == "system" {
				t.Error("gemma request carries a system role")
			}
		}
	})

	t.Run("gtx takes no message list", func(t *testing.T) {
		if msgs := BuildMessages(ProviderGTX, req); msgs != nil {
			t.Errorf("gtx messages = %v, want nil", msgs)
		}
	})
}

func TestProviderString(t *testing.T) {
	tests := []struct {
		p    Provider
		want string
	}{
		{ProviderChat, "chat"},
		{ProviderGemma, "gemma"},
		{ProviderGTX, "gtx"},
		{Provider(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.p.String(); got != tt.want {
			t.Errorf("Provider(%d).String() = %q, want %q", tt.p, got, tt.want)
		}
	}
}
