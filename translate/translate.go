// Package translate defines the translation boundary the commit engine
// drives. Translators produce a finite, pull-based stream of text deltas;
// the engine owns consumption, so no callback chains thread through the
// pipeline.
package translate

import (
	"context"
	"fmt"
	"io"
)

// Stream is a lazy sequence of text deltas. Next returns io.EOF after the
// final delta. Streams are finite and not restartable.
type Stream interface {
	Next() (string, error)
}

// Exchange is one completed (source, translation) pair, supplied to
// translators as conversational context so style stays consistent.
type Exchange struct {
	Source      string
	Translation string
}

// Request is one translation unit: the unconsumed transcript suffix plus
// recent history.
type Request struct {
	Text           string
	TargetLanguage string
	History        []Exchange
}

// Translator turns a request into a delta stream. Implementations block
// in Next, not in Translate.
type Translator interface {
	Translate(ctx context.Context, req Request) (Stream, error)
}

// SliceStream adapts a fixed set of deltas to the Stream interface.
// Useful for non-streaming providers and tests.
type SliceStream struct {
	deltas []string
	pos    int
}

// NewSliceStream wraps deltas in a Stream.
func NewSliceStream(deltas ...string) *SliceStream {
	return &SliceStream{deltas: deltas}
}

// Next implements Stream.
func (s *SliceStream) Next() (string, error) {
	if s.pos >= len(s.deltas) {
		return "", io.EOF
	}
	d := s.deltas[s.pos]
	s.pos++
	return d, nil
}

// Provider tags a translation backend. Request building differs per
// provider and is dispatched in exactly one place (BuildMessages).
type Provider int

const (
	// ProviderChat is an OpenAI-compatible chat endpoint with a system
	// role.
	ProviderChat Provider = iota
	// ProviderGemma is a chat endpoint without a system role; the
	// instruction folds into the first user message.
	ProviderGemma
	// ProviderGTX is the plain-text fallback endpoint; it takes no
	// message list at all.
	ProviderGTX
)

// String implements fmt.Stringer.
func (p Provider) String() string {
	switch p {
	case ProviderChat:
		return "chat"
	case ProviderGemma:
		return "gemma"
	case ProviderGTX:
		return "gtx"
	}
	return "unknown"
}

// Message is one chat message in a provider request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Instruction returns the system instruction for a target language.
func Instruction(target string) string {
	return fmt.Sprintf("You are a professional translator. Translate text to %s to append suitably to the context. Output ONLY the translation, nothing else.", target)
}

// BuildMessages assembles the provider-specific message list for a
// request. This is the single dispatch point for provider differences.
func BuildMessages(p Provider, req Request) []Message {
	history := make([]Message, 0, len(req.History)*2)
	for _, ex := range req.History {
		history = append(history,
			Message{Role: "user", Content: fmt.Sprintf("Translate to %s:\n%s", req.TargetLanguage, ex.Source)},
			Message{Role: "assistant", Content: ex.Translation},
		)
	}

	switch p {
	case ProviderGemma:
		msgs := history
		msgs = append(msgs, Message{
			Role:    "user",
			Content: fmt.Sprintf("%s\n\nTranslate to %s:\n%s", Instruction(req.TargetLanguage), req.TargetLanguage, req.Text),
		})
		return msgs
	case ProviderGTX:
		return nil
	default:
		msgs := make([]Message, 0, len(history)+2)
		msgs = append(msgs, Message{Role: "system", Content: Instruction(req.TargetLanguage)})
		msgs = append(msgs, history...)
		msgs = append(msgs, Message{
			Role:    "user",
			Content: fmt.Sprintf("Translate to %s:\n%s", req.TargetLanguage, req.Text),
		})
		return msgs
	}
}
