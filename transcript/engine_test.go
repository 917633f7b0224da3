package transcript

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/voxstream/voxstream/translate"
)

// scriptedTranslator returns canned streams in order and records the
// requests it saw.
type scriptedTranslator struct {
	mu       sync.Mutex
	requests []translate.Request
	streams  [][]string
}

func (t *scriptedTranslator) Translate(_ context.Context, req translate.Request) (translate.Stream, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.requests = append(t.requests, req)
	if len(t.streams) == 0 {
		return translate.NewSliceStream(), nil
	}
	deltas := t.streams[0]
	t.streams = t.streams[1:]
	return translate.NewSliceStream(deltas...), nil
}

func (t *scriptedTranslator) seen() []translate.Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]translate.Request, len(t.requests))
	copy(out, t.requests)
	return out
}

func TestEnginePassCommitsAndNotifies(t *testing.T) {
	state := NewState()
	state.AppendTranscript("the weather is quite nice today out there. next")

	tr := &scriptedTranslator{streams: [][]string{
		{"il fait vraiment tres beau dehors ", "aujourd'hui la bas. suite"},
	}}

	var updates []string
	eng := NewEngine(EngineConfig{
		State:      state,
		Translator: tr,
		Target:     "French",
		OnUpdate:   func(s string) { updates = append(updates, s) },
	})

	eng.pass(context.Background())

	reqs := tr.seen()
	if len(reqs) != 1 {
		t.Fatalf("requests = %d, want 1", len(reqs))
	}
	if reqs[0].Text != "the weather is quite nice today out there. next" {
		t.Errorf("request text = %q", reqs[0].Text)
	}
	if reqs[0].TargetLanguage != "French" {
		t.Errorf("target = %q", reqs[0].TargetLanguage)
	}

	if state.CommittedOffset() != len("the weather is quite nice today out there.") {
		t.Errorf("offset = %d", state.CommittedOffset())
	}
	if len(updates) == 0 {
		t.Fatal("no updates delivered")
	}
	last := updates[len(updates)-1]
	want := "il fait vraiment tres beau dehors aujourd'hui la bas. suite"
	if last != want {
		t.Errorf("last update = %q, want %q", last, want)
	}
}

func TestEnginePassCarriesHistory(t *testing.T) {
	state := NewState()
	state.AppendTranscript("first long sentence goes right here with enough text. ")
	state.AppendTranslation("premiere longue phrase juste ici avec assez de texte. ")
	state.CommitSentences()
	state.AppendTranscript("second part")

	tr := &scriptedTranslator{streams: [][]string{{"deuxieme partie"}}}
	eng := NewEngine(EngineConfig{State: state, Translator: tr, Target: "French"})
	eng.pass(context.Background())

	reqs := tr.seen()
	if len(reqs) != 1 {
		t.Fatalf("requests = %d, want 1", len(reqs))
	}
	if len(reqs[0].History) != 1 {
		t.Fatalf("history = %d entries, want 1", len(reqs[0].History))
	}
	if reqs[0].History[0].Translation != "premiere longue phrase juste ici avec assez de texte." {
		t.Errorf("history translation = %q", reqs[0].History[0].Translation)
	}
}

func TestEngineSkipsUnchangedTranscript(t *testing.T) {
	state := NewState()
	state.AppendTranscript("something to translate")
	state.MarkProcessed()

	tr := &scriptedTranslator{}
	eng := NewEngine(EngineConfig{State: state, Translator: tr, Target: "French"})

	ctx, cancel := context.WithTimeout(context.Background(), 400*time.Millisecond)
	defer cancel()
	_ = eng.Run(ctx)

	if n := len(tr.seen()); n != 0 {
		t.Errorf("translator called %d times on unchanged transcript", n)
	}
}

func TestEngineRunTranslatesOnGrowth(t *testing.T) {
	state := NewState()
	tr := &scriptedTranslator{streams: [][]string{{"bonjour"}}}

	done := make(chan string, 8)
	eng := NewEngine(EngineConfig{
		State:      state,
		Translator: tr,
		Target:     "French",
		OnUpdate:   func(s string) { done <- s },
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = eng.Run(ctx) }()

	state.AppendTranscript("hello")

	select {
	case got := <-done:
		if got != "bonjour" {
			t.Errorf("update = %q, want %q", got, "bonjour")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no translation update within 5s")
	}
}
