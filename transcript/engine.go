package transcript

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/voxstream/voxstream/translate"
)

// tickInterval is the engine's duty cycle.
const tickInterval = 100 * time.Millisecond

// translationInterval is the minimum spacing between translation passes.
const translationInterval = 1500 * time.Millisecond

// Engine periodically translates the unconsumed transcript suffix and
// commits aligned sentences. One engine per session.
type Engine struct {
	state      *State
	translator translate.Translator
	target     string
	onUpdate   func(translation string)
	logger     *slog.Logger
}

// EngineConfig configures an Engine. OnUpdate may be nil.
type EngineConfig struct {
	State      *State
	Translator translate.Translator
	Target     string
	OnUpdate   func(translation string)
	Logger     *slog.Logger
}

// NewEngine creates an Engine. It does nothing until Run is called.
func NewEngine(cfg EngineConfig) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		state:      cfg.State,
		translator: cfg.Translator,
		target:     cfg.Target,
		onUpdate:   cfg.OnUpdate,
		logger:     logger.With("component", "translation"),
	}
}

// Run drives translation passes until ctx is cancelled. It never returns
// a non-ctx error; translator failures are logged and retried on the next
// pass.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	var lastPass time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if e.state.ShouldForceCommit() {
			e.state.ForceCommitAll()
			e.notify()
			continue
		}

		if time.Since(lastPass) < translationInterval {
			continue
		}
		if e.state.Unchanged() {
			continue
		}
		lastPass = time.Now()
		e.pass(ctx)
	}
}

// pass runs one full translation pass: snapshot the suffix, stream the
// translation in, then try to commit.
func (e *Engine) pass(ctx context.Context) {
	text, _, ok := e.state.TranslationChunk()
	if !ok {
		e.state.MarkProcessed()
		return
	}
	e.state.MarkProcessed()

	req := translate.Request{
		Text:           text,
		TargetLanguage: e.target,
		History:        e.history(),
	}
	stream, err := e.translator.Translate(ctx, req)
	if err != nil {
		e.logger.Warn("translate request failed", "error", err)
		return
	}

	e.state.BeginTranslation()
	for {
		delta, err := stream.Next()
		if delta != "" {
			e.state.AppendTranslation(delta)
			e.notify()
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				e.logger.Warn("translate stream failed", "error", err)
			}
			break
		}
	}

	if n := e.state.CommitSentences(); n > 0 {
		e.logger.Debug("committed sentences", "pairs", n, "offset", e.state.CommittedOffset())
		e.notify()
	}
}

func (e *Engine) history() []translate.Exchange {
	pairs := e.state.History()
	out := make([]translate.Exchange, len(pairs))
	for i, p := range pairs {
		out[i] = translate.Exchange{Source: p.Source, Translation: p.Translation}
	}
	return out
}

func (e *Engine) notify() {
	if e.onUpdate != nil {
		e.onUpdate(e.state.Translation())
	}
}
