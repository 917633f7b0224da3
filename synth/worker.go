package synth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/voxstream/voxstream/internal/wire"
	"github.com/voxstream/voxstream/live"
)

const (
	// turnReadTimeout bounds a single read while streaming one turn.
	turnReadTimeout = 15 * time.Second

	// connectRetryDelay spaces out the next attempt after a transport
	// failure; credentialsRetryDelay is longer because missing keys do
	// not fix themselves quickly.
	connectRetryDelay     = 500 * time.Millisecond
	credentialsRetryDelay = 5 * time.Second
)

// workerLoop pops requests and fetches their audio until shutdown.
func (m *Manager) workerLoop(n int) {
	defer m.wg.Done()
	logger := m.logger.With("worker", n)
	for {
		r := m.popWork()
		if r == nil {
			return
		}
		m.fetch(r, logger.With("id", r.id))
	}
}

// fetch runs one request end to end: connect, handshake, submit the text
// as one turn, stream audio events. The events channel always sees an End
// or a close, so the player can never hang on this request.
func (m *Manager) fetch(r *request, logger *slog.Logger) {
	defer close(r.events)
	// Best effort: a full channel means the player already dropped this
	// request, and the close is end-of-stream enough.
	end := func() {
		select {
		case r.events <- AudioEvent{End: true}:
		default:
		}
	}

	if m.stale(r) {
		logger.Debug("stale before fetch, discarding")
		end()
		return
	}
	if m.dialer == nil {
		logger.Warn("no credentials, skipping utterance")
		end()
		m.sleep(credentialsRetryDelay)
		return
	}

	conn, err := m.connect(r)
	if err != nil {
		logger.Warn("synthesis connect failed", "error", err)
		end()
		m.sleep(connectRetryDelay)
		return
	}
	defer conn.Close()

	if err := conn.Write(m.ctx, wire.TextTurn(r.text)); err != nil {
		logger.Warn("submit turn failed", "error", err)
		end()
		return
	}

	var received int
	for {
		if m.stale(r) {
			logger.Debug("stale mid-stream, aborting", "bytes", received)
			end()
			return
		}
		rctx, cancel := context.WithTimeout(m.ctx, turnReadTimeout)
		data, err := conn.Read(rctx)
		cancel()
		if err != nil {
			logger.Warn("synthesis stream ended early", "error", err, "bytes", received)
			end()
			return
		}
		msg := wire.Parse(data)
		if msg.Err != "" {
			logger.Warn("synthesis rejected", "error", msg.Err)
			end()
			return
		}
		if len(msg.Audio) > 0 {
			received += len(msg.Audio)
			if !m.deliver(r, AudioEvent{Data: msg.Audio}) {
				end()
				return
			}
		}
		if msg.TurnComplete {
			logger.Debug("turn complete", "bytes", received)
			end()
			return
		}
	}
}

// connect dials and completes the setup handshake for one utterance. The
// connection lives for a single turn; reusing it lets backend context
// grow without bound.
func (m *Manager) connect(r *request) (live.Conn, error) {
	hctx, cancel := context.WithTimeout(m.ctx, 30*time.Second)
	defer cancel()

	conn, err := m.dialer(hctx)
	if err != nil {
		return nil, err
	}
	voice := m.cfg.Voice
	if voice == "" {
		voice = VoiceFor(r.text)
	}
	setup := wire.Setup(wire.SetupConfig{
		Model:      m.cfg.Model,
		Voice:      voice,
		SystemText: m.instruction(),
	})
	if err := conn.Write(hctx, setup); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send setup: %w", err)
	}
	for {
		data, err := conn.Read(hctx)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("handshake read: %w", err)
		}
		msg := wire.Parse(data)
		if msg.Err != "" {
			conn.Close()
			return nil, fmt.Errorf("handshake rejected: %s", msg.Err)
		}
		if msg.SetupComplete {
			return conn, nil
		}
	}
}

// instruction is the synthesis system prompt, with optional speed
// phrasing.
func (m *Manager) instruction() string {
	text := "Repeat the user's message aloud exactly as written. Do not add, omit, translate, or comment on anything."
	switch {
	case m.cfg.SpeakingRate > 0 && m.cfg.SpeakingRate < 1:
		text += " Speak slowly."
	case m.cfg.SpeakingRate > 1:
		text += " Speak quickly."
	}
	return text
}

// deliver sends a data event without ever blocking forever: a full
// channel whose request went stale means the player dropped it.
func (m *Manager) deliver(r *request, ev AudioEvent) bool {
	for {
		select {
		case r.events <- ev:
			return true
		case <-time.After(100 * time.Millisecond):
			if m.stale(r) || m.ctx.Err() != nil {
				return false
			}
		}
	}
}

// sleep waits without outliving shutdown.
func (m *Manager) sleep(d time.Duration) {
	select {
	case <-time.After(d):
	case <-m.ctx.Done():
	}
}
