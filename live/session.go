package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"nhooyr.io/websocket"

	"github.com/voxstream/voxstream/audio"
	"github.com/voxstream/voxstream/internal/types"
	"github.com/voxstream/voxstream/internal/wire"
	"github.com/voxstream/voxstream/transcript"
)

const (
	// tick is the duty cycle: every tick the session decides what audio
	// to send and drains whatever arrived.
	tick = 100 * time.Millisecond

	// normalWindow is how long the session streams live audio before
	// injecting a silence break. The remote model stalls when fed one
	// uninterrupted stream for too long.
	normalWindow = 20 * time.Second

	// silenceWindow is how long the silence break lasts.
	silenceWindow = 2 * time.Second

	// catchUpChunk is the per-tick drain from the side buffer during
	// catch-up, twice real-time.
	catchUpChunk = 2 * audio.SamplesPer100ms

	// handshakeTimeout bounds connect plus setup ack.
	handshakeTimeout = 30 * time.Second

	// reconnectAttempts bounds one reconnection episode.
	reconnectAttempts = 3

	// stuckEmptyPolls and stuckNoResult together detect a stalled model:
	// the transport looks healthy but nothing has come back.
	stuckEmptyPolls = 50
	stuckNoResult   = 8 * time.Second
)

var (
	// ErrMissingCredentials means the session was started without an API
	// key. Terminal, never retried.
	ErrMissingCredentials = errors.New("missing api key")

	// ErrHandshakeTimeout means the setup ack did not arrive in time.
	ErrHandshakeTimeout = errors.New("handshake timed out")

	// ErrRetriesExhausted means a reconnection episode used up all its
	// attempts.
	ErrRetriesExhausted = errors.New("reconnect attempts exhausted")

	errStopped    = errors.New("stop requested")
	errStuckModel = errors.New("model produced no results")
)

// Mode is the keep-alive state.
type Mode int32

const (
	// ModeNormal forwards captured audio as is.
	ModeNormal Mode = iota
	// ModeSilence sends zero samples and diverts captured audio to the
	// side buffer.
	ModeSilence
	// ModeCatchUp replays the side buffer at twice real-time.
	ModeCatchUp
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeSilence:
		return "silence"
	case ModeCatchUp:
		return "catchup"
	}
	return "unknown"
}

// Config describes one session. Immutable once the session starts.
type Config struct {
	// Credentials is the API key. Ignored when Dialer is set.
	Credentials string
	// Model is the speech model id, without the "models/" prefix.
	Model string
	// SystemText is an optional system instruction for the session.
	SystemText string
	// Dialer overrides the default endpoint dialer.
	Dialer Dialer
	// Transcripts receives inbound transcript fragments.
	Transcripts *transcript.State
	// OnTranscript is called with the full display string after each
	// fragment. May be nil.
	OnTranscript types.TranscriptFunc
	Logger       *slog.Logger
}

// Session owns one streaming transcription connection. Create with
// NewSession, feed audio through PushAudio from the capture side, and run
// the duty cycle with Run on its own goroutine.
type Session struct {
	cfg    Config
	dialer Dialer
	logger *slog.Logger

	pending *audio.ChunkBuffer // captured, not yet sent
	side    *audio.ChunkBuffer // diverted during silence, drained in catch-up
	level   audio.LevelMeter

	mode          atomic.Int32
	modeStartedAt time.Time // session goroutine only

	paused  atomic.Bool
	stopped atomic.Bool
	aborted atomic.Bool

	emptyPolls   int       // session goroutine only
	lastResultAt time.Time // session goroutine only

	recMu     sync.Mutex
	recording []int16

	// Timing knobs, package defaults unless overridden in tests.
	tickEvery     time.Duration
	normalWindow  time.Duration
	silenceWindow time.Duration
	stuckAfter    time.Duration

	onMode func(Mode)
}

// NewSession creates a Session. Run must be called to start it.
func NewSession(cfg Config) (*Session, error) {
	if cfg.Dialer == nil && cfg.Credentials == "" {
		return nil, ErrMissingCredentials
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = NewDialer(DefaultEndpoint, cfg.Credentials)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		cfg:           cfg,
		dialer:        dialer,
		logger:        logger.With("component", "session"),
		pending:       audio.NewChunkBuffer(),
		side:          audio.NewChunkBuffer(),
		tickEvery:     tick,
		normalWindow:  normalWindow,
		silenceWindow: silenceWindow,
		stuckAfter:    stuckNoResult,
	}, nil
}

// PushAudio hands captured mono 16kHz samples to the session. Safe to
// call from a capture callback. Dropped while paused or stopped.
func (s *Session) PushAudio(samples []int16) {
	if s.paused.Load() || s.stopped.Load() || len(samples) == 0 {
		return
	}
	s.pending.Append(samples)
	s.level.Update(samples)
	s.recMu.Lock()
	s.recording = append(s.recording, samples...)
	s.recMu.Unlock()
}

// InputLevel returns the RMS of the most recent captured frame, 0..1.
func (s *Session) InputLevel() float64 { return s.level.Level() }

// Stop requests a graceful end. Observed within one tick, including
// mid-reconnect.
func (s *Session) Stop() { s.stopped.Store(true) }

// Pause suppresses outbound capture without ending the session.
func (s *Session) Pause(paused bool) { s.paused.Store(paused) }

// Abort stops the session and discards the accumulated recording.
func (s *Session) Abort() {
	s.aborted.Store(true)
	s.stopped.Store(true)
}

// Mode returns the current keep-alive state.
func (s *Session) Mode() Mode { return Mode(s.mode.Load()) }

// Recording returns the accumulated mono 16kHz capture, or nil after an
// abort.
func (s *Session) Recording() []int16 {
	if s.aborted.Load() {
		return nil
	}
	s.recMu.Lock()
	defer s.recMu.Unlock()
	out := make([]int16, len(s.recording))
	copy(out, s.recording)
	return out
}

func (s *Session) setMode(m Mode, now time.Time) {
	if Mode(s.mode.Load()) == m {
		return
	}
	s.logger.Debug("keep-alive transition", "from", s.Mode(), "to", m)
	s.mode.Store(int32(m))
	s.modeStartedAt = now
	if s.onMode != nil {
		s.onMode(m)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Duty cycle
// ─────────────────────────────────────────────────────────────────────────────

// Run connects and drives the session until Stop, Abort, or a terminal
// failure. Returns nil on a requested stop.
func (s *Session) Run(ctx context.Context) error {
	s.modeStartedAt = time.Now()
	s.lastResultAt = time.Now()

	conn, p, err := s.establish(ctx)
	if err != nil {
		if errors.Is(err, errStopped) {
			return nil
		}
		return err
	}
	defer func() {
		conn.Close()
		p.stop()
	}()

	ticker := time.NewTicker(s.tickEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if s.stopped.Load() {
			s.recMu.Lock()
			recorded := len(s.recording)
			s.recMu.Unlock()
			s.logger.Info("session stopped", "recorded_samples", recorded)
			return nil
		}

		err := s.drainInbound(p)
		if err == nil {
			err = s.sendStep(ctx, conn)
		}
		if err == nil && s.stuckModel() {
			err = errStuckModel
		}
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		s.logger.Warn("session failure, reconnecting",
			"error", err, "hard", isHardTransport(err))
		conn.Close()
		p.stop()
		next, nextPump, rerr := s.reconnect(ctx)
		if rerr != nil {
			if errors.Is(rerr, errStopped) {
				return nil
			}
			return rerr
		}
		conn, p = next, nextPump
	}
}

// sendStep runs one tick of the keep-alive machine: transition first,
// then send whatever the current state calls for.
func (s *Session) sendStep(ctx context.Context, conn Conn) error {
	now := time.Now()
	switch s.Mode() {
	case ModeNormal:
		if now.Sub(s.modeStartedAt) >= s.normalWindow {
			s.setMode(ModeSilence, now)
		}
	case ModeSilence:
		if now.Sub(s.modeStartedAt) >= s.silenceWindow {
			s.setMode(ModeCatchUp, now)
		}
	case ModeCatchUp:
		if s.side.Len() == 0 {
			s.setMode(ModeNormal, now)
		}
	}

	switch s.Mode() {
	case ModeNormal:
		if chunk := s.pending.TakeAll(); len(chunk) > 0 {
			return s.send(ctx, conn, chunk)
		}
	case ModeSilence:
		s.side.Append(s.pending.TakeAll())
		return s.send(ctx, conn, audio.Silence(audio.SamplesPer100ms))
	case ModeCatchUp:
		// Fresh capture joins the tail so replay order is preserved.
		s.side.Append(s.pending.TakeAll())
		if chunk := s.side.TakeUpTo(catchUpChunk); len(chunk) > 0 {
			return s.send(ctx, conn, chunk)
		}
	}
	return nil
}

func (s *Session) send(ctx context.Context, conn Conn, chunk []int16) error {
	wctx, cancel := context.WithTimeout(ctx, tick)
	defer cancel()
	if err := conn.Write(wctx, wire.MediaChunk(chunk)); err != nil {
		return fmt.Errorf("send audio: %w", err)
	}
	return nil
}

// drainInbound consumes everything the pump has buffered. An empty tick
// bumps the stuck-model counter.
func (s *Session) drainInbound(p *pump) error {
	got := false
	for {
		select {
		case msg := <-p.msgs:
			got = true
			if err := s.handleMessage(msg); err != nil {
				return err
			}
		case err := <-p.errs:
			return err
		default:
			if !got {
				s.emptyPolls++
			}
			return nil
		}
	}
}

func (s *Session) handleMessage(msg wire.ServerMessage) error {
	if msg.Err != "" {
		return fmt.Errorf("server error: %s", msg.Err)
	}
	if msg.Transcript != "" {
		s.emptyPolls = 0
		s.lastResultAt = time.Now()
		if s.cfg.Transcripts != nil {
			s.cfg.Transcripts.AppendTranscript(msg.Transcript)
			if s.cfg.OnTranscript != nil {
				s.cfg.OnTranscript(s.cfg.Transcripts.Transcript())
			}
		}
	}
	if msg.TurnComplete {
		s.logger.Debug("turn complete")
	}
	return nil
}

func (s *Session) stuckModel() bool {
	return s.emptyPolls > stuckEmptyPolls && time.Since(s.lastResultAt) >= s.stuckAfter
}

// ─────────────────────────────────────────────────────────────────────────────
// Connection lifecycle
// ─────────────────────────────────────────────────────────────────────────────

// establish performs the initial bounded connect.
func (s *Session) establish(ctx context.Context) (Conn, *pump, error) {
	conn, err := s.dialRetry(ctx)
	if err != nil {
		return nil, nil, err
	}
	return conn, newPump(conn), nil
}

// reconnect rebuilds the connection after a failure, preserving every
// captured sample: whatever the old connection never sent, plus anything
// captured while reconnecting, becomes the next catch-up buffer.
func (s *Session) reconnect(ctx context.Context) (Conn, *pump, error) {
	replay := audio.NewChunkBuffer()
	replay.Append(s.side.TakeAll())
	replay.Append(s.pending.TakeAll())

	conn, err := s.dialRetry(ctx)
	if err != nil {
		return nil, nil, err
	}

	// Capture kept arriving during the handshake.
	replay.Append(s.pending.TakeAll())
	s.side.Clear()
	s.side.Append(replay.TakeAll())

	now := time.Now()
	s.setMode(ModeCatchUp, now)
	s.emptyPolls = 0
	s.lastResultAt = now
	s.logger.Info("reconnected", "replay_samples", s.side.Len())
	return conn, newPump(conn), nil
}

func (s *Session) dialRetry(ctx context.Context) (Conn, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = time.Second

	attempt := 0
	conn, err := backoff.Retry(ctx, func() (Conn, error) {
		if s.stopped.Load() {
			return nil, backoff.Permanent(errStopped)
		}
		attempt++
		c, err := s.connectOnce(ctx)
		if err != nil {
			s.logger.Warn("connect failed", "attempt", attempt, "error", err)
		}
		return c, err
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(reconnectAttempts))
	if err != nil {
		if errors.Is(err, errStopped) {
			return nil, errStopped
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrRetriesExhausted, err)
	}
	return conn, nil
}

// connectOnce dials and runs the setup/ack handshake.
func (s *Session) connectOnce(ctx context.Context) (Conn, error) {
	hctx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	conn, err := s.dialer(hctx)
	if err != nil {
		return nil, err
	}
	setup := wire.Setup(wire.SetupConfig{
		Model:           s.cfg.Model,
		SystemText:      s.cfg.SystemText,
		TranscribeInput: true,
	})
	if err := conn.Write(hctx, setup); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send setup: %w", err)
	}
	for {
		data, err := conn.Read(hctx)
		if err != nil {
			conn.Close()
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, ErrHandshakeTimeout
			}
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

// isHardTransport reports whether err looks like a broken transport
// rather than a protocol-level complaint.
func isHardTransport(err error) bool {
	if websocket.CloseStatus(err) != -1 {
		return true
	}
	msg := err.Error()
	for _, marker := range []string{"connection reset", "closed", "broken"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// pump turns a Conn's blocking Read into a channel the duty cycle can
// poll without blocking.
type pump struct {
	msgs chan wire.ServerMessage
	errs chan error
	done chan struct{}
	once sync.Once
}

func newPump(conn Conn) *pump {
	p := &pump{
		msgs: make(chan wire.ServerMessage, 64),
		errs: make(chan error, 1),
		done: make(chan struct{}),
	}
	go func() {
		for {
			data, err := conn.Read(context.Background())
			if err != nil {
				p.errs <- err
				return
			}
			select {
			case p.msgs <- wire.Parse(data):
			case <-p.done:
				return
			}
		}
	}()
	return p
}

func (p *pump) stop() {
	p.once.Do(func() { close(p.done) })
}
