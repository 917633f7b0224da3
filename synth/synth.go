// Package synth is the speech synthesis manager: a generation-stamped
// work queue feeding parallel fetch workers, and a strictly FIFO playback
// queue feeding one player. Interrupting bumps the generation counter,
// which invalidates everything queued or in flight at once.
package synth

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/voxstream/voxstream/internal/types"
	"github.com/voxstream/voxstream/live"
)

// fetchWorkers is the fixed size of the network-fetch pool.
const fetchWorkers = 2

// AudioEvent is one item on a request's event channel: a PCM16 chunk, or
// the end-of-stream marker. Every request produces exactly one End.
type AudioEvent struct {
	Data []byte
	End  bool
}

// request travels both queues. The events channel is the only link
// between the fetch worker and the player.
type request struct {
	id         uint64
	text       string
	target     types.Target
	generation uint64
	events     chan AudioEvent
}

// Sink renders PCM16 audio. audio.RingBuffer satisfies it.
type Sink interface {
	Write(samples []int16)
	Buffered() int
	Clear()
}

// Config configures a Manager.
type Config struct {
	// Credentials is the API key. Ignored when Dialer is set.
	Credentials string
	// Model is the synthesis model id, without the "models/" prefix.
	Model string
	// Voice pins a synthesis voice. Empty picks one per utterance from
	// the detected language.
	Voice string
	// SpeakingRate adjusts delivery speed; 0 means natural.
	SpeakingRate float64
	// Dialer overrides the default endpoint dialer.
	Dialer live.Dialer
	// Sink receives decoded playback audio.
	Sink Sink
	// OnPlayback receives loading/started/ended transitions. May be nil.
	OnPlayback types.PlaybackFunc
	Logger     *slog.Logger
}

// Manager owns the two queues, the worker pool, and the player. Create
// with NewManager; it is live immediately.
type Manager struct {
	cfg    Config
	dialer live.Dialer
	logger *slog.Logger

	generation atomic.Uint64
	nextID     atomic.Uint64

	mu       sync.Mutex
	workCond *sync.Cond
	playCond *sync.Cond
	work     []*request
	playback []*request
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a Manager and starts its workers and player.
func NewManager(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dialer := cfg.Dialer
	if dialer == nil && cfg.Credentials != "" {
		dialer = live.NewDialer(live.DefaultEndpoint, cfg.Credentials)
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:    cfg,
		dialer: dialer,
		logger: logger.With("component", "synth"),
		ctx:    ctx,
		cancel: cancel,
	}
	m.workCond = sync.NewCond(&m.mu)
	m.playCond = sync.NewCond(&m.mu)

	for i := 0; i < fetchWorkers; i++ {
		m.wg.Add(1)
		go m.workerLoop(i)
	}
	m.wg.Add(1)
	go m.playerLoop()
	return m
}

// Speak queues text for synthesis and playback behind whatever is already
// queued. Returns the request id.
func (m *Manager) Speak(text string, target types.Target) uint64 {
	return m.enqueue(text, target)
}

// SpeakInterrupt discards everything queued or in flight and queues text
// as the only request. Observed by workers and the player within one
// polling interval.
func (m *Manager) SpeakInterrupt(text string, target types.Target) uint64 {
	m.invalidate()
	return m.enqueue(text, target)
}

// Stop discards everything queued or in flight.
func (m *Manager) Stop() {
	m.invalidate()
}

// Shutdown stops all work and waits for the workers and player to exit.
func (m *Manager) Shutdown() {
	m.invalidate()
	m.mu.Lock()
	m.closed = true
	m.workCond.Broadcast()
	m.playCond.Broadcast()
	m.mu.Unlock()
	m.cancel()
	m.wg.Wait()
}

// Generation returns the current interrupt epoch.
func (m *Manager) Generation() uint64 { return m.generation.Load() }

func (m *Manager) enqueue(text string, target types.Target) uint64 {
	r := &request{
		id:         m.nextID.Add(1),
		text:       text,
		target:     target,
		generation: m.generation.Load(),
		events:     make(chan AudioEvent, 32),
	}
	m.mu.Lock()
	m.work = append(m.work, r)
	m.playback = append(m.playback, r)
	m.workCond.Signal()
	m.playCond.Signal()
	m.mu.Unlock()

	m.notify(target, types.PlaybackLoading)
	m.logger.Debug("queued utterance", "id", r.id, "generation", r.generation, "chars", len(text))
	return r.id
}

// invalidate bumps the generation and clears both queues. In-flight
// workers and the player notice the bump on their next iteration.
func (m *Manager) invalidate() {
	gen := m.generation.Add(1)
	m.mu.Lock()
	dropped := len(m.work) + len(m.playback)
	m.work = nil
	m.playback = nil
	m.mu.Unlock()
	if m.cfg.Sink != nil {
		m.cfg.Sink.Clear()
	}
	m.logger.Debug("generation bumped", "generation", gen, "dropped", dropped)
}

func (m *Manager) stale(r *request) bool {
	return r.generation < m.generation.Load()
}

func (m *Manager) popWork() *request {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.work) == 0 && !m.closed {
		m.workCond.Wait()
	}
	if m.closed {
		return nil
	}
	r := m.work[0]
	m.work = m.work[1:]
	return r
}

func (m *Manager) popPlayback() *request {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.playback) == 0 && !m.closed {
		m.playCond.Wait()
	}
	if m.closed {
		return nil
	}
	r := m.playback[0]
	m.playback = m.playback[1:]
	return r
}

// queueLens reports (work, playback) lengths.
func (m *Manager) queueLens() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.work), len(m.playback)
}

func (m *Manager) notify(target types.Target, state types.PlaybackState) {
	if m.cfg.OnPlayback != nil {
		m.cfg.OnPlayback(target, state)
	}
}
