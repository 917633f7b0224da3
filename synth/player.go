package synth

import (
	"log/slog"
	"time"

	"github.com/voxstream/voxstream/audio"
	"github.com/voxstream/voxstream/internal/types"
)

// playerPoll is how often the player re-checks the generation counter
// while waiting on events or drain.
const playerPoll = 50 * time.Millisecond

// playerLoop renders requests strictly in enqueue order. Per-request
// chunk order is the channel's order; cross-request order is the playback
// queue's FIFO discipline.
func (m *Manager) playerLoop() {
	defer m.wg.Done()
	for {
		r := m.popPlayback()
		if r == nil {
			return
		}
		m.play(r)
	}
}

func (m *Manager) play(r *request) {
	logger := m.logger.With("id", r.id)
	started := false
	for {
		if m.stale(r) {
			if m.cfg.Sink != nil {
				m.cfg.Sink.Clear()
			}
			m.notify(r.target, types.PlaybackEnded)
			logger.Debug("playback interrupted")
			return
		}
		select {
		case ev, ok := <-r.events:
			if !ok || ev.End {
				m.drainAndFinish(r, started, logger)
				return
			}
			if len(ev.Data) == 0 {
				continue
			}
			if !started {
				started = true
				m.notify(r.target, types.PlaybackStarted)
			}
			if m.cfg.Sink != nil {
				m.cfg.Sink.Write(audio.DecodePCM16(ev.Data))
			}
		case <-time.After(playerPoll):
		case <-m.ctx.Done():
			return
		}
	}
}

// drainAndFinish waits for the sink to finish rendering before announcing
// the end, unless an interrupt empties it first.
func (m *Manager) drainAndFinish(r *request, started bool, logger *slog.Logger) {
	if m.cfg.Sink != nil {
		for m.cfg.Sink.Buffered() > 0 {
			if m.stale(r) || m.ctx.Err() != nil {
				break
			}
			time.Sleep(playerPoll)
		}
	}
	m.notify(r.target, types.PlaybackEnded)
	logger.Debug("playback finished", "played", started)
}
