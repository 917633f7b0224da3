package audio

import (
	"math"
	"sync/atomic"
)

// RMS returns the root mean square of the samples, normalized to 0..1.
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s) / 32768.0
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// LevelMeter tracks the most recent input level. One per session; the
// capture path writes, UI code reads, no lock.
type LevelMeter struct {
	bits atomic.Uint64
}

// Update records the level of one captured frame.
func (m *LevelMeter) Update(samples []int16) {
	m.bits.Store(math.Float64bits(RMS(samples)))
}

// Level returns the last recorded level, 0..1.
func (m *LevelMeter) Level() float64 {
	return math.Float64frombits(m.bits.Load())
}

// Reset clears the meter.
func (m *LevelMeter) Reset() {
	m.bits.Store(0)
}
