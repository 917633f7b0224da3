// Package audio provides the PCM primitives shared by the capture,
// streaming, and playback stages: downmix/resample, little-endian PCM16
// codecs, and the buffers frames move through.
package audio

import "math"

// SampleRate is the wire rate for outbound speech audio. The backend
// expects mono PCM16 at 16 kHz.
const SampleRate = 16000

// SamplesPer100ms is one duty-cycle tick worth of audio at SampleRate.
const SamplesPer100ms = SampleRate / 10

// PlaybackRate is the rate of inbound synthesized audio.
const PlaybackRate = 24000

// Downmix collapses interleaved multi-channel PCM to mono by integer
// averaging each frame. channels <= 1 returns the input unchanged.
func Downmix(src []int16, channels int) []int16 {
	if channels <= 1 {
		return src
	}
	frames := len(src) / channels
	out := make([]int16, frames)
	for i := 0; i < frames; i++ {
		var sum int
		for c := 0; c < channels; c++ {
			sum += int(src[i*channels+c])
		}
		out[i] = int16(sum / channels)
	}
	return out
}

// Resample converts mono PCM from srcRate to dstRate by nearest-neighbour
// index mapping: dst[i] = src[round(i/ratio)] with ratio = dstRate/srcRate.
// No filtering; this is deliberately cheap enough to run inside a hardware
// capture callback.
func Resample(src []int16, srcRate, dstRate int) []int16 {
	if srcRate == dstRate || len(src) == 0 {
		return src
	}
	ratio := float64(dstRate) / float64(srcRate)
	n := int(float64(len(src)) * ratio)
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		j := int(math.Round(float64(i) / ratio))
		if j >= len(src) {
			j = len(src) - 1
		}
		out[i] = src[j]
	}
	return out
}

// DownmixResample converts interleaved PCM at an arbitrary rate and channel
// count to mono at dstRate. This is the capture-side path; the playback
// side uses the same primitives in the opposite direction.
func DownmixResample(src []int16, srcRate, channels, dstRate int) []int16 {
	return Resample(Downmix(src, channels), srcRate, dstRate)
}

// Silence returns n zero samples.
func Silence(n int) []int16 {
	return make([]int16, n)
}
