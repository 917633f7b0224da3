package audio

import (
	"math"
	"testing"
)

func TestDownmix(t *testing.T) {
	tests := []struct {
		name     string
		src      []int16
		channels int
		want     []int16
	}{
		{"mono passthrough", []int16{1, 2, 3}, 1, []int16{1, 2, 3}},
		{"stereo average", []int16{10, 20, 30, 50}, 2, []int16{15, 40}},
		{"three channel average", []int16{3, 6, 9, 12, 15, 18}, 3, []int16{6, 15}},
		{"negative values", []int16{-10, 10, -20, -40}, 2, []int16{0, -30}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Downmix(tt.src, tt.channels)
			if len(got) != len(tt.want) {
				t.Fatalf("length = %d, want %d", len(got), len(tt.want))
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("sample %d = %d, want %d", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestResampleIdentity(t *testing.T) {
	src := []int16{1, 2, 3, 4}
	got := Resample(src, 16000, 16000)
	if len(got) != len(src) {
		t.Fatalf("length = %d, want %d", len(got), len(src))
	}
}

func TestResampleNearestNeighbour(t *testing.T) {
	// 48k -> 16k keeps every third sample (round(i/ratio) with ratio 1/3).
	src := make([]int16, 48)
	for i := range src {
		src[i] = int16(i)
	}
	got := Resample(src, 48000, 16000)
	if len(got) != 16 {
		t.Fatalf("length = %d, want 16", len(got))
	}
	for i, v := range got {
		if v != int16(i*3) {
			t.Errorf("dst[%d] = %d, want %d", i, v, i*3)
		}
	}
}

func TestDownmixResampleThreeChannel48k(t *testing.T) {
	const (
		channels = 3
		srcRate  = 48000
		frames   = 4800 // 100ms
	)
	src := make([]int16, frames*channels)
	for f := 0; f < frames; f++ {
		for c := 0; c < channels; c++ {
			src[f*channels+c] = int16(f%100 + c)
		}
	}

	got := DownmixResample(src, srcRate, channels, SampleRate)

	wantLen := frames * SampleRate / srcRate
	if d := len(got) - wantLen; d < -1 || d > 1 {
		t.Fatalf("length = %d, want %d +-1", len(got), wantLen)
	}

	ratio := float64(SampleRate) / float64(srcRate)
	for i, v := range got {
		f := int(math.Round(float64(i) / ratio))
		if f >= frames {
			f = frames - 1
		}
		want := int16((f%100 + (f%100 + 1) + (f%100 + 2)) / 3)
		if v != want {
			t.Fatalf("dst[%d] = %d, want %d (source frame %d)", i, v, want, f)
		}
	}
}

func TestSilence(t *testing.T) {
	s := Silence(SamplesPer100ms)
	if len(s) != 1600 {
		t.Fatalf("length = %d, want 1600", len(s))
	}
	for i, v := range s {
		if v != 0 {
			t.Fatalf("sample %d = %d, want 0", i, v)
		}
	}
}
