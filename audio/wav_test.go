package audio

import (
	"path/filepath"
	"testing"
)

func TestWAVExportLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "artifact.wav")
	src := []int16{0, 100, -100, 5000, -5000}

	if err := ExportWAV(path, src, SampleRate); err != nil {
		t.Fatalf("ExportWAV: %v", err)
	}

	got, rate, channels, err := LoadWAV(path)
	if err != nil {
		t.Fatalf("LoadWAV: %v", err)
	}
	if rate != SampleRate || channels != 1 {
		t.Errorf("format = %d Hz %d ch, want %d Hz mono", rate, channels, SampleRate)
	}
	if len(got) != len(src) {
		t.Fatalf("samples = %d, want %d", len(got), len(src))
	}
	for i := range src {
		if got[i] != src[i] {
			t.Errorf("sample %d = %d, want %d", i, got[i], src[i])
		}
	}
}

func TestLoadWAVMissingFile(t *testing.T) {
	if _, _, _, err := LoadWAV(filepath.Join(t.TempDir(), "missing.wav")); err == nil {
		t.Error("missing file loaded without error")
	}
}
