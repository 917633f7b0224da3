// Package types provides shared type definitions for the pipeline.
package types

// Target is an opaque handle identifying who a playback-state
// notification is for. The pipeline never inspects it.
type Target string

// PlaybackState describes a playback lifecycle transition.
type PlaybackState int

const (
	// PlaybackLoading means a synthesis request was accepted and audio
	// has not arrived yet.
	PlaybackLoading PlaybackState = iota
	// PlaybackStarted means the first audio chunk arrived; loading UI
	// should clear.
	PlaybackStarted
	// PlaybackEnded means the utterance finished rendering.
	PlaybackEnded
)

// String implements fmt.Stringer for log output.
func (s PlaybackState) String() string {
	switch s {
	case PlaybackLoading:
		return "loading"
	case PlaybackStarted:
		return "started"
	case PlaybackEnded:
		return "ended"
	}
	return "unknown"
}

// PlaybackFunc receives playback-state transitions for a target.
type PlaybackFunc func(target Target, state PlaybackState)

// TranscriptFunc receives the latest full transcript display string.
// Delivery is at-least-once on every committed or appended change.
type TranscriptFunc func(text string)

// TranslationFunc receives the latest committed+uncommitted translation
// concatenation.
type TranslationFunc func(text string)
