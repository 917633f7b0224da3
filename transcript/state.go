// Package transcript tracks the growing transcript/translation pair and
// decides, streamingly, which prefix of the translation is final. Source
// and translated text rarely share byte lengths, so commits align by
// sentence-delimiter count, never by offset arithmetic.
package transcript

import (
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// sentenceDelimiters end a sentence in both source and translation text.
var sentenceDelimiters = []rune{'.', '!', '?', '。', '！', '？'}

// userSilenceTimeout is how long the speaker must be quiet before a
// timeout-based commit is considered.
const userSilenceTimeout = 2 * time.Second

// translatorSilenceTimeout is how long the translator must be quiet
// before a timeout-based commit is considered.
const translatorSilenceTimeout = 2 * time.Second

// historyDepth bounds the (source, translation) pairs kept for context.
const historyDepth = 3

// Pair is one committed (source segment, translation segment) match.
type Pair struct {
	Source      string
	Translation string
}

// State is the transcript/translation pair shared between the session
// thread (transcript writer) and the translation thread (translation
// writer). All access goes through one mutex; the lock is never held
// across network calls.
type State struct {
	mu sync.Mutex

	fullTranscript  string
	committedOffset int // byte offset of the committed transcript prefix
	processedLen    int // transcript length at the last translation pass

	committedTranslation   string // grows by append only
	uncommittedTranslation string // replaced wholesale between passes

	history []Pair

	lastTranscriptAt  time.Time
	lastTranslationAt time.Time

	now func() time.Time
}

// NewState creates an empty State.
func NewState() *State {
	n := time.Now
	return &State{
		lastTranscriptAt:  n(),
		lastTranslationAt: n(),
		now:               n,
	}
}

// AppendTranscript appends a transcript fragment.
func (s *State) AppendTranscript(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fullTranscript += text
	s.lastTranscriptAt = s.now()
}

// Transcript returns the full transcript display string.
func (s *State) Transcript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fullTranscript
}

// Translation returns the committed+uncommitted concatenation.
func (s *State) Translation() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.displayTranslation()
}

func (s *State) displayTranslation() string {
	switch {
	case s.committedTranslation == "":
		return s.uncommittedTranslation
	case s.uncommittedTranslation == "":
		return s.committedTranslation
	default:
		return s.committedTranslation + " " + s.uncommittedTranslation
	}
}

// CommittedOffset returns the byte offset of the committed transcript
// prefix. Monotonically non-decreasing.
func (s *State) CommittedOffset() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.committedOffset
}

// History returns a copy of the retained (source, translation) pairs,
// oldest first.
func (s *State) History() []Pair {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Pair, len(s.history))
	copy(out, s.history)
	return out
}

// Unchanged reports whether the transcript has not grown since the last
// translation pass.
func (s *State) Unchanged() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fullTranscript) == s.processedLen
}

// MarkProcessed records the current transcript length as consumed by a
// translation pass.
func (s *State) MarkProcessed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processedLen = len(s.fullTranscript)
}

// TranslationChunk returns the unconsumed transcript suffix and whether
// it contains at least one sentence delimiter. ok is false when there is
// nothing to translate.
func (s *State) TranslationChunk() (text string, hasSentence bool, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.committedOffset >= len(s.fullTranscript) {
		return "", false, false
	}
	suffix := s.fullTranscript[s.committedOffset:]
	if strings.TrimSpace(suffix) == "" {
		return "", false, false
	}
	return strings.TrimSpace(suffix), strings.ContainsAny(suffix, ".!?。！？"), true
}

// BeginTranslation clears the uncommitted translation ahead of a fresh
// pass over the current suffix.
func (s *State) BeginTranslation() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uncommittedTranslation = ""
}

// AppendTranslation appends a streamed translation delta.
func (s *State) AppendTranslation(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uncommittedTranslation += text
	s.lastTranslationAt = s.now()
}

func (s *State) pushHistory(p Pair) {
	s.history = append(s.history, p)
	if len(s.history) > historyDepth {
		s.history = s.history[len(s.history)-historyDepth:]
	}
}

func (s *State) appendCommitted(segment string) {
	if s.committedTranslation == "" {
		s.committedTranslation = segment
	} else {
		s.committedTranslation += " " + segment
	}
}

func (s *State) sourceEndsWithSentence() bool {
	if s.committedOffset >= len(s.fullTranscript) {
		return false
	}
	suffix := strings.TrimSpace(s.fullTranscript[s.committedOffset:])
	r, _ := utf8.DecodeLastRuneInString(suffix)
	for _, d := range sentenceDelimiters {
		if r == d {
			return true
		}
	}
	return false
}

// ShouldForceCommit reports whether a timeout-based commit is due: an
// uncommitted translation exists and both the speaker and the translator
// have been silent past their timeouts.
func (s *State) ShouldForceCommit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uncommittedTranslation == "" {
		return false
	}
	now := s.now()
	userSilent := now.Sub(s.lastTranscriptAt) > userSilenceTimeout
	translatorSilent := now.Sub(s.lastTranslationAt) > translatorSilenceTimeout
	sourceReady := s.sourceEndsWithSentence() || s.committedOffset < len(s.fullTranscript)
	return sourceReady && userSilent && translatorSilent
}

// ForceCommitAll commits the entire uncommitted translation regardless of
// delimiter alignment. Used when silence makes further revision unlikely.
func (s *State) ForceCommitAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	segment := strings.TrimSpace(s.uncommittedTranslation)
	if segment == "" {
		return
	}
	source := "[continued]"
	if s.committedOffset < len(s.fullTranscript) {
		source = strings.TrimSpace(s.fullTranscript[s.committedOffset:])
	}
	s.pushHistory(Pair{Source: source, Translation: segment})
	s.appendCommitted(segment)
	s.committedOffset = len(s.fullTranscript)
	s.uncommittedTranslation = ""
}

// nextDelimiterEnd returns the byte offset just past the first sentence
// delimiter in s, or -1.
func nextDelimiterEnd(s string) int {
	for i, r := range s {
		for _, d := range sentenceDelimiters {
			if r == d {
				return i + utf8.RuneLen(r)
			}
		}
	}
	return -1
}

// shortTranslationBytes is the deferral threshold: a lone aligned match
// whose translation segment is shorter than this is too likely to be
// revised, so it waits for the next pass.
const shortTranslationBytes = 50

// CommitSentences runs one alignment pass: it scans the transcript suffix
// and the uncommitted translation in lock-step for sentence delimiters and
// commits every aligned pair found, except that a single short match is
// deferred. Returns the number of pairs committed.
func (s *State) CommitSentences() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	type match struct{ srcEnd, transEnd int }
	var matches []match

	srcPos := s.committedOffset
	transPos := 0
	for srcPos < len(s.fullTranscript) && transPos < len(s.uncommittedTranslation) {
		srcRel := nextDelimiterEnd(s.fullTranscript[srcPos:])
		if srcRel < 0 {
			break
		}
		transRel := nextDelimiterEnd(s.uncommittedTranslation[transPos:])
		if transRel < 0 {
			break
		}
		srcPos += srcRel
		transPos += transRel
		matches = append(matches, match{srcEnd: srcPos, transEnd: transPos})
	}

	if len(matches) == 0 {
		return 0
	}
	if len(matches) == 1 {
		seg := strings.TrimSpace(s.uncommittedTranslation[:matches[0].transEnd])
		if len(seg) < shortTranslationBytes {
			return 0
		}
	}

	prevSrc := s.committedOffset
	prevTrans := 0
	for _, m := range matches {
		source := strings.TrimSpace(s.fullTranscript[prevSrc:m.srcEnd])
		segment := strings.TrimSpace(s.uncommittedTranslation[prevTrans:m.transEnd])
		if source != "" && segment != "" {
			s.pushHistory(Pair{Source: source, Translation: segment})
			s.appendCommitted(segment)
		}
		prevSrc = m.srcEnd
		prevTrans = m.transEnd
	}

	last := matches[len(matches)-1]
	s.committedOffset = last.srcEnd
	s.uncommittedTranslation = strings.TrimLeft(s.uncommittedTranslation[last.transEnd:], " ")
	return len(matches)
}
