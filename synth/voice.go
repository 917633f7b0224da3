package synth

import (
	"sync"

	lingua "github.com/pemistahl/lingua-go"
)

// DefaultVoice is used when language detection has no opinion.
const DefaultVoice = "Puck"

// voiceByLanguage maps a detected utterance language to a prebuilt voice
// that renders it well.
var voiceByLanguage = map[lingua.Language]string{
	lingua.English:    "Puck",
	lingua.Chinese:    "Kore",
	lingua.Japanese:   "Aoede",
	lingua.Korean:     "Leda",
	lingua.French:     "Charon",
	lingua.German:     "Orus",
	lingua.Spanish:    "Zephyr",
	lingua.Italian:    "Charon",
	lingua.Portuguese: "Zephyr",
	lingua.Russian:    "Fenrir",
}

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

// VoiceFor picks a synthesis voice from the utterance's detected
// language. Detection is built lazily; the model tables are large.
func VoiceFor(text string) string {
	detectorOnce.Do(func() {
		languages := make([]lingua.Language, 0, len(voiceByLanguage))
		for l := range voiceByLanguage {
			languages = append(languages, l)
		}
		detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(languages...).
			Build()
	})
	lang, ok := detector.DetectLanguageOf(text)
	if !ok {
		return DefaultVoice
	}
	if voice, found := voiceByLanguage[lang]; found {
		return voice
	}
	return DefaultVoice
}
