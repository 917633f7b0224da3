// Command voxstream streams a WAV file through a live transcription
// session at real-time cadence, optionally translating as it goes, or
// synthesizes speech from text. It exists to exercise the pipeline
// without a capture device.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/lmittmann/tint"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/voxstream/voxstream/audio"
	"github.com/voxstream/voxstream/config"
	"github.com/voxstream/voxstream/internal/types"
	"github.com/voxstream/voxstream/live"
	"github.com/voxstream/voxstream/synth"
	"github.com/voxstream/voxstream/transcript"
	"github.com/voxstream/voxstream/translate"
)

var version = "dev"

func main() {
	var (
		configPath = flag.String("config", "", "config file path (default: user config dir)")
		apiKey     = flag.String("key", "", "API key (overrides config)")
		wavPath    = flag.String("wav", "", "WAV file to stream as live input")
		model      = flag.String("model", "", "model id (overrides profile)")
		target     = flag.String("target", "", "translation target language (tag or name)")
		voice      = flag.String("voice", "", "synthesis voice (overrides profile)")
		rate       = flag.Float64("rate", 0, "speaking rate (overrides profile)")
		speakText  = flag.String("speak", "", "synthesize this text instead of streaming")
		outPath    = flag.String("out", "", "write session/synthesis audio to this WAV file")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	})))
	slog.Info("voxstream", "version", version)

	cfg := loadConfig(*configPath)
	profile := resolveProfile(cfg, *model, *target, *voice, *rate)
	key := *apiKey
	if key == "" {
		key = cfg.APIKey
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch {
	case *speakText != "":
		err = runSpeak(ctx, key, profile, *speakText, *outPath)
	case *wavPath != "":
		err = runStream(ctx, key, profile, *wavPath, *outPath)
	default:
		fmt.Fprintln(os.Stderr, "usage: voxstream -wav file.wav [-target lang] | -speak \"text\"")
		flag.PrintDefaults()
		os.Exit(2)
	}
	if err != nil {
		slog.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func loadConfig(path string) *config.Config {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFrom(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		slog.Error("load config", "error", err)
		cfg = &config.Config{}
	}
	return cfg
}

func resolveProfile(cfg *config.Config, model, target, voice string, rate float64) config.Profile {
	p := config.Profile{
		Model:          config.DefaultModel,
		TargetLanguage: config.DefaultTargetLanguage,
		SpeakingRate:   config.DefaultSpeakingRate,
	}
	if active := cfg.ActiveProfile(); active != nil {
		p = *active
	}
	if model != "" {
		p.Model = model
	}
	if target != "" {
		p.TargetLanguage = languageName(target)
	}
	if voice != "" {
		p.Voice = voice
	}
	if rate > 0 {
		p.SpeakingRate = rate
	}
	return p
}

// languageName turns a BCP 47 tag like "fr" or "zh-Hans" into a display
// name the translator instruction can use. Anything unparseable is
// assumed to already be a name.
func languageName(tag string) string {
	t, err := language.Parse(tag)
	if err != nil {
		return tag
	}
	return display.English.Languages().Name(t)
}

// ─────────────────────────────────────────────────────────────────────────────
// Live streaming
// ─────────────────────────────────────────────────────────────────────────────

func runStream(ctx context.Context, key string, profile config.Profile, wavPath, outPath string) error {
	samples, rate, channels, err := audio.LoadWAV(wavPath)
	if err != nil {
		return err
	}
	pcm := audio.DownmixResample(samples, rate, channels, audio.SampleRate)
	logger := slog.Default().With("session", uuid.New().String())
	logger.Info("streaming file",
		"path", wavPath,
		"duration", time.Duration(len(pcm))*time.Second/audio.SampleRate,
		"target", profile.TargetLanguage)

	state := transcript.NewState()
	sess, err := live.NewSession(live.Config{
		Credentials: key,
		Model:       profile.Model,
		Transcripts: state,
		OnTranscript: func(text string) {
			fmt.Printf("\r[transcript] %s\n", text)
		},
		Logger: logger,
	})
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	sessErr := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		sessErr <- sess.Run(runCtx)
	}()

	dialer := live.NewDialer(live.DefaultEndpoint, key)
	engine := transcript.NewEngine(transcript.EngineConfig{
		State: state,
		Translator: &translate.LiveTranslator{
			Dial:  func(ctx context.Context) (translate.Conn, error) { return dialer(ctx) },
			Model: profile.Model,
		},
		Target: profile.TargetLanguage,
		OnUpdate: func(text string) {
			fmt.Printf("\r[%s] %s\n", profile.TargetLanguage, text)
		},
		Logger: logger,
	})
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = engine.Run(runCtx)
	}()

	// Feed at real-time cadence, one tick of audio per tick of clock.
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
feed:
	for off := 0; off < len(pcm); off += audio.SamplesPer100ms {
		select {
		case <-ctx.Done():
			break feed
		case <-ticker.C:
		}
		end := off + audio.SamplesPer100ms
		if end > len(pcm) {
			end = len(pcm)
		}
		sess.PushAudio(pcm[off:end])
		if off%(10*audio.SamplesPer100ms) == 0 {
			logger.Debug("feeding", "offset", off, "level", sess.InputLevel(), "mode", sess.Mode())
		}
	}

	// Leave room for trailing results before stopping.
	select {
	case <-ctx.Done():
	case <-time.After(3 * time.Second):
	}
	sess.Stop()
	err = <-sessErr
	cancel()
	wg.Wait()

	fmt.Printf("\nfinal transcript:\n%s\n", state.Transcript())
	if t := state.Translation(); t != "" {
		fmt.Printf("\nfinal translation (%s):\n%s\n", profile.TargetLanguage, t)
	}

	if outPath != "" {
		if rec := sess.Recording(); len(rec) > 0 {
			if werr := audio.ExportWAV(outPath, rec, audio.SampleRate); werr != nil {
				logger.Error("export recording", "error", werr)
			} else {
				logger.Info("recording exported", "path", outPath, "samples", len(rec))
			}
		}
	}
	return err
}

// ─────────────────────────────────────────────────────────────────────────────
// Synthesis
// ─────────────────────────────────────────────────────────────────────────────

// captureSink collects synthesized audio instead of rendering it.
type captureSink struct {
	mu      sync.Mutex
	samples []int16
}

func (s *captureSink) Write(samples []int16) {
	s.mu.Lock()
	s.samples = append(s.samples, samples...)
	s.mu.Unlock()
}

func (s *captureSink) Buffered() int { return 0 }

func (s *captureSink) Clear() {
	s.mu.Lock()
	s.samples = nil
	s.mu.Unlock()
}

func (s *captureSink) take() []int16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.samples
	s.samples = nil
	return out
}

func runSpeak(ctx context.Context, key string, profile config.Profile, text, outPath string) error {
	sink := &captureSink{}
	done := make(chan struct{}, 1)

	m := synth.NewManager(synth.Config{
		Credentials:  key,
		Model:        profile.Model,
		Voice:        profile.Voice,
		SpeakingRate: profile.SpeakingRate,
		Sink:         sink,
		OnPlayback: func(target types.Target, state types.PlaybackState) {
			slog.Debug("playback", "target", target, "state", state)
			if state == types.PlaybackEnded {
				select {
				case done <- struct{}{}:
				default:
				}
			}
		},
	})
	defer m.Shutdown()

	id := m.Speak(text, "cli")
	slog.Info("synthesizing", "id", id, "chars", len(text))

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(60 * time.Second):
		return fmt.Errorf("synthesis timed out")
	}

	samples := sink.take()
	slog.Info("synthesis complete", "samples", len(samples),
		"duration", time.Duration(len(samples))*time.Second/audio.PlaybackRate)
	if outPath != "" && len(samples) > 0 {
		if err := audio.ExportWAV(outPath, samples, audio.PlaybackRate); err != nil {
			return err
		}
		slog.Info("audio written", "path", outPath)
	}
	return nil
}
