package wire

import (
	"encoding/base64"
	"testing"

	"github.com/tidwall/gjson"

	"github.com/voxstream/voxstream/audio"
)

func TestSetupShape(t *testing.T) {
	data := Setup(SetupConfig{
		Model:           "live-model",
		Voice:           "Kore",
		SystemText:      "read aloud",
		TranscribeInput: true,
	})

	root := gjson.ParseBytes(data)
	if got := root.Get("setup.model").String(); got != "models/live-model" {
		t.Errorf("model = %q", got)
	}
	if got := root.Get("setup.generationConfig.responseModalities.0").String(); got != "AUDIO" {
		t.Errorf("modality = %q", got)
	}
	if got := root.Get("setup.generationConfig.thinkingConfig.thinkingBudget").Int(); got != 0 {
		t.Errorf("thinking budget = %d", got)
	}
	voice := root.Get("setup.generationConfig.speechConfig.voiceConfig.prebuiltVoiceConfig.voiceName")
	if voice.String() != "Kore" {
		t.Errorf("voice = %q", voice.String())
	}
	if !root.Get("setup.inputAudioTranscription").Exists() {
		t.Error("input transcription not requested")
	}
	if got := root.Get("setup.systemInstruction.parts.0.text").String(); got != "read aloud" {
		t.Errorf("system text = %q", got)
	}
}

func TestSetupTextOnlyModality(t *testing.T) {
	root := gjson.ParseBytes(Setup(SetupConfig{Model: "m", TextOnly: true}))
	if got := root.Get("setup.generationConfig.responseModalities.0").String(); got != "TEXT" {
		t.Errorf("modality = %q, want TEXT", got)
	}
}

func TestSetupOmitsOptionalSections(t *testing.T) {
	root := gjson.ParseBytes(Setup(SetupConfig{Model: "m"}))
	if root.Get("setup.generationConfig.speechConfig").Exists() {
		t.Error("voice config present without a voice")
	}
	if root.Get("setup.inputAudioTranscription").Exists() {
		t.Error("transcription requested without the flag")
	}
	if root.Get("setup.systemInstruction").Exists() {
		t.Error("system instruction present without text")
	}
}

func TestMediaChunk(t *testing.T) {
	pcm := []int16{1, -1, 300}
	root := gjson.ParseBytes(MediaChunk(pcm))

	if got := root.Get("realtime_input.media_chunks.0.mime_type").String(); got != MimePCM16 {
		t.Errorf("mime = %q, want %q", got, MimePCM16)
	}
	raw, err := base64.StdEncoding.DecodeString(root.Get("realtime_input.media_chunks.0.data").String())
	if err != nil {
		t.Fatalf("data not base64: %v", err)
	}
	got := audio.DecodePCM16(raw)
	for i, want := range pcm {
		if got[i] != want {
			t.Errorf("sample %d = %d, want %d", i, got[i], want)
		}
	}
}

func TestTextTurn(t *testing.T) {
	root := gjson.ParseBytes(TextTurn("say this"))
	if got := root.Get("clientContent.turns.0.parts.0.text").String(); got != "say this" {
		t.Errorf("text = %q", got)
	}
	if !root.Get("clientContent.turnComplete").Bool() {
		t.Error("turn not marked complete")
	}
	if got := root.Get("clientContent.turns.0.role").String(); got != "user" {
		t.Errorf("role = %q", got)
	}
}

func TestParse(t *testing.T) {
	audioB64 := base64.StdEncoding.EncodeToString(audio.EncodePCM16([]int16{5, 6}))
	tests := []struct {
		name string
		in   string
		want ServerMessage
	}{
		{
			name: "setup complete",
			in:   `{"setupComplete":{}}`,
			want: ServerMessage{SetupComplete: true},
		},
		{
			name: "transcript fragment",
			in:   `{"serverContent":{"inputTranscription":{"text":" hello"}}}`,
			want: ServerMessage{Transcript: " hello"},
		},
		{
			name: "whitespace-only fragment dropped",
			in:   `{"serverContent":{"inputTranscription":{"text":"  \n"}}}`,
			want: ServerMessage{},
		},
		{
			name: "turn complete",
			in:   `{"serverContent":{"turnComplete":true}}`,
			want: ServerMessage{TurnComplete: true},
		},
		{
			name: "generation complete counts as turn complete",
			in:   `{"serverContent":{"generationComplete":true}}`,
			want: ServerMessage{TurnComplete: true},
		},
		{
			name: "server error",
			in:   `{"error":{"message":"quota exceeded"}}`,
			want: ServerMessage{Err: "quota exceeded"},
		},
		{
			name: "malformed payload ignored",
			in:   `{not json`,
			want: ServerMessage{},
		},
		{
			name: "irrelevant payload ignored",
			in:   `{"usageMetadata":{"totalTokenCount":10}}`,
			want: ServerMessage{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse([]byte(tt.in))
			if got.SetupComplete != tt.want.SetupComplete ||
				got.TurnComplete != tt.want.TurnComplete ||
				got.Transcript != tt.want.Transcript ||
				got.Err != tt.want.Err {
				t.Errorf("Parse() = %+v, want %+v", got, tt.want)
			}
		})
	}

	t.Run("text parts concatenate", func(t *testing.T) {
		in := `{"serverContent":{"modelTurn":{"parts":[{"text":"bon"},{"text":"jour"}]}}}`
		if got := Parse([]byte(in)).Text; got != "bonjour" {
			t.Errorf("text = %q, want %q", got, "bonjour")
		}
	})

	t.Run("audio chunks concatenate across parts", func(t *testing.T) {
		in := `{"serverContent":{"modelTurn":{"parts":[{"inlineData":{"data":"` + audioB64 + `"}},{"inlineData":{"data":"` + audioB64 + `"}}]}}}`
		got := Parse([]byte(in))
		samples := audio.DecodePCM16(got.Audio)
		want := []int16{5, 6, 5, 6}
		if len(samples) != len(want) {
			t.Fatalf("samples = %d, want %d", len(samples), len(want))
		}
		for i := range want {
			if samples[i] != want[i] {
				t.Errorf("sample %d = %d, want %d", i, samples[i], want[i])
			}
		}
	})
}
