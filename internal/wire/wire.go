// Package wire builds and parses the JSON messages exchanged over the
// duplex speech connection: one setup message acknowledged by a
// setup-complete marker, then base64 PCM16 media chunks outbound and
// incremental text, audio, or turn-complete markers inbound.
package wire

import (
	"encoding/base64"
	"encoding/json"

	"github.com/tidwall/gjson"

	"github.com/voxstream/voxstream/audio"
)

// MimePCM16 is the fixed rate descriptor attached to outbound audio.
const MimePCM16 = "audio/pcm;rate=16000"

// SetupConfig describes one session's setup message.
type SetupConfig struct {
	Model           string
	Voice           string // synthesis voice; empty for transcription-only sessions
	SystemText      string // optional system instruction
	TranscribeInput bool   // request incremental transcription of inbound audio
	TextOnly        bool   // request text responses instead of audio
}

// Setup builds the setup message sent first on every connection.
func Setup(cfg SetupConfig) []byte {
	modality := "AUDIO"
	if cfg.TextOnly {
		modality = "TEXT"
	}
	generation := map[string]any{
		"responseModalities": []string{modality},
		"thinkingConfig":     map[string]any{"thinkingBudget": 0},
	}
	if cfg.Voice != "" {
		generation["speechConfig"] = map[string]any{
			"voiceConfig": map[string]any{
				"prebuiltVoiceConfig": map[string]any{"voiceName": cfg.Voice},
			},
		}
	}

	setup := map[string]any{
		"model":            "models/" + cfg.Model,
		"generationConfig": generation,
	}
	if cfg.TranscribeInput {
		setup["inputAudioTranscription"] = map[string]any{}
	}
	if cfg.SystemText != "" {
		setup["systemInstruction"] = map[string]any{
			"parts": []map[string]any{{"text": cfg.SystemText}},
		}
	}

	data, _ := json.Marshal(map[string]any{"setup": setup})
	return data
}

// MediaChunk builds an outbound audio message carrying the samples as
// base64 little-endian PCM16.
func MediaChunk(pcm []int16) []byte {
	b64 := base64.StdEncoding.EncodeToString(audio.EncodePCM16(pcm))
	data, _ := json.Marshal(map[string]any{
		"realtime_input": map[string]any{
			"media_chunks": []map[string]any{
				{"data": b64, "mime_type": MimePCM16},
			},
		},
	})
	return data
}

// TextTurn builds a complete single-turn text submission, used by the
// synthesis workers to hand the model one utterance.
func TextTurn(text string) []byte {
	data, _ := json.Marshal(map[string]any{
		"clientContent": map[string]any{
			"turns": []map[string]any{
				{
					"role":  "user",
					"parts": []map[string]any{{"text": text}},
				},
			},
			"turnComplete": true,
		},
	})
	return data
}

// ServerMessage is the flat view of one inbound message. Fields are
// independent; a message may carry several at once. A payload that is
// malformed or irrelevant parses to the zero ServerMessage; that is not
// an error.
type ServerMessage struct {
	SetupComplete bool
	TurnComplete  bool
	Transcript    string // incremental input transcription fragment
	Text          string // incremental model text output
	Audio         []byte // raw PCM16 synthesis chunk
	Err           string // server-reported error message
}

// Parse extracts the interesting parts of an inbound message.
func Parse(data []byte) ServerMessage {
	var msg ServerMessage
	if !gjson.ValidBytes(data) {
		return msg
	}
	root := gjson.ParseBytes(data)

	if root.Get("setupComplete").Exists() {
		msg.SetupComplete = true
	}
	if e := root.Get("error.message"); e.Exists() {
		msg.Err = e.String()
	}

	sc := root.Get("serverContent")
	if !sc.Exists() {
		return msg
	}
	if sc.Get("turnComplete").Bool() || sc.Get("generationComplete").Bool() {
		msg.TurnComplete = true
	}
	// Leading spaces are intentional word separators; keep them and only
	// drop fragments that are pure whitespace.
	if t := sc.Get("inputTranscription.text"); t.Exists() {
		if s := t.String(); !isWhitespace(s) {
			msg.Transcript = s
		}
	}
	sc.Get("modelTurn.parts").ForEach(func(_, part gjson.Result) bool {
		if d := part.Get("inlineData.data"); d.Exists() {
			if raw, err := base64.StdEncoding.DecodeString(d.String()); err == nil {
				msg.Audio = append(msg.Audio, raw...)
			}
		}
		if txt := part.Get("text"); txt.Exists() {
			msg.Text += txt.String()
		}
		return true
	})
	return msg
}

func isWhitespace(s string) bool {
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r':
		default:
			return false
		}
	}
	return true
}
