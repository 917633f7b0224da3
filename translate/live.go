package translate

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/voxstream/voxstream/internal/wire"
)

// Conn is the duplex message connection a LiveTranslator speaks over.
// Structurally identical to the live package's Conn so its dialer can be
// adapted with a one-line closure.
type Conn interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close() error
}

// DialFunc opens a fresh Conn. One connection per request; translation
// turns are short and reuse grows backend context without bound.
type DialFunc func(ctx context.Context) (Conn, error)

const (
	liveHandshakeTimeout = 30 * time.Second
	liveReadTimeout      = 15 * time.Second
)

// LiveTranslator translates over the duplex speech service in text-only
// mode. Each request opens a fresh connection, sends the instruction and
// recent history as the system text, and streams deltas back.
type LiveTranslator struct {
	Dial  DialFunc
	Model string
}

// Translate implements Translator.
func (t *LiveTranslator) Translate(ctx context.Context, req Request) (Stream, error) {
	hctx, cancel := context.WithTimeout(ctx, liveHandshakeTimeout)
	defer cancel()

	conn, err := t.Dial(hctx)
	if err != nil {
		return nil, fmt.Errorf("translate dial: %w", err)
	}
	setup := wire.Setup(wire.SetupConfig{
		Model:      t.Model,
		SystemText: systemText(req),
		TextOnly:   true,
	})
	if err := conn.Write(hctx, setup); err != nil {
		conn.Close()
		return nil, fmt.Errorf("translate setup: %w", err)
	}
	for {
		data, err := conn.Read(hctx)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("translate handshake: %w", err)
		}
		msg := wire.Parse(data)
		if msg.Err != "" {
			conn.Close()
			return nil, fmt.Errorf("translate handshake rejected: %s", msg.Err)
		}
		if msg.SetupComplete {
			break
		}
	}

	if err := conn.Write(ctx, wire.TextTurn(req.Text)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("translate submit: %w", err)
	}
	return &liveStream{ctx: ctx, conn: conn}, nil
}

// systemText builds the session instruction, folding recent committed
// pairs in so the model keeps terminology and register consistent.
func systemText(req Request) string {
	var b strings.Builder
	b.WriteString(Instruction(req.TargetLanguage))
	if len(req.History) > 0 {
		b.WriteString("\n\nRecently translated context:\n")
		for _, ex := range req.History {
			fmt.Fprintf(&b, "%s => %s\n", ex.Source, ex.Translation)
		}
	}
	return b.String()
}

type liveStream struct {
	ctx  context.Context
	conn Conn
	done bool
}

// Next implements Stream. The turn-complete marker terminates the stream
// with io.EOF and tears the connection down.
func (s *liveStream) Next() (string, error) {
	if s.done {
		return "", io.EOF
	}
	for {
		rctx, cancel := context.WithTimeout(s.ctx, liveReadTimeout)
		data, err := s.conn.Read(rctx)
		cancel()
		if err != nil {
			s.finish()
			return "", fmt.Errorf("translate read: %w", err)
		}
		msg := wire.Parse(data)
		if msg.Err != "" {
			s.finish()
			return "", fmt.Errorf("translate rejected: %s", msg.Err)
		}
		if msg.TurnComplete {
			s.finish()
			if msg.Text != "" {
				return msg.Text, nil
			}
			return "", io.EOF
		}
		if msg.Text != "" {
			return msg.Text, nil
		}
	}
}

func (s *liveStream) finish() {
	s.done = true
	s.conn.Close()
}
