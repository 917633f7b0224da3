// Package live owns the streaming transcription session: one duplex
// connection per session, a setup/ack handshake, the Normal/Silence/
// CatchUp keep-alive cycle, and reconnection with replay so captured
// audio survives transport failures.
package live

import (
	"context"
	"fmt"

	"nhooyr.io/websocket"
)

// DefaultEndpoint is the duplex speech endpoint. The API key is appended
// as a query parameter.
const DefaultEndpoint = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

// maxMessageBytes bounds a single inbound message. Synthesis audio chunks
// run to a few hundred KB; 16 MiB leaves ample headroom.
const maxMessageBytes = 16 << 20

// Conn is one duplex message connection. Implementations must allow
// concurrent Read and Write.
type Conn interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close() error
}

// Dialer opens a fresh Conn. Sessions hold a Dialer rather than a Conn so
// reconnection can mint new transports.
type Dialer func(ctx context.Context) (Conn, error)

// NewDialer returns a Dialer for the given endpoint and API key.
func NewDialer(endpoint, apiKey string) Dialer {
	url := fmt.Sprintf("%s?key=%s", endpoint, apiKey)
	return func(ctx context.Context) (Conn, error) {
		c, _, err := websocket.Dial(ctx, url, nil)
		if err != nil {
			return nil, fmt.Errorf("websocket dial: %w", err)
		}
		c.SetReadLimit(maxMessageBytes)
		return &wsConn{conn: c}, nil
	}
}

type wsConn struct {
	conn *websocket.Conn
}

func (w *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := w.conn.Read(ctx)
	return data, err
}

func (w *wsConn) Write(ctx context.Context, data []byte) error {
	return w.conn.Write(ctx, websocket.MessageText, data)
}

func (w *wsConn) Close() error {
	return w.conn.Close(websocket.StatusNormalClosure, "closing")
}
