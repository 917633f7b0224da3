package translate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/tidwall/gjson"
)

type fakeConn struct {
	mu      sync.Mutex
	writes  [][]byte
	inbound chan []byte
	closed  bool
}

func newFakeConn(msgs ...string) *fakeConn {
	c := &fakeConn{inbound: make(chan []byte, len(msgs))}
	for _, m := range msgs {
		c.inbound <- []byte(m)
	}
	return c
}

func (c *fakeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case data := <-c.inbound:
		return data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConn) Write(_ context.Context, data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	c.mu.Lock()
	c.writes = append(c.writes, cp)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func TestLiveTranslatorStreamsDeltas(t *testing.T) {
	conn := newFakeConn(
		`{"setupComplete":{}}`,
		`{"serverContent":{"modelTurn":{"parts":[{"text":"bonjour "}]}}}`,
		`{"serverContent":{"modelTurn":{"parts":[{"text":"le monde"}]}}}`,
		`{"serverContent":{"turnComplete":true}}`,
	)
	tr := &LiveTranslator{
		Dial:  func(_ context.Context) (Conn, error) { return conn, nil },
		Model: "text-model",
	}

	stream, err := tr.Translate(context.Background(), Request{
		Text:           "hello world",
		TargetLanguage: "French",
		History:        []Exchange{{Source: "hi.", Translation: "salut."}},
	})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}

	var got string
	for {
		delta, err := stream.Next()
		got += delta
		if err != nil {
			if !errors.Is(err, io.EOF) {
				t.Fatalf("Next: %v", err)
			}
			break
		}
	}
	if got != "bonjour le monde" {
		t.Errorf("streamed translation = %q", got)
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()
	if !conn.closed {
		t.Error("connection left open after turn complete")
	}
	if len(conn.writes) != 2 {
		t.Fatalf("writes = %d, want setup + turn", len(conn.writes))
	}
	setup := gjson.ParseBytes(conn.writes[0])
	if got := setup.Get("setup.generationConfig.responseModalities.0").String(); got != "TEXT" {
		t.Errorf("modality = %q, want TEXT", got)
	}
	sys := setup.Get("setup.systemInstruction.parts.0.text").String()
	if !containsAll(sys, "French", "hi.", "salut.") {
		t.Errorf("system text missing instruction or history: %q", sys)
	}
	turn := gjson.ParseBytes(conn.writes[1])
	if got := turn.Get("clientContent.turns.0.parts.0.text").String(); got != "hello world" {
		t.Errorf("turn text = %q", got)
	}
}

func TestLiveTranslatorDialFailure(t *testing.T) {
	tr := &LiveTranslator{
		Dial:  func(_ context.Context) (Conn, error) { return nil, fmt.Errorf("refused") },
		Model: "text-model",
	}
	if _, err := tr.Translate(context.Background(), Request{Text: "x", TargetLanguage: "French"}); err == nil {
		t.Error("dial failure not surfaced")
	}
}

func TestLiveTranslatorHandshakeRejected(t *testing.T) {
	conn := newFakeConn(`{"error":{"message":"bad model"}}`)
	tr := &LiveTranslator{
		Dial:  func(_ context.Context) (Conn, error) { return conn, nil },
		Model: "text-model",
	}
	if _, err := tr.Translate(context.Background(), Request{Text: "x", TargetLanguage: "French"}); err == nil {
		t.Error("handshake rejection not surfaced")
	}
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if !conn.closed {
		t.Error("connection left open after rejection")
	}
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
