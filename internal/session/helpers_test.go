package session

import (
	"fmt"
	"testing"

	"chessrelay/internal/events"
	"chessrelay/internal/network"
	"chessrelay/internal/rules"
	"chessrelay/internal/session/message"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// fakeConn grava todos os frames enviados a ela.
type fakeConn struct {
	id     string
	closed bool
	frames []network.Message
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (f *fakeConn) ID() string         { return f.id }
func (f *fakeConn) RemoteAddr() string { return "test/" + f.id }

func (f *fakeConn) Send(msg network.Message) bool {
	if f.closed {
		return false
	}
	f.frames = append(f.frames, msg)
	return true
}

// take retorna e limpa os frames gravados.
func (f *fakeConn) take() []network.Message {
	out := f.frames
	f.frames = nil
	return out
}

func (f *fakeConn) types() []string {
	out := make([]string, 0, len(f.frames))
	for _, m := range f.frames {
		out = append(out, m.Type)
	}
	return out
}

// recorder é um events.Publisher que guarda o que recebeu.
type recorder struct {
	events []events.Event
	err    error
}

func (r *recorder) Publish(ev events.Event) error {
	r.events = append(r.events, ev)
	return r.err
}

func (r *recorder) kinds() []string {
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

func newTestMatchmaker(opts Options) (*Matchmaker, *recorder) {
	rec := &recorder{}
	return NewMatchmaker(rules.NewChessEngine(), rec, opts, zerolog.Nop()), rec
}

func connectAll(m *Matchmaker, n int) []*fakeConn {
	conns := make([]*fakeConn, n)
	for i := range conns {
		conns[i] = newFakeConn(fmt.Sprintf("c%d", i+1))
		m.OnConnect(conns[i])
	}
	return conns
}

func join(m *Matchmaker, c network.Conn) {
	m.OnMessage(c, message.JoinMessage())
}

func move(m *Matchmaker, c network.Conn, from, to string) {
	m.OnMessage(c, message.MoveMessage(message.MoveRequest{From: from, To: to}))
}

func decode[T any](t *testing.T, msg network.Message) T {
	t.Helper()
	v, err := message.DecodePayload[T](msg)
	require.NoError(t, err)
	return v
}
