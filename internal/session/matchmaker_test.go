package session

import (
	"encoding/json"
	"testing"

	"chessrelay/internal/network"
	"chessrelay/internal/session/message"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchmaker_PairsInJoinOrder(t *testing.T) {
	m, _ := newTestMatchmaker(Options{})
	conns := connectAll(m, 4)

	join(m, conns[0])
	pending, ok := m.Pending()
	require.True(t, ok)
	assert.Equal(t, "c1", pending.ID())
	assert.Empty(t, conns[0].frames)

	join(m, conns[1])
	_, ok = m.Pending()
	assert.False(t, ok)

	join(m, conns[2])
	join(m, conns[3])

	for i, want := range []message.InitGamePayload{
		{Color: "white", PlayerNumber: 1},
		{Color: "black", PlayerNumber: 2},
		{Color: "white", PlayerNumber: 1},
		{Color: "black", PlayerNumber: 2},
	} {
		require.Len(t, conns[i].frames, 1, "conn %d", i)
		assert.Equal(t, want, decode[message.InitGamePayload](t, conns[i].frames[0]), "conn %d", i)
	}

	r1, ok := m.RoomOf(conns[0])
	require.True(t, ok)
	r2, _ := m.RoomOf(conns[1])
	r3, _ := m.RoomOf(conns[2])
	r4, _ := m.RoomOf(conns[3])
	assert.Same(t, r1, r2)
	assert.Same(t, r3, r4)
	assert.NotEqual(t, r1.ID, r3.ID)

	assert.Equal(t, Stats{Connections: 4, Pending: 0, Sessions: 2}, m.Stats())
}

func TestMatchmaker_DuplicateJoin(t *testing.T) {
	m, _ := newTestMatchmaker(Options{})
	a, b := newFakeConn("a"), newFakeConn("b")
	m.OnConnect(a)
	m.OnConnect(b)

	t.Run("while pending", func(t *testing.T) {
		join(m, a)
		join(m, a)
		pending, ok := m.Pending()
		require.True(t, ok)
		assert.Equal(t, "a", pending.ID())
		assert.Empty(t, a.frames)
		assert.Equal(t, int64(0), m.Stats().Sessions)
	})

	t.Run("while playing", func(t *testing.T) {
		join(m, b)
		require.Equal(t, int64(1), m.Stats().Sessions)
		a.take()
		b.take()

		join(m, a)
		join(m, b)
		_, ok := m.Pending()
		assert.False(t, ok)
		assert.Empty(t, a.frames)
		assert.Empty(t, b.frames)
		assert.Equal(t, int64(1), m.Stats().Sessions)
	})
}

func TestMatchmaker_HappyPathRelay(t *testing.T) {
	m, rec := newTestMatchmaker(Options{})
	conns := connectAll(m, 2)
	white, black := conns[0], conns[1]
	join(m, white)
	join(m, black)
	white.take()
	black.take()

	move(m, white, "e2", "e4")
	room, ok := m.RoomOf(white)
	require.True(t, ok)
	for _, c := range conns {
		frames := c.take()
		require.Len(t, frames, 1)
		p := decode[message.MovePayload](t, frames[0])
		assert.Equal(t, "e2", p.From)
		assert.Equal(t, "e4", p.To)
		assert.Equal(t, room.Position().FEN(), p.Board)
		assert.Contains(t, p.Board, "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b")
	}

	// O mesmo lado de novo e uma resposta ilegal são ambos descartados.
	move(m, white, "d2", "d4")
	move(m, black, "e7", "e4")
	assert.Empty(t, white.frames)
	assert.Empty(t, black.frames)

	move(m, black, "e7", "e5")
	assert.Equal(t, []string{message.TypeMove}, white.types())
	assert.Equal(t, []string{message.TypeMove}, black.types())

	assert.Equal(t, []string{"started", "move", "move"}, rec.kinds())
}

func TestMatchmaker_OrphanMove(t *testing.T) {
	m, _ := newTestMatchmaker(Options{})
	conns := connectAll(m, 3)

	move(m, conns[0], "e2", "e4")

	join(m, conns[1])
	move(m, conns[1], "e2", "e4")

	for _, c := range conns {
		assert.Empty(t, c.frames)
	}
	assert.Equal(t, Stats{Connections: 3, Pending: 1, Sessions: 0}, m.Stats())
}

func TestMatchmaker_CheckmateEndsAndEvicts(t *testing.T) {
	m, _ := newTestMatchmaker(Options{})
	conns := connectAll(m, 2)
	white, black := conns[0], conns[1]
	join(m, white)
	join(m, black)
	white.take()
	black.take()

	move(m, white, "f2", "f3")
	move(m, black, "e7", "e5")
	move(m, white, "g2", "g4")
	move(m, black, "d8", "h4")

	for _, c := range conns {
		frames := c.take()
		require.Len(t, frames, 5)
		last := frames[4]
		require.Equal(t, message.TypeGameOver, last.Type)
		assert.Equal(t, message.GameOverPayload{Winner: "black", Reason: "checkmate"}, decode[message.GameOverPayload](t, last))
	}

	_, ok := m.RoomOf(white)
	assert.False(t, ok)
	assert.Equal(t, int64(0), m.Stats().Sessions)

	// Lances depois do fim não vão a lugar nenhum.
	move(m, white, "a2", "a3")
	assert.Empty(t, white.frames)
	assert.Empty(t, black.frames)

	t.Run("members may join again", func(t *testing.T) {
		join(m, black)
		join(m, white)
		assert.Equal(t, message.InitGamePayload{Color: "white", PlayerNumber: 1}, decode[message.InitGamePayload](t, black.frames[0]))
		assert.Equal(t, message.InitGamePayload{Color: "black", PlayerNumber: 2}, decode[message.InitGamePayload](t, white.frames[0]))
		assert.Equal(t, int64(1), m.Stats().Sessions)
	})
}

func TestMatchmaker_Disconnect(t *testing.T) {
	t.Run("pending player leaving clears the slot", func(t *testing.T) {
		m, _ := newTestMatchmaker(Options{ForfeitOnDisconnect: true})
		conns := connectAll(m, 2)
		join(m, conns[0])
		m.OnDisconnect(conns[0])

		_, ok := m.Pending()
		assert.False(t, ok)

		join(m, conns[1])
		pending, ok := m.Pending()
		require.True(t, ok)
		assert.Equal(t, "c2", pending.ID())
		assert.Empty(t, conns[1].frames)
	})

	t.Run("forfeit", func(t *testing.T) {
		m, rec := newTestMatchmaker(Options{ForfeitOnDisconnect: true})
		conns := connectAll(m, 2)
		white, black := conns[0], conns[1]
		join(m, white)
		join(m, black)
		white.take()
		black.take()

		move(m, white, "e2", "e4")
		white.take()
		black.closed = true
		m.OnDisconnect(black)

		require.Len(t, white.frames, 1)
		assert.Equal(t, message.GameOverPayload{Winner: "white", Reason: "abandoned"}, decode[message.GameOverPayload](t, white.frames[0]))
		_, ok := m.RoomOf(white)
		assert.False(t, ok)
		assert.Equal(t, Stats{Connections: 1, Pending: 0, Sessions: 0}, m.Stats())
		assert.Equal(t, "over", rec.events[len(rec.events)-1].Kind)

		join(m, white)
		_, ok = m.Pending()
		assert.True(t, ok)
	})

	t.Run("no forfeit leaves the game stalled", func(t *testing.T) {
		m, _ := newTestMatchmaker(Options{ForfeitOnDisconnect: false})
		conns := connectAll(m, 2)
		white, black := conns[0], conns[1]
		join(m, white)
		join(m, black)
		white.take()

		m.OnDisconnect(black)
		assert.Empty(t, white.frames)
		room, ok := m.RoomOf(white)
		require.True(t, ok)
		assert.False(t, room.IsFinished())
		assert.Equal(t, int64(1), m.Stats().Sessions)

		// Ainda é a vez das brancas, e o lance continua sendo aceito e repassado.
		move(m, white, "e2", "e4")
		assert.Equal(t, 1, room.Ply())
		assert.Equal(t, []string{message.TypeMove}, white.types())

		m.OnDisconnect(white)
		assert.Equal(t, Stats{}, m.Stats())
	})
}

func TestMatchmaker_IgnoresBadMessages(t *testing.T) {
	m, _ := newTestMatchmaker(Options{})
	conns := connectAll(m, 2)
	join(m, conns[0])
	join(m, conns[1])
	conns[0].take()
	conns[1].take()

	for _, msg := range []network.Message{
		{Type: "resign"},
		{Type: ""},
		{Type: message.TypeMove, Payload: json.RawMessage(`{"from":`)},
		{Type: message.TypeMove, Payload: json.RawMessage(`{"from":"z9","to":"e4"}`)},
		{Type: message.TypeMove, Payload: json.RawMessage(`{"from":"e2","to":"e4","promotion":"k"}`)},
	} {
		m.OnMessage(conns[0], msg)
	}

	assert.Empty(t, conns[0].frames)
	assert.Empty(t, conns[1].frames)
	room, ok := m.RoomOf(conns[0])
	require.True(t, ok)
	assert.Equal(t, 0, room.Ply())
}
