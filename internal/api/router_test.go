package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chessrelay/internal/cluster"
	"chessrelay/internal/events"
	"chessrelay/internal/network"
	"chessrelay/internal/rules"
	"chessrelay/internal/session"
	"chessrelay/internal/session/message"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type relay struct {
	http   *httptest.Server
	wsURL  string
	health *cluster.HealthAggregator
}

func startRelay(t *testing.T, opts session.Options) *relay {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mm := session.NewMatchmaker(rules.NewChessEngine(), events.Nop{}, opts, zerolog.Nop())
	srv := network.NewServer(mm, 16, zerolog.Nop())
	health := cluster.NewHealthAggregator()
	health.AddCheck("hub", srv.Check)

	ctx, cancel := context.WithCancel(context.Background())
	go srv.Run(ctx)

	ts := httptest.NewServer(NewRouter(RouterConfig{
		WSPath: "/ws",
		WS:     srv.ServeWS,
		Stats:  mm,
		Health: health,
		Log:    zerolog.Nop(),
	}))
	t.Cleanup(func() {
		ts.Close()
		cancel()
	})

	return &relay{
		http:   ts,
		wsURL:  "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws",
		health: health,
	}
}

func (r *relay) stats(t *testing.T) session.Stats {
	t.Helper()
	resp, err := http.Get(r.http.URL + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var s session.Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&s))
	return s
}

type player struct {
	t    *testing.T
	conn *websocket.Conn
}

func (r *relay) connect(t *testing.T) *player {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(r.wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &player{t: t, conn: conn}
}

func (p *player) send(msg network.Message) {
	p.t.Helper()
	require.NoError(p.t, p.conn.WriteJSON(msg))
}

func (p *player) sendRaw(frame string) {
	p.t.Helper()
	require.NoError(p.t, p.conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

func (p *player) join() { p.send(message.JoinMessage()) }

func (p *player) move(from, to string) {
	p.send(message.MoveMessage(message.MoveRequest{From: from, To: to}))
}

func (p *player) read() network.Message {
	p.t.Helper()
	require.NoError(p.t, p.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg network.Message
	require.NoError(p.t, p.conn.ReadJSON(&msg))
	return msg
}

// expectSilence garante que nada chega numa janela curta. Uma leitura com
// timeout inutiliza a conexão, então esta precisa ser a última leitura.
func (p *player) expectSilence() {
	p.t.Helper()
	require.NoError(p.t, p.conn.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	var msg network.Message
	err := p.conn.ReadJSON(&msg)
	require.Error(p.t, err, "unexpected frame %+v", msg)
	var netErr interface{ Timeout() bool }
	require.True(p.t, errors.As(err, &netErr) && netErr.Timeout(), "expected timeout, got %v", err)
}

func payload[T any](t *testing.T, msg network.Message) T {
	t.Helper()
	v, err := message.DecodePayload[T](msg)
	require.NoError(t, err)
	return v
}

// pair conecta dois jogadores e espera os dois receberem suas cores.
func pair(t *testing.T, r *relay) (*player, *player) {
	t.Helper()
	white, black := r.connect(t), r.connect(t)

	white.join()
	require.Eventually(t, func() bool { return r.stats(t).Pending == 1 }, 2*time.Second, 10*time.Millisecond)
	black.join()

	assert.Equal(t, message.InitGamePayload{Color: "white", PlayerNumber: 1}, payload[message.InitGamePayload](t, white.read()))
	assert.Equal(t, message.InitGamePayload{Color: "black", PlayerNumber: 2}, payload[message.InitGamePayload](t, black.read()))
	return white, black
}

func TestRelay_HappyPath(t *testing.T) {
	r := startRelay(t, session.Options{ForfeitOnDisconnect: true})
	white, black := pair(t, r)

	white.move("e2", "e4")
	w, b := white.read(), black.read()
	assert.Equal(t, message.TypeMove, w.Type)
	assert.Equal(t, w, b)
	p := payload[message.MovePayload](t, w)
	assert.Equal(t, "e2", p.From)
	assert.Equal(t, "e4", p.To)
	assert.True(t, strings.HasPrefix(p.Board, "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b"))

	assert.Equal(t, session.Stats{Connections: 2, Pending: 0, Sessions: 1}, r.stats(t))
}

func TestRelay_OutOfTurnAndIllegalMovesAreSilent(t *testing.T) {
	r := startRelay(t, session.Options{ForfeitOnDisconnect: true})
	white, black := pair(t, r)

	black.move("e7", "e5")
	white.move("e2", "e5")
	white.send(network.Message{Type: "resign"})
	white.sendRaw(`{"type":"move","payload":{"from":"e2"`)
	white.sendRaw(`{"type":"move","payload":{"from":"e9","to":"e4"}}`)

	// Os frames chegam em ordem, então o primeiro que os dois lados veem
	// precisa ser o lance legal enviado por último.
	white.move("d2", "d4")
	for _, p := range []*player{white, black} {
		msg := p.read()
		require.Equal(t, message.TypeMove, msg.Type)
		mv := payload[message.MovePayload](t, msg)
		assert.Equal(t, "d2", mv.From)
		assert.Equal(t, "d4", mv.To)
	}
	black.expectSilence()
}

func TestRelay_Checkmate(t *testing.T) {
	r := startRelay(t, session.Options{ForfeitOnDisconnect: true})
	white, black := pair(t, r)

	for i, mv := range [][2]string{{"f2", "f3"}, {"e7", "e5"}, {"g2", "g4"}, {"d8", "h4"}} {
		mover := white
		if i%2 == 1 {
			mover = black
		}
		mover.move(mv[0], mv[1])
		assert.Equal(t, message.TypeMove, white.read().Type)
		assert.Equal(t, message.TypeMove, black.read().Type)
	}

	for _, p := range []*player{white, black} {
		over := p.read()
		require.Equal(t, message.TypeGameOver, over.Type)
		assert.Equal(t, message.GameOverPayload{Winner: "black", Reason: "checkmate"}, payload[message.GameOverPayload](t, over))
	}

	require.Eventually(t, func() bool { return r.stats(t).Sessions == 0 }, 2*time.Second, 10*time.Millisecond)
	white.move("a2", "a3")
	white.expectSilence()
}

func TestRelay_DisconnectForfeits(t *testing.T) {
	r := startRelay(t, session.Options{ForfeitOnDisconnect: true})
	white, black := pair(t, r)

	require.NoError(t, black.conn.Close())

	over := white.read()
	require.Equal(t, message.TypeGameOver, over.Type)
	assert.Equal(t, message.GameOverPayload{Winner: "white", Reason: "abandoned"}, payload[message.GameOverPayload](t, over))

	require.Eventually(t, func() bool {
		return r.stats(t) == session.Stats{Connections: 1}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRelay_Health(t *testing.T) {
	r := startRelay(t, session.Options{})

	resp, err := http.Get(r.http.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	r.health.AddCheck("nats", func() error { return events.ErrNotConnected })
	resp, err = http.Get(r.http.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
