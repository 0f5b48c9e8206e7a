package main

import (
	"sync"
	"time"

	"chessrelay/internal/network"

	"github.com/gorilla/websocket"
)

// wsWriter serializa todas as escritas na conexão. O gorilla/websocket aceita
// um único escritor por vez, e tanto o loop de entrada quanto o main escrevem.
type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func newWSWriter(conn *websocket.Conn) *wsWriter {
	return &wsWriter{conn: conn}
}

// Send escreve um envelope como frame de texto.
func (w *wsWriter) Send(msg network.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteJSON(msg)
}

// Ping envia um frame de controle ping; o pong chega pelo pong handler.
func (w *wsWriter) Ping(deadline time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteControl(websocket.PingMessage, nil, deadline)
}

// Close envia o frame de fechamento normal. A conexão em si é fechada por quem chamou.
func (w *wsWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
