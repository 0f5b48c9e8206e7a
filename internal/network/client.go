package network

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// Tempo máximo para escrever um frame no cliente.
	writeWait = 10 * time.Second

	// Tempo máximo de espera pelo próximo pong.
	pongWait = 60 * time.Second

	// Intervalo entre pings. Precisa ser menor que pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// Client representa um cliente conectado, do ponto de vista do servidor:
// a conexão websocket mais a sua fila de saída.
type Client struct {
	id   string
	conn *websocket.Conn
	hub  *Hub

	// Fila de saída, consumida pelo writeLoop. O Hub fecha o canal ao desregistrar.
	send chan Message

	// closed espelha o estado de 'send'. Acessado SOMENTE pela goroutine do Hub.
	closed bool

	log zerolog.Logger
}

// ID implementa Conn.
func (c *Client) ID() string { return c.id }

// RemoteAddr implementa Conn.
func (c *Client) RemoteAddr() string { return c.conn.RemoteAddr().String() }

// Send implementa Conn. Só pode ser chamado de dentro dos callbacks do EventHandler.
func (c *Client) Send(msg Message) bool {
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		c.log.Warn().Str("type", msg.Type).Msg("outbound buffer full, frame dropped")
		return false
	}
}

// readLoop lê frames da conexão e os entrega ao Hub. Ao sair, desregistra o
// cliente; é a única goroutine que faz isso.
func (c *Client) readLoop() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn().Err(err).Msg("unexpected close")
			}
			return
		}
		if kind != websocket.TextMessage {
			c.log.Debug().Int("kind", kind).Msg("non-text frame ignored")
			continue
		}

		// Frames malformados são ignorados; a conexão continua.
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Warn().Err(err).Msg("malformed frame ignored")
			continue
		}

		select {
		case c.hub.incoming <- clientMessage{client: c, msg: msg}:
		case <-c.hub.done:
			return
		}
	}
}

// writeLoop esvazia a fila de saída na conexão e mantém o cliente vivo com pings.
// É a única goroutine que escreve na conexão.
func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// O Hub fechou o canal: avisa o cliente e encerra.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.log.Warn().Err(err).Str("type", msg.Type).Msg("write failed")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
