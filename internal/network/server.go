package network

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// DefaultSendBuffer é o tamanho da fila de saída quando nenhum é configurado.
const DefaultSendBuffer = 256

// ErrHubStopped é retornado por Check depois que o Hub terminou.
var ErrHubStopped = errors.New("hub stopped")

// Server transforma requisições HTTP em clientes websocket e é dono do Hub
// onde eles são registrados.
type Server struct {
	hub        *Hub
	upgrader   websocket.Upgrader
	sendBuffer int
	log        zerolog.Logger
}

// NewServer cria um servidor com um novo Hub despachando para o handler.
// sendBuffer <= 0 usa DefaultSendBuffer.
func NewServer(handler EventHandler, sendBuffer int, log zerolog.Logger) *Server {
	if sendBuffer <= 0 {
		sendBuffer = DefaultSendBuffer
	}
	return &Server{
		hub: NewHub(handler, log),
		upgrader: websocket.Upgrader{
			// Qualquer origem pode conectar; não há autenticação por cookie a proteger.
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		sendBuffer: sendBuffer,
		log:        log.With().Str("component", "ws").Logger(),
	}
}

// Run executa o Hub até ctx ser cancelado.
func (s *Server) Run(ctx context.Context) error {
	return s.hub.Run(ctx)
}

// Check retorna ErrHubStopped depois que Run terminou. Usado no /health.
func (s *Server) Check() error {
	select {
	case <-s.hub.done:
		return ErrHubStopped
	default:
		return nil
	}
}

// ServeWS é o ponto de entrada websocket.
//  1. Faz o upgrade da requisição.
//  2. Registra o cliente no Hub.
//  3. Inicia as goroutines de leitura e escrita.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("upgrade failed")
		return
	}

	id := uuid.NewString()
	client := &Client{
		id:   id,
		conn: conn,
		hub:  s.hub,
		send: make(chan Message, s.sendBuffer),
		log:  s.log.With().Str("conn", id).Logger(),
	}

	select {
	case s.hub.register <- client:
	case <-s.hub.done:
		conn.Close()
		return
	}

	go client.writeLoop()
	go client.readLoop()
}
