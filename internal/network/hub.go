package network

import (
	"context"

	"github.com/rs/zerolog"
)

// clientMessage empacota uma mensagem com o cliente que a enviou.
// O Hub precisa de ambos para repassar ao EventHandler.
type clientMessage struct {
	client *Client
	msg    Message
}

// Hub mantém o conjunto de clientes ativos e roteia seus eventos para o handler.
type Hub struct {
	// Clientes registrados, usado como "set".
	// Acessado SOMENTE pela goroutine que executa Run.
	clients map[*Client]struct{}

	// Canal para registrar novos clientes (enviado por ServeWS).
	register chan *Client

	// Canal para desregistrar clientes (enviado pelo readLoop ao sair).
	unregister chan *Client

	// Canal para mensagens de entrada. As goroutines readLoop escrevem aqui.
	incoming chan clientMessage

	// done é fechado quando Run retorna, para que as goroutines dos clientes
	// parem de entregar trabalho a um Hub que não lê mais.
	done chan struct{}

	// O handler da lógica do jogo que processa os eventos.
	handler EventHandler
	log     zerolog.Logger
}

// NewHub cria um Hub que despacha para o handler. Chame Run para iniciá-lo.
func NewHub(handler EventHandler, log zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		incoming:   make(chan clientMessage),
		done:       make(chan struct{}),
		handler:    handler,
		log:        log.With().Str("component", "hub").Logger(),
	}
}

// Run processa eventos até ctx ser cancelado. Cada evento é tratado até o fim
// antes do próximo ser lido, então o handler nunca roda em paralelo consigo mesmo.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	h.log.Info().Msg("hub started")

	for {
		select {
		// --- Caso 1: um novo cliente completou o handshake ---
		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.log.Debug().Str("conn", client.id).Str("remote", client.RemoteAddr()).Msg("client registered")
			// Notifica a lógica do jogo que um novo cliente chegou.
			h.handler.OnConnect(client)

		// --- Caso 2: um cliente saiu ---
		case client := <-h.unregister:
			// Verifica se o cliente realmente está no registro.
			if _, ok := h.clients[client]; !ok {
				continue
			}
			delete(h.clients, client)
			// Fechar 'send' é o sinal para o writeLoop parar.
			// 'closed' impede que um broadcast tardio escreva num canal fechado.
			client.closed = true
			close(client.send)
			h.log.Debug().Str("conn", client.id).Msg("client unregistered")
			h.handler.OnDisconnect(client)

		// --- Caso 3: uma nova mensagem chegou ---
		case cm := <-h.incoming:
			// Mensagens de um cliente que já saiu são descartadas.
			if _, ok := h.clients[cm.client]; !ok {
				continue
			}
			// O Hub não se importa com o conteúdo, apenas delega.
			h.handler.OnMessage(cm.client, cm.msg)

		// --- Caso 4: desligamento ---
		case <-ctx.Done():
			for client := range h.clients {
				delete(h.clients, client)
				client.closed = true
				close(client.send)
			}
			h.log.Info().Msg("hub stopped")
			return ctx.Err()
		}
	}
}
