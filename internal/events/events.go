// Package events publica notificações do ciclo de vida das partidas para
// consumidores fora do relay (dashboards, arquivadores). A publicação é de
// melhor esforço: uma falha nunca afeta uma partida.
package events

import "time"

// Tipos de evento de partida.
const (
	KindStarted = "started"
	KindMove    = "move"
	KindOver    = "over"
)

// Event é o corpo JSON publicado a cada transição da partida.
type Event struct {
	Kind      string    `json:"kind"`
	SessionID string    `json:"sessionId"`
	White     string    `json:"white,omitempty"`
	Black     string    `json:"black,omitempty"`
	Ply       int       `json:"ply"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to,omitempty"`
	Board     string    `json:"board,omitempty"`
	Winner    string    `json:"winner,omitempty"`
	Draw      bool      `json:"draw,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	At        time.Time `json:"at"`
}

// Publisher entrega eventos. As implementações não podem bloquear por muito tempo:
// são chamadas pela goroutine do Hub.
type Publisher interface {
	Publish(ev Event) error
}

// Nop descarta todos os eventos. Usado quando o NATS não está configurado.
type Nop struct{}

// Publish implementa Publisher.
func (Nop) Publish(Event) error { return nil }
