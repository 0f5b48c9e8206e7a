package message

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"chessrelay/internal/network"
)

var (
	ErrUnknownType      = errors.New("unknown message type")
	ErrMalformedPayload = errors.New("malformed payload")
	ErrInvalidSquare    = errors.New("invalid square")
	ErrInvalidPromotion = errors.New("invalid promotion piece")
)

// Request é um pedido de cliente já validado.
// Os tipos concretos são JoinRequest e MoveRequest.
type Request interface {
	isRequest()
}

// JoinRequest pede para formar par com o próximo jogador em espera.
type JoinRequest struct{}

// MoveRequest propõe um lance na partida de quem enviou.
type MoveRequest struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

func (JoinRequest) isRequest() {}
func (MoveRequest) isRequest() {}

// Decode transforma um envelope de entrada em Request.
// Tipos desconhecidos retornam ErrUnknownType. Um move com payload ilegível ou
// casa fora do tabuleiro retorna um erro que embrulha ErrMalformedPayload ou ErrInvalidSquare.
func Decode(msg network.Message) (Request, error) {
	switch msg.Type {
	case TypeInitGame:
		return JoinRequest{}, nil

	case TypeMove:
		var req MoveRequest
		if len(msg.Payload) == 0 {
			return nil, fmt.Errorf("%w: move without payload", ErrMalformedPayload)
		}
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		req.From = strings.ToLower(req.From)
		req.To = strings.ToLower(req.To)
		req.Promotion = strings.ToLower(req.Promotion)
		if err := req.Validate(); err != nil {
			return nil, err
		}
		return req, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, msg.Type)
}

// Validate confere o formato do pedido, não a legalidade do lance.
func (r MoveRequest) Validate() error {
	if !isSquare(r.From) {
		return fmt.Errorf("%w: from %q", ErrInvalidSquare, r.From)
	}
	if !isSquare(r.To) {
		return fmt.Errorf("%w: to %q", ErrInvalidSquare, r.To)
	}
	switch r.Promotion {
	case "", "q", "r", "b", "n":
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidPromotion, r.Promotion)
}

// isSquare aceita casas algébricas de a1 a h8.
func isSquare(s string) bool {
	return len(s) == 2 && s[0] >= 'a' && s[0] <= 'h' && s[1] >= '1' && s[1] <= '8'
}

// JoinMessage é o envelope que o cliente envia para pedir partida.
func JoinMessage() network.Message {
	return network.Message{Type: TypeInitGame}
}

// MoveMessage é o envelope que o cliente envia para propor um lance.
func MoveMessage(req MoveRequest) network.Message {
	return encode(TypeMove, req)
}
