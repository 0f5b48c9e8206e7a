// Package message define o protocolo do jogo transportado dentro dos envelopes
// network.Message: os pedidos que um cliente pode enviar e os frames que o servidor emite.
package message

import (
	"encoding/json"
	"fmt"

	"chessrelay/internal/network"
)

// Tipos de mensagem. init_game e move são usados nas duas direções.
const (
	TypeInitGame = "init_game"
	TypeMove     = "move"
	TypeGameOver = "game_over"
)

// InitGamePayload informa ao jogador com qual cor ele joga.
type InitGamePayload struct {
	Color        string `json:"color"`
	PlayerNumber int    `json:"playerNumber"`
}

// MovePayload anuncia um lance aceito. Board é a posição completa (FEN) depois dele.
type MovePayload struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Board string `json:"board"`
}

// GameOverPayload é o resultado final. Winner fica vazio num empate.
type GameOverPayload struct {
	Winner string `json:"winner,omitempty"`
	Draw   bool   `json:"draw,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// InitGame monta a mensagem de início enviada uma vez a cada jogador.
func InitGame(color string, playerNumber int) network.Message {
	return encode(TypeInitGame, InitGamePayload{Color: color, PlayerNumber: playerNumber})
}

// Move monta o broadcast de um lance aceito.
func Move(from, to, board string) network.Message {
	return encode(TypeMove, MovePayload{From: from, To: to, Board: board})
}

// GameOver monta o broadcast de fim de partida.
func GameOver(p GameOverPayload) network.Message {
	return encode(TypeGameOver, p)
}

// encode serializa os payloads declarados neste pacote, o que não pode falhar.
func encode(typ string, payload any) network.Message {
	payloadBytes, _ := json.Marshal(payload)
	return network.Message{
		Type:    typ,
		Payload: payloadBytes,
	}
}

// DecodePayload decodifica o payload de msg em T. Usado pelos clientes nos frames do servidor.
func DecodePayload[T any](msg network.Message) (T, error) {
	var v T
	if err := json.Unmarshal(msg.Payload, &v); err != nil {
		return v, fmt.Errorf("%w: %s: %v", ErrMalformedPayload, msg.Type, err)
	}
	return v, nil
}
