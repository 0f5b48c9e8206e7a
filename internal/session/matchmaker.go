package session

import (
	"errors"
	"sync/atomic"

	"chessrelay/internal/events"
	"chessrelay/internal/network"
	"chessrelay/internal/rules"
	"chessrelay/internal/session/message"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Options ajusta o comportamento do Matchmaker.
type Options struct {
	// ForfeitOnDisconnect encerra a partida em favor de quem ficou quando o
	// outro jogador desconecta. Com false, quem ficou permanece numa partida parada.
	ForfeitOnDisconnect bool
}

// Stats é uma fotografia dos contadores do Matchmaker, segura para ler de qualquer goroutine.
type Stats struct {
	Connections int64 `json:"connections"`
	Pending     int64 `json:"pending"`
	Sessions    int64 `json:"sessions"`
}

// Matchmaker forma pares com as conexões que pedem partida, duas a duas, e
// encaminha cada lance para a sala da conexão que o enviou.
// Implementa network.EventHandler e depende do Hub chamá-lo de uma única goroutine.
type Matchmaker struct {
	engine    rules.Engine
	publisher events.Publisher
	opts      Options
	log       zerolog.Logger

	// Conexões vivas, por ID.
	conns map[string]network.Conn

	// pending é a única conexão esperando um oponente, ou nil.
	pending network.Conn

	// Salas ativas por ID e o índice conexão -> sala para achar a sala em O(1).
	rooms      map[string]*GameRoom
	roomByConn map[string]string

	// Contadores espelhados para o /stats, que roda fora da goroutine do Hub.
	connections atomic.Int64
	sessions    atomic.Int64
	waiting     atomic.Int64
}

var _ network.EventHandler = (*Matchmaker)(nil)

// NewMatchmaker cria um Matchmaker que usa engine nas partidas.
// Um publisher nil vira events.Nop.
func NewMatchmaker(engine rules.Engine, publisher events.Publisher, opts Options, log zerolog.Logger) *Matchmaker {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Matchmaker{
		engine:     engine,
		publisher:  publisher,
		opts:       opts,
		log:        log.With().Str("component", "matchmaker").Logger(),
		conns:      make(map[string]network.Conn),
		rooms:      make(map[string]*GameRoom),
		roomByConn: make(map[string]string),
	}
}

// OnConnect implementa network.EventHandler.
func (m *Matchmaker) OnConnect(c network.Conn) {
	m.conns[c.ID()] = c
	m.connections.Store(int64(len(m.conns)))
	m.log.Debug().Str("conn", c.ID()).Str("remote", c.RemoteAddr()).Msg("connected")
}

// OnDisconnect implementa network.EventHandler.
func (m *Matchmaker) OnDisconnect(c network.Conn) {
	delete(m.conns, c.ID())
	m.connections.Store(int64(len(m.conns)))

	// 1. Se estava esperando oponente, libera a vaga.
	if m.pending != nil && m.pending.ID() == c.ID() {
		m.setPending(nil)
		m.log.Debug().Str("conn", c.ID()).Msg("pending player left")
	}

	// 2. Se estava jogando, a sala decide se houve abandono.
	room, ok := m.RoomOf(c)
	if !ok {
		return
	}
	if room.HandleDisconnect(c, m.opts.ForfeitOnDisconnect) {
		m.evict(room)
		return
	}

	// 3. Sem abandono: remove só quem saiu e esquece a sala quando os dois tiverem saído.
	delete(m.roomByConn, c.ID())
	white, black := room.Members()
	_, whiteStays := m.roomByConn[white.ID()]
	_, blackStays := m.roomByConn[black.ID()]
	if !whiteStays && !blackStays {
		delete(m.rooms, room.ID)
		m.sessions.Store(int64(len(m.rooms)))
	}
}

// OnMessage implementa network.EventHandler. Pedidos inválidos são registrados
// em log e descartados sem avisar o cliente.
func (m *Matchmaker) OnMessage(c network.Conn, msg network.Message) {
	req, err := message.Decode(msg)
	if err != nil {
		if errors.Is(err, message.ErrUnknownType) {
			m.log.Debug().Err(err).Str("conn", c.ID()).Msg("message ignored")
		} else {
			m.log.Warn().Err(err).Str("conn", c.ID()).Msg("invalid request ignored")
		}
		return
	}

	switch r := req.(type) {
	case message.JoinRequest:
		m.handleJoin(c)
	case message.MoveRequest:
		m.handleMove(c, r)
	}
}

// handleJoin coloca c na espera ou forma o par com a conexão que já esperava.
func (m *Matchmaker) handleJoin(c network.Conn) {
	if _, busy := m.roomByConn[c.ID()]; busy {
		m.log.Debug().Str("conn", c.ID()).Msg("join ignored, already playing")
		return
	}

	switch {
	// Ninguém esperando: c passa a esperar.
	case m.pending == nil:
		m.setPending(c)
		m.log.Debug().Str("conn", c.ID()).Msg("waiting for opponent")

	// O mesmo cliente pediu de novo: nada a fazer.
	case m.pending.ID() == c.ID():
		m.log.Debug().Str("conn", c.ID()).Msg("join ignored, already waiting")

	// Há um oponente: quem esperava fica com as brancas.
	default:
		white := m.pending
		m.setPending(nil)

		room := NewGameRoom(uuid.NewString(), white, c, m.engine, m.publisher, m.log)
		m.rooms[room.ID] = room
		m.roomByConn[white.ID()] = room.ID
		m.roomByConn[c.ID()] = room.ID
		m.sessions.Store(int64(len(m.rooms)))
	}
}

// handleMove encaminha o lance para a sala de quem o enviou.
func (m *Matchmaker) handleMove(c network.Conn, req message.MoveRequest) {
	room, ok := m.RoomOf(c)
	if !ok {
		m.log.Debug().Str("conn", c.ID()).Msg("move without a game dropped")
		return
	}

	room.AttemptMove(c, rules.Move{From: req.From, To: req.To, Promotion: req.Promotion})
	if room.IsFinished() {
		m.evict(room)
	}
}

// evict esquece uma sala encerrada para que seus jogadores possam pedir nova partida.
func (m *Matchmaker) evict(room *GameRoom) {
	white, black := room.Members()
	for _, c := range []network.Conn{white, black} {
		if m.roomByConn[c.ID()] == room.ID {
			delete(m.roomByConn, c.ID())
		}
	}
	delete(m.rooms, room.ID)
	m.sessions.Store(int64(len(m.rooms)))
	m.log.Debug().Str("session", room.ID).Msg("session evicted")
}

func (m *Matchmaker) setPending(c network.Conn) {
	m.pending = c
	if c == nil {
		m.waiting.Store(0)
	} else {
		m.waiting.Store(1)
	}
}

// RoomOf retorna a sala onde c está jogando. SOMENTE na goroutine do Hub.
func (m *Matchmaker) RoomOf(c network.Conn) (*GameRoom, bool) {
	id, ok := m.roomByConn[c.ID()]
	if !ok {
		return nil, false
	}
	room, ok := m.rooms[id]
	return room, ok
}

// Pending retorna a conexão em espera, se houver. SOMENTE na goroutine do Hub.
func (m *Matchmaker) Pending() (network.Conn, bool) {
	return m.pending, m.pending != nil
}

// Stats retorna os contadores atuais.
func (m *Matchmaker) Stats() Stats {
	return Stats{
		Connections: m.connections.Load(),
		Pending:     m.waiting.Load(),
		Sessions:    m.sessions.Load(),
	}
}
