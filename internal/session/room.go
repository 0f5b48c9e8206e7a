package session

import (
	"time"

	"chessrelay/internal/events"
	"chessrelay/internal/network"
	"chessrelay/internal/rules"
	"chessrelay/internal/session/message"

	"github.com/rs/zerolog"
)

// Motivo enviado quando o jogo termina porque um dos jogadores saiu.
const reasonAbandoned = "abandoned"

// GameRoom é uma partida em andamento entre duas conexões.
// As brancas entraram primeiro e jogam nos lances pares; as pretas, nos ímpares.
// A posição só muda através de um lance que o engine aceitou.
//
// Uma GameRoom é conduzida pela goroutine do Hub e NÃO é segura para uso concorrente.
type GameRoom struct {
	ID    string
	white network.Conn // joga nos lances pares
	black network.Conn // joga nos lances ímpares

	// Regras e estado do tabuleiro. position é substituída a cada lance aceito.
	engine   rules.Engine
	position rules.Position

	// Número de lances já jogados. A paridade decide de quem é a vez.
	ply int

	// terminal fica true depois do game_over e nunca volta a false.
	terminal bool

	// Destino dos eventos de ciclo de vida (NATS ou Nop).
	publisher events.Publisher
	log       zerolog.Logger
}

// NewGameRoom inicia uma partida entre white e black e envia a cada um a sua cor.
// Depois disso a sala só envia frames de move e game_over.
func NewGameRoom(id string, white, black network.Conn, engine rules.Engine, publisher events.Publisher, log zerolog.Logger) *GameRoom {
	gr := &GameRoom{
		ID:        id,
		white:     white,
		black:     black,
		engine:    engine,
		position:  engine.Start(),
		publisher: publisher,
		log:       log.With().Str("session", id).Logger(),
	}

	// Cada jogador recebe o próprio init_game com cor e número.
	white.Send(message.InitGame(string(rules.White), 1))
	black.Send(message.InitGame(string(rules.Black), 2))

	gr.log.Info().Str("white", white.ID()).Str("black", black.ID()).Msg("game started")
	gr.publish(events.Event{
		Kind:  events.KindStarted,
		White: white.ID(),
		Black: black.ID(),
		Board: gr.position.FEN(),
	})
	return gr
}

// AttemptMove joga mv em nome de sender se for a vez dele e o engine aceitar.
// Retorna se a posição mudou. Rejeições são silenciosas para os clientes,
// apenas registradas em log.
func (gr *GameRoom) AttemptMove(sender network.Conn, mv rules.Move) bool {
	// 1. Partida encerrada não aceita mais lances.
	if gr.terminal {
		gr.log.Debug().Str("conn", sender.ID()).Msg("move after game over ignored")
		return false
	}

	// 2. Só quem está na vez pode jogar.
	if expected := gr.toMove(); expected.ID() != sender.ID() {
		gr.log.Debug().
			Str("conn", sender.ID()).
			Int("ply", gr.ply).
			Msg("move out of turn ignored")
		return false
	}

	// 3. O engine decide a legalidade. A posição atual nunca é alterada aqui.
	next, ok := gr.engine.Apply(gr.position, mv)
	if !ok {
		gr.log.Debug().
			Str("conn", sender.ID()).
			Str("from", mv.From).
			Str("to", mv.To).
			Msg("illegal move ignored")
		return false
	}

	// 4. Lance aceito: avança a posição e avisa os dois jogadores com o mesmo frame.
	gr.position = next
	gr.ply++

	board := next.FEN()
	gr.broadcast(message.Move(mv.From, mv.To, board))
	gr.publish(events.Event{Kind: events.KindMove, From: mv.From, To: mv.To, Board: board})

	// 5. Verifica se o lance encerrou a partida.
	if outcome := gr.engine.Outcome(next); outcome.Terminal {
		gr.finish(outcome)
	}
	return true
}

// HandleDisconnect é chamado quando o jogador c saiu.
// Com forfeit, uma partida em andamento termina e quem ficou vence por abandono;
// sem forfeit, a partida fica como está. Retorna se a partida terminou nesta chamada.
func (gr *GameRoom) HandleDisconnect(c network.Conn, forfeit bool) bool {
	if gr.terminal || !forfeit {
		return false
	}
	color, ok := gr.colorOf(c)
	if !ok {
		return false
	}

	gr.log.Info().Str("conn", c.ID()).Str("color", string(color)).Msg("member left, game forfeited")
	gr.finish(rules.Outcome{Terminal: true, Winner: color.Opponent(), Reason: reasonAbandoned})
	return true
}

// finish marca a partida como encerrada e anuncia o resultado.
// Todos os chamadores checam terminal antes, então roda no máximo uma vez.
func (gr *GameRoom) finish(outcome rules.Outcome) {
	gr.terminal = true

	payload := message.GameOverPayload{
		Winner: string(outcome.Winner),
		Draw:   outcome.Draw(),
		Reason: outcome.Reason,
	}
	gr.broadcast(message.GameOver(payload))

	gr.log.Info().
		Str("winner", payload.Winner).
		Bool("draw", payload.Draw).
		Str("reason", payload.Reason).
		Int("ply", gr.ply).
		Msg("game over")
	gr.publish(events.Event{
		Kind:   events.KindOver,
		Board:  gr.position.FEN(),
		Winner: payload.Winner,
		Draw:   payload.Draw,
		Reason: payload.Reason,
	})
}

// broadcast é uma função de conveniência para enviar o mesmo frame aos dois jogadores.
func (gr *GameRoom) broadcast(msg network.Message) {
	for _, c := range []network.Conn{gr.white, gr.black} {
		if !c.Send(msg) {
			gr.log.Debug().Str("conn", c.ID()).Str("type", msg.Type).Msg("frame not delivered")
		}
	}
}

// publish completa o evento com os dados da sala e o publica.
// Uma falha de publicação nunca afeta a partida.
func (gr *GameRoom) publish(ev events.Event) {
	ev.SessionID = gr.ID
	ev.Ply = gr.ply
	ev.At = time.Now().UTC()
	if err := gr.publisher.Publish(ev); err != nil {
		gr.log.Warn().Err(err).Str("kind", ev.Kind).Msg("event not published")
	}
}

// toMove retorna o jogador da vez.
func (gr *GameRoom) toMove() network.Conn {
	if gr.ply%2 == 0 {
		return gr.white
	}
	return gr.black
}

// colorOf compara por ID, nunca por ponteiro.
func (gr *GameRoom) colorOf(c network.Conn) (rules.Color, bool) {
	switch c.ID() {
	case gr.white.ID():
		return rules.White, true
	case gr.black.ID():
		return rules.Black, true
	}
	return "", false
}

// Members retorna as brancas e as pretas, nessa ordem.
func (gr *GameRoom) Members() (network.Conn, network.Conn) {
	return gr.white, gr.black
}

// Ply é o número de lances jogados até agora.
func (gr *GameRoom) Ply() int { return gr.ply }

// Position é a posição atual.
func (gr *GameRoom) Position() rules.Position { return gr.position }

// IsFinished informa se a partida terminou.
func (gr *GameRoom) IsFinished() bool { return gr.terminal }
