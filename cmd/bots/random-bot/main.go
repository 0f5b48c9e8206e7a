// Command random-bot conecta BOT_COUNT jogadores ao relay e faz cada um jogar
// BOT_GAMES partidas com lances legais aleatórios. Serve como teste de carga e
// de fumaça para um relay em execução.
package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"strconv"
	"time"

	"chessrelay/internal/logging"
	"chessrelay/internal/network"
	"chessrelay/internal/rules"
	"chessrelay/internal/session/message"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const readTimeout = 5 * time.Minute

type botConfig struct {
	url   string
	count int
	games int
	think time.Duration
}

func main() {
	log, err := logging.New("random-bot", os.Getenv("LOG_LEVEL"), true)
	if err != nil {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	cfg := botConfig{
		url:   getenv("RELAY_URL", "ws://localhost:8080/ws"),
		count: getenvInt("BOT_COUNT", 2),
		games: getenvInt("BOT_GAMES", 1),
		think: time.Duration(getenvInt("BOT_THINK_MS", 200)) * time.Millisecond,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	for i := 1; i <= cfg.count; i++ {
		b := &bot{
			cfg:    cfg,
			engine: rules.NewChessEngine(),
			log:    log.With().Int("bot", i).Logger(),
		}
		g.Go(func() error { return b.run(ctx) })
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("bot failed")
	}
	log.Info().Int("bots", cfg.count).Msg("all bots done")
}

type bot struct {
	cfg    botConfig
	engine *rules.ChessEngine
	conn   *websocket.Conn
	log    zerolog.Logger

	color rules.Color
}

func (b *bot) run(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, b.cfg.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", b.cfg.url, err)
	}
	b.conn = conn
	defer conn.Close()

	// Desbloqueia uma leitura pendente quando o contexto termina.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for game := 1; game <= b.cfg.games; game++ {
		if err := b.send(message.JoinMessage()); err != nil {
			return err
		}
		over, err := b.play()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		b.log.Info().
			Int("game", game).
			Str("color", string(b.color)).
			Str("winner", over.Winner).
			Bool("draw", over.Draw).
			Str("reason", over.Reason).
			Msg("game finished")
	}
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return nil
}

// play lê frames até a partida atual terminar, respondendo sempre que for a
// vez do bot.
func (b *bot) play() (message.GameOverPayload, error) {
	for {
		b.conn.SetReadDeadline(time.Now().Add(readTimeout))
		var msg network.Message
		if err := b.conn.ReadJSON(&msg); err != nil {
			return message.GameOverPayload{}, fmt.Errorf("read: %w", err)
		}

		switch msg.Type {
		case message.TypeInitGame:
			p, err := message.DecodePayload[message.InitGamePayload](msg)
			if err != nil {
				return message.GameOverPayload{}, err
			}
			b.color = rules.Color(p.Color)
			b.log.Debug().Str("color", p.Color).Msg("seated")
			if b.color == rules.White {
				if err := b.moveFrom(b.engine.Start()); err != nil {
					return message.GameOverPayload{}, err
				}
			}

		case message.TypeMove:
			p, err := message.DecodePayload[message.MovePayload](msg)
			if err != nil {
				return message.GameOverPayload{}, err
			}
			pos, err := b.engine.FromFEN(p.Board)
			if err != nil {
				return message.GameOverPayload{}, err
			}
			if pos.Turn() == b.color {
				if err := b.moveFrom(pos); err != nil {
					return message.GameOverPayload{}, err
				}
			}

		case message.TypeGameOver:
			return message.DecodePayload[message.GameOverPayload](msg)
		}
	}
}

// moveFrom envia um lance legal aleatório para pos. Uma posição sem lances
// está prestes a ser anunciada como encerrada, então nada é enviado.
func (b *bot) moveFrom(pos rules.Position) error {
	moves := b.engine.LegalMoves(pos)
	if len(moves) == 0 {
		return nil
	}
	mv := moves[rand.IntN(len(moves))]

	if b.cfg.think > 0 {
		time.Sleep(b.cfg.think/2 + rand.N(b.cfg.think))
	}
	return b.send(message.MoveMessage(message.MoveRequest{From: mv.From, To: mv.To, Promotion: mv.Promotion}))
}

func (b *bot) send(msg network.Message) error {
	if err := b.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("send %s: %w", msg.Type, err)
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i >= 0 {
			return i
		}
	}
	return def
}
