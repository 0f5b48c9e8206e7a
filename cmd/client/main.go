// Command client é um cliente interativo de terminal para o relay de xadrez.
//
//	join              espera um oponente
//	move e2 e4 [q]    propõe um lance, com peça de promoção opcional
//	board             redesenha a última posição conhecida
//	ping              mede a latência de ida e volta
//	quit              sai
package main

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"chessrelay/internal/logging"
	"chessrelay/internal/network"
	"chessrelay/internal/session/message"

	"github.com/gorilla/websocket"
	"github.com/notnil/chess"
	"github.com/rs/zerolog"
)

const (
	stateIdle    = "idle"
	stateWaiting = "waiting"
	statePlaying = "playing"
)

// view é o que o cliente sabe sobre a sua partida.
// O loop de leitura e o loop de entrada mexem nela, por isso o mutex.
type view struct {
	mu    sync.Mutex
	state string
	color string
	board string
}

func (v *view) set(fn func(v *view)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fn(v)
}

func (v *view) snapshot() (state, color, board string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state, v.color, v.board
}

func main() {
	log, err := logging.New("chess-client", os.Getenv("LOG_LEVEL"), true)
	if err != nil {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	addrs := []string{"localhost:8080"}
	if env := os.Getenv("RELAY_ADDRESSES"); env != "" {
		addrs = strings.Split(env, ",")
	}
	path := os.Getenv("WS_PATH")
	if path == "" {
		path = "/ws"
	}

	conn := dialAny(addrs, path, log)
	if conn == nil {
		log.Fatal().Strs("addrs", addrs).Msg("no relay reachable")
	}
	defer conn.Close()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	pongs := make(chan time.Time, 1)
	conn.SetPongHandler(func(string) error {
		select {
		case pongs <- time.Now():
		default:
		}
		return nil
	})

	w := newWSWriter(conn)
	v := &view{state: stateIdle}
	done := make(chan struct{})
	go readLoop(conn, v, done, log)

	quit := make(chan struct{})
	go func() {
		printHelp()
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			if !handleInput(w, v, scanner.Text(), pongs, log) {
				close(quit)
				return
			}
		}
	}()

	select {
	case <-done:
		log.Info().Msg("disconnected from relay")
	case <-quit:
	case <-interrupt:
	}
	w.Close()
}

// dialAny tenta cada endereço da lista até um aceitar o handshake websocket.
// Mesma lógica de failover usada com os load balancers.
func dialAny(addrs []string, path string, log zerolog.Logger) *websocket.Conn {
	for _, addr := range addrs {
		u := url.URL{Scheme: "ws", Host: strings.TrimSpace(addr), Path: path}
		conn, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
		if err == nil {
			log.Info().Str("url", u.String()).Msg("connected")
			return conn
		}
		ev := log.Warn().Err(err).Str("url", u.String())
		if resp != nil {
			ev = ev.Str("status", resp.Status)
		}
		ev.Msg("connect failed")
	}
	return nil
}

func readLoop(conn *websocket.Conn, v *view, done chan struct{}, log zerolog.Logger) {
	defer close(done)
	for {
		var msg network.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("read failed")
			}
			return
		}
		printFrame(msg, v)
	}
}

func printFrame(msg network.Message, v *view) {
	switch msg.Type {
	case message.TypeInitGame:
		p, err := message.DecodePayload[message.InitGamePayload](msg)
		if err != nil {
			fmt.Println("! bad init_game:", err)
			return
		}
		v.set(func(v *view) {
			v.state = statePlaying
			v.color = p.Color
			v.board = chess.StartingPosition().String()
		})
		fmt.Printf("\nGame on. You are %s (player %d).\n", p.Color, p.PlayerNumber)
		if p.Color == "white" {
			fmt.Println("Your move.")
		}

	case message.TypeMove:
		p, err := message.DecodePayload[message.MovePayload](msg)
		if err != nil {
			fmt.Println("! bad move:", err)
			return
		}
		v.set(func(v *view) { v.board = p.Board })
		fmt.Printf("\n%s -> %s\n", p.From, p.To)
		drawBoard(p.Board)

	case message.TypeGameOver:
		p, err := message.DecodePayload[message.GameOverPayload](msg)
		if err != nil {
			fmt.Println("! bad game_over:", err)
			return
		}
		_, color, _ := v.snapshot()
		v.set(func(v *view) { v.state = stateIdle })
		switch {
		case p.Draw:
			fmt.Printf("\nGame over: draw (%s).\n", p.Reason)
		case p.Winner == color:
			fmt.Printf("\nGame over: you win (%s).\n", p.Reason)
		default:
			fmt.Printf("\nGame over: %s wins (%s).\n", p.Winner, p.Reason)
		}
		fmt.Println("Type 'join' to play again.")

	default:
		fmt.Printf("\n? %s %s\n", msg.Type, string(msg.Payload))
	}
	fmt.Print("> ")
}

func drawBoard(fen string) {
	opt, err := chess.FEN(fen)
	if err != nil {
		fmt.Println(fen)
		return
	}
	fmt.Print(chess.NewGame(opt).Position().Board().Draw())
}

// handleInput executa uma linha de comando. Retorna false quando o usuário sai.
func handleInput(w *wsWriter, v *view, line string, pongs <-chan time.Time, log zerolog.Logger) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		fmt.Print("> ")
		return true
	}

	state, _, board := v.snapshot()
	switch strings.ToLower(fields[0]) {
	case "join":
		if state == statePlaying {
			fmt.Println("Already in a game.")
			break
		}
		send(w, message.JoinMessage(), log)
		v.set(func(v *view) { v.state = stateWaiting })
		fmt.Println("Waiting for an opponent...")

	case "move", "m":
		if len(fields) < 3 || len(fields) > 4 {
			fmt.Println("usage: move <from> <to> [q|r|b|n]")
			break
		}
		req := message.MoveRequest{From: strings.ToLower(fields[1]), To: strings.ToLower(fields[2])}
		if len(fields) == 4 {
			req.Promotion = strings.ToLower(fields[3])
		}
		if err := req.Validate(); err != nil {
			fmt.Println("!", err)
			break
		}
		send(w, message.MoveMessage(req), log)

	case "board":
		if board == "" {
			fmt.Println("No game yet.")
			break
		}
		drawBoard(board)

	case "ping":
		start := time.Now()
		if err := w.Ping(start.Add(5 * time.Second)); err != nil {
			log.Warn().Err(err).Msg("ping failed")
			break
		}
		select {
		case at := <-pongs:
			fmt.Printf("pong in %v\n", at.Sub(start))
		case <-time.After(3 * time.Second):
			fmt.Println("no pong within 3s")
		}

	case "help", "?":
		printHelp()

	case "quit", "exit":
		return false

	default:
		fmt.Printf("unknown command %q, type 'help'\n", fields[0])
	}
	fmt.Print("> ")
	return true
}

func send(w *wsWriter, msg network.Message, log zerolog.Logger) {
	if err := w.Send(msg); err != nil {
		log.Warn().Err(err).Str("type", msg.Type).Msg("send failed")
	}
}

func printHelp() {
	fmt.Println("commands: join | move <from> <to> [promotion] | board | ping | quit")
	fmt.Print("> ")
}
