package rules

import (
	"fmt"

	"github.com/notnil/chess"
)

// ChessEngine implementa Engine para o xadrez padrão, usando notnil/chess.
type ChessEngine struct{}

// NewChessEngine retorna um engine de regras de xadrez.
func NewChessEngine() *ChessEngine {
	return &ChessEngine{}
}

type chessPosition struct {
	game *chess.Game
}

func (p *chessPosition) FEN() string { return p.game.FEN() }

func (p *chessPosition) Turn() Color {
	if p.game.Position().Turn() == chess.White {
		return White
	}
	return Black
}

// Start implementa Engine.
func (e *ChessEngine) Start() Position {
	return &chessPosition{game: chess.NewGame()}
}

// FromFEN monta uma posição a partir de uma string FEN. Os clientes usam isso
// para reconstruir o tabuleiro a partir de um broadcast, sem repetir o histórico.
func (e *ChessEngine) FromFEN(fen string) (Position, error) {
	opt, err := chess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("parse fen %q: %w", fen, err)
	}
	g := chess.NewGame(opt)
	settleDraws(g)
	return &chessPosition{game: g}, nil
}

// Apply implementa Engine. A posição de entrada nunca é alterada; o lance
// legal é jogado sobre um clone.
func (e *ChessEngine) Apply(pos Position, mv Move) (Position, bool) {
	cp, ok := pos.(*chessPosition)
	if !ok || cp.game.Outcome() != chess.NoOutcome {
		return pos, false
	}
	if !validSquare(mv.From) || !validSquare(mv.To) {
		return pos, false
	}

	promo := mv.Promotion
	if promo != "" && !validPromotion(promo) {
		return pos, false
	}

	next := cp.game.Clone()
	if err := playUCI(next, mv.From+mv.To+promo); err != nil {
		// Sem peça de promoção informada, promove a dama.
		if promo != "" || playUCI(next, mv.From+mv.To+"q") != nil {
			return pos, false
		}
	}
	settleDraws(next)
	return &chessPosition{game: next}, true
}

// settleDraws encerra g por tripla repetição ou pela regra dos cinquenta lances.
// A biblioteca só registra esses empates quando um jogador os reivindica;
// aqui eles encerram a partida assim que se aplicam.
func settleDraws(g *chess.Game) {
	if g.Outcome() != chess.NoOutcome {
		return
	}
	for _, method := range g.EligibleDraws() {
		if method == chess.ThreefoldRepetition || method == chess.FiftyMoveRule {
			// Draw só falha para métodos não elegíveis.
			_ = g.Draw(method)
			return
		}
	}
}

// Outcome implementa Engine.
func (e *ChessEngine) Outcome(pos Position) Outcome {
	cp, ok := pos.(*chessPosition)
	if !ok {
		return Outcome{}
	}

	out := Outcome{Reason: methodReason(cp.game.Method())}
	switch cp.game.Outcome() {
	case chess.WhiteWon:
		out.Terminal, out.Winner = true, White
	case chess.BlackWon:
		out.Terminal, out.Winner = true, Black
	case chess.Draw:
		out.Terminal = true
	default:
		return Outcome{}
	}
	return out
}

// LegalMoves lista todos os lances legais em pos. Usado pelos bots.
func (e *ChessEngine) LegalMoves(pos Position) []Move {
	cp, ok := pos.(*chessPosition)
	if !ok {
		return nil
	}

	valid := cp.game.ValidMoves()
	moves := make([]Move, 0, len(valid))
	for _, m := range valid {
		moves = append(moves, Move{
			From:      m.S1().String(),
			To:        m.S2().String(),
			Promotion: promotionLetter(m.Promo()),
		})
	}
	return moves
}

func playUCI(g *chess.Game, s string) error {
	m, err := chess.UCINotation{}.Decode(g.Position(), s)
	if err != nil {
		return err
	}
	return g.Move(m)
}

func validSquare(s string) bool {
	return len(s) == 2 && s[0] >= 'a' && s[0] <= 'h' && s[1] >= '1' && s[1] <= '8'
}

func validPromotion(s string) bool {
	switch s {
	case "q", "r", "b", "n":
		return true
	}
	return false
}

func promotionLetter(p chess.PieceType) string {
	switch p {
	case chess.Queen:
		return "q"
	case chess.Rook:
		return "r"
	case chess.Bishop:
		return "b"
	case chess.Knight:
		return "n"
	}
	return ""
}

func methodReason(m chess.Method) string {
	switch m {
	case chess.Checkmate:
		return "checkmate"
	case chess.Stalemate:
		return "stalemate"
	case chess.InsufficientMaterial:
		return "insufficient_material"
	case chess.FivefoldRepetition:
		return "fivefold_repetition"
	case chess.SeventyFiveMoveRule:
		return "seventy_five_move_rule"
	case chess.ThreefoldRepetition:
		return "threefold_repetition"
	case chess.FiftyMoveRule:
		return "fifty_move_rule"
	}
	return ""
}
