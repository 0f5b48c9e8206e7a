// Package rules é a fronteira com as regras do jogo.
// A camada de sessão só precisa da posição inicial, de um jeito de tentar um lance
// e de saber se a partida acabou; ela nunca olha a posição além da sua serialização.
package rules

// Color é um lado do tabuleiro.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

// Opponent retorna o outro lado.
func (c Color) Opponent() Color {
	if c == White {
		return Black
	}
	return White
}

// Move é um lance proposto em coordenadas, ex.: From "e7", To "e8", Promotion "q".
// Promotion pode ser vazio.
type Move struct {
	From      string
	To        string
	Promotion string
}

// Position é um estado imutável da partida.
type Position interface {
	// FEN é a serialização canônica da posição completa.
	FEN() string

	// Turn é o lado que joga.
	Turn() Color
}

// Outcome descreve se uma posição encerra a partida.
type Outcome struct {
	Terminal bool

	// Winner fica vazio num empate ou numa partida em andamento.
	Winner Color

	// Reason é uma causa curta e legível por máquina, como "checkmate".
	Reason string
}

// Draw informa uma posição final sem vencedor.
func (o Outcome) Draw() bool {
	return o.Terminal && o.Winner == ""
}

// Engine valida lances e detecta posições finais.
type Engine interface {
	// Start retorna a posição inicial padrão.
	Start() Position

	// Apply tenta mv sobre pos. Em caso de sucesso retorna a nova posição e true.
	// Um lance ilegal ou malformado retorna pos intacta e false. Nunca entra em pânico.
	Apply(pos Position, mv Move) (Position, bool)

	// Outcome informa se pos encerra a partida.
	Outcome(pos Position) Outcome
}
