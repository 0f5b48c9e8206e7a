package network

import "encoding/json"

// Message é o envelope de todo frame trafegado.
// Type define a rota; Payload fica cru para que cada lado o decodifique
// na struct correspondente ao Type.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// MaxMessageSize limita um único frame de entrada. Frames maiores fecham a conexão.
const MaxMessageSize = 64 * 1024
