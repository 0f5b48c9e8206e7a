package network

// Conn é a visão que a lógica do jogo tem de um cliente conectado.
// O jogo apenas identifica conexões e envia mensagens para elas;
// abrir e fechar conexões é responsabilidade do Hub.
type Conn interface {
	// ID é único durante toda a vida do processo.
	ID() string

	// RemoteAddr é usado apenas em logs.
	RemoteAddr() string

	// Send enfileira msg para entrega e nunca bloqueia. Retorna false quando
	// o frame foi descartado porque o cliente saiu ou o buffer está cheio.
	Send(msg Message) bool
}

// EventHandler é a ponte entre a camada de rede e a lógica do jogo.
// O Hub chama todos os métodos a partir da SUA goroutine, um evento por vez,
// então as implementações podem manter estado sem locks.
type EventHandler interface {
	// OnConnect é chamado quando um cliente conclui o handshake websocket.
	OnConnect(c Conn)

	// OnDisconnect é chamado depois que a fila de saída do cliente foi fechada.
	OnDisconnect(c Conn)

	// OnMessage é chamado para cada envelope bem formado que o cliente envia.
	OnMessage(c Conn, msg Message)
}
