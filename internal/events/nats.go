package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// ErrNotConnected é retornado por Check enquanto a conexão com o NATS está fora.
var ErrNotConnected = errors.New("nats: not connected")

// NATSPublisher publica eventos em JSON no subject <prefix>.session.<kind>.
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
}

// NewNATSPublisher conecta em url e tenta reconectar para sempre.
func NewNATSPublisher(url, name, prefix string, log zerolog.Logger) (*NATSPublisher, error) {
	log = log.With().Str("component", "nats").Logger()

	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", url, err)
	}
	log.Info().Str("url", nc.ConnectedUrl()).Msg("connected")
	return newNATSPublisher(nc, prefix), nil
}

func newNATSPublisher(nc *nats.Conn, prefix string) *NATSPublisher {
	return &NATSPublisher{nc: nc, prefix: prefix}
}

// Subject retorna o subject onde eventos do tipo kind são publicados.
func (p *NATSPublisher) Subject(kind string) string {
	if p.prefix == "" {
		return "session." + kind
	}
	return p.prefix + ".session." + kind
}

// Publish implementa Publisher. O nats bufferiza a mensagem, então esta chamada
// não espera pelo servidor.
func (p *NATSPublisher) Publish(ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.Kind, err)
	}
	if err := p.nc.Publish(p.Subject(ev.Kind), data); err != nil {
		return fmt.Errorf("publish %s event: %w", ev.Kind, err)
	}
	return nil
}

// Check informa se a conexão está utilizável agora. Usado no /health.
func (p *NATSPublisher) Check() error {
	if p.nc == nil || !p.nc.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// Close descarrega os eventos pendentes e fecha a conexão.
func (p *NATSPublisher) Close() error {
	if p.nc == nil {
		return nil
	}
	return p.nc.Drain()
}
