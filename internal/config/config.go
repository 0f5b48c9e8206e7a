// Package config carrega as configurações do relay a partir de variáveis de ambiente.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	defaultHTTPAddr      = ":8080"
	defaultWSPath        = "/ws"
	defaultLogLevel      = "info"
	defaultServiceName   = "chess-relay"
	defaultSendBuffer    = 256
	defaultSubjectPrefix = "chess"
)

// Config armazena todas as configurações do servidor.
type Config struct {
	HTTPAddr    string
	WSPath      string
	LogLevel    string
	LogPretty   bool
	ServiceName string

	// SendBuffer é o número de frames de saída enfileirados por conexão.
	SendBuffer int

	ForfeitOnDisconnect bool

	// NATSURL, quando definido, habilita os eventos de ciclo de vida.
	NATSURL           string
	NATSSubjectPrefix string

	// ConsulAddr, quando definido, habilita o registro no Consul.
	// Pode listar vários agentes separados por vírgula.
	ConsulAddr         string
	AdvertisedHostname string
}

// Load lê a configuração do ambiente, usando os padrões para variáveis ausentes.
// Valores malformados são reportados como erro, não ignorados.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPAddr:           getenv("HTTP_ADDR", defaultHTTPAddr),
		WSPath:             getenv("WS_PATH", defaultWSPath),
		LogLevel:           getenv("LOG_LEVEL", defaultLogLevel),
		ServiceName:        getenv("SERVICE_NAME", defaultServiceName),
		NATSURL:            os.Getenv("NATS_URL"),
		NATSSubjectPrefix:  getenv("NATS_SUBJECT_PREFIX", defaultSubjectPrefix),
		ConsulAddr:         os.Getenv("CONSUL_HTTP_ADDR"),
		AdvertisedHostname: os.Getenv("SERVICE_ADVERTISED_HOSTNAME"),
	}

	var err error
	if cfg.LogPretty, err = getenvBool("LOG_PRETTY", false); err != nil {
		return nil, err
	}
	if cfg.ForfeitOnDisconnect, err = getenvBool("FORFEIT_ON_DISCONNECT", true); err != nil {
		return nil, err
	}
	if cfg.SendBuffer, err = getenvInt("SEND_BUFFER", defaultSendBuffer); err != nil {
		return nil, err
	}

	if cfg.AdvertisedHostname == "" {
		cfg.AdvertisedHostname, _ = os.Hostname()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate confere valores que são válidos sintaticamente mas não fazem sentido.
func (c *Config) Validate() error {
	if c.SendBuffer <= 0 {
		return fmt.Errorf("SEND_BUFFER must be positive, got %d", c.SendBuffer)
	}
	if !strings.HasPrefix(c.WSPath, "/") {
		return fmt.Errorf("WS_PATH must start with '/', got %q", c.WSPath)
	}
	if c.HTTPAddr == "" {
		return fmt.Errorf("HTTP_ADDR must not be empty")
	}
	return nil
}

// Port retorna a porta numérica de HTTPAddr. Usada no registro do Consul.
func (c *Config) Port() (int, error) {
	i := strings.LastIndex(c.HTTPAddr, ":")
	if i < 0 {
		return 0, fmt.Errorf("HTTP_ADDR %q has no port", c.HTTPAddr)
	}
	port, err := strconv.Atoi(c.HTTPAddr[i+1:])
	if err != nil {
		return 0, fmt.Errorf("invalid port in HTTP_ADDR %q: %w", c.HTTPAddr, err)
	}
	return port, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return i, nil
}

func getenvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
