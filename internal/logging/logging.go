// Package logging constrói o logger zerolog compartilhado pelos binários do relay.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New retorna um logger marcado com o nome do serviço, escrevendo linhas JSON
// em stderr, ou em formato legível de console quando pretty é true.
func New(service, level string, pretty bool) (zerolog.Logger, error) {
	return NewWithWriter(os.Stderr, service, level, pretty)
}

// NewWithWriter é New com um destino explícito.
func NewWithWriter(w io.Writer, service, level string, pretty bool) (zerolog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), err
	}

	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).
		Level(lvl).
		With().
		Timestamp().
		Str("service", service).
		Logger(), nil
}

// ParseLevel aceita nomes de nível do zerolog em qualquer caixa. Vazio significa info.
func ParseLevel(level string) (zerolog.Level, error) {
	if strings.TrimSpace(level) == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return lvl, nil
}
