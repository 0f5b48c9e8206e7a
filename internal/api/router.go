// Package api expõe o relay via HTTP: o endpoint websocket mais os
// endpoints de saúde e estatísticas.
package api

import (
	"net/http"
	"time"

	"chessrelay/internal/cluster"
	"chessrelay/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// StatsSource é implementado por session.Matchmaker.
type StatsSource interface {
	Stats() session.Stats
}

// RouterConfig reúne o que NewRouter precisa para montar os endpoints.
type RouterConfig struct {
	WSPath string
	// WS atende o upgrade websocket, normalmente network.Server.ServeWS.
	WS     http.HandlerFunc
	Stats  StatsSource
	Health *cluster.HealthAggregator
	Log    zerolog.Logger
}

// NewRouter monta o roteador gin com recovery e log de requisições.
func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(cfg.Log))

	r.GET(cfg.WSPath, func(c *gin.Context) {
		cfg.WS(c.Writer, c.Request)
	})
	r.GET("/health", cfg.Health.Handler())
	r.GET("/stats", StatsHandler(cfg.Stats))

	return r
}

// StatsHandler informa conexões, jogadores em espera e partidas ativas.
func StatsHandler(src StatsSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, src.Stats())
	}
}

// requestLogger registra cada requisição concluída. Requisições websocket são
// registradas quando o handler de upgrade retorna, logo após o handshake.
func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	log = log.With().Str("component", "http").Logger()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		ev := log.Debug()
		if status >= http.StatusInternalServerError {
			ev = log.Warn()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("remote", c.ClientIP()).
			Msg("request")
	}
}
