// Command server executa o relay de xadrez: um endpoint websocket que forma
// pares de jogadores e repassa seus lances.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chessrelay/internal/api"
	"chessrelay/internal/cluster"
	"chessrelay/internal/config"
	"chessrelay/internal/events"
	"chessrelay/internal/logging"
	"chessrelay/internal/network"
	"chessrelay/internal/rules"
	"chessrelay/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// 1. CARREGA A CONFIGURAÇÃO
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}

	// 2. CONFIGURA O LOG
	log, err := logging.New(cfg.ServiceName, cfg.LogLevel, cfg.LogPretty)
	if err != nil {
		bootLog := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootLog.Fatal().Err(err).Msg("invalid log level")
	}

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
	log.Info().Msg("server stopped")
}

// run monta todas as peças e bloqueia até um sinal de desligamento ou um erro fatal.
func run(cfg *config.Config, log zerolog.Logger) error {
	log.Info().
		Str("addr", cfg.HTTPAddr).
		Str("ws_path", cfg.WSPath).
		Bool("forfeit_on_disconnect", cfg.ForfeitOnDisconnect).
		Msg("starting")

	health := cluster.NewHealthAggregator()

	// 3. EVENTOS: NATS só quando configurado; caso contrário, Nop.
	var publisher events.Publisher = events.Nop{}
	if cfg.NATSURL != "" {
		natsPub, err := events.NewNATSPublisher(cfg.NATSURL, cfg.ServiceName, cfg.NATSSubjectPrefix, log)
		if err != nil {
			return err
		}
		defer natsPub.Close()
		publisher = natsPub
		health.AddCheck("nats", natsPub.Check)
	}

	// 4. INICIA A LÓGICA DO JOGO E A REDE
	matchmaker := session.NewMatchmaker(
		rules.NewChessEngine(),
		publisher,
		session.Options{ForfeitOnDisconnect: cfg.ForfeitOnDisconnect},
		log,
	)
	server := network.NewServer(matchmaker, cfg.SendBuffer, log)
	health.AddCheck("hub", server.Check)

	// 5. CONFIGURA OS HANDLERS HTTP
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	httpServer := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: api.NewRouter(api.RouterConfig{
			WSPath: cfg.WSPath,
			WS:     server.ServeWS,
			Stats:  matchmaker,
			Health: health,
			Log:    log,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 6. SOBE HUB E HTTP; qualquer erro derruba os dois.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := server.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// 7. REGISTRA O SERVIÇO NO CONSUL (opcional; falha não impede o relay de rodar)
	if cfg.ConsulAddr != "" {
		registrar, err := newRegistrar(cfg, log)
		if err != nil {
			log.Warn().Err(err).Msg("running without consul registration")
		} else {
			health.AddCheck("consul", registrar.Check)
			defer func() {
				if err := registrar.Deregister(); err != nil {
					log.Warn().Err(err).Msg("consul deregistration failed")
				}
			}()
		}
	}

	// 8. DESLIGAMENTO GRACIOSO
	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// newRegistrar conecta ao Consul e registra o relay com seu health check.
func newRegistrar(cfg *config.Config, log zerolog.Logger) (*cluster.Registrar, error) {
	port, err := cfg.Port()
	if err != nil {
		return nil, err
	}
	client, err := cluster.NewConsulClient(cfg.ConsulAddr, log)
	if err != nil {
		return nil, err
	}
	registrar := cluster.NewRegistrar(client, cluster.Registration(cfg.ServiceName, cfg.AdvertisedHostname, port), log)
	if err := registrar.Register(); err != nil {
		return nil, err
	}
	return registrar, nil
}
