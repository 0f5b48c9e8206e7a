// Package cluster registra o relay no Consul e agrega suas verificações de saúde.
package cluster

import (
	"fmt"
	"strings"

	consul "github.com/hashicorp/consul/api"
	"github.com/rs/zerolog"
)

// NewConsulClient tenta cada endereço de agente (separados por vírgula) e retorna
// um cliente para o primeiro que enxerga um líder. Isso torna a conexão inicial
// com o cluster Consul resiliente.
func NewConsulClient(addrs string, log zerolog.Logger) (*consul.Client, error) {
	for _, node := range strings.Split(addrs, ",") {
		node = strings.TrimSpace(node)
		if node == "" {
			continue
		}
		cfg := consul.DefaultConfig()
		cfg.Address = node

		client, err := consul.NewClient(cfg)
		if err != nil {
			log.Warn().Err(err).Str("consul", node).Msg("consul client rejected")
			continue
		}
		// Teste rápido de saúde: o agente precisa enxergar um líder.
		if _, err := client.Status().Leader(); err != nil {
			log.Warn().Err(err).Str("consul", node).Msg("consul agent unavailable")
			continue
		}

		log.Info().Str("consul", node).Msg("connected to consul")
		return client, nil
	}
	return nil, fmt.Errorf("no consul agent available in %q", addrs)
}

// Registration descreve o relay para o Consul. O agente consulta /health no
// hostname anunciado e desregistra o serviço após um minuto em estado crítico.
func Registration(serviceName, hostname string, port int) *consul.AgentServiceRegistration {
	return &consul.AgentServiceRegistration{
		ID:   fmt.Sprintf("%s-%s", serviceName, hostname),
		Name: serviceName,
		Port: port,
		Tags: []string{"websocket", "chess"},
		Check: &consul.AgentServiceCheck{
			HTTP:                           fmt.Sprintf("http://%s:%d/health", hostname, port),
			Timeout:                        "5s",
			Interval:                       "10s",
			DeregisterCriticalServiceAfter: "1m",
		},
	}
}

// Registrar mantém o registro de um serviço num agente Consul.
type Registrar struct {
	client *consul.Client
	reg    *consul.AgentServiceRegistration
	log    zerolog.Logger
}

// NewRegistrar cria um Registrar para reg usando client.
func NewRegistrar(client *consul.Client, reg *consul.AgentServiceRegistration, log zerolog.Logger) *Registrar {
	return &Registrar{
		client: client,
		reg:    reg,
		log:    log.With().Str("component", "consul").Str("service_id", reg.ID).Logger(),
	}
}

// Register anuncia o serviço.
func (r *Registrar) Register() error {
	if err := r.client.Agent().ServiceRegister(r.reg); err != nil {
		return fmt.Errorf("register %s: %w", r.reg.ID, err)
	}
	r.log.Info().Str("service", r.reg.Name).Int("port", r.reg.Port).Msg("registered in consul")
	return nil
}

// Deregister remove o serviço, normalmente no desligamento.
func (r *Registrar) Deregister() error {
	if err := r.client.Agent().ServiceDeregister(r.reg.ID); err != nil {
		return fmt.Errorf("deregister %s: %w", r.reg.ID, err)
	}
	r.log.Info().Msg("deregistered from consul")
	return nil
}

// Check informa se o agente ainda enxerga um líder.
// Feito para ser adicionado a um HealthAggregator.
func (r *Registrar) Check() error {
	leader, err := r.client.Status().Leader()
	if err != nil {
		return err
	}
	if leader == "" {
		return fmt.Errorf("consul has no leader")
	}
	return nil
}
