package cluster

import (
	"net/http"
	"sort"
	"sync"

	"github.com/gin-gonic/gin"
)

// CheckFunc é uma função que realiza uma verificação de saúde.
// Retorna um erro se a verificação falhar.
type CheckFunc func() error

// HealthAggregator permite registrar múltiplas verificações de saúde e as expõe
// através de um único endpoint HTTP.
type HealthAggregator struct {
	mu     sync.RWMutex
	checks map[string]CheckFunc
}

// NewHealthAggregator cria um novo agregador de saúde.
func NewHealthAggregator() *HealthAggregator {
	return &HealthAggregator{checks: make(map[string]CheckFunc)}
}

// AddCheck registra uma verificação com o nome dado, substituindo a anterior.
func (h *HealthAggregator) AddCheck(name string, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// Names lista as verificações registradas em ordem alfabética.
func (h *HealthAggregator) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run executa todas as verificações e retorna as falhas por nome.
func (h *HealthAggregator) Run() map[string]string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	failures := make(map[string]string)
	for name, check := range h.checks {
		if err := check(); err != nil {
			failures[name] = err.Error()
		}
	}
	return failures
}

// Handler retorna um gin.HandlerFunc que executa todas as verificações.
// Se todas passarem, responde 200 OK. Se alguma falhar, 503 com as falhas.
func (h *HealthAggregator) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if failures := h.Run(); len(failures) > 0 {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "checks": failures})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	}
}
