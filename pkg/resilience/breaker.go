// Package resilience provides fault tolerance for external service calls.
package resilience

import (
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/pretzelai/email-use/pkg/logger"
)

// BreakerGroup holds one circuit breaker per named upstream (e.g. one per AI
// provider key) so a failing provider does not trip calls to a healthy one.
type BreakerGroup struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
	settings func(name string) gobreaker.Settings
}

// NewBreakerGroup creates a group with default settings: trip after 5
// consecutive failures, half-open after 30s.
func NewBreakerGroup() *BreakerGroup {
	return &BreakerGroup{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		settings: defaultSettings,
	}
}

func defaultSettings(name string) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker %q: %s -> %s", name, from, to)
		},
	}
}

func (g *BreakerGroup) breaker(name string) *gobreaker.CircuitBreaker {
	g.mu.Lock()
	defer g.mu.Unlock()
	if cb, ok := g.breakers[name]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(g.settings(name))
	g.breakers[name] = cb
	return cb
}

// Execute runs fn through the named breaker.
func (g *BreakerGroup) Execute(name string, fn func() (any, error)) (any, error) {
	return g.breaker(name).Execute(fn)
}
