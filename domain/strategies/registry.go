package strategies

import (
	"sort"
	"strings"
	"sync"

	"nodespace-core/domain/config"
	pkgerrors "nodespace-core/pkg/errors"
)

// Registry selects strategies by their configured name
type Registry struct {
	mu         sync.RWMutex
	strategies map[StrategyName]ContextStrategy
	fallback   StrategyName
}

// NewRegistry creates a registry holding the built-in strategies, with the
// configured default strategy as fallback
func NewRegistry(cfg *config.DomainConfig) *Registry {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	r := &Registry{
		strategies: make(map[StrategyName]ContextStrategy),
		fallback:   StrategyName(cfg.DefaultStrategy),
	}
	r.Register(NewRuleBasedStrategy(cfg))
	r.Register(NewAIEnhancedStrategy(cfg))
	r.Register(NewAdaptiveStrategy(cfg))
	return r
}

// Register adds or replaces a strategy under its own name
func (r *Registry) Register(s ContextStrategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[s.Name()] = s
}

// Get returns the strategy registered under name
func (r *Registry) Get(name StrategyName) (ContextStrategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[name]
	if !ok {
		return nil, pkgerrors.InvalidFormat(strategyService, "strategy", strings.Join(r.namesLocked(), ", "), string(name))
	}
	return s, nil
}

// Default returns the configured default strategy
func (r *Registry) Default() (ContextStrategy, error) {
	return r.Get(r.fallback)
}

// Names returns the registered strategy names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.strategies))
	for n := range r.strategies {
		names = append(names, string(n))
	}
	sort.Strings(names)
	return names
}
