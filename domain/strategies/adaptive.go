package strategies

import (
	"context"

	"nodespace-core/domain/config"
	"nodespace-core/domain/core/entities"
)

// AdaptiveStrategy uses the rule-based strategy while the neighbourhood is
// small and switches to similarity ranking once it grows past
// AdaptiveCandidateLimit. Ranking also needs the focus node's individual
// embedding; without it the rule-based window is used.
type AdaptiveStrategy struct {
	cfg       *config.DomainConfig
	rules     *RuleBasedStrategy
	semantics *AIEnhancedStrategy
}

// NewAdaptiveStrategy creates an adaptive strategy
func NewAdaptiveStrategy(cfg *config.DomainConfig) *AdaptiveStrategy {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &AdaptiveStrategy{
		cfg:       cfg,
		rules:     NewRuleBasedStrategy(cfg),
		semantics: NewAIEnhancedStrategy(cfg),
	}
}

// Name implements ContextStrategy
func (s *AdaptiveStrategy) Name() StrategyName {
	return Adaptive
}

// Assemble implements ContextStrategy
func (s *AdaptiveStrategy) Assemble(ctx context.Context, node *entities.Node, view AncestryView, tier entities.Tier) (Window, error) {
	var delegate ContextStrategy = s.rules
	if node != nil && node.Embeddings().Has(entities.TierIndividual) && s.neighbourhood(node, view, tier) > s.cfg.AdaptiveCandidateLimit {
		delegate = s.semantics
	}

	w, err := delegate.Assemble(ctx, node, view, tier)
	if err != nil {
		return Window{}, err
	}
	w.Strategy = Adaptive
	w.Delegate = delegate.Name()
	return w, nil
}

// neighbourhood counts the unbounded structural candidates for a tier
func (s *AdaptiveStrategy) neighbourhood(node *entities.Node, view AncestryView, tier entities.Tier) int {
	if view == nil {
		return 0
	}
	switch tier {
	case entities.TierContextual:
		n := len(view.Siblings(node.ID())) + len(view.Children(node.ID()))
		if !node.IsRoot() {
			n++
		}
		if relations, ok := view.(RelationView); ok {
			n += len(relations.Mentions(node.ID())) + len(relations.Related(node.ID()))
		}
		return n
	case entities.TierHierarchical:
		return len(view.Ancestors(node.ID(), 0))
	}
	return 0
}
