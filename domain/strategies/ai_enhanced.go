package strategies

import (
	"context"
	"sort"

	"nodespace-core/domain/config"
	"nodespace-core/domain/core/entities"
	pkgerrors "nodespace-core/pkg/errors"
)

// AIEnhancedStrategy starts from the structural candidates and keeps those
// whose individual embeddings are closest to the focus node. The parent
// (contextual) and the root (hierarchical) are always kept as anchors.
type AIEnhancedStrategy struct {
	cfg *config.DomainConfig
}

// NewAIEnhancedStrategy creates a similarity-ranked strategy
func NewAIEnhancedStrategy(cfg *config.DomainConfig) *AIEnhancedStrategy {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &AIEnhancedStrategy{cfg: cfg}
}

// Name implements ContextStrategy
func (s *AIEnhancedStrategy) Name() StrategyName {
	return AIEnhanced
}

// Assemble implements ContextStrategy
func (s *AIEnhancedStrategy) Assemble(ctx context.Context, node *entities.Node, view AncestryView, tier entities.Tier) (Window, error) {
	candidates, depth, err := gather(ctx, s.cfg, node, view, tier)
	if err != nil {
		return Window{}, err
	}

	w := Window{
		Focus:     node.ID(),
		Tier:      tier,
		Strategy:  AIEnhanced,
		Segments:  []Segment{selfSegment(node)},
		PathDepth: depth,
	}
	if len(candidates) == 0 {
		return w, nil
	}

	focus, ok := node.Embeddings().Get(entities.TierIndividual)
	if !ok {
		return Window{}, pkgerrors.MissingTier(strategyService, string(tier), string(entities.TierIndividual))
	}

	var anchors, ranked []Segment
	for _, c := range candidates {
		if (c.Role == RoleParent && tier == entities.TierContextual) || c.Role == RoleRoot {
			anchors = append(anchors, c)
			continue
		}
		other, found := view.Node(c.NodeID)
		if !found {
			continue
		}
		e, has := other.Embeddings().Get(entities.TierIndividual)
		if !has {
			continue
		}
		score, err := focus.Vector.Cosine(e.Vector)
		if err != nil || score < s.cfg.SimilarityThreshold {
			continue
		}
		c.Score = score
		ranked = append(ranked, c)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Distance < ranked[j].Distance
	})
	if len(ranked) > s.cfg.SemanticTopK {
		ranked = ranked[:s.cfg.SemanticTopK]
	}

	w.Segments = append(w.Segments, anchors...)
	w.Segments = append(w.Segments, ranked...)
	return w, nil
}
