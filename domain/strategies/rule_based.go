package strategies

import (
	"context"

	"nodespace-core/domain/config"
	"nodespace-core/domain/core/entities"
	"nodespace-core/domain/core/valueobjects"
	pkgerrors "nodespace-core/pkg/errors"
)

// RuleBasedStrategy picks context by structure alone: parent, siblings,
// children and explicit relationships for the contextual tier, the ancestor
// path for the hierarchical tier
type RuleBasedStrategy struct {
	cfg *config.DomainConfig
}

// NewRuleBasedStrategy creates a rule-based strategy
func NewRuleBasedStrategy(cfg *config.DomainConfig) *RuleBasedStrategy {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &RuleBasedStrategy{cfg: cfg}
}

// Name implements ContextStrategy
func (s *RuleBasedStrategy) Name() StrategyName {
	return RuleBased
}

// Assemble implements ContextStrategy
func (s *RuleBasedStrategy) Assemble(ctx context.Context, node *entities.Node, view AncestryView, tier entities.Tier) (Window, error) {
	candidates, depth, err := gather(ctx, s.cfg, node, view, tier)
	if err != nil {
		return Window{}, err
	}

	w := Window{
		Focus:     node.ID(),
		Tier:      tier,
		Strategy:  RuleBased,
		Segments:  append([]Segment{selfSegment(node)}, candidates...),
		PathDepth: depth,
	}
	return w, nil
}

// gather collects the structural candidates for a tier, focus excluded.
// Contextual candidates are bounded by MaxSiblings, MaxChildren and
// MaxRelated; the
// hierarchical path by MaxAncestorDepth plus the cached root.
func gather(ctx context.Context, cfg *config.DomainConfig, node *entities.Node, view AncestryView, tier entities.Tier) ([]Segment, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, pkgerrors.Wrap(err, strategyService, "context assembly cancelled")
	}
	if node == nil {
		return nil, 0, pkgerrors.RequiredField(strategyService, "node", "Assemble")
	}
	if !tier.Valid() {
		return nil, 0, pkgerrors.InvalidFormat(strategyService, "tier", "individual, contextual or hierarchical", string(tier))
	}
	if tier == entities.TierIndividual {
		return nil, 0, nil
	}
	if view == nil {
		return nil, 0, pkgerrors.RequiredField(strategyService, "view", "Assemble")
	}

	switch tier {
	case entities.TierContextual:
		return gatherContextual(cfg, node, view), 1, nil
	default:
		return gatherHierarchical(cfg, node, view)
	}
}

func gatherContextual(cfg *config.DomainConfig, node *entities.Node, view AncestryView) []Segment {
	var out []Segment
	// a parent missing from the view is an orphan; the data-store reports those
	if parentID, ok := node.Parent(); ok {
		if parent, found := view.Node(parentID); found {
			out = append(out, Segment{NodeID: parentID, Role: RoleParent, Text: nodeText(parent), Distance: 1})
		}
	}
	for i, sibling := range view.Siblings(node.ID()) {
		if i >= cfg.MaxSiblings {
			break
		}
		out = append(out, Segment{NodeID: sibling.ID(), Role: RoleSibling, Text: nodeText(sibling), Distance: 2})
	}
	for i, child := range view.Children(node.ID()) {
		if i >= cfg.MaxChildren {
			break
		}
		out = append(out, Segment{NodeID: child.ID(), Role: RoleChild, Text: nodeText(child), Distance: 1})
	}
	if relations, ok := view.(RelationView); ok {
		out = appendRelations(cfg, node, out, relations)
	}
	return out
}

// appendRelations adds mentioning nodes, then related nodes, skipping nodes
// already in the window. Both lists are bounded by MaxRelated.
func appendRelations(cfg *config.DomainConfig, node *entities.Node, out []Segment, view RelationView) []Segment {
	seen := map[valueobjects.NodeID]bool{node.ID(): true}
	for _, s := range out {
		seen[s.NodeID] = true
	}
	add := func(nodes []*entities.Node, role Role) {
		added := 0
		for _, n := range nodes {
			if added >= cfg.MaxRelated {
				return
			}
			if seen[n.ID()] {
				continue
			}
			seen[n.ID()] = true
			out = append(out, Segment{NodeID: n.ID(), Role: role, Text: nodeText(n), Distance: 2})
			added++
		}
	}
	add(view.Mentions(node.ID()), RoleMention)
	add(view.Related(node.ID()), RoleRelated)
	return out
}

func gatherHierarchical(cfg *config.DomainConfig, node *entities.Node, view AncestryView) ([]Segment, int, error) {
	if node.IsRoot() {
		return nil, 0, nil
	}

	ancestors := view.Ancestors(node.ID(), cfg.MaxAncestorDepth)
	out := make([]Segment, 0, len(ancestors)+1)
	reachedRoot := false
	for i, a := range ancestors {
		role := RoleAncestor
		if i == 0 {
			role = RoleParent
		}
		if a.ID().Equals(node.Root()) {
			role = RoleRoot
			reachedRoot = true
		}
		out = append(out, Segment{NodeID: a.ID(), Role: role, Text: nodeText(a), Distance: i + 1})
	}

	// the cached root closes a path that was cut at MaxAncestorDepth
	if !reachedRoot {
		root, ok := view.Node(node.Root())
		if !ok {
			return nil, 0, pkgerrors.AncestryUnresolved(strategyService, node.ID().String(), node.Root().String())
		}
		out = append(out, Segment{NodeID: root.ID(), Role: RoleRoot, Text: nodeText(root), Distance: len(ancestors) + 1})
	}
	return out, len(out), nil
}
