package strategies

import (
	"context"
	"strings"
	"unicode/utf8"

	"nodespace-core/domain/core/entities"
	"nodespace-core/domain/core/valueobjects"
)

const strategyService = "context-strategy"

// StrategyName identifies a context strategy in configuration
type StrategyName string

const (
	RuleBased  StrategyName = "rule_based"
	AIEnhanced StrategyName = "ai_enhanced"
	Adaptive   StrategyName = "adaptive"
)

// AncestryView is the read-only hierarchy a strategy may look at.
// aggregates.Forest implements it; a data-store client can too.
type AncestryView interface {
	Node(id valueobjects.NodeID) (*entities.Node, bool)
	Children(id valueobjects.NodeID) []*entities.Node
	Siblings(id valueobjects.NodeID) []*entities.Node
	// Ancestors returns up to limit ancestors, nearest first
	Ancestors(id valueobjects.NodeID, limit int) []*entities.Node
}

// RelationView is implemented by views that also index relationships
// outside the hierarchy. Strategies use it when the view provides it.
type RelationView interface {
	// Related returns the targets of a node's relationships
	Related(id valueobjects.NodeID) []*entities.Node
	// Mentions returns the nodes that mention a node
	Mentions(id valueobjects.NodeID) []*entities.Node
}

// ContextStrategy decides which surrounding nodes feed an embedding tier.
// Strategies only read the hierarchy.
type ContextStrategy interface {
	Name() StrategyName
	Assemble(ctx context.Context, node *entities.Node, view AncestryView, tier entities.Tier) (Window, error)
}

// Role is how a segment relates to the focus node
type Role string

const (
	RoleSelf     Role = "self"
	RoleParent   Role = "parent"
	RoleSibling  Role = "sibling"
	RoleChild    Role = "child"
	RoleAncestor Role = "ancestor"
	RoleRoot     Role = "root"
	RoleMention  Role = "mention"
	RoleRelated  Role = "related"
)

// Segment is one node's contribution to a context window
type Segment struct {
	NodeID   valueobjects.NodeID
	Role     Role
	Text     string
	Distance int
	Score    float64
}

// Window is the assembled context for one node and tier. The focus node's
// own segment always comes first.
type Window struct {
	Focus     valueobjects.NodeID
	Tier      entities.Tier
	Strategy  StrategyName
	Delegate  StrategyName
	Segments  []Segment
	PathDepth int
}

// NodeIDs returns the nodes that contributed to the window
func (w Window) NodeIDs() []valueobjects.NodeID {
	ids := make([]valueobjects.NodeID, len(w.Segments))
	for i, s := range w.Segments {
		ids[i] = s.NodeID
	}
	return ids
}

// Text renders the window as model input, keeping at most budget characters.
// The focus segment is always kept; other segments that do not fit are
// dropped. A budget of zero or less means no limit.
func (w Window) Text(budget int) string {
	var b strings.Builder
	used := 0
	for i, s := range w.Segments {
		part := s.Text
		if s.Role != RoleSelf {
			part = "[" + string(s.Role) + "] " + part
		}
		if i > 0 {
			part = "\n\n" + part
		}
		n := utf8.RuneCountInString(part)
		if i > 0 && budget > 0 && used+n > budget {
			continue
		}
		b.WriteString(part)
		used += n
	}
	return b.String()
}

func selfSegment(node *entities.Node) Segment {
	return Segment{NodeID: node.ID(), Role: RoleSelf, Text: nodeText(node)}
}

// nodeText is the model input for one node
func nodeText(node *entities.Node) string {
	if node.Type() == entities.NodeTypeImage {
		if img, err := entities.ImageNodeFromNode(node); err == nil {
			return img.Text()
		}
	}
	return node.Content().Text()
}
