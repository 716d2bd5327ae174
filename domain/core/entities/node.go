package entities

import (
	"sort"
	"time"

	"nodespace-core/domain/core/valueobjects"
	"nodespace-core/domain/events"
	pkgerrors "nodespace-core/pkg/errors"
	"nodespace-core/pkg/utils"
)

const nodeService = "node"

// timeNow is swapped in tests
var timeNow = time.Now

// Metadata holds auxiliary attributes read by downstream consumers. New keys
// are additive: readers ignore keys they do not know.
type Metadata map[string]interface{}

// Get returns one attribute
func (m Metadata) Get(key string) (interface{}, bool) {
	v, ok := m[key]
	return v, ok
}

// Keys returns the attribute names in sorted order
func (m Metadata) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m Metadata) clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Resolver looks nodes up by identifier. The data-store, or an in-memory
// Forest, provides it; the model never holds pointers to other nodes.
type Resolver interface {
	Node(id valueobjects.NodeID) (*Node, bool)
}

// Node is the main entity representing a unit of knowledge.
// A Node is immutable: every mutation returns a new value, so a *Node can be
// shared between goroutines freely.
type Node struct {
	id              valueobjects.NodeID
	content         valueobjects.NodeContent
	parent          valueobjects.NodeID
	root            valueobjects.NodeID
	metadata        Metadata
	previousSibling valueobjects.NodeID
	nextSibling     valueobjects.NodeID
	relationships   []valueobjects.RelationshipRef
	embeddings      EmbeddingSet
	createdAt       time.Time
	updatedAt       time.Time
	version         int

	// Domain events raised while deriving this value
	events []events.DomainEvent
}

// NewNode creates a node under parent, or a new root when parent is nil.
// The root is taken from the parent's own cached root: one hop, never a walk.
func NewNode(content valueobjects.NodeContent, parent *Node) (*Node, error) {
	return NewNodeWithID(valueobjects.NewNodeID(), content, parent)
}

// NewNodeWithID creates a node with an identifier assigned by the producer
func NewNodeWithID(id valueobjects.NodeID, content valueobjects.NodeContent, parent *Node) (*Node, error) {
	if id.IsZero() {
		return nil, pkgerrors.RequiredField(nodeService, "id", "Node")
	}
	if content.IsEmpty() {
		return nil, pkgerrors.RequiredField(nodeService, "content", "Node")
	}

	now := timeNow()
	node := &Node{
		id:        id,
		content:   content,
		root:      id,
		metadata:  Metadata{},
		createdAt: now,
		updatedAt: now,
		version:   1,
	}

	if parent != nil {
		if parent.id.Equals(id) {
			return nil, pkgerrors.Cycle(nodeService, id.String(), parent.id.String())
		}
		node.parent = parent.id
		node.root = parent.root
	}

	node.addEvent(events.NewNodeCreated(node.id, node.parent, node.root, now))
	return node, nil
}

// Snapshot is the full field set of a node, used by codecs to move nodes
// across process boundaries
type Snapshot struct {
	ID              valueobjects.NodeID
	Content         valueobjects.NodeContent
	ParentID        valueobjects.NodeID
	RootID          valueobjects.NodeID
	Metadata        map[string]interface{}
	PreviousSibling valueobjects.NodeID
	NextSibling     valueobjects.NodeID
	Relationships   []valueobjects.RelationshipRef
	Embeddings      EmbeddingSet
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Version         int
}

// ReconstructNode rebuilds a node from stored data, checking every invariant
// the node can check on its own
func ReconstructNode(s Snapshot) (*Node, error) {
	if s.ID.IsZero() {
		return nil, pkgerrors.RequiredField(nodeService, "id", "Node")
	}
	if s.Content.IsEmpty() {
		return nil, pkgerrors.RequiredField(nodeService, "content", "Node")
	}
	if s.RootID.IsZero() {
		return nil, pkgerrors.RequiredField(nodeService, "root_id", "Node")
	}
	if s.ParentID.IsZero() && !s.RootID.Equals(s.ID) {
		return nil, pkgerrors.RootMismatch(nodeService, s.ID.String(), s.RootID.String(), s.ID.String())
	}
	if !s.ParentID.IsZero() {
		if s.ParentID.Equals(s.ID) {
			return nil, pkgerrors.Cycle(nodeService, s.ID.String(), s.ParentID.String())
		}
		if s.RootID.Equals(s.ID) {
			return nil, pkgerrors.RootMismatch(nodeService, s.ID.String(), s.RootID.String(), "an ancestor")
		}
	}
	if s.UpdatedAt.Before(s.CreatedAt) {
		return nil, pkgerrors.BusinessRule(nodeService, "updated_at cannot precede created_at")
	}
	for i, ref := range s.Relationships {
		if err := ref.Validate(); err != nil {
			return nil, err
		}
		if ref.TargetID.Equals(s.ID) {
			return nil, pkgerrors.BusinessRule(nodeService, "a node cannot relate to itself")
		}
		for _, earlier := range s.Relationships[:i] {
			if earlier.Matches(ref.TargetID, ref.Type) {
				return nil, pkgerrors.BusinessRule(nodeService, "duplicate relationship").
					WithDetail("target_id", ref.TargetID.String()).
					WithDetail("relationship_type", ref.Type)
			}
		}
	}
	version := s.Version
	if version < 1 {
		version = 1
	}

	return &Node{
		id:              s.ID,
		content:         s.Content,
		parent:          s.ParentID,
		root:            s.RootID,
		metadata:        Metadata(s.Metadata).clone(),
		previousSibling: s.PreviousSibling,
		nextSibling:     s.NextSibling,
		relationships:   cloneRelationships(s.Relationships),
		embeddings:      s.Embeddings,
		createdAt:       s.CreatedAt,
		updatedAt:       s.UpdatedAt,
		version:         version,
	}, nil
}

// Snapshot returns the node's fields
func (n *Node) Snapshot() Snapshot {
	return Snapshot{
		ID:              n.id,
		Content:         n.content,
		ParentID:        n.parent,
		RootID:          n.root,
		Metadata:        n.metadata.clone(),
		PreviousSibling: n.previousSibling,
		NextSibling:     n.nextSibling,
		Relationships:   cloneRelationships(n.relationships),
		Embeddings:      n.embeddings,
		CreatedAt:       n.createdAt,
		UpdatedAt:       n.updatedAt,
		Version:         n.version,
	}
}

// ID returns the node's unique identifier
func (n *Node) ID() valueobjects.NodeID {
	return n.id
}

// Content returns the node's content
func (n *Node) Content() valueobjects.NodeContent {
	return n.content
}

// Parent returns the parent identifier, if any
func (n *Node) Parent() (valueobjects.NodeID, bool) {
	return n.parent, !n.parent.IsZero()
}

// ParentID returns the parent identifier, zero for a root
func (n *Node) ParentID() valueobjects.NodeID {
	return n.parent
}

// Root returns the cached top-most ancestor. A root node is its own root.
func (n *Node) Root() valueobjects.NodeID {
	return n.root
}

// IsRoot checks if this node has no parent
func (n *Node) IsRoot() bool {
	return n.parent.IsZero()
}

// Metadata returns a copy of the metadata
func (n *Node) Metadata() Metadata {
	return n.metadata.clone()
}

// PreviousSibling returns the previous node in sequence, zero when first
func (n *Node) PreviousSibling() valueobjects.NodeID {
	return n.previousSibling
}

// NextSibling returns the next node in sequence, zero when last
func (n *Node) NextSibling() valueobjects.NodeID {
	return n.nextSibling
}

// Embeddings returns the derived embedding set
func (n *Node) Embeddings() EmbeddingSet {
	return n.embeddings
}

// CreatedAt returns when the node was created
func (n *Node) CreatedAt() time.Time {
	return n.createdAt
}

// UpdatedAt returns when the node content or relations last changed
func (n *Node) UpdatedAt() time.Time {
	return n.updatedAt
}

// Version returns the node's version for optimistic locking
func (n *Node) Version() int {
	return n.version
}

// UpdateContent returns a copy with the payload replaced. The hierarchy is
// untouched. Identical content is a no-op.
func (n *Node) UpdateContent(content valueobjects.NodeContent) (*Node, error) {
	if content.IsEmpty() {
		return nil, pkgerrors.RequiredField(nodeService, "content", "Node")
	}
	if content.Equals(n.content) {
		return n, nil
	}

	next := n.touch()
	next.content = content
	next.addEvent(events.NewNodeContentUpdated(n.id, n.content, content, next.updatedAt, next.version))
	return next, nil
}

// WithMetadata returns a copy with one attribute set
func (n *Node) WithMetadata(key string, value interface{}) (*Node, error) {
	if key == "" {
		return nil, pkgerrors.RequiredField(nodeService, "metadata key", "Node")
	}

	next := n.touch()
	next.metadata[key] = value
	next.addEvent(events.NewNodeMetadataSet(n.id, key, next.updatedAt, next.version))
	return next, nil
}

// WithSiblings returns a copy with both sibling pointers set
func (n *Node) WithSiblings(previous, next valueobjects.NodeID) (*Node, error) {
	if previous.Equals(n.id) || next.Equals(n.id) {
		return nil, pkgerrors.BusinessRule(nodeService, "a node cannot be its own sibling")
	}
	if !previous.IsZero() && previous.Equals(next) {
		return nil, pkgerrors.BusinessRule(nodeService, "previous and next sibling must differ")
	}
	if previous.Equals(n.previousSibling) && next.Equals(n.nextSibling) {
		return n, nil
	}

	out := n.touch()
	out.previousSibling = previous
	out.nextSibling = next
	return out, nil
}

// Relationships returns the node's outgoing relationships in insertion order
func (n *Node) Relationships() []valueobjects.RelationshipRef {
	return cloneRelationships(n.relationships)
}

// RelatedTo returns the targets of the node's relationships of the given
// type, or of every type when relationshipType is empty
func (n *Node) RelatedTo(relationshipType string) []valueobjects.NodeID {
	var out []valueobjects.NodeID
	for _, ref := range n.relationships {
		if relationshipType == "" || ref.Type == relationshipType {
			out = append(out, ref.TargetID)
		}
	}
	return out
}

// WithRelationship returns a copy holding ref. When a reference to the same
// target and type is already present the node is returned unchanged.
func (n *Node) WithRelationship(ref valueobjects.RelationshipRef) (*Node, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	if ref.TargetID.Equals(n.id) {
		return nil, pkgerrors.BusinessRule(nodeService, "a node cannot relate to itself")
	}
	for _, existing := range n.relationships {
		if existing.Matches(ref.TargetID, ref.Type) {
			return n, nil
		}
	}

	next := n.touch()
	next.relationships = append(next.relationships, ref.Clone())
	next.addEvent(events.NewNodeRelated(n.id, ref, next.updatedAt, next.version))
	return next, nil
}

// WithoutRelationship returns a copy without the reference to target of the
// given type. An absent reference returns the node unchanged.
func (n *Node) WithoutRelationship(target valueobjects.NodeID, relationshipType string) *Node {
	for i, ref := range n.relationships {
		if !ref.Matches(target, relationshipType) {
			continue
		}
		next := n.touch()
		kept := make([]valueobjects.RelationshipRef, 0, len(n.relationships)-1)
		kept = append(kept, next.relationships[:i]...)
		next.relationships = append(kept, next.relationships[i+1:]...)
		next.addEvent(events.NewNodeUnrelated(n.id, ref, next.updatedAt, next.version))
		return next
	}
	return n
}

func cloneRelationships(refs []valueobjects.RelationshipRef) []valueobjects.RelationshipRef {
	if len(refs) == 0 {
		return nil
	}
	out := make([]valueobjects.RelationshipRef, len(refs))
	for i, ref := range refs {
		out[i] = ref.Clone()
	}
	return out
}

// WithEmbeddings returns a copy carrying a new embedding set. Embeddings are
// a derived cache, so updated_at does not move.
func (n *Node) WithEmbeddings(set EmbeddingSet) *Node {
	next := n.clone()
	next.embeddings = set
	return next
}

// Reparent moves node under newParent, or makes it a root when newParent is
// nil. The root cache is re-derived from newParent in one hop. The move fails
// with a CYCLE error when newParent is node itself or one of its
// descendants; that check walks upward from newParent through resolver.
func Reparent(node, newParent *Node, resolver Resolver) (*Node, error) {
	if node == nil {
		return nil, pkgerrors.RequiredField(nodeService, "node", "Reparent")
	}

	if newParent == nil {
		if node.IsRoot() {
			return node, nil
		}
		return node.moveTo(valueobjects.NodeID{}, node.id), nil
	}

	if newParent.id.Equals(node.id) {
		return nil, pkgerrors.Cycle(nodeService, node.id.String(), newParent.id.String())
	}
	if newParent.id.Equals(node.parent) && newParent.root.Equals(node.root) {
		return node, nil
	}
	if err := checkNotDescendant(node, newParent, resolver); err != nil {
		return nil, err
	}
	return node.moveTo(newParent.id, newParent.root), nil
}

// checkNotDescendant walks from candidate towards its root looking for node.
// A candidate in another tree (different cached root) cannot be a
// descendant, so no walk is needed.
func checkNotDescendant(node, candidate *Node, resolver Resolver) error {
	if !candidate.root.Equals(node.root) {
		return nil
	}

	seen := map[valueobjects.NodeID]bool{}
	current := candidate
	for {
		if current.id.Equals(node.id) {
			return pkgerrors.Cycle(nodeService, node.id.String(), candidate.id.String())
		}
		if current.IsRoot() {
			return nil
		}
		if seen[current.id] {
			return pkgerrors.RootMismatch(nodeService, current.id.String(), current.root.String(), "a cycle")
		}
		seen[current.id] = true

		if resolver == nil {
			return pkgerrors.AncestryUnresolved(nodeService, candidate.id.String(), current.parent.String())
		}
		parent, ok := resolver.Node(current.parent)
		if !ok || parent == nil {
			return pkgerrors.AncestryUnresolved(nodeService, candidate.id.String(), current.parent.String())
		}
		current = parent
	}
}

func (n *Node) moveTo(parent, root valueobjects.NodeID) *Node {
	next := n.touch()
	next.parent = parent
	next.root = root
	// sibling order only has meaning under the old parent
	next.previousSibling = valueobjects.NodeID{}
	next.nextSibling = valueobjects.NodeID{}
	next.addEvent(events.NewNodeReparented(n.id, n.parent, parent, n.root, root, next.updatedAt, next.version))
	return next
}

// Rebase re-derives the root cache from the node's current parent, after
// that parent's own root changed. The relation itself is unchanged, so
// updated_at does not move.
func (n *Node) Rebase(parent *Node) (*Node, error) {
	if parent == nil || !parent.id.Equals(n.parent) {
		return nil, pkgerrors.BusinessRule(nodeService, "rebase requires the node's current parent")
	}
	if parent.root.Equals(n.root) {
		return n, nil
	}

	next := n.clone()
	next.root = parent.root
	next.version++
	next.addEvent(events.NewNodeRerooted(n.id, n.root, parent.root, timeNow(), next.version))
	return next, nil
}

// GetUncommittedEvents returns all uncommitted domain events
func (n *Node) GetUncommittedEvents() []events.DomainEvent {
	out := make([]events.DomainEvent, len(n.events))
	copy(out, n.events)
	return out
}

// MarkEventsAsCommitted returns a copy without uncommitted events
func (n *Node) MarkEventsAsCommitted() *Node {
	next := n.clone()
	next.events = nil
	return next
}

// touch clones the node and advances updated_at and version
func (n *Node) touch() *Node {
	next := n.clone()
	next.updatedAt = utils.Advance(n.updatedAt, timeNow())
	next.version++
	return next
}

func (n *Node) clone() *Node {
	c := *n
	c.metadata = n.metadata.clone()
	c.relationships = cloneRelationships(n.relationships)
	if n.events != nil {
		c.events = make([]events.DomainEvent, len(n.events))
		copy(c.events, n.events)
	}
	return &c
}

// addEvent adds a domain event to the uncommitted list
func (n *Node) addEvent(event events.DomainEvent) {
	n.events = append(n.events, event)
}
