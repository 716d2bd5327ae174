package aggregates

import (
	"sort"

	"nodespace-core/domain/config"
	"nodespace-core/domain/core/entities"
	"nodespace-core/domain/core/validators"
	"nodespace-core/domain/core/valueobjects"
	"nodespace-core/domain/events"
	pkgerrors "nodespace-core/pkg/errors"
)

const forestService = "forest"

// Forest is an arena of nodes keyed by identifier. Relations are stored as
// identifiers on the nodes; the forest only indexes them for traversal.
// Every mutation returns a new Forest and leaves the receiver untouched, so a
// published *Forest can be read concurrently.
type Forest struct {
	nodes     map[valueobjects.NodeID]*entities.Node
	children  map[valueobjects.NodeID][]valueobjects.NodeID
	validator *validators.NodeValidator
	events    []events.DomainEvent
}

// NewForest creates an empty forest enforcing the given limits
func NewForest(cfg *config.DomainConfig) *Forest {
	return &Forest{
		nodes:     make(map[valueobjects.NodeID]*entities.Node),
		children:  make(map[valueobjects.NodeID][]valueobjects.NodeID),
		validator: validators.NewNodeValidator(cfg),
	}
}

// LoadForest builds a forest from stored nodes given in any order. Every
// parent must be among the nodes and every cached root must match its chain.
func LoadForest(cfg *config.DomainConfig, nodes []*entities.Node) (*Forest, error) {
	pending := make(map[valueobjects.NodeID]*entities.Node, len(nodes))
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if _, dup := pending[n.ID()]; dup {
			return nil, pkgerrors.IdentifierCollision(forestService, "node", n.ID().String())
		}
		pending[n.ID()] = n
	}

	f := NewForest(cfg)
	// insert parents before children, one generation per pass
	for len(pending) > 0 {
		progressed := false
		for _, id := range sortedIDs(pending) {
			n := pending[id]
			if parentID, ok := n.Parent(); ok {
				if _, placed := f.nodes[parentID]; !placed {
					if _, waiting := pending[parentID]; waiting {
						continue
					}
					return nil, pkgerrors.AncestryUnresolved(forestService, id.String(), parentID.String())
				}
			}
			if err := f.insert(n); err != nil {
				return nil, err
			}
			delete(pending, id)
			progressed = true
		}
		if !progressed {
			// only cycles remain
			id := sortedIDs(pending)[0]
			parentID, _ := pending[id].Parent()
			return nil, pkgerrors.Cycle(forestService, id.String(), parentID.String())
		}
	}
	return f, nil
}

func sortedIDs(m map[valueobjects.NodeID]*entities.Node) []valueobjects.NodeID {
	ids := make([]valueobjects.NodeID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// Insert adds an existing node. Its parent must already be present and its
// cached root must agree with the parent's.
func (f *Forest) Insert(node *entities.Node) (*Forest, error) {
	next := f.clone()
	if err := next.insert(node); err != nil {
		return nil, err
	}
	return next, nil
}

func (f *Forest) insert(node *entities.Node) error {
	if node == nil {
		return pkgerrors.RequiredField(forestService, "node", "Insert")
	}
	if _, exists := f.nodes[node.ID()]; exists {
		return pkgerrors.IdentifierCollision(forestService, "node", node.ID().String())
	}
	if err := f.validator.ValidateNode(node); err != nil {
		return err
	}
	if parentID, ok := node.Parent(); ok {
		parent, found := f.nodes[parentID]
		if !found {
			return pkgerrors.AncestryUnresolved(forestService, node.ID().String(), parentID.String())
		}
		if !parent.Root().Equals(node.Root()) {
			return pkgerrors.RootMismatch(forestService, node.ID().String(), node.Root().String(), parent.Root().String())
		}
	}
	f.put(node)
	f.link(node.ParentID(), node.ID())
	return nil
}

// Create builds a new node under parentID, or a new root when parentID is zero
func (f *Forest) Create(content valueobjects.NodeContent, parentID valueobjects.NodeID) (*Forest, *entities.Node, error) {
	if err := f.validator.ValidateContent(content); err != nil {
		return nil, nil, err
	}

	var parent *entities.Node
	if !parentID.IsZero() {
		p, ok := f.nodes[parentID]
		if !ok {
			return nil, nil, pkgerrors.UnknownNode(forestService, parentID.String())
		}
		parent = p
	}

	node, err := entities.NewNode(content, parent)
	if err != nil {
		return nil, nil, err
	}

	next := f.clone()
	next.put(node)
	next.link(parentID, node.ID())
	return next, next.nodes[node.ID()], nil
}

// Reparent moves a node under newParentID, or detaches it when newParentID
// is zero, and re-roots its whole subtree in one pass
func (f *Forest) Reparent(id, newParentID valueobjects.NodeID) (*Forest, *entities.Node, error) {
	node, ok := f.nodes[id]
	if !ok {
		return nil, nil, pkgerrors.UnknownNode(forestService, id.String())
	}

	var parent *entities.Node
	if !newParentID.IsZero() {
		p, found := f.nodes[newParentID]
		if !found {
			return nil, nil, pkgerrors.UnknownNode(forestService, newParentID.String())
		}
		parent = p
	}

	moved, err := entities.Reparent(node, parent, f)
	if err != nil {
		return nil, nil, err
	}
	if moved == node {
		return f, node, nil
	}

	next := f.clone()
	next.unlink(node.ParentID(), id)
	next.link(moved.ParentID(), id)
	next.put(moved)
	if err := next.closeSiblingGap(node); err != nil {
		return nil, nil, err
	}

	if !moved.Root().Equals(node.Root()) {
		if err := next.rebaseSubtree(id); err != nil {
			return nil, nil, err
		}
	}
	return next, next.nodes[id], nil
}

// closeSiblingGap links the former neighbours of a moved node to each other.
// Neighbours that no longer point at the node are left alone.
func (f *Forest) closeSiblingGap(node *entities.Node) error {
	prevID, nextID := node.PreviousSibling(), node.NextSibling()
	if prev, ok := f.nodes[prevID]; ok && prev.NextSibling().Equals(node.ID()) {
		relinked, err := prev.WithSiblings(prev.PreviousSibling(), nextID)
		if err != nil {
			return err
		}
		f.put(relinked)
	}
	if after, ok := f.nodes[nextID]; ok && after.PreviousSibling().Equals(node.ID()) {
		relinked, err := after.WithSiblings(prevID, after.NextSibling())
		if err != nil {
			return err
		}
		f.put(relinked)
	}
	return nil
}

// rebaseSubtree pushes the root of id down to all of its descendants
func (f *Forest) rebaseSubtree(id valueobjects.NodeID) error {
	queue := []valueobjects.NodeID{id}
	for len(queue) > 0 {
		parent := f.nodes[queue[0]]
		queue = queue[1:]
		for _, childID := range f.children[parent.ID()] {
			child, err := f.nodes[childID].Rebase(parent)
			if err != nil {
				return err
			}
			f.put(child)
			queue = append(queue, childID)
		}
	}
	return nil
}

// UpdateContent replaces a node's payload
func (f *Forest) UpdateContent(id valueobjects.NodeID, content valueobjects.NodeContent) (*Forest, *entities.Node, error) {
	node, ok := f.nodes[id]
	if !ok {
		return nil, nil, pkgerrors.UnknownNode(forestService, id.String())
	}
	if err := f.validator.ValidateContent(content); err != nil {
		return nil, nil, err
	}

	updated, err := node.UpdateContent(content)
	if err != nil {
		return nil, nil, err
	}
	if updated == node {
		return f, node, nil
	}

	next := f.clone()
	next.put(updated)
	return next, next.nodes[id], nil
}

// AttachEmbeddings stores a recomputed embedding set on a node
func (f *Forest) AttachEmbeddings(id valueobjects.NodeID, set entities.EmbeddingSet) (*Forest, *entities.Node, error) {
	node, ok := f.nodes[id]
	if !ok {
		return nil, nil, pkgerrors.UnknownNode(forestService, id.String())
	}
	for _, tier := range entities.Tiers() {
		if e, present := set.Get(tier); present {
			if err := f.validator.ValidateVector(string(tier), e.Vector); err != nil {
				return nil, nil, err
			}
		}
	}

	next := f.clone()
	next.put(node.WithEmbeddings(set))
	return next, next.nodes[id], nil
}

// Relate adds a relationship from id to another node of the forest
func (f *Forest) Relate(id valueobjects.NodeID, ref valueobjects.RelationshipRef) (*Forest, *entities.Node, error) {
	node, ok := f.nodes[id]
	if !ok {
		return nil, nil, pkgerrors.UnknownNode(forestService, id.String())
	}
	if _, ok := f.nodes[ref.TargetID]; !ok {
		return nil, nil, pkgerrors.UnknownNode(forestService, ref.TargetID.String())
	}
	related, err := node.WithRelationship(ref)
	if err != nil {
		return nil, nil, err
	}
	if related == node {
		return f, node, nil
	}

	next := f.clone()
	next.put(related)
	return next, next.nodes[id], nil
}

// Unrelate removes the relationship of the given type from id to target
func (f *Forest) Unrelate(id, target valueobjects.NodeID, relationshipType string) (*Forest, *entities.Node, error) {
	node, ok := f.nodes[id]
	if !ok {
		return nil, nil, pkgerrors.UnknownNode(forestService, id.String())
	}
	unrelated := node.WithoutRelationship(target, relationshipType)
	if unrelated == node {
		return f, node, nil
	}

	next := f.clone()
	next.put(unrelated)
	return next, next.nodes[id], nil
}

// Replace swaps in a newer value of a node that is already present. The
// parent and root must not change; use Reparent for that.
func (f *Forest) Replace(node *entities.Node) (*Forest, error) {
	if node == nil {
		return nil, pkgerrors.RequiredField(forestService, "node", "Replace")
	}
	current, ok := f.nodes[node.ID()]
	if !ok {
		return nil, pkgerrors.UnknownNode(forestService, node.ID().String())
	}
	if !current.ParentID().Equals(node.ParentID()) || !current.Root().Equals(node.Root()) {
		return nil, pkgerrors.BusinessRule(forestService, "replace cannot change parent or root")
	}
	if err := f.validator.ValidateNode(node); err != nil {
		return nil, err
	}

	next := f.clone()
	next.put(node)
	return next, nil
}

// Node returns a node by identifier
func (f *Forest) Node(id valueobjects.NodeID) (*entities.Node, bool) {
	n, ok := f.nodes[id]
	return n, ok
}

// Len returns the number of nodes
func (f *Forest) Len() int {
	return len(f.nodes)
}

// Nodes returns every node ordered by creation
func (f *Forest) Nodes() []*entities.Node {
	out := make([]*entities.Node, 0, len(f.nodes))
	for _, n := range f.nodes {
		out = append(out, n)
	}
	sortByCreation(out)
	return out
}

// Roots returns all parentless nodes ordered by creation
func (f *Forest) Roots() []*entities.Node {
	return f.lookup(f.children[valueobjects.NodeID{}])
}

// Parent returns the parent of a node
func (f *Forest) Parent(id valueobjects.NodeID) (*entities.Node, bool) {
	n, ok := f.nodes[id]
	if !ok || n.IsRoot() {
		return nil, false
	}
	return f.Node(n.ParentID())
}

// Children returns the direct children of a node ordered by creation
func (f *Forest) Children(id valueobjects.NodeID) []*entities.Node {
	if id.IsZero() {
		return nil
	}
	return f.lookup(f.children[id])
}

// Siblings returns the other children of the node's parent. Roots have no
// siblings.
func (f *Forest) Siblings(id valueobjects.NodeID) []*entities.Node {
	n, ok := f.nodes[id]
	if !ok || n.IsRoot() {
		return nil
	}
	var out []*entities.Node
	for _, s := range f.Children(n.ParentID()) {
		if !s.ID().Equals(id) {
			out = append(out, s)
		}
	}
	return out
}

// Ancestors returns up to limit ancestors, nearest first. A limit of zero or
// less returns the whole chain.
func (f *Forest) Ancestors(id valueobjects.NodeID, limit int) []*entities.Node {
	n, ok := f.nodes[id]
	if !ok {
		return nil
	}
	var out []*entities.Node
	for !n.IsRoot() && (limit <= 0 || len(out) < limit) {
		parent, found := f.nodes[n.ParentID()]
		if !found {
			break
		}
		out = append(out, parent)
		n = parent
	}
	return out
}

// Descendants returns every node below id in breadth-first order
func (f *Forest) Descendants(id valueobjects.NodeID) []*entities.Node {
	var out []*entities.Node
	queue := []valueobjects.NodeID{id}
	for len(queue) > 0 {
		children := f.Children(queue[0])
		queue = queue[1:]
		for _, c := range children {
			out = append(out, c)
			queue = append(queue, c.ID())
		}
	}
	return out
}

// Related returns the targets of id's relationships in insertion order, each
// once. Targets missing from the forest are skipped.
func (f *Forest) Related(id valueobjects.NodeID) []*entities.Node {
	n, ok := f.nodes[id]
	if !ok {
		return nil
	}
	var out []*entities.Node
	seen := map[valueobjects.NodeID]bool{}
	for _, target := range n.RelatedTo("") {
		if seen[target] {
			continue
		}
		seen[target] = true
		if t, found := f.nodes[target]; found {
			out = append(out, t)
		}
	}
	return out
}

// Mentions returns the nodes holding a mentions relationship to id, ordered
// by creation
func (f *Forest) Mentions(id valueobjects.NodeID) []*entities.Node {
	var out []*entities.Node
	for _, n := range f.nodes {
		for _, target := range n.RelatedTo(valueobjects.RelationshipMentions) {
			if target.Equals(id) {
				out = append(out, n)
				break
			}
		}
	}
	sortByCreation(out)
	return out
}

// Depth returns the number of edges between a node and its root
func (f *Forest) Depth(id valueobjects.NodeID) (int, error) {
	if _, ok := f.nodes[id]; !ok {
		return 0, pkgerrors.UnknownNode(forestService, id.String())
	}
	return len(f.Ancestors(id, 0)), nil
}

// Tree returns the root node and all its descendants
func (f *Forest) Tree(rootID valueobjects.NodeID) []*entities.Node {
	root, ok := f.nodes[rootID]
	if !ok {
		return nil
	}
	return append([]*entities.Node{root}, f.Descendants(rootID)...)
}

// VerifyRoots walks every parent chain and checks it ends at the cached root
func (f *Forest) VerifyRoots() error {
	for _, n := range f.Nodes() {
		if err := f.validator.ValidateAncestry(n, f); err != nil {
			return pkgerrors.Wrap(err, forestService, "root cache verification failed")
		}
	}
	return nil
}

// GetUncommittedEvents returns the events raised by mutations of this forest
// and its predecessors
func (f *Forest) GetUncommittedEvents() []events.DomainEvent {
	out := make([]events.DomainEvent, len(f.events))
	copy(out, f.events)
	return out
}

// MarkEventsAsCommitted returns a forest without pending events
func (f *Forest) MarkEventsAsCommitted() *Forest {
	next := f.clone()
	next.events = nil
	return next
}

// put stores a node, moving its pending events onto the forest
func (f *Forest) put(node *entities.Node) {
	if pending := node.GetUncommittedEvents(); len(pending) > 0 {
		f.events = append(f.events, pending...)
		node = node.MarkEventsAsCommitted()
	}
	f.nodes[node.ID()] = node
}

func (f *Forest) link(parentID, childID valueobjects.NodeID) {
	ids := f.children[parentID]
	linked := make([]valueobjects.NodeID, len(ids), len(ids)+1)
	copy(linked, ids)
	f.children[parentID] = append(linked, childID)
}

func (f *Forest) unlink(parentID, childID valueobjects.NodeID) {
	ids := f.children[parentID]
	kept := make([]valueobjects.NodeID, 0, len(ids))
	for _, id := range ids {
		if !id.Equals(childID) {
			kept = append(kept, id)
		}
	}
	if len(kept) == 0 {
		delete(f.children, parentID)
		return
	}
	f.children[parentID] = kept
}

func (f *Forest) lookup(ids []valueobjects.NodeID) []*entities.Node {
	out := make([]*entities.Node, 0, len(ids))
	for _, id := range ids {
		if n, ok := f.nodes[id]; ok {
			out = append(out, n)
		}
	}
	sortByCreation(out)
	return out
}

// clone copies the indexes. Child slices are shared and replaced, never
// appended to in place.
func (f *Forest) clone() *Forest {
	next := &Forest{
		nodes:     make(map[valueobjects.NodeID]*entities.Node, len(f.nodes)),
		children:  make(map[valueobjects.NodeID][]valueobjects.NodeID, len(f.children)),
		validator: f.validator,
	}
	for id, n := range f.nodes {
		next.nodes[id] = n
	}
	for id, c := range f.children {
		next.children[id] = c
	}
	if len(f.events) > 0 {
		next.events = make([]events.DomainEvent, len(f.events))
		copy(next.events, f.events)
	}
	return next
}

func sortByCreation(nodes []*entities.Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		if !a.CreatedAt().Equal(b.CreatedAt()) {
			return a.CreatedAt().Before(b.CreatedAt())
		}
		return a.ID().String() < b.ID().String()
	})
}
