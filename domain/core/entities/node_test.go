package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nodespace-core/domain/core/valueobjects"
	"nodespace-core/domain/events"
	pkgerrors "nodespace-core/pkg/errors"
)

// mapResolver resolves nodes from a map
type mapResolver map[valueobjects.NodeID]*Node

func (m mapResolver) Node(id valueobjects.NodeID) (*Node, bool) {
	n, ok := m[id]
	return n, ok
}

func (m mapResolver) add(nodes ...*Node) mapResolver {
	for _, n := range nodes {
		m[n.ID()] = n
	}
	return m
}

// frozenClock pins timeNow for the duration of a test
func frozenClock(t *testing.T, at time.Time) {
	t.Helper()
	prev := timeNow
	timeNow = func() time.Time { return at }
	t.Cleanup(func() { timeNow = prev })
}

func mustNode(t *testing.T, text string, parent *Node) *Node {
	t.Helper()
	n, err := NewNode(valueobjects.TextContent(text), parent)
	require.NoError(t, err)
	return n
}

func TestNewNode(t *testing.T) {
	t.Run("root caches itself", func(t *testing.T) {
		a := mustNode(t, "A", nil)

		assert.True(t, a.IsRoot())
		assert.True(t, a.Root().Equals(a.ID()))
		_, hasParent := a.Parent()
		assert.False(t, hasParent)
		assert.Equal(t, 1, a.Version())
		assert.Equal(t, a.CreatedAt(), a.UpdatedAt())
	})

	t.Run("child takes the parent's root", func(t *testing.T) {
		a := mustNode(t, "A", nil)
		b := mustNode(t, "B", a)
		c := mustNode(t, "C", b)

		assert.True(t, b.Root().Equals(a.ID()))
		assert.True(t, c.Root().Equals(a.ID()))
		assert.True(t, c.ParentID().Equals(b.ID()))
		assert.False(t, c.IsRoot())
	})

	t.Run("raises a created event", func(t *testing.T) {
		a := mustNode(t, "A", nil)
		evts := a.GetUncommittedEvents()
		require.Len(t, evts, 1)
		assert.Equal(t, events.TypeNodeCreated, evts[0].GetEventType())
		assert.Empty(t, a.MarkEventsAsCommitted().GetUncommittedEvents())
	})

	t.Run("rejects missing fields", func(t *testing.T) {
		_, err := NewNode(valueobjects.NodeContent{}, nil)
		assert.True(t, pkgerrors.IsKind(err, pkgerrors.KindValidation))

		_, err = NewNodeWithID(valueobjects.NodeID{}, valueobjects.TextContent("x"), nil)
		assert.True(t, pkgerrors.IsKind(err, pkgerrors.KindValidation))
	})

	t.Run("rejects itself as parent", func(t *testing.T) {
		a := mustNode(t, "A", nil)
		_, err := NewNodeWithID(a.ID(), valueobjects.TextContent("again"), a)
		assert.ErrorIs(t, err, pkgerrors.ErrCycle)
	})
}

func TestReparentScenario(t *testing.T) {
	a := mustNode(t, "A", nil)
	b := mustNode(t, "B", a)
	c := mustNode(t, "C", nil)

	// A is deliberately absent: moving B to another tree needs no walk
	moved, err := Reparent(b, c, mapResolver{})
	require.NoError(t, err)

	assert.True(t, moved.Root().Equals(c.ID()))
	assert.True(t, moved.ParentID().Equals(c.ID()))
	assert.True(t, b.Root().Equals(a.ID()), "the original value is unchanged")

	evts := moved.GetUncommittedEvents()
	last, ok := evts[len(evts)-1].(events.NodeReparented)
	require.True(t, ok)
	assert.True(t, last.OldRootID.Equals(a.ID()))
	assert.True(t, last.NewRootID.Equals(c.ID()))
}

func TestReparentCycles(t *testing.T) {
	a := mustNode(t, "A", nil)
	b := mustNode(t, "B", a)
	c := mustNode(t, "C", b)
	d := mustNode(t, "D", c)
	resolver := mapResolver{}.add(a, b, c, d)

	for _, descendant := range []*Node{b, c, d} {
		_, err := Reparent(a, descendant, resolver)
		assert.ErrorIs(t, err, pkgerrors.ErrCycle, "moving A under %s", descendant.Content().Text())
	}
	for _, descendant := range []*Node{c, d} {
		_, err := Reparent(b, descendant, resolver)
		assert.ErrorIs(t, err, pkgerrors.ErrCycle)
	}

	_, err := Reparent(b, b, resolver)
	assert.ErrorIs(t, err, pkgerrors.ErrCycle)
}

func TestReparentWithinTree(t *testing.T) {
	a := mustNode(t, "A", nil)
	b := mustNode(t, "B", a)
	c := mustNode(t, "C", a)
	d := mustNode(t, "D", c)

	t.Run("sibling subtree is not a descendant", func(t *testing.T) {
		moved, err := Reparent(b, d, mapResolver{}.add(a, b, c, d))
		require.NoError(t, err)
		assert.True(t, moved.ParentID().Equals(d.ID()))
		assert.True(t, moved.Root().Equals(a.ID()))
	})

	t.Run("unresolvable ancestor fails closed", func(t *testing.T) {
		_, err := Reparent(b, d, mapResolver{}.add(d))
		assert.ErrorIs(t, err, pkgerrors.ErrAncestryUnresolved)

		_, err = Reparent(b, d, nil)
		assert.ErrorIs(t, err, pkgerrors.ErrAncestryUnresolved)
	})

	t.Run("same parent is a no-op", func(t *testing.T) {
		same, err := Reparent(b, a, nil)
		require.NoError(t, err)
		assert.Same(t, b, same)
	})
}

func TestReparentDetach(t *testing.T) {
	a := mustNode(t, "A", nil)
	b, err := mustNode(t, "B", a).WithSiblings(valueobjects.NewNodeID(), valueobjects.NodeID{})
	require.NoError(t, err)

	detached, err := Reparent(b, nil, nil)
	require.NoError(t, err)
	assert.True(t, detached.IsRoot())
	assert.True(t, detached.Root().Equals(b.ID()))
	assert.True(t, detached.PreviousSibling().IsZero(), "sibling pointers are cleared on move")

	again, err := Reparent(detached, nil, nil)
	require.NoError(t, err)
	assert.Same(t, detached, again)
}

func TestUpdateContent(t *testing.T) {
	start := time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)
	frozenClock(t, start)

	a := mustNode(t, "A", nil)
	b := mustNode(t, "B", a)

	// the clock does not move: updated_at must still advance
	updated, err := b.UpdateContent(valueobjects.TextContent("B2"))
	require.NoError(t, err)

	assert.True(t, updated.UpdatedAt().After(b.UpdatedAt()))
	assert.Equal(t, b.CreatedAt(), updated.CreatedAt())
	assert.Equal(t, 2, updated.Version())
	assert.True(t, updated.ParentID().Equals(a.ID()))
	assert.True(t, updated.Root().Equals(a.ID()))
	assert.Equal(t, "B", b.Content().Text())

	same, err := updated.UpdateContent(valueobjects.TextContent("B2"))
	require.NoError(t, err)
	assert.Same(t, updated, same)

	_, err = b.UpdateContent(valueobjects.NodeContent{})
	assert.Error(t, err)
}

func TestWithMetadata(t *testing.T) {
	a := mustNode(t, "A", nil)
	withTag, err := a.WithMetadata("source", "import")
	require.NoError(t, err)

	v, ok := withTag.Metadata().Get("source")
	assert.True(t, ok)
	assert.Equal(t, "import", v)
	assert.Empty(t, a.Metadata(), "the original value is unchanged")

	md := withTag.Metadata()
	md["source"] = "tampered"
	v, _ = withTag.Metadata().Get("source")
	assert.Equal(t, "import", v)

	_, err = a.WithMetadata("", 1)
	assert.Error(t, err)
}

func TestWithSiblings(t *testing.T) {
	a := mustNode(t, "A", nil)
	prev, next := valueobjects.NewNodeID(), valueobjects.NewNodeID()

	linked, err := a.WithSiblings(prev, next)
	require.NoError(t, err)
	assert.True(t, linked.PreviousSibling().Equals(prev))
	assert.True(t, linked.NextSibling().Equals(next))

	_, err = a.WithSiblings(a.ID(), next)
	assert.Error(t, err)
	_, err = a.WithSiblings(prev, prev)
	assert.Error(t, err)

	same, err := linked.WithSiblings(prev, next)
	require.NoError(t, err)
	assert.Same(t, linked, same)
}

func TestRebase(t *testing.T) {
	a := mustNode(t, "A", nil)
	b := mustNode(t, "B", a)
	c := mustNode(t, "C", b)
	x := mustNode(t, "X", nil)

	movedB, err := Reparent(b, x, nil)
	require.NoError(t, err)

	rebased, err := c.Rebase(movedB)
	require.NoError(t, err)
	assert.True(t, rebased.Root().Equals(x.ID()))
	assert.Equal(t, c.UpdatedAt(), rebased.UpdatedAt())
	assert.Equal(t, c.Version()+1, rebased.Version())

	same, err := rebased.Rebase(movedB)
	require.NoError(t, err)
	assert.Same(t, rebased, same)

	_, err = c.Rebase(a)
	assert.Error(t, err)
}

func TestReconstructNode(t *testing.T) {
	id, parent := valueobjects.NewNodeID(), valueobjects.NewNodeID()
	now := time.Now()
	content := valueobjects.TextContent("x")

	tests := []struct {
		name string
		snap Snapshot
		want *pkgerrors.Error
	}{
		{"root", Snapshot{ID: id, Content: content, RootID: id, CreatedAt: now, UpdatedAt: now}, nil},
		{"child", Snapshot{ID: id, Content: content, ParentID: parent, RootID: parent, CreatedAt: now, UpdatedAt: now}, nil},
		{"missing root", Snapshot{ID: id, Content: content, CreatedAt: now, UpdatedAt: now}, pkgerrors.New(pkgerrors.KindValidation, pkgerrors.CodeRequiredField, "", "")},
		{"root pointing elsewhere", Snapshot{ID: id, Content: content, RootID: parent, CreatedAt: now, UpdatedAt: now}, pkgerrors.ErrRootMismatch},
		{"child caching itself", Snapshot{ID: id, Content: content, ParentID: parent, RootID: id, CreatedAt: now, UpdatedAt: now}, pkgerrors.ErrRootMismatch},
		{"own parent", Snapshot{ID: id, Content: content, ParentID: id, RootID: parent, CreatedAt: now, UpdatedAt: now}, pkgerrors.ErrCycle},
		{"time travel", Snapshot{ID: id, Content: content, RootID: id, CreatedAt: now, UpdatedAt: now.Add(-time.Second)}, pkgerrors.New(pkgerrors.KindValidation, pkgerrors.CodeBusinessRule, "", "")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := ReconstructNode(tt.snap)
			if tt.want == nil {
				require.NoError(t, err)
				assert.Equal(t, 1, n.Version())
				assert.Empty(t, n.GetUncommittedEvents())
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
