package versioning

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nodespace-core/domain/config"
	"nodespace-core/domain/core/aggregates"
	"nodespace-core/domain/core/entities"
	"nodespace-core/domain/core/valueobjects"
	pkgerrors "nodespace-core/pkg/errors"
)

type tree struct {
	forest     *aggregates.Forest
	a, b, c, d valueobjects.NodeID
}

// A ─┬─ B ── D
//
//	└─ C
func plant(t *testing.T) tree {
	t.Helper()
	var tr tree
	f := aggregates.NewForest(config.DevelopmentDomainConfig())
	add := func(text string, parent valueobjects.NodeID) valueobjects.NodeID {
		next, n, err := f.Create(valueobjects.TextContent(text), parent)
		require.NoError(t, err)
		f = next
		return n.ID()
	}
	tr.a = add("A", valueobjects.NodeID{})
	tr.b = add("B", tr.a)
	tr.c = add("C", tr.a)
	tr.d = add("D", tr.b)
	tr.forest = f
	return tr
}

func freezeTime(t *testing.T, at time.Time) {
	t.Helper()
	saved := timeNow
	timeNow = func() time.Time { return at }
	t.Cleanup(func() { timeNow = saved })
}

func TestSnapshot(t *testing.T) {
	tr := plant(t)
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	freezeTime(t, at)

	v, err := Snapshot(tr.forest, tr.a)
	require.NoError(t, err)
	assert.Equal(t, tr.a, v.RootID)
	assert.Equal(t, 4, v.NodeCount)
	assert.Len(t, v.Versions, 4)
	assert.Len(t, v.Checksum, 64)
	assert.Equal(t, at, v.CreatedAt)

	again, err := Snapshot(tr.forest, tr.a)
	require.NoError(t, err)
	assert.Equal(t, v.Checksum, again.Checksum)

	set, err := entities.EmbeddingSet{}.WithTier(entities.TierIndividual, entities.TierEmbedding{Vector: valueobjects.Vector{1, 0}})
	require.NoError(t, err)
	embedded, _, err := tr.forest.AttachEmbeddings(tr.d, set)
	require.NoError(t, err)
	withEmbeddings, err := Snapshot(embedded, tr.a)
	require.NoError(t, err)
	assert.Equal(t, v.Checksum, withEmbeddings.Checksum, "embeddings do not change the checksum")
}

func TestSnapshotErrors(t *testing.T) {
	tr := plant(t)

	_, err := Snapshot(nil, tr.a)
	assert.True(t, pkgerrors.IsKind(err, pkgerrors.KindValidation))

	_, err = Snapshot(tr.forest, valueobjects.NewNodeID())
	assert.ErrorIs(t, err, pkgerrors.ErrUnknownNode)

	_, err = Snapshot(tr.forest, tr.b)
	e, ok := pkgerrors.As(err)
	require.True(t, ok)
	assert.Equal(t, pkgerrors.CodeBusinessRule, e.Code)
}

func TestCompareVersions(t *testing.T) {
	tr := plant(t)
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	freezeTime(t, start)
	before, err := Snapshot(tr.forest, tr.a)
	require.NoError(t, err)

	t.Run("unchanged", func(t *testing.T) {
		after, err := Snapshot(tr.forest, tr.a)
		require.NoError(t, err)
		diff, err := CompareVersions(before, after)
		require.NoError(t, err)
		assert.True(t, diff.Empty())
	})

	t.Run("added and updated", func(t *testing.T) {
		f, _, err := tr.forest.UpdateContent(tr.c, valueobjects.TextContent("C2"))
		require.NoError(t, err)
		f, added, err := f.Create(valueobjects.TextContent("E"), tr.c)
		require.NoError(t, err)

		timeNow = func() time.Time { return start.Add(time.Hour) }
		after, err := Snapshot(f, tr.a)
		require.NoError(t, err)

		diff, err := CompareVersions(before, after)
		require.NoError(t, err)
		assert.Equal(t, 1, diff.Count(ChangeTypeNodeAdded))
		assert.Equal(t, 1, diff.Count(ChangeTypeNodeUpdated))
		assert.Equal(t, time.Hour, diff.TimeDiff)
		assert.Contains(t, diff.Changes, Change{Type: ChangeTypeNodeAdded, NodeID: added.ID()})
		assert.Contains(t, diff.Changes, Change{Type: ChangeTypeNodeUpdated, NodeID: tr.c})
	})

	t.Run("subtree moved to its own tree", func(t *testing.T) {
		f, _, err := tr.forest.Reparent(tr.b, valueobjects.NodeID{})
		require.NoError(t, err)
		after, err := Snapshot(f, tr.a)
		require.NoError(t, err)

		diff, err := CompareVersions(before, after)
		require.NoError(t, err)
		assert.Equal(t, 2, after.NodeCount)
		assert.Equal(t, 2, diff.Count(ChangeTypeNodeRemoved))
		assert.Contains(t, diff.Changes, Change{Type: ChangeTypeNodeRemoved, NodeID: tr.d})
	})

	t.Run("different trees", func(t *testing.T) {
		f, _, err := tr.forest.Reparent(tr.b, valueobjects.NodeID{})
		require.NoError(t, err)
		other, err := Snapshot(f, tr.b)
		require.NoError(t, err)
		_, err = CompareVersions(before, other)
		assert.Error(t, err)
		_, err = CompareVersions(nil, other)
		assert.Error(t, err)
	})
}

func TestShouldCreateVersion(t *testing.T) {
	tr := plant(t)
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	freezeTime(t, start)
	last, err := Snapshot(tr.forest, tr.a)
	require.NoError(t, err)

	f, _, err := tr.forest.UpdateContent(tr.d, valueobjects.TextContent("D2"))
	require.NoError(t, err)

	timeNow = func() time.Time { return start.Add(time.Hour) }
	soon, err := Snapshot(f, tr.a)
	require.NoError(t, err)
	timeNow = func() time.Time { return start.Add(48 * time.Hour) }
	later, err := Snapshot(f, tr.a)
	require.NoError(t, err)
	idle, err := Snapshot(tr.forest, tr.a)
	require.NoError(t, err)

	policy := DefaultVersioningPolicy()
	assert.True(t, policy.ShouldCreateVersion(nil, last), "first version")
	assert.False(t, policy.ShouldCreateVersion(last, nil))
	assert.False(t, policy.ShouldCreateVersion(last, soon), "one change within a day")
	assert.True(t, policy.ShouldCreateVersion(last, later), "changes older than a day")
	assert.False(t, policy.ShouldCreateVersion(last, idle), "no changes")

	eager := VersioningPolicy{AutoVersion: true, VersionOnChanges: 1, VersionOnTimeElapsed: 24 * time.Hour}
	assert.True(t, eager.ShouldCreateVersion(last, soon))

	off := VersioningPolicy{}
	assert.False(t, off.ShouldCreateVersion(nil, last))
}
