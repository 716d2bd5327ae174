package dynamodb

import (
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nodespace-core/domain/core/aggregates"
	"nodespace-core/domain/core/entities"
	"nodespace-core/domain/core/valueobjects"
	pkgerrors "nodespace-core/pkg/errors"
)

const testTable = "nodespace-test"

func newTree(t *testing.T) (*aggregates.Forest, *entities.Node, *entities.Node) {
	t.Helper()
	f := aggregates.NewForest(nil)
	f, root, err := f.Create(valueobjects.TextContent("Inbox"), valueobjects.NodeID{})
	require.NoError(t, err)
	f, child, err := f.Create(valueobjects.TextContent("Call the plumber"), root.ID())
	require.NoError(t, err)
	return f, root, child
}

// values flattens expression attribute values for assertions
func values(av map[string]types.AttributeValue) []string {
	var out []string
	for _, v := range av {
		switch m := v.(type) {
		case *types.AttributeValueMemberS:
			out = append(out, m.Value)
		case *types.AttributeValueMemberN:
			out = append(out, m.Value)
		}
	}
	return out
}

func TestToNodeItemKeys(t *testing.T) {
	_, root, child := newTree(t)

	item, err := ToNodeItem(child)
	require.NoError(t, err)
	assert.Equal(t, "NODE#"+child.ID().String(), item.PK)
	assert.Equal(t, "METADATA", item.SK)
	assert.Equal(t, "ROOT#"+root.ID().String(), item.GSI1PK)
	assert.Equal(t, "PARENT#"+root.ID().String(), item.GSI2PK)
	assert.True(t, strings.HasSuffix(item.GSI2SK, "#"+child.ID().String()))
	assert.Equal(t, `{"content":"Call the plumber","type":"text"}`, item.Content)
	assert.Equal(t, "text", item.NodeType)

	av, err := NodeToItem(root)
	require.NoError(t, err)
	assert.NotContains(t, av, "GSI2PK", "roots are not in the parent index")
	assert.NotContains(t, av, "ParentID")
	assert.Equal(t, &types.AttributeValueMemberS{Value: "ROOT#" + root.ID().String()}, av["GSI1PK"])

	_, err = ToNodeItem(nil)
	assert.Error(t, err)
}

func TestNodeItemRoundTrip(t *testing.T) {
	_, root, child := newTree(t)
	sibling := valueobjects.NewNodeID()

	n, err := child.WithMetadata("priority", "high")
	require.NoError(t, err)
	n, err = n.WithSiblings(valueobjects.NodeID{}, sibling)
	require.NoError(t, err)
	set, err := entities.EmbeddingSet{}.WithTier(entities.TierIndividual, entities.TierEmbedding{Vector: valueobjects.Vector{0.25, 0.5}})
	require.NoError(t, err)
	n = n.WithEmbeddings(set)

	av, err := NodeToItem(n)
	require.NoError(t, err)
	back, err := ItemToNode(av)
	require.NoError(t, err)

	assert.Equal(t, n.ID(), back.ID())
	assert.Equal(t, root.ID(), back.Root())
	assert.Equal(t, root.ID(), back.ParentID())
	assert.True(t, n.Content().Equals(back.Content()))
	assert.Equal(t, sibling, back.NextSibling())
	assert.True(t, back.PreviousSibling().IsZero())
	assert.Equal(t, n.Version(), back.Version())
	assert.True(t, n.CreatedAt().Equal(back.CreatedAt()))
	assert.True(t, n.UpdatedAt().Equal(back.UpdatedAt()))
	v, _ := back.Metadata().Get("priority")
	assert.Equal(t, "high", v)
	e, ok := back.Embeddings().Get(entities.TierIndividual)
	require.True(t, ok)
	assert.Equal(t, valueobjects.Vector{0.25, 0.5}, e.Vector)
}

func TestNodeItemRelationships(t *testing.T) {
	_, root, child := newTree(t)
	ref, err := valueobjects.NewRelationshipRef(root.ID(), valueobjects.RelationshipMentions)
	require.NoError(t, err)
	related, err := child.WithRelationship(ref.WithProperties(map[string]interface{}{"offset": "4"}))
	require.NoError(t, err)

	item, err := ToNodeItem(related)
	require.NoError(t, err)
	assert.Contains(t, item.Relationships, `"relationship_type":"mentions"`)

	plain, err := NodeToItem(child)
	require.NoError(t, err)
	assert.NotContains(t, plain, "Relationships")

	av, err := NodeToItem(related)
	require.NoError(t, err)
	back, err := ItemToNode(av)
	require.NoError(t, err)
	require.Len(t, back.Relationships(), 1)
	got := back.Relationships()[0]
	assert.Equal(t, ref.ID, got.ID)
	assert.Equal(t, root.ID(), got.TargetID)
	assert.Equal(t, "4", got.Properties["offset"])

	t.Run("relationship update", func(t *testing.T) {
		in, err := RelationshipUpdate(testTable, child, related)
		require.NoError(t, err)
		assert.Equal(t, NodeKey(child.ID()), in.Key)
		assert.Contains(t, aws.ToString(in.UpdateExpression), "SET")
		vals := values(in.ExpressionAttributeValues)
		assert.Contains(t, vals, item.Relationships)
		assert.Contains(t, vals, "1", "guarded on the version it was read at")
	})

	t.Run("removing the last relationship drops the attribute", func(t *testing.T) {
		cleared := related.WithoutRelationship(root.ID(), valueobjects.RelationshipMentions)
		in, err := RelationshipUpdate(testTable, related, cleared)
		require.NoError(t, err)
		assert.Contains(t, aws.ToString(in.UpdateExpression), "REMOVE")
	})

	t.Run("different nodes", func(t *testing.T) {
		_, err := RelationshipUpdate(testTable, child, root)
		assert.True(t, pkgerrors.IsKind(err, pkgerrors.KindValidation))
		_, err = RelationshipUpdate(testTable, nil, child)
		assert.Error(t, err)
	})
}

func TestDateNodeItem(t *testing.T) {
	day, err := entities.NewDateNode(time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC), "UTC", nil)
	require.NoError(t, err)

	av, err := NodeToItem(day)
	require.NoError(t, err)
	back, err := ItemToNode(av)
	require.NoError(t, err)

	assert.True(t, back.IsDateNode())
	md, ok := back.DateMetadata()
	require.True(t, ok)
	assert.Equal(t, "2025-03-14", md.Date)
	assert.True(t, md.CreatedByNavigation)
}

func TestItemToNodeRejects(t *testing.T) {
	_, _, child := newTree(t)

	tests := []struct {
		name   string
		mutate func(item *NodeItem)
	}{
		{"other entity", func(item *NodeItem) { item.EntityType = "EVENT" }},
		{"bad node id", func(item *NodeItem) { item.NodeID = "not-an-id" }},
		{"bad parent id", func(item *NodeItem) { item.ParentID = "x" }},
		{"bad timestamp", func(item *NodeItem) { item.CreatedAt = "yesterday" }},
		{"bad embeddings", func(item *NodeItem) { item.Embeddings = "{" }},
		{"bad relationships", func(item *NodeItem) { item.Relationships = "[{" }},
		{"relationship without type", func(item *NodeItem) {
			item.Relationships = `[{"id":"` + valueobjects.NewRelationshipID().String() + `","target_id":"` + item.RootID + `"}]`
		}},
		{"parentless foreign root", func(item *NodeItem) { item.ParentID = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item, err := ToNodeItem(child)
			require.NoError(t, err)
			tt.mutate(item)
			_, err = item.ToNode()
			assert.Error(t, err)
		})
	}
}

func TestPutNodeInput(t *testing.T) {
	_, root, _ := newTree(t)

	in, err := PutNodeInput(testTable, root)
	require.NoError(t, err)
	assert.Equal(t, testTable, aws.ToString(in.TableName))
	assert.Contains(t, aws.ToString(in.ConditionExpression), "attribute_not_exists")
	assert.Contains(t, in.Item, "PK")
}

func TestReparentUpdate(t *testing.T) {
	f, _, child := newTree(t)
	f, other, err := f.Create(valueobjects.TextContent("Someday"), valueobjects.NodeID{})
	require.NoError(t, err)

	t.Run("move under another root", func(t *testing.T) {
		_, moved, err := f.Reparent(child.ID(), other.ID())
		require.NoError(t, err)

		in, err := ReparentUpdate(testTable, child, moved)
		require.NoError(t, err)
		assert.Equal(t, NodeKey(child.ID()), in.Key)
		assert.Contains(t, aws.ToString(in.UpdateExpression), "SET")
		assert.Contains(t, aws.ToString(in.ConditionExpression), "=")
		vals := values(in.ExpressionAttributeValues)
		assert.Contains(t, vals, "ROOT#"+other.ID().String())
		assert.Contains(t, vals, "PARENT#"+other.ID().String())
		assert.Contains(t, vals, "1", "guarded on the version it was read at")
		assert.Contains(t, vals, "2")
	})

	t.Run("detach removes the parent index", func(t *testing.T) {
		_, detached, err := f.Reparent(child.ID(), valueobjects.NodeID{})
		require.NoError(t, err)

		in, err := ReparentUpdate(testTable, child, detached)
		require.NoError(t, err)
		assert.Contains(t, aws.ToString(in.UpdateExpression), "REMOVE")
		assert.Contains(t, values(in.ExpressionAttributeValues), "ROOT#"+child.ID().String())
	})

	t.Run("different nodes", func(t *testing.T) {
		_, err := ReparentUpdate(testTable, child, other)
		assert.True(t, pkgerrors.IsKind(err, pkgerrors.KindValidation))
		_, err = ReparentUpdate(testTable, nil, other)
		assert.Error(t, err)
	})
}

func TestReparentTransactionBatches(t *testing.T) {
	f := aggregates.NewForest(nil)
	f, top, err := f.Create(valueobjects.TextContent("top"), valueobjects.NodeID{})
	require.NoError(t, err)
	f, target, err := f.Create(valueobjects.TextContent("target"), valueobjects.NodeID{})
	require.NoError(t, err)

	// a chain of 150 nodes under top
	parent := top.ID()
	for i := 0; i < 150; i++ {
		var n *entities.Node
		f, n, err = f.Create(valueobjects.TextContent("n"), parent)
		require.NoError(t, err)
		parent = n.ID()
	}

	after, _, err := f.Reparent(top.ID(), target.ID())
	require.NoError(t, err)

	var changes []NodeChange
	for _, n := range append([]*entities.Node{top}, f.Descendants(top.ID())...) {
		moved, ok := after.Node(n.ID())
		require.True(t, ok)
		changes = append(changes, NodeChange{Before: n, After: moved})
	}
	require.Len(t, changes, 151)

	inputs, err := ReparentTransaction(testTable, changes)
	require.NoError(t, err)
	require.Len(t, inputs, 2)
	assert.Len(t, inputs[0].TransactItems, 100)
	assert.Len(t, inputs[1].TransactItems, 51)
	assert.Contains(t, values(inputs[1].TransactItems[50].Update.ExpressionAttributeValues), "ROOT#"+target.ID().String())

	_, err = ReparentTransaction(testTable, []NodeChange{{Before: top}})
	assert.Error(t, err)
}

func TestContentUpdateAndQueries(t *testing.T) {
	_, root, child := newTree(t)
	updated, err := child.UpdateContent(valueobjects.TextContent("Call the electrician"))
	require.NoError(t, err)

	in, err := ContentUpdate(testTable, child, updated)
	require.NoError(t, err)
	assert.Contains(t, values(in.ExpressionAttributeValues), `{"content":"Call the electrician","type":"text"}`)

	q, err := TreeQuery(testTable, root.ID())
	require.NoError(t, err)
	assert.Equal(t, RootIndex, aws.ToString(q.IndexName))
	assert.Equal(t, []string{"ROOT#" + root.ID().String()}, values(q.ExpressionAttributeValues))

	q, err = ChildrenQuery(testTable, root.ID())
	require.NoError(t, err)
	assert.Equal(t, ParentIndex, aws.ToString(q.IndexName))
	assert.Equal(t, []string{"PARENT#" + root.ID().String()}, values(q.ExpressionAttributeValues))
}
