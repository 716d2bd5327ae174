package entities

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nodespace-core/domain/core/valueobjects"
	"nodespace-core/domain/events"
	pkgerrors "nodespace-core/pkg/errors"
)

func ref(t *testing.T, target *Node, relationshipType string) valueobjects.RelationshipRef {
	t.Helper()
	r, err := valueobjects.NewRelationshipRef(target.ID(), relationshipType)
	require.NoError(t, err)
	return r
}

func TestWithRelationship(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	frozenClock(t, start)
	note := mustNode(t, "note", nil)
	person := mustNode(t, "Ada", nil)
	topic := mustNode(t, "engines", nil)

	frozenClock(t, start.Add(time.Minute))
	related, err := note.WithRelationship(ref(t, person, valueobjects.RelationshipMentions))
	require.NoError(t, err)
	related, err = related.WithRelationship(ref(t, topic, valueobjects.RelationshipRelated))
	require.NoError(t, err)

	assert.Empty(t, note.Relationships(), "original is unchanged")
	assert.Len(t, related.Relationships(), 2)
	assert.Equal(t, []valueobjects.NodeID{person.ID()}, related.RelatedTo(valueobjects.RelationshipMentions))
	assert.Equal(t, []valueobjects.NodeID{person.ID(), topic.ID()}, related.RelatedTo(""))
	assert.Equal(t, note.Version()+2, related.Version())
	assert.True(t, related.UpdatedAt().After(note.UpdatedAt()))

	pending := related.GetUncommittedEvents()
	last, ok := pending[len(pending)-1].(events.NodeRelated)
	require.True(t, ok)
	assert.Equal(t, topic.ID(), last.TargetID)
	assert.Equal(t, valueobjects.RelationshipRelated, last.RelationshipType)

	// same target and type again is a no-op, another type is not
	same, err := related.WithRelationship(ref(t, person, valueobjects.RelationshipMentions))
	require.NoError(t, err)
	assert.Same(t, related, same)
	other, err := related.WithRelationship(ref(t, person, "authored_by"))
	require.NoError(t, err)
	assert.Len(t, other.Relationships(), 3)

	_, err = note.WithRelationship(ref(t, note, valueobjects.RelationshipRelated))
	e, ok := pkgerrors.As(err)
	require.True(t, ok)
	assert.Equal(t, pkgerrors.CodeBusinessRule, e.Code)

	_, err = note.WithRelationship(valueobjects.RelationshipRef{TargetID: person.ID(), Type: "x"})
	assert.True(t, pkgerrors.IsKind(err, pkgerrors.KindValidation))
}

func TestWithoutRelationship(t *testing.T) {
	note := mustNode(t, "note", nil)
	person := mustNode(t, "Ada", nil)
	topic := mustNode(t, "engines", nil)

	related, err := note.WithRelationship(ref(t, person, valueobjects.RelationshipMentions))
	require.NoError(t, err)
	related, err = related.WithRelationship(ref(t, topic, valueobjects.RelationshipRelated))
	require.NoError(t, err)
	related = related.MarkEventsAsCommitted()

	assert.Same(t, related, related.WithoutRelationship(person.ID(), valueobjects.RelationshipRelated))

	removed := related.WithoutRelationship(person.ID(), valueobjects.RelationshipMentions)
	assert.Equal(t, []valueobjects.NodeID{topic.ID()}, removed.RelatedTo(""))
	assert.Len(t, related.Relationships(), 2, "original is unchanged")
	assert.Equal(t, related.Version()+1, removed.Version())

	pending := removed.GetUncommittedEvents()
	require.Len(t, pending, 1)
	unrelated, ok := pending[0].(events.NodeUnrelated)
	require.True(t, ok)
	assert.Equal(t, person.ID(), unrelated.TargetID)
}

func TestRelationshipsAreCopies(t *testing.T) {
	note := mustNode(t, "note", nil)
	person := mustNode(t, "Ada", nil)
	withProps := ref(t, person, "member_of").WithProperties(map[string]interface{}{"role": "admin"})

	related, err := note.WithRelationship(withProps)
	require.NoError(t, err)

	refs := related.Relationships()
	refs[0].Properties["role"] = "guest"
	refs[0].Type = "changed"
	assert.Equal(t, "admin", related.Relationships()[0].Properties["role"])
	assert.Equal(t, "member_of", related.Relationships()[0].Type)
}

func TestRelationshipsSurviveJSON(t *testing.T) {
	note := mustNode(t, "note", nil)
	person := mustNode(t, "Ada", nil)
	related, err := note.WithRelationship(ref(t, person, valueobjects.RelationshipMentions).
		WithProperties(map[string]interface{}{"offset": "12"}))
	require.NoError(t, err)

	data, err := json.Marshal(related)
	require.NoError(t, err)
	var decoded Node
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, related.Relationships(), decoded.Relationships())

	plain, err := json.Marshal(note)
	require.NoError(t, err)
	assert.NotContains(t, string(plain), "relationships")
}

func TestReconstructNodeChecksRelationships(t *testing.T) {
	id := valueobjects.NewNodeID()
	target := valueobjects.NewNodeID()
	now := time.Now()
	snapshot := func(refs ...valueobjects.RelationshipRef) Snapshot {
		return Snapshot{
			ID:            id,
			Content:       valueobjects.TextContent("stored"),
			RootID:        id,
			Relationships: refs,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
	}
	mention := valueobjects.RelationshipRef{ID: valueobjects.NewRelationshipID(), TargetID: target, Type: valueobjects.RelationshipMentions}
	again := mention
	again.ID = valueobjects.NewRelationshipID()
	self := valueobjects.RelationshipRef{ID: valueobjects.NewRelationshipID(), TargetID: id, Type: valueobjects.RelationshipRelated}

	n, err := ReconstructNode(snapshot(mention))
	require.NoError(t, err)
	assert.Len(t, n.Relationships(), 1)

	tests := []struct {
		name string
		refs []valueobjects.RelationshipRef
		code string
	}{
		{"duplicate", []valueobjects.RelationshipRef{mention, again}, pkgerrors.CodeBusinessRule},
		{"self", []valueobjects.RelationshipRef{self}, pkgerrors.CodeBusinessRule},
		{"no id", []valueobjects.RelationshipRef{{TargetID: target, Type: "x"}}, pkgerrors.CodeRequiredField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReconstructNode(snapshot(tt.refs...))
			e, ok := pkgerrors.As(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, e.Code)
		})
	}
}
