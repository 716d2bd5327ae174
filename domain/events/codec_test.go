package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nodespace-core/domain/core/valueobjects"
	pkgerrors "nodespace-core/pkg/errors"
)

func TestDecodeEveryType(t *testing.T) {
	at := time.Date(2025, 5, 5, 5, 5, 5, 0, time.UTC)
	id, parent, root := valueobjects.NewNodeID(), valueobjects.NewNodeID(), valueobjects.NewNodeID()
	ref, err := valueobjects.NewRelationshipRef(parent, valueobjects.RelationshipMentions)
	require.NoError(t, err)

	all := []DomainEvent{
		NewNodeCreated(id, parent, root, at),
		NewNodeContentUpdated(id, valueobjects.TextContent("old"), valueobjects.TextContent("new"), at, 2),
		NewNodeReparented(id, parent, valueobjects.NodeID{}, root, id, at, 3),
		NewNodeRerooted(id, root, parent, at, 4),
		NewNodeMetadataSet(id, "color", at, 5),
		NewNodeRelated(id, ref, at, 6),
		NewNodeUnrelated(id, ref, at, 7),
	}
	require.Len(t, all, len(Types()))

	for i, event := range all {
		t.Run(event.GetEventType(), func(t *testing.T) {
			assert.Equal(t, Types()[i], event.GetEventType())
			data, err := json.Marshal(event)
			require.NoError(t, err)

			decoded, err := Decode(event.GetEventType(), data)
			require.NoError(t, err)
			assert.IsType(t, event, decoded)
			assert.Equal(t, event.GetAggregateID(), decoded.GetAggregateID())
			assert.Equal(t, event.GetVersion(), decoded.GetVersion())
			assert.True(t, event.GetTimestamp().Equal(decoded.GetTimestamp()))
			if related, ok := decoded.(NodeRelated); ok {
				assert.Equal(t, ref.ID, related.RelationshipID)
				assert.Equal(t, parent, related.TargetID)
			}
		})
	}
}

func TestDecodeRejects(t *testing.T) {
	created, err := json.Marshal(NewNodeCreated(valueobjects.NewNodeID(), valueobjects.NodeID{}, valueobjects.NewNodeID(), time.Now()))
	require.NoError(t, err)

	tests := []struct {
		name      string
		eventType string
		data      string
		code      string
	}{
		{"unknown type", "node.deleted", string(created), pkgerrors.CodeInvalidFormat},
		{"broken json", TypeNodeCreated, "{", pkgerrors.CodeSerializationFailed},
		{"type mismatch", TypeNodeRerooted, string(created), pkgerrors.CodeInvalidFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.eventType, []byte(tt.data))
			e, ok := pkgerrors.As(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, e.Code)
		})
	}
}
