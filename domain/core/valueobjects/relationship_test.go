package valueobjects

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "nodespace-core/pkg/errors"
)

func TestNewRelationshipRef(t *testing.T) {
	target := NewNodeID()

	ref, err := NewRelationshipRef(target, " authored_by ")
	require.NoError(t, err)
	assert.False(t, ref.ID.IsZero())
	assert.Equal(t, "authored_by", ref.Type)
	assert.True(t, ref.Matches(target, "authored_by"))
	assert.False(t, ref.Matches(target, RelationshipMentions))
	assert.Nil(t, ref.Properties)

	tests := []struct {
		name   string
		target NodeID
		typ    string
		field  string
	}{
		{"no target", NodeID{}, RelationshipRelated, "target_id"},
		{"no type", target, "  ", "relationship_type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRelationshipRef(tt.target, tt.typ)
			e, ok := pkgerrors.As(err)
			require.True(t, ok)
			assert.Equal(t, pkgerrors.CodeRequiredField, e.Code)
			assert.Equal(t, tt.field, e.Details["field"])
		})
	}
}

func TestRelationshipRefProperties(t *testing.T) {
	ref, err := NewRelationshipRef(NewNodeID(), "member_of")
	require.NoError(t, err)

	props := map[string]interface{}{"role": "admin"}
	withProps := ref.WithProperties(props)
	props["role"] = "guest"
	assert.Equal(t, "admin", withProps.Properties["role"])
	assert.Nil(t, ref.Properties)

	clone := withProps.Clone()
	clone.Properties["role"] = "owner"
	assert.Equal(t, "admin", withProps.Properties["role"])

	data, err := json.Marshal(withProps)
	require.NoError(t, err)
	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "member_of", raw["relationship_type"])
	assert.Equal(t, withProps.TargetID.String(), raw["target_id"])

	var back RelationshipRef
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, withProps, back)
}
