package valueobjects

import (
	"strings"

	pkgerrors "nodespace-core/pkg/errors"
)

const relationshipService = "relationship"

// Well-known relationship types. Any other non-empty type is allowed.
const (
	RelationshipMentions = "mentions"
	RelationshipRelated  = "related"
)

// RelationshipRef is a typed, directed reference from one node to another,
// outside the parent/child hierarchy. A node holds at most one reference per
// (target, type) pair.
type RelationshipRef struct {
	ID         RelationshipID         `json:"id"`
	TargetID   NodeID                 `json:"target_id"`
	Type       string                 `json:"relationship_type"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// NewRelationshipRef creates a reference to target with a fresh identifier
func NewRelationshipRef(target NodeID, relationshipType string) (RelationshipRef, error) {
	ref := RelationshipRef{
		ID:       NewRelationshipID(),
		TargetID: target,
		Type:     strings.TrimSpace(relationshipType),
	}
	if err := ref.Validate(); err != nil {
		return RelationshipRef{}, err
	}
	return ref, nil
}

// Validate checks that the reference names a target and a type
func (r RelationshipRef) Validate() error {
	if r.ID.IsZero() {
		return pkgerrors.RequiredField(relationshipService, "id", "RelationshipRef")
	}
	if r.TargetID.IsZero() {
		return pkgerrors.RequiredField(relationshipService, "target_id", "RelationshipRef")
	}
	if r.Type == "" {
		return pkgerrors.RequiredField(relationshipService, "relationship_type", "RelationshipRef")
	}
	return nil
}

// WithProperties returns a copy carrying properties
func (r RelationshipRef) WithProperties(properties map[string]interface{}) RelationshipRef {
	r.Properties = copyProperties(properties)
	return r
}

// Matches reports whether r points at target with the given type
func (r RelationshipRef) Matches(target NodeID, relationshipType string) bool {
	return r.TargetID.Equals(target) && r.Type == relationshipType
}

// Clone returns a copy that shares no maps with r
func (r RelationshipRef) Clone() RelationshipRef {
	r.Properties = copyProperties(r.Properties)
	return r
}

func copyProperties(p map[string]interface{}) map[string]interface{} {
	if len(p) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
