package entities

import (
	"encoding/json"
	"time"

	"nodespace-core/domain/core/valueobjects"
	pkgerrors "nodespace-core/pkg/errors"
)

// nodeJSON is the wire form of a node
type nodeJSON struct {
	ID              valueobjects.NodeID            `json:"id"`
	Content         valueobjects.NodeContent       `json:"content"`
	ParentID        valueobjects.NodeID            `json:"parent_id"`
	RootID          valueobjects.NodeID            `json:"root_id"`
	Metadata        map[string]interface{}         `json:"metadata,omitempty"`
	PreviousSibling valueobjects.NodeID            `json:"previous_sibling"`
	NextSibling     valueobjects.NodeID            `json:"next_sibling"`
	Relationships   []valueobjects.RelationshipRef `json:"relationships,omitempty"`
	Embeddings      *EmbeddingSet                  `json:"embeddings,omitempty"`
	CreatedAt       time.Time                      `json:"created_at"`
	UpdatedAt       time.Time                      `json:"updated_at"`
	Version         int                            `json:"version"`
}

// MarshalJSON implements json.Marshaler
func (n *Node) MarshalJSON() ([]byte, error) {
	dto := nodeJSON{
		ID:              n.id,
		Content:         n.content,
		ParentID:        n.parent,
		RootID:          n.root,
		PreviousSibling: n.previousSibling,
		NextSibling:     n.nextSibling,
		Relationships:   n.relationships,
		CreatedAt:       n.createdAt,
		UpdatedAt:       n.updatedAt,
		Version:         n.version,
	}
	if len(n.metadata) > 0 {
		dto.Metadata = n.metadata
	}
	if !n.embeddings.IsEmpty() {
		set := n.embeddings
		dto.Embeddings = &set
	}
	return json.Marshal(dto)
}

// UnmarshalJSON implements json.Unmarshaler. The decoded node must satisfy
// the root rule: a parentless node is its own root.
func (n *Node) UnmarshalJSON(data []byte) error {
	var dto nodeJSON
	if err := json.Unmarshal(data, &dto); err != nil {
		return pkgerrors.SerializationFailed(nodeService, "json", "Node", err)
	}

	snapshot := Snapshot{
		ID:              dto.ID,
		Content:         dto.Content,
		ParentID:        dto.ParentID,
		RootID:          dto.RootID,
		Metadata:        dto.Metadata,
		PreviousSibling: dto.PreviousSibling,
		NextSibling:     dto.NextSibling,
		Relationships:   dto.Relationships,
		CreatedAt:       dto.CreatedAt,
		UpdatedAt:       dto.UpdatedAt,
		Version:         dto.Version,
	}
	if dto.Embeddings != nil {
		snapshot.Embeddings = *dto.Embeddings
	}

	decoded, err := ReconstructNode(snapshot)
	if err != nil {
		return err
	}
	*n = *decoded
	return nil
}
