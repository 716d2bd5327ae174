package schema

import (
	"bytes"
	"encoding/json"

	"go.uber.org/zap"

	"nodespace-core/domain/compatibility"
	"nodespace-core/domain/core/entities"
	"nodespace-core/domain/core/validators"
	pkgerrors "nodespace-core/pkg/errors"
)

// Current schema versions
var (
	NodeSchemaVersion         = compatibility.MustParseVersion("2.1.0")
	EmbeddingSetSchemaVersion = compatibility.MustParseVersion("2.0.0")
	ErrorSchemaVersion        = compatibility.MustParseVersion("2.0.0")
	ReasonSchemaVersion       = compatibility.MustParseVersion("2.0.0")
)

// DefaultRegistry registers every entity kind at its current version, plus
// the upcaster for legacy 1.x nodes
func DefaultRegistry(logger *zap.Logger) *Registry {
	r := NewRegistry(logger)
	// the built-in versions are valid, so these cannot fail
	_ = r.RegisterKind(KindNode, NodeSchemaVersion)
	_ = r.RegisterKind(KindEmbeddingSet, EmbeddingSetSchemaVersion)
	_ = r.RegisterKind(KindError, ErrorSchemaVersion)
	_ = r.RegisterKind(KindReason, ReasonSchemaVersion)
	_ = r.RegisterUpcaster(Upcaster{
		Kind:        KindNode,
		From:        compatibility.MustParseRange(">=1.0.0-0, <2.0.0-0"),
		To:          compatibility.MustParseVersion("2.0.0"),
		Description: "derive root_id for parentless legacy nodes",
		Up:          upcastLegacyNode,
	})
	return r
}

// upcastLegacyNode fills the root cache of 1.x nodes. A parentless node is
// its own root; a child's root cannot be derived from the payload alone.
func upcastLegacyNode(data json.RawMessage) (json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, pkgerrors.SerializationFailed(schemaService, "json", "legacy node", err)
	}
	if present(fields["root_id"]) {
		return data, nil
	}

	id := fields["id"]
	if !present(id) {
		return nil, pkgerrors.RequiredField(schemaService, "id", "legacy node")
	}
	if parent := fields["parent_id"]; present(parent) {
		var parentID string
		_ = json.Unmarshal(parent, &parentID)
		return nil, pkgerrors.AncestryUnresolved(schemaService, string(bytes.Trim(id, `"`)), parentID)
	}
	fields["root_id"] = id
	return json.Marshal(fields)
}

func present(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// Codec encodes domain entities into versioned envelopes
type Codec struct {
	registry  *Registry
	validator *validators.NodeValidator
}

// NewCodec creates a codec. Decoded nodes are checked by validator when it
// is not nil.
func NewCodec(registry *Registry, validator *validators.NodeValidator) *Codec {
	return &Codec{registry: registry, validator: validator}
}

// EncodeNode wraps a node in an envelope
func (c *Codec) EncodeNode(node *entities.Node) ([]byte, error) {
	if node == nil {
		return nil, pkgerrors.RequiredField(schemaService, "node", "EncodeNode")
	}
	return c.registry.Marshal(KindNode, node)
}

// DecodeNode opens a node envelope
func (c *Codec) DecodeNode(data []byte) (*entities.Node, error) {
	var node entities.Node
	if _, err := c.registry.Unmarshal(data, KindNode, &node); err != nil {
		return nil, err
	}
	if c.validator != nil {
		if err := c.validator.ValidateNode(&node); err != nil {
			return nil, err
		}
	}
	return &node, nil
}

// EncodeEmbeddingSet wraps an embedding set in an envelope
func (c *Codec) EncodeEmbeddingSet(set entities.EmbeddingSet) ([]byte, error) {
	return c.registry.Marshal(KindEmbeddingSet, set)
}

// DecodeEmbeddingSet opens an embedding set envelope
func (c *Codec) DecodeEmbeddingSet(data []byte) (entities.EmbeddingSet, error) {
	var set entities.EmbeddingSet
	if _, err := c.registry.Unmarshal(data, KindEmbeddingSet, &set); err != nil {
		return entities.EmbeddingSet{}, err
	}
	return set, nil
}

// EncodeError wraps an error chain in an envelope
func (c *Codec) EncodeError(err error) ([]byte, error) {
	raw, encErr := pkgerrors.Encode(err)
	if encErr != nil {
		return nil, encErr
	}
	return c.registry.Marshal(KindError, json.RawMessage(raw))
}

// DecodeError opens an error envelope
func (c *Codec) DecodeError(data []byte) (error, error) {
	var raw json.RawMessage
	if _, err := c.registry.Unmarshal(data, KindError, &raw); err != nil {
		return nil, err
	}
	return pkgerrors.Decode(raw)
}

// EncodeReason wraps a compatibility decision in an envelope
func (c *Codec) EncodeReason(r compatibility.Reason) ([]byte, error) {
	return c.registry.Marshal(KindReason, r)
}

// DecodeReason opens a compatibility decision envelope
func (c *Codec) DecodeReason(data []byte) (compatibility.Reason, error) {
	var r compatibility.Reason
	if _, err := c.registry.Unmarshal(data, KindReason, &r); err != nil {
		return compatibility.Reason{}, err
	}
	return r, nil
}
