package valueobjects

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	pkgerrors "nodespace-core/pkg/errors"
)

const identifierService = "identifier"

// canonicalLength is the length of the rendered form 8-4-4-4-12
const canonicalLength = 36

// Kind tags an identifier with the entity it names. Kinds are phantom
// types, so identifiers of different kinds are distinct Go types.
type Kind interface {
	kindName() string
}

// NodeKind tags node identifiers
type NodeKind struct{}

func (NodeKind) kindName() string { return "node" }

// EmbeddingKind tags embedding identifiers
type EmbeddingKind struct{}

func (EmbeddingKind) kindName() string { return "embedding" }

// RelationshipKind tags relationship identifiers
type RelationshipKind struct{}

func (RelationshipKind) kindName() string { return "relationship" }

// ID is an immutable, globally unique identifier for one entity of kind K.
// The zero value means "absent".
type ID[K Kind] struct {
	value uuid.UUID
}

// NodeID identifies a node
type NodeID = ID[NodeKind]

// EmbeddingID identifies one computed embedding tier
type EmbeddingID = ID[EmbeddingKind]

// RelationshipID identifies a relationship between nodes
type RelationshipID = ID[RelationshipKind]

// New generates a random identifier. No coordination between services is
// needed: collisions of 122 random bits are negligible.
func New[K Kind]() ID[K] {
	return ID[K]{value: uuid.New()}
}

// NewNodeID creates a new random NodeID
func NewNodeID() NodeID { return New[NodeKind]() }

// NewEmbeddingID creates a new random EmbeddingID
func NewEmbeddingID() EmbeddingID { return New[EmbeddingKind]() }

// NewRelationshipID creates a new random RelationshipID
func NewRelationshipID() RelationshipID { return New[RelationshipKind]() }

// Parse validates the canonical textual form strictly: 36 characters,
// lowercase hex, hyphens at fixed positions, RFC 4122 variant, version 4.
// Anything else is rejected rather than coerced.
func Parse[K Kind](s string) (ID[K], error) {
	var k K
	if s == "" {
		return ID[K]{}, pkgerrors.InvalidIdentifier(identifierService, k.kindName(), s, "identifier cannot be empty")
	}
	if len(s) != canonicalLength {
		return ID[K]{}, pkgerrors.InvalidIdentifier(identifierService, k.kindName(), s,
			fmt.Sprintf("expected %d characters, got %d", canonicalLength, len(s)))
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch i {
		case 8, 13, 18, 23:
			if c != '-' {
				return ID[K]{}, pkgerrors.InvalidIdentifier(identifierService, k.kindName(), s,
					fmt.Sprintf("expected '-' at position %d", i))
			}
		default:
			if !isLowerHex(c) {
				return ID[K]{}, pkgerrors.InvalidIdentifier(identifierService, k.kindName(), s,
					fmt.Sprintf("invalid character %q at position %d", c, i))
			}
		}
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return ID[K]{}, pkgerrors.InvalidIdentifier(identifierService, k.kindName(), s, "not a UUID").WithCause(err)
	}
	if u.Variant() != uuid.RFC4122 || u.Version() != 4 {
		return ID[K]{}, pkgerrors.InvalidIdentifier(identifierService, k.kindName(), s, "not a random (v4) identifier")
	}
	return ID[K]{value: u}, nil
}

// ParseNodeID parses a NodeID
func ParseNodeID(s string) (NodeID, error) { return Parse[NodeKind](s) }

// ParseEmbeddingID parses an EmbeddingID
func ParseEmbeddingID(s string) (EmbeddingID, error) { return Parse[EmbeddingKind](s) }

// ParseRelationshipID parses a RelationshipID
func ParseRelationshipID(s string) (RelationshipID, error) { return Parse[RelationshipKind](s) }

// MustParse is Parse for trusted literals; it panics on malformed input
func MustParse[K Kind](s string) ID[K] {
	id, err := Parse[K](s)
	if err != nil {
		panic(err)
	}
	return id
}

func isLowerHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')
}

// String renders the canonical form, or "" for the zero value
func (id ID[K]) String() string {
	if id.IsZero() {
		return ""
	}
	return id.value.String()
}

// Kind returns the entity kind name
func (id ID[K]) Kind() string {
	var k K
	return k.kindName()
}

// Equals checks if two identifiers are equal
func (id ID[K]) Equals(other ID[K]) bool {
	return id.value == other.value
}

// IsZero checks if the identifier is the zero value
func (id ID[K]) IsZero() bool {
	return id.value == uuid.Nil
}

// MarshalText implements encoding.TextMarshaler
func (id ID[K]) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (id *ID[K]) UnmarshalText(text []byte) error {
	parsed, err := Parse[K](string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// MarshalJSON implements json.Marshaler; the zero value encodes as null
func (id ID[K]) MarshalJSON() ([]byte, error) {
	if id.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(id.String())
}

// UnmarshalJSON implements json.Unmarshaler
func (id *ID[K]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*id = ID[K]{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var k K
		return pkgerrors.InvalidIdentifier(identifierService, k.kindName(), string(data), "identifier must be a JSON string").WithCause(err)
	}
	return id.UnmarshalText([]byte(s))
}

// MarshalBinary implements encoding.BinaryMarshaler (16 raw bytes)
func (id ID[K]) MarshalBinary() ([]byte, error) {
	return id.value.MarshalBinary()
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler. Sixteen zero bytes
// decode to the zero (absent) identifier.
func (id *ID[K]) UnmarshalBinary(data []byte) error {
	var k K
	if len(data) != 16 {
		return pkgerrors.InvalidIdentifier(identifierService, k.kindName(), fmt.Sprintf("%x", data),
			fmt.Sprintf("expected 16 bytes, got %d", len(data)))
	}
	var u uuid.UUID
	copy(u[:], data)
	if u != uuid.Nil && (u.Variant() != uuid.RFC4122 || u.Version() != 4) {
		return pkgerrors.InvalidIdentifier(identifierService, k.kindName(), u.String(), "not a random (v4) identifier")
	}
	id.value = u
	return nil
}
