package schema

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"nodespace-core/domain/compatibility"
	"nodespace-core/domain/config"
	"nodespace-core/domain/core/entities"
	"nodespace-core/domain/core/validators"
	"nodespace-core/domain/core/valueobjects"
	pkgerrors "nodespace-core/pkg/errors"
)

func envelope(t *testing.T, version string, kind EntityKind, data string) []byte {
	t.Helper()
	raw, err := json.Marshal(Envelope{SchemaVersion: version, Kind: kind, Data: json.RawMessage(data)})
	require.NoError(t, err)
	return raw
}

func TestNodeRoundTrip(t *testing.T) {
	codec := NewCodec(DefaultRegistry(nil), validators.NewNodeValidator(nil))
	root, err := entities.NewNode(valueobjects.TextContent("root"), nil)
	require.NoError(t, err)
	child, err := entities.NewNode(valueobjects.TextContent("child"), root)
	require.NoError(t, err)

	data, err := codec.EncodeNode(child)
	require.NoError(t, err)

	env, err := UnmarshalWithSchema(data)
	require.NoError(t, err)
	assert.Equal(t, "2.1.0", env.SchemaVersion)
	assert.Equal(t, KindNode, env.Kind)

	decoded, err := codec.DecodeNode(data)
	require.NoError(t, err)
	assert.Equal(t, child.ID(), decoded.ID())
	assert.Equal(t, root.ID(), decoded.Root())
	assert.Equal(t, root.ID(), decoded.ParentID())

	_, err = codec.EncodeNode(nil)
	assert.Error(t, err)
}

func TestLegacyNodesAreUpcast(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	codec := NewCodec(DefaultRegistry(zap.New(core)), nil)
	id := valueobjects.NewNodeID().String()

	t.Run("parentless node becomes its own root", func(t *testing.T) {
		data := envelope(t, "1.4.2", KindNode,
			`{"id":"`+id+`","content":"old note","created_at":"2023-05-01T10:00:00Z","updated_at":"2023-05-01T10:00:00Z","version":3}`)

		node, err := codec.DecodeNode(data)
		require.NoError(t, err)
		assert.Equal(t, id, node.Root().String())
		assert.True(t, node.IsRoot())
		assert.Equal(t, 3, node.Version())

		entries := logs.FilterMessage("payload upcast").All()
		require.Len(t, entries, 1)
		assert.Equal(t, "1.4.2", entries[0].ContextMap()["from"])
		assert.Equal(t, "2.0.0", entries[0].ContextMap()["to"])
	})

	t.Run("legacy child cannot derive its root", func(t *testing.T) {
		data := envelope(t, "1.0.0", KindNode,
			`{"id":"`+id+`","content":"x","parent_id":"`+valueobjects.NewNodeID().String()+`"}`)
		_, err := codec.DecodeNode(data)
		assert.ErrorIs(t, err, pkgerrors.ErrAncestryUnresolved)
	})
}

func TestVersionGates(t *testing.T) {
	codec := NewCodec(DefaultRegistry(nil), nil)
	id := valueobjects.NewNodeID().String()
	body := `{"id":"` + id + `","content":"x","root_id":"` + id + `","created_at":"2025-01-01T00:00:00Z","updated_at":"2025-01-01T00:00:00Z","future_field":{"a":1}}`

	t.Run("newer minor with unknown fields", func(t *testing.T) {
		node, err := codec.DecodeNode(envelope(t, "2.7.0", KindNode, body))
		require.NoError(t, err)
		assert.Equal(t, id, node.ID().String())
	})

	t.Run("newer major", func(t *testing.T) {
		_, err := codec.DecodeNode(envelope(t, "3.0.0", KindNode, body))
		assert.ErrorIs(t, err, pkgerrors.ErrVersionMismatch)
	})

	t.Run("older major without upcaster", func(t *testing.T) {
		_, err := codec.DecodeEmbeddingSet(envelope(t, "1.0.0", KindEmbeddingSet, `{}`))
		assert.ErrorIs(t, err, pkgerrors.ErrVersionMismatch)
	})

	t.Run("wrong kind", func(t *testing.T) {
		_, err := codec.DecodeNode(envelope(t, "2.1.0", KindReason, `{}`))
		assert.True(t, pkgerrors.IsKind(err, pkgerrors.KindValidation))
	})

	t.Run("bad version", func(t *testing.T) {
		_, err := codec.DecodeNode(envelope(t, "latest", KindNode, body))
		assert.Error(t, err)
	})
}

func TestDecodeValidatesNodes(t *testing.T) {
	cfg := config.DefaultDomainConfig()
	cfg.MaxContentBytes = 8
	codec := NewCodec(DefaultRegistry(nil), validators.NewNodeValidator(cfg))

	n, err := entities.NewNode(valueobjects.TextContent(strings.Repeat("x", 32)), nil)
	require.NoError(t, err)
	data, err := codec.EncodeNode(n)
	require.NoError(t, err)

	_, err = codec.DecodeNode(data)
	e, ok := pkgerrors.As(err)
	require.True(t, ok)
	assert.Equal(t, pkgerrors.CodeSchemaViolation, e.Code)
}

func TestOtherKinds(t *testing.T) {
	codec := NewCodec(DefaultRegistry(nil), nil)

	t.Run("embedding set", func(t *testing.T) {
		set, err := entities.EmbeddingSet{}.WithTier(entities.TierIndividual, entities.TierEmbedding{Vector: valueobjects.Vector{0.1, 0.2}})
		require.NoError(t, err)
		data, err := codec.EncodeEmbeddingSet(set)
		require.NoError(t, err)
		decoded, err := codec.DecodeEmbeddingSet(data)
		require.NoError(t, err)
		got, ok := decoded.Get(entities.TierIndividual)
		require.True(t, ok)
		assert.Equal(t, valueobjects.Vector{0.1, 0.2}, got.Vector)
	})

	t.Run("error chain", func(t *testing.T) {
		inner := pkgerrors.ModelError("nlp-engine", "minilm", "timeout").WithCause(errors.New("deadline exceeded"))
		chain := pkgerrors.Wrap(inner, "embedding-service", "computing tier")

		data, err := codec.EncodeError(chain)
		require.NoError(t, err)
		decoded, err := codec.DecodeError(data)
		require.NoError(t, err)

		assert.Len(t, pkgerrors.Chain(decoded), 2)
		assert.Equal(t, "nlp-engine", pkgerrors.Origin(decoded))
		assert.Equal(t, "embedding-service", pkgerrors.Attribution(decoded))
		assert.EqualError(t, pkgerrors.Root(decoded), "deadline exceeded")
	})

	t.Run("compatibility reason", func(t *testing.T) {
		val, err := compatibility.NewValidator(nil)
		require.NoError(t, err)
		reason := val.Explain(
			compatibility.Profile{Version: compatibility.MustParseVersion("2.1")},
			compatibility.Profile{Version: compatibility.MustParseVersion("2.0"), Required: compatibility.NewFeatureSet("b")},
		)
		data, err := codec.EncodeReason(reason)
		require.NoError(t, err)
		decoded, err := codec.DecodeReason(data)
		require.NoError(t, err)
		assert.Equal(t, reason.Code, decoded.Code)
		assert.Equal(t, []string{"b"}, decoded.MissingFeatures)
	})
}

func TestRegistryRules(t *testing.T) {
	r := NewRegistry(nil)
	up := func(d json.RawMessage) (json.RawMessage, error) { return d, nil }

	assert.Error(t, r.RegisterKind("", compatibility.MustParseVersion("1.0.0")))
	assert.Error(t, r.RegisterKind("thing", compatibility.Version{}))
	require.NoError(t, r.RegisterKind("thing", compatibility.MustParseVersion("2.0.0")))

	tests := []struct {
		name string
		u    Upcaster
	}{
		{"no function", Upcaster{Kind: "thing", From: compatibility.MustParseRange("1.x"), To: compatibility.MustParseVersion("2.0.0")}},
		{"no target", Upcaster{Kind: "thing", From: compatibility.MustParseRange("1.x"), Up: up}},
		{"target inside source", Upcaster{Kind: "thing", From: compatibility.MustParseRange(">=1.0.0"), To: compatibility.MustParseVersion("2.0.0"), Up: up}},
		{"unknown kind", Upcaster{Kind: "other", From: compatibility.MustParseRange("1.x"), To: compatibility.MustParseVersion("2.0.0"), Up: up}},
		{"target ahead of current", Upcaster{Kind: "thing", From: compatibility.MustParseRange("1.x"), To: compatibility.MustParseVersion("3.0.0"), Up: up}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, r.RegisterUpcaster(tt.u))
		})
	}

	_, err := r.Marshal("missing", struct{}{})
	assert.Error(t, err)
}

func TestUnmarshalWithSchemaRequiresFields(t *testing.T) {
	for _, raw := range []string{
		`{`,
		`{"kind":"node","data":{}}`,
		`{"schema_version":"2.0.0","data":{}}`,
		`{"schema_version":"2.0.0","kind":"node"}`,
	} {
		_, err := UnmarshalWithSchema([]byte(raw))
		assert.Error(t, err, raw)
	}
}
