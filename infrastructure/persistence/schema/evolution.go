package schema

import (
	"bytes"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"nodespace-core/domain/compatibility"
	pkgerrors "nodespace-core/pkg/errors"
	"nodespace-core/pkg/observability"
)

const schemaService = "schema"

// maxUpcasts bounds an upcaster chain
const maxUpcasts = 16

// EntityKind names the payload carried by an envelope
type EntityKind string

const (
	KindNode         EntityKind = "node"
	KindEmbeddingSet EntityKind = "embedding_set"
	KindError        EntityKind = "error"
	KindReason       EntityKind = "compatibility_reason"
)

// Envelope wraps a payload with the schema version it was written with.
// Readers ignore fields they do not know, so adding an optional field is a
// minor version; removing a required one is a major version.
type Envelope struct {
	SchemaVersion string          `json:"schema_version"`
	Kind          EntityKind      `json:"kind"`
	Data          json.RawMessage `json:"data"`
}

// UpcastFunc rewrites a payload written with an older schema
type UpcastFunc func(data json.RawMessage) (json.RawMessage, error)

// Upcaster migrates payloads of one kind from the versions in From to To
type Upcaster struct {
	Kind        EntityKind
	From        compatibility.Range
	To          compatibility.Version
	Description string
	Up          UpcastFunc
}

// Registry holds the current schema version of each kind and the upcasters
// for older payloads. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	current   map[EntityKind]compatibility.Version
	upcasters map[EntityKind][]Upcaster
	logger    *zap.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		current:   make(map[EntityKind]compatibility.Version),
		upcasters: make(map[EntityKind][]Upcaster),
		logger:    observability.OrNop(logger),
	}
}

// RegisterKind sets the version new payloads of kind are written with
func (r *Registry) RegisterKind(kind EntityKind, version compatibility.Version) error {
	if kind == "" {
		return pkgerrors.RequiredField(schemaService, "kind", "RegisterKind")
	}
	if version.IsZero() {
		return pkgerrors.RequiredField(schemaService, "version", "RegisterKind")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current[kind] = version
	return nil
}

// RegisterUpcaster adds a migration for older payloads
func (r *Registry) RegisterUpcaster(u Upcaster) error {
	if u.Up == nil {
		return pkgerrors.RequiredField(schemaService, "up", "Upcaster")
	}
	if u.To.IsZero() {
		return pkgerrors.RequiredField(schemaService, "to", "Upcaster")
	}
	if u.From.Contains(u.To) {
		return pkgerrors.BusinessRule(schemaService, "upcaster target must lie outside its source range")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.current[u.Kind]
	if !ok {
		return pkgerrors.BusinessRule(schemaService, "kind "+string(u.Kind)+" is not registered")
	}
	if u.To.Compare(current) > 0 {
		return pkgerrors.BusinessRule(schemaService, "upcaster target "+u.To.String()+" is newer than "+current.String())
	}
	r.upcasters[u.Kind] = append(r.upcasters[u.Kind], u)
	return nil
}

// CurrentVersion returns the version new payloads of kind are written with
func (r *Registry) CurrentVersion(kind EntityKind) (compatibility.Version, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.current[kind]
	return v, ok
}

// Marshal wraps v in an envelope tagged with the current version of kind
func (r *Registry) Marshal(kind EntityKind, v interface{}) ([]byte, error) {
	version, ok := r.CurrentVersion(kind)
	if !ok {
		return nil, pkgerrors.BusinessRule(schemaService, "kind "+string(kind)+" is not registered")
	}
	return MarshalWithSchema(kind, version, v)
}

// Unmarshal opens an envelope of kind into out and returns the version the
// payload was written with. Payloads from another major version are
// rejected unless upcasters bring them to the current major.
func (r *Registry) Unmarshal(data []byte, kind EntityKind, out interface{}) (compatibility.Version, error) {
	env, err := UnmarshalWithSchema(data)
	if err != nil {
		return compatibility.Version{}, err
	}
	if env.Kind != kind {
		return compatibility.Version{}, pkgerrors.InvalidFormat(schemaService, "kind", string(kind), string(env.Kind))
	}
	written, err := compatibility.ParseVersion(env.SchemaVersion)
	if err != nil {
		return compatibility.Version{}, pkgerrors.Wrap(err, schemaService, "bad schema_version")
	}

	payload, err := r.upcast(kind, written, env.Data)
	if err != nil {
		return written, err
	}

	if err := json.Unmarshal(payload, out); err != nil {
		if _, ok := pkgerrors.As(err); ok {
			return written, pkgerrors.Wrap(err, schemaService, "decoding "+string(kind))
		}
		return written, pkgerrors.SerializationFailed(schemaService, "json", string(kind), err)
	}
	return written, nil
}

func (r *Registry) upcast(kind EntityKind, written compatibility.Version, data json.RawMessage) (json.RawMessage, error) {
	r.mu.RLock()
	current, ok := r.current[kind]
	upcasters := r.upcasters[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, pkgerrors.BusinessRule(schemaService, "kind "+string(kind)+" is not registered")
	}

	version := written
	for step := 0; version.Major() != current.Major(); step++ {
		if version.Major() > current.Major() || step >= maxUpcasts {
			return nil, pkgerrors.VersionMismatch(schemaService, current.String(), written.String()).
				WithDetail("kind", string(kind))
		}
		u, found := findUpcaster(upcasters, version)
		if !found {
			return nil, pkgerrors.VersionMismatch(schemaService, current.String(), written.String()).
				WithDetail("kind", string(kind))
		}

		next, err := u.Up(data)
		if err != nil {
			return nil, pkgerrors.Wrap(err, schemaService, "upcasting "+string(kind)+" from "+version.String())
		}
		r.logger.Debug("payload upcast",
			zap.String("kind", string(kind)),
			zap.String("from", version.String()),
			zap.String("to", u.To.String()),
			zap.String("description", u.Description),
		)
		data, version = next, u.To
	}
	return data, nil
}

func findUpcaster(upcasters []Upcaster, v compatibility.Version) (Upcaster, bool) {
	for _, u := range upcasters {
		if u.From.Contains(v) {
			return u, true
		}
	}
	return Upcaster{}, false
}

// MarshalWithSchema marshals data into an envelope
func MarshalWithSchema(kind EntityKind, version compatibility.Version, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		if _, ok := pkgerrors.As(err); ok {
			return nil, pkgerrors.Wrap(err, schemaService, "encoding "+string(kind))
		}
		return nil, pkgerrors.SerializationFailed(schemaService, "json", string(kind), err)
	}
	return json.Marshal(Envelope{
		SchemaVersion: version.String(),
		Kind:          kind,
		Data:          raw,
	})
}

// UnmarshalWithSchema reads an envelope without decoding its payload
func UnmarshalWithSchema(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, pkgerrors.SerializationFailed(schemaService, "json", "Envelope", err)
	}
	if env.SchemaVersion == "" {
		return Envelope{}, pkgerrors.RequiredField(schemaService, "schema_version", "Envelope")
	}
	if env.Kind == "" {
		return Envelope{}, pkgerrors.RequiredField(schemaService, "kind", "Envelope")
	}
	if len(bytes.TrimSpace(env.Data)) == 0 {
		return Envelope{}, pkgerrors.RequiredField(schemaService, "data", "Envelope")
	}
	return env, nil
}
