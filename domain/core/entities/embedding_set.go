package entities

import (
	"encoding/json"
	"time"

	"nodespace-core/domain/core/valueobjects"
	pkgerrors "nodespace-core/pkg/errors"
)

const embeddingService = "embedding"

// Tier is one level of a node's derived embeddings. Each tier sees more
// surrounding structure than the one below it.
type Tier string

const (
	TierIndividual   Tier = "individual"
	TierContextual   Tier = "contextual"
	TierHierarchical Tier = "hierarchical"
)

var tierOrder = []Tier{TierIndividual, TierContextual, TierHierarchical}

// Tiers returns the tiers from lowest to highest
func Tiers() []Tier {
	out := make([]Tier, len(tierOrder))
	copy(out, tierOrder)
	return out
}

// Valid reports whether t is a known tier
func (t Tier) Valid() bool {
	return t.index() >= 0
}

func (t Tier) index() int {
	for i, candidate := range tierOrder {
		if candidate == t {
			return i
		}
	}
	return -1
}

func (t Tier) String() string {
	return string(t)
}

// Provenance records which model produced a vector
type Provenance struct {
	Model        string `json:"model"`
	ModelVersion string `json:"model_version,omitempty"`
}

// TierMetrics describes how a tier was computed
type TierMetrics struct {
	Latency       time.Duration `json:"latency_ns"`
	ContextLength int           `json:"context_length"`
	PathDepth     int           `json:"path_depth"`
	Stale         bool          `json:"stale"`
}

// TierEmbedding is one computed tier
type TierEmbedding struct {
	ID         valueobjects.EmbeddingID `json:"id"`
	Vector     valueobjects.Vector      `json:"vector"`
	Provenance Provenance               `json:"provenance"`
	Strategy   string                   `json:"strategy,omitempty"`
	Metrics    TierMetrics              `json:"metrics"`
	ComputedAt time.Time                `json:"computed_at"`
}

func (e TierEmbedding) clone() TierEmbedding {
	e.Vector = e.Vector.Clone()
	return e
}

// EmbeddingSet holds up to three tiers. A tier is only present when every
// tier below it is present. The zero value is an empty set.
type EmbeddingSet struct {
	tiers [3]*TierEmbedding
}

// WithTier returns a copy with tier t set to e. Tiers above t that were
// computed from the previous value are kept but marked stale.
func (s EmbeddingSet) WithTier(t Tier, e TierEmbedding) (EmbeddingSet, error) {
	idx := t.index()
	if idx < 0 {
		return s, pkgerrors.InvalidFormat(embeddingService, "tier", "individual, contextual or hierarchical", string(t))
	}
	if e.Vector.IsEmpty() {
		return s, pkgerrors.EmbeddingFailed(embeddingService, "empty vector", string(t))
	}
	for i := 0; i < idx; i++ {
		if s.tiers[i] == nil {
			return s, pkgerrors.MissingTier(embeddingService, string(t), string(tierOrder[i]))
		}
	}
	if e.ID.IsZero() {
		e.ID = valueobjects.NewEmbeddingID()
	}

	out := EmbeddingSet{}
	for i, existing := range s.tiers {
		if existing != nil {
			c := existing.clone()
			out.tiers[i] = &c
		}
	}
	stored := e.clone()
	out.tiers[idx] = &stored
	for i := idx + 1; i < len(out.tiers); i++ {
		if out.tiers[i] != nil {
			out.tiers[i].Metrics.Stale = true
		}
	}
	return out, nil
}

// Get returns tier t
func (s EmbeddingSet) Get(t Tier) (TierEmbedding, bool) {
	idx := t.index()
	if idx < 0 || s.tiers[idx] == nil {
		return TierEmbedding{}, false
	}
	return s.tiers[idx].clone(), true
}

// Has reports whether tier t is present
func (s EmbeddingSet) Has(t Tier) bool {
	idx := t.index()
	return idx >= 0 && s.tiers[idx] != nil
}

// Best returns the highest tier present
func (s EmbeddingSet) Best() (TierEmbedding, Tier, bool) {
	for i := len(s.tiers) - 1; i >= 0; i-- {
		if s.tiers[i] != nil {
			return s.tiers[i].clone(), tierOrder[i], true
		}
	}
	return TierEmbedding{}, "", false
}

// Levels returns how many tiers are present
func (s EmbeddingSet) Levels() int {
	n := 0
	for _, e := range s.tiers {
		if e != nil {
			n++
		}
	}
	return n
}

// IsComplete reports whether all three tiers are present
func (s EmbeddingSet) IsComplete() bool {
	return s.Levels() == len(s.tiers)
}

// IsEmpty reports whether no tier is present
func (s EmbeddingSet) IsEmpty() bool {
	return s.Levels() == 0
}

// HasStale reports whether any tier needs recomputation
func (s EmbeddingSet) HasStale() bool {
	for _, e := range s.tiers {
		if e != nil && e.Metrics.Stale {
			return true
		}
	}
	return false
}

type embeddingSetJSON struct {
	Individual   *TierEmbedding `json:"individual,omitempty"`
	Contextual   *TierEmbedding `json:"contextual,omitempty"`
	Hierarchical *TierEmbedding `json:"hierarchical,omitempty"`
}

// MarshalJSON implements json.Marshaler
func (s EmbeddingSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(embeddingSetJSON{
		Individual:   s.tiers[0],
		Contextual:   s.tiers[1],
		Hierarchical: s.tiers[2],
	})
}

// UnmarshalJSON implements json.Unmarshaler. Tiers are rebuilt bottom-up, so
// a payload with a gap is rejected.
func (s *EmbeddingSet) UnmarshalJSON(data []byte) error {
	var dto embeddingSetJSON
	if err := json.Unmarshal(data, &dto); err != nil {
		return pkgerrors.SerializationFailed(embeddingService, "json", "EmbeddingSet", err)
	}

	out := EmbeddingSet{}
	for i, e := range []*TierEmbedding{dto.Individual, dto.Contextual, dto.Hierarchical} {
		if e == nil {
			continue
		}
		next, err := out.WithTier(tierOrder[i], *e)
		if err != nil {
			return err
		}
		out = next
	}
	*s = out
	return nil
}
