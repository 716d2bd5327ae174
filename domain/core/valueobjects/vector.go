package valueobjects

import (
	"fmt"
	"math"
)

// Vector is a dense embedding vector. Treat it as immutable; use Clone
// before handing it to code that might write to it.
type Vector []float32

// Dimensions returns the vector length
func (v Vector) Dimensions() int {
	return len(v)
}

// IsEmpty reports whether the vector has no components
func (v Vector) IsEmpty() bool {
	return len(v) == 0
}

// Clone returns an independent copy
func (v Vector) Clone() Vector {
	if v == nil {
		return nil
	}
	out := make(Vector, len(v))
	copy(out, v)
	return out
}

// Equals compares component-wise
func (v Vector) Equals(other Vector) bool {
	if len(v) != len(other) {
		return false
	}
	for i := range v {
		if v[i] != other[i] {
			return false
		}
	}
	return true
}

// Norm returns the Euclidean length
func (v Vector) Norm() float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Normalize returns a unit-length copy. A zero vector stays zero.
func (v Vector) Normalize() Vector {
	n := v.Norm()
	out := v.Clone()
	if n == 0 {
		return out
	}
	for i := range out {
		out[i] = float32(float64(out[i]) / n)
	}
	return out
}

// Cosine returns the cosine similarity of two vectors of equal dimension
func (v Vector) Cosine(other Vector) (float64, error) {
	if len(v) != len(other) {
		return 0, fmt.Errorf("dimension mismatch: %d vs %d", len(v), len(other))
	}
	var dot, na, nb float64
	for i := range v {
		a, b := float64(v[i]), float64(other[i])
		dot += a * b
		na += a * a
		nb += b * b
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}

// Blend returns weight*a + (1-weight)*b over the unit-normalised inputs,
// normalised again. Weight must lie in [0, 1].
func Blend(a, b Vector, weight float32) (Vector, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("dimension mismatch: %d vs %d", len(a), len(b))
	}
	if weight < 0 || weight > 1 {
		return nil, fmt.Errorf("weight %v outside [0, 1]", weight)
	}
	na, nb := a.Normalize(), b.Normalize()
	out := make(Vector, len(a))
	for i := range out {
		out[i] = weight*na[i] + (1-weight)*nb[i]
	}
	return out.Normalize(), nil
}
