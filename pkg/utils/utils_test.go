package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvance(t *testing.T) {
	prev := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	later := prev.Add(time.Second)

	assert.Equal(t, later, Advance(prev, later))
	assert.Equal(t, prev.Add(time.Nanosecond), Advance(prev, prev))
	assert.Equal(t, prev.Add(time.Nanosecond), Advance(prev, prev.Add(-time.Hour)), "clock went backwards")
}

func TestTimestamps(t *testing.T) {
	at := time.Date(2024, 1, 1, 9, 30, 0, 5, time.FixedZone("CET", 3600))
	s := FormatTimestamp(at)
	assert.Equal(t, "2024-01-01T08:30:00.000000005Z", s)

	back, err := ParseTimestamp(s)
	require.NoError(t, err)
	assert.True(t, at.Equal(back))

	_, err = ParseTimestamp("yesterday")
	assert.Error(t, err)
}

func TestValidateStruct(t *testing.T) {
	type limits struct {
		Name     string `validate:"required"`
		Strategy string `validate:"oneof=a b"`
		Budget   int    `validate:"gt=0"`
	}

	require.NoError(t, ValidateStruct(limits{Name: "x", Strategy: "a", Budget: 1}))

	err := ValidateStruct(limits{Strategy: "c"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name is required")

	fields := FieldErrors(err)
	assert.Equal(t, map[string]string{
		"Name":     "name is required",
		"Strategy": "strategy must be one of: a b",
		"Budget":   "budget must be greater than 0",
	}, fields)
	assert.Empty(t, FieldErrors(assert.AnError))
}
