package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "nodespace-core/pkg/errors"
)

func TestLoadDomainConfig(t *testing.T) {
	tests := []struct {
		env      string
		strategy string
		dims     int
		chars    int
	}{
		{"production", "adaptive", 384, 2000},
		{"development", "rule_based", 0, 4000},
		{"staging", "rule_based", 384, 4000},
		{"", "rule_based", 384, 4000},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			c := LoadDomainConfig(tt.env)
			require.NoError(t, c.Validate())
			assert.Equal(t, tt.strategy, c.DefaultStrategy)
			assert.Equal(t, tt.dims, c.EmbeddingDimensions)
			assert.Equal(t, tt.chars, c.MaxContextChars)
		})
	}
}

func TestDomainConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *DomainConfig)
	}{
		{"unknown strategy", func(c *DomainConfig) { c.DefaultStrategy = "random" }},
		{"no context budget", func(c *DomainConfig) { c.MaxContextChars = 0 }},
		{"negative dimensions", func(c *DomainConfig) { c.EmbeddingDimensions = -1 }},
		{"threshold above one", func(c *DomainConfig) { c.SimilarityThreshold = 1.5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultDomainConfig()
			tt.mutate(c)
			err := c.Validate()
			e, ok := pkgerrors.As(err)
			require.True(t, ok)
			assert.Equal(t, pkgerrors.CodeConfiguration, e.Code)
		})
	}
}
