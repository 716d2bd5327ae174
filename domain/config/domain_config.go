package config

import (
	pkgerrors "nodespace-core/pkg/errors"
	"nodespace-core/pkg/utils"
)

// DomainConfig holds all configurable business rules and constraints
type DomainConfig struct {
	// Node constraints
	MaxContentBytes      int `validate:"gt=0"`
	MaxMetadataKeys      int `validate:"gt=0"`
	MaxMetadataKeyLength int `validate:"gt=0"`

	// Embedding constraints; 0 accepts any dimension
	EmbeddingDimensions int `validate:"gte=0"`

	// Context assembly; a MaxAncestorDepth of 0 walks to the root
	DefaultStrategy        string  `validate:"required,oneof=rule_based ai_enhanced adaptive"`
	MaxSiblings            int     `validate:"gte=0"`
	MaxChildren            int     `validate:"gte=0"`
	MaxRelated             int     `validate:"gte=0"`
	MaxAncestorDepth       int     `validate:"gte=0"`
	MaxContextChars        int     `validate:"gt=0"`
	SimilarityThreshold    float64 `validate:"gte=-1,lte=1"`
	SemanticTopK           int     `validate:"gt=0"`
	AdaptiveCandidateLimit int     `validate:"gt=0"`

	// Image constraints
	MaxImageBytes int `validate:"gt=0"`
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		MaxContentBytes:      1 << 20,
		MaxMetadataKeys:      64,
		MaxMetadataKeyLength: 128,

		EmbeddingDimensions: 384,

		DefaultStrategy:        "rule_based",
		MaxSiblings:            5,
		MaxChildren:            10,
		MaxRelated:             5,
		MaxAncestorDepth:       8,
		MaxContextChars:        4000,
		SimilarityThreshold:    0.3,
		SemanticTopK:           8,
		AdaptiveCandidateLimit: 12,

		MaxImageBytes: 20 << 20,
	}
}

// ProductionDomainConfig returns production-specific configuration
func ProductionDomainConfig() *DomainConfig {
	config := DefaultDomainConfig()

	// Tighter context windows
	config.MaxContextChars = 2000
	config.MaxSiblings = 3
	config.DefaultStrategy = "adaptive"

	return config
}

// DevelopmentDomainConfig returns development-specific configuration
func DevelopmentDomainConfig() *DomainConfig {
	config := DefaultDomainConfig()

	// Small local models come in many sizes
	config.EmbeddingDimensions = 0
	config.MaxContentBytes = 8 << 20
	config.MaxAncestorDepth = 32

	return config
}

// LoadDomainConfig loads domain configuration based on environment
func LoadDomainConfig(environment string) *DomainConfig {
	switch environment {
	case "production":
		return ProductionDomainConfig()
	case "development":
		return DevelopmentDomainConfig()
	default:
		return DefaultDomainConfig()
	}
}

// Validate checks if the configuration is valid
func (c *DomainConfig) Validate() error {
	if err := utils.ValidateStruct(c); err != nil {
		return pkgerrors.ConfigurationError("domain-config", "DomainConfig", "valid limits").WithCause(err)
	}
	return nil
}
