package validators

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"nodespace-core/domain/config"
	"nodespace-core/domain/core/entities"
	"nodespace-core/domain/core/valueobjects"
	"nodespace-core/pkg/errors"
)

const validatorService = "node-validator"

// NodeValidator validates node-related domain rules
type NodeValidator struct {
	cfg *config.DomainConfig
}

// NewNodeValidator creates a validator using the given limits, or the
// defaults when cfg is nil
func NewNodeValidator(cfg *config.DomainConfig) *NodeValidator {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &NodeValidator{cfg: cfg}
}

// ValidateNode checks a node's content, metadata and embeddings and reports
// every violation at once
func (v *NodeValidator) ValidateNode(node *entities.Node) error {
	if node == nil {
		return errors.RequiredField(validatorService, "node", "ValidateNode")
	}

	var violations []string
	collect := func(err error) {
		if err == nil {
			return
		}
		if e, ok := errors.As(err); ok {
			violations = append(violations, e.Message)
			return
		}
		violations = append(violations, err.Error())
	}

	collect(v.ValidateContent(node.Content()))
	collect(v.ValidateMetadata(node.Metadata()))
	set := node.Embeddings()
	for _, tier := range entities.Tiers() {
		if e, ok := set.Get(tier); ok {
			collect(v.ValidateVector(string(tier), e.Vector))
		}
	}

	if len(violations) > 0 {
		return errors.SchemaViolation(validatorService, "Node", violations).
			WithDetail("node_id", node.ID().String())
	}
	return nil
}

// ValidateContent validates the content value object
func (v *NodeValidator) ValidateContent(content valueobjects.NodeContent) error {
	if content.IsEmpty() {
		return errors.RequiredField(validatorService, "content", "Node")
	}
	if content.Size() > v.cfg.MaxContentBytes {
		return errors.OutOfRange(validatorService, "content",
			strconv.Itoa(content.Size()), "1", strconv.Itoa(v.cfg.MaxContentBytes))
	}

	// Check for potentially malicious content
	text := strings.ToLower(content.Text())
	if strings.Contains(text, "<script>") || strings.Contains(text, "javascript:") {
		return errors.BusinessRule(validatorService, "content contains potentially malicious code").
			WithDetail("field", "content")
	}
	return nil
}

// ValidateMetadata validates node metadata
func (v *NodeValidator) ValidateMetadata(metadata map[string]interface{}) error {
	if len(metadata) > v.cfg.MaxMetadataKeys {
		return errors.OutOfRange(validatorService, "metadata",
			strconv.Itoa(len(metadata)), "0", strconv.Itoa(v.cfg.MaxMetadataKeys))
	}
	for key := range metadata {
		if strings.TrimSpace(key) == "" {
			return errors.RequiredField(validatorService, "metadata key", "Node")
		}
		if len(key) > v.cfg.MaxMetadataKeyLength {
			return errors.OutOfRange(validatorService, "metadata key",
				strconv.Itoa(len(key)), "1", strconv.Itoa(v.cfg.MaxMetadataKeyLength)).
				WithDetail("key", key)
		}
	}
	return nil
}

// ValidateVector checks a vector's dimensions against the configured model
// size and rejects non-finite values
func (v *NodeValidator) ValidateVector(field string, vec valueobjects.Vector) error {
	if vec.IsEmpty() {
		return errors.RequiredField(validatorService, field, "embedding")
	}
	if v.cfg.EmbeddingDimensions > 0 && vec.Dimensions() != v.cfg.EmbeddingDimensions {
		want := strconv.Itoa(v.cfg.EmbeddingDimensions)
		return errors.OutOfRange(validatorService, field, strconv.Itoa(vec.Dimensions()), want, want)
	}
	for i, x := range vec {
		if f := float64(x); math.IsNaN(f) || math.IsInf(f, 0) {
			return errors.InvalidFormat(validatorService, fmt.Sprintf("%s[%d]", field, i), "finite number", fmt.Sprint(x))
		}
	}
	return nil
}

// ValidateAncestry walks the parent chain of node and checks that it ends at
// the node's cached root
func (v *NodeValidator) ValidateAncestry(node *entities.Node, resolver entities.Resolver) error {
	if node == nil {
		return errors.RequiredField(validatorService, "node", "ValidateAncestry")
	}

	seen := map[valueobjects.NodeID]bool{node.ID(): true}
	current := node
	for !current.IsRoot() {
		parentID := current.ParentID()
		if seen[parentID] {
			return errors.Cycle(validatorService, node.ID().String(), parentID.String())
		}
		seen[parentID] = true

		parent, ok := resolver.Node(parentID)
		if !ok || parent == nil {
			return errors.AncestryUnresolved(validatorService, node.ID().String(), parentID.String())
		}
		current = parent
	}

	if !current.ID().Equals(node.Root()) {
		return errors.RootMismatch(validatorService, node.ID().String(), node.Root().String(), current.ID().String())
	}
	return nil
}
