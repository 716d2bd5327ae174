package entities

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"nodespace-core/domain/config"
	"nodespace-core/domain/core/valueobjects"
	pkgerrors "nodespace-core/pkg/errors"
	"nodespace-core/pkg/utils"
)

const imageService = "image"

// Dimensions is the pixel size of an image
type Dimensions struct {
	Width  uint32 `json:"width" validate:"gt=0"`
	Height uint32 `json:"height" validate:"gt=0"`
}

// GPS is where a photo was taken
type GPS struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

// CameraInfo is EXIF camera data
type CameraInfo struct {
	Make         string  `json:"make,omitempty"`
	Model        string  `json:"model,omitempty"`
	Software     string  `json:"software,omitempty"`
	LensModel    string  `json:"lens_model,omitempty"`
	FocalLength  float32 `json:"focal_length,omitempty" validate:"gte=0"`
	Aperture     float32 `json:"aperture,omitempty" validate:"gte=0"`
	ShutterSpeed string  `json:"shutter_speed,omitempty"`
	ISO          uint32  `json:"iso,omitempty"`
	Flash        *bool   `json:"flash,omitempty"`
	WhiteBalance string  `json:"white_balance,omitempty"`
	Orientation  uint32  `json:"orientation,omitempty" validate:"omitempty,min=1,max=8"`
}

// ImageMetadata is what image analysis found in a picture
type ImageMetadata struct {
	AIDescription       string             `json:"ai_description,omitempty"`
	DetectedObjects     []string           `json:"detected_objects,omitempty"`
	SceneClassification string             `json:"scene_classification,omitempty"`
	Keywords            []string           `json:"keywords,omitempty"`
	ColorPalette        []string           `json:"color_palette,omitempty" validate:"dive,hexcolor"`
	TextContent         string             `json:"text_content,omitempty"`
	FacesDetected       *uint32            `json:"faces_detected,omitempty"`
	Emotions            []string           `json:"emotions,omitempty"`
	ConfidenceScores    map[string]float32 `json:"confidence_scores,omitempty" validate:"dive,gte=0,lte=1"`
}

// MultimodalEmbedding combines a text and an image vector
type MultimodalEmbedding struct {
	Text       valueobjects.Vector `json:"text"`
	Image      valueobjects.Vector `json:"image"`
	Combined   valueobjects.Vector `json:"combined"`
	TextWeight float32             `json:"text_weight"`
	Provenance Provenance          `json:"provenance"`
}

// ImagePayload is the content of an image node
type ImagePayload struct {
	Filename        string               `json:"filename" validate:"required"`
	ContentType     string               `json:"content_type" validate:"required,startswith=image/"`
	RawData         []byte               `json:"raw_data" validate:"required"`
	FileSize        int                  `json:"file_size,omitempty" validate:"gte=0"`
	Dimensions      Dimensions           `json:"dimensions"`
	Timestamp       *time.Time           `json:"timestamp,omitempty"`
	GPS             *GPS                 `json:"gps,omitempty"`
	Camera          *CameraInfo          `json:"camera,omitempty"`
	AIMetadata      ImageMetadata        `json:"ai_metadata"`
	UserDescription string               `json:"user_description,omitempty"`
	UserTags        []string             `json:"user_tags,omitempty"`
	Embedding       *MultimodalEmbedding `json:"embedding,omitempty"`
}

// imageContent is how an image payload is stored in node content
type imageContent struct {
	Type  string       `json:"type"`
	Image ImagePayload `json:"image"`
}

// ImageNode is a node whose content is an image
type ImageNode struct {
	node    *Node
	payload ImagePayload
}

// NewImageNode validates payload and creates the backing node under parent
func NewImageNode(payload ImagePayload, parent *Node, cfg *config.DomainConfig) (*ImageNode, error) {
	if payload.FileSize == 0 {
		payload.FileSize = len(payload.RawData)
	}
	if err := ValidateImagePayload(payload, cfg); err != nil {
		return nil, err
	}

	content, err := valueobjects.NewNodeContent(imageContent{Type: string(NodeTypeImage), Image: payload})
	if err != nil {
		return nil, err
	}
	node, err := NewNode(content, parent)
	if err != nil {
		return nil, err
	}
	return &ImageNode{node: node, payload: payload}, nil
}

// ImageNodeFromNode reads an image node back from a generic node
func ImageNodeFromNode(node *Node) (*ImageNode, error) {
	if node == nil {
		return nil, pkgerrors.RequiredField(imageService, "node", "ImageNode")
	}
	if node.Type() != NodeTypeImage {
		return nil, pkgerrors.InvalidFormat(imageService, "type", string(NodeTypeImage), string(node.Type()))
	}
	var content imageContent
	if err := node.Content().Decode(&content); err != nil {
		return nil, pkgerrors.SerializationFailed(imageService, "json", "ImagePayload", err)
	}
	return &ImageNode{node: node, payload: content.Image}, nil
}

// ValidateImagePayload checks an image payload against the domain limits
func ValidateImagePayload(p ImagePayload, cfg *config.DomainConfig) error {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if err := utils.ValidateStruct(p); err != nil {
		var violations []string
		for field, msg := range utils.FieldErrors(err) {
			violations = append(violations, field+": "+msg)
		}
		if len(violations) == 0 {
			violations = []string{err.Error()}
		}
		return pkgerrors.SchemaViolation(imageService, "ImagePayload", violations).WithCause(err)
	}
	if p.FileSize != len(p.RawData) {
		return pkgerrors.InvalidFormat(imageService, "file_size", strconv.Itoa(len(p.RawData)), strconv.Itoa(p.FileSize))
	}
	if len(p.RawData) > cfg.MaxImageBytes {
		return pkgerrors.OutOfRange(imageService, "raw_data", strconv.Itoa(len(p.RawData)), "1", strconv.Itoa(cfg.MaxImageBytes))
	}
	if p.Embedding != nil && cfg.EmbeddingDimensions > 0 {
		for name, v := range map[string]valueobjects.Vector{"text": p.Embedding.Text, "image": p.Embedding.Image, "combined": p.Embedding.Combined} {
			if v.Dimensions() != cfg.EmbeddingDimensions {
				want := strconv.Itoa(cfg.EmbeddingDimensions)
				return pkgerrors.OutOfRange(imageService, "embedding."+name, strconv.Itoa(v.Dimensions()), want, want)
			}
		}
	}
	return nil
}

// Validate checks the current payload against the domain limits
func (i *ImageNode) Validate(cfg *config.DomainConfig) error {
	return ValidateImagePayload(i.payload, cfg)
}

// Node returns the backing node
func (i *ImageNode) Node() *Node {
	return i.node
}

// ID returns the backing node's identifier
func (i *ImageNode) ID() valueobjects.NodeID {
	return i.node.ID()
}

// Payload returns the image payload
func (i *ImageNode) Payload() ImagePayload {
	return i.payload
}

// WithAIMetadata returns a copy carrying new analysis results
func (i *ImageNode) WithAIMetadata(meta ImageMetadata, cfg *config.DomainConfig) (*ImageNode, error) {
	payload := i.payload
	payload.AIMetadata = meta
	return i.withPayload(payload, cfg)
}

// WithMultimodalEmbedding blends text and image vectors and stores all three
func (i *ImageNode) WithMultimodalEmbedding(text, image valueobjects.Vector, textWeight float32, provenance Provenance, cfg *config.DomainConfig) (*ImageNode, error) {
	combined, err := valueobjects.Blend(text, image, textWeight)
	if err != nil {
		return nil, pkgerrors.EmbeddingFailed(imageService, err.Error(), "multimodal").WithCause(err)
	}
	payload := i.payload
	payload.Embedding = &MultimodalEmbedding{
		Text:       text.Clone(),
		Image:      image.Clone(),
		Combined:   combined,
		TextWeight: textWeight,
		Provenance: provenance,
	}
	return i.withPayload(payload, cfg)
}

func (i *ImageNode) withPayload(payload ImagePayload, cfg *config.DomainConfig) (*ImageNode, error) {
	if err := ValidateImagePayload(payload, cfg); err != nil {
		return nil, err
	}
	content, err := valueobjects.NewNodeContent(imageContent{Type: string(NodeTypeImage), Image: payload})
	if err != nil {
		return nil, err
	}
	node, err := i.node.UpdateContent(content)
	if err != nil {
		return nil, err
	}
	return &ImageNode{node: node, payload: payload}, nil
}

// Text returns the searchable text of the image: descriptions, tags and
// recognised text
func (i *ImageNode) Text() string {
	var parts []string
	if i.payload.UserDescription != "" {
		parts = append(parts, i.payload.UserDescription)
	}
	if i.payload.AIMetadata.AIDescription != "" {
		parts = append(parts, i.payload.AIMetadata.AIDescription)
	}
	if len(i.payload.UserTags) > 0 {
		parts = append(parts, strings.Join(i.payload.UserTags, ", "))
	}
	if len(i.payload.AIMetadata.Keywords) > 0 {
		parts = append(parts, strings.Join(i.payload.AIMetadata.Keywords, ", "))
	}
	if i.payload.AIMetadata.TextContent != "" {
		parts = append(parts, i.payload.AIMetadata.TextContent)
	}
	if len(parts) == 0 {
		return i.payload.Filename
	}
	return strings.Join(parts, "\n")
}

// Summary returns a one-line description
func (i *ImageNode) Summary() string {
	s := fmt.Sprintf("%s (%dx%d, %s)", i.payload.Filename, i.payload.Dimensions.Width, i.payload.Dimensions.Height, i.payload.ContentType)
	if i.payload.AIMetadata.AIDescription != "" {
		s += ": " + i.payload.AIMetadata.AIDescription
	}
	return s
}
