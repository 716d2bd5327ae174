package entities

import "strings"

// NodeType classifies a node by the "type" field of its content
type NodeType string

const (
	NodeTypeText     NodeType = "text"
	NodeTypeImage    NodeType = "image"
	NodeTypeTask     NodeType = "task"
	NodeTypeDocument NodeType = "document"
	NodeTypeLink     NodeType = "link"
	NodeTypeEntity   NodeType = "entity"
	NodeTypeDate     NodeType = "date"
	NodeTypeAudio    NodeType = "audio"
	NodeTypeVideo    NodeType = "video"
)

var knownNodeTypes = map[NodeType]bool{
	NodeTypeText:     true,
	NodeTypeImage:    true,
	NodeTypeTask:     true,
	NodeTypeDocument: true,
	NodeTypeLink:     true,
	NodeTypeEntity:   true,
	NodeTypeDate:     true,
	NodeTypeAudio:    true,
	NodeTypeVideo:    true,
}

// ParseNodeType normalizes a type name. Unknown names are kept as custom
// types; an empty name means text.
func ParseNodeType(s string) NodeType {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return NodeTypeText
	}
	return NodeType(s)
}

// IsBuiltin reports whether the type is one of the predefined types
func (t NodeType) IsBuiltin() bool {
	return knownNodeTypes[t]
}

func (t NodeType) String() string {
	return string(t)
}

// Type returns the node's type, text when the content does not say
func (n *Node) Type() NodeType {
	return ParseNodeType(n.content.Type())
}
