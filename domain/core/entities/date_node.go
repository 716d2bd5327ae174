package entities

import (
	"time"

	"nodespace-core/domain/core/valueobjects"
	pkgerrors "nodespace-core/pkg/errors"
)

const (
	dateLayout        = "2006-01-02"
	dateDisplayFormat = "January 2, 2006"
	dateMetadataKey   = "date"
)

// DateMetadata describes a calendar-day node
type DateMetadata struct {
	Date                string `json:"date" dynamodbav:"date"`
	Timezone            string `json:"timezone" dynamodbav:"timezone"`
	DisplayFormat       string `json:"display_format" dynamodbav:"display_format"`
	CreatedByNavigation bool   `json:"created_by_navigation" dynamodbav:"created_by_navigation"`
	Locale              string `json:"locale,omitempty" dynamodbav:"locale,omitempty"`
}

// NewDateNode creates a node representing one calendar day. Date nodes are
// usually created on demand when a user navigates to a day.
func NewDateNode(date time.Time, timezone string, parent *Node) (*Node, error) {
	if timezone == "" {
		timezone = "UTC"
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, pkgerrors.InvalidFormat(nodeService, "timezone", "IANA zone name", timezone)
	}
	day := date.In(loc)

	display := day.Format(dateDisplayFormat)
	content, err := valueobjects.NewNodeContent(map[string]interface{}{
		"type":    string(NodeTypeDate),
		"content": display,
		"date":    day.Format(dateLayout),
	})
	if err != nil {
		return nil, err
	}

	node, err := NewNode(content, parent)
	if err != nil {
		return nil, err
	}
	return node.WithMetadata(dateMetadataKey, DateMetadata{
		Date:                day.Format(dateLayout),
		Timezone:            timezone,
		DisplayFormat:       display,
		CreatedByNavigation: true,
	})
}

// IsDateNode reports whether the node represents a calendar day
func (n *Node) IsDateNode() bool {
	return n.Type() == NodeTypeDate
}

// Date returns the calendar day of a date node
func (n *Node) Date() (time.Time, bool) {
	if !n.IsDateNode() {
		return time.Time{}, false
	}
	raw, ok := n.content.StringField("date")
	if !ok {
		return time.Time{}, false
	}
	day, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}

// DateMetadata returns the date attributes of a date node
func (n *Node) DateMetadata() (DateMetadata, bool) {
	v, ok := n.metadata[dateMetadataKey]
	if !ok {
		return DateMetadata{}, false
	}
	switch m := v.(type) {
	case DateMetadata:
		return m, true
	case map[string]interface{}:
		// decoded from JSON or a stored item
		out := DateMetadata{}
		out.Date, _ = m["date"].(string)
		out.Timezone, _ = m["timezone"].(string)
		out.DisplayFormat, _ = m["display_format"].(string)
		out.CreatedByNavigation, _ = m["created_by_navigation"].(bool)
		out.Locale, _ = m["locale"].(string)
		return out, out.Date != ""
	}
	return DateMetadata{}, false
}
