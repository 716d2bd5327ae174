package events

import (
	"time"

	"nodespace-core/domain/core/valueobjects"
)

// SourceCore is the event source used when these events are published
const SourceCore = "nodespace.core"

// Event types
const (
	TypeNodeCreated        = "node.created"
	TypeNodeContentUpdated = "node.content_updated"
	TypeNodeReparented     = "node.reparented"
	TypeNodeRerooted       = "node.rerooted"
	TypeNodeMetadataSet    = "node.metadata_set"
	TypeNodeRelated        = "node.related"
	TypeNodeUnrelated      = "node.unrelated"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

func base(nodeID valueobjects.NodeID, eventType string, timestamp time.Time, version int) BaseEvent {
	return BaseEvent{
		AggregateID: nodeID.String(),
		EventType:   eventType,
		Timestamp:   timestamp,
		Version:     version,
	}
}

// NodeCreated is raised when a new node is created
type NodeCreated struct {
	BaseEvent
	NodeID   valueobjects.NodeID `json:"node_id"`
	ParentID valueobjects.NodeID `json:"parent_id"`
	RootID   valueobjects.NodeID `json:"root_id"`
}

// NewNodeCreated creates a NodeCreated event
func NewNodeCreated(nodeID, parentID, rootID valueobjects.NodeID, timestamp time.Time) NodeCreated {
	return NodeCreated{
		BaseEvent: base(nodeID, TypeNodeCreated, timestamp, 1),
		NodeID:    nodeID,
		ParentID:  parentID,
		RootID:    rootID,
	}
}

// NodeContentUpdated is raised when node content is replaced
type NodeContentUpdated struct {
	BaseEvent
	NodeID  valueobjects.NodeID `json:"node_id"`
	OldSize int                 `json:"old_size"`
	NewSize int                 `json:"new_size"`
}

// NewNodeContentUpdated creates a NodeContentUpdated event
func NewNodeContentUpdated(nodeID valueobjects.NodeID, oldContent, newContent valueobjects.NodeContent, timestamp time.Time, version int) NodeContentUpdated {
	return NodeContentUpdated{
		BaseEvent: base(nodeID, TypeNodeContentUpdated, timestamp, version),
		NodeID:    nodeID,
		OldSize:   oldContent.Size(),
		NewSize:   newContent.Size(),
	}
}

// NodeReparented is raised when a node moves under another parent, or
// becomes a root
type NodeReparented struct {
	BaseEvent
	NodeID      valueobjects.NodeID `json:"node_id"`
	OldParentID valueobjects.NodeID `json:"old_parent_id"`
	NewParentID valueobjects.NodeID `json:"new_parent_id"`
	OldRootID   valueobjects.NodeID `json:"old_root_id"`
	NewRootID   valueobjects.NodeID `json:"new_root_id"`
}

// NewNodeReparented creates a NodeReparented event
func NewNodeReparented(nodeID, oldParent, newParent, oldRoot, newRoot valueobjects.NodeID, timestamp time.Time, version int) NodeReparented {
	return NodeReparented{
		BaseEvent:   base(nodeID, TypeNodeReparented, timestamp, version),
		NodeID:      nodeID,
		OldParentID: oldParent,
		NewParentID: newParent,
		OldRootID:   oldRoot,
		NewRootID:   newRoot,
	}
}

// NodeRerooted is raised for every descendant whose cached root changed
// because an ancestor was reparented
type NodeRerooted struct {
	BaseEvent
	NodeID    valueobjects.NodeID `json:"node_id"`
	OldRootID valueobjects.NodeID `json:"old_root_id"`
	NewRootID valueobjects.NodeID `json:"new_root_id"`
}

// NewNodeRerooted creates a NodeRerooted event
func NewNodeRerooted(nodeID, oldRoot, newRoot valueobjects.NodeID, timestamp time.Time, version int) NodeRerooted {
	return NodeRerooted{
		BaseEvent: base(nodeID, TypeNodeRerooted, timestamp, version),
		NodeID:    nodeID,
		OldRootID: oldRoot,
		NewRootID: newRoot,
	}
}

// NodeMetadataSet is raised when a metadata attribute is added or replaced
type NodeMetadataSet struct {
	BaseEvent
	NodeID valueobjects.NodeID `json:"node_id"`
	Key    string              `json:"key"`
}

// NewNodeMetadataSet creates a NodeMetadataSet event
func NewNodeMetadataSet(nodeID valueobjects.NodeID, key string, timestamp time.Time, version int) NodeMetadataSet {
	return NodeMetadataSet{
		BaseEvent: base(nodeID, TypeNodeMetadataSet, timestamp, version),
		NodeID:    nodeID,
		Key:       key,
	}
}

// NodeRelated is raised when a node gains a relationship to another node
type NodeRelated struct {
	BaseEvent
	NodeID           valueobjects.NodeID         `json:"node_id"`
	RelationshipID   valueobjects.RelationshipID `json:"relationship_id"`
	TargetID         valueobjects.NodeID         `json:"target_id"`
	RelationshipType string                      `json:"relationship_type"`
}

// NewNodeRelated creates a NodeRelated event
func NewNodeRelated(nodeID valueobjects.NodeID, ref valueobjects.RelationshipRef, timestamp time.Time, version int) NodeRelated {
	return NodeRelated{
		BaseEvent:        base(nodeID, TypeNodeRelated, timestamp, version),
		NodeID:           nodeID,
		RelationshipID:   ref.ID,
		TargetID:         ref.TargetID,
		RelationshipType: ref.Type,
	}
}

// NodeUnrelated is raised when a relationship is removed
type NodeUnrelated struct {
	BaseEvent
	NodeID           valueobjects.NodeID         `json:"node_id"`
	RelationshipID   valueobjects.RelationshipID `json:"relationship_id"`
	TargetID         valueobjects.NodeID         `json:"target_id"`
	RelationshipType string                      `json:"relationship_type"`
}

// NewNodeUnrelated creates a NodeUnrelated event
func NewNodeUnrelated(nodeID valueobjects.NodeID, ref valueobjects.RelationshipRef, timestamp time.Time, version int) NodeUnrelated {
	return NodeUnrelated{
		BaseEvent:        base(nodeID, TypeNodeUnrelated, timestamp, version),
		NodeID:           nodeID,
		RelationshipID:   ref.ID,
		TargetID:         ref.TargetID,
		RelationshipType: ref.Type,
	}
}
