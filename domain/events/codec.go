package events

import (
	"encoding/json"

	pkgerrors "nodespace-core/pkg/errors"
)

const eventsService = "events"

// Types lists every event type raised by the core
func Types() []string {
	return []string{
		TypeNodeCreated,
		TypeNodeContentUpdated,
		TypeNodeReparented,
		TypeNodeRerooted,
		TypeNodeMetadataSet,
		TypeNodeRelated,
		TypeNodeUnrelated,
	}
}

// Decode rebuilds the concrete event of the given type from its JSON form
func Decode(eventType string, data []byte) (DomainEvent, error) {
	var (
		event DomainEvent
		err   error
	)
	switch eventType {
	case TypeNodeCreated:
		var e NodeCreated
		err = json.Unmarshal(data, &e)
		event = e
	case TypeNodeContentUpdated:
		var e NodeContentUpdated
		err = json.Unmarshal(data, &e)
		event = e
	case TypeNodeReparented:
		var e NodeReparented
		err = json.Unmarshal(data, &e)
		event = e
	case TypeNodeRerooted:
		var e NodeRerooted
		err = json.Unmarshal(data, &e)
		event = e
	case TypeNodeMetadataSet:
		var e NodeMetadataSet
		err = json.Unmarshal(data, &e)
		event = e
	case TypeNodeRelated:
		var e NodeRelated
		err = json.Unmarshal(data, &e)
		event = e
	case TypeNodeUnrelated:
		var e NodeUnrelated
		err = json.Unmarshal(data, &e)
		event = e
	default:
		return nil, pkgerrors.InvalidFormat(eventsService, "event_type", "a known event type", eventType)
	}
	if err != nil {
		return nil, pkgerrors.SerializationFailed(eventsService, "json", eventType, err)
	}
	if event.GetEventType() != eventType {
		return nil, pkgerrors.InvalidFormat(eventsService, "event_type", eventType, event.GetEventType())
	}
	return event, nil
}
