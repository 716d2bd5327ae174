package eventbridge

import (
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"

	"nodespace-core/domain/events"
	pkgerrors "nodespace-core/pkg/errors"
)

const (
	entriesService = "eventbridge"

	// EventBridge limits to 10 events per PutEvents call
	BatchSize = 10
)

// ToEntries maps domain events to PutEvents entries, split into batches
// PutEvents accepts. Event order is kept.
func ToEntries(eventBusName string, domainEvents []events.DomainEvent) ([][]types.PutEventsRequestEntry, error) {
	var (
		out   [][]types.PutEventsRequestEntry
		batch []types.PutEventsRequestEntry
	)
	for _, event := range domainEvents {
		e, err := ToEntry(eventBusName, event)
		if err != nil {
			return nil, err
		}
		batch = append(batch, e)
		if len(batch) == BatchSize {
			out = append(out, batch)
			batch = nil
		}
	}
	if len(batch) > 0 {
		out = append(out, batch)
	}
	return out, nil
}

// ToEntry maps one domain event to a PutEvents entry
func ToEntry(eventBusName string, event events.DomainEvent) (types.PutEventsRequestEntry, error) {
	if event == nil {
		return types.PutEventsRequestEntry{}, pkgerrors.RequiredField(entriesService, "event", "ToEntry")
	}
	detail, err := json.Marshal(event)
	if err != nil {
		return types.PutEventsRequestEntry{}, pkgerrors.SerializationFailed(entriesService, "json", event.GetEventType(), err)
	}
	return types.PutEventsRequestEntry{
		EventBusName: aws.String(eventBusName),
		Source:       aws.String(events.SourceCore),
		DetailType:   aws.String(event.GetEventType()),
		Detail:       aws.String(string(detail)),
		Time:         aws.Time(event.GetTimestamp()),
		Resources:    []string{fmt.Sprintf("nodespace:node:%s", event.GetAggregateID())},
	}, nil
}

// PutEventsInputs wraps each batch in a PutEvents request
func PutEventsInputs(eventBusName string, domainEvents []events.DomainEvent) ([]*eventbridge.PutEventsInput, error) {
	batches, err := ToEntries(eventBusName, domainEvents)
	if err != nil {
		return nil, err
	}
	out := make([]*eventbridge.PutEventsInput, 0, len(batches))
	for _, b := range batches {
		out = append(out, &eventbridge.PutEventsInput{Entries: b})
	}
	return out, nil
}

// FromEntry decodes the domain event carried by an entry
func FromEntry(e types.PutEventsRequestEntry) (events.DomainEvent, error) {
	if e.DetailType == nil || e.Detail == nil {
		return nil, pkgerrors.RequiredField(entriesService, "detail", "PutEventsRequestEntry")
	}
	return events.Decode(aws.ToString(e.DetailType), []byte(aws.ToString(e.Detail)))
}
