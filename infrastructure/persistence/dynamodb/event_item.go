package dynamodb

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"nodespace-core/domain/events"
	pkgerrors "nodespace-core/pkg/errors"
	"nodespace-core/pkg/utils"
)

// maxBatchWrite is the BatchWriteItem request limit
const maxBatchWrite = 25

// PublishStatus represents the publishing status of an event
type PublishStatus string

const (
	PublishStatusPending   PublishStatus = "pending"
	PublishStatusPublished PublishStatus = "published"
	PublishStatusFailed    PublishStatus = "failed"
)

// EventRecord represents how events are stored in DynamoDB
type EventRecord struct {
	PK          string                 `dynamodbav:"PK"` // EVENTS#<aggregate_id>
	SK          string                 `dynamodbav:"SK"` // EVENT#<timestamp>#<event_id>
	EntityType  string                 `dynamodbav:"EntityType"`
	EventID     string                 `dynamodbav:"EventID"`
	EventType   string                 `dynamodbav:"EventType"`
	AggregateID string                 `dynamodbav:"AggregateID"`
	EventData   map[string]interface{} `dynamodbav:"EventData"`
	Timestamp   string                 `dynamodbav:"Timestamp"`
	Version     int                    `dynamodbav:"Version"`

	PublishStatus string `dynamodbav:"PublishStatus"`

	GSI2PK string `dynamodbav:"GSI2PK"` // EVENTTYPE#<type>
	GSI2SK string `dynamodbav:"GSI2SK"` // EVENT#<timestamp>

	// TTL for automatic cleanup, zero keeps the record
	TTL int64 `dynamodbav:"TTL,omitempty"`
}

// EventToRecord converts a domain event to its stored form. A positive
// retention sets the TTL relative to the event timestamp.
func EventToRecord(event events.DomainEvent, retention time.Duration) (*EventRecord, error) {
	if event == nil {
		return nil, pkgerrors.RequiredField(itemService, "event", "EventToRecord")
	}

	raw, err := json.Marshal(event)
	if err != nil {
		return nil, pkgerrors.SerializationFailed(itemService, "json", event.GetEventType(), err)
	}
	data := make(map[string]interface{})
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, pkgerrors.SerializationFailed(itemService, "json", event.GetEventType(), err)
	}

	ts := utils.FormatTimestamp(event.GetTimestamp())
	eventID := uuid.New().String()

	record := &EventRecord{
		PK:            fmt.Sprintf("EVENTS#%s", event.GetAggregateID()),
		SK:            fmt.Sprintf("EVENT#%s#%s", ts, eventID),
		EntityType:    "EVENT",
		EventID:       eventID,
		EventType:     event.GetEventType(),
		AggregateID:   event.GetAggregateID(),
		EventData:     data,
		Timestamp:     ts,
		Version:       event.GetVersion(),
		PublishStatus: string(PublishStatusPending),
		GSI2PK:        fmt.Sprintf("EVENTTYPE#%s", event.GetEventType()),
		GSI2SK:        fmt.Sprintf("EVENT#%s", ts),
	}
	if retention > 0 {
		record.TTL = event.GetTimestamp().Add(retention).Unix()
	}
	return record, nil
}

// ToEvent converts the record back to its concrete domain event
func (r *EventRecord) ToEvent() (events.DomainEvent, error) {
	raw, err := json.Marshal(r.EventData)
	if err != nil {
		return nil, pkgerrors.SerializationFailed(itemService, "json", r.EventType, err)
	}
	return events.Decode(r.EventType, raw)
}

// EventWriteBatches builds the BatchWriteItem requests storing the events
func EventWriteBatches(table string, domainEvents []events.DomainEvent, retention time.Duration) ([]*dynamodb.BatchWriteItemInput, error) {
	requests := make([]types.WriteRequest, 0, len(domainEvents))
	for _, event := range domainEvents {
		item, err := eventItem(event, retention)
		if err != nil {
			return nil, err
		}
		requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
	}

	var out []*dynamodb.BatchWriteItemInput
	for i := 0; i < len(requests); i += maxBatchWrite {
		end := i + maxBatchWrite
		if end > len(requests) {
			end = len(requests)
		}
		out = append(out, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{table: requests[i:end]},
		})
	}
	return out, nil
}

// EventPut prepares an event for a transactional write alongside the node
// it describes
func EventPut(table string, event events.DomainEvent, retention time.Duration) (types.TransactWriteItem, error) {
	item, err := eventItem(event, retention)
	if err != nil {
		return types.TransactWriteItem{}, err
	}
	return types.TransactWriteItem{
		Put: &types.Put{
			TableName: aws.String(table),
			Item:      item,
		},
	}, nil
}

// ItemToEvent decodes a stored event record
func ItemToEvent(av map[string]types.AttributeValue) (events.DomainEvent, error) {
	var record EventRecord
	if err := attributevalue.UnmarshalMap(av, &record); err != nil {
		return nil, pkgerrors.SerializationFailed(itemService, "dynamodb", "EventRecord", err)
	}
	return record.ToEvent()
}

func eventItem(event events.DomainEvent, retention time.Duration) (map[string]types.AttributeValue, error) {
	record, err := EventToRecord(event, retention)
	if err != nil {
		return nil, err
	}
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return nil, pkgerrors.SerializationFailed(itemService, "dynamodb", "EventRecord", err)
	}
	return item, nil
}
