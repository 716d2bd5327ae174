package eventbridge

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nodespace-core/domain/core/valueobjects"
	"nodespace-core/domain/events"
)

const bus = "nodespace-events"

func created(n int) []events.DomainEvent {
	at := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)
	out := make([]events.DomainEvent, n)
	for i := range out {
		id := valueobjects.NewNodeID()
		out[i] = events.NewNodeCreated(id, valueobjects.NodeID{}, id, at.Add(time.Duration(i)*time.Second))
	}
	return out
}

func TestToEntry(t *testing.T) {
	event := created(1)[0]

	entry, err := ToEntry(bus, event)
	require.NoError(t, err)
	assert.Equal(t, bus, aws.ToString(entry.EventBusName))
	assert.Equal(t, events.SourceCore, aws.ToString(entry.Source))
	assert.Equal(t, events.TypeNodeCreated, aws.ToString(entry.DetailType))
	assert.Equal(t, []string{"nodespace:node:" + event.GetAggregateID()}, entry.Resources)
	assert.True(t, event.GetTimestamp().Equal(aws.ToTime(entry.Time)))

	var detail map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(entry.Detail)), &detail))
	assert.Equal(t, event.GetAggregateID(), detail["node_id"])
	assert.Nil(t, detail["parent_id"])

	decoded, err := FromEntry(entry)
	require.NoError(t, err)
	assert.Equal(t, event, decoded)

	_, err = ToEntry(bus, nil)
	assert.Error(t, err)
	_, err = FromEntry(types.PutEventsRequestEntry{})
	assert.Error(t, err)
}

func TestToEntriesBatches(t *testing.T) {
	domainEvents := created(23)

	batches, err := ToEntries(bus, domainEvents)
	require.NoError(t, err)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], BatchSize)
	assert.Len(t, batches[1], BatchSize)
	assert.Len(t, batches[2], 3)

	// order is kept across batches
	first, err := FromEntry(batches[1][0])
	require.NoError(t, err)
	assert.Equal(t, domainEvents[10].GetAggregateID(), first.GetAggregateID())

	inputs, err := PutEventsInputs(bus, domainEvents)
	require.NoError(t, err)
	require.Len(t, inputs, 3)
	assert.Len(t, inputs[2].Entries, 3)

	empty, err := PutEventsInputs(bus, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = ToEntries(bus, []events.DomainEvent{domainEvents[0], nil})
	assert.Error(t, err)
}
