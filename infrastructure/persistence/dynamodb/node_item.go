package dynamodb

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"nodespace-core/domain/core/entities"
	"nodespace-core/domain/core/valueobjects"
	pkgerrors "nodespace-core/pkg/errors"
	"nodespace-core/pkg/utils"
)

const (
	itemService = "dynamodb-codec"

	// Index names
	RootIndex   = "GSI1"
	ParentIndex = "GSI2"

	metadataSK = "METADATA"

	// maxTransactItems is the TransactWriteItems request limit
	maxTransactItems = 100
)

// NodeItem is how a node is stored. Whole trees are one query on GSI1 and
// the children of a node one query on GSI2.
type NodeItem struct {
	PK              string                 `dynamodbav:"PK"`               // NODE#<node_id>
	SK              string                 `dynamodbav:"SK"`               // METADATA
	GSI1PK          string                 `dynamodbav:"GSI1PK"`           // ROOT#<root_id>
	GSI1SK          string                 `dynamodbav:"GSI1SK"`           // NODE#<node_id>
	GSI2PK          string                 `dynamodbav:"GSI2PK,omitempty"` // PARENT#<parent_id>
	GSI2SK          string                 `dynamodbav:"GSI2SK,omitempty"` // <created_at>#<node_id>
	EntityType      string                 `dynamodbav:"EntityType"`
	NodeID          string                 `dynamodbav:"NodeID"`
	ParentID        string                 `dynamodbav:"ParentID,omitempty"`
	RootID          string                 `dynamodbav:"RootID"`
	NodeType        string                 `dynamodbav:"NodeType"`
	Content         string                 `dynamodbav:"Content"` // canonical JSON
	Metadata        map[string]interface{} `dynamodbav:"Metadata,omitempty"`
	PreviousSibling string                 `dynamodbav:"PreviousSibling,omitempty"`
	NextSibling     string                 `dynamodbav:"NextSibling,omitempty"`
	Relationships   string                 `dynamodbav:"Relationships,omitempty"` // JSON
	Embeddings      string                 `dynamodbav:"Embeddings,omitempty"`    // JSON
	CreatedAt       string                 `dynamodbav:"CreatedAt"`
	UpdatedAt       string                 `dynamodbav:"UpdatedAt"`
	Version         int                    `dynamodbav:"Version"`
}

func nodePK(id valueobjects.NodeID) string   { return fmt.Sprintf("NODE#%s", id) }
func rootPK(id valueobjects.NodeID) string   { return fmt.Sprintf("ROOT#%s", id) }
func parentPK(id valueobjects.NodeID) string { return fmt.Sprintf("PARENT#%s", id) }

func childSK(n *entities.Node) string {
	return fmt.Sprintf("%s#%s", utils.FormatTimestamp(n.CreatedAt()), n.ID())
}

// NodeKey returns the primary key of a node item
func NodeKey(id valueobjects.NodeID) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: nodePK(id)},
		"SK": &types.AttributeValueMemberS{Value: metadataSK},
	}
}

// ToNodeItem maps a node to its stored form
func ToNodeItem(n *entities.Node) (*NodeItem, error) {
	if n == nil {
		return nil, pkgerrors.RequiredField(itemService, "node", "ToNodeItem")
	}
	item := &NodeItem{
		PK:              nodePK(n.ID()),
		SK:              metadataSK,
		GSI1PK:          rootPK(n.Root()),
		GSI1SK:          nodePK(n.ID()),
		EntityType:      "NODE",
		NodeID:          n.ID().String(),
		ParentID:        n.ParentID().String(),
		RootID:          n.Root().String(),
		NodeType:        n.Type().String(),
		Content:         string(n.Content().Raw()),
		PreviousSibling: n.PreviousSibling().String(),
		NextSibling:     n.NextSibling().String(),
		CreatedAt:       utils.FormatTimestamp(n.CreatedAt()),
		UpdatedAt:       utils.FormatTimestamp(n.UpdatedAt()),
		Version:         n.Version(),
	}
	if !n.IsRoot() {
		item.GSI2PK = parentPK(n.ParentID())
		item.GSI2SK = childSK(n)
	}
	if md := n.Metadata(); len(md) > 0 {
		item.Metadata = md
	}
	if refs := n.Relationships(); len(refs) > 0 {
		raw, err := encodeRelationships(refs)
		if err != nil {
			return nil, err
		}
		item.Relationships = raw
	}
	if set := n.Embeddings(); !set.IsEmpty() {
		raw, err := json.Marshal(set)
		if err != nil {
			return nil, pkgerrors.SerializationFailed(itemService, "json", "EmbeddingSet", err)
		}
		item.Embeddings = string(raw)
	}
	return item, nil
}

// NodeToItem maps a node to DynamoDB attribute values
func NodeToItem(n *entities.Node) (map[string]types.AttributeValue, error) {
	item, err := ToNodeItem(n)
	if err != nil {
		return nil, err
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return nil, pkgerrors.SerializationFailed(itemService, "dynamodb", "NodeItem", err)
	}
	return av, nil
}

// ItemToNode rebuilds a node from DynamoDB attribute values
func ItemToNode(av map[string]types.AttributeValue) (*entities.Node, error) {
	var item NodeItem
	if err := attributevalue.UnmarshalMap(av, &item); err != nil {
		return nil, pkgerrors.SerializationFailed(itemService, "dynamodb", "NodeItem", err)
	}
	return item.ToNode()
}

// ToNode rebuilds the node held by the item
func (item *NodeItem) ToNode() (*entities.Node, error) {
	if item.EntityType != "" && item.EntityType != "NODE" {
		return nil, pkgerrors.InvalidFormat(itemService, "EntityType", "NODE", item.EntityType)
	}

	id, err := valueobjects.ParseNodeID(item.NodeID)
	if err != nil {
		return nil, err
	}
	root, err := valueobjects.ParseNodeID(item.RootID)
	if err != nil {
		return nil, err
	}
	parent, err := optionalID(item.ParentID)
	if err != nil {
		return nil, err
	}
	prev, err := optionalID(item.PreviousSibling)
	if err != nil {
		return nil, err
	}
	next, err := optionalID(item.NextSibling)
	if err != nil {
		return nil, err
	}
	content, err := valueobjects.ContentFromJSON([]byte(item.Content))
	if err != nil {
		return nil, err
	}
	created, err := utils.ParseTimestamp(item.CreatedAt)
	if err != nil {
		return nil, pkgerrors.InvalidFormat(itemService, "CreatedAt", "RFC3339 timestamp", item.CreatedAt)
	}
	updated, err := utils.ParseTimestamp(item.UpdatedAt)
	if err != nil {
		return nil, pkgerrors.InvalidFormat(itemService, "UpdatedAt", "RFC3339 timestamp", item.UpdatedAt)
	}

	var refs []valueobjects.RelationshipRef
	if item.Relationships != "" {
		if err := json.Unmarshal([]byte(item.Relationships), &refs); err != nil {
			return nil, pkgerrors.SerializationFailed(itemService, "json", "RelationshipRef", err)
		}
	}

	var set entities.EmbeddingSet
	if item.Embeddings != "" {
		if err := json.Unmarshal([]byte(item.Embeddings), &set); err != nil {
			if _, ok := pkgerrors.As(err); ok {
				return nil, pkgerrors.Wrap(err, itemService, "decoding embeddings")
			}
			return nil, pkgerrors.SerializationFailed(itemService, "json", "EmbeddingSet", err)
		}
	}

	return entities.ReconstructNode(entities.Snapshot{
		ID:              id,
		Content:         content,
		ParentID:        parent,
		RootID:          root,
		Metadata:        item.Metadata,
		PreviousSibling: prev,
		NextSibling:     next,
		Relationships:   refs,
		Embeddings:      set,
		CreatedAt:       created,
		UpdatedAt:       updated,
		Version:         item.Version,
	})
}

func encodeRelationships(refs []valueobjects.RelationshipRef) (string, error) {
	raw, err := json.Marshal(refs)
	if err != nil {
		return "", pkgerrors.SerializationFailed(itemService, "json", "RelationshipRef", err)
	}
	return string(raw), nil
}

func optionalID(s string) (valueobjects.NodeID, error) {
	if strings.TrimSpace(s) == "" {
		return valueobjects.NodeID{}, nil
	}
	return valueobjects.ParseNodeID(s)
}

// PutNodeInput builds the request that stores a new node. It fails if the
// node already exists.
func PutNodeInput(table string, n *entities.Node) (*dynamodb.PutItemInput, error) {
	item, err := NodeToItem(n)
	if err != nil {
		return nil, err
	}
	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name("PK"))).
		Build()
	if err != nil {
		return nil, pkgerrors.SerializationFailed(itemService, "expression", "PutItem", err)
	}
	return &dynamodb.PutItemInput{
		TableName:                aws.String(table),
		Item:                     item,
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	}, nil
}

// ReparentUpdate builds the compare-and-swap that publishes a moved or
// re-rooted node: it applies only if the stored version is still the one
// before was read at
func ReparentUpdate(table string, before, after *entities.Node) (*dynamodb.UpdateItemInput, error) {
	expr, err := relationExpression(before, after)
	if err != nil {
		return nil, err
	}
	return &dynamodb.UpdateItemInput{
		TableName:                 aws.String(table),
		Key:                       NodeKey(after.ID()),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}, nil
}

// ReparentTransaction builds the writes that move a subtree: the moved node
// and every re-rooted descendant, in batches the TransactWriteItems API
// accepts. Each write is guarded on the version its node was read at.
func ReparentTransaction(table string, changes []NodeChange) ([]*dynamodb.TransactWriteItemsInput, error) {
	var (
		out   []*dynamodb.TransactWriteItemsInput
		batch []types.TransactWriteItem
	)
	for _, c := range changes {
		expr, err := relationExpression(c.Before, c.After)
		if err != nil {
			return nil, err
		}
		batch = append(batch, types.TransactWriteItem{
			Update: &types.Update{
				TableName:                 aws.String(table),
				Key:                       NodeKey(c.After.ID()),
				UpdateExpression:          expr.Update(),
				ConditionExpression:       expr.Condition(),
				ExpressionAttributeNames:  expr.Names(),
				ExpressionAttributeValues: expr.Values(),
			},
		})
		if len(batch) == maxTransactItems {
			out = append(out, &dynamodb.TransactWriteItemsInput{TransactItems: batch})
			batch = nil
		}
	}
	if len(batch) > 0 {
		out = append(out, &dynamodb.TransactWriteItemsInput{TransactItems: batch})
	}
	return out, nil
}

// NodeChange is one node before and after a mutation
type NodeChange struct {
	Before *entities.Node
	After  *entities.Node
}

func relationExpression(before, after *entities.Node) (expression.Expression, error) {
	if before == nil || after == nil {
		return expression.Expression{}, pkgerrors.RequiredField(itemService, "node", "ReparentUpdate")
	}
	if !before.ID().Equals(after.ID()) {
		return expression.Expression{}, pkgerrors.BusinessRule(itemService, "before and after must be the same node")
	}

	update := expression.
		Set(expression.Name("RootID"), expression.Value(after.Root().String())).
		Set(expression.Name("GSI1PK"), expression.Value(rootPK(after.Root()))).
		Set(expression.Name("UpdatedAt"), expression.Value(utils.FormatTimestamp(after.UpdatedAt()))).
		Set(expression.Name("Version"), expression.Value(after.Version()))
	if after.IsRoot() {
		update = update.
			Remove(expression.Name("ParentID")).
			Remove(expression.Name("GSI2PK")).
			Remove(expression.Name("GSI2SK"))
	} else {
		update = update.
			Set(expression.Name("ParentID"), expression.Value(after.ParentID().String())).
			Set(expression.Name("GSI2PK"), expression.Value(parentPK(after.ParentID()))).
			Set(expression.Name("GSI2SK"), expression.Value(childSK(after)))
	}
	if after.PreviousSibling().IsZero() {
		update = update.Remove(expression.Name("PreviousSibling"))
	} else {
		update = update.Set(expression.Name("PreviousSibling"), expression.Value(after.PreviousSibling().String()))
	}
	if after.NextSibling().IsZero() {
		update = update.Remove(expression.Name("NextSibling"))
	} else {
		update = update.Set(expression.Name("NextSibling"), expression.Value(after.NextSibling().String()))
	}

	cond := expression.Name("Version").Equal(expression.Value(before.Version()))
	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return expression.Expression{}, pkgerrors.SerializationFailed(itemService, "expression", "UpdateItem", err)
	}
	return expr, nil
}

// ContentUpdate builds the compare-and-swap that publishes new content
func ContentUpdate(table string, before, after *entities.Node) (*dynamodb.UpdateItemInput, error) {
	if before == nil || after == nil {
		return nil, pkgerrors.RequiredField(itemService, "node", "ContentUpdate")
	}
	update := expression.
		Set(expression.Name("Content"), expression.Value(string(after.Content().Raw()))).
		Set(expression.Name("NodeType"), expression.Value(after.Type().String())).
		Set(expression.Name("UpdatedAt"), expression.Value(utils.FormatTimestamp(after.UpdatedAt()))).
		Set(expression.Name("Version"), expression.Value(after.Version()))
	cond := expression.Name("Version").Equal(expression.Value(before.Version()))
	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return nil, pkgerrors.SerializationFailed(itemService, "expression", "UpdateItem", err)
	}
	return &dynamodb.UpdateItemInput{
		TableName:                 aws.String(table),
		Key:                       NodeKey(after.ID()),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}, nil
}

// RelationshipUpdate builds the compare-and-swap that publishes a node's
// relationship list after a relate or unrelate
func RelationshipUpdate(table string, before, after *entities.Node) (*dynamodb.UpdateItemInput, error) {
	if before == nil || after == nil {
		return nil, pkgerrors.RequiredField(itemService, "node", "RelationshipUpdate")
	}
	if !before.ID().Equals(after.ID()) {
		return nil, pkgerrors.BusinessRule(itemService, "before and after must be the same node")
	}

	update := expression.
		Set(expression.Name("UpdatedAt"), expression.Value(utils.FormatTimestamp(after.UpdatedAt()))).
		Set(expression.Name("Version"), expression.Value(after.Version()))
	if refs := after.Relationships(); len(refs) > 0 {
		raw, err := encodeRelationships(refs)
		if err != nil {
			return nil, err
		}
		update = update.Set(expression.Name("Relationships"), expression.Value(raw))
	} else {
		update = update.Remove(expression.Name("Relationships"))
	}
	cond := expression.Name("Version").Equal(expression.Value(before.Version()))
	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return nil, pkgerrors.SerializationFailed(itemService, "expression", "UpdateItem", err)
	}
	return &dynamodb.UpdateItemInput{
		TableName:                 aws.String(table),
		Key:                       NodeKey(after.ID()),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}, nil
}

// TreeQuery builds the query returning every node under rootID, root included
func TreeQuery(table string, rootID valueobjects.NodeID) (*dynamodb.QueryInput, error) {
	return indexQuery(table, RootIndex, "GSI1PK", rootPK(rootID))
}

// ChildrenQuery builds the query returning the children of parentID in
// creation order
func ChildrenQuery(table string, parentID valueobjects.NodeID) (*dynamodb.QueryInput, error) {
	return indexQuery(table, ParentIndex, "GSI2PK", parentPK(parentID))
}

func indexQuery(table, index, key, value string) (*dynamodb.QueryInput, error) {
	keyCond := expression.Key(key).Equal(expression.Value(value))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, pkgerrors.SerializationFailed(itemService, "expression", "Query", err)
	}
	return &dynamodb.QueryInput{
		TableName:                 aws.String(table),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}, nil
}
