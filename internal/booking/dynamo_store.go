package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// dynamoItem is the table row. The table key is (workspace_id, negotiation_id)
// and expires_at is the table's TTL attribute.
type dynamoItem struct {
	WorkspaceID   string `dynamodbav:"workspace_id"`
	NegotiationID string `dynamodbav:"negotiation_id"`
	Version       int64  `dynamodbav:"version"`
	Mode          string `dynamodbav:"mode"`
	Document      string `dynamodbav:"document"`
	UpdatedAt     string `dynamodbav:"updated_at"`
	ExpiresAt     int64  `dynamodbav:"expires_at,omitempty"`
}

// DynamoStore persists negotiations in DynamoDB using conditional writes on
// the version attribute.
type DynamoStore struct {
	client    dynamoAPI
	tableName string
	retention time.Duration
	now       func() time.Time
}

func NewDynamoStore(client dynamoAPI, tableName string, retention time.Duration) *DynamoStore {
	if client == nil {
		panic("booking: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("booking: table name cannot be empty")
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &DynamoStore{client: client, tableName: tableName, retention: retention, now: time.Now}
}

func (s *DynamoStore) item(n *Negotiation) (map[string]types.AttributeValue, error) {
	doc, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("booking: marshal negotiation: %w", err)
	}
	now := s.now().UTC()
	return attributevalue.MarshalMap(dynamoItem{
		WorkspaceID:   n.WorkspaceID,
		NegotiationID: n.ID,
		Version:       n.Version,
		Mode:          string(n.Mode),
		Document:      string(doc),
		UpdatedAt:     now.Format(time.RFC3339Nano),
		ExpiresAt:     now.Add(s.retention).Unix(),
	})
}

func (s *DynamoStore) Create(ctx context.Context, n *Negotiation) error {
	n.Version = 1
	item, err := s.item(n)
	if err != nil {
		return err
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(negotiation_id)"),
	})
	return s.writeErr(err)
}

func (s *DynamoStore) Get(ctx context.Context, workspaceID, id string) (*Negotiation, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"workspace_id":   &types.AttributeValueMemberS{Value: workspaceID},
			"negotiation_id": &types.AttributeValueMemberS{Value: id},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("booking: failed to fetch negotiation: %w", err)
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}
	var row dynamoItem
	if err := attributevalue.UnmarshalMap(out.Item, &row); err != nil {
		return nil, fmt.Errorf("booking: failed to decode negotiation: %w", err)
	}
	n, err := decodeNegotiation([]byte(row.Document))
	if err != nil {
		return nil, err
	}
	n.Version = row.Version
	return n, nil
}

func (s *DynamoStore) Save(ctx context.Context, n *Negotiation, expectedVersion int64) error {
	updated := n.clone()
	updated.Version = expectedVersion + 1
	item, err := s.item(updated)
	if err != nil {
		return err
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(s.tableName),
		Item:                     item,
		ConditionExpression:      aws.String("#version = :expected"),
		ExpressionAttributeNames: map[string]string{"#version": "version"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberN{Value: strconv.FormatInt(expectedVersion, 10)},
		},
	})
	if err := s.writeErr(err); err != nil {
		return err
	}
	n.Version = updated.Version
	return nil
}

func (s *DynamoStore) writeErr(err error) error {
	if err == nil {
		return nil
	}
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return ErrVersionConflict
	}
	return fmt.Errorf("booking: failed to persist negotiation: %w", err)
}
