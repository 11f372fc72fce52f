package services

import (
	"context"
	"fmt"

	"mingle_server/models"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// MessageRepository is the persistence boundary for chat messages. Messages
// are append-only; no write ever needs cross-request serialization.
type MessageRepository interface {
	// Append stores a new message.
	Append(ctx context.Context, message models.Message) error
	// ListByPair returns one page of messages, oldest-first within the
	// page. Page 1 holds the most recent messages; hasMore reports whether
	// older pages exist.
	ListByPair(ctx context.Context, pairID string, page, limit int) ([]models.Message, bool, error)
	// MarkRead stamps readAt on every unread message addressed to readerID.
	MarkRead(ctx context.Context, pairID, readerID, readAt string) error
}

// dynamoMessage adds the range key to the stored shape.
type dynamoMessage struct {
	models.Message
	SortKey string `dynamodbav:"sk"`
}

// DynamoMessageRepository stores messages in the Messages table, keyed by
// pairId with a createdAt#messageId range key.
type DynamoMessageRepository struct {
	Dynamo *DynamoService
}

func (r *DynamoMessageRepository) Append(ctx context.Context, message models.Message) error {
	item := dynamoMessage{Message: message, SortKey: message.SortKey()}
	return r.Dynamo.PutItem(ctx, models.MessagesTable, item)
}

func (r *DynamoMessageRepository) ListByPair(ctx context.Context, pairID string, page, limit int) ([]models.Message, bool, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}

	tableName := models.MessagesTable
	keyCondition := "pairId = :pairId"
	input := &dynamodb.QueryInput{
		TableName:              &tableName,
		KeyConditionExpression: &keyCondition,
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pairId": &types.AttributeValueMemberS{Value: pairID},
		},
		// Newest first; pages count back from the tail of the history.
		ScanIndexForward: boolPtr(false),
	}

	skip := (page - 1) * limit
	var collected []models.Message
	hasMore := false
	for {
		items, lastKey, err := r.Dynamo.QueryPage(ctx, input)
		if err != nil {
			return nil, false, err
		}
		var batch []dynamoMessage
		if err := attributevalue.UnmarshalListOfMaps(items, &batch); err != nil {
			return nil, false, fmt.Errorf("failed to parse messages: %w", err)
		}
		for _, item := range batch {
			if skip > 0 {
				skip--
				continue
			}
			if len(collected) < limit {
				collected = append(collected, item.Message)
				continue
			}
			hasMore = true
			break
		}
		if hasMore || lastKey == nil {
			break
		}
		input.ExclusiveStartKey = lastKey
	}

	// Flip the newest-first query order back to oldest-first for display.
	for i, j := 0, len(collected)-1; i < j; i, j = i+1, j-1 {
		collected[i], collected[j] = collected[j], collected[i]
	}
	return collected, hasMore, nil
}

func (r *DynamoMessageRepository) MarkRead(ctx context.Context, pairID, readerID, readAt string) error {
	tableName := models.MessagesTable
	keyCondition := "pairId = :pairId"
	filter := "receiverId = :reader AND attribute_not_exists(readAt)"
	input := &dynamodb.QueryInput{
		TableName:              &tableName,
		KeyConditionExpression: &keyCondition,
		FilterExpression:       &filter,
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pairId": &types.AttributeValueMemberS{Value: pairID},
			":reader": &types.AttributeValueMemberS{Value: readerID},
		},
	}

	for {
		items, lastKey, err := r.Dynamo.QueryPage(ctx, input)
		if err != nil {
			return err
		}
		for _, item := range items {
			skAttr, ok := item["sk"].(*types.AttributeValueMemberS)
			if !ok {
				continue
			}
			key := map[string]types.AttributeValue{
				"pairId": &types.AttributeValueMemberS{Value: pairID},
				"sk":     skAttr,
			}
			_, err := r.Dynamo.UpdateItem(ctx, tableName, "SET readAt = :readAt", key,
				map[string]types.AttributeValue{
					":readAt": &types.AttributeValueMemberS{Value: readAt},
				}, nil)
			if err != nil {
				return err
			}
		}
		if lastKey == nil {
			return nil
		}
		input.ExclusiveStartKey = lastKey
	}
}

func boolPtr(b bool) *bool { return &b }
