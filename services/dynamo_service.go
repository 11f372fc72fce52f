package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"mingle_server/utils"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoService wraps the DynamoDB client with the handful of operations
// the repositories need.
type DynamoService struct {
	Client *dynamodb.Client
}

// InitializeDynamoDBClient initializes the DynamoDB client
func InitializeDynamoDBClient() *dynamodb.Client {
	cfg, err := awsconfig.LoadDefaultConfig(context.TODO(), awsconfig.WithRegion(os.Getenv("AWS_REGION")))
	if err != nil {
		log.Fatalf("Failed to load AWS config: %v", err)
	}
	return dynamodb.NewFromConfig(cfg)
}

// PutItem marshals and stores an item.
func (ds *DynamoService) PutItem(ctx context.Context, tableName string, item interface{}) error {
	marshaled, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}
	_, err = ds.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &tableName,
		Item:      marshaled,
	})
	if err != nil {
		return fmt.Errorf("%w: failed to put item in table '%s': %v", utils.ErrPersistence, tableName, err)
	}
	return nil
}

// PutItemConditional stores an item only if the condition expression holds.
// A failed condition maps to utils.ErrConflict so callers can retry.
func (ds *DynamoService) PutItemConditional(
	ctx context.Context,
	tableName string,
	item interface{},
	conditionExpression string,
	expressionAttributeValues map[string]types.AttributeValue,
) error {
	marshaled, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}
	_, err = ds.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 &tableName,
		Item:                      marshaled,
		ConditionExpression:       &conditionExpression,
		ExpressionAttributeValues: expressionAttributeValues,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return utils.ErrConflict
		}
		return fmt.Errorf("%w: failed to put item in table '%s': %v", utils.ErrPersistence, tableName, err)
	}
	return nil
}

// GetItem retrieves an item. Absent items map to utils.ErrNotFound.
func (ds *DynamoService) GetItem(ctx context.Context, tableName string, key map[string]types.AttributeValue) (map[string]types.AttributeValue, error) {
	output, err := ds.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &tableName,
		Key:       key,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get item from table '%s': %v", utils.ErrPersistence, tableName, err)
	}
	if output.Item == nil {
		return nil, utils.ErrNotFound
	}
	return output.Item, nil
}

// UpdateItem applies an update expression and returns the new attributes.
func (ds *DynamoService) UpdateItem(
	ctx context.Context,
	tableName string,
	updateExpression string,
	key map[string]types.AttributeValue,
	expressionAttributeValues map[string]types.AttributeValue,
	expressionAttributeNames map[string]string,
) (map[string]types.AttributeValue, error) {
	if len(key) == 0 {
		return nil, errors.New("update failed: key cannot be empty")
	}
	if updateExpression == "" {
		return nil, errors.New("update failed: updateExpression cannot be empty")
	}

	output, err := ds.Client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 &tableName,
		Key:                       key,
		UpdateExpression:          &updateExpression,
		ExpressionAttributeValues: expressionAttributeValues,
		ExpressionAttributeNames:  expressionAttributeNames,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to update item in table '%s': %v", utils.ErrPersistence, tableName, err)
	}
	if output.Attributes == nil {
		return map[string]types.AttributeValue{}, nil
	}
	return output.Attributes, nil
}

// QueryPage runs a query and returns items plus the pagination cursor.
func (ds *DynamoService) QueryPage(ctx context.Context, input *dynamodb.QueryInput) ([]map[string]types.AttributeValue, map[string]types.AttributeValue, error) {
	output, err := ds.Client.Query(ctx, input)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: failed to query table: %v", utils.ErrPersistence, err)
	}
	return output.Items, output.LastEvaluatedKey, nil
}

// ScanPage runs a scan and returns items plus the pagination cursor.
func (ds *DynamoService) ScanPage(ctx context.Context, input *dynamodb.ScanInput) ([]map[string]types.AttributeValue, map[string]types.AttributeValue, error) {
	output, err := ds.Client.Scan(ctx, input)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: failed to scan table: %v", utils.ErrPersistence, err)
	}
	return output.Items, output.LastEvaluatedKey, nil
}

// DeleteItem removes an item.
func (ds *DynamoService) DeleteItem(ctx context.Context, tableName string, key map[string]types.AttributeValue) error {
	_, err := ds.Client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: &tableName,
		Key:       key,
	})
	if err != nil {
		return fmt.Errorf("%w: failed to delete item from table '%s': %v", utils.ErrPersistence, tableName, err)
	}
	return nil
}
