package services

import (
	"context"
	"fmt"

	"mingle_server/models"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// PairRepository is the persistence boundary for pair records. All writes go
// through conditional puts so the match predicate is only ever evaluated
// against durably visible state; a lost race surfaces as utils.ErrConflict
// and the caller re-reads and retries.
type PairRepository interface {
	// Get returns the record for the canonical pair key, or utils.ErrNotFound.
	Get(ctx context.Context, pairKey string) (*models.PairRecord, error)
	// Create stores a brand-new record; utils.ErrConflict if one appeared
	// concurrently.
	Create(ctx context.Context, record *models.PairRecord) error
	// Update stores the record if the stored version still equals
	// expectedVersion; utils.ErrConflict otherwise. record.Version must
	// already be bumped past expectedVersion.
	Update(ctx context.Context, record *models.PairRecord, expectedVersion int64) error
	// ListByMember returns every pair record the user is a member of.
	ListByMember(ctx context.Context, userID string) ([]models.PairRecord, error)
}

// DynamoPairRepository stores pair records in the Pairs table.
type DynamoPairRepository struct {
	Dynamo *DynamoService
}

func (r *DynamoPairRepository) Get(ctx context.Context, pairKey string) (*models.PairRecord, error) {
	key := map[string]types.AttributeValue{
		"pairKey": &types.AttributeValueMemberS{Value: pairKey},
	}
	item, err := r.Dynamo.GetItem(ctx, models.PairsTable, key)
	if err != nil {
		return nil, err
	}
	var record models.PairRecord
	if err := attributevalue.UnmarshalMap(item, &record); err != nil {
		return nil, fmt.Errorf("failed to parse pair record: %w", err)
	}
	if record.Actions == nil {
		record.Actions = make(map[string]models.PairAction)
	}
	return &record, nil
}

func (r *DynamoPairRepository) Create(ctx context.Context, record *models.PairRecord) error {
	return r.Dynamo.PutItemConditional(ctx, models.PairsTable, record,
		"attribute_not_exists(pairKey)", nil)
}

func (r *DynamoPairRepository) Update(ctx context.Context, record *models.PairRecord, expectedVersion int64) error {
	return r.Dynamo.PutItemConditional(ctx, models.PairsTable, record,
		"version = :expected",
		map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", expectedVersion)},
		})
}

func (r *DynamoPairRepository) ListByMember(ctx context.Context, userID string) ([]models.PairRecord, error) {
	tableName := models.PairsTable
	filter := "contains(members, :u)"
	input := &dynamodb.ScanInput{
		TableName:        &tableName,
		FilterExpression: &filter,
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":u": &types.AttributeValueMemberS{Value: userID},
		},
	}

	var records []models.PairRecord
	for {
		items, lastKey, err := r.Dynamo.ScanPage(ctx, input)
		if err != nil {
			return nil, err
		}
		var page []models.PairRecord
		if err := attributevalue.UnmarshalListOfMaps(items, &page); err != nil {
			return nil, fmt.Errorf("failed to parse pair records: %w", err)
		}
		records = append(records, page...)
		if lastKey == nil {
			break
		}
		input.ExclusiveStartKey = lastKey
	}
	return records, nil
}
