package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/go-carrier-billing/internal/domain"
)

// AnonymousRefRepo stores subject→reference mappings for operators that
// return anonymous references. The termination path depends on this
// mapping; when it is missing the caller fails fast.
// PK: operator, SK: anonymous_id.
type AnonymousRefRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewAnonymousRefRepo(client *dynamodb.Client, tableName string) *AnonymousRefRepo {
	return &AnonymousRefRepo{client: client, tableName: tableName}
}

func (r *AnonymousRefRepo) Put(ctx context.Context, m *domain.AnonymousRefMapping) error {
	item, err := attributevalue.MarshalMap(m)
	if err != nil {
		return fmt.Errorf("marshal anonymous ref mapping: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *AnonymousRefRepo) Get(ctx context.Context, operator, anonymousID string) (*domain.AnonymousRefMapping, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       compositeKey("operator", operator, "anonymous_id", anonymousID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("anonymous ref %s/%s: %w", operator, anonymousID, domain.ErrReferenceNotFound)
	}
	var m domain.AnonymousRefMapping
	if err := attributevalue.UnmarshalMap(out.Item, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *AnonymousRefRepo) Delete(ctx context.Context, operator, anonymousID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       compositeKey("operator", operator, "anonymous_id", anonymousID),
	})
	return err
}
