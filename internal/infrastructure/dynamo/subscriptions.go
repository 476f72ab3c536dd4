package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/go-carrier-billing/internal/domain"
)

// SubscriptionRepo persists subscription lifecycle records.
// PK: operator, SK: subject.
type SubscriptionRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewSubscriptionRepo(client *dynamodb.Client, tableName string) *SubscriptionRepo {
	return &SubscriptionRepo{client: client, tableName: tableName}
}

func (r *SubscriptionRepo) Put(ctx context.Context, s *domain.Subscription) error {
	item, err := attributevalue.MarshalMap(s)
	if err != nil {
		return fmt.Errorf("marshal subscription: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *SubscriptionRepo) Get(ctx context.Context, operator, subject string) (*domain.Subscription, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       compositeKey("operator", operator, "subject", subject),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("subscription %s/%s: %w", operator, subject, domain.ErrReferenceNotFound)
	}
	var s domain.Subscription
	if err := attributevalue.UnmarshalMap(out.Item, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateFields applies a partial update to the record.
func (r *SubscriptionRepo) UpdateFields(ctx context.Context, operator, subject string, updates map[string]interface{}) error {
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       compositeKey("operator", operator, "subject", subject),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	return err
}

func (r *SubscriptionRepo) Delete(ctx context.Context, operator, subject string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       compositeKey("operator", operator, "subject", subject),
	})
	return err
}
