package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-carrier-billing/internal/domain"
)

// BillingRecordRepo persists flow attempt/completion traces.
// PK: record_id. GSI subject-index: (subject).
type BillingRecordRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewBillingRecordRepo(client *dynamodb.Client, tableName string) *BillingRecordRepo {
	return &BillingRecordRepo{client: client, tableName: tableName}
}

func (r *BillingRecordRepo) Put(ctx context.Context, rec *domain.BillingRecord) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal billing record: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

// ListBySubject returns records for a subject via the subject-index GSI,
// newest first by record id (ULIDs sort by creation time).
func (r *BillingRecordRepo) ListBySubject(ctx context.Context, subject string, limit int32) ([]domain.BillingRecord, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("subject-index"),
		KeyConditionExpression: aws.String("#s = :s"),
		ExpressionAttributeNames: map[string]string{
			"#s": "subject",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":s": &types.AttributeValueMemberS{Value: subject},
		},
		Limit:            aws.Int32(limit),
		ScanIndexForward: aws.Bool(false),
	})
	if err != nil {
		return nil, err
	}
	var recs []domain.BillingRecord
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}
