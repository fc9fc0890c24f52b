package patient

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAPI is the subset of the DynamoDB client used by DynamoRepository.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

type DynamoRepository struct {
	client  DynamoAPI
	table   string
	keyAttr string
}

func NewDynamoRepository(client DynamoAPI, table, keyAttr string) *DynamoRepository {
	if keyAttr == "" {
		keyAttr = DefaultKeyAttribute
	}
	return &DynamoRepository{client: client, table: table, keyAttr: keyAttr}
}

func (r *DynamoRepository) Get(ctx context.Context, key string) (*Record, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.table),
		Key: map[string]types.AttributeValue{
			r.keyAttr: &types.AttributeValueMemberS{Value: key},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get item %s: %w", key, err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	return r.decode(out.Item)
}

func (r *DynamoRepository) Scan(ctx context.Context) ([]*Record, error) {
	paginator := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{
		TableName: aws.String(r.table),
	})

	var records []*Record
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", r.table, err)
		}
		for _, item := range page.Items {
			rec, err := r.decode(item)
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
		}
	}
	return records, nil
}

func (r *DynamoRepository) SetDiagnosis(ctx context.Context, key, diagnosis, updatedAt string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.table),
		Key: map[string]types.AttributeValue{
			r.keyAttr: &types.AttributeValueMemberS{Value: key},
		},
		UpdateExpression: aws.String("SET #d = :d, #u = :u"),
		ExpressionAttributeNames: map[string]string{
			"#d": AttrDiagnosis,
			"#u": AttrUpdatedAt,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":d": &types.AttributeValueMemberS{Value: diagnosis},
			":u": &types.AttributeValueMemberS{Value: updatedAt},
		},
	})
	if err != nil {
		return fmt.Errorf("update item %s: %w", key, err)
	}
	return nil
}

// Ping reports whether the table exists and is reachable with the current
// credentials.
func (r *DynamoRepository) Ping(ctx context.Context) error {
	out, err := r.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(r.table),
	})
	if err != nil {
		return fmt.Errorf("describe table %s: %w", r.table, err)
	}
	if out.Table != nil && out.Table.TableStatus != types.TableStatusActive && out.Table.TableStatus != types.TableStatusUpdating {
		return fmt.Errorf("table %s is %s", r.table, out.Table.TableStatus)
	}
	return nil
}

// decode keeps DynamoDB numbers as attributevalue.Number so no precision is
// lost before the response is written.
func (r *DynamoRepository) decode(item map[string]types.AttributeValue) (*Record, error) {
	var doc map[string]any
	err := attributevalue.UnmarshalMapWithOptions(item, &doc, func(o *attributevalue.DecoderOptions) {
		o.UseNumber = true
	})
	if err != nil {
		return nil, fmt.Errorf("decode item: %w", err)
	}
	return FromDocument(doc, r.keyAttr), nil
}
