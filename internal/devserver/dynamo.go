package devserver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/nikbrunner/bmsync/internal/model"
)

// DynamoDBAPI is the subset of the DynamoDB client the repository uses.
type DynamoDBAPI interface {
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// DynamoRepository stores bookmarks in a table keyed by the string
// attribute "id".
type DynamoRepository struct {
	client    DynamoDBAPI
	tableName string
	logger    *zap.Logger

	// tableWait tunes the wait for a newly created table.
	tableWait func(*dynamodb.TableExistsWaiterOptions)
}

// NewDynamoRepository creates a repository over tableName.
func NewDynamoRepository(client DynamoDBAPI, tableName string, logger *zap.Logger) *DynamoRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DynamoRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
		tableWait: func(*dynamodb.TableExistsWaiterOptions) {},
	}
}

// EnsureTable creates the table with on-demand billing unless it exists,
// then waits for it to become active.
func (r *DynamoRepository) EnsureTable(ctx context.Context, timeout time.Duration) (created bool, err error) {
	_, err = r.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(r.tableName)})
	if err == nil {
		return false, nil
	}
	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return false, fmt.Errorf("failed to describe table: %w", err)
	}

	_, err = r.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(r.tableName),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("id"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("id"), KeyType: types.KeyTypeHash},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		return false, fmt.Errorf("failed to create table: %w", err)
	}
	r.logger.Info("created table", zap.String("table", r.tableName))

	waiter := dynamodb.NewTableExistsWaiter(r.client, r.tableWait)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(r.tableName)}, timeout); err != nil {
		return true, fmt.Errorf("failed waiting for table: %w", err)
	}
	return true, nil
}

func (r *DynamoRepository) List(ctx context.Context) ([]model.Bookmark, error) {
	bookmarks := []model.Bookmark{}
	paginator := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{
		TableName: aws.String(r.tableName),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bookmarks: %w", err)
		}
		var items []model.Bookmark
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal bookmarks: %w", err)
		}
		bookmarks = append(bookmarks, items...)
	}
	return bookmarks, nil
}

func (r *DynamoRepository) Create(ctx context.Context, title, url string) (model.Bookmark, error) {
	b := model.NewBookmark(model.NewBookmarkParams{Title: title, URL: url})
	item, err := attributevalue.MarshalMap(b)
	if err != nil {
		return model.Bookmark{}, fmt.Errorf("failed to marshal bookmark: %w", err)
	}

	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name("id"))).
		Build()
	if err != nil {
		return model.Bookmark{}, fmt.Errorf("failed to build expression: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(r.tableName),
		Item:                     item,
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	})
	if err != nil {
		return model.Bookmark{}, fmt.Errorf("failed to put bookmark: %w", err)
	}
	return b, nil
}

func (r *DynamoRepository) Update(ctx context.Context, id, title, url string) (model.Bookmark, error) {
	update := expression.
		Set(expression.Name("title"), expression.Value(title)).
		Set(expression.Name("url"), expression.Value(url))
	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(expression.AttributeExists(expression.Name("id"))).
		Build()
	if err != nil {
		return model.Bookmark{}, fmt.Errorf("failed to build expression: %w", err)
	}

	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       r.key(id),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return model.Bookmark{}, ErrNotFound
		}
		return model.Bookmark{}, fmt.Errorf("failed to update bookmark: %w", err)
	}

	var b model.Bookmark
	if err := attributevalue.UnmarshalMap(out.Attributes, &b); err != nil {
		return model.Bookmark{}, fmt.Errorf("failed to unmarshal bookmark: %w", err)
	}
	return b, nil
}

func (r *DynamoRepository) Delete(ctx context.Context, id string) (bool, error) {
	out, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(r.tableName),
		Key:          r.key(id),
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete bookmark: %w", err)
	}
	return len(out.Attributes) > 0, nil
}

// BatchDelete deletes the items one by one and reports which of them existed.
func (r *DynamoRepository) BatchDelete(ctx context.Context, ids []string) ([]string, error) {
	deleted := []string{}
	for _, id := range ids {
		ok, err := r.Delete(ctx, id)
		if err != nil {
			return deleted, err
		}
		if ok {
			deleted = append(deleted, id)
		}
	}
	return deleted, nil
}

func (r *DynamoRepository) key(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	}
}
