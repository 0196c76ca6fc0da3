package db

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/damon-houk/donation-transaction-service/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// DynamoDBAPI is the subset of the DynamoDB client the store uses
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// transactionItem is the DynamoDB shape of a transaction, keyed by "id"
type transactionItem struct {
	ID              string `dynamodbav:"id"`
	Amount          string `dynamodbav:"amount"`
	CharityID       string `dynamodbav:"charity_id"`
	DonorName       string `dynamodbav:"donor_name"`
	PaymentMethod   string `dynamodbav:"payment_method"`
	Status          string `dynamodbav:"status"`
	Message         string `dynamodbav:"message,omitempty"`
	TransactionHash string `dynamodbav:"transaction_hash,omitempty"`
	CreatedAt       string `dynamodbav:"created_at"`
	UpdatedAt       string `dynamodbav:"updated_at,omitempty"`
}

func toItem(tx *entity.Transaction) transactionItem {
	item := transactionItem{
		ID:              tx.ID,
		Amount:          tx.Amount.String(),
		CharityID:       tx.CharityID,
		DonorName:       tx.DonorName,
		PaymentMethod:   tx.PaymentMethod,
		Status:          string(tx.Status),
		Message:         tx.Message,
		TransactionHash: tx.TransactionHash,
		CreatedAt:       tx.CreatedAt.Format(time.RFC3339Nano),
	}
	if tx.UpdatedAt != nil {
		item.UpdatedAt = tx.UpdatedAt.Format(time.RFC3339Nano)
	}
	return item
}

func (i transactionItem) toEntity() (*entity.Transaction, error) {
	amount, err := decimal.NewFromString(i.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", i.Amount, err)
	}

	createdAt, err := time.Parse(time.RFC3339Nano, i.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at %q: %w", i.CreatedAt, err)
	}

	tx := &entity.Transaction{
		ID:              i.ID,
		Amount:          amount,
		CharityID:       i.CharityID,
		DonorName:       i.DonorName,
		PaymentMethod:   i.PaymentMethod,
		Status:          entity.Status(i.Status),
		Message:         i.Message,
		TransactionHash: i.TransactionHash,
		CreatedAt:       createdAt,
	}

	if i.UpdatedAt != "" {
		updatedAt, err := time.Parse(time.RFC3339Nano, i.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("invalid updated_at %q: %w", i.UpdatedAt, err)
		}
		tx.UpdatedAt = &updatedAt
	}

	return tx, nil
}

// DynamoDBTransactionRepository implements the transaction store on a DynamoDB table
// whose partition key is the string attribute "id"
type DynamoDBTransactionRepository struct {
	client    DynamoDBAPI
	tableName string
}

// NewDynamoDBTransactionRepository creates a new DynamoDB transaction repository
func NewDynamoDBTransactionRepository(client DynamoDBAPI, tableName string) *DynamoDBTransactionRepository {
	return &DynamoDBTransactionRepository{
		client:    client,
		tableName: tableName,
	}
}

// NewDynamoDBClient builds a client from the default AWS credential chain. A non-empty
// endpoint points it at a local emulator.
func NewDynamoDBClient(ctx context.Context, region, endpoint string) (*dynamodb.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

func (r *DynamoDBTransactionRepository) key(id string) map[string]dynamodbtypes.AttributeValue {
	return map[string]dynamodbtypes.AttributeValue{
		"id": &dynamodbtypes.AttributeValueMemberS{Value: id},
	}
}

// Get retrieves a transaction by id
func (r *DynamoDBTransactionRepository) Get(ctx context.Context, id string) (*entity.Transaction, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            r.key(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, storeError("failed to get transaction", err)
	}

	if len(result.Item) == 0 {
		return nil, nil
	}

	var item transactionItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, storeError("failed to unmarshal transaction", err)
	}

	tx, err := item.toEntity()
	if err != nil {
		return nil, storeError("failed to decode transaction", err)
	}
	return tx, nil
}

// Put inserts or replaces the transaction
func (r *DynamoDBTransactionRepository) Put(ctx context.Context, tx *entity.Transaction) (*entity.Transaction, error) {
	item, err := attributevalue.MarshalMap(toItem(tx))
	if err != nil {
		return nil, storeError("failed to marshal transaction", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	if err != nil {
		return nil, storeError("failed to save transaction", err)
	}

	return tx.Clone(), nil
}

// Delete removes the transaction and reports whether it existed
func (r *DynamoDBTransactionRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(r.tableName),
		Key:          r.key(id),
		ReturnValues: dynamodbtypes.ReturnValueAllOld,
	})
	if err != nil {
		return false, storeError("failed to delete transaction", err)
	}

	return len(result.Attributes) > 0, nil
}

// ListAll scans the whole table, following pagination
func (r *DynamoDBTransactionRepository) ListAll(ctx context.Context) ([]*entity.Transaction, error) {
	txs := make([]*entity.Transaction, 0)

	paginator := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{
		TableName: aws.String(r.tableName),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, storeError("failed to scan transactions", err)
		}

		var items []transactionItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, storeError("failed to unmarshal transactions", err)
		}

		for _, item := range items {
			tx, err := item.toEntity()
			if err != nil {
				return nil, storeError("failed to decode transaction", err)
			}
			txs = append(txs, tx)
		}
	}

	return txs, nil
}
