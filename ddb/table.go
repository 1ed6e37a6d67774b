package ddb

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/pointers/store"
)

// TableAPI is the subset of the DynamoDB API used to provision tables.
type TableAPI interface {
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DeleteTable(ctx context.Context, params *dynamodb.DeleteTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// TableInput describes the pointer table for cfg: string keys pk/sk, the
// subject index on pk_1/sk_1 projecting all attributes, and a stream of new
// and old images for the change feed. Empty names fall back to DefaultConfig.
func TableInput(cfg store.Config) *dynamodb.CreateTableInput {
	def := store.DefaultConfig()
	if cfg.TableName == "" {
		cfg.TableName = def.TableName
	}
	if cfg.IndexName == "" {
		cfg.IndexName = def.IndexName
	}
	str := func(name string) types.AttributeDefinition {
		return types.AttributeDefinition{AttributeName: aws.String(name), AttributeType: types.ScalarAttributeTypeS}
	}
	return &dynamodb.CreateTableInput{
		TableName: aws.String(cfg.QualifiedTableName()),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("pk"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("sk"), KeyType: types.KeyTypeRange},
		},
		AttributeDefinitions: []types.AttributeDefinition{str("pk"), str("sk"), str("pk_1"), str("sk_1")},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			{
				IndexName: aws.String(cfg.IndexName),
				KeySchema: []types.KeySchemaElement{
					{AttributeName: aws.String("pk_1"), KeyType: types.KeyTypeHash},
					{AttributeName: aws.String("sk_1"), KeyType: types.KeyTypeRange},
				},
				Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
			},
		},
		BillingMode: types.BillingModePayPerRequest,
		StreamSpecification: &types.StreamSpecification{
			StreamEnabled:  aws.Bool(true),
			StreamViewType: types.StreamViewTypeNewAndOldImages,
		},
	}
}

// CreateTable creates the pointer table and waits up to maxWait for it to
// become active.
func CreateTable(ctx context.Context, client TableAPI, cfg store.Config, maxWait time.Duration) error {
	input := TableInput(cfg)
	if _, err := client.CreateTable(ctx, input); err != nil {
		return fmt.Errorf("create table %s: %w", aws.ToString(input.TableName), err)
	}
	waiter := dynamodb.NewTableExistsWaiter(client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: input.TableName}, maxWait); err != nil {
		return fmt.Errorf("wait for table %s: %w", aws.ToString(input.TableName), err)
	}
	return nil
}

// DeleteTable deletes the pointer table.
func DeleteTable(ctx context.Context, client TableAPI, cfg store.Config) error {
	name := cfg.QualifiedTableName()
	if _, err := client.DeleteTable(ctx, &dynamodb.DeleteTableInput{TableName: aws.String(name)}); err != nil {
		return fmt.Errorf("delete table %s: %w", name, err)
	}
	return nil
}
