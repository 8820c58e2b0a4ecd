package database

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// TableSpec is the key schema of one table. RangeKey is optional.
type TableSpec struct {
	Name      string
	HashKey   string
	HashType  types.ScalarAttributeType
	RangeKey  string
	RangeType types.ScalarAttributeType
}

// EnsureTable creates the table with on-demand billing if it does not exist
// and waits up to wait for it to become active.
func (c *DynamoDBClient) EnsureTable(ctx context.Context, spec TableSpec, wait time.Duration) error {
	_, err := c.svc.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(spec.Name)})
	if err == nil {
		return nil
	}
	if !isResourceNotFound(err) {
		return fmt.Errorf("describe table %s: %w", spec.Name, err)
	}

	if _, err := c.svc.CreateTable(ctx, createTableInput(spec)); err != nil {
		if ErrorCode(err) != "ResourceInUseException" {
			return fmt.Errorf("create table %s: %w", spec.Name, err)
		}
	} else {
		log.Printf("[database] created table %s", spec.Name)
	}

	waiter := dynamodb.NewTableExistsWaiter(c.svc)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(spec.Name)}, wait); err != nil {
		return fmt.Errorf("wait for table %s: %w", spec.Name, err)
	}
	return nil
}

func createTableInput(spec TableSpec) *dynamodb.CreateTableInput {
	input := &dynamodb.CreateTableInput{
		TableName:   aws.String(spec.Name),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(spec.HashKey), AttributeType: spec.HashType},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(spec.HashKey), KeyType: types.KeyTypeHash},
		},
	}
	if spec.RangeKey != "" {
		input.AttributeDefinitions = append(input.AttributeDefinitions,
			types.AttributeDefinition{AttributeName: aws.String(spec.RangeKey), AttributeType: spec.RangeType})
		input.KeySchema = append(input.KeySchema,
			types.KeySchemaElement{AttributeName: aws.String(spec.RangeKey), KeyType: types.KeyTypeRange})
	}
	return input
}

func isResourceNotFound(err error) bool {
	var rnf *types.ResourceNotFoundException
	return errors.As(err, &rnf) || ErrorCode(err) == "ResourceNotFoundException"
}
