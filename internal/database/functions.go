package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

// ErrConditionFailed reports that a conditional write found the item in a
// state other than the one the condition asked for.
var ErrConditionFailed = errors.New("dynamodb: condition check failed")

func AttrString(value string) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: value}
}

// AttrNumber renders an int64 as a DynamoDB number attribute.
func AttrNumber(value int64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", value)}
}

func (c *DynamoDBClient) PutItem(
	ctx context.Context,
	tableName string,
	item interface{},
) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(tableName),
		Item:      av,
	}

	_, err = c.svc.PutItem(ctx, input)
	if err != nil {
		return fmt.Errorf("put item %s: %w", tableName, err)
	}
	return nil
}

// PutItemIfAbsent writes item only when no item with the same hash key
// exists. keyAttr is the attribute name of the table's hash key.
func (c *DynamoDBClient) PutItemIfAbsent(
	ctx context.Context,
	tableName string,
	keyAttr string,
	item interface{},
) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName:           aws.String(tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(#key)"),
		ExpressionAttributeNames: map[string]string{
			"#key": keyAttr,
		},
	}

	_, err = c.svc.PutItem(ctx, input)
	if err != nil {
		if isConditionalCheckFailed(err) {
			return fmt.Errorf("put item %s: %w", tableName, ErrConditionFailed)
		}
		return fmt.Errorf("put item %s: %w", tableName, err)
	}
	return nil
}

func (c *DynamoDBClient) UpdateItem(
	ctx context.Context,
	tableName string,
	key map[string]types.AttributeValue,
	updateExpr string,
	exprAttrValues map[string]types.AttributeValue,
	exprAttrNames map[string]string,
	out interface{},
) error {
	input := &dynamodb.UpdateItemInput{
		TableName:                 aws.String(tableName),
		Key:                       key,
		UpdateExpression:          aws.String(updateExpr),
		ExpressionAttributeValues: exprAttrValues,
		ExpressionAttributeNames:  exprAttrNames,
		ReturnValues:              types.ReturnValueAllNew,
	}

	res, err := c.svc.UpdateItem(ctx, input)
	if err != nil {
		return fmt.Errorf("update item %s: %w", tableName, err)
	}

	if out != nil {
		if err := attributevalue.UnmarshalMap(res.Attributes, out); err != nil {
			return fmt.Errorf("unmarshal updated item: %w", err)
		}
	}
	return nil
}

func (c *DynamoDBClient) DeleteItem(
	ctx context.Context,
	tableName string,
	key map[string]types.AttributeValue,
) error {
	input := &dynamodb.DeleteItemInput{
		TableName: aws.String(tableName),
		Key:       key,
	}

	_, err := c.svc.DeleteItem(ctx, input)
	if err != nil {
		return fmt.Errorf("delete item %s: %w", tableName, err)
	}
	return nil
}

// QueryLatest returns up to limit items of one partition ordered by the range
// key, newest first.
func (c *DynamoDBClient) QueryLatest(
	ctx context.Context,
	tableName string,
	keyCondExpr string,
	exprAttrValues map[string]types.AttributeValue,
	exprAttrNames map[string]string,
	limit int32,
) ([]map[string]types.AttributeValue, error) {
	input := &dynamodb.QueryInput{
		TableName:                 aws.String(tableName),
		KeyConditionExpression:    aws.String(keyCondExpr),
		ExpressionAttributeValues: exprAttrValues,
		ScanIndexForward:          aws.Bool(false),
	}
	if exprAttrNames != nil {
		input.ExpressionAttributeNames = exprAttrNames
	}
	if limit > 0 {
		input.Limit = aws.Int32(limit)
	}

	out, err := c.svc.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", tableName, err)
	}

	return out.Items, nil
}

func isConditionalCheckFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "ConditionalCheckFailedException"
}

// ErrorCode extracts the AWS error code from err, or "" when err did not come
// from the service.
func ErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}
