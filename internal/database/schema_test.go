package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

func TestCreateTableInputWithRangeKey(t *testing.T) {
	input := createTableInput(TableSpec{
		Name:      "Messages",
		HashKey:   "room",
		HashType:  types.ScalarAttributeTypeS,
		RangeKey:  "seq",
		RangeType: types.ScalarAttributeTypeN,
	})

	if aws.ToString(input.TableName) != "Messages" {
		t.Fatalf("unexpected table %q", aws.ToString(input.TableName))
	}
	if input.BillingMode != types.BillingModePayPerRequest {
		t.Fatalf("unexpected billing mode %s", input.BillingMode)
	}
	if len(input.KeySchema) != 2 || len(input.AttributeDefinitions) != 2 {
		t.Fatalf("expected hash and range keys, got %+v", input.KeySchema)
	}
	if input.KeySchema[1].KeyType != types.KeyTypeRange || aws.ToString(input.KeySchema[1].AttributeName) != "seq" {
		t.Fatalf("unexpected range key %+v", input.KeySchema[1])
	}
	if input.AttributeDefinitions[1].AttributeType != types.ScalarAttributeTypeN {
		t.Fatalf("unexpected range type %s", input.AttributeDefinitions[1].AttributeType)
	}
}

func TestCreateTableInputHashOnly(t *testing.T) {
	input := createTableInput(TableSpec{Name: "Rooms", HashKey: "name", HashType: types.ScalarAttributeTypeS})
	if len(input.KeySchema) != 1 || input.KeySchema[0].KeyType != types.KeyTypeHash {
		t.Fatalf("unexpected key schema %+v", input.KeySchema)
	}
}

func TestIsResourceNotFound(t *testing.T) {
	if !isResourceNotFound(fmt.Errorf("describe: %w", &types.ResourceNotFoundException{})) {
		t.Fatal("expected typed exception to match")
	}
	if !isResourceNotFound(&smithy.GenericAPIError{Code: "ResourceNotFoundException"}) {
		t.Fatal("expected generic api error to match")
	}
	if isResourceNotFound(errors.New("dial tcp: refused")) {
		t.Fatal("plain error must not match")
	}
}
