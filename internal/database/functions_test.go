package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

func TestIsConditionalCheckFailed(t *testing.T) {
	wrapped := fmt.Errorf("operation error: %w", &types.ConditionalCheckFailedException{})
	if !isConditionalCheckFailed(wrapped) {
		t.Fatal("expected typed exception to match")
	}

	generic := &smithy.GenericAPIError{Code: "ConditionalCheckFailedException"}
	if !isConditionalCheckFailed(generic) {
		t.Fatal("expected generic api error to match")
	}

	if isConditionalCheckFailed(errors.New("timeout")) {
		t.Fatal("plain error must not match")
	}
}

func TestErrorCode(t *testing.T) {
	err := fmt.Errorf("put item: %w", &smithy.GenericAPIError{Code: "ProvisionedThroughputExceededException"})
	if got := ErrorCode(err); got != "ProvisionedThroughputExceededException" {
		t.Fatalf("unexpected code %q", got)
	}
	if got := ErrorCode(errors.New("boom")); got != "" {
		t.Fatalf("expected empty code, got %q", got)
	}
}

func TestAttrNumber(t *testing.T) {
	n, ok := AttrNumber(42).(*types.AttributeValueMemberN)
	if !ok || n.Value != "42" {
		t.Fatalf("unexpected attribute %#v", n)
	}
}
