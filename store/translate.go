package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// cancellationConditionalCheckFailed is the CancellationReason code DynamoDB
// reports for a transaction item whose condition did not hold.
const cancellationConditionalCheckFailed = "ConditionalCheckFailed"

// translateError maps a DynamoDB error from op into the store's error kinds.
// onConditionFailed is the precondition error for the operation (ErrConflict
// or ErrNotFound). Engine errors, failed sends and exhausted retries become a
// *Fault. Context cancellation and anything unrecognised are returned
// unchanged.
func translateError(op string, err error, onConditionFailed error) error {
	if err == nil {
		return nil
	}

	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return fmt.Errorf("%s: %w", op, onConditionFailed)
	}

	var txErr *types.TransactionCanceledException
	if errors.As(err, &txErr) {
		// One reason per transaction item. A failed condition on either side
		// is a conflict.
		for _, reason := range txErr.CancellationReasons {
			if reason.Code != nil && *reason.Code == cancellationConditionalCheckFailed {
				return fmt.Errorf("%s: %w", op, ErrConflict)
			}
		}
		return &Fault{Op: op, Err: err}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var (
		apiErr      smithy.APIError
		sendErr     *smithyhttp.RequestSendError
		attemptsErr *retry.MaxAttemptsError
	)
	if errors.As(err, &apiErr) || errors.As(err, &sendErr) || errors.As(err, &attemptsErr) {
		return &Fault{Op: op, Err: err}
	}

	return err
}
