package store

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// checkWithinCeiling fails closed when one fetch reports more items than the ceiling.
func checkWithinCeiling(count int, ceiling int) error {
	if count > ceiling {
		return fmt.Errorf("%w: fetch returned %d items, ceiling is %d", ErrTooManyResults, count, ceiling)
	}
	return nil
}

// checkUnpaginated validates a fetch whose caller cannot follow a continuation
// key: it must be within the ceiling and complete.
func checkUnpaginated(count int, lastKey map[string]types.AttributeValue, ceiling int) error {
	if err := checkWithinCeiling(count, ceiling); err != nil {
		return err
	}
	if len(lastKey) > 0 {
		return fmt.Errorf("%w: fetch of %d items is incomplete and cannot be paginated", ErrTooManyResults, count)
	}
	return nil
}
