package ddb

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"golang.org/x/time/rate"

	"github.com/jacentio/pointers/store"
)

// RateLimited wraps client so that writes wait on limiter. A transaction
// takes one token per item. Queries are not limited.
func RateLimited(client store.DDBClient, limiter *rate.Limiter) store.DDBClient {
	if limiter == nil {
		return client
	}
	return &rateLimitedClient{DDBClient: client, limiter: limiter}
}

// NewWriteLimiter returns a limiter for writesPerSecond with a one second burst,
// or nil when writesPerSecond is not positive.
func NewWriteLimiter(writesPerSecond float64) *rate.Limiter {
	if writesPerSecond <= 0 {
		return nil
	}
	burst := int(writesPerSecond)
	if burst < 2 {
		burst = 2
	}
	return rate.NewLimiter(rate.Limit(writesPerSecond), burst)
}

type rateLimitedClient struct {
	store.DDBClient
	limiter *rate.Limiter
}

func (c *rateLimitedClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.DDBClient.PutItem(ctx, params, optFns...)
}

func (c *rateLimitedClient) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.DDBClient.DeleteItem(ctx, params, optFns...)
}

func (c *rateLimitedClient) TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	if err := c.limiter.WaitN(ctx, len(params.TransactItems)); err != nil {
		return nil, err
	}
	return c.DDBClient.TransactWriteItems(ctx, params, optFns...)
}
