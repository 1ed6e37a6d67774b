// Package ddb builds DynamoDB clients and provisions the pointer table.
package ddb

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// Options configures a DynamoDB client.
type Options struct {
	// Region overrides the region from the environment or shared config.
	Region string

	// Profile selects a shared config profile.
	Profile string

	// Endpoint overrides the service endpoint (e.g. DynamoDB Local).
	Endpoint string

	// MaxAttempts bounds the standard retryer's attempts per call.
	// Default: 3
	MaxAttempts int

	// WritesPerSecond limits client-side write throughput. 0 disables the limit.
	WritesPerSecond float64
}

// NewClient loads the AWS configuration and creates a DynamoDB client.
// Throttling and transient failures are retried by the SDK's standard retryer;
// the store itself never retries.
func NewClient(ctx context.Context, opts Options) (*dynamodb.Client, error) {
	maxAttempts := opts.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = retry.DefaultMaxAttempts
	}

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRetryer(func() aws.Retryer {
			return retry.NewStandard(func(o *retry.StandardOptions) {
				o.MaxAttempts = maxAttempts
			})
		}),
	}
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	if opts.Profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(opts.Profile))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	}), nil
}
