// Package awsclient builds the AWS service clients the backend talks to from
// one shared SDK configuration.
package awsclient

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

const maxAttempts = 3

// Options selects the region and an optional DynamoDB endpoint, e.g. DynamoDB
// Local. A global override for every service comes from AWS_ENDPOINT_URL,
// which the SDK reads itself.
type Options struct {
	Region           string
	DynamoDBEndpoint string
}

type Clients struct {
	DynamoDB *dynamodb.Client
	SQS      *sqs.Client
	S3       *s3.Client
}

// Load resolves credentials through the default chain and returns the SDK
// configuration shared by all clients.
func Load(ctx context.Context, region string) (aws.Config, error) {
	loadOpts := []func(*config.LoadOptions) error{
		config.WithRetryMaxAttempts(maxAttempts),
	}
	if region != "" {
		loadOpts = append(loadOpts, config.WithRegion(region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}

func New(ctx context.Context, opts Options) (*Clients, error) {
	cfg, err := Load(ctx, opts.Region)
	if err != nil {
		return nil, err
	}
	return FromConfig(cfg, opts), nil
}

// FromConfig builds the clients from an already loaded configuration.
func FromConfig(cfg aws.Config, opts Options) *Clients {
	return &Clients{
		DynamoDB: dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
			if opts.DynamoDBEndpoint != "" {
				o.BaseEndpoint = aws.String(opts.DynamoDBEndpoint)
			}
		}),
		SQS: sqs.NewFromConfig(cfg),
		S3: s3.NewFromConfig(cfg, func(o *s3.Options) {
			// Local S3 emulators do not serve virtual-hosted buckets.
			o.UsePathStyle = cfg.BaseEndpoint != nil
		}),
	}
}
