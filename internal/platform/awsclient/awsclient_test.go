package awsclient

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
)

func TestFromConfig_DynamoDBEndpointOverride(t *testing.T) {
	clients := FromConfig(aws.Config{Region: "eu-central-1"}, Options{DynamoDBEndpoint: "http://localhost:8000"})

	if got := clients.DynamoDB.Options().Region; got != "eu-central-1" {
		t.Errorf("dynamodb region: expected eu-central-1, got %q", got)
	}
	if ep := clients.DynamoDB.Options().BaseEndpoint; ep == nil || *ep != "http://localhost:8000" {
		t.Errorf("dynamodb endpoint: expected override, got %v", ep)
	}
	if ep := clients.SQS.Options().BaseEndpoint; ep != nil {
		t.Errorf("sqs endpoint: expected no override, got %q", *ep)
	}
	if clients.S3.Options().UsePathStyle {
		t.Error("expected virtual-hosted S3 addressing without a global endpoint")
	}
}

func TestFromConfig_GlobalEndpoint(t *testing.T) {
	cfg := aws.Config{Region: "us-east-1", BaseEndpoint: aws.String("http://localhost:4566")}
	clients := FromConfig(cfg, Options{})

	if !clients.S3.Options().UsePathStyle {
		t.Error("expected path-style S3 addressing with a global endpoint")
	}
	if ep := clients.DynamoDB.Options().BaseEndpoint; ep == nil || *ep != "http://localhost:4566" {
		t.Errorf("dynamodb endpoint: expected global endpoint, got %v", ep)
	}
}
