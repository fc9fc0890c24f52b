package middleware

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// SQSAPI is the subset of the SQS client the audit recorder needs.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSRecorder ships audit entries to a queue as JSON messages.
type SQSRecorder struct {
	client   SQSAPI
	queueURL string
}

func NewSQSRecorder(client SQSAPI, queueURL string) *SQSRecorder {
	return &SQSRecorder{client: client, queueURL: queueURL}
}

func (r *SQSRecorder) RecordAccess(ctx context.Context, entry AuditEntry) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}

	_, err = r.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(r.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"view": {
				DataType:    aws.String("String"),
				StringValue: aws.String(entry.View),
			},
			"action": {
				DataType:    aws.String("String"),
				StringValue: aws.String(entry.Action),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("send audit entry %s: %w", entry.EventID, err)
	}
	return nil
}
