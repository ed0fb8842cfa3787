// Package sqs publishes lifecycle events to an Amazon SQS queue.
package sqs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"textrpg/internal/domain"
)

// API is the subset of the SQS client the publisher uses.
type API interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Publisher sends each event as a JSON message body. FIFO queues get the
// character id as the message group so events for one character stay
// ordered, and the event id as the deduplication id.
type Publisher struct {
	client   API
	queueURL string
	fifo     bool
}

var _ domain.EventPublisher = (*Publisher)(nil)

func NewPublisher(client API, queueURL string) *Publisher {
	return &Publisher{client: client, queueURL: queueURL, fifo: strings.HasSuffix(queueURL, ".fifo")}
}

// NewClient builds an SQS client from the default AWS credential chain.
func NewClient(ctx context.Context, region string) (*sqs.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}
	return sqs.NewFromConfig(cfg), nil
}

func (p *Publisher) Publish(ctx context.Context, e domain.LifecycleEvent) error {
	if err := e.Validate(); err != nil {
		return err
	}
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}
	in := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"kind":         stringAttr(string(e.Kind)),
			"character_id": stringAttr(e.CharacterID),
		},
	}
	if p.fifo {
		in.MessageGroupId = aws.String(e.CharacterID)
		in.MessageDeduplicationId = aws.String(e.ID)
	}
	if _, err := p.client.SendMessage(ctx, in); err != nil {
		return fmt.Errorf("sqs send %s: %w", e.Kind, err)
	}
	return nil
}

func stringAttr(v string) types.MessageAttributeValue {
	return types.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(v)}
}
