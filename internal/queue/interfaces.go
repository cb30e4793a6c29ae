package queue

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// Publisher defines the interface for sending messages to the delivery queue
type Publisher interface {
	SendMessage(ctx context.Context, input *sqs.SendMessageInput) (*sqs.SendMessageOutput, error)
	QueueURL() string
}
