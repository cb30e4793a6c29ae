package dispatcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.uber.org/zap"

	"github.com/aws-samples/amazon-pinpoint-facebookads-channel/internal/domain"
	"github.com/aws-samples/amazon-pinpoint-facebookads-channel/internal/queue"
)

// Dispatcher publishes export fragments to the FIFO delivery queue.
//
// Each fragment is grouped by campaign identity so the queue serializes
// delivery per campaign, and deduplicated by a digest of its serialized
// content so two enqueues of identical content collapse to one delivery. The
// queue is configured with maxReceiveCount 1: a fragment the worker fails to
// process is quarantined on the dead-letter queue instead of being retried
// out of order.
type Dispatcher struct {
	publisher queue.Publisher
	log       *zap.Logger
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(publisher queue.Publisher, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		publisher: publisher,
		log:       log,
	}
}

// Enqueue publishes one fragment under its campaign ordering group.
func (d *Dispatcher) Enqueue(ctx context.Context, fragment *domain.ExportEvent) error {
	body, err := json.Marshal(fragment)
	if err != nil {
		return fmt.Errorf("failed to marshal fragment: %w", err)
	}

	digest := sha256.Sum256(body)
	deduplicationID := hex.EncodeToString(digest[:])

	_, err = d.publisher.SendMessage(ctx, &awssqs.SendMessageInput{
		QueueUrl:               aws.String(d.publisher.QueueURL()),
		MessageBody:            aws.String(string(body)),
		MessageGroupId:         aws.String(fragment.GroupID()),
		MessageDeduplicationId: aws.String(deduplicationID),
	})
	if err != nil {
		d.log.Error("Failed to send fragment to SQS",
			zap.String("group_id", fragment.GroupID()),
			zap.Int("endpoint_count", len(fragment.Endpoints)),
			zap.Error(err))
		return fmt.Errorf("failed to send fragment to SQS: %w", err)
	}

	d.log.Info("Fragment enqueued",
		zap.String("group_id", fragment.GroupID()),
		zap.String("deduplication_id", deduplicationID),
		zap.Int("endpoint_count", len(fragment.Endpoints)))

	return nil
}
