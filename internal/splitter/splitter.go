package splitter

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/aws-samples/amazon-pinpoint-facebookads-channel/internal/chunker"
	"github.com/aws-samples/amazon-pinpoint-facebookads-channel/internal/domain"
)

// Enqueuer publishes one fragment to the delivery queue
type Enqueuer interface {
	Enqueue(ctx context.Context, fragment *domain.ExportEvent) error
}

// Splitter receives one campaign export per invocation, splits it into
// size-bounded fragments and enqueues them in order. Fragments are sent
// sequentially: FIFO ordering within the campaign group only holds if the
// enqueue calls themselves happen in split order.
type Splitter struct {
	enqueuer Enqueuer
	log      *zap.Logger
}

// New creates a new Splitter
func New(enqueuer Enqueuer, log *zap.Logger) *Splitter {
	return &Splitter{
		enqueuer: enqueuer,
		log:      log,
	}
}

// Handle is the Lambda entrypoint for the campaign-export hook.
func (s *Splitter) Handle(ctx context.Context, export *domain.ExportEvent) error {
	if err := export.Validate(); err != nil {
		return fmt.Errorf("invalid export event: %w", err)
	}

	fragments, err := chunker.Split(export)
	if err != nil {
		return fmt.Errorf("failed to split export event: %w", err)
	}

	s.log.Info("Export event split",
		zap.String("group_id", export.GroupID()),
		zap.Int("endpoint_count", len(export.Endpoints)),
		zap.Int("fragment_count", len(fragments)))

	for i, fragment := range fragments {
		if err := s.enqueuer.Enqueue(ctx, fragment); err != nil {
			return fmt.Errorf("failed to enqueue fragment %d of %d: %w", i+1, len(fragments), err)
		}
	}

	return nil
}
