package chunker

import (
	"encoding/json"
	"fmt"

	"github.com/aws-samples/amazon-pinpoint-facebookads-channel/internal/domain"
)

// MaxFragmentBytes is the SQS message size limit. A Pinpoint endpoint can be
// as large as 15 KiB and one export carries up to 50 of them, so an export
// can exceed the limit and must be split.
const MaxFragmentBytes = 262144

// Split partitions an export event into fragments whose serialized size fits
// the queue ceiling. It is pure and deterministic: the endpoint-identifier
// list is sorted, bisected by count at its midpoint, and the first half's
// fragments always precede the second half's, so concatenating the output
// reproduces the input endpoint set exactly once in identifier order.
//
// A single endpoint whose record alone exceeds the ceiling is returned as a
// 1-endpoint fragment anyway; the enqueue will fail loudly rather than the
// endpoint being dropped silently.
func Split(event *domain.ExportEvent) ([]*domain.ExportEvent, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal export event: %w", err)
	}

	if len(body) <= MaxFragmentBytes || len(event.Endpoints) <= 1 {
		return []*domain.ExportEvent{event}, nil
	}

	ids := event.SortedEndpointIDs()
	mid := len(ids) / 2

	first, err := Split(event.Subset(ids[:mid]))
	if err != nil {
		return nil, err
	}
	second, err := Split(event.Subset(ids[mid:]))
	if err != nil {
		return nil, err
	}

	return append(first, second...), nil
}
