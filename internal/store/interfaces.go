package store

import (
	"context"
	"errors"

	"github.com/aws-samples/amazon-pinpoint-facebookads-channel/internal/domain"
)

// ErrAlreadyExists is returned by Create when a record already exists for the
// campaign. Callers losing a first-sight race must treat this as benign,
// re-read and adopt the winner's record.
var ErrAlreadyExists = errors.New("provisioning record already exists")

// ErrSessionMismatch is returned by AdvanceSequence when the stored session
// id differs from the caller's. It signals concurrent interference on the
// batch cursor.
var ErrSessionMismatch = errors.New("stored session id does not match")

// ProvisioningStore is the durable mapping from a campaign to its Facebook
// resource identifiers and batch cursor. It is the sole concurrency-safety
// boundary for first-sight provisioning.
type ProvisioningStore interface {
	// Get returns the record for the campaign, or (nil, nil) when absent.
	Get(ctx context.Context, applicationID, campaignID string) (*domain.ProvisioningRecord, error)

	// Create persists a new record, first-write-wins.
	Create(ctx context.Context, record *domain.ProvisioningRecord) error

	// AdvanceSequence persists a new sequence value, only if the stored
	// session id matches.
	AdvanceSequence(ctx context.Context, applicationID, campaignID string, sessionID, newSequence int64) error
}
