package platform

import (
	"context"

	"github.com/aws-samples/amazon-pinpoint-facebookads-channel/internal/domain"
)

// ImportResult reports how many attribute rows the advertising platform
// accepted and rejected for one batch.
type ImportResult struct {
	Received int64
	Invalid  int64
}

// Producer defines the capability contract against the campaign platform:
// display-name lookups for resource naming, and outcome-event ingestion.
type Producer interface {
	GetApplicationName(ctx context.Context, applicationID string) (string, error)
	GetCampaignName(ctx context.Context, applicationID, campaignID string) (string, error)
	PutEvents(ctx context.Context, applicationID string, outcomes []domain.OutcomeEvent) error
}

// Ads defines the capability contract against the advertising platform.
// CreateAdSet depends on identifiers returned by CreateCampaign and
// CreateCustomAudience, and CreateAd on the one returned by CreateAdSet.
type Ads interface {
	CreateCustomAudience(ctx context.Context, name, description string) (string, error)
	CreateCampaign(ctx context.Context, name string) (string, error)
	CreateAdSet(ctx context.Context, name, campaignID, audienceID string, countries []string) (string, error)
	CreateAd(ctx context.Context, name, adSetID, pageID, link string) (string, error)
	ImportUsers(ctx context.Context, audienceID string, sessionID, sequence int64, lastBatch bool, schema []string, rows [][]string) (*ImportResult, error)
}
