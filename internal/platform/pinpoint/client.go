package pinpoint

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awspinpoint "github.com/aws/aws-sdk-go-v2/service/pinpoint"
	"github.com/aws/aws-sdk-go-v2/service/pinpoint/types"
	"go.uber.org/zap"

	"github.com/aws-samples/amazon-pinpoint-facebookads-channel/internal/domain"
)

// API is the subset of the Pinpoint client the producer capability uses
type API interface {
	GetApp(ctx context.Context, input *awspinpoint.GetAppInput, optFns ...func(*awspinpoint.Options)) (*awspinpoint.GetAppOutput, error)
	GetCampaign(ctx context.Context, input *awspinpoint.GetCampaignInput, optFns ...func(*awspinpoint.Options)) (*awspinpoint.GetCampaignOutput, error)
	PutEvents(ctx context.Context, input *awspinpoint.PutEventsInput, optFns ...func(*awspinpoint.Options)) (*awspinpoint.PutEventsOutput, error)
}

// Client implements platform.Producer on the Pinpoint API
type Client struct {
	client API
	log    *zap.Logger
}

// NewClient creates a new Pinpoint client
func NewClient(client API, log *zap.Logger) *Client {
	return &Client{
		client: client,
		log:    log,
	}
}

// GetApplicationName resolves the display name of a Pinpoint application.
func (c *Client) GetApplicationName(ctx context.Context, applicationID string) (string, error) {
	out, err := c.client.GetApp(ctx, &awspinpoint.GetAppInput{
		ApplicationId: aws.String(applicationID),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get application %s: %w", applicationID, err)
	}
	return aws.ToString(out.ApplicationResponse.Name), nil
}

// GetCampaignName resolves the display name of a Pinpoint campaign.
func (c *Client) GetCampaignName(ctx context.Context, applicationID, campaignID string) (string, error) {
	out, err := c.client.GetCampaign(ctx, &awspinpoint.GetCampaignInput{
		ApplicationId: aws.String(applicationID),
		CampaignId:    aws.String(campaignID),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get campaign %s: %w", campaignID, err)
	}
	return aws.ToString(out.CampaignResponse.Name), nil
}

// PutEvents submits one outcome event per recipient as a single batch.
func (c *Client) PutEvents(ctx context.Context, applicationID string, outcomes []domain.OutcomeEvent) error {
	batch := make(map[string]types.EventsBatch, len(outcomes))
	for _, outcome := range outcomes {
		eventKey := fmt.Sprintf("facebookads_%s_%s", outcome.EndpointID, outcome.CampaignID)
		batch[outcome.EndpointID] = types.EventsBatch{
			Endpoint: publicEndpoint(outcome.Endpoint),
			Events: map[string]types.Event{
				eventKey: {
					EventType:  aws.String(outcome.EventType),
					Timestamp:  aws.String(outcome.Timestamp.UTC().Format(time.RFC3339)),
					Attributes: outcome.Attributes,
				},
			},
		}
	}

	_, err := c.client.PutEvents(ctx, &awspinpoint.PutEventsInput{
		ApplicationId: aws.String(applicationID),
		EventsRequest: &types.EventsRequest{
			BatchItem: batch,
		},
	})
	if err != nil {
		c.log.Error("Failed to put outcome events",
			zap.String("application_id", applicationID),
			zap.Int("outcome_count", len(outcomes)),
			zap.Error(err))
		return fmt.Errorf("failed to put outcome events: %w", err)
	}

	c.log.Info("Outcome events submitted",
		zap.String("application_id", applicationID),
		zap.Int("outcome_count", len(outcomes)))

	return nil
}

// publicEndpoint maps the endpoint snapshot onto the PutEvents shape. Only
// round-trippable fields are carried over; producer-internal fields like the
// creation timestamp and cohort id are rejected by the API and stay behind.
func publicEndpoint(endpoint domain.Endpoint) *types.PublicEndpoint {
	stripped := endpoint.StripInternal()

	public := &types.PublicEndpoint{
		ChannelType: types.ChannelType(stripped.ChannelType),
		Address:     aws.String(stripped.Address),
		Attributes:  stripped.Attributes,
	}
	if stripped.User != nil {
		public.User = &types.EndpointUser{
			UserAttributes: stripped.User.UserAttributes,
		}
		if stripped.User.UserID != "" {
			public.User.UserId = aws.String(stripped.User.UserID)
		}
	}
	return public
}
