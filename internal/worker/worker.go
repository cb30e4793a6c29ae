package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/aws-samples/amazon-pinpoint-facebookads-channel/internal/domain"
	"github.com/aws-samples/amazon-pinpoint-facebookads-channel/internal/platform"
	"github.com/aws-samples/amazon-pinpoint-facebookads-channel/internal/secrets"
	"github.com/aws-samples/amazon-pinpoint-facebookads-channel/internal/store"
)

// maxSessionID bounds the randomly assigned import session id to the range
// the ingestion API accepts for integer session identifiers.
const maxSessionID = int64(1) << 53

// AdsFactory builds an advertising-platform client from freshly resolved
// credentials. Credentials are resolved once per invocation and never cached
// across invocations.
type AdsFactory func(creds *secrets.Credentials) platform.Ads

// Worker processes one export fragment per invocation: it derives the hashed
// attribute matrix, provisions the Facebook resource graph on first sight of
// a campaign, imports the batch under the campaign's session cursor, and
// reports a per-recipient outcome back to Pinpoint.
type Worker struct {
	store     store.ProvisioningStore
	producer  platform.Producer
	secrets   secrets.Resolver
	newAds    AdsFactory
	countries []string
	log       *zap.Logger
}

// New creates a new Worker
func New(provisioning store.ProvisioningStore, producer platform.Producer, resolver secrets.Resolver, newAds AdsFactory, countries []string, log *zap.Logger) *Worker {
	return &Worker{
		store:     provisioning,
		producer:  producer,
		secrets:   resolver,
		newAds:    newAds,
		countries: countries,
		log:       log,
	}
}

// HandleSQS is the Lambda entrypoint. The queue is configured to deliver a
// single message per invocation; more than one means the batch size was
// misconfigured and the whole batch is rejected rather than processed out of
// order.
func (w *Worker) HandleSQS(ctx context.Context, event events.SQSEvent) error {
	if len(event.Records) != 1 {
		w.log.Error("Received a batch with more than one message, reconfigure the queue",
			zap.Int("record_count", len(event.Records)))
		return fmt.Errorf("expected exactly one record per invocation, got %d", len(event.Records))
	}

	var export domain.ExportEvent
	if err := json.Unmarshal([]byte(event.Records[0].Body), &export); err != nil {
		return fmt.Errorf("failed to parse export fragment: %w", err)
	}
	if err := export.Validate(); err != nil {
		return fmt.Errorf("invalid export fragment: %w", err)
	}

	return w.Process(ctx, &export)
}

// Process runs one fragment through the full pipeline.
func (w *Worker) Process(ctx context.Context, export *domain.ExportEvent) error {
	log := w.log.With(
		zap.String("application_id", export.ApplicationID),
		zap.String("campaign_id", export.CampaignID))

	matrix := BuildMatrix(export)
	if len(matrix.Rows) == 0 {
		log.Warn("No EMAIL endpoints in fragment, nothing to import")
		return nil
	}

	creds, err := w.secrets.FacebookCredentials(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve credentials: %w", err)
	}
	ads := w.newAds(creds)

	record, err := w.store.Get(ctx, export.ApplicationID, export.CampaignID)
	if err != nil {
		return err
	}

	var importSequence int64
	if record == nil {
		var fresh bool
		record, fresh, err = w.provision(ctx, ads, export, creds)
		if err != nil {
			return err
		}
		importSequence = record.SequenceID
		if !fresh {
			// Adopted a concurrent winner's record; behave like any later
			// fragment and claim the next sequence slot.
			importSequence = record.SequenceID + 1
		}
	} else {
		importSequence = record.SequenceID + 1
	}

	_, importErr := ads.ImportUsers(ctx, record.FacebookAudienceID, record.SessionID, importSequence, true, matrix.Schema, matrix.Rows)
	if importErr == nil {
		if err := w.store.AdvanceSequence(ctx, export.ApplicationID, export.CampaignID, record.SessionID, importSequence); err != nil {
			importErr = err
		}
	}

	var outcomes []domain.OutcomeEvent
	if importErr == nil {
		log.Info("Fragment imported",
			zap.Int64("session_id", record.SessionID),
			zap.Int64("sequence_id", importSequence),
			zap.Int("recipient_count", len(matrix.EndpointIDs)))
		outcomes = w.successOutcomes(export, matrix, record)
	} else {
		log.Error("Failed to import fragment", zap.Error(importErr))
		outcomes = w.failureOutcomes(export, matrix, importErr)
	}

	if err := w.producer.PutEvents(ctx, export.ApplicationID, outcomes); err != nil {
		return fmt.Errorf("failed to report outcomes: %w", err)
	}

	return nil
}

// provision creates the Facebook audience, campaign, ad set and ad for a
// campaign seen for the first time, then persists the link record. When a
// concurrent invocation won the first write, the winner's record is adopted
// and fresh is false.
func (w *Worker) provision(ctx context.Context, ads platform.Ads, export *domain.ExportEvent, creds *secrets.Credentials) (record *domain.ProvisioningRecord, fresh bool, err error) {
	appName, err := w.producer.GetApplicationName(ctx, export.ApplicationID)
	if err != nil {
		return nil, false, err
	}
	campaignName, err := w.producer.GetCampaignName(ctx, export.ApplicationID, export.CampaignID)
	if err != nil {
		return nil, false, err
	}
	prefix := fmt.Sprintf("Pinpoint[%s][%s]:", appName, campaignName)

	audienceID, err := ads.CreateCustomAudience(ctx,
		fmt.Sprintf("%s Audience", prefix),
		fmt.Sprintf("Custom audience imported from Pinpoint on: %s", time.Now().UTC().Format(time.RFC3339)))
	if err != nil {
		return nil, false, err
	}
	campaignID, err := ads.CreateCampaign(ctx, fmt.Sprintf("%s Campaign", prefix))
	if err != nil {
		return nil, false, err
	}
	adSetID, err := ads.CreateAdSet(ctx, fmt.Sprintf("%s AdSet", prefix), campaignID, audienceID, w.countries)
	if err != nil {
		return nil, false, err
	}
	adID, err := ads.CreateAd(ctx, fmt.Sprintf("%s Ad", prefix), adSetID, creds.PageID, creds.DefaultWebsiteURL)
	if err != nil {
		return nil, false, err
	}

	record = &domain.ProvisioningRecord{
		ApplicationID:      export.ApplicationID,
		CampaignID:         export.CampaignID,
		FacebookAudienceID: audienceID,
		FacebookCampaignID: campaignID,
		FacebookAdSetID:    adSetID,
		FacebookAdID:       adID,
		SessionID:          newSessionID(),
		SequenceID:         0,
	}

	if err := w.store.Create(ctx, record); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			w.log.Warn("Lost provisioning race, adopting existing record",
				zap.String("application_id", export.ApplicationID),
				zap.String("campaign_id", export.CampaignID))
			winner, err := w.store.Get(ctx, export.ApplicationID, export.CampaignID)
			if err != nil {
				return nil, false, err
			}
			if winner == nil {
				return nil, false, fmt.Errorf("provisioning record vanished after losing create race")
			}
			return winner, false, nil
		}
		return nil, false, err
	}

	return record, true, nil
}

func (w *Worker) successOutcomes(export *domain.ExportEvent, matrix *Matrix, record *domain.ProvisioningRecord) []domain.OutcomeEvent {
	now := time.Now().UTC()
	outcomes := make([]domain.OutcomeEvent, 0, len(matrix.EndpointIDs))
	for _, id := range matrix.EndpointIDs {
		outcomes = append(outcomes, domain.OutcomeEvent{
			EndpointID: id,
			CampaignID: export.CampaignID,
			Endpoint:   export.Endpoints[id].StripInternal(),
			EventType:  domain.EventTypeSuccess,
			Timestamp:  now,
			Attributes: map[string]string{
				"campaign_id": export.CampaignID,
				"audience_id": record.FacebookAudienceID,
			},
		})
	}
	return outcomes
}

func (w *Worker) failureOutcomes(export *domain.ExportEvent, matrix *Matrix, importErr error) []domain.OutcomeEvent {
	now := time.Now().UTC()
	outcomes := make([]domain.OutcomeEvent, 0, len(matrix.EndpointIDs))
	for _, id := range matrix.EndpointIDs {
		outcomes = append(outcomes, domain.OutcomeEvent{
			EndpointID: id,
			CampaignID: export.CampaignID,
			Endpoint:   export.Endpoints[id].StripInternal(),
			EventType:  domain.EventTypeFailure,
			Timestamp:  now,
			Attributes: map[string]string{
				"campaign_id": export.CampaignID,
				"error":       domain.TruncateError(importErr.Error()),
			},
		})
	}
	return outcomes
}

func newSessionID() int64 {
	return rand.Int63n(maxSessionID-1) + 1
}
