package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/aws-samples/amazon-pinpoint-facebookads-channel/internal/domain"
	"github.com/aws-samples/amazon-pinpoint-facebookads-channel/internal/platform"
	"github.com/aws-samples/amazon-pinpoint-facebookads-channel/internal/secrets"
	"github.com/aws-samples/amazon-pinpoint-facebookads-channel/internal/store"
)

// MockProvisioningStore is a mock implementation of store.ProvisioningStore
type MockProvisioningStore struct {
	mock.Mock
}

func (m *MockProvisioningStore) Get(ctx context.Context, applicationID, campaignID string) (*domain.ProvisioningRecord, error) {
	args := m.Called(ctx, applicationID, campaignID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ProvisioningRecord), args.Error(1)
}

func (m *MockProvisioningStore) Create(ctx context.Context, record *domain.ProvisioningRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockProvisioningStore) AdvanceSequence(ctx context.Context, applicationID, campaignID string, sessionID, newSequence int64) error {
	args := m.Called(ctx, applicationID, campaignID, sessionID, newSequence)
	return args.Error(0)
}

// MockProducer is a mock implementation of platform.Producer
type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) GetApplicationName(ctx context.Context, applicationID string) (string, error) {
	args := m.Called(ctx, applicationID)
	return args.String(0), args.Error(1)
}

func (m *MockProducer) GetCampaignName(ctx context.Context, applicationID, campaignID string) (string, error) {
	args := m.Called(ctx, applicationID, campaignID)
	return args.String(0), args.Error(1)
}

func (m *MockProducer) PutEvents(ctx context.Context, applicationID string, outcomes []domain.OutcomeEvent) error {
	args := m.Called(ctx, applicationID, outcomes)
	return args.Error(0)
}

// MockResolver is a mock implementation of secrets.Resolver
type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) FacebookCredentials(ctx context.Context) (*secrets.Credentials, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*secrets.Credentials), args.Error(1)
}

// MockAds is a mock implementation of platform.Ads
type MockAds struct {
	mock.Mock
}

func (m *MockAds) CreateCustomAudience(ctx context.Context, name, description string) (string, error) {
	args := m.Called(ctx, name, description)
	return args.String(0), args.Error(1)
}

func (m *MockAds) CreateCampaign(ctx context.Context, name string) (string, error) {
	args := m.Called(ctx, name)
	return args.String(0), args.Error(1)
}

func (m *MockAds) CreateAdSet(ctx context.Context, name, campaignID, audienceID string, countries []string) (string, error) {
	args := m.Called(ctx, name, campaignID, audienceID, countries)
	return args.String(0), args.Error(1)
}

func (m *MockAds) CreateAd(ctx context.Context, name, adSetID, pageID, link string) (string, error) {
	args := m.Called(ctx, name, adSetID, pageID, link)
	return args.String(0), args.Error(1)
}

func (m *MockAds) ImportUsers(ctx context.Context, audienceID string, sessionID, sequence int64, lastBatch bool, schema []string, rows [][]string) (*platform.ImportResult, error) {
	args := m.Called(ctx, audienceID, sessionID, sequence, lastBatch, schema, rows)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*platform.ImportResult), args.Error(1)
}

func testCredentials() *secrets.Credentials {
	return &secrets.Credentials{
		AccessToken:       "token",
		AdAccountID:       "123456",
		PageID:            "page-1",
		DefaultWebsiteURL: "https://example.com",
	}
}

func emailExport() *domain.ExportEvent {
	return &domain.ExportEvent{
		ApplicationID: "A1",
		CampaignID:    "C1",
		Endpoints: map[string]domain.Endpoint{
			"ep-1": {
				ChannelType:  domain.ChannelEmail,
				Address:      "a@example.com",
				CreationDate: "2023-01-01T00:00:00Z",
				CohortID:     "42",
			},
		},
	}
}

func newTestWorker(provisioning *MockProvisioningStore, producer *MockProducer, resolver *MockResolver, ads *MockAds) *Worker {
	factory := func(creds *secrets.Credentials) platform.Ads { return ads }
	return New(provisioning, producer, resolver, factory, []string{"SG"}, zap.NewNop())
}

func TestWorker_FirstFragmentProvisionsAndImports(t *testing.T) {
	provisioning := new(MockProvisioningStore)
	producer := new(MockProducer)
	resolver := new(MockResolver)
	ads := new(MockAds)

	resolver.On("FacebookCredentials", mock.Anything).Return(testCredentials(), nil)
	provisioning.On("Get", mock.Anything, "A1", "C1").Return(nil, nil)

	producer.On("GetApplicationName", mock.Anything, "A1").Return("My App", nil)
	producer.On("GetCampaignName", mock.Anything, "A1", "C1").Return("My Campaign", nil)

	ads.On("CreateCustomAudience", mock.Anything, "Pinpoint[My App][My Campaign]: Audience", mock.Anything).
		Return("aud-1", nil)
	ads.On("CreateCampaign", mock.Anything, "Pinpoint[My App][My Campaign]: Campaign").
		Return("fbcamp-1", nil)
	ads.On("CreateAdSet", mock.Anything, "Pinpoint[My App][My Campaign]: AdSet", "fbcamp-1", "aud-1", []string{"SG"}).
		Return("adset-1", nil)
	ads.On("CreateAd", mock.Anything, "Pinpoint[My App][My Campaign]: Ad", "adset-1", "page-1", "https://example.com").
		Return("ad-1", nil)

	var created *domain.ProvisioningRecord
	provisioning.On("Create", mock.Anything, mock.AnythingOfType("*domain.ProvisioningRecord")).
		Run(func(args mock.Arguments) {
			created = args.Get(1).(*domain.ProvisioningRecord)
		}).
		Return(nil)

	ads.On("ImportUsers", mock.Anything, "aud-1", mock.AnythingOfType("int64"), int64(0), true,
		[]string{ColumnEmail}, mock.Anything).
		Return(&platform.ImportResult{Received: 1}, nil)

	provisioning.On("AdvanceSequence", mock.Anything, "A1", "C1", mock.AnythingOfType("int64"), int64(0)).
		Return(nil)

	var reported []domain.OutcomeEvent
	producer.On("PutEvents", mock.Anything, "A1", mock.Anything).
		Run(func(args mock.Arguments) {
			reported = args.Get(2).([]domain.OutcomeEvent)
		}).
		Return(nil)

	w := newTestWorker(provisioning, producer, resolver, ads)
	err := w.Process(context.Background(), emailExport())

	assert.NoError(t, err)
	ads.AssertExpectations(t)
	provisioning.AssertExpectations(t)

	assert.NotNil(t, created)
	assert.Equal(t, int64(0), created.SequenceID)
	assert.Positive(t, created.SessionID)
	assert.Equal(t, "aud-1", created.FacebookAudienceID)
	assert.Equal(t, "ad-1", created.FacebookAdID)

	assert.Len(t, reported, 1)
	assert.Equal(t, domain.EventTypeSuccess, reported[0].EventType)
	assert.Equal(t, "ep-1", reported[0].EndpointID)
	assert.Equal(t, "aud-1", reported[0].Attributes["audience_id"])
	assert.Equal(t, "C1", reported[0].Attributes["campaign_id"])
	assert.Empty(t, reported[0].Endpoint.CreationDate)
	assert.Empty(t, reported[0].Endpoint.CohortID)
}

func TestWorker_SecondFragmentReusesRecord(t *testing.T) {
	provisioning := new(MockProvisioningStore)
	producer := new(MockProducer)
	resolver := new(MockResolver)
	ads := new(MockAds)

	resolver.On("FacebookCredentials", mock.Anything).Return(testCredentials(), nil)
	provisioning.On("Get", mock.Anything, "A1", "C1").Return(&domain.ProvisioningRecord{
		ApplicationID:      "A1",
		CampaignID:         "C1",
		FacebookAudienceID: "aud-1",
		SessionID:          424242,
		SequenceID:         0,
	}, nil)

	ads.On("ImportUsers", mock.Anything, "aud-1", int64(424242), int64(1), true,
		mock.Anything, mock.Anything).
		Return(&platform.ImportResult{Received: 1}, nil)

	provisioning.On("AdvanceSequence", mock.Anything, "A1", "C1", int64(424242), int64(1)).
		Return(nil)

	producer.On("PutEvents", mock.Anything, "A1", mock.Anything).Return(nil)

	w := newTestWorker(provisioning, producer, resolver, ads)
	err := w.Process(context.Background(), emailExport())

	assert.NoError(t, err)
	ads.AssertExpectations(t)
	provisioning.AssertExpectations(t)
	ads.AssertNotCalled(t, "CreateCustomAudience", mock.Anything, mock.Anything, mock.Anything)
	producer.AssertNotCalled(t, "GetApplicationName", mock.Anything, mock.Anything)
}

func TestWorker_ImportFailureReportsFailuresAndKeepsCursor(t *testing.T) {
	provisioning := new(MockProvisioningStore)
	producer := new(MockProducer)
	resolver := new(MockResolver)
	ads := new(MockAds)

	resolver.On("FacebookCredentials", mock.Anything).Return(testCredentials(), nil)
	provisioning.On("Get", mock.Anything, "A1", "C1").Return(&domain.ProvisioningRecord{
		ApplicationID:      "A1",
		CampaignID:         "C1",
		FacebookAudienceID: "aud-1",
		SessionID:          424242,
		SequenceID:         3,
	}, nil)

	longMessage := strings.Repeat("x", 400)
	ads.On("ImportUsers", mock.Anything, "aud-1", int64(424242), int64(4), true,
		mock.Anything, mock.Anything).
		Return(nil, errors.New(longMessage))

	var reported []domain.OutcomeEvent
	producer.On("PutEvents", mock.Anything, "A1", mock.Anything).
		Run(func(args mock.Arguments) {
			reported = args.Get(2).([]domain.OutcomeEvent)
		}).
		Return(nil)

	w := newTestWorker(provisioning, producer, resolver, ads)
	err := w.Process(context.Background(), emailExport())

	assert.NoError(t, err)
	provisioning.AssertNotCalled(t, "AdvanceSequence",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	assert.Len(t, reported, 1)
	assert.Equal(t, domain.EventTypeFailure, reported[0].EventType)
	assert.LessOrEqual(t, len(reported[0].Attributes["error"]), domain.MaxErrorLength)
	assert.Equal(t, "C1", reported[0].Attributes["campaign_id"])
}

func TestWorker_AdvanceFailureReportsFailures(t *testing.T) {
	provisioning := new(MockProvisioningStore)
	producer := new(MockProducer)
	resolver := new(MockResolver)
	ads := new(MockAds)

	resolver.On("FacebookCredentials", mock.Anything).Return(testCredentials(), nil)
	provisioning.On("Get", mock.Anything, "A1", "C1").Return(&domain.ProvisioningRecord{
		ApplicationID:      "A1",
		CampaignID:         "C1",
		FacebookAudienceID: "aud-1",
		SessionID:          424242,
		SequenceID:         3,
	}, nil)

	ads.On("ImportUsers", mock.Anything, "aud-1", int64(424242), int64(4), true,
		mock.Anything, mock.Anything).
		Return(&platform.ImportResult{Received: 1}, nil)

	provisioning.On("AdvanceSequence", mock.Anything, "A1", "C1", int64(424242), int64(4)).
		Return(store.ErrSessionMismatch)

	var reported []domain.OutcomeEvent
	producer.On("PutEvents", mock.Anything, "A1", mock.Anything).
		Run(func(args mock.Arguments) {
			reported = args.Get(2).([]domain.OutcomeEvent)
		}).
		Return(nil)

	w := newTestWorker(provisioning, producer, resolver, ads)
	err := w.Process(context.Background(), emailExport())

	assert.NoError(t, err)
	assert.Len(t, reported, 1)
	assert.Equal(t, domain.EventTypeFailure, reported[0].EventType)
}

func TestWorker_NoEligibleRecipientsShortCircuits(t *testing.T) {
	provisioning := new(MockProvisioningStore)
	producer := new(MockProducer)
	resolver := new(MockResolver)
	ads := new(MockAds)

	export := &domain.ExportEvent{
		ApplicationID: "A1",
		CampaignID:    "C1",
		Endpoints: map[string]domain.Endpoint{
			"ep-1": {ChannelType: "SMS", Address: "+6511111111"},
		},
	}

	w := newTestWorker(provisioning, producer, resolver, ads)
	err := w.Process(context.Background(), export)

	assert.NoError(t, err)
	resolver.AssertNotCalled(t, "FacebookCredentials", mock.Anything)
	provisioning.AssertNotCalled(t, "Get", mock.Anything, mock.Anything, mock.Anything)
	producer.AssertNotCalled(t, "PutEvents", mock.Anything, mock.Anything, mock.Anything)
}

func TestWorker_LostProvisioningRaceAdoptsWinner(t *testing.T) {
	provisioning := new(MockProvisioningStore)
	producer := new(MockProducer)
	resolver := new(MockResolver)
	ads := new(MockAds)

	resolver.On("FacebookCredentials", mock.Anything).Return(testCredentials(), nil)
	provisioning.On("Get", mock.Anything, "A1", "C1").Return(nil, nil).Once()

	producer.On("GetApplicationName", mock.Anything, "A1").Return("My App", nil)
	producer.On("GetCampaignName", mock.Anything, "A1", "C1").Return("My Campaign", nil)
	ads.On("CreateCustomAudience", mock.Anything, mock.Anything, mock.Anything).Return("aud-loser", nil)
	ads.On("CreateCampaign", mock.Anything, mock.Anything).Return("fbcamp-loser", nil)
	ads.On("CreateAdSet", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("adset-loser", nil)
	ads.On("CreateAd", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("ad-loser", nil)

	provisioning.On("Create", mock.Anything, mock.Anything).Return(store.ErrAlreadyExists)
	provisioning.On("Get", mock.Anything, "A1", "C1").Return(&domain.ProvisioningRecord{
		ApplicationID:      "A1",
		CampaignID:         "C1",
		FacebookAudienceID: "aud-winner",
		SessionID:          111111,
		SequenceID:         0,
	}, nil).Once()

	ads.On("ImportUsers", mock.Anything, "aud-winner", int64(111111), int64(1), true,
		mock.Anything, mock.Anything).
		Return(&platform.ImportResult{Received: 1}, nil)
	provisioning.On("AdvanceSequence", mock.Anything, "A1", "C1", int64(111111), int64(1)).
		Return(nil)
	producer.On("PutEvents", mock.Anything, "A1", mock.Anything).Return(nil)

	w := newTestWorker(provisioning, producer, resolver, ads)
	err := w.Process(context.Background(), emailExport())

	assert.NoError(t, err)
	ads.AssertExpectations(t)
	provisioning.AssertExpectations(t)
}

func TestWorker_HandleSQS_RejectsMultiRecordBatch(t *testing.T) {
	w := newTestWorker(new(MockProvisioningStore), new(MockProducer), new(MockResolver), new(MockAds))

	err := w.HandleSQS(context.Background(), events.SQSEvent{
		Records: []events.SQSMessage{{Body: "{}"}, {Body: "{}"}},
	})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one record")
}

func TestWorker_HandleSQS_RejectsMalformedFragment(t *testing.T) {
	w := newTestWorker(new(MockProvisioningStore), new(MockProducer), new(MockResolver), new(MockAds))

	body, _ := json.Marshal(map[string]interface{}{"CampaignId": "C1"})
	err := w.HandleSQS(context.Background(), events.SQSEvent{
		Records: []events.SQSMessage{{Body: string(body)}},
	})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ApplicationId")
}

func TestWorker_ReportingFailureIsFatal(t *testing.T) {
	provisioning := new(MockProvisioningStore)
	producer := new(MockProducer)
	resolver := new(MockResolver)
	ads := new(MockAds)

	resolver.On("FacebookCredentials", mock.Anything).Return(testCredentials(), nil)
	provisioning.On("Get", mock.Anything, "A1", "C1").Return(&domain.ProvisioningRecord{
		ApplicationID:      "A1",
		CampaignID:         "C1",
		FacebookAudienceID: "aud-1",
		SessionID:          424242,
		SequenceID:         0,
	}, nil)

	ads.On("ImportUsers", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything,
		mock.Anything, mock.Anything).
		Return(&platform.ImportResult{Received: 1}, nil)
	provisioning.On("AdvanceSequence", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil)

	producer.On("PutEvents", mock.Anything, "A1", mock.Anything).
		Return(errors.New("throttled"))

	w := newTestWorker(provisioning, producer, resolver, ads)
	err := w.Process(context.Background(), emailExport())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to report outcomes")
}
