package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/aws-samples/amazon-pinpoint-facebookads-channel/internal/domain"
	"github.com/aws-samples/amazon-pinpoint-facebookads-channel/internal/store"
)

// API is the subset of the DynamoDB client the store uses
type API interface {
	GetItem(ctx context.Context, input *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, input *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, input *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// Store implements store.ProvisioningStore on a DynamoDB table keyed by
// applicationId (partition) and campaignId (sort).
type Store struct {
	client    API
	tableName string
	log       *zap.Logger
}

// NewStore creates a new DynamoDB-backed provisioning store
func NewStore(client API, tableName string, log *zap.Logger) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		log:       log,
	}
}

func recordKey(applicationID, campaignID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"applicationId": &types.AttributeValueMemberS{Value: applicationID},
		"campaignId":    &types.AttributeValueMemberS{Value: campaignID},
	}
}

// Get returns the provisioning record for the campaign, or (nil, nil) when
// the campaign has never been seen.
func (s *Store) Get(ctx context.Context, applicationID, campaignID string) (*domain.ProvisioningRecord, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key:       recordKey(applicationID, campaignID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get provisioning record: %w", err)
	}

	if len(out.Item) == 0 {
		return nil, nil
	}

	var record domain.ProvisioningRecord
	if err := attributevalue.UnmarshalMap(out.Item, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal provisioning record: %w", err)
	}

	return &record, nil
}

// Create persists a new record. The conditional put guarantees first-write
// wins; the losing writer gets store.ErrAlreadyExists.
func (s *Store) Create(ctx context.Context, record *domain.ProvisioningRecord) error {
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("failed to marshal provisioning record: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(applicationId)"),
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return store.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create provisioning record: %w", err)
	}

	s.log.Info("Provisioning record created",
		zap.String("application_id", record.ApplicationID),
		zap.String("campaign_id", record.CampaignID),
		zap.Int64("session_id", record.SessionID))

	return nil
}

// AdvanceSequence persists newSequence for the campaign, conditioned on the
// stored session id matching sessionID.
func (s *Store) AdvanceSequence(ctx context.Context, applicationID, campaignID string, sessionID, newSequence int64) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.tableName),
		Key:                 recordKey(applicationID, campaignID),
		UpdateExpression:    aws.String("SET sequenceId = :sequence"),
		ConditionExpression: aws.String("sessionId = :session"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sequence": &types.AttributeValueMemberN{Value: strconv.FormatInt(newSequence, 10)},
			":session":  &types.AttributeValueMemberN{Value: strconv.FormatInt(sessionID, 10)},
		},
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return store.ErrSessionMismatch
		}
		return fmt.Errorf("failed to advance sequence: %w", err)
	}

	return nil
}
