package main

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awspinpoint "github.com/aws/aws-sdk-go-v2/service/pinpoint"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"go.uber.org/zap"

	"github.com/aws-samples/amazon-pinpoint-facebookads-channel/internal/config"
	"github.com/aws-samples/amazon-pinpoint-facebookads-channel/internal/logger"
	"github.com/aws-samples/amazon-pinpoint-facebookads-channel/internal/platform"
	"github.com/aws-samples/amazon-pinpoint-facebookads-channel/internal/platform/facebook"
	"github.com/aws-samples/amazon-pinpoint-facebookads-channel/internal/platform/pinpoint"
	"github.com/aws-samples/amazon-pinpoint-facebookads-channel/internal/secrets"
	"github.com/aws-samples/amazon-pinpoint-facebookads-channel/internal/store/dynamodb"
	"github.com/aws-samples/amazon-pinpoint-facebookads-channel/internal/worker"
)

func main() {
	cfg, err := config.LoadWorker()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger
	log, err := logger.New(cfg.Service.Environment)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer func(log *zap.Logger) {
		err := log.Sync()
		if err != nil {
			log.Error("Failed to sync logger", zap.Error(err))
		}
	}(log)

	log.Info("Starting worker",
		zap.String("environment", cfg.Service.Environment),
		zap.String("table_name", cfg.TableName))

	ctx := context.Background()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatal("Failed to load AWS config", zap.Error(err))
	}

	var dynamoOpts []func(*awsdynamodb.Options)
	if cfg.DynamoDBEndpoint != "" {
		log.Info("Configuring DynamoDB for local development",
			zap.String("endpoint", cfg.DynamoDBEndpoint))
		dynamoOpts = append(dynamoOpts, func(o *awsdynamodb.Options) {
			o.BaseEndpoint = aws.String(cfg.DynamoDBEndpoint)
		})
	}

	provisioningStore := dynamodb.NewStore(awsdynamodb.NewFromConfig(awsCfg, dynamoOpts...), cfg.TableName, log)
	producer := pinpoint.NewClient(awspinpoint.NewFromConfig(awsCfg), log)
	resolver := secrets.NewManager(secretsmanager.NewFromConfig(awsCfg), cfg.FacebookSecret)

	newAds := func(creds *secrets.Credentials) platform.Ads {
		return facebook.NewClient(creds.AdAccountID, creds.AccessToken, log,
			facebook.WithBaseURL(cfg.GraphBaseURL),
			facebook.WithImportTimeout(time.Duration(cfg.ImportTimeoutSec)*time.Second))
	}

	w := worker.New(provisioningStore, producer, resolver, newAds, cfg.AdCountries, log)

	lambda.Start(w.HandleSQS)
}
