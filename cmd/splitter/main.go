package main

import (
	"context"
	"fmt"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/aws-samples/amazon-pinpoint-facebookads-channel/internal/config"
	"github.com/aws-samples/amazon-pinpoint-facebookads-channel/internal/dispatcher"
	"github.com/aws-samples/amazon-pinpoint-facebookads-channel/internal/logger"
	"github.com/aws-samples/amazon-pinpoint-facebookads-channel/internal/queue/sqs"
	"github.com/aws-samples/amazon-pinpoint-facebookads-channel/internal/splitter"
)

func main() {
	cfg, err := config.LoadSplitter()
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

	log.Info("Starting splitter",
		zap.String("environment", cfg.Service.Environment),
		zap.String("queue_url", cfg.SQS.QueueURL))

	ctx := context.Background()

	// Initialize SQS client
	sqsClient, err := sqs.NewClient(ctx, cfg.SQS, log)
	if err != nil {
		log.Fatal("Failed to create SQS client", zap.Error(err))
	}

	d := dispatcher.NewDispatcher(sqsClient, log)
	s := splitter.New(d, log)

	lambda.Start(s.Handle)
}
