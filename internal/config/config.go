package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Service holds settings shared by every binary.
type Service struct {
	Environment string `envconfig:"SERVICE_ENVIRONMENT" default:"development"`
}

// SQS holds the delivery-queue settings. Endpoint is only set for local
// development against an SQS-compatible emulator.
type SQS struct {
	Endpoint string `envconfig:"SQS_ENDPOINT"`
	QueueURL string `envconfig:"SQS_QUEUE_URL" required:"true"`
	Region   string `envconfig:"SQS_REGION" required:"true"`
}

// Splitter configures the splitter Lambda.
type Splitter struct {
	Service
	SQS
}

// Worker configures the ingestion worker Lambda.
type Worker struct {
	Service
	TableName        string   `envconfig:"DATA_LINK_TABLE_NAME" required:"true"`
	DynamoDBEndpoint string   `envconfig:"DYNAMODB_ENDPOINT"`
	FacebookSecret   string   `envconfig:"FACEBOOK_SECRET" required:"true"`
	GraphBaseURL     string   `envconfig:"FACEBOOK_GRAPH_BASE_URL" default:"https://graph.facebook.com/v14.0"`
	ImportTimeoutSec int      `envconfig:"FACEBOOK_IMPORT_TIMEOUT_SEC" default:"30"`
	AdCountries      []string `envconfig:"AD_COUNTRIES" default:"SG"`
}

// LocalAPI configures the local development harness.
type LocalAPI struct {
	Service
	SQS
	APIPort string `envconfig:"SERVICE_API_PORT" default:"8080"`
}

// LoadSplitter loads the splitter configuration from the environment.
func LoadSplitter() (*Splitter, error) {
	var cfg Splitter
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	return &cfg, nil
}

// LoadWorker loads the worker configuration from the environment.
func LoadWorker() (*Worker, error) {
	var cfg Worker
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	return &cfg, nil
}

// LoadLocalAPI loads the local harness configuration from the environment.
func LoadLocalAPI() (*LocalAPI, error) {
	var cfg LocalAPI
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	return &cfg, nil
}
