package database

import (
	"context"
	"fmt"

	"room-chat-backend/internal/env"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

type DynamoDBClient struct {
	svc *dynamodb.Client
}

func NewDynamoDBClient(ctx context.Context, cfg env.Config) (*DynamoDBClient, error) {
	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.AWSRegion),
	}

	if cfg.AWSID != "" && cfg.AWSSecret != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(cfg.AWSID, cfg.AWSSecret, cfg.AWSToken)),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	clientOpts := []func(*dynamodb.Options){}
	if cfg.DynamoDBEndpoint != "" {
		endpoint := cfg.DynamoDBEndpoint
		clientOpts = append(clientOpts, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}

	db := dynamodb.NewFromConfig(awsCfg, clientOpts...)
	return &DynamoDBClient{
		svc: db,
	}, nil
}

type Database struct {
	Client *DynamoDBClient
}

func NewDatabase(ctx context.Context, cfg env.Config) (*Database, error) {
	dbClient, err := NewDynamoDBClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init dynamodb client: %w", err)
	}

	return &Database{
		Client: dbClient,
	}, nil
}
