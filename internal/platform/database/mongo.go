package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"otpreport/internal/platform/config"
)

// The report jobs only read, so a secondary is as good as the primary.
func clientOptions(cfg config.MongoConfig) *options.ClientOptions {
	return options.Client().
		ApplyURI(cfg.URI).
		SetAppName("otpreport").
		SetReadPreference(readpref.SecondaryPreferred()).
		SetServerSelectionTimeout(30 * time.Second)
}

// Connect opens a client and pings it so a bad connection string fails the
// run at startup rather than at the first query.
func Connect(ctx context.Context, cfg config.MongoConfig) (*mongo.Client, error) {
	opts := clientOptions(cfg)
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("mongo options: %w", err)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}

	if err := client.Ping(ctx, readpref.SecondaryPreferred()); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return client, nil
}

func Collection(client *mongo.Client, cfg config.MongoConfig) *mongo.Collection {
	return client.Database(cfg.Database).Collection(cfg.Collection)
}
