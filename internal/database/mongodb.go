package database

import (
	"context"
	"fmt"
	"time"

	"github.com/salonmirai/sitesync/pkg/logger"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConnectMongo opens a connection and returns the client. Caller should call client.Disconnect(ctx).
func ConnectMongo(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	clientOpts := options.Client().
		ApplyURI(uri).
		SetAppName("sitesync").
		SetServerSelectionTimeout(timeout)
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// ConnectMongoWithRetry retries ConnectMongo with doubling backoff to tolerate startup races.
func ConnectMongoWithRetry(ctx context.Context, uri string, timeout time.Duration, attempts int) (*mongo.Client, error) {
	if attempts <= 0 {
		attempts = 1
	}
	backoff := time.Second
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		client, err := ConnectMongo(ctx, uri, timeout)
		if err == nil {
			return client, nil
		}
		lastErr = err
		logger.Warnf("attempt %d/%d: failed to connect to MongoDB: %v", attempt, attempts, err)
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("mongo unavailable after %d attempts: %w", attempts, lastErr)
}
