package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultTimeout = 10 * time.Second

// NewClient connects to MongoDB at uri. The driver connects lazily, so a
// missing server shows up on the first operation, not here.
func NewClient(ctx context.Context, uri string) (*mongo.Client, error) {
	mctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	client, err := mongo.Connect(mctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	return client, nil
}
