package database

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/AnshRaj112/moodiary-backend/internal/logger"
)

var Client *mongo.Client
var DB *mongo.Database

// Connect opens the MongoDB client and selects dbName. Entry saves run in
// multi-document transactions, so the deployment must be a replica set or a
// sharded cluster.
func Connect(mongoURI, dbName string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(mongoURI).
		SetServerSelectionTimeout(10 * time.Second).
		// Nested entry content decodes to maps, not ordered documents, so it
		// serialises back to JSON objects.
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})

	logger.Logger.Info("connecting to MongoDB", zap.String("database", dbName))
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return err
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer pingCancel()

	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return err
	}

	Client = client
	DB = client.Database(dbName)

	logger.Logger.Info("connected to MongoDB")
	return nil
}

func Disconnect() error {
	if Client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return Client.Disconnect(ctx)
}
