package config

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureMongoIndexes creates the lookups the engine relies on:
// latest observation of a kind per session and per trial.
func EnsureMongoIndexes(dbName string) error {
	db, err := MongoDatabase(dbName)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err = db.Collection("observations").Indexes().CreateMany(ctx, observationIndexes())
	return err
}

// observationIndexes end in (created_at, _id) descending to serve the
// newest-first reads of the observation repository.
func observationIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "session_id", Value: 1},
				{Key: "kind", Value: 1},
				{Key: "created_at", Value: -1},
				{Key: "_id", Value: -1},
			},
			Options: options.Index().SetName("by_session_kind_created"),
		},
		{
			Keys: bson.D{
				{Key: "trial_id", Value: 1},
				{Key: "kind", Value: 1},
				{Key: "created_at", Value: -1},
				{Key: "_id", Value: -1},
			},
			Options: options.Index().
				SetName("by_trial_kind_created").
				SetPartialFilterExpression(bson.M{"trial_id": bson.M{"$type": "string"}}),
		},
	}
}
