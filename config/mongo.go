package config

import (
	"context"
	"crypto/tls"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var MongoClient *mongo.Client

// InitMongo connects the telemetry store.
func InitMongo(c Connections) error {
	if c.MongoURI == "" {
		return errNoMongo
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	opts := options.Client().ApplyURI(c.MongoURI).
		SetServerSelectionTimeout(20 * time.Second).
		SetConnectTimeout(15 * time.Second).
		SetMaxPoolSize(c.MongoMaxPool).
		SetMinPoolSize(1).
		SetAppName("yootherapy")

	// Atlas clusters reject the default TLS negotiation of newer Go releases.
	if c.MongoForceTLS12 {
		opts.SetTLSConfig(&tls.Config{
			InsecureSkipVerify: c.MongoInsecureTLS,
			MinVersion:         tls.VersionTLS12,
			MaxVersion:         tls.VersionTLS12,
		})
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return err
	}

	MongoClient = client
	return nil
}

// MongoDatabase returns the telemetry database handle.
func MongoDatabase(name string) (*mongo.Database, error) {
	if MongoClient == nil {
		return nil, errors.New("MongoClient is nil; call InitMongo() first")
	}
	if name == "" {
		name = "yootherapy"
	}
	return MongoClient.Database(name), nil
}
