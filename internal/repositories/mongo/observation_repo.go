package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/yoockh/yootherapy/internal/models"
	"github.com/yoockh/yootherapy/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ObservationRepository is the append-only telemetry store. Records are
// ordered by created_at, with the ObjectID breaking ties inside one
// millisecond.
type ObservationRepository interface {
	Append(ctx context.Context, o *models.Observation) error
	LatestStartedForTrial(ctx context.Context, trialID string) (*models.Observation, error)
	LastStarted(ctx context.Context, sessionID string) (*models.Observation, error)
	// RecentOutcomes returns up to limit trial_telemetry records, newest first.
	RecentOutcomes(ctx context.Context, sessionID string, limit int) ([]models.Observation, error)
	LatestOutcomeID(ctx context.Context, sessionID string) (string, error)
	Outcomes(ctx context.Context, sessionID string) ([]models.Observation, error)
}

var (
	newestFirst = bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}
	oldestFirst = bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}
)

type observationRepo struct {
	col *mongo.Collection
}

func NewObservationRepo(db *mongo.Database) ObservationRepository {
	return &observationRepo{col: db.Collection("observations")}
}

func (r *observationRepo) Append(ctx context.Context, o *models.Observation) error {
	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	_, err := r.col.InsertOne(ctx, o)
	return err
}

func (r *observationRepo) latest(ctx context.Context, filter bson.M) (*models.Observation, error) {
	var o models.Observation
	opts := options.FindOne().SetSort(newestFirst)
	err := r.col.FindOne(ctx, filter, opts).Decode(&o)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *observationRepo) LatestStartedForTrial(ctx context.Context, trialID string) (*models.Observation, error) {
	return r.latest(ctx, bson.M{"trial_id": trialID, "kind": models.KindTrialStarted})
}

func (r *observationRepo) LastStarted(ctx context.Context, sessionID string) (*models.Observation, error) {
	return r.latest(ctx, bson.M{"session_id": sessionID, "kind": models.KindTrialStarted})
}

func (r *observationRepo) RecentOutcomes(ctx context.Context, sessionID string, limit int) ([]models.Observation, error) {
	if limit <= 0 {
		limit = 8
	}
	opts := options.Find().
		SetSort(newestFirst).
		SetLimit(int64(limit))
	return r.find(ctx, bson.M{"session_id": sessionID, "kind": models.KindTrialTelemetry}, opts)
}

func (r *observationRepo) LatestOutcomeID(ctx context.Context, sessionID string) (string, error) {
	o, err := r.latest(ctx, bson.M{"session_id": sessionID, "kind": models.KindTrialTelemetry})
	if err != nil {
		return "", err
	}
	return o.ID.Hex(), nil
}

func (r *observationRepo) Outcomes(ctx context.Context, sessionID string) ([]models.Observation, error) {
	opts := options.Find().SetSort(oldestFirst)
	return r.find(ctx, bson.M{"session_id": sessionID, "kind": models.KindTrialTelemetry}, opts)
}

func (r *observationRepo) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Observation, error) {
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Observation
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
