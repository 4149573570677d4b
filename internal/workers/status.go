package workers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/yootherapy/internal/models"
)

type StatusEvent struct {
	Type       string                `json:"type"`
	AnalysisID string                `json:"analysis_id"`
	Status     models.AnalysisStatus `json:"status"`
	Message    string                `json:"message,omitempty"`
	At         time.Time             `json:"at"`
}

func StatusChannel(analysisID string) string {
	return "analysis:" + analysisID + ":status"
}

type publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisStatusNotifier publishes analysis transitions for websocket
// subscribers. Publish failures are logged and otherwise ignored.
type RedisStatusNotifier struct {
	client publisher
	log    *logrus.Logger
}

func NewRedisStatusNotifier(client publisher, log *logrus.Logger) *RedisStatusNotifier {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &RedisStatusNotifier{client: client, log: log}
}

func (n *RedisStatusNotifier) Notify(ctx context.Context, analysisID string, status models.AnalysisStatus, message string) {
	payload, _ := json.Marshal(StatusEvent{
		Type:       "status",
		AnalysisID: analysisID,
		Status:     status,
		Message:    message,
		At:         time.Now().UTC(),
	})
	if err := n.client.Publish(ctx, StatusChannel(analysisID), string(payload)).Err(); err != nil {
		n.log.WithError(err).WithFields(logrus.Fields{
			"analysis_id": analysisID,
			"status":      status,
		}).Warn("status publish failed")
	}
}
