package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"focustrack-backend/internal/models"
)

// Publisher is the best-effort live channel. Delivery failure never blocks a
// state transition; consumers re-derive state from the API.
type Publisher interface {
	Publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage) error
}

// PushService publishes to the per-user redis channel the websocket hub
// subscribes to.
type PushService struct {
	redis *redis.Client
}

func NewPushService(redisClient *redis.Client) *PushService {
	return &PushService{redis: redisClient}
}

func (s *PushService) Publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	channel := fmt.Sprintf("focus_updates:%s", userID)
	return s.redis.Publish(ctx, channel, data).Err()
}
