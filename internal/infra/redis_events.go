package infra

import (
	"context"
	"log"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"libraryhub.com/internal/constants"
	"libraryhub.com/internal/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// EventMessage is the envelope published on constants.RedisChannelEvents.
type EventMessage struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    any       `json:"payload"`
}

// RedisEventPublisher publishes committed domain changes over Redis pub/sub.
type RedisEventPublisher struct {
	rdb *redis.Client
}

func NewRedisEventPublisher(rdb *redis.Client) *RedisEventPublisher {
	return &RedisEventPublisher{rdb: rdb}
}

func (p *RedisEventPublisher) Publish(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(EventMessage{
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	})
	if err != nil {
		log.Printf("EventPublisher: failed to marshal %s: %v", eventType, err)
		return
	}

	if err := p.rdb.Publish(ctx, constants.RedisChannelEvents, data).Err(); err != nil {
		log.Printf("EventPublisher: failed to publish %s: %v", eventType, err)
	}
}

var _ domain.EventPublisher = (*RedisEventPublisher)(nil)
