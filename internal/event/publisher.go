package event

import (
	"context"
	"encoding/json"

	"studioslot/internal/logger"
	"studioslot/internal/metrics"

	"github.com/redis/go-redis/v9"
)

const queueKey = "booking_events"

// Publisher pushes committed events onto a redis list for external
// reporting consumers. Publishing is best-effort: a redis outage must
// never fail the booking operation the event describes.
type Publisher struct {
	redis *redis.Client
}

func NewPublisher(redisAddr string) *Publisher {
	return &Publisher{
		redis: redis.NewClient(&redis.Options{
			Addr: redisAddr,
		}),
	}
}

func (p *Publisher) Publish(ctx context.Context, e *Event) {
	data, err := json.Marshal(e)
	if err != nil {
		logger.Errorf("Failed to marshal booking event %d: %v", e.ID, err)
		metrics.RecordEventPublished("marshal_error")
		return
	}

	if err := p.redis.LPush(ctx, queueKey, data).Err(); err != nil {
		logger.Errorf("Failed to publish booking event %d: %v", e.ID, err)
		metrics.RecordEventPublished("error")
		return
	}

	metrics.RecordEventPublished("ok")
}

func (p *Publisher) PublishAll(ctx context.Context, events []*Event) {
	for _, e := range events {
		if e != nil {
			p.Publish(ctx, e)
		}
	}
}

func (p *Publisher) Close() error {
	return p.redis.Close()
}
