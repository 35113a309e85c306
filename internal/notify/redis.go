package notify

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"workflows/internal/domain"
)

// NewRedisClient connects and pings a redis server.
func NewRedisClient(address string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		PoolSize: 100,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return client, nil
}

// RedisPublisher broadcasts domain events on pub/sub channels named
// workflow:events:<kind>, for external dispatchers to consume.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Handle(ctx context.Context, event domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, "workflow:events:"+event.Kind(), payload).Err()
}

// SwimlaneQueue routes newly created tasks to per-swimlane work queues
// (workflow:queue:<swimlane> lists), so worker groups can BLPOP the queues of
// the lanes they serve.
type SwimlaneQueue struct {
	client *redis.Client
}

func NewSwimlaneQueue(client *redis.Client) *SwimlaneQueue {
	return &SwimlaneQueue{client: client}
}

func (q *SwimlaneQueue) Handle(ctx context.Context, event domain.Event) error {
	created, ok := event.(domain.TaskCreatedEvent)
	if !ok {
		return nil
	}
	for _, lane := range created.Swimlanes {
		if err := q.client.RPush(ctx, "workflow:queue:"+lane, created.TaskID.String()).Err(); err != nil {
			return err
		}
	}
	return nil
}
