package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const DefaultChannel = "animevault:events"

// RedisSink republishes events on a Redis pub/sub channel so other
// processes (the worker and the API server) share one stream.
type RedisSink struct {
	client  *redis.Client
	channel string
	timeout time.Duration
}

func NewRedisSink(addr, channel string) *RedisSink {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisSink{
		client:  redis.NewClient(&redis.Options{Addr: addr}),
		channel: channel,
		timeout: 2 * time.Second,
	}
}

func (s *RedisSink) Publish(event string, data interface{}) {
	msg, err := json.Marshal(Message{Event: event, Data: data})
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.client.Publish(ctx, s.channel, msg).Err(); err != nil {
		log.Warn().Str("component", "events").Str("event", event).Err(err).Msg("redis publish failed")
	}
}

// Relay forwards messages from the Redis channel into dst until ctx ends.
func (s *RedisSink) Relay(ctx context.Context, dst *Hub) error {
	sub := s.client.Subscribe(ctx, s.channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var msg struct {
				Event string          `json:"event"`
				Data  json.RawMessage `json:"data"`
			}
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				continue
			}
			dst.Publish(msg.Event, msg.Data)
		}
	}
}

func (s *RedisSink) Close() error {
	return s.client.Close()
}
