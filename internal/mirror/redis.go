// Package mirror announces relay attempts on a Redis pub/sub channel.
// Nothing is stored: subscribers that are not listening miss the message.
package mirror

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/vmihailenco/msgpack/v5"

	"webhookrelay/internal/data"
)

// Connect accepts either a redis:// URL or a bare host:port.
func Connect(redisURL string) (*redis.Client, error) {
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

// Publisher broadcasts relay records on a single channel.
type Publisher struct {
	client  *redis.Client
	channel string
}

// NewPublisher returns a Publisher writing to channel through client.
func NewPublisher(client *redis.Client, channel string) *Publisher {
	return &Publisher{client: client, channel: channel}
}

// Publish serializes rec to Msgpack and PUBLISHes it once.
func (p *Publisher) Publish(ctx context.Context, rec data.Record) error {
	payload, err := Encode(rec)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", p.channel, err)
	}
	return nil
}

// Encode serializes rec as Msgpack.
func Encode(rec data.Record) ([]byte, error) {
	b, err := msgpack.Marshal(&rec)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return b, nil
}

// Decode is the inverse of Encode, for subscribers.
func Decode(b []byte) (data.Record, error) {
	var rec data.Record
	if err := msgpack.Unmarshal(b, &rec); err != nil {
		return data.Record{}, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}
