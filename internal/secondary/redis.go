package secondary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Request is the envelope pushed onto the bridge queue. The bridge worker
// runs Script with Payload and pushes the raw JSON response onto ReplyTo.
type Request struct {
	ID      string          `json:"id"`
	Script  string          `json:"script"`
	Payload json.RawMessage `json:"payload"`
	ReplyTo string          `json:"reply_to"`
}

// RedisInvoker sends requests over a Redis list and waits for the reply on
// a per-request list.
type RedisInvoker struct {
	client  redis.UniversalClient
	queue   string
	timeout time.Duration
}

// NewRedisInvoker connects to addr.
func NewRedisInvoker(addr, queue string, timeout time.Duration) *RedisInvoker {
	return NewRedisInvokerWithClient(redis.NewClient(&redis.Options{Addr: addr}), queue, timeout)
}

// NewRedisInvokerWithClient uses an existing client.
func NewRedisInvokerWithClient(client redis.UniversalClient, queue string, timeout time.Duration) *RedisInvoker {
	return &RedisInvoker{client: client, queue: queue, timeout: timeout}
}

// ReplyKey is the list a reply for request id is pushed to.
func (r *RedisInvoker) ReplyKey(id string) string {
	return r.queue + ":reply:" + id
}

func (r *RedisInvoker) Invoke(ctx context.Context, script string, payload []byte) ([]byte, error) {
	id := uuid.NewString()
	req := Request{ID: id, Script: script, Payload: payload, ReplyTo: r.ReplyKey(id)}
	if len(req.Payload) == 0 {
		req.Payload = json.RawMessage("{}")
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	if err := r.client.RPush(ctx, r.queue, data).Err(); err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", script, err)
	}

	res, err := r.client.BLPop(ctx, r.timeout, req.ReplyTo).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%s: no reply within %s", script, r.timeout)
	}
	if err != nil {
		return nil, fmt.Errorf("await %s reply: %w", script, err)
	}
	// BLPOP returns [key, value].
	if len(res) != 2 {
		return nil, fmt.Errorf("await %s reply: unexpected result %v", script, res)
	}
	return []byte(res[1]), nil
}

// Close closes the Redis client.
func (r *RedisInvoker) Close() error {
	return r.client.Close()
}
