// Package coordinator wraps the fleet's shared keyed in-memory store.
//
// The coordinator is the only synchronization point between workers: a sorted
// set of pending requests scored by expiry, per-request byte-chunk lists, and
// per-request event lists. Every operation used here is server-atomic; the
// pipelined event writes need no cross-key atomicity.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/strelka-go/backend/types"
)

// TaskQueue is the sorted set holding pending request ids, scored by the
// producer-assigned expire-at (epoch seconds).
const TaskQueue = "tasks"

const (
	dataPrefix  = "data:"
	eventPrefix = "event:"
)

// Client is a thin wrapper over the coordinator's queue/KV operations.
type Client struct {
	rdb *goredis.Client
}

// New creates a coordinator client for the given address and logical database.
// No connection is established until the first operation; use Ping to verify
// reachability at startup.
func New(addr string, db int) *Client {
	return &Client{
		rdb: goredis.NewClient(&goredis.Options{
			Addr: addr,
			DB:   db,
		}),
	}
}

// Ping verifies the coordinator is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("coordinator ping: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// PopTask atomically claims the request with the smallest expire-at from the
// task queue. Returns (nil, nil) when the queue is empty.
func (c *Client) PopTask(ctx context.Context) (*types.Task, error) {
	entries, err := c.rdb.ZPopMin(ctx, TaskQueue, 1).Result()
	if err != nil {
		return nil, fmt.Errorf("coordinator pop task: %w", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}

	rootID, ok := entries[0].Member.(string)
	if !ok {
		return nil, fmt.Errorf("coordinator pop task: non-string member %v", entries[0].Member)
	}

	sec, frac := math.Modf(entries[0].Score)
	return &types.Task{
		RootID:   rootID,
		ExpireAt: time.Unix(int64(sec), int64(frac*float64(time.Second))),
	}, nil
}

// DrainBytes left-pops every chunk from data:{pointer} and concatenates them.
// An empty list signals end-of-stream; a request whose data key was never
// written (or already expired) drains to zero bytes.
func (c *Client) DrainBytes(ctx context.Context, pointer string) ([]byte, error) {
	key := dataPrefix + pointer
	var data []byte
	for {
		chunk, err := c.rdb.LPop(ctx, key).Bytes()
		if errors.Is(err, goredis.Nil) {
			return data, nil
		}
		if err != nil {
			return nil, fmt.Errorf("coordinator drain %s: %w", key, err)
		}
		data = append(data, chunk...)
	}
}

// PushChunks right-pushes byte chunks to data:{pointer} and stamps the key
// with the request's expire-at. Scanners use this to hand extracted child
// files back to the coordinator before returning their descriptors.
func (c *Client) PushChunks(ctx context.Context, pointer string, chunks [][]byte, expireAt time.Time) error {
	key := dataPrefix + pointer
	pipe := c.rdb.Pipeline()
	for _, chunk := range chunks {
		pipe.RPush(ctx, key, chunk)
	}
	pipe.ExpireAt(ctx, key, expireAt)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("coordinator push chunks %s: %w", key, err)
	}
	return nil
}

// Emit right-pushes one serialized event record to event:{root_id} and stamps
// the key's expire-at, as a single pipelined batch.
func (c *Client) Emit(ctx context.Context, rootID string, record []byte, expireAt time.Time) error {
	key := eventPrefix + rootID
	pipe := c.rdb.Pipeline()
	pipe.RPush(ctx, key, record)
	pipe.ExpireAt(ctx, key, expireAt)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("coordinator emit %s: %w", key, err)
	}
	return nil
}

// EmitFIN pushes the stream terminator for a request.
func (c *Client) EmitFIN(ctx context.Context, rootID string, expireAt time.Time) error {
	return c.Emit(ctx, rootID, []byte(types.FIN), expireAt)
}
