// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/eyevinn/strom/internal/log"
)

// RedisBridge relays a Broadcaster's events onto a Redis pub/sub channel
// and replays events received on that channel back into the local
// Broadcaster, so multiple Strom instances behind a shared Redis present
// one logical event stream to their respective WebSocket clients.
type RedisBridge struct {
	client  *redis.Client
	channel string
	local   *Broadcaster
	selfID  string
}

// wireEvent is the shape published to Redis; SelfID lets Run's
// receive loop ignore its own publications rather than double-delivering
// them to local subscribers.
type wireEvent struct {
	SelfID string `json:"self_id"`
	Event  Event  `json:"event"`
}

// NewRedisBridge connects to addr and checks the connection with a ping;
// it does not forward anything by itself. Events reach channel only
// through Publish; call Run to start the receive loop and Close to tear
// both down. selfID should be unique per process (e.g. a hostname or uuid).
func NewRedisBridge(addr, channel, selfID string, local *Broadcaster) (*RedisBridge, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("events: redis connection failed: %w", err)
	}

	return &RedisBridge{client: client, channel: channel, local: local, selfID: selfID}, nil
}

// Publish relays ev to the shared Redis channel. Local subscribers
// already received ev directly from the Broadcaster; this only reaches
// other instances.
func (b *RedisBridge) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(wireEvent{SelfID: b.selfID, Event: ev})
	if err != nil {
		return fmt.Errorf("events: marshal for redis publish: %w", err)
	}
	return b.client.Publish(ctx, b.channel, data).Err()
}

// Run subscribes to the shared channel and forwards events originating
// from other instances into the local Broadcaster, until ctx is done.
func (b *RedisBridge) Run(ctx context.Context) {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var we wireEvent
			if err := json.Unmarshal([]byte(msg.Payload), &we); err != nil {
				log.L().Warn().Err(err).Msg("events: failed to unmarshal redis event")
				continue
			}
			if we.SelfID == b.selfID {
				continue
			}
			b.local.Publish(we.Event)
		}
	}
}

// Close closes the Redis client.
func (b *RedisBridge) Close() error {
	return b.client.Close()
}
