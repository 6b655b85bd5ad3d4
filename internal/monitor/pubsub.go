package monitor

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// PubSub bridges the in-process Hub to a single redis Pub/Sub channel per
// queue, `gateway.orders.<queueName>`, so a second gateway instance or an
// external dashboard can observe order flow without attaching to the shared
// memory ring directly. Adapted from the reference PubSubManager, collapsed
// from its per-stream subscription map (one gateway process only ever
// publishes and subscribes its own queue's single channel).
type PubSub struct {
	client  *redis.Client
	hub     *Hub
	log     *slog.Logger
	channel string
}

// NewPubSub connects to redis at addr and scopes the bridge to queueName's
// channel.
func NewPubSub(addr, queueName string, hub *Hub, log *slog.Logger) (*PubSub, error) {
	if log == nil {
		log = slog.Default()
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &PubSub{
		client:  client,
		hub:     hub,
		log:     log,
		channel: channelName(queueName),
	}, nil
}

// Publish fans ev out on the queue's redis channel.
func (p *PubSub) Publish(ctx context.Context, ev OrderFlowEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.channel, b).Err()
}

// Start subscribes to the queue's redis channel and forwards every message
// into the local hub, so websocket clients on this process see order flow
// originating from any publisher of the same channel — including another
// gateway process's monitor. It runs until ctx is cancelled.
func (p *PubSub) Start(ctx context.Context) {
	sub := p.client.Subscribe(ctx, p.channel)
	go func() {
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
				var ev OrderFlowEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					p.log.Warn("monitor: redis message unmarshal failed", "error", err)
					continue
				}
				p.hub.Publish(ev)
			}
		}
	}()
}

func channelName(queueName string) string { return "gateway.orders." + queueName }
