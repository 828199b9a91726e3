// Package livelist implements the snapshot-subscription model both stores
// share: every mutation re-triggers delivery of the full current list, never
// a diff. Change signals travel over Redis pub/sub so that mutations made by
// any process (api or worker) reach every subscriber.
package livelist

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ObjectsChannel and AlarmsChannel name the per-user change channels.
func ObjectsChannel(userID string) string {
	return fmt.Sprintf("upwake:changes:%s:objects", userID)
}

func AlarmsChannel(userID string) string {
	return fmt.Sprintf("upwake:changes:%s:alarms", userID)
}

type Hub struct {
	client *redis.Client
	log    zerolog.Logger
}

func NewHub(client *redis.Client, log zerolog.Logger) *Hub {
	return &Hub{client: client, log: log}
}

// Notify signals that the list behind channel changed. Delivery is
// fire-and-forget; a dropped signal only delays subscribers until the next
// mutation.
func (h *Hub) Notify(ctx context.Context, channel string) {
	if h.client == nil {
		return
	}
	if err := h.client.Publish(ctx, channel, "changed").Err(); err != nil {
		h.log.Warn().Err(err).Str("channel", channel).Msg("change notify failed")
	}
}

// Snapshots subscribes to channel and emits the result of fetch once
// immediately and again after every change signal. The returned channel
// closes when ctx is done. Each element is a complete snapshot; consumers
// replace their previous copy wholesale.
func (h *Hub) Snapshots(ctx context.Context, channel string, fetch func(context.Context) (any, error)) <-chan any {
	out := make(chan any, 1)

	sub := h.client.Subscribe(ctx, channel)

	go func() {
		defer close(out)
		defer sub.Close()

		deliver := func() {
			snapshot, err := fetch(ctx)
			if err != nil {
				h.log.Error().Err(err).Str("channel", channel).Msg("snapshot fetch failed")
				return
			}
			select {
			case out <- snapshot:
			case <-ctx.Done():
			}
		}

		deliver()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				deliver()
			}
		}
	}()

	return out
}
