package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/prismbi/prism-backend/internal/data/aggregates"
	"github.com/prismbi/prism-backend/internal/platform/logger"
)

// EventBus fans dashboard mutation events out over a redis channel and
// drops the cached dashboard payloads other processes may hold.
type EventBus interface {
	aggregates.EventSink
	Subscribe(ctx context.Context, onEvent func(ev aggregates.Event)) error
	Close() error
}

type eventBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

// NewEventBus dials redis from REDIS_ADDR. REDIS_CHANNEL defaults to
// "dashboard-events".
func NewEventBus(log *logger.Logger) (EventBus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	ch := strings.TrimSpace(os.Getenv("REDIS_CHANNEL"))
	if ch == "" {
		ch = "dashboard-events"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &eventBus{
		log:     log.With("service", "RedisEventBus"),
		rdb:     rdb,
		channel: ch,
	}, nil
}

func cacheKey(dashboardID int64) string {
	return fmt.Sprintf("dashboard:%d:content", dashboardID)
}

func (b *eventBus) Publish(ctx context.Context, ev aggregates.Event) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis event bus not initialized")
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

func (b *eventBus) InvalidateDashboard(ctx context.Context, dashboardID int64) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis event bus not initialized")
	}
	return b.rdb.Del(ctx, cacheKey(dashboardID)).Err()
}

// Subscribe runs until ctx is done, forwarding decoded events. Frames
// that do not decode are logged and skipped.
func (b *eventBus) Subscribe(ctx context.Context, onEvent func(ev aggregates.Event)) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis event bus not initialized")
	}
	sub := b.rdb.Subscribe(ctx, b.channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev aggregates.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.log.Warn("dropping undecodable event frame", "error", err)
				continue
			}
			onEvent(ev)
		}
	}
}

func (b *eventBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}
