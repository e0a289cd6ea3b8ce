// Package achievement forwards progress events to the achievement subsystem.
// Delivery is best effort: failures are logged and never reach the caller.
package achievement

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Metric names recorded by the engine.
const (
	LabsCreated     = "labs_created"
	LabsUpgraded    = "labs_upgraded"
	BatchesStarted  = "batches_started"
	UnitsProduced   = "units_produced"
	DrugsUsed       = "drugs_used"
	DealsListed     = "deals_listed"
	DealsCompleted  = "deals_completed"
	DealsBusted     = "deals_busted"
	RehabsCompleted = "rehabs_completed"
)

type Hook interface {
	RecordProgress(ctx context.Context, userID uuid.UUID, metric string, amount int64)
}

// LogHook only writes the event to the log.
type LogHook struct{}

func (LogHook) RecordProgress(_ context.Context, userID uuid.UUID, metric string, amount int64) {
	log.Printf("🏆 [ACHIEVEMENT] user=%s %s +%d", userID, metric, amount)
}

// RedisHook keeps per-user counters in a hash named achievements:<user>.
type RedisHook struct {
	client  *redis.Client
	timeout time.Duration
}

func NewRedisHook(client *redis.Client) *RedisHook {
	return &RedisHook{client: client, timeout: 2 * time.Second}
}

func Key(userID uuid.UUID) string {
	return fmt.Sprintf("achievements:%s", userID)
}

func (h *RedisHook) RecordProgress(ctx context.Context, userID uuid.UUID, metric string, amount int64) {
	if amount == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	if err := h.client.HIncrBy(ctx, Key(userID), metric, amount).Err(); err != nil {
		log.Printf("⚠️ [ACHIEVEMENT] failed to record %s for %s: %v", metric, userID, err)
	}
}

// Progress reads every counter of a user.
func (h *RedisHook) Progress(ctx context.Context, userID uuid.UUID) (map[string]string, error) {
	out, err := h.client.HGetAll(ctx, Key(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read achievements: %w", err)
	}
	return out, nil
}

// OrLog returns h, or a LogHook when h is nil.
func OrLog(h Hook) Hook {
	if h == nil {
		return LogHook{}
	}
	return h
}
