package availability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"salonbook/internal/config"
	"salonbook/internal/domain"
	"salonbook/internal/models"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// RedisIndex stores each slot as a JSON string plus two sorted sets: all
// slot ids scored by start, and held slot ids scored by expiry.
//
// Overlapping scans starts in [start-lookback, end), so lookback must be at
// least the longest appointment.
type RedisIndex struct {
	client   *redis.Client
	prefix   string
	lookback time.Duration
}

func NewRedisIndex(client *redis.Client, prefix string, lookback time.Duration) *RedisIndex {
	if prefix == "" {
		prefix = "availability"
	}
	if lookback <= 0 {
		lookback = 24 * time.Hour
	}
	return &RedisIndex{client: client, prefix: prefix, lookback: lookback}
}

func (r *RedisIndex) slotKey(id string) string { return r.prefix + ":slot:" + id }
func (r *RedisIndex) byStartKey() string { return r.prefix + ":by_start" }
func (r *RedisIndex) heldKey() string { return r.prefix + ":held_expiry" }

func (r *RedisIndex) Upsert(ctx context.Context, slot *models.AvailabilitySlot) error {
	data, err := json.Marshal(slot)
	if err != nil {
		return fmt.Errorf("failed to marshal slot: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.slotKey(slot.ID), data, 0)
		pipe.ZAdd(ctx, r.byStartKey(), redis.Z{Score: float64(slot.Start.Unix()), Member: slot.ID})
		if slot.Status == models.SlotHeld && slot.ExpiresAt != nil {
			pipe.ZAdd(ctx, r.heldKey(), redis.Z{Score: float64(slot.ExpiresAt.Unix()), Member: slot.ID})
		} else {
			pipe.ZRem(ctx, r.heldKey(), slot.ID)
		}
		return nil
	})
	if err != nil {
		return transient("upsert slot "+slot.ID, err)
	}
	return nil
}

func (r *RedisIndex) Delete(ctx context.Context, id string) (bool, error) {
	var del *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, r.slotKey(id))
		pipe.ZRem(ctx, r.byStartKey(), id)
		pipe.ZRem(ctx, r.heldKey(), id)
		return nil
	})
	if err != nil {
		return false, transient("delete slot "+id, err)
	}
	return del.Val() > 0, nil
}

func (r *RedisIndex) Get(ctx context.Context, id string) (*models.AvailabilitySlot, error) {
	val, err := r.client.Get(ctx, r.slotKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, transient("get slot "+id, err)
	}
	var slot models.AvailabilitySlot
	if err := json.Unmarshal([]byte(val), &slot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal slot %s: %w", id, err)
	}
	return &slot, nil
}

func (r *RedisIndex) Overlapping(ctx context.Context, start, end time.Time) ([]*models.AvailabilitySlot, error) {
	ids, err := r.client.ZRangeByScore(ctx, r.byStartKey(), &redis.ZRangeBy{
		Min: strconv.FormatInt(start.Add(-r.lookback).Unix(), 10),
		Max: "(" + strconv.FormatInt(end.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, transient("range slots", err)
	}

	slots, err := r.load(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := slots[:0]
	for _, s := range slots {
		if s != nil && models.Overlaps(s.Start, s.End, start, end) {
			out = append(out, s)
		}
	}
	sortSlots(out)
	return out, nil
}

func (r *RedisIndex) ExpiredHeld(ctx context.Context, now time.Time, limit int) ([]*models.AvailabilitySlot, error) {
	by := &redis.ZRangeBy{Min: "-inf", Max: strconv.FormatInt(now.Unix(), 10)}
	if limit > 0 {
		by.Count = int64(limit)
	}
	ids, err := r.client.ZRangeByScore(ctx, r.heldKey(), by).Result()
	if err != nil {
		return nil, transient("range expired slots", err)
	}

	slots, err := r.load(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]*models.AvailabilitySlot, 0, len(ids))
	for i, s := range slots {
		if s == nil {
			// висячий член множества без документа
			out = append(out, &models.AvailabilitySlot{ID: ids[i], Source: models.SourceHold, Status: models.SlotHeld})
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *RedisIndex) IDs(ctx context.Context) ([]string, error) {
	ids, err := r.client.ZRange(ctx, r.byStartKey(), 0, -1).Result()
	if err != nil {
		return nil, transient("list slot ids", err)
	}
	return ids, nil
}

// load fetches slots by id; missing documents come back as nil entries.
func (r *RedisIndex) load(ctx context.Context, ids []string) ([]*models.AvailabilitySlot, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.slotKey(id)
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, transient("load slots", err)
	}

	slots := make([]*models.AvailabilitySlot, len(ids))
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var slot models.AvailabilitySlot
		if err := json.Unmarshal([]byte(raw), &slot); err != nil {
			return nil, fmt.Errorf("failed to unmarshal slot %s: %w", ids[i], err)
		}
		slots[i] = &slot
	}
	return slots, nil
}

func transient(op string, err error) error {
	return fmt.Errorf("redis %s: %w: %w", op, domain.ErrTransientStorage, err)
}
