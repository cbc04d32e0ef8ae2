package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"sketch_room/internal/models"
)

func shapeKey(id string) string {
	return "shape:" + id
}

// roomShapesKey 是房間內圖形 ID 的 sorted set，score 為建立時間
func roomShapesKey(roomID string) string {
	return "room:" + roomID + ":shapes"
}

func roomKey(id string) string {
	return "room:" + id
}

// RedisStore 把圖形與房間以 JSON 存在 Redis
type RedisStore struct {
	client redis.Cmdable
	now    func() time.Time
}

func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

func (s *RedisStore) Create(ctx context.Context, shape *models.Shape) error {
	now := s.now()
	shape.CreatedAt = now
	shape.UpdatedAt = now

	data, err := json.Marshal(shape)
	if err != nil {
		return fmt.Errorf("redis: marshal shape: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, shapeKey(shape.ID), data, 0)
	pipe.ZAdd(ctx, roomShapesKey(shape.RoomID), redis.Z{Score: float64(now.UnixNano()), Member: shape.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: create shape: %w", err)
	}
	return nil
}

// Update 讀出、套用後寫回；SetXX 避免把同時被刪除的圖形寫回來
func (s *RedisStore) Update(ctx context.Context, patch *models.ShapePatch) error {
	shape, err := s.FindByID(ctx, patch.ID)
	if err != nil {
		return err
	}
	patch.ApplyTo(shape)
	shape.UpdatedAt = s.now()

	data, err := json.Marshal(shape)
	if err != nil {
		return fmt.Errorf("redis: marshal shape: %w", err)
	}
	ok, err := s.client.SetXX(ctx, shapeKey(shape.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("redis: update shape: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	shape, err := s.FindByID(ctx, id)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	del := pipe.Del(ctx, shapeKey(id))
	pipe.ZRem(ctx, roomShapesKey(shape.RoomID), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: delete shape: %w", err)
	}
	if del.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) FindByID(ctx context.Context, id string) (*models.Shape, error) {
	data, err := s.client.Get(ctx, shapeKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis: get shape: %w", err)
	}

	var shape models.Shape
	if err := json.Unmarshal(data, &shape); err != nil {
		return nil, fmt.Errorf("redis: decode shape %s: %w", id, err)
	}
	return &shape, nil
}

func (s *RedisStore) FindByRoomID(ctx context.Context, roomID string) ([]models.Shape, error) {
	ids, err := s.client.ZRange(ctx, roomShapesKey(roomID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list room shapes: %w", err)
	}
	shapes := make([]models.Shape, 0, len(ids))
	if len(ids) == 0 {
		return shapes, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = shapeKey(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: load room shapes: %w", err)
	}

	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			// 索引裡殘留已刪除的 ID
			continue
		}
		var shape models.Shape
		if err := json.Unmarshal([]byte(str), &shape); err != nil {
			continue
		}
		shapes = append(shapes, shape)
	}
	return shapes, nil
}

// Rooms 回傳房間的 repository
func (s *RedisStore) Rooms() RoomRepository {
	return redisRooms{store: s}
}

type redisRooms struct {
	store *RedisStore
}

func (r redisRooms) Create(ctx context.Context, room *models.Room) error {
	room.CreatedAt = r.store.now()
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("redis: marshal room: %w", err)
	}
	ok, err := r.store.client.SetNX(ctx, roomKey(room.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("redis: create room: %w", err)
	}
	if !ok {
		return fmt.Errorf("redis: room %s already exists", room.ID)
	}
	return nil
}

func (r redisRooms) FindByID(ctx context.Context, id string) (*models.Room, error) {
	data, err := r.store.client.Get(ctx, roomKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis: get room: %w", err)
	}

	var room models.Room
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, fmt.Errorf("redis: decode room %s: %w", id, err)
	}
	return &room, nil
}
