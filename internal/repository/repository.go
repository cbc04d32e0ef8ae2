package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"sketch_room/internal/storage"
	"sketch_room/pkg/config"
)

// ErrNotFound 表示查無記錄
var ErrNotFound = errors.New("repository: record not found")

type Repositories struct {
	Shape ShapeRepository
	Room  RoomRepository
}

func NewRepositories(db *storage.PostgresDB) *Repositories {
	return &Repositories{
		Shape: NewShapeRepository(db),
		Room:  NewRoomRepository(db),
	}
}

func NewRedisRepositories(client redis.Cmdable) *Repositories {
	store := NewRedisStore(client)
	return &Repositories{
		Shape: store,
		Room:  store.Rooms(),
	}
}

func NewMemoryRepositories() *Repositories {
	store := NewMemoryStore()
	return &Repositories{
		Shape: store,
		Room:  store.Rooms(),
	}
}

// Open 依設定的驅動建立 repositories，回傳的 close 函式負責釋放連線
func Open(ctx context.Context, cfg *config.Config) (*Repositories, func() error, error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		db, err := storage.NewPostgresDB(cfg.DB)
		if err != nil {
			return nil, nil, err
		}
		if err := Migrate(db); err != nil {
			db.Close()
			return nil, nil, err
		}
		return NewRepositories(db), db.Close, nil
	case config.DriverRedis:
		rdb, err := storage.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return NewRedisRepositories(rdb), rdb.Close, nil
	case config.DriverMemory:
		return NewMemoryRepositories(), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("repository: unknown storage driver %q", cfg.Storage.Driver)
	}
}
