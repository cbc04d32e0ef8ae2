package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"sketch_room/internal/repository"
)

// RoomDirectory 把房間 ID 對應到房主
//
// 快取策略：查到的房主在行程存活期間都不會失效（房間不會改名或轉移）。
// 查無房間或儲存錯誤不快取，之後建立的房間仍可解析。
type RoomDirectory struct {
	rooms  repository.RoomRepository
	logger *slog.Logger

	mu     sync.RWMutex
	owners map[string]string
	group  singleflight.Group
}

func NewRoomDirectory(rooms repository.RoomRepository, logger *slog.Logger) *RoomDirectory {
	if logger == nil {
		logger = slog.Default()
	}
	return &RoomDirectory{
		rooms:  rooms,
		logger: logger,
		owners: make(map[string]string),
	}
}

// OwnerOf 回傳房主；第二個回傳值為 false 表示房間無法解析
//
// 同一房間的並行首次查詢只會打一次儲存；每個呼叫者最多等到自己的 ctx 結束。
func (d *RoomDirectory) OwnerOf(ctx context.Context, roomID string) (string, bool) {
	if roomID == "" {
		return "", false
	}

	d.mu.RLock()
	owner, ok := d.owners[roomID]
	d.mu.RUnlock()
	if ok {
		return owner, true
	}

	ch := d.group.DoChan(roomID, func() (interface{}, error) {
		room, err := d.rooms.FindByID(ctx, roomID)
		if err != nil {
			return "", err
		}
		d.Remember(roomID, room.OwnerID)
		return room.OwnerID, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		res.Err = ctx.Err()
	}
	if res.Err != nil {
		if !errors.Is(res.Err, repository.ErrNotFound) {
			d.logger.Warn("room owner lookup failed", "room", roomID, "error", res.Err)
		}
		return "", false
	}
	return res.Val.(string), true
}

// Remember 直接寫入快取，房間建立時使用
func (d *RoomDirectory) Remember(roomID, owner string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.owners[roomID]; !ok {
		d.owners[roomID] = owner
	}
}

// Len 回傳已快取的房間數
func (d *RoomDirectory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.owners)
}
