package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"sketch_room/internal/models"
)

// MemoryStore 是行程內的儲存實作，重啟後資料消失
//
// MemoryStore 本身是 ShapeRepository，Rooms 回傳共用同一份資料的 RoomRepository。
type MemoryStore struct {
	mu     sync.RWMutex
	shapes map[string]models.Shape
	rooms  map[string]models.Room
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		shapes: make(map[string]models.Shape),
		rooms:  make(map[string]models.Room),
		now:    time.Now,
	}
}

func (s *MemoryStore) Create(ctx context.Context, shape *models.Shape) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	shape.CreatedAt = now
	shape.UpdatedAt = now
	s.shapes[shape.ID] = cloneShape(*shape)
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, patch *models.ShapePatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	shape, ok := s.shapes[patch.ID]
	if !ok {
		return ErrNotFound
	}
	patch.ApplyTo(&shape)
	shape.UpdatedAt = s.now()
	s.shapes[patch.ID] = shape
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.shapes[id]; !ok {
		return ErrNotFound
	}
	delete(s.shapes, id)
	return nil
}

func (s *MemoryStore) FindByID(ctx context.Context, id string) (*models.Shape, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	shape, ok := s.shapes[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := cloneShape(shape)
	return &c, nil
}

func (s *MemoryStore) FindByRoomID(ctx context.Context, roomID string) ([]models.Shape, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	shapes := make([]models.Shape, 0)
	for _, shape := range s.shapes {
		if shape.RoomID == roomID {
			shapes = append(shapes, cloneShape(shape))
		}
	}
	s.mu.RUnlock()

	sortByCreation(shapes)
	return shapes, nil
}

// Rooms 回傳房間的 repository
func (s *MemoryStore) Rooms() RoomRepository {
	return memoryRooms{store: s}
}

type memoryRooms struct {
	store *MemoryStore
}

func (r memoryRooms) Create(ctx context.Context, room *models.Room) error {
	return r.store.createRoom(ctx, room)
}

func (r memoryRooms) FindByID(ctx context.Context, id string) (*models.Room, error) {
	return r.store.findRoom(ctx, id)
}

func (s *MemoryStore) createRoom(ctx context.Context, room *models.Room) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	room.CreatedAt = s.now()
	s.rooms[room.ID] = *room
	return nil
}

func (s *MemoryStore) findRoom(ctx context.Context, id string) (*models.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &room, nil
}

// ShapeCount 回傳目前保存的圖形數量
func (s *MemoryStore) ShapeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.shapes)
}

func cloneShape(s models.Shape) models.Shape {
	if s.Points != nil {
		s.Points = append(models.RawJSON(nil), s.Points...)
	}
	return s
}

func sortByCreation(shapes []models.Shape) {
	sort.SliceStable(shapes, func(i, j int) bool {
		if shapes[i].CreatedAt.Equal(shapes[j].CreatedAt) {
			return shapes[i].ID < shapes[j].ID
		}
		return shapes[i].CreatedAt.Before(shapes[j].CreatedAt)
	})
}
