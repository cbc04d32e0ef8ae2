package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"sketch_room/internal/models"
	"sketch_room/internal/repository"
)

var (
	ErrInvalidRoomName = errors.New("service: room name must be 3 to 20 characters")
	ErrRoomNotFound    = errors.New("service: room not found")
	ErrGuestOwner      = errors.New("service: guests cannot own rooms")
)

// RoomService 處理房間的建立與查詢，房間一旦建立房主就不會改變
type RoomService struct {
	rooms     repository.RoomRepository
	shapes    repository.ShapeRepository
	directory *RoomDirectory
}

func NewRoomService(rooms repository.RoomRepository, shapes repository.ShapeRepository, directory *RoomDirectory) *RoomService {
	return &RoomService{
		rooms:     rooms,
		shapes:    shapes,
		directory: directory,
	}
}

// CreateRoom 以 ownerID 為房主建立房間
func (s *RoomService) CreateRoom(ctx context.Context, ownerID, name string) (*models.Room, error) {
	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n < 3 || n > 20 {
		return nil, ErrInvalidRoomName
	}
	if ownerID == "" {
		return nil, errors.New("service: empty owner")
	}
	if IsGuest(ownerID) {
		return nil, ErrGuestOwner
	}

	room := &models.Room{
		ID:      uuid.NewString(),
		Slug:    name,
		OwnerID: ownerID,
	}
	if err := s.rooms.Create(ctx, room); err != nil {
		return nil, err
	}

	s.directory.Remember(room.ID, room.OwnerID)
	return room, nil
}

func (s *RoomService) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	room, err := s.rooms.FindByID(ctx, roomID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	return room, nil
}

// ListShapes 回傳房間目前的圖形，依建立時間排序，供客戶端載入畫布
func (s *RoomService) ListShapes(ctx context.Context, roomID string) ([]models.Shape, error) {
	if _, err := s.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	return s.shapes.FindByRoomID(ctx, roomID)
}
