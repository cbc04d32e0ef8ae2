package repository

import (
	"context"

	"sketch_room/internal/models"
	"sketch_room/internal/storage"
)

// ShapeRepository 是圖形的持久化介面
type ShapeRepository interface {
	Create(ctx context.Context, shape *models.Shape) error
	Update(ctx context.Context, patch *models.ShapePatch) error
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*models.Shape, error)
	FindByRoomID(ctx context.Context, roomID string) ([]models.Shape, error)
}

type shapeRepository struct {
	db *storage.PostgresDB
}

func NewShapeRepository(db *storage.PostgresDB) ShapeRepository {
	return &shapeRepository{db: db}
}

func (r *shapeRepository) Create(ctx context.Context, shape *models.Shape) error {
	return r.db.WithContext(ctx).Create(shape).Error
}

// Update 只更新 patch 中有帶的欄位
func (r *shapeRepository) Update(ctx context.Context, patch *models.ShapePatch) error {
	cols := patch.Columns()
	if len(cols) == 0 {
		_, err := r.FindByID(ctx, patch.ID)
		return err
	}
	res := r.db.WithContext(ctx).Model(&models.Shape{}).Where("id = ?", patch.ID).Updates(cols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *shapeRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Shape{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *shapeRepository) FindByID(ctx context.Context, id string) (*models.Shape, error) {
	var shape models.Shape
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&shape).Error
	if err != nil {
		return nil, translate(err)
	}
	return &shape, nil
}

// FindByRoomID 依建立時間排序回傳房間內所有圖形
func (r *shapeRepository) FindByRoomID(ctx context.Context, roomID string) ([]models.Shape, error) {
	var shapes []models.Shape
	err := r.db.WithContext(ctx).Where("room_id = ?", roomID).Order("created_at asc").Find(&shapes).Error
	return shapes, err
}
