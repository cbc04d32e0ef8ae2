package repository

import (
	"fmt"

	"sketch_room/internal/models"
	"sketch_room/internal/storage"
)

// Migrate 自動遷移房間與圖形的資料表
func Migrate(db *storage.PostgresDB) error {
	if err := db.AutoMigrate(&models.Room{}, &models.Shape{}); err != nil {
		return fmt.Errorf("failed to auto migrate database: %w", err)
	}
	return nil
}
