package models

import (
	"time"
)

// Room 表示一個協作畫布房間
type Room struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Slug      string    `gorm:"type:varchar(20);not null" json:"slug"`
	OwnerID   string    `gorm:"index;not null" json:"ownerId"` // 房主，建立後不會變更
	CreatedAt time.Time `json:"createdAt"`
	Shapes    []Shape   `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE" json:"-"`
}
