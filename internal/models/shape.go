package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Shape 代表畫布上一個已持久化的圖形
//
// 伺服器只負責轉送，不解讀圖形的語意。
type Shape struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	RoomID      string    `gorm:"index;not null" json:"roomId"`
	Type        string    `gorm:"type:varchar(20);not null" json:"type"`
	X           float64   `json:"x"`
	Y           float64   `json:"y"`
	Width       *float64  `json:"width"`
	Height      *float64  `json:"height"`
	Radius      *float64  `json:"radius"`
	Fill        *string   `json:"fill"`
	Stroke      *string   `json:"stroke"`
	StrokeWidth float64   `json:"strokeWidth"`
	Opacity     float64   `json:"opacity"`
	Text        *string   `json:"text"`
	FontSize    *float64  `json:"fontSize"`
	FontFamily  *string   `json:"fontFamily"`
	Points      RawJSON   `gorm:"type:jsonb" json:"points"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ApplyDefaults 填入客戶端未提供的預設值
func (s *Shape) ApplyDefaults() {
	if s.StrokeWidth == 0 {
		s.StrokeWidth = 1
	}
	if s.Opacity == 0 {
		s.Opacity = 1
	}
}

// ShapePatch 是 shape-update 可以修改的欄位，nil 表示不變
type ShapePatch struct {
	ID     string   `json:"id"`
	X      *float64 `json:"x"`
	Y      *float64 `json:"y"`
	Width  *float64 `json:"width"`
	Height *float64 `json:"height"`
	Radius *float64 `json:"radius"`
	Points RawJSON  `json:"points"`
	Text   *string  `json:"text"`
}

// Columns 回傳要更新的資料庫欄位
func (p *ShapePatch) Columns() map[string]interface{} {
	cols := make(map[string]interface{})
	if p.X != nil {
		cols["x"] = *p.X
	}
	if p.Y != nil {
		cols["y"] = *p.Y
	}
	if p.Width != nil {
		cols["width"] = *p.Width
	}
	if p.Height != nil {
		cols["height"] = *p.Height
	}
	if p.Radius != nil {
		cols["radius"] = *p.Radius
	}
	if len(p.Points) > 0 {
		cols["points"] = p.Points
	}
	if p.Text != nil {
		cols["text"] = *p.Text
	}
	return cols
}

// ApplyTo 將變更套用到記憶體中的圖形
func (p *ShapePatch) ApplyTo(s *Shape) {
	if p.X != nil {
		s.X = *p.X
	}
	if p.Y != nil {
		s.Y = *p.Y
	}
	if p.Width != nil {
		v := *p.Width
		s.Width = &v
	}
	if p.Height != nil {
		v := *p.Height
		s.Height = &v
	}
	if p.Radius != nil {
		v := *p.Radius
		s.Radius = &v
	}
	if len(p.Points) > 0 {
		s.Points = append(RawJSON(nil), p.Points...)
	}
	if p.Text != nil {
		v := *p.Text
		s.Text = &v
	}
}

// RawJSON 是原樣保存的 JSON 欄位（例如線段的點列表）
type RawJSON []byte

var jsonNull = []byte("null")

// MarshalJSON 實作 json.Marshaler
func (r RawJSON) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return jsonNull, nil
	}
	return r, nil
}

// UnmarshalJSON 實作 json.Unmarshaler，null 視為空值
func (r *RawJSON) UnmarshalJSON(data []byte) error {
	if r == nil {
		return errors.New("models: UnmarshalJSON on nil RawJSON")
	}
	if bytes.Equal(bytes.TrimSpace(data), jsonNull) {
		*r = nil
		return nil
	}
	*r = append((*r)[0:0], data...)
	return nil
}

// Value 實作 driver.Valuer
func (r RawJSON) Value() (driver.Value, error) {
	if len(r) == 0 {
		return nil, nil
	}
	if !json.Valid(r) {
		return nil, errors.New("models: invalid json value")
	}
	return string(r), nil
}

// Scan 實作 sql.Scanner
func (r *RawJSON) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*r = nil
	case []byte:
		*r = append(RawJSON(nil), v...)
	case string:
		*r = RawJSON(v)
	default:
		return errors.New("models: unsupported type for RawJSON")
	}
	return nil
}
