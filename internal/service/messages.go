package service

import (
	"encoding/json"

	"sketch_room/internal/models"
)

// 入站訊息類型
const (
	TypeJoin        = "join"
	TypeLeave       = "leave"
	TypeShapeCreate = "shape-create"
	TypeShapeUpdate = "shape-update"
	TypeShapeDelete = "shape-delete"
	TypeCursor      = "cursor"
	TypeBlock       = "block"
	TypeUnblock     = "unblock"
	TypeKick        = "kick"
)

// 出站訊息類型
const (
	TypeRoomState    = "room-state"
	TypeMembers      = "members"
	TypeShapeDeleted = "shape-deleted"
	TypeKicked       = "kicked"
)

// InboundMessage 是客戶端送來的訊息，欄位依類型而使用
type InboundMessage struct {
	Type           string          `json:"type"`
	RoomID         string          `json:"roomId"`
	Shape          json.RawMessage `json:"shape,omitempty"`
	ShapeID        string          `json:"shapeId,omitempty"`
	X              *float64        `json:"x,omitempty"`
	Y              *float64        `json:"y,omitempty"`
	TargetIdentity string          `json:"targetIdentity,omitempty"`
}

type RoomStateMessage struct {
	Type     string `json:"type"`
	RoomID   string `json:"roomId"`
	OwnerID  string `json:"ownerId"`
	AmIOwner bool   `json:"amIOwner"`
}

type MembersMessage struct {
	Type    string   `json:"type"`
	RoomID  string   `json:"roomId"`
	Members []string `json:"members"`
}

// ShapeCreatedMessage 帶著儲存後的正式記錄
type ShapeCreatedMessage struct {
	Type   string        `json:"type"`
	RoomID string        `json:"roomId"`
	Shape  *models.Shape `json:"shape"`
}

// ShapeUpdatedMessage 原樣轉送客戶端送來的內容
type ShapeUpdatedMessage struct {
	Type   string          `json:"type"`
	RoomID string          `json:"roomId"`
	Shape  json.RawMessage `json:"shape"`
}

type ShapeDeletedMessage struct {
	Type    string `json:"type"`
	RoomID  string `json:"roomId"`
	ShapeID string `json:"shapeId"`
}

type CursorMessage struct {
	Type     string  `json:"type"`
	RoomID   string  `json:"roomId"`
	SenderID string  `json:"senderId"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

type KickedMessage struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
}

func encode(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		// 出站型別都是固定結構，不會失敗
		panic("service: encode outbound message: " + err.Error())
	}
	return data
}
