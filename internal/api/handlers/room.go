package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"sketch_room/internal/middleware"
	"sketch_room/internal/service"
)

// RoomHandler 處理與畫布房間相關的請求
type RoomHandler struct {
	roomService *service.RoomService
	logger      *slog.Logger
}

func NewRoomHandler(roomService *service.RoomService, logger *slog.Logger) *RoomHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RoomHandler{roomService: roomService, logger: logger}
}

// CreateRoom 以目前登入的使用者為房主建立房間
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var input struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.roomService.CreateRoom(c.Request.Context(), middleware.UserID(c), input.Name)
	if errors.Is(err, service.ErrInvalidRoomName) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if errors.Is(err, service.ErrGuestOwner) {
		c.JSON(http.StatusForbidden, gin.H{"error": "訪客不能建立房間"})
		return
	}
	if err != nil {
		h.logger.Error("create room failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "創建房間失敗"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"roomId": room.ID})
}

// GetRoom 回傳房間資訊
func (h *RoomHandler) GetRoom(c *gin.Context) {
	room, err := h.roomService.GetRoom(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

// ListShapes 回傳房間目前的畫布內容
func (h *RoomHandler) ListShapes(c *gin.Context) {
	shapes, err := h.roomService.ListShapes(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"shapes": shapes})
}

func (h *RoomHandler) fail(c *gin.Context, err error) {
	if errors.Is(err, service.ErrRoomNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "房間不存在"})
		return
	}
	h.logger.Error("room lookup failed", "room", c.Param("id"), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "無法讀取房間"})
}
