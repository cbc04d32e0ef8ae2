package service

import (
	"log/slog"

	"sketch_room/internal/metrics"
	"sketch_room/internal/repository"
	"sketch_room/pkg/config"
)

type Services struct {
	Registry         *Registry
	Directory        *RoomDirectory
	Moderation       *Moderation
	Handler          *Handler
	WebSocketManager *WebSocketManager
	RoomService      *RoomService
}

func NewServices(repos *repository.Repositories, cfg *config.Config, verifier Verifier, recorder metrics.Recorder, logger *slog.Logger) *Services {
	if logger == nil {
		logger = slog.Default()
	}

	registry := NewRegistry(logger)
	directory := NewRoomDirectory(repos.Room, logger)
	moderation := NewModeration()

	handler := NewHandler(registry, directory, moderation, repos.Shape, verifier, HandlerOptions{
		StoreTimeout: cfg.Storage.Timeout,
		RateLimit:    cfg.WebSocket.RateLimit,
		RateBurst:    cfg.WebSocket.RateBurst,
		Metrics:      recorder,
		Logger:       logger,
	})
	wsManager := NewWebSocketManager(handler, WebSocketOptions{
		ReadLimit:  cfg.WebSocket.ReadLimit,
		SendBuffer: cfg.WebSocket.SendBuffer,
		PongWait:   cfg.WebSocket.PongWait,
		WriteWait:  cfg.WebSocket.WriteWait,
	}, logger)

	return &Services{
		Registry:         registry,
		Directory:        directory,
		Moderation:       moderation,
		Handler:          handler,
		WebSocketManager: wsManager,
		RoomService:      NewRoomService(repos.Room, repos.Shape, directory),
	}
}
