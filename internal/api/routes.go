package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"sketch_room/internal/api/handlers"
	"sketch_room/internal/metrics"
	"sketch_room/internal/middleware"
	"sketch_room/internal/service"
)

// Options 是路由需要的外部依賴
type Options struct {
	Verifier       middleware.Verifier
	Gatherer       prometheus.Gatherer // nil 時不掛 /metrics
	AllowedOrigins []string
	Logger         *slog.Logger
}

func SetupRoutes(r *gin.Engine, services *service.Services, opts Options) {
	// 初始化 handlers
	roomHandler := handlers.NewRoomHandler(services.RoomService, opts.Logger)
	wsHandler := handlers.NewWebSocketHandler(services.WebSocketManager, opts.AllowedOrigins, opts.Logger)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "找不到該路徑",
		})
	})

	// WebSocket 不強制驗證，沒有 token 的連線會成為訪客
	r.GET("/ws", wsHandler.HandleWebSocket)

	if opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler(opts.Gatherer)))
	}

	api := r.Group("/api")

	// 公開路由
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status": "ok",
			})
		})
		api.GET("/stats", func(c *gin.Context) {
			sessions, rooms := services.Registry.Stats()
			c.JSON(http.StatusOK, gin.H{
				"sessions":   sessions,
				"rooms":      rooms,
				"knownRooms": services.Directory.Len(),
			})
		})
		api.GET("/rooms/:id", roomHandler.GetRoom)
		api.GET("/rooms/:id/shapes", roomHandler.ListShapes)
	}

	// 需要驗證的路由
	authorized := api.Group("/")
	authorized.Use(middleware.AuthMiddleware(opts.Verifier))
	{
		authorized.POST("/rooms", roomHandler.CreateRoom)
	}
}
