package handlers

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"sketch_room/internal/middleware"
	"sketch_room/internal/service"
)

// WebSocketHandler 處理 WebSocket 連接
type WebSocketHandler struct {
	wsManager *service.WebSocketManager
	upgrader  websocket.Upgrader
	logger    *slog.Logger
}

// NewWebSocketHandler allowedOrigins 包含 "*" 時接受任何來源
func NewWebSocketHandler(wsManager *service.WebSocketManager, allowedOrigins []string, logger *slog.Logger) *WebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketHandler{
		wsManager: wsManager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger,
	}
}

// HandleWebSocket 升級連線並阻塞到連線結束
//
// token 可以放在 ?token= 或 accessToken cookie；沒有或無效時以訪客身分連線。
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	credential := c.Query("token")
	if credential == "" {
		credential, _ = c.Cookie(middleware.TokenCookie)
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 已經回應了錯誤
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	h.wsManager.HandleClient(conn, credential)
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.ToLower(strings.TrimRight(o, "/"))] = struct{}{}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		_, ok := set[strings.ToLower(u.Scheme+"://"+u.Host)]
		return ok
	}
}
