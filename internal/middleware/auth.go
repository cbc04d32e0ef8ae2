package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// UserIDKey 是驗證通過後在 gin.Context 中存放使用者 ID 的鍵
const UserIDKey = "userID"

// TokenCookie 是瀏覽器客戶端存放 token 的 cookie 名稱
const TokenCookie = "accessToken"

// Verifier 把 token 轉成使用者 ID
type Verifier interface {
	Verify(credential string) (string, error)
}

// AuthMiddleware 是一個 Gin 中間件，用於驗證請求的 JWT token
//
// 先看 Authorization: Bearer 標頭，沒有時再讀 accessToken cookie。
func AuthMiddleware(verifier Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}"})
			return
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		userID, err := verifier.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// UserID 取出 AuthMiddleware 放入的使用者 ID
func UserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}

// bearerToken 第二個回傳值為 false 表示標頭存在但格式錯誤
func bearerToken(c *gin.Context) (string, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			return "", false
		}
		return strings.TrimSpace(parts[1]), true
	}
	token, _ := c.Cookie(TokenCookie)
	return token, true
}
