package public

import (
	"strings"

	handlershared "github.com/bazaar-next/internal/http/handlers/shared"
	"github.com/bazaar-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

const sessionKeyHeader = "X-Session-Key"

func respondError(c *gin.Context, code int, key string, err error) {
	handlershared.RespondError(c, code, key, err)
}

func normalizePagination(page, pageSize int) (int, int) {
	return handlershared.NormalizePagination(page, pageSize)
}

func getUserID(c *gin.Context) (uint, bool) {
	return handlershared.GetContextUint(c, "user_id")
}

// optionalUserID 可选登录：未登录返回 0。
func optionalUserID(c *gin.Context) uint {
	value, exists := c.Get("user_id")
	if !exists {
		return 0
	}
	if uid, ok := value.(uint); ok {
		return uid
	}
	return 0
}

func getSessionKey(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader(sessionKeyHeader))
}

// requireCartIdentity 购物车身份：登录用户或带会话键的游客。
func requireCartIdentity(c *gin.Context) (uint, string, bool) {
	uid := optionalUserID(c)
	sessionKey := getSessionKey(c)
	if uid == 0 && sessionKey == "" {
		respondError(c, response.CodeBadRequest, "error.session_key_required", nil)
		return 0, "", false
	}
	return uid, sessionKey, true
}
