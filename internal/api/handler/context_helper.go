package handler

import (
	"github.com/gin-gonic/gin"

	"exeat/backend/internal/service"
	"exeat/backend/pkg/response"
)

// MustGetUserID 从 Gin 上下文中安全提取 user_id。
// 如果 JWT 中间件未正确注入 user_id，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetUserID(c *gin.Context) (string, bool) {
	v, exists := c.Get("user_id")
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}

// MustGetActor 提取操作者（user_id + roles 能力集合）
func MustGetActor(c *gin.Context) (service.Actor, bool) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return service.Actor{}, false
	}
	v, exists := c.Get("roles")
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return service.Actor{}, false
	}
	roles, ok := v.([]string)
	if !ok {
		response.Unauthorized(c, 10002, "未认证")
		return service.Actor{}, false
	}
	return service.NewActor(userID, roles), true
}
