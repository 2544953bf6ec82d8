package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"exeat/backend/pkg/jwt"
	"exeat/backend/pkg/response"
)

// JWTAuth 校验上游认证服务签发的 Access Token
// 注入 user_id 与 roles（能力集合），供 Handler 构造操作者
func JWTAuth(jwtMgr *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, 10002, "缺少认证头")
			c.Abort()
			return
		}

		scheme, token, found := strings.Cut(authHeader, " ")
		if !found || scheme != "Bearer" || token == "" {
			response.Unauthorized(c, 10002, "认证头格式无效")
			c.Abort()
			return
		}

		claims, err := jwtMgr.ParseToken(token)
		if err != nil {
			response.Unauthorized(c, 10002, "Token 无效或已过期")
			c.Abort()
			return
		}

		if claims.TokenType != "access" {
			response.Unauthorized(c, 10002, "Token 类型无效")
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("roles", claims.Roles)

		c.Next()
	}
}

// RoleAuth 能力校验中间件：持有 allowedRoles 任一即放行
// 阶段级授权由 Service 层按当前阶段判断，这里只做粗粒度拦截
func RoleAuth(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, exists := c.Get("roles")
		if !exists {
			response.Unauthorized(c, 10002, "未认证")
			c.Abort()
			return
		}

		roles, _ := v.([]string)
		for _, held := range roles {
			for _, r := range allowedRoles {
				if held == r {
					c.Next()
					return
				}
			}
		}

		response.Forbidden(c, 10003, "无权限访问")
		c.Abort()
	}
}
