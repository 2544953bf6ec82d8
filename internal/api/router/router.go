package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"exeat/backend/config"
	"exeat/backend/internal/api/handler"
	"exeat/backend/internal/api/middleware"
	"exeat/backend/pkg/jwt"
	"exeat/backend/pkg/redis"
)

const (
	maxBodyBytes      = 1 << 20
	consentRateLimit  = 10
	consentRateWindow = time.Minute
)

// 能力分组
var (
	staffRoles    = []string{"cmd", "secretary", "deputy_dean", "dean", "hostel_admin", "security", "admin"}
	delegateRoles = []string{"deputy_dean", "dean", "admin"}
)

// Setup 初始化并返回 Gin 路由引擎
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(maxBodyBytes))
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 家长同意（公开，按 IP 限流）
		v1.POST("/consent/:token",
			middleware.RateLimit(rdb, consentRateLimit, consentRateWindow, logger),
			h.Consent.Resolve,
		)

		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr))
		{
			exeats := authorized.Group("/exeats")
			{
				exeats.POST("", middleware.RoleAuth("student"), h.Exeat.Submit)
				exeats.GET("/mine", middleware.RoleAuth("student"), h.Exeat.ListMine)
				exeats.GET("", middleware.RoleAuth(staffRoles...), h.Exeat.ListByStage)
				exeats.POST("/bulk", middleware.RoleAuth(staffRoles...), h.Exeat.BulkApply)
				exeats.POST("/override", middleware.RoleAuth("dean", "admin"), h.Exeat.Override)

				exeats.GET("/:id", h.Exeat.Get) // 学生仅本人（Service 层鉴权）
				exeats.GET("/:id/audit", h.Exeat.ListAudit)
				exeats.POST("/:id/approve", middleware.RoleAuth(staffRoles...), h.Exeat.Approve)
				exeats.POST("/:id/reject", middleware.RoleAuth(staffRoles...), h.Exeat.Reject)
				exeats.POST("/:id/appeal", middleware.RoleAuth("student"), h.Exeat.Appeal)
				exeats.POST("/:id/consent/delegate", middleware.RoleAuth(delegateRoles...), h.Consent.Delegate)
			}

			debts := authorized.Group("/debts")
			{
				debts.GET("/mine", middleware.RoleAuth("student"), h.Debt.ListMine)
				debts.PUT("/:id/settle", middleware.RoleAuth("admin"), h.Debt.Settle)
			}
		}
	}

	return r
}
