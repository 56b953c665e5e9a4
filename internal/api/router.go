package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/facecheck/internal/api/handlers"
	"github.com/your-org/facecheck/internal/api/ws"
	"github.com/your-org/facecheck/internal/auth"
	"github.com/your-org/facecheck/internal/cache"
	"github.com/your-org/facecheck/internal/queue"
	"github.com/your-org/facecheck/internal/service"
	"github.com/your-org/facecheck/internal/storage"
)

type RouterConfig struct {
	APIKey   string
	DB       *storage.PostgresStore
	MinIO    *storage.MinIOStore
	Producer *queue.Producer
	Cache    *cache.GalleryCache // may be nil
	Hub      *ws.Hub
	Service  *service.Verification
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.DB, cfg.MinIO, cfg.Producer, cfg.Cache)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))

	// WebSocket check-in feed
	v1.GET("/ws", cfg.Hub.HandleWS)

	// Identities
	identityH := handlers.NewIdentityHandler(cfg.DB)
	v1.POST("/identities", identityH.Create)
	v1.GET("/identities", identityH.List)
	v1.GET("/identities/:id", identityH.Get)
	v1.GET("/identities/:id/attendance", identityH.AttendanceHistory)

	// Enrollments
	enrollH := handlers.NewEnrollmentHandler(cfg.Service, cfg.DB, cfg.MinIO, cfg.Producer)
	v1.POST("/identities/:id/enrollments", enrollH.Create)
	v1.POST("/identities/:id/enrollments/image", enrollH.Upload)
	v1.GET("/identities/:id/enrollments", enrollH.List)
	v1.DELETE("/identities/:id/enrollments", enrollH.DeleteAll)
	v1.DELETE("/identities/:id/enrollments/:enrollmentId", enrollH.Delete)

	// Attendance
	attH := handlers.NewAttendanceHandler(cfg.Service)
	v1.POST("/attendance/check-in", attH.CheckIn)
	v1.POST("/verify", attH.Verify)

	return r
}
