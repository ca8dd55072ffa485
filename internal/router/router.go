package router

import (
	"time"

	"github.com/leonardodevbr/siscondi-sub000/internal/config"
	"github.com/leonardodevbr/siscondi-sub000/internal/gateway"
	"github.com/leonardodevbr/siscondi-sub000/internal/handler"
	"github.com/leonardodevbr/siscondi-sub000/internal/infra"
	"github.com/leonardodevbr/siscondi-sub000/internal/middleware"
	"github.com/leonardodevbr/siscondi-sub000/internal/repository"
	"github.com/leonardodevbr/siscondi-sub000/internal/service"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, cb *infra.CircuitBreaker) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	// ── Repositories ─────────────────────────────────────────────────────────
	shiftRepo := repository.NewShiftRepository(db)
	saleRepo := repository.NewSaleRepository(db)
	inventoryRepo := repository.NewInventoryRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	chargeRepo := repository.NewChargeRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	gateways := gateway.NewFactory(cfg, cb)
	shiftSvc := service.NewShiftService(shiftRepo)
	saleSvc := service.NewSaleService(saleRepo, shiftSvc, shiftRepo, inventoryRepo, catalogRepo, chargeRepo, gateways)
	reconcileSvc := service.NewReconcileService(saleRepo, shiftRepo, inventoryRepo, catalogRepo, chargeRepo)

	pixTTL := time.Duration(cfg.PixChargeTTLMin) * time.Minute

	// ── Handlers ─────────────────────────────────────────────────────────────
	shiftsH := handler.NewShiftsHandler(shiftSvc)
	salesH := handler.NewSalesHandler(saleSvc, gateways, pixTTL)
	webhooksH := handler.NewWebhooksHandler(reconcileSvc, gateways)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb, cb))

	// Gateway webhooks — authenticated by provider signature, not JWT.
	// Wider rate window than operator routes: providers batch their retries.
	r.POST("/webhooks/:gateway", middleware.RateLimiter(600, time.Minute), webhooksH.Receive)

	// Protected routes
	jwtMW := middleware.JWTAuth(cfg.JWTSecret)
	v1 := r.Group("/v1", jwtMW)
	{
		// Roles: cashier, supervisor, admin — declared per-endpoint
		operator := middleware.RequireRole("cashier", "supervisor", "admin")

		shifts := v1.Group("/shifts", operator)
		{
			shifts.POST("", shiftsH.Open)
			shifts.POST("/:id/close", shiftsH.Close)
			shifts.POST("/:id/movements", shiftsH.Movement)
			shifts.GET("/:id/movements", shiftsH.Movements)
			shifts.GET("/:id/balance", shiftsH.Balance)
		}

		sales := v1.Group("/sales", operator)
		{
			sales.POST("", salesH.Start)
			sales.GET("/:id", salesH.Get)
			sales.POST("/:id/lines", salesH.AddLine)
			sales.DELETE("/:id/lines/:lineId", salesH.RemoveLine)
			sales.POST("/:id/discount", salesH.Discount)
			sales.POST("/:id/payments", salesH.AddPayment)
			sales.GET("/:id/installments", salesH.Installments)
			sales.POST("/:id/pix", salesH.GeneratePix)
			sales.POST("/:id/finish", salesH.Finish)
			sales.POST("/:id/cancel", salesH.Cancel)
		}
	}

	// Swagger UI — only enabled outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
