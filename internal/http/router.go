package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/saimali7/Tour-CRM-sub003/internal/cache"
	"github.com/saimali7/Tour-CRM-sub003/internal/config"
	"github.com/saimali7/Tour-CRM-sub003/internal/http/handlers"
	"github.com/saimali7/Tour-CRM-sub003/internal/http/middleware"
	"github.com/saimali7/Tour-CRM-sub003/internal/ports"
	"github.com/saimali7/Tour-CRM-sub003/internal/service"

	_ "github.com/saimali7/Tour-CRM-sub003/docs"
)

func Router(cfg config.Config, store ports.Store, center *service.CommandCenter, ledger *service.Ledger, projCache *cache.Cache, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Admin-Key", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = []string{cfg.CORSAllowed}
	}
	r.Use(cors.New(corsCfg))

	h := &handlers.Handler{
		Store:  store,
		Center: center,
		Ledger: ledger,
		Avail:  &service.Availability{Store: store},
		Runs: &service.RunResolver{
			Store:              store,
			Loc:                center.Params.Loc,
			MaxVehicleCapacity: center.Params.MaxVehicleCapacity,
		},
		Cache:     projCache,
		Validator: validator.New(),
		Logger:    logger,
	}

	r.GET("/healthz", h.Healthz)

	api := r.Group("/api")
	{
		api.GET("/dispatch/:date/status", h.DispatchStatus)
		api.GET("/dispatch/:date/tour-runs", h.TourRuns)
		api.GET("/dispatch/:date/timelines", h.Timelines)
		api.GET("/dispatch/:date/available-guides", h.AvailableGuides)
		api.GET("/dispatch/:date/manifest", h.Manifest)
		api.GET("/dispatch/:date/suggestions", h.Suggestions)
	}

	admin := api.Group("")
	admin.Use(middleware.AdminKey(cfg.AdminKey))
	{
		admin.POST("/dispatch/:date/optimize", h.Optimize)
		admin.POST("/dispatch/:date/assign", h.Assign)
		admin.POST("/dispatch/:date/unassign", h.Unassign)
		admin.POST("/dispatch/:date/batch", h.Batch)
		admin.POST("/dispatch/:date/warnings/resolve", h.ResolveWarning)
		admin.POST("/dispatch/:date/dispatch", h.Dispatch)
		admin.POST("/dispatch/:date/reopen", h.Reopen)
		admin.POST("/dispatch/:date/guides/temp", h.CreateTempGuide)
		admin.POST("/dispatch/:date/runs/outsourced", h.AddOutsourcedGuide)

		admin.POST("/pickups/assign", h.PickupAssign)
		admin.POST("/pickups/:id/unassign", h.PickupUnassign)
		admin.POST("/pickups/reorder", h.PickupReorder)
		admin.POST("/pickups/ghost-preview", h.PickupGhostPreview)
		admin.POST("/pickups/:id/picked-up", h.PickupPickedUp)
		admin.POST("/pickups/:id/no-show", h.PickupNoShow)
		admin.POST("/pickups/:id/time", h.PickupTime)

		admin.POST("/import", h.Import)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
