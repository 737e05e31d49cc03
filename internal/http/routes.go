package http

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sujalbistaa/guestboard/internal/board"
	"github.com/sujalbistaa/guestboard/internal/config"
	"github.com/sujalbistaa/guestboard/internal/events"
	"github.com/sujalbistaa/guestboard/internal/stream"
)

// SetupRoutes configures all application routes and middleware. ctx bounds
// the background rate-limiter sweep.
func SetupRoutes(ctx context.Context, router *gin.Engine, cfg config.Config, svc *board.Service, bus *events.Bus, streams *stream.Endpoint, log *zap.Logger) {
	env := &Env{
		Board:    svc,
		Bus:      bus,
		Streams:  streams,
		Upgrader: stream.Upgrader(cfg.CORSOrigin),
		Log:      log,
	}

	// --- Middleware ---
	router.Use(RequestLogger(log.Named("http")))
	router.Use(gin.Recovery())
	router.Use(SecurityHeadersMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.CORSOrigin},
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Admin-Token"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: cfg.CORSOrigin != "*",
	}))

	limiter := NewIPRateLimiter(rate.Limit(cfg.CreateRateRPS), cfg.CreateRateBurst)
	go limiter.Sweep(ctx, 10*time.Minute, 10*time.Minute)

	// --- Board ---
	router.GET("/message-board", env.GetEntries)
	router.POST("/message-board", CreateRateLimitMiddleware(limiter), env.PostAction)

	if cfg.AdminToken != "" {
		router.DELETE("/api/records/:id", AdminAuthMiddleware(cfg.AdminToken), env.DeleteRecord)
	} else {
		log.Warn("X_ADMIN_TOKEN not set, record deletion disabled")
	}

	// --- Push streams ---
	router.GET("/sse", env.StreamSSE)
	router.GET("/ws", env.StreamWS)
}
