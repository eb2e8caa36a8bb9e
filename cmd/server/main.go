package main

import (
	"log"

	"github.com/gin-gonic/gin"

	"github.com/solocast/backend/config"
	"github.com/solocast/backend/internal/handlers"
	"github.com/solocast/backend/internal/metrics"
	"github.com/solocast/backend/internal/middleware"
	"github.com/solocast/backend/internal/recording"
	"github.com/solocast/backend/internal/signaling"
	"github.com/solocast/backend/internal/transcode"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	m := metrics.New()

	// Recordings storage
	store, err := recording.NewStore(cfg.Recordings.Dir, cfg.Recordings.PublicPrefix)
	if err != nil {
		log.Fatalf("Failed to prepare recordings storage: %v", err)
	}
	assembler := recording.NewAssembler(store, m)

	// Retention sweeper: once at startup, then on the configured interval
	sweeper := recording.NewSweeper(store.Root(), cfg.RetentionWindow(), cfg.Recordings.SweepInterval, m)
	sweeper.Start()

	// Transcode pipeline
	jobs := transcode.NewManager(cfg.Transcode, m)

	// Signaling hub
	directory := signaling.NewDirectory()
	hub := signaling.NewHub(directory, m, cfg.Signaling.AnnounceReplaced)
	go hub.Run()
	wsHandler := signaling.NewHandler(hub, cfg.Signaling.EventsPerSec, cfg.CORS.AllowedOrigins)

	// HTTP handlers
	recordingHandler := handlers.NewRecordingHandler(store, assembler, jobs, m)

	// Initialize rate limiter
	rateLimiter := middleware.NewRateLimiter(cfg.API.RateLimitUploadsPerSec)
	rateLimiter.Cleanup()

	// Setup Gin router
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	// Middleware
	router.Use(middleware.CORSMiddleware(cfg.CORS.AllowedOrigins))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Prometheus metrics
	router.GET("/metrics", gin.WrapH(m.Handler()))

	// Signaling channel
	router.GET("/ws", wsHandler.HandleWebSocket)

	// Recording API
	api := router.Group("/api")
	{
		api.POST("/recordings/:kind", middleware.RateLimitMiddleware(rateLimiter), recordingHandler.Upload)
		api.POST("/recordings/:kind/chunk", middleware.RateLimitMiddleware(rateLimiter), recordingHandler.UploadChunk)
		api.GET("/conversion-status/:jobId", recordingHandler.ConversionStatus)
	}

	// Stored recordings, with redirect to converted output
	router.GET("/recordings/:kind/:fileName", recordingHandler.Serve)

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Starting solocast server on %s (env: %s)", addr, cfg.Server.Env)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
