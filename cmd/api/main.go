// main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/Marga-Ghale/together-culture-crm/internal/api/handlers"
	"github.com/Marga-Ghale/together-culture-crm/internal/api/middleware"
	"github.com/Marga-Ghale/together-culture-crm/internal/config"
	"github.com/Marga-Ghale/together-culture-crm/internal/cron"
	"github.com/Marga-Ghale/together-culture-crm/internal/db"
	"github.com/Marga-Ghale/together-culture-crm/internal/email"
	"github.com/Marga-Ghale/together-culture-crm/internal/notification"
	"github.com/Marga-Ghale/together-culture-crm/internal/repository"
	"github.com/Marga-Ghale/together-culture-crm/internal/seed"
	"github.com/Marga-Ghale/together-culture-crm/internal/service"
	"github.com/Marga-Ghale/together-culture-crm/internal/socket"
)

// store is what Redis and the in-process fallback both provide.
type store interface {
	service.TokenStore
	service.Cache
}

func main() {
	// ============================================
	// Load environment variables
	// ============================================
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// ============================================
	// Load configuration
	// ============================================
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Config] %v", err)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// ============================================
	// Run Database Migrations FIRST
	// ============================================
	log.Println("[DB] Running database migrations...")
	if err := db.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
		log.Fatalf("[DB] Migration failed: %v", err)
	}

	// ============================================
	// Initialize PostgreSQL
	// ============================================
	pg, err := db.NewPostgresDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[DB] %v", err)
	}
	defer pg.Close()

	repos := repository.NewRepositories(pg.Pool)

	// ============================================
	// Initialize Redis (optional)
	// ============================================
	var (
		redisDB *db.RedisDB
		kv      store = db.NewLocalStore()
	)
	if cfg.RedisURL != "" {
		redisDB, err = db.NewRedisDB(cfg.RedisURL)
		if err != nil {
			log.Printf("[Redis] Failed to connect: %v (using in-process store)", err)
		} else {
			defer redisDB.Close()
			kv = redisDB
		}
	}

	// ============================================
	// Initialize Email Service
	// ============================================
	emailSvc := email.NewService(&email.Config{
		Host:        cfg.SMTPHost,
		Port:        cfg.SMTPPort,
		User:        cfg.SMTPUser,
		Password:    cfg.SMTPPassword,
		From:        cfg.SMTPFrom,
		FromName:    cfg.SMTPFromName,
		UseTLS:      cfg.SMTPUseTLS,
		FrontendURL: cfg.FrontendURL,
	})
	if cfg.SMTPHost != "" {
		emailSvc.StartWorkers(2)
		defer emailSvc.Stop()
		log.Println("[Email] Email service initialized")
	} else {
		log.Println("[Email] Email not configured (SMTP_HOST not set)")
	}

	// ============================================
	// Initialize WebSocket Hub
	// ============================================
	hub := socket.NewHub()
	go hub.Run()
	broadcaster := socket.NewBroadcaster(hub)
	wsHandler := socket.NewHandler(hub, cfg.JWTSecret, cfg.CORSOrigins)

	// ============================================
	// Seed Data (for development)
	// ============================================
	if cfg.SeedData && !cfg.IsProduction() {
		if err := seed.SeedData(context.Background(), repos, time.Now()); err != nil {
			log.Printf("[Seed] Failed: %v", err)
		}
	}

	// ============================================
	// Initialize Services
	// ============================================
	notificationSvc := notification.NewService(repos.NotificationRepo, repos.UserRepo)
	notificationSvc.SetBroadcaster(broadcaster)

	services := service.NewServices(&service.ServiceDeps{
		Config:      cfg,
		Repos:       repos,
		NotifSvc:    notificationSvc,
		EmailSvc:    emailSvc,
		Broadcaster: broadcaster,
		Tokens:      kv,
		Cache:       kv,
	})

	h := handlers.NewHandlers(services)

	// ============================================
	// Initialize Cron Scheduler
	// ============================================
	cronScheduler := cron.NewScheduler(services, notificationSvc)
	if err := cronScheduler.Start(); err != nil {
		log.Fatalf("[Cron] %v", err)
	}
	defer cronScheduler.Stop()

	// ============================================
	// Create Gin Router
	// ============================================
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":     "healthy",
			"timestamp":  time.Now(),
			"database":   "connected",
			"cache":      getCacheStatus(redisDB),
			"websocket":  "active",
			"ws_clients": hub.GetConnectedClientsCount(),
			"email":      getEmailStatus(cfg),
		})
	})

	api := r.Group("/api")
	api.GET("/ws", wsHandler.HandleWebSocket)
	handlers.RegisterRoutes(api, h, services.Auth)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server
	go func() {
		log.Printf("[HTTP] Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

func getCacheStatus(redisDB *db.RedisDB) string {
	if redisDB != nil {
		return "connected"
	}
	return "in-process"
}

func getEmailStatus(cfg *config.Config) string {
	if cfg.SMTPHost != "" {
		return "configured"
	}
	return "disabled"
}
