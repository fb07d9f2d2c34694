package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"focustrack-backend/internal/clock"
	"focustrack-backend/internal/config"
	"focustrack-backend/internal/database"
	"focustrack-backend/internal/handlers"
	"focustrack-backend/internal/middleware"
	"focustrack-backend/internal/repository"
	"focustrack-backend/internal/router"
	"focustrack-backend/internal/services"
	"focustrack-backend/internal/websocket"
	"focustrack-backend/internal/worker"
)

func main() {
	log.Println("🚀 Starting FocusTrack Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("✗ PostgreSQL connection failed: %v", err)
	}
	defer pool.Close()
	log.Println("✓ PostgreSQL connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClients.Close()
	log.Println("✓ Redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(pool, "migrations"); err != nil {
		log.Fatalf("✗ Database migration failed: %v", err)
	}
	log.Println("✓ Database migrations applied")

	// ──── Initialize Repositories ────
	userRepo := repository.NewUserRepo(pool)
	taskRepo := repository.NewTaskRepo(pool)
	sessionRepo := repository.NewWorkSessionRepo(pool)
	suggestionRepo := repository.NewSuggestionRepo(pool)
	scheduleRepo := repository.NewScheduleRepo(pool)

	// ──── Initialize Services ────
	clk := clock.System()
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	pushService := services.NewPushService(redisClients.Queue)
	emailService := services.NewEmailService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom)
	optimizer := services.NewHTTPOptimizer(cfg.OptimizerURL)

	escalationCfg := services.EscalationConfig{
		LightOffset:       time.Duration(cfg.LightReminderOffsetMinutes) * time.Minute,
		SnoozeIncrement:   time.Duration(cfg.SnoozeIncrementMinutes) * time.Minute,
		MaxSnoozeCount:    cfg.MaxSnoozeCount,
		UnresponsiveGrace: time.Duration(cfg.UnresponsiveGraceMinutes) * time.Minute,
		OverdueRepeat:     time.Duration(cfg.OverdueRepeatMinutes) * time.Minute,
	}
	diffCfg := services.DiffConfig{
		ReorderBlockThreshold: cfg.ReorderBlockThreshold,
		SignificantShift:      time.Duration(cfg.SignificantShiftMinutes) * time.Minute,
	}

	escalator := services.NewEscalator(clk, sessionRepo, pushService, escalationCfg)
	rescheduleService := services.NewRescheduleService(suggestionRepo, scheduleRepo, optimizer, pushService, clk, diffCfg)

	// ──── Step 5: Start Recovery Worker Pool ────
	workerPool := worker.NewPool(redisClients.Queue, sessionRepo, rescheduleService, cfg.RecoveryWorkers)

	sessionService := services.NewSessionService(
		sessionRepo,
		taskRepo,
		userRepo,
		clk,
		escalator,
		rescheduleService,
		emailService,
		workerPool,
		escalationCfg,
	)
	escalator.SetUnresponsiveFunc(sessionService.HandleUnresponsive)

	workerPool.Start()
	log.Printf("✓ Recovery worker pool started (%d goroutines)", cfg.RecoveryWorkers)

	// ──── Step 6: Start Suggestion Expiry Sweeper ────
	expirySweeper := services.NewExpirySweeper(suggestionRepo)
	expirySweeper.Start()
	log.Println("✓ Suggestion expiry sweeper started")

	// ──── Step 7: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub, cfg.JWTSecret)
	log.Println("✓ WebSocket hub started")

	// ──── Initialize Handlers ────
	sessionHandler := handlers.NewSessionHandler(sessionService)
	suggestionHandler := handlers.NewSuggestionHandler(rescheduleService)

	// ──── Step 8: Start HTTP Server ────
	r := router.New(jwtAuth, sessionHandler, suggestionHandler, wsHub, cfg.FrontendURL)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		workerPool.Stop()
		expirySweeper.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ FocusTrack Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
