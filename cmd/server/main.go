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

	"code_clash/internal/api"
	"code_clash/internal/app/ratelimit"
	"code_clash/internal/app/service"
	"code_clash/internal/common/security"
	"code_clash/internal/domain/repository"
	"code_clash/internal/platform/cache"
	"code_clash/internal/platform/config"
	"code_clash/internal/platform/database"
)

func main() {
	// 1. Load Configuration
	config.Load()
	fmt.Println("Configuration loaded.")

	// 2. Initialize JWT
	security.InitJWT()
	fmt.Println("JWT initialized.")

	// 3. Initialize Database
	database.Connect()
	defer database.Close()
	fmt.Println("Database connected.")

	// 4. Initialize Redis (shared submission rate-limit store)
	cache.ConnectRedis()
	defer cache.CloseRedis()
	fmt.Println("Redis connected.")

	// 5. Initialize Repositories
	userRepo := repository.NewPgUserRepository(database.DB)
	challengeRepo := repository.NewPgChallengeRepository(database.DB)
	submissionRepo := repository.NewPgSubmissionRepository(database.DB)
	contestRepo := repository.NewPgContestRepository(database.DB)
	leaderboardRepo := repository.NewPgLeaderboardRepository(database.DB)

	// 6. Initialize Services
	txm := repository.NewTxManager(database.DB)
	limiter := ratelimit.NewRedisLimiter(cache.RDB, config.AppConfig.SubmitCooldown)
	authService := service.NewAuthService(userRepo)
	challengeService := service.NewChallengeService(challengeRepo, txm)
	submissionService := service.NewSubmissionService(submissionRepo, challengeRepo, contestRepo, leaderboardRepo, userRepo, limiter, txm)
	contestService := service.NewContestService(contestRepo, challengeRepo, txm)
	leaderboardService := service.NewLeaderboardService(leaderboardRepo, submissionRepo, contestRepo)

	// 7. Initialize Router & HTTP Server
	router := api.NewRouter(authService, challengeService, submissionService, contestService, leaderboardService)

	server := &http.Server{
		Addr:         ":" + config.AppConfig.APIPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 8. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on port %s", config.AppConfig.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", config.AppConfig.APIPort, err)
		}
	}()
	log.Println("Server started successfully.")

	<-stop // Wait for interrupt signal

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}

	log.Println("Server stopped gracefully.")
}
