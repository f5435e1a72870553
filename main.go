package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"

	"psychotest/api"
	"psychotest/cache"
	"psychotest/catalog"
	"psychotest/config"
	"psychotest/database"
	"psychotest/llm"
	"psychotest/middleware"
	"psychotest/repository"
	"psychotest/services"
	"psychotest/utils"
)

const version = "1.0.0"

func main() {
	utils.PrintBanner(os.Stdout, "PSYCHOTEST", version)

	cfg := config.LoadConfig()
	logCloser := utils.SetupLogging(utils.LogSettings{
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	defer logCloser.Close()

	db, err := database.Init(database.Settings{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN})
	if err != nil {
		log.Fatalf("FATAL: [Main] Failed to initialize database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("FATAL: [Main] Failed to auto-migrate database: %v", err)
	}

	defs, err := catalog.Load(cfg.Catalog.Dir)
	if err != nil {
		log.Fatalf("FATAL: [Main] Failed to load test definitions: %v", err)
	}
	registry, err := catalog.BuildRegistry(defs)
	if err != nil {
		log.Fatalf("FATAL: [Main] Invalid scoring configuration: %v", err)
	}

	// Initialize Repositories
	var catalogRepo repository.CatalogRepository = repository.NewCatalogRepository(db)
	if cfg.Redis.Address != "" {
		redisCache, err := cache.NewRedisCache(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Printf("WARN: [Main] Redis unavailable, serving the catalog from the database only: %v", err)
		} else {
			defer redisCache.Close()
			catalogRepo = repository.NewCachedCatalogRepository(catalogRepo, redisCache, cfg.Redis.CatalogTTL)
		}
	}
	if err := catalog.Seed(context.Background(), catalogRepo, defs); err != nil {
		log.Fatalf("FATAL: [Main] Failed to seed test catalog: %v", err)
	}
	attemptRepo := repository.NewAttemptRepository(db)
	userRepo := repository.NewUserRepository(db)
	adminRepo := repository.NewAdminRepository(db)
	log.Println("INFO: [Main] Repositories initialized.")

	// Initialize Services
	generator := llm.NewOpenAIGenerator(cfg.LLMProviders)
	attemptService := services.NewAttemptService(catalogRepo, attemptRepo, registry)
	analysisService := services.NewAnalysisService(catalogRepo, attemptRepo, generator, cfg.Analysis)
	reportService := services.NewReportService(attemptService)
	adminService := services.NewAdminService(adminRepo, catalogRepo, attemptRepo)
	log.Println("INFO: [Main] Services initialized.")

	apiHandler := api.NewAPIHandler(userRepo, attemptService, analysisService, reportService, adminService)

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	if err := r.SetTrustedProxies(nil); err != nil {
		log.Printf("WARN: [Main] Failed to reset trusted proxies: %v", err)
	}
	r.Use(middleware.Logger())
	r.Use(middleware.Cors(cfg.Server.AllowedOrigins))
	log.Println("INFO: [Main] Middlewares registered.")

	auth := middleware.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.CookieName, cfg.Auth.AdminEmail)
	analyzeLimiter := middleware.NewUserRateLimiter(cfg.Analysis.RequestsPerMinute, cfg.Analysis.Burst)
	api.RegisterRoutes(r, apiHandler, auth, analyzeLimiter)
	log.Println("INFO: [Main] Routes registered.")

	serverPort := ":" + cfg.Server.Port
	if cfg.Server.Port == "" {
		log.Println("WARN: [Main] Server port not configured, using default :8080.")
		serverPort = ":8080"
	}
	log.Printf("INFO: [Main] Starting server on port %s", serverPort)
	if err := r.Run(serverPort); err != nil {
		log.Fatalf("FATAL: [Main] Server failed to start: %v", err)
	}
}
