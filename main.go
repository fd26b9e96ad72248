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

	"onboard-hub/backend/internal/cache"
	"onboard-hub/backend/internal/config"
	"onboard-hub/backend/internal/database"
	"onboard-hub/backend/internal/handlers"
	"onboard-hub/backend/internal/middleware"
	"onboard-hub/backend/internal/monitoring"
	"onboard-hub/backend/internal/repositories"
	"onboard-hub/backend/internal/services"
	"onboard-hub/backend/internal/worker"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Application holds all application dependencies and state
type Application struct {
	Config   *config.Config
	DB       *database.DatabasePool
	Redis    *redis.Client
	Store    *cache.RedisCache
	Sessions *cache.SessionCache
	Queue    *worker.JobQueue
	Worker   *worker.Worker
	Router   *gin.Engine
	Server   *http.Server

	// Services
	AuthService     services.AuthService
	RegisterService services.RegisterService
	SignupService   services.SignupService
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to initialize application: %v", err)
	}

	app.setupRoutes()
	app.startServer()
}

func initializeApplication(cfg *config.Config) (*Application, error) {
	app := &Application{
		Config: cfg,
	}

	log.Println("🚀 Initializing Onboard Hub Backend...")
	log.Printf("📋 Environment: %s", cfg.Server.Environment)

	pool, err := database.NewDatabasePool(&database.PoolConfig{
		DSN:             cfg.GetDatabaseDSN(),
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	app.DB = pool
	log.Println("✅ Database connected and configured")

	migrationConfig := &repositories.MigrationConfig{
		MigrationsPath: "file://migrations",
		DBName:         cfg.Database.Name,
		MaxRetries:     3,
		RetryDelay:     2 * time.Second,
	}
	if err := repositories.RunMigrations(pool.DB, migrationConfig); err != nil {
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	app.Store = cache.NewRedisCache(&cache.CacheConfig{
		Addr:         cfg.GetRedisAddr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	app.Redis = app.Store.Client()
	app.Sessions = cache.NewSessionCache(app.Store)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.Store.Health(ctx); err != nil {
		log.Printf("⚠️ Redis unavailable: %v (cache reads will report unavailable until it recovers)", err)
	} else {
		log.Println("✅ Redis connected, session cache ready")
	}

	app.Queue = worker.NewJobQueue(app.Redis)
	app.Worker = worker.NewWorker(worker.WorkerConfig{
		RedisClient:  app.Redis,
		Concurrency:  2,
		PollInterval: time.Second,
		Queues:       []string{worker.DefaultQueue, worker.RetryQueue},
	})
	jobHandlers := &worker.Handlers{Sessions: app.Sessions, DB: pool.DB}
	jobHandlers.Register(app.Worker)
	app.Worker.Start(0)

	app.AuthService = services.NewAuthService(cfg.JWT)
	app.RegisterService = services.NewRegisterService()
	app.SignupService = services.NewSignupService()
	log.Println("✅ All services initialized")

	monitoring.RegisterHealthCheck("database", func(ctx context.Context) error {
		return app.DB.Health()
	})
	monitoring.RegisterHealthCheck("redis", func(ctx context.Context) error {
		return app.Store.Health(ctx)
	})

	return app, nil
}

func (app *Application) setupRoutes() {
	r := gin.New()

	r.Use(gin.Logger())
	r.Use(monitoring.MetricsMiddleware())
	r.Use(middleware.RecoveryWithLog())

	rateLimit := rate.Limit(float64(app.Config.RateLimit.RequestsPerMin) / 60.0)
	r.Use(middleware.RateLimiter(rateLimit, app.Config.RateLimit.BurstSize))

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", monitoring.HealthHandler())
	r.GET("/ready", monitoring.ReadinessHandler())
	r.GET("/live", monitoring.LivenessHandler())
	r.GET("/metrics", monitoring.MetricsHandler())

	authHandler := handlers.NewAuthHandler(app.DB.DB, app.AuthService, app.Sessions, app.Queue)
	registerHandler := handlers.NewRegisterHandler(app.DB.DB, app.RegisterService, app.Queue)
	signupHandler := handlers.NewSignupHandler(app.DB.DB, app.SignupService, app.Sessions)
	cacheHandler := handlers.NewCacheHandler(app.Store, app.Sessions, app.Queue)

	authRequired := middleware.AuthRequired(app.AuthService, app.Sessions)

	v1 := r.Group("/api/v1")

	authRoutes := v1.Group("/auth")
	{
		authRoutes.POST("/register", registerHandler.Registration)
		authRoutes.POST("/login", authHandler.Login)
		authRoutes.POST("/refresh", authHandler.Refresh)
		authRoutes.POST("/logout", authHandler.Logout)

		// Cache lookup endpoints for other services
		authRoutes.GET("/redis/:jti", authHandler.GetJWTPayload)
		authRoutes.GET("/user/:user_id/data", authHandler.GetUserData)
		authRoutes.GET("/user/:user_id/latest-jti", authHandler.GetLatestJTI)

		authRoutes.GET("/secure", authRequired, authHandler.Secure)
	}

	signupRoutes := v1.Group("/signup")
	{
		signupRoutes.GET("/questions", signupHandler.GetQuestions)
		signupRoutes.GET("/questions/:question_id", signupHandler.GetQuestionByID)

		protected := signupRoutes.Group("")
		protected.Use(authRequired)
		{
			protected.POST("/questions", signupHandler.CreateQuestion)
			protected.PUT("/questions/:question_id", signupHandler.UpdateQuestion)
			protected.DELETE("/questions/:question_id", signupHandler.DeleteQuestion)

			protected.GET("/user-info", signupHandler.GetUserInfo)
			protected.POST("/user-info", signupHandler.CreateUserInfo)
			protected.PUT("/user-info", signupHandler.UpdateUserInfo)
			protected.DELETE("/user-info", signupHandler.DeleteUserInfo)
		}
	}

	adminRoutes := v1.Group("/admin/cache")
	adminRoutes.Use(authRequired)
	{
		adminRoutes.GET("/stats", cacheHandler.GetStats)
		adminRoutes.GET("/health", cacheHandler.GetHealth)
		adminRoutes.POST("/evict/:user_id", cacheHandler.EvictUserData)
	}

	app.Router = r
}

func (app *Application) startServer() {
	addr := app.Config.GetServerAddr()

	app.Server = &http.Server{
		Addr:         addr,
		Handler:      app.Router,
		ReadTimeout:  app.Config.Server.ReadTimeout,
		WriteTimeout: app.Config.Server.WriteTimeout,
		IdleTimeout:  app.Config.Server.IdleTimeout,
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		log.Println("🛑 Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := app.Server.Shutdown(ctx); err != nil {
			log.Printf("❌ Server forced to shutdown: %v", err)
		}

		app.cleanup()
		log.Println("✅ Server stopped gracefully")
	}()

	log.Printf("🚀 Server starting on %s", addr)
	log.Printf("📊 Metrics available at http://%s/metrics", addr)
	log.Printf("💚 Health check at http://%s/health", addr)

	if err := app.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("❌ Server failed to start: %v", err)
	}
}

func (app *Application) cleanup() {
	log.Println("🧹 Cleaning up resources...")

	if app.Worker != nil {
		app.Worker.Stop()
	}

	if app.Store != nil {
		if err := app.Store.Close(); err != nil {
			log.Printf("⚠️ Error closing cache: %v", err)
		}
	}

	if app.DB != nil {
		if err := app.DB.Close(); err != nil {
			log.Printf("⚠️ Error closing database: %v", err)
		}
	}

	log.Println("✅ Cleanup complete")
}
