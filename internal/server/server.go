package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"todotree/internal/auth"
	"todotree/internal/config"
	"todotree/internal/graphstore"
	"todotree/internal/handler"
	"todotree/internal/logger"
	"todotree/internal/middleware"
	"todotree/internal/migrations"
	"todotree/internal/repository"
	"todotree/internal/service"
	"todotree/internal/suggest"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Server struct {
	Engine *gin.Engine
	DB     *gorm.DB
	Config *config.Config
	Log    *log.Logger

	closers []func(context.Context) error
}

func Init(cfg *config.Config, l *log.Logger) (*Server, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to DB: %w", err)
	}
	l.Info("Connected to database", "host", cfg.DBHost, "db", cfg.DBName)

	if cfg.RunMigrations {
		if err := migrations.Up(cfg.MigrateURL()); err != nil {
			return nil, fmt.Errorf("failed to apply migrations: %w", err)
		}
		l.Info("Migrations applied")
	}

	s := &Server{DB: db, Config: cfg, Log: l}

	taskStore, err := s.taskStore(cfg)
	if err != nil {
		return nil, err
	}

	if err := handler.RegisterValidators(); err != nil {
		return nil, fmt.Errorf("register validators: %w", err)
	}

	// Initialize repositories and services
	userRepo := repository.NewUserRepository(db)
	tokens := auth.NewManager(cfg.JWTSecret, cfg.JWTExpiry)
	taskService := service.NewTaskService(taskStore, newSuggester(cfg, l), l)

	// Initialize handlers
	userHandler := handler.NewUserHandler(userRepo, tokens)
	taskHandler := handler.NewTaskHandler(taskService)

	r := gin.New()
	r.Use(gin.Recovery(), logger.RequestLogger(l))

	// Public routes
	r.POST("/register", userHandler.Register)
	r.POST("/login", userHandler.Login)
	r.GET("/healthz", s.health)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Protected routes - require authentication
	authorized := r.Group("/")
	authorized.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret))
	{
		authorized.GET("/me", userHandler.Me)

		authorized.GET("/tasks", taskHandler.List)
		authorized.POST("/tasks", taskHandler.Create)
		authorized.GET("/tasks/:id", taskHandler.GetByID)
		authorized.PUT("/tasks/:id", taskHandler.Update)
		authorized.PATCH("/tasks/:id", taskHandler.Update)
		authorized.DELETE("/tasks/:id", taskHandler.Delete)
		authorized.POST("/tasks/:id/toggle", taskHandler.Toggle)
		authorized.POST("/tasks/:id/subtasks", taskHandler.CreateSubtask)

		// Подсказки подзадач
		authorized.POST("/tasks/:id/suggestions", taskHandler.Suggest)
		authorized.POST("/tasks/:id/suggestions/accept", taskHandler.AcceptSuggestion)
	}

	s.Engine = r
	return s, nil
}

// taskStore picks the task backend named by STORE_DRIVER.
func (s *Server) taskStore(cfg *config.Config) (repository.TaskRepositoryInterface, error) {
	if cfg.StoreDriver != config.StoreNeo4j {
		return repository.NewTaskRepository(s.DB), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	driver, err := graphstore.Connect(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword)
	if err != nil {
		return nil, err
	}
	if err := graphstore.EnsureSchema(ctx, driver); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("prepare neo4j schema: %w", err)
	}
	s.closers = append(s.closers, driver.Close)
	s.Log.Info("Tasks stored in Neo4j", "uri", cfg.Neo4jURI)
	return graphstore.NewTaskStore(driver), nil
}

// newSuggester returns nil without an API key; the service then always
// falls back to manual entry.
func newSuggester(cfg *config.Config, l *log.Logger) service.Suggester {
	if cfg.GeminiAPIKey == "" {
		l.Warn("GEMINI_API_KEY is not set, subtask suggestions are disabled")
		return nil
	}

	tuning := cfg.Suggest
	gen := suggest.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiBaseURL, suggest.GenerationConfig{
		Temperature:     tuning.Temperature,
		TopK:            tuning.TopK,
		TopP:            tuning.TopP,
		MaxOutputTokens: tuning.MaxOutputTokens,
	})
	return suggest.New(gen, suggest.Options{
		Count:    tuning.Count,
		MinCount: tuning.MinCount,
		Timeout:  tuning.Timeout(),
	})
}

func (s *Server) health(c *gin.Context) {
	sqlDB, err := s.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "error": "database unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": gin.H{"alive": true}})
}

func (s *Server) Run() error {
	srv := &http.Server{
		Addr:    ":" + s.Config.ServerPort,
		Handler: s.Engine,
	}

	errCh := make(chan error, 1)
	go func() {
		s.Log.Info("Server running", "port", s.Config.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("failed to listen: %w", err)
	case <-quit:
	}
	s.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	for _, closeFn := range s.closers {
		if err := closeFn(ctx); err != nil {
			s.Log.Warn("close failed", "err", err)
		}
	}
	if sqlDB, err := s.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}

	s.Log.Info("Server exited properly")
	return nil
}
