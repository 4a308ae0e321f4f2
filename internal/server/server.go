package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"tasktracker/internal/config"
	"tasktracker/internal/handler"
	"tasktracker/internal/middleware"
	"tasktracker/internal/model"
	"tasktracker/internal/notifier"
	"tasktracker/internal/repository"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Server struct {
	Engine     *gin.Engine
	DB         *gorm.DB
	Config     *config.Config
	Dispatcher *notifier.Dispatcher
}

func Init(cfg *config.Config) (*Server, error) {
	// Setup GORM
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName,
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("❌ failed to connect to DB: %w", err)
	}
	log.Println("✅ Connected to database")

	if err := db.AutoMigrate(&model.User{}, &model.Task{}, &model.Comment{}); err != nil {
		return nil, fmt.Errorf("❌ failed to migrate schema: %w", err)
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	commentRepo := repository.NewCommentRepository(db)

	// Initialize notification dispatcher.
	// Без SMTP-настроек диспетчер не создается, уведомления отключены.
	var dispatcher *notifier.Dispatcher
	if cfg.MailEnabled() {
		port, err := strconv.Atoi(cfg.SMTPPort)
		if err != nil {
			return nil, fmt.Errorf("❌ invalid SMTP port %q: %w", cfg.SMTPPort, err)
		}
		mailer := notifier.NewSMTPMailer(cfg.SMTPHost, port, cfg.SMTPUser, cfg.SMTPPassword, cfg.EmailFrom)
		dispatcher = notifier.NewDispatcher(notifier.DefaultConfig(), taskRepo, commentRepo, mailer)
		dispatcher.Start()
	} else {
		log.Println("⚠️  SMTP is not configured, email notifications are disabled")
	}

	// Setup Gin
	r := gin.Default()

	// Initialize handlers
	userHandler := handler.NewUserHandler(userRepo)
	taskHandler := handler.NewTaskHandler(taskRepo, userRepo, commentRepo, dispatcher)
	commentHandler := handler.NewCommentHandler(commentRepo, taskRepo, userRepo, dispatcher)

	// Public routes
	r.POST("/registration", userHandler.Register)
	r.POST("/login", userHandler.Login)

	// Protected routes - require authentication
	authorized := r.Group("/")
	authorized.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret))
	{
		authorized.POST("/logout", userHandler.Logout)

		// Task routes
		authorized.POST("/tasks", taskHandler.Create)
		authorized.GET("/tasks", taskHandler.List)
		authorized.GET("/tasks/:id", taskHandler.GetByID)
		authorized.PUT("/tasks/:id", taskHandler.Update)

		// Comment routes
		authorized.POST("/tasks/:id/comments", commentHandler.Add)
	}

	return &Server{
		Engine:     r,
		DB:         db,
		Config:     cfg,
		Dispatcher: dispatcher,
	}, nil
}

func (s *Server) Run() {
	srv := &http.Server{
		Addr:    ":" + s.Config.ServerPort,
		Handler: s.Engine,
	}

	go func() {
		log.Printf("🚀 Server running on port %s\n", s.Config.ServerPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Failed to listen: %s\n", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %s", err)
	}

	// После остановки HTTP-сервера новые задания не появляются,
	// диспетчер дорабатывает очередь и завершается.
	s.Dispatcher.Stop()

	log.Println("✅ Server exited properly")
}
