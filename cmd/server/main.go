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
	"go.uber.org/zap"

	"github.com/wuwenbin0122/chathub/internal/api"
	"github.com/wuwenbin0122/chathub/internal/chat"
	"github.com/wuwenbin0122/chathub/internal/db"
	"github.com/wuwenbin0122/chathub/internal/llm"
	"github.com/wuwenbin0122/chathub/internal/lock"
	"github.com/wuwenbin0122/chathub/internal/utils"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("config: no .env file loaded: %v", err)
	}

	cfg, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("config: failed to load: %v", err)
	}

	logger := utils.MustNewLogger(cfg.Logging)
	defer logger.Sync()
	sugar := logger.Sugar()

	ctx := context.Background()

	mongoStore, err := db.NewMongo(ctx, cfg.Mongo)
	if err != nil {
		sugar.Fatalf("mongo: failed to connect: %v", err)
	}
	defer func() {
		if err := mongoStore.Close(context.Background()); err != nil {
			sugar.Warnf("mongo: close error: %v", err)
		}
	}()

	if err := mongoStore.EnsureCollections(ctx); err != nil {
		sugar.Fatalf("mongo: ensure collections: %v", err)
	}

	var locker lock.ConversationLocker = lock.NewLocalLocker()
	if cfg.Redis.Addr != "" {
		redisClient, err := lock.NewRedisClient(ctx, cfg.Redis.Addr)
		if err != nil {
			sugar.Fatalf("redis: failed to connect: %v", err)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				sugar.Warnf("redis: close error: %v", err)
			}
		}()
		locker = lock.NewRedisLocker(redisClient)
		sugar.Infof("using redis conversation locks at %s", cfg.Redis.Addr)
	}

	conversations := db.NewConversationStore(mongoStore)
	statusChecks := db.NewStatusStore(mongoStore)
	llmClient := llm.NewClient(cfg.LLM, sugar)
	chatService := chat.NewService(conversations, llmClient, locker, sugar)

	router := setupRouter(chatService, conversations, statusChecks, sugar)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sugar.Infof("server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("server crashed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		sugar.Warnf("graceful shutdown failed: %v", err)
	}

	sugar.Info("server stopped cleanly")
}

func setupRouter(chatService *chat.Service, conversations *db.ConversationStore, statusChecks *db.StatusStore, sugar *zap.SugaredLogger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOriginFunc:  func(origin string) bool { return true },
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	api.NewHandler(chatService, conversations, statusChecks, sugar).RegisterRoutes(router)

	return router
}
