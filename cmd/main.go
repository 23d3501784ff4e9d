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

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/forumhub/chatcore/config"
	"github.com/forumhub/chatcore/internal/consumer"
	"github.com/forumhub/chatcore/internal/handlers"
	"github.com/forumhub/chatcore/internal/repositories"
	"github.com/forumhub/chatcore/internal/routers"
	"github.com/forumhub/chatcore/internal/services"
	"github.com/forumhub/chatcore/internal/storage"
	"github.com/forumhub/chatcore/internal/utils"
	"github.com/forumhub/chatcore/internal/ws"
	"github.com/forumhub/chatcore/middleware/jwt"
	logger "github.com/forumhub/chatcore/middleware/log"
	"github.com/forumhub/chatcore/pkg/mq"
	"github.com/forumhub/chatcore/utils/ratelimit"
	"github.com/forumhub/chatcore/utils/snowflake"
)

func main() {
	cfg, err := config.LoadConfig("./config.toml")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zlog, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zlog.Close()

	dsn := storage.BuildDSN(cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.User, cfg.Postgres.Password, cfg.Postgres.DBName)
	db, err := storage.InitPostgres(dsn, cfg.Postgres.MaxIdleConns, cfg.Postgres.MaxOpenConns)
	if err != nil {
		zlog.Fatal("failed to init postgres", zap.Error(err))
	}

	redisClient, err := storage.InitRedis(&cfg.Redis)
	if err != nil {
		zlog.Fatal("failed to init redis", zap.Error(err))
	}

	ids, err := snowflake.NewGenerator(cfg.Server.WorkerID)
	if err != nil {
		zlog.Fatal("failed to init id generator", zap.Error(err))
	}

	tokens := jwt.NewTokenManager(cfg.JWT.Secret, cfg.JWT.ExpireHours, cfg.JWT.RefreshHours)

	roomRepo := repositories.NewRoomRepository(db)
	messageRepo := repositories.NewMessageRepository(db)
	cursorRepo := repositories.NewCursorRepository(db)
	reactionRepo := repositories.NewReactionRepository(db)
	groupRepo := repositories.NewGroupRepository(db)
	userRepo := repositories.NewUserRepository(db)

	roomSvc := services.NewRoomService(roomRepo, groupRepo, userRepo, zlog.Logger)
	messageSvc := services.NewMessageService(messageRepo, cursorRepo, reactionRepo, roomSvc, roomRepo, groupRepo, userRepo, ids, zlog.Logger)
	cursorSvc := services.NewCursorService(cursorRepo, messageRepo, roomSvc, zlog.Logger)
	reactionSvc := services.NewReactionService(reactionRepo, messageRepo, roomSvc, zlog.Logger)

	pool := utils.NewWorkerPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize, zlog.Logger)
	pool.Start()
	defer pool.Stop()

	hub := ws.NewHub(zlog.Logger)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go hub.Run(ctx)

	// kafka is optional: without it fan-out stays instance-local
	var producer *mq.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = mq.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, zlog.Logger)
		if err != nil {
			zlog.Warn("kafka unavailable, fan-out degrades to local hub", zap.Error(err))
			producer = nil
		} else {
			defer producer.Close()
			eventConsumer := consumer.NewEventConsumer(hub, zlog.Logger)
			if err := consumer.Start(ctx, cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.Topic, eventConsumer, zlog.Logger); err != nil {
				zlog.Warn("failed to start event consumer", zap.Error(err))
			}
		}
	}

	presence := storage.NewPresence(redisClient)
	gateway := ws.NewGateway(hub, roomSvc, messageSvc, cursorSvc, presence, zlog.Logger)

	roomHandler := handlers.NewRoomHandler(roomSvc, messageSvc)
	messageHandler := handlers.NewMessageHandler(messageSvc, cursorSvc, roomSvc, hub, producer, pool, zlog.Logger)
	reactionHandler := handlers.NewReactionHandler(reactionSvc, messageSvc, messageHandler)

	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(gin.Recovery())

	routers.Setup(r, &routers.Deps{
		Tokens:         tokens,
		Rooms:          roomHandler,
		Messages:       messageHandler,
		Reactions:      reactionHandler,
		Gateway:        gateway,
		SendLimiter:    ratelimit.NewWindowLimiter(redisClient, zlog.Logger, true),
		SendPerMinute:  cfg.RateLimit.SendPerMinute,
		MaxConcurrency: cfg.RateLimit.MaxConcurrency,
		Logger:         zlog.Logger,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		zlog.Info("server listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zlog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("forced shutdown", zap.Error(err))
		os.Exit(1)
	}
}
