package main // Entry point package

import (
	"context"   // shutdown deadline
	"errors"    // server close detection
	"log"       // fallback logging before zap is ready
	"net/http"  // http.ErrServerClosed
	"os"        // signal set
	"os/signal" // graceful shutdown
	"syscall"   // SIGTERM
	"time"      // shutdown timeout

	"github.com/joho/godotenv"    // .env loading for local runs
	"github.com/labstack/echo/v4" // Echo web framework
	"go.uber.org/zap"             // structured logging

	"github.com/iliyamo/mealmatch/internal/chat"       // chat protocol
	"github.com/iliyamo/mealmatch/internal/config"     // internal config loader
	"github.com/iliyamo/mealmatch/internal/database"   // MySQL pool
	"github.com/iliyamo/mealmatch/internal/handler"    // HTTP handlers
	"github.com/iliyamo/mealmatch/internal/logging"    // zap construction
	"github.com/iliyamo/mealmatch/internal/middleware" // rate limiter
	"github.com/iliyamo/mealmatch/internal/queue"      // pool lifecycle events
	"github.com/iliyamo/mealmatch/internal/repository" // data access
	"github.com/iliyamo/mealmatch/internal/router"     // route registration
	"github.com/iliyamo/mealmatch/internal/service"    // token + auth services
	"github.com/iliyamo/mealmatch/internal/tokenchain" // refresh chain tracker
	"github.com/iliyamo/mealmatch/internal/ws"         // connection registry
)

func main() {
	_ = godotenv.Load() // a missing .env is fine outside local development

	cfg := config.Load() // Load environment config
	logger, err := logging.New(cfg)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := database.Open(cfg)
	if err != nil {
		logger.Fatal("database unavailable", zap.Error(err))
	}
	defer db.Close()

	rdb := config.NewRedisClient(config.LoadRedisConfig()) // nil when redis is down
	if rdb == nil {
		logger.Warn("redis unavailable; rate limiting and session cache disabled")
	} else {
		defer rdb.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Services
	chain := tokenchain.New(tokenchain.WithIDBytes(cfg.TokenIDBytes))
	tokens := service.NewTokenService(cfg, chain, logger)
	users := repository.NewUserRepo(db)
	auth := service.NewAuthService(users, tokens)
	sessions := repository.NewCachedSessionRepo(repository.NewSessionRepo(db), rdb, config.LoadCacheConfig(), logger)

	// Realtime
	managerOpts := []ws.Option{ws.WithQueueTimeout(cfg.WSQueueTimeout), ws.WithLogger(logger.Named("ws"))}
	if cfg.PoolEvents {
		pub := queue.NewPublisher(cfg.AMQPURL, 256, logger)
		managerOpts = append(managerOpts, ws.WithObserver(pub))
		go func() { _ = pub.Run(ctx) }()
		consumer := &queue.Consumer{URL: cfg.AMQPURL, Log: logger}
		go func() { _ = consumer.Run(ctx) }()
	}
	// One registry per protocol: pools and GLOBAL_MESSAGE never cross.
	chatManager := ws.NewManager(managerOpts...)
	sessionManager := ws.NewManager(managerOpts...)

	protoOpts := []ws.ProtocolOption{ws.WithWriteTimeout(cfg.WSWriteTimeout), ws.WithProtocolLogger(logger.Named("ws"))}
	chatProto := chat.NewProtocol(chatManager, protoOpts...)
	sessionProto := ws.NewProtocol("session", sessionManager, append(protoOpts,
		ws.WithPermissions([]ws.Permission{ws.IsSessionMember(tokens, sessions), ws.IsActiveSession(sessions)}),
	)...)

	// HTTP
	e := echo.New() // Create Echo instance
	e.HideBanner = true
	router.RegisterRoutes(e, sessionManager, chatManager)
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, logger)
	router.RegisterAuth(e, handler.NewAuthHandler(auth, tokens, !cfg.IsDevelopment(), logger), limiter)
	router.RegisterRealtime(e, handler.NewRealtimeHandler(chatProto, sessionProto))
	router.RegisterMe(e, handler.NewMeHandler(users), tokens)
	router.RegisterAdmin(e, handler.NewAdminHandler(logger, sessionManager, chatManager), tokens, users)

	addr := ":" + cfg.Port // Address string with port
	go func() {
		logger.Info("listening", zap.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	for _, m := range []*ws.Manager{sessionManager, chatManager} {
		for _, p := range m.Pools() {
			m.DisconnectPool(p.ID, ws.StatusClosing.Envelope())
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}
