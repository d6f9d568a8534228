package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/coscribe/coscribe/server/handlers"
	"github.com/coscribe/coscribe/server/internal/collab"
	"github.com/coscribe/coscribe/server/internal/config"
	"github.com/coscribe/coscribe/server/internal/database"
	"github.com/coscribe/coscribe/server/internal/document/service"
	"github.com/coscribe/coscribe/server/pkg/auth"
	"github.com/coscribe/coscribe/server/pkg/logger"
	"github.com/coscribe/coscribe/server/pkg/metrics"
	"github.com/coscribe/coscribe/server/pkg/middleware"
)

var startTime = time.Now()

func main() {
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: mongo=%v redis=%v jwt=%v", cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.JWT.Secret != "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := gin.New()
	r.Use(gin.Recovery())

	// CORS for the editor client
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", cfg.Server.ClientOrigin)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	})

	// Redis is optional: it enables the cross-instance delta bus and the
	// distributed rate limiter
	var rdb *redis.Client
	if cfg.Redis.Host != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warnf("redis unreachable (%s:%s), continuing without it: %v", cfg.Redis.Host, cfg.Redis.Port, err)
			rdb = nil
		} else {
			logger.Infof("connected to redis at %s:%s", cfg.Redis.Host, cfg.Redis.Port)
		}
	}

	if cfg.RateLimit.Enabled {
		win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
		if cfg.RateLimit.UseRedis && rdb != nil {
			r.Use(middleware.RedisRateLimitMiddleware(rdb, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	// Document store: Mongo when configured, in-memory otherwise (dev mode).
	// An unreachable store at startup is fatal; we never accept connections
	// we cannot persist for.
	var store service.Service
	var mongoClient *mongo.Client
	if cfg.MongoDB.URI != "" {
		const maxAttempts = 5
		backoff := time.Second
		var errConn error
		for attempt := 1; attempt <= maxAttempts; attempt++ {
			mongoClient, errConn = database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
			if errConn == nil {
				break
			}
			logger.Warnf("attempt %d/%d: failed to connect to MongoDB: %v", attempt, maxAttempts, errConn)
			if attempt < maxAttempts {
				time.Sleep(backoff)
				backoff *= 2
			}
		}
		if errConn != nil {
			logger.Fatalf("could not connect to MongoDB after %d attempts: %v", maxAttempts, errConn)
		}
		col := mongoClient.Database(cfg.MongoDB.Database).Collection("documents")
		store = service.NewMongoService(col)
		logger.Infof("using MongoDB document store (db=%s)", cfg.MongoDB.Database)
	} else {
		store = service.NewMemoryService()
		logger.Warnf("MONGODB_URI not set; using in-memory document store (no durability)")
	}

	// realtime collaboration wiring
	registry := collab.NewRegistry()
	var bus *collab.RedisBus
	if rdb != nil {
		bus = collab.NewRedisBus(rdb)
	}
	relay := collab.NewRelay(registry, bus)
	saver := collab.NewAutosaver(store, cfg.Collab.AutosaveInterval)
	gateway := collab.NewGateway(store, registry, relay, saver)
	if bus != nil {
		go bus.Subscribe(ctx, relay.HandleRemote)
		logger.Infof("cross-instance delta bus enabled (origin=%s)", bus.Origin())
	}

	var tokens *auth.JWT
	if cfg.JWT.Secret != "" {
		tokens = auth.New(cfg.JWT.Secret)
		logger.Infof("websocket handshake auth enabled")
	}
	r.GET("/ws", gateway.ServeWS(collab.WSOptions{
		AllowedOrigin: cfg.Server.ClientOrigin,
		Auth:          tokens,
		SendBuffer:    cfg.Collab.SendBuffer,
	}))

	handlers.RegisterDocumentRoutes(r, store)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})
	r.GET("/ready", func(c *gin.Context) {
		deps := gin.H{
			"storage": store != nil,
			"redis":   rdb != nil || cfg.Redis.Host == "",
		}
		c.JSON(http.StatusOK, gin.H{
			"status": "ready",
			"deps":   deps,
			"rooms":  registry.RoomCount(),
			"uptime": time.Since(startTime).String(),
		})
	})

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r}
	go func() {
		logger.Infof("coscribe server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	// graceful shutdown: stop accepting, drop sessions, close stores
	exit := make(chan os.Signal, 1)
	signal.Notify(exit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-exit
	logger.Infof("received %s, shutting down", sig)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	if mongoClient != nil {
		_ = mongoClient.Disconnect(shutdownCtx)
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	logger.Infof("shutdown complete")
}
