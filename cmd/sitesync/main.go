package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/salonmirai/sitesync/handlers"
	"github.com/salonmirai/sitesync/internal/admin"
	"github.com/salonmirai/sitesync/internal/admins"
	"github.com/salonmirai/sitesync/internal/config"
	"github.com/salonmirai/sitesync/internal/content"
	"github.com/salonmirai/sitesync/internal/content/engine"
	contenthandler "github.com/salonmirai/sitesync/internal/content/handler"
	"github.com/salonmirai/sitesync/internal/content/repository"
	"github.com/salonmirai/sitesync/internal/content/store"
	"github.com/salonmirai/sitesync/internal/database"
	"github.com/salonmirai/sitesync/internal/gateway"
	"github.com/salonmirai/sitesync/internal/oidc"
	"github.com/salonmirai/sitesync/internal/pages"
	"github.com/salonmirai/sitesync/internal/sessions"
	"github.com/salonmirai/sitesync/internal/storage"
	"github.com/salonmirai/sitesync/pkg/logger"
	"github.com/salonmirai/sitesync/pkg/metrics"
	"github.com/salonmirai/sitesync/pkg/middleware"
)

var startTime = time.Now()

func main() {
	// initialize logging (can be controlled with LOG_LEVEL env: debug|info|warn|error|fatal)
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.Log.Level)
	logger.Configure(logger.Options{Format: cfg.Log.Format, File: cfg.Log.File})
	logger.Infof("config loaded: env=%s mongo=%v redis=%v archive=%v keycloak=%v log=%s",
		cfg.Server.Environment, cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.Archive.Enabled(), cfg.Keycloak.URL != "", logger.LevelString())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	// Lightweight CORS middleware so the static admin screens can call the API.
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Disposition, X-Archive-URL")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	})

	// local tier: Redis when configured, else process memory
	var (
		redisClient *redis.Client
		cache       repository.Cache
	)
	if cfg.Redis.Host != "" {
		redisClient, err = database.ConnectRedis(ctx, cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Warnf("failed to connect to Redis (%s): %v; using in-memory cache", cfg.Redis.Addr(), err)
		} else {
			defer func() { _ = redisClient.Close() }()
			cache = repository.NewRedisCache(redisClient, "")
			logger.Infof("connected to Redis at %s", cfg.Redis.Addr())
		}
	}
	if cache == nil {
		cache = repository.NewMemoryCache()
	}

	// remote tier: MongoDB when configured
	var remote repository.Remote
	if cfg.MongoDB.URI != "" {
		client, err := database.ConnectMongoWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, 5)
		if err != nil {
			logger.Warnf("could not connect to MongoDB: %v; running local-only", err)
		} else {
			defer func() { _ = client.Disconnect(context.Background()) }()
			db := client.Database(cfg.MongoDB.Database)
			remote = repository.NewMongoRemote(db.Collection(cfg.MongoDB.Collection), db.Collection(cfg.MongoDB.AuditCollection), cfg.MongoDB.DocumentKey)
		}
	}

	gw := gateway.New(remote, gateway.Options{ProbeInterval: cfg.Sync.ProbeInterval})
	st := store.New(cache, gw, store.Options{})
	if gw.Configured() && !gw.Connect(ctx) {
		logger.Warnf("remote store unreachable at startup; serving local content")
	}
	go func() {
		if err := gw.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Errorf("sync gateway stopped: %v", err)
		}
	}()

	var archive admin.Archive
	if cfg.Archive.Enabled() {
		a, err := storage.NewMinIOStorage(ctx, &cfg.Archive)
		if err != nil {
			logger.Warnf("export archive unavailable: %v", err)
		} else {
			archive = a
		}
	}

	ctl := admin.New(st, engine.New(), admin.Options{Archive: archive, RemoteWait: cfg.Sync.RemoteWait})
	src := ctl.Start(ctx)
	defer ctl.Close()

	hub := pages.NewHub(ctl.Document())
	unsubscribe := st.Subscribe(func(doc *content.Document, _ store.Source) { hub.Publish(doc) })
	defer unsubscribe()

	// admin authentication
	directory := admins.NewDirectory(cfg.Admin.Credentials)
	logger.Infof("admin accounts: %s", strings.Join(directory.Usernames(), ", "))
	sessionsSvc := sessions.NewService(sessions.NewCacheRepository(cache, sessions.KeyPrefix), directory, cfg).WithAudit(func(ctx context.Context, action, user string, success bool) {
		if !gw.Online() {
			return
		}
		rec := repository.AuditRecord{
			ID:        uuid.NewString(),
			Action:    action,
			User:      user,
			Timestamp: content.Timestamp(time.Now()),
			Success:   success,
		}
		if err := gw.AppendAudit(ctx, rec); err != nil {
			logger.Debugf("audit %s for %s failed: %v", action, user, err)
		}
	})
	revocations := sessions.NewRevocations(cache)
	verifiers := []middleware.Verifier{sessions.NewVerifier(sessionsSvc)}
	if issuer := oidc.IssuerURL(cfg.Keycloak); issuer != "" && cfg.Keycloak.ClientID != "" {
		ver, err := oidc.NewVerifier(ctx, issuer, cfg.Keycloak.ClientID)
		if err != nil {
			logger.Warnf("failed to initialize OIDC verifier: %v", err)
		} else {
			verifiers = append(verifiers, ver)
		}
	}
	requireAdmin := middleware.AuthMiddleware(revocations.Guard(middleware.FirstOf(verifiers...)))

	var loginLimit, apiLimit gin.HandlerFunc
	if cfg.RateLimit.Enabled {
		loginLimit = middleware.RateLimitMiddleware(cfg.RateLimit.LoginRPS, cfg.RateLimit.LoginBurst)
		if cfg.RateLimit.UseRedis && redisClient != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			apiLimit = middleware.RedisRateLimitMiddleware(redisClient, "salon_rl", cfg.RateLimit.RPS, cfg.RateLimit.Burst, win)
		} else {
			apiLimit = middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	// readiness: the local tier must answer; the remote is reported but optional
	r.GET("/ready", func(c *gin.Context) {
		deps := gin.H{"content": string(ctl.Source())}
		ready := true
		if rc, ok := cache.(*repository.RedisCache); ok {
			if err := rc.Ping(c.Request.Context()); err != nil {
				deps["redis"] = false
				ready = false
			} else {
				deps["redis"] = true
			}
		}
		status := gw.Status()
		deps["remoteConfigured"] = status.RemoteConfigured
		deps["remoteOnline"] = status.Online
		body := gin.H{"deps": deps, "uptime": time.Since(startTime).String()}
		if !ready {
			body["status"] = "not_ready"
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
		body["status"] = "ready"
		c.JSON(http.StatusOK, body)
	})

	handlers.NewAuthHandler(sessionsSvc, revocations, cfg.Server.Environment == "production").
		Register(r.Group("/admin"), loginLimit, requireAdmin)

	api := r.Group("/admin/api", requireAdmin)
	if apiLimit != nil {
		api.Use(apiLimit)
	}
	contenthandler.RegisterContentRoutes(api, ctl)

	handlers.NewPagesHandler(hub).Register(r)
	handlers.RegisterSwagger(r)

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Infof("site service listening on %s (content from %s, remote online=%v)", addr, src, gw.Online())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("graceful shutdown failed: %v", err)
	}
}
