package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	firebase "firebase.google.com/go/v4"
	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"

	"guidedesk/internal/auth"
	"guidedesk/internal/config"
	handlers "guidedesk/internal/handlers/shared"
	"guidedesk/internal/middleware"
	"guidedesk/internal/repositories/firestore"
	"guidedesk/internal/repositories/interfaces"
	"guidedesk/internal/repositories/memory"
	"guidedesk/internal/repositories/mongodb"
	"guidedesk/internal/services"
	"guidedesk/pkg/database"
	"guidedesk/pkg/logger"
	"guidedesk/pkg/metrics"
	"guidedesk/pkg/push"
	"guidedesk/pkg/websocket"
	"guidedesk/routes"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(&logger.Config{
		Level:      logger.LogLevel(cfg.App.LogLevel),
		Format:     cfg.App.LogFormat,
		Output:     cfg.App.LogOutput,
		Caller:     cfg.App.Debug,
		AppName:    cfg.App.Name,
		Version:    cfg.App.Version,
		MaxSizeMB:  cfg.App.LogMaxSizeMB,
		MaxBackups: cfg.App.LogMaxBackups,
		MaxAgeDays: cfg.App.LogMaxAgeDays,
		Compress:   true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("Server stopped with error")
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var app *firebase.App
	if cfg.NeedsFirebase() {
		var err error
		app, err = database.NewFirebaseApp(ctx, &database.FirebaseConfig{
			ProjectID:       cfg.Firebase.ProjectID,
			CredentialsFile: cfg.Firebase.CredentialsFile,
			EmulatorHost:    cfg.Firebase.EmulatorHost,
		})
		if err != nil {
			return err
		}
	}

	store, closeBackend, err := newDocumentStore(ctx, cfg, app, log)
	if err != nil {
		return err
	}
	defer closeBackend()

	verifier, err := newVerifier(ctx, cfg, app)
	if err != nil {
		return err
	}

	var m *metrics.Metrics
	if cfg.App.MetricsEnabled {
		m = metrics.New()
	}

	var syncOpts []services.Option
	if m != nil {
		syncOpts = append(syncOpts, services.WithRecorder(m))
	}
	syncService := services.NewSyncService(store, cfg.Sync, log, syncOpts...)

	hub := websocket.NewHub(log)
	if m != nil {
		hub.SetObserver(m)
	}
	go hub.Run()
	defer hub.Close()

	live := handlers.NewLiveHandler(hub, syncService, log)
	wsHandler := websocket.NewHandler(ctx, hub, live, websocket.Options{
		ReadBufferSize:    cfg.WebSocket.ReadBufferSize,
		WriteBufferSize:   cfg.WebSocket.WriteBufferSize,
		HandshakeTimeout:  cfg.WebSocket.HandshakeTimeout,
		PingInterval:      cfg.WebSocket.PingInterval,
		PongTimeout:       cfg.WebSocket.PongTimeout,
		EnableCompression: cfg.WebSocket.EnableCompression,
		AllowedOrigins:    cfg.WebSocket.AllowedOrigins,
		Rooms:             []string{handlers.GuidesRoom},
	}, log)

	var pusher push.PushProvider
	if cfg.Push.Enabled && app != nil {
		fcm, err := push.NewFCMProvider(ctx, app)
		if err != nil {
			return err
		}
		pusher = fcm
	}

	watcher := services.NewSOSWatcher(syncService, live, pusher, cfg.Sync.SOSPushTopic, log)
	if m != nil {
		watcher.CountWith(m)
	}
	if err := watcher.Start(ctx); err != nil {
		return err
	}
	defer watcher.Stop()

	rateLimiter, closeLimiter, err := newRateLimiter(cfg, log)
	if err != nil {
		return err
	}
	defer closeLimiter()
	if rateLimiter != nil && m != nil {
		rateLimiter.WithObserver(m)
	}

	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := routes.SetupRouter(routes.Dependencies{
		SyncService:    syncService,
		Verifier:       verifier,
		WebSocket:      wsHandler,
		Backend:        store.Name(),
		Watcher:        watcher,
		Logger:         log,
		AllowedOrigins: cfg.Security.CORSAllowedOrigins,
		WebSocketPath:  cfg.WebSocket.Path,
		Push:           pusher,
		SOSTopic:       cfg.Sync.SOSPushTopic,
		Metrics:        m,
		RateLimiter:    rateLimiter,
	})
	if err := router.SetTrustedProxies(cfg.Security.TrustedProxies); err != nil {
		return fmt.Errorf("invalid trusted proxies: %w", err)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.App.Host, cfg.App.Port),
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(map[string]interface{}{
			"addr":  server.Addr,
			"store": store.Name(),
			"auth":  cfg.Security.AuthProvider,
		}).Info("Starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// newDocumentStore returns the configured backend and a func that releases
// it and any connection it owns.
func newDocumentStore(ctx context.Context, cfg *config.Config, app *firebase.App, log *logger.Logger) (interfaces.DocumentStore, func(), error) {
	switch cfg.Store.Backend {
	case "firestore":
		store, err := firestore.NewDocumentStore(ctx, app)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil

	case "mongodb":
		mongo, err := database.NewMongoDB(&database.DatabaseConfig{
			URI:            cfg.Database.URI,
			Database:       cfg.Database.Database,
			MaxPoolSize:    cfg.Database.MaxPoolSize,
			MinPoolSize:    cfg.Database.MinPoolSize,
			ConnectTimeout: cfg.Database.ConnectTimeout,
			SocketTimeout:  cfg.Database.SocketTimeout,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to mongodb: %w", err)
		}
		if cfg.Database.EnsureIndexes {
			err := database.EnsureIndexes(ctx, mongo.Database, database.Collections{
				Requests:  cfg.Store.RequestsCollection,
				SOSAlerts: cfg.Store.SOSCollection,
			}, log)
			if err != nil {
				mongo.Close()
				return nil, nil, err
			}
		}
		store := mongodb.NewDocumentStore(mongo.Database)
		return store, func() {
			store.Close()
			if err := mongo.Close(); err != nil {
				log.WithError(err).Warn("Failed to disconnect from mongodb")
			}
		}, nil

	case "memory":
		log.Warn("Using in-memory store; data is lost on restart")
		store := memory.NewDocumentStore()
		return store, func() { store.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

// newRateLimiter returns nil when rate limiting is off. The returned func
// releases the redis client when one was opened.
func newRateLimiter(cfg *config.Config, log *logger.Logger) (*middleware.RateLimiter, func(), error) {
	noop := func() {}
	if !cfg.RateLimit.Enabled {
		return nil, noop, nil
	}

	var store limiter.Store
	closeStore := noop
	if cfg.RateLimit.Store == "redis" {
		client, err := database.NewRedisClient(&database.RedisConfig{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			return nil, nil, err
		}
		store, err = redisstore.NewStoreWithOptions(client, limiter.StoreOptions{
			Prefix:   cfg.RateLimit.Prefix,
			MaxRetry: 3,
		})
		if err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("failed to create rate limit store: %w", err)
		}
		closeStore = func() {
			if err := client.Close(); err != nil {
				log.WithError(err).Warn("Failed to close redis client")
			}
		}
	}

	rl, err := middleware.NewRateLimiter(cfg.RateLimit.Rate, store, log)
	if err != nil {
		closeStore()
		return nil, nil, fmt.Errorf("invalid RATE_LIMIT_RATE %q: %w", cfg.RateLimit.Rate, err)
	}
	return rl, closeStore, nil
}

func newVerifier(ctx context.Context, cfg *config.Config, app *firebase.App) (auth.Verifier, error) {
	if cfg.Security.AuthProvider == "jwt" {
		return auth.NewJWTVerifier(cfg.Security.JWTSecret, cfg.Security.JWTIssuer, cfg.Security.JWTAccessTokenTTL), nil
	}
	return auth.NewFirebaseVerifier(ctx, app)
}
