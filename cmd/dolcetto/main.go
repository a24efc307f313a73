package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ArtyomNalbandian/Dolcetto/internal/auth"
	"github.com/ArtyomNalbandian/Dolcetto/internal/cache"
	"github.com/ArtyomNalbandian/Dolcetto/internal/docstore"
	"github.com/ArtyomNalbandian/Dolcetto/internal/events"
	"github.com/ArtyomNalbandian/Dolcetto/internal/httpapi"
	"github.com/ArtyomNalbandian/Dolcetto/internal/repository"
	"github.com/ArtyomNalbandian/Dolcetto/internal/service"
	"github.com/ArtyomNalbandian/Dolcetto/pkg/config"
	"github.com/ArtyomNalbandian/Dolcetto/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Exit(1)
	}
	log := logger.New(cfg.App.Env, cfg.App.LogLevel)

	if cfg.JWT.Secret == "" {
		if cfg.App.Env != "development" {
			log.Fatal().Msg("JWT_SECRET is required outside development")
		}
		cfg.JWT.Secret = "dev-secret"
		log.Warn().Msg("JWT_SECRET not set, using a development-only secret")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store docstore.Store
	if cfg.Mongo.URI != "" {
		db, err := docstore.ConnectMongo(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("mongo connection failed")
		}
		defer func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := db.Client().Disconnect(disconnectCtx); err != nil {
				log.Error().Err(err).Msg("mongo disconnect failed")
			}
		}()
		store = docstore.NewMongoStore(db, log)
		log.Info().Str("database", cfg.Mongo.Database).Msg("using mongo document store")
	} else {
		store = docstore.NewMemoryStore()
		log.Warn().Msg("MONGO_URI not set, using the in-memory document store")
	}

	var menuCache cache.MenuCache
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("redis ping failed")
		}
		defer client.Close()
		menuCache = cache.NewRedisCache(client)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("menu cache enabled")
	}

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.Kafka.Brokers)
		defer kp.Close()
		publisher = kp
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Msg("order status events enabled")
	}

	menuRepo := repository.NewMenuRepository(store, menuCache, log)
	cartRepo := repository.NewCartRepository(store, log)
	orderRepo := repository.NewOrderRepository(store, log)

	authSvc := auth.NewService(store, nil, auth.Config{
		Secret:   cfg.JWT.Secret,
		Issuer:   cfg.JWT.Issuer,
		TokenTTL: cfg.JWT.TokenTTL,
	}, log)

	kitchen := service.NewKitchenService(orderRepo, publisher, log)
	if err := kitchen.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("kitchen service start failed")
	}
	defer kitchen.Close()

	handler := httpapi.New(httpapi.Deps{
		Auth:      authSvc,
		Menu:      menuRepo,
		Cart:      cartRepo,
		Kitchen:   kitchen,
		JWTSecret: cfg.JWT.Secret,
		Log:       log,
	})

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("http server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown failed")
	}
	log.Info().Msg("server stopped")
}
