package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/go_takeout/internal/cart"
	"github.com/fjod/go_takeout/internal/catalog"
	"github.com/fjod/go_takeout/internal/checkout"
	"github.com/fjod/go_takeout/internal/config"
	"github.com/fjod/go_takeout/internal/gateway"
	h "github.com/fjod/go_takeout/internal/http"
	"github.com/fjod/go_takeout/internal/keylock"
	"github.com/fjod/go_takeout/internal/logger"
	"github.com/fjod/go_takeout/internal/orders"
	"github.com/fjod/go_takeout/internal/poller"
	"github.com/fjod/go_takeout/internal/publisher"
	"github.com/fjod/go_takeout/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"
)

func main() {
	envFile := flag.String("env", ".env", "optional dotenv file")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("invalid configuration")
	}
	log := logger.New("takeout-api", cfg.LogLevel, cfg.LogPretty, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database setup
	creds := &repository.Credentials{
		Host:              cfg.Postgres.Host,
		Port:              cfg.Postgres.Port,
		User:              cfg.Postgres.User,
		Password:          cfg.Postgres.Password,
		DBName:            cfg.Postgres.DBName,
		MigrationsDirPath: cfg.Postgres.MigrationsPath,
	}
	repo, err := repository.NewRepository(creds)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer repo.Close()

	if err := repo.RunMigrations(creds); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}
	log.Info().Msg("database migrations completed")

	var redisClient *redis.Client
	if cfg.CartStore != config.CartStoreMemory {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis connection failed")
		}
		log.Info().Str("addr", cfg.Redis.Addr).Msg("redis ping succeeded")
	}

	var lookup catalog.Lookup = catalog.NewPostgresLookup(repo.DB())
	if redisClient != nil {
		lookup = catalog.NewCachedLookup(lookup, redisClient, cfg.CatalogCacheTTL, log)
	}

	store, mongoDB := openCartStore(ctx, cfg, redisClient, log)
	if mongoDB != nil {
		defer func() {
			if err := mongoDB.Client().Disconnect(context.Background()); err != nil {
				log.Warn().Err(err).Msg("mongo disconnect failed")
			}
		}()
	}

	carts := cart.NewService(store, lookup, keylock.New(), log)

	paypay := gateway.NewClient(gateway.Config{
		BaseURL:    cfg.PayPay.BaseURL,
		APIKey:     cfg.PayPay.APIKey,
		APISecret:  cfg.PayPay.APISecret,
		MerchantID: cfg.PayPay.MerchantID,
		Timeout:    cfg.PayPay.Timeout,
	}, log)

	checkoutService := checkout.NewService(carts, repo, paypay, checkout.Config{
		Currency:        cfg.Currency,
		RedirectURL:     cfg.RedirectURL(),
		MaxPollDuration: cfg.MaxPollDuration,
	}, log)
	orderService := orders.NewService(repo, log)

	outbox := publisher.NewOutboxPoller(repo, checkoutService, publisher.Config{
		Brokers:          cfg.KafkaBrokers,
		Topic:            cfg.OrderEventsTopic,
		EventInterval:    cfg.OutboxInterval,
		RecoveryInterval: cfg.ReconcileInterval,
	}, log)
	defer outbox.Close()

	cleaner := poller.NewPoller(carts, cfg.OrderEventsTopic, poller.DefaultGroupID, log, cfg.KafkaBrokers...)
	defer cleaner.Close()

	router := h.NewRouter(h.RouterConfig{
		RequestTimeout:     cfg.RequestTimeout,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
		SessionTTL:         cfg.SessionTTL,
		SecureCookies:      cfg.SecureCookies,
	},
		h.NewCartHandler(carts, cfg.RequestTimeout),
		h.NewCheckoutHandler(checkoutService, cfg.RequestTimeout),
		h.NewOrdersHandler(orderService, carts, cfg.RequestTimeout),
		log,
	)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("port", cfg.HTTPPort).Str("cart_store", cfg.CartStore).Msg("takeout API starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		outbox.Run(gctx)
		return nil
	})
	g.Go(func() error {
		cleaner.Run(gctx)
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		return
	}
	log.Info().Msg("server exited")
}

func openCartStore(ctx context.Context, cfg *config.Config, redisClient *redis.Client, log zerolog.Logger) (cart.Store, *mongo.Database) {
	switch cfg.CartStore {
	case config.CartStoreMongo:
		db, err := cart.ConnectMongoDB(ctx, cfg.Mongo.URI, cfg.Mongo.DBName)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to mongodb")
		}
		log.Info().Str("uri", cfg.Mongo.URI).Msg("connected to mongodb")
		store := cart.NewMongoStore(db, cfg.SessionTTL)
		if err := store.CreateIndexes(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to create cart indexes")
		}
		return store, db
	case config.CartStoreMemory:
		log.Warn().Msg("using in-memory cart store, carts are lost on restart")
		return cart.NewMemoryStore(), nil
	default:
		return cart.NewRedisStore(redisClient, cfg.SessionTTL), nil
	}
}
