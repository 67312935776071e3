package container

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joshua-takyi/eventease/internal/config"
	"github.com/joshua-takyi/eventease/internal/connect"
	"github.com/joshua-takyi/eventease/internal/helpers"
	"github.com/joshua-takyi/eventease/internal/middleware"
	"github.com/joshua-takyi/eventease/internal/models"
	"github.com/joshua-takyi/eventease/internal/services"
	"github.com/redis/go-redis/v9"
	"github.com/supabase-community/supabase-go"
	"go.mongodb.org/mongo-driver/mongo"
)

// Container holds all application dependencies
type Container struct {
	Logger *slog.Logger
	Config *config.Config

	// Backend clients; nil when the configured drivers do not use them.
	SupabaseClient *supabase.Client
	MongoDBClient  *mongo.Client
	PostgresPool   *pgxpool.Pool
	RedisClient    *redis.Client

	Tokens         middleware.TokenVerifier
	UserService    *services.UserService
	EventService   *services.EventService
	BookingService *services.BookingService

	closers []func()
}

// Stores is the storage half of the container.
type Stores struct {
	Events   models.EventStore
	Bookings models.BookingStore
}

// NewContainer wires services over already-built stores.
func NewContainer(
	logger *slog.Logger,
	cfg *config.Config,
	stores Stores,
	locker services.EventLocker,
	tokens middleware.TokenVerifier,
	identity models.IdentityRepo,
) *Container {
	return &Container{
		Logger:         logger,
		Config:         cfg,
		Tokens:         tokens,
		UserService:    services.NewUserService(identity, logger),
		EventService:   services.NewEventService(stores.Events, locker, logger),
		BookingService: services.NewBookingService(stores.Events, stores.Bookings, locker, logger),
	}
}

// Build connects every backend named by cfg and returns the wired container.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	c := &Container{Logger: logger, Config: cfg}

	stores, err := c.openStores(ctx)
	if err != nil {
		c.Close()
		return nil, err
	}

	locker, err := c.openLocker(ctx)
	if err != nil {
		c.Close()
		return nil, err
	}

	tokens, err := helpers.NewTokenValidator(cfg.JWTSecret, cfg.JWKSURL, logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.closers = append(c.closers, tokens.Close)

	var identity models.IdentityRepo
	if cfg.SupabaseEnabled() {
		client, err := connect.InitSupabase(cfg.SupabaseURL, cfg.SupabaseAnonKey)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.SupabaseClient = client
		identity = models.SupabaseNewRepo(client, cfg.SupabaseURL, cfg.SupabaseAnonKey)
		logger.Info("Connected to Supabase successfully")
	}

	wired := NewContainer(logger, cfg, stores, locker, tokens, identity)
	wired.SupabaseClient = c.SupabaseClient
	wired.MongoDBClient = c.MongoDBClient
	wired.PostgresPool = c.PostgresPool
	wired.RedisClient = c.RedisClient
	wired.closers = c.closers
	return wired, nil
}

func (c *Container) openStores(ctx context.Context) (Stores, error) {
	switch c.Config.StoreDriver {
	case config.StoreMongo:
		client, err := connect.MongoDBConnect(ctx, c.Config.MongoDBURI, c.Config.MongoDBPassword)
		if err != nil {
			return Stores{}, err
		}
		c.MongoDBClient = client
		c.closers = append(c.closers, func() {
			if err := connect.MongoDBDisconnect(client); err != nil {
				c.Logger.Error("Error disconnecting from MongoDB", "error", err)
			}
		})

		repo := models.MongodbNewRepo(client, c.Config.MongoDBDatabase)
		if err := repo.EnsureIndexes(ctx); err != nil {
			return Stores{}, fmt.Errorf("failed to create MongoDB indexes: %w", err)
		}
		c.Logger.Info("Connected to MongoDB successfully", "database", c.Config.MongoDBDatabase)
		return Stores{Events: repo, Bookings: repo}, nil

	case config.StorePostgres:
		pool, err := connect.PostgresConnect(ctx, c.Config.DatabaseURL, c.Logger)
		if err != nil {
			return Stores{}, err
		}
		c.PostgresPool = pool
		c.closers = append(c.closers, pool.Close)

		repo := models.NewPostgresRepo(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			return Stores{}, fmt.Errorf("failed to create PostgreSQL schema: %w", err)
		}
		c.Logger.Info("Connected to PostgreSQL successfully")
		return Stores{Events: repo, Bookings: repo}, nil

	default:
		c.Logger.Warn("Using in-memory store; data is lost on restart")
		repo := models.NewMemoryRepo()
		return Stores{Events: repo, Bookings: repo}, nil
	}
}

func (c *Container) openLocker(ctx context.Context) (services.EventLocker, error) {
	if c.Config.LockDriver != config.LockRedis {
		return services.NewLocalLocker(), nil
	}
	client, err := connect.RedisConnect(ctx, c.Config.RedisAddr, c.Config.RedisPassword, c.Config.RedisDB)
	if err != nil {
		return nil, err
	}
	c.RedisClient = client
	c.closers = append(c.closers, func() {
		if err := client.Close(); err != nil {
			c.Logger.Error("Error closing Redis client", "error", err)
		}
	})
	c.Logger.Info("Connected to Redis successfully", "addr", c.Config.RedisAddr)
	return services.NewRedisLocker(client, c.Config.LockTTL, c.Config.LockWait, c.Logger), nil
}

// Close releases backend connections in reverse order of opening.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}
