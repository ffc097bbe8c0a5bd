package config

import (
	"context"
	"database/sql"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pixelvide/wq-go/pkg/database"
	"github.com/pixelvide/wq-go/pkg/driver/affix"
	"github.com/pixelvide/wq-go/pkg/driver/blackhole"
	dbdriver "github.com/pixelvide/wq-go/pkg/driver/database"
	"github.com/pixelvide/wq-go/pkg/driver/memory"
	"github.com/pixelvide/wq-go/pkg/driver/redis"
	"github.com/pixelvide/wq-go/pkg/driver/sqs"
	"github.com/pixelvide/wq-go/pkg/processor"
	"github.com/pixelvide/wq-go/pkg/queue"
)

// NewCodec returns the configured job codec over the default registry.
func (c *Config) NewCodec() queue.Codec {
	if c.Codec == "php" {
		return queue.NewPHPCodec(nil)
	}
	return queue.NewJSONCodec(nil)
}

// NewRedisClient creates a client for the configured Redis server.
func NewRedisClient(cfg RedisConfig) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// OpenDatabase connects to the configured SQL server.
func OpenDatabase(ctx context.Context, cfg DatabaseConfig) (*sql.DB, error) {
	return database.NewFactory().Connect(ctx, cfg.Connection, cfg.DSN())
}

// NewAdapter builds the configured work server adapter, wrapped in an
// affix adapter if a queue prefix or suffix is set.
func NewAdapter(ctx context.Context, cfg *Config) (queue.Adapter, error) {
	codec := cfg.NewCodec()

	var adapter queue.Adapter
	switch cfg.Driver {
	case "memory":
		adapter = memory.New(memory.WithCodec(codec), memory.WithLease(cfg.Lease))
	case "blackhole":
		adapter = blackhole.New()
	case "redis":
		adapter = redis.New(NewRedisClient(cfg.Redis),
			redis.WithCodec(codec),
			redis.WithLease(cfg.Lease),
			redis.WithPrefix(cfg.Redis.KeyPrefix),
		)
	case "database":
		db, err := OpenDatabase(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		adapter = dbdriver.New(db,
			dbdriver.WithDriver(cfg.Database.Connection),
			dbdriver.WithTable(cfg.Database.Table),
			dbdriver.WithFailedTable(cfg.Database.FailedTable),
			dbdriver.WithCodec(codec),
			dbdriver.WithLease(cfg.Lease),
		)
	case "sqs":
		client, err := LoadSQSClient(ctx, cfg.SQS)
		if err != nil {
			return nil, err
		}
		opts := []sqs.Option{
			sqs.WithCodec(codec),
			sqs.WithLease(cfg.Lease),
			sqs.WithBurySuffix(cfg.SQS.BurySuffix),
		}
		if cfg.SQS.Prefix != "" {
			opts = append(opts, sqs.WithURLPrefix(cfg.SQS.Prefix))
		}
		adapter = sqs.New(client, opts...)
	default:
		return nil, fmt.Errorf("unsupported queue driver: %s", cfg.Driver)
	}

	if cfg.QueuePrefix != "" || cfg.QueueSuffix != "" {
		adapter = affix.New(adapter).WithPrefix(cfg.QueuePrefix).WithSuffix(cfg.QueueSuffix)
	}
	return adapter, nil
}

// ProcessorOptions returns the configured processor policy.
func (c WorkerConfig) ProcessorOptions() processor.Options {
	opts := processor.DefaultOptions()
	opts.Retry = c.Retry
	opts.Bury = c.Bury
	opts.Rethrow = c.Rethrow
	if c.SuccessQueue != "" {
		opts.OnSuccess = processor.MoveTo(c.SuccessQueue)
	}
	switch c.ExpiredJobs {
	case "bury":
		opts.OnExpiry = processor.Bury
	case "move":
		opts.OnExpiry = processor.MoveTo(c.ExpiredQueue)
	}
	return opts
}
