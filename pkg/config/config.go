// Package config reads worker settings from the environment (and an
// optional .env file) and builds adapters from them.
package config

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Config is the complete worker configuration.
type Config struct {
	// Driver selects the work server.
	Driver string `env:"WQ_DRIVER" envDefault:"memory" validate:"oneof=memory blackhole redis database sqs"`
	// Codec selects the stored job format.
	Codec string `env:"WQ_CODEC" envDefault:"json" validate:"oneof=json php"`
	// QueuePrefix and QueueSuffix are added to every queue name.
	QueuePrefix string        `env:"WQ_QUEUE_PREFIX"`
	QueueSuffix string        `env:"WQ_QUEUE_SUFFIX"`
	Lease       time.Duration `env:"WQ_LEASE" envDefault:"60s" validate:"gt=0"`

	Worker    WorkerConfig    `envPrefix:"WQ_WORKER_"`
	Schedule  ScheduleConfig  `envPrefix:"WQ_SCHEDULE_"`
	Telemetry TelemetryConfig
	Redis     RedisConfig    `envPrefix:"REDIS_"`
	Database  DatabaseConfig `envPrefix:"DB_"`
	SQS       SQSConfig
}

// WorkerConfig holds configuration for the worker pool and its processor.
type WorkerConfig struct {
	Queues       []string      `env:"QUEUES" envDefault:"default" envSeparator:"," validate:"min=1,dive,required"`
	Concurrency  int           `env:"CONCURRENCY" envDefault:"1" validate:"min=1"`
	Timeout      time.Duration `env:"TIMEOUT" envDefault:"5s"`
	ErrorBackoff time.Duration `env:"ERROR_BACKOFF" envDefault:"1s" validate:"gte=0"`
	Retry        bool          `env:"RETRY" envDefault:"true"`
	Bury         bool          `env:"BURY" envDefault:"true"`
	Rethrow      bool          `env:"RETHROW" envDefault:"true"`
	// SuccessQueue moves finished jobs there instead of deleting them.
	SuccessQueue string `env:"SUCCESS_QUEUE"`
	// ExpiredJobs is "delete", "bury" or "move".
	ExpiredJobs  string `env:"EXPIRED_JOBS" envDefault:"delete" validate:"oneof=delete bury move"`
	ExpiredQueue string `env:"EXPIRED_QUEUE" validate:"required_if=ExpiredJobs move"`
}

// ScheduleConfig selects the lock provider for OnOneServer tasks.
type ScheduleConfig struct {
	LockStore string `env:"LOCK_STORE" envDefault:"none" validate:"oneof=none redis database"`
}

type TelemetryConfig struct {
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"wq-worker"`
	Tracing     bool   `env:"WQ_TRACING" envDefault:"false"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=trace debug info warn error"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"console" validate:"oneof=console json"`
}

// RedisConfig holds configuration for Redis connection
type RedisConfig struct {
	Host      string `env:"HOST" envDefault:"127.0.0.1"`
	Port      int    `env:"PORT" envDefault:"6379"`
	Password  string `env:"PASSWORD"`
	DB        int    `env:"DB" envDefault:"0"`
	KeyPrefix string `env:"QUEUE_PREFIX" envDefault:"wq"`
}

func (c RedisConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// DatabaseConfig holds configuration for SQL database connection
type DatabaseConfig struct {
	Connection  string `env:"CONNECTION" envDefault:"mysql" validate:"oneof=mysql pgsql postgres"`
	Host        string `env:"HOST" envDefault:"127.0.0.1"`
	// Port defaults to the driver's standard port when unset.
	Port        int    `env:"PORT" validate:"gte=0"`
	Database    string `env:"DATABASE" envDefault:"laravel"`
	Username    string `env:"USERNAME" envDefault:"root"`
	Password    string `env:"PASSWORD"`
	SSLMode     string `env:"SSLMODE" envDefault:"disable"`
	Table       string `env:"QUEUE_TABLE" envDefault:"jobs"`
	FailedTable string `env:"FAILED_TABLE" envDefault:"failed_jobs"`
}

func (c DatabaseConfig) isPostgres() bool {
	return c.Connection == "pgsql" || c.Connection == "postgres"
}

// EffectivePort is Port, or 5432 for Postgres and 3306 for MySQL when unset.
func (c DatabaseConfig) EffectivePort() int {
	switch {
	case c.Port != 0:
		return c.Port
	case c.isPostgres():
		return 5432
	default:
		return 3306
	}
}

var pgQuoter = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// pgValue quotes a keyword/value connection string value.
func pgValue(v string) string {
	return "'" + pgQuoter.Replace(v) + "'"
}

// DSN builds the data source name for the configured driver.
func (c DatabaseConfig) DSN() string {
	port := strconv.Itoa(c.EffectivePort())
	if c.isPostgres() {
		return "host=" + pgValue(c.Host) + " port=" + port +
			" user=" + pgValue(c.Username) + " password=" + pgValue(c.Password) +
			" dbname=" + pgValue(c.Database) + " sslmode=" + pgValue(c.SSLMode)
	}

	cfg := mysql.NewConfig()
	cfg.User = c.Username
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(c.Host, port)
	cfg.DBName = c.Database
	cfg.ParseTime = true
	cfg.Loc = time.Local
	return cfg.FormatDSN()
}

// SQSConfig holds configuration for SQS connection
type SQSConfig struct {
	Region  string `env:"AWS_DEFAULT_REGION" envDefault:"us-east-1"`
	Profile string `env:"AWS_PROFILE"`
	// Prefix is the queue URL prefix, e.g. https://sqs.us-east-1.amazonaws.com/your-account-id.
	// Without it queue URLs are looked up by name.
	Prefix     string `env:"SQS_PREFIX"`
	Endpoint   string `env:"SQS_ENDPOINT"`
	BurySuffix string `env:"SQS_BURY_SUFFIX" envDefault:"-buried"`
}
