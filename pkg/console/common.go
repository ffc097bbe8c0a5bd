package console

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/pixelvide/wq-go/pkg/config"
	"github.com/pixelvide/wq-go/pkg/queue"
	"github.com/pixelvide/wq-go/pkg/root"
	"github.com/pixelvide/wq-go/pkg/telemetry"
)

var envFiles []string

// loadConfig reads the configuration and sets up the global logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(envFiles...)
	if err != nil {
		return nil, err
	}
	if err := telemetry.SetGlobalLogger(cfg.Telemetry.LogLevel, cfg.Telemetry.LogFormat); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openAdapter returns the work server to use and a function releasing it.
func openAdapter(ctx context.Context, cfg *config.Config) (queue.Adapter, func(), error) {
	if a := injectedAdapter(); a != nil {
		return a, func() {}, nil
	}

	a, err := config.NewAdapter(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	log.Debug().Str("driver", cfg.Driver).Msg("connected to work server")
	return a, func() {
		if err := a.Disconnect(); err != nil {
			log.Warn().Err(err).Msg("disconnecting from work server failed")
		}
	}, nil
}

func init() {
	root.GetRoot().PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "dotenv files to load (default .env)")
}
