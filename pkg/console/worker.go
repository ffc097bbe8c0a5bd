package console

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/pixelvide/wq-go/pkg/config"
	"github.com/pixelvide/wq-go/pkg/processor"
	"github.com/pixelvide/wq-go/pkg/root"
	"github.com/pixelvide/wq-go/pkg/telemetry"
	"github.com/pixelvide/wq-go/pkg/worker"
)

var (
	queueList   string
	concurrency int
	pollTimeout time.Duration
	once        bool
)

var workerCmd = &cobra.Command{
	Use:     "queue:work",
	Aliases: []string{"worker"},
	Short:   "Start the queue worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		applyWorkerFlags(cmd, &cfg.Worker)

		if cfg.Telemetry.Tracing {
			tp, err := telemetry.InitTracer(cfg.Telemetry.ServiceName)
			if err != nil {
				return err
			}
			defer func() {
				if err := tp.Shutdown(context.Background()); err != nil {
					log.Error().Err(err).Msg("Error shutting down tracer")
				}
			}()
		}

		ctx := cmd.Context()
		adapter, release, err := openAdapter(ctx, cfg)
		if err != nil {
			return err
		}
		defer release()

		p, err := processor.New(adapter,
			processor.WithOptions(cfg.Worker.ProcessorOptions()),
			processor.WithHooks(telemetry.NewMetricsHooks()),
			processor.WithLogger(log.Logger),
		)
		if err != nil {
			return err
		}

		if once {
			return p.ProcessNextJob(ctx, cfg.Worker.Queues, Dispatch, cfg.Worker.Timeout)
		}

		liveness := worker.NewLiveness()
		stop := liveness.InstallSignalHandler()
		defer stop()

		w := worker.New(p, Dispatch, cfg.Worker.Queues,
			worker.WithConcurrency(cfg.Worker.Concurrency),
			worker.WithTimeout(cfg.Worker.Timeout),
			worker.WithErrorBackoff(cfg.Worker.ErrorBackoff),
			worker.WithLiveness(liveness),
			worker.WithLogger(log.Logger),
		)

		log.Info().Strs("queues", cfg.Worker.Queues).Int("workers", cfg.Worker.Concurrency).Msg("Starting worker pool...")
		w.Run(ctx)
		if sig := liveness.LastSignal(); sig != nil {
			log.Info().Str("signal", sig.String()).Msg("Worker pool stopped by signal.")
			return nil
		}
		log.Info().Msg("Worker pool stopped.")
		return nil
	},
}

// applyWorkerFlags lets explicitly set flags win over the environment.
func applyWorkerFlags(cmd *cobra.Command, cfg *config.WorkerConfig) {
	flags := cmd.Flags()
	if queues := splitQueues(queueList); flags.Changed("queue") && len(queues) > 0 {
		cfg.Queues = queues
	}
	if flags.Changed("workers") {
		cfg.Concurrency = concurrency
	}
	if flags.Changed("timeout") {
		cfg.Timeout = pollTimeout
	}
}

func splitQueues(list string) []string {
	var queues []string
	for _, name := range strings.Split(list, ",") {
		if name = strings.TrimSpace(name); name != "" {
			queues = append(queues, name)
		}
	}
	return queues
}

func init() {
	workerCmd.Flags().StringVar(&queueList, "queue", "default", "Comma separated queues to process, highest priority first")
	workerCmd.Flags().IntVar(&concurrency, "workers", 1, "Number of concurrent workers")
	workerCmd.Flags().DurationVar(&pollTimeout, "timeout", 5*time.Second, "How long each poll waits for a job")
	workerCmd.Flags().BoolVar(&once, "once", false, "Process a single job and exit")

	root.GetRoot().AddCommand(workerCmd)
}
