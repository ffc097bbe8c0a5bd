package console

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/pixelvide/wq-go/pkg/config"
	"github.com/pixelvide/wq-go/pkg/root"
	"github.com/pixelvide/wq-go/pkg/schedule"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule:run",
	Short: "Run the scheduled tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		kernel := schedule.GetGlobalKernel()
		switch cfg.Schedule.LockStore {
		case "redis":
			kernel.SetLockProvider(schedule.NewRedisLockProvider(config.NewRedisClient(cfg.Redis)))
		case "database":
			db, err := config.OpenDatabase(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()
			kernel.SetLockProvider(schedule.NewDatabaseLockProvider(db, cfg.Database.Connection))
		default:
			log.Info().Msg("No distributed lock provider configured. OnOneServer will not work across multiple servers.")
		}

		adapter, release, err := openAdapter(ctx, cfg)
		if err != nil {
			return err
		}
		defer release()

		for _, s := range registeredSchedulers() {
			if err := s(kernel, adapter); err != nil {
				return err
			}
		}

		kernel.Run(ctx)
		return nil
	},
}

func init() {
	root.GetRoot().AddCommand(scheduleCmd)
}
