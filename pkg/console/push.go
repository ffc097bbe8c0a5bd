package console

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/pixelvide/wq-go/pkg/queue"
	"github.com/pixelvide/wq-go/pkg/root"
)

var (
	pushQueue string
	pushDelay time.Duration
)

var pushCmd = &cobra.Command{
	Use:   "queue:push <job-type> [json-data]",
	Short: "Store a job into a queue",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		j, err := queue.DefaultRegistry().New(args[0])
		if err != nil {
			return err
		}
		if len(args) > 1 {
			if err := json.Unmarshal([]byte(args[1]), j); err != nil {
				return fmt.Errorf("job data for %s: %w", args[0], err)
			}
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		adapter, release, err := openAdapter(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer release()

		if err := queue.NewPublisher(adapter).DispatchLater(cmd.Context(), pushQueue, j, pushDelay); err != nil {
			return err
		}
		log.Info().Str("type", args[0]).Str("queue", pushQueue).Dur("delay", pushDelay).Msg("job stored")
		return nil
	},
}

func init() {
	pushCmd.Flags().StringVar(&pushQueue, "queue", queue.DefaultQueue, "Queue to store the job into")
	pushCmd.Flags().DurationVar(&pushDelay, "delay", 0, "How long the job stays invisible")

	root.GetRoot().AddCommand(pushCmd)
}
