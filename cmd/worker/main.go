package main

import (
	"context"
	"errors"
	"time"

	"github.com/pixelvide/wq-go/pkg/console"
	"github.com/pixelvide/wq-go/pkg/processor"
	"github.com/pixelvide/wq-go/pkg/queue"
	"github.com/pixelvide/wq-go/pkg/root"
	"github.com/pixelvide/wq-go/pkg/schedule"
	"github.com/pixelvide/wq-go/pkg/telemetry"
)

// ProcessPodcast mirrors the PHP job class of the same name, so that jobs
// pushed by a PHP producer with the php codec can be run here.
type ProcessPodcast struct {
	queue.BaseJob
	PodcastID int `json:"podcastId"`
}

func (j *ProcessPodcast) RetryDelay() time.Duration {
	// 30s, 60s, 120s, ...
	return time.Duration(30<<(j.TryIndex()-1)) * time.Second
}

// ExampleHandler is a sample job handler
func ExampleHandler(ctx context.Context, j queue.Job, jc *processor.JobContext) (queue.Result, error) {
	job := j.(*ProcessPodcast)
	logger := telemetry.LoggerFromContext(ctx)
	logger.Info().
		Int("podcast_id", job.PodcastID).
		Str("uuid", job.UUID()).
		Msg("Processing podcast")

	jc.OnFailure(func(_ context.Context, _ queue.Job, _ *processor.JobContext, cause error) error {
		logger.Warn().Err(cause).Int("podcast_id", job.PodcastID).Msg("Giving up on podcast")
		return nil
	})

	if job.PodcastID <= 0 {
		return queue.ResultDefault, queue.Permanent(errors.New("podcast id missing"))
	}
	return queue.ResultSuccess, nil
}

func main() {
	// Jobs are stored under the PHP class name.
	console.Handle("App\\Jobs\\ProcessPodcast", func() queue.Job {
		return &ProcessPodcast{BaseJob: queue.BaseJob{MaxRetry: 3}}
	}, ExampleHandler)

	console.Schedule(func(k *schedule.Kernel, adapter queue.Adapter) error {
		_, err := k.Dispatch("0 0 * * * *", adapter, "podcasts", func() queue.Job {
			return &ProcessPodcast{BaseJob: queue.BaseJob{MaxRetry: 3}, PodcastID: 1}
		}, schedule.WithoutOverlapping(), schedule.OnOneServer("hourly-podcast"))
		return err
	})

	root.Execute()
}
