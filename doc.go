// Package wq runs background jobs from work queues.
//
// Jobs are Go structs embedding queue.BaseJob. They are stored in a work
// server (memory, Redis, SQL database or SQS) through a queue.Adapter,
// taken out again by a processor.Processor and kept running by a
// worker.Worker. Failed jobs are re-queued with a delay while they can be
// retried and buried afterwards. The php codec stores jobs in PHP's
// serialize() format, so PHP producers and Go workers can share queues.
//
// Key subpackages:
//
//	github.com/pixelvide/wq-go/pkg/queue      - Job model, adapter contract, codecs and errors
//	github.com/pixelvide/wq-go/pkg/processor  - Takes one job, runs it and finalizes it
//	github.com/pixelvide/wq-go/pkg/worker     - Worker loop with signal-driven shutdown
//	github.com/pixelvide/wq-go/pkg/driver     - Adapters (memory, blackhole, affix, redis, database, sqs)
//	github.com/pixelvide/wq-go/pkg/schedule   - Kernel scheduler (Cron + Distributed Locks)
//	github.com/pixelvide/wq-go/pkg/config     - Environment configuration and adapter construction
//	github.com/pixelvide/wq-go/pkg/console    - queue:work, queue:push and schedule:run commands
//
// Example Usage:
//
//	type SendMail struct {
//		queue.BaseJob
//		To string `json:"to"`
//	}
//
//	func main() {
//		queue.Register("SendMail", func() queue.Job { return &SendMail{} })
//
//		server := memory.New()
//		_ = queue.NewPublisher(server).Dispatch(ctx, &SendMail{To: "a@example.com"})
//
//		p, _ := processor.New(server)
//		w := worker.New(p, func(ctx context.Context, j queue.Job, jc *processor.JobContext) (queue.Result, error) {
//			return queue.ResultSuccess, send(j.(*SendMail).To)
//		}, []string{queue.DefaultQueue})
//		w.Run(ctx)
//	}
package wq
