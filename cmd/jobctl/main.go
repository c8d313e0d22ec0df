package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/hibiken/asynq"

	"github.com/stockpile-dev/stockpile/internal/app"
	"github.com/stockpile-dev/stockpile/jobs"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: jobctl [-redis addr] <command>")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintf(os.Stderr, "  trigger <task>   enqueue %s or %s\n", jobs.TaskStatsWarmup, jobs.TaskLowStockScan)
	fmt.Fprintln(os.Stderr, "  queue            print default queue counters")
}

func main() {
	redisAddr := flag.String("redis", "", "redis address (defaults to REDIS_ADDR)")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "jobctl:", err)
		os.Exit(1)
	}
	addr := cfg.RedisAddr
	if *redisAddr != "" {
		addr = *redisAddr
	}

	if err := run(context.Background(), addr, cfg.LowStockThreshold, args); err != nil {
		fmt.Fprintln(os.Stderr, "jobctl:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, addr string, threshold int, args []string) error {
	switch args[0] {
	case "trigger":
		if len(args) != 2 {
			return errors.New("usage: jobctl trigger <task>")
		}
		return trigger(ctx, addr, threshold, args[1])
	case "queue":
		return queueStats(addr)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// trigger enqueues a supported job by name with its default payload.
func trigger(ctx context.Context, addr string, threshold int, name string) error {
	client, err := jobs.NewClient(asynq.RedisClientOpt{Addr: addr})
	if err != nil {
		return err
	}
	defer client.Close()

	var info *asynq.TaskInfo
	switch name {
	case jobs.TaskStatsWarmup:
		info, err = client.EnqueueStatsWarmup(ctx, nil)
	case jobs.TaskLowStockScan:
		info, err = client.EnqueueLowStockScan(ctx, threshold)
	default:
		return fmt.Errorf("unsupported job %q", name)
	}
	if err != nil {
		return err
	}
	fmt.Printf("enqueued %s id=%s queue=%s\n", name, info.ID, info.Queue)
	return nil
}

func queueStats(addr string) error {
	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: addr})
	defer inspector.Close()

	info, err := inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return err
	}
	fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
		info.Queue, info.Pending, info.Active, info.Scheduled, info.Retry)
	return nil
}
