package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-autonomax/app/lock"
	"github.com/vibast-solutions/ms-go-autonomax/app/queue"
	"github.com/vibast-solutions/ms-go-autonomax/app/service"
)

// runLockHold bounds how long a crashed worker can block a redelivered run.
const runLockHold = 10 * time.Minute

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Consume queued messages",
	Long:  "Consume queued messages from Redis streams.",
}

func init() {
	consumeCmd.AddCommand(consumeOpsCmd)
	rootCmd.AddCommand(consumeCmd)
}

var consumeOpsCmd = &cobra.Command{
	Use:   "ops [consumer_name]",
	Short: "Start the ops task worker",
	Long:  "Start a worker that reads granted ops runs from the Redis stream and executes them.",
	Args:  cobra.ExactArgs(1),
	RunE:  runConsumeOps,
}

// runConsumeOps starts the ops task worker.
func runConsumeOps(_ *cobra.Command, args []string) error {
	consumerName := args[0]

	d := loadDeps()
	defer d.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := d.openRedis(ctx); err != nil {
		return err
	}

	runner := service.NewOpsTaskRunner(lock.NewRedisLocker(d.rdb, runLockHold), d.logger)
	runner.RegisterBuiltin()

	consumer := queue.NewOpsConsumer(d.rdb, runner, consumerName, d.logger)
	if err := consumer.Run(ctx); err != nil {
		return fmt.Errorf("consumer error: %w", err)
	}
	d.logger.Info("Consumer stopped")
	return nil
}
