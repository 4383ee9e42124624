// Command notifier consumes reservation events from RabbitMQ and appends
// one notification line per event to the notification log.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/iliyamo/visit-reservation/internal/config"
	"github.com/iliyamo/visit-reservation/internal/logging"
	"github.com/iliyamo/visit-reservation/internal/queue"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "notifier:", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("notifier starting", "log", cfg.NotificationLog)
	consumer := queue.NewConsumer(cfg.RabbitMQURL, cfg.NotificationLog, logger)
	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("notifier stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("notifier stopped")
}
