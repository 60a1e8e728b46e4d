package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/flowbaker/runreel/internal/initialization"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func NewWorkerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume create-gif tasks",
		Long:  `Consume create-gif tasks from the Redis queue. When BACKFILL_SCHEDULE is set the worker also enqueues gifs for recent runs that are missing one.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			container, err := buildContainer(ctx, cmd)
			if err != nil {
				return err
			}
			defer container.Close()

			return runWorkerLoop(ctx, container)
		},
	}

	return cmd
}

func runWorkerLoop(ctx context.Context, container *initialization.Container) error {
	scheduler, err := container.NewBackfillScheduler()
	if err != nil {
		return err
	}

	if scheduler != nil {
		if err := scheduler.Start(); err != nil {
			return err
		}
		defer scheduler.Stop()
	}

	log.Info().
		Int("concurrency", container.Config().Worker.Concurrency).
		Bool("backfill", scheduler != nil).
		Msg("Starting create-gif worker")

	err = container.RunWorker(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	log.Info().Msg("Create-gif worker stopped")

	return nil
}
