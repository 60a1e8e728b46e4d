package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/flowbaker/runreel/internal/server"
	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long:  `Start the HTTP API serving gif status and creation. With --worker the create-gif worker runs in the same process.`,
		RunE:  runServe,
	}

	cmd.Flags().Bool("worker", false, "Also consume create-gif tasks in this process")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	container, err := buildContainer(ctx, cmd)
	if err != nil {
		return err
	}
	defer container.Close()

	cfg := container.Config()

	embedded, _ := cmd.Flags().GetBool("worker")
	embedded = embedded || cfg.Worker.Embedded

	app := server.NewHTTPServer(server.HTTPServerDependencies{
		ReelController: container.ReelController(),
		Metrics:        container.Metrics(),
	})

	g, ctx := errgroup.WithContext(ctx)

	if embedded {
		g.Go(func() error {
			return runWorkerLoop(ctx, container)
		})
	}

	g.Go(func() error {
		log.Info().Str("address", cfg.HTTPAddress).Msg("Starting runreel HTTP server")

		return app.Listen(cfg.HTTPAddress, fiber.ListenConfig{
			GracefulContext:       ctx,
			DisableStartupMessage: true,
		})
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Runreel server failed")
		return err
	}

	log.Info().Msg("Runreel server stopped")

	return nil
}
