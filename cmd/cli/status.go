package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/flowbaker/runreel/pkg/domain"
	"github.com/spf13/cobra"
)

func NewStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <flowID> [runID]",
		Short: "Show the gif status of a run",
		Long:  `Show the gif status of a run. A completed run without a gif gets its creation enqueued, as the HTTP API does.`,
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			container, err := buildContainer(ctx, cmd)
			if err != nil {
				return err
			}
			defer container.Close()

			result := container.ReelService().GetGifStatus(ctx, gifParamsFromArgs(cmd, args))

			if err := printJSON(cmd, result); err != nil {
				return err
			}

			if showQueue, _ := cmd.Flags().GetBool("queue"); showQueue {
				stats, err := container.Queue().Stats(ctx, domain.CreateGif)
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "queue %s: waiting=%d active=%d failed=%d\n",
					domain.CreateGif, stats.Waiting, stats.Active, stats.Failed)
			}

			if !result.Success {
				return errors.New(result.Error)
			}

			return nil
		},
	}

	cmd.Flags().String("account", "", "Account that owns the flow")
	cmd.Flags().Bool("queue", false, "Also print create-gif queue counts")

	return cmd
}
