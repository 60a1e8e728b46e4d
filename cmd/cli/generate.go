package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/flowbaker/runreel/pkg/domain/reel"
	"github.com/spf13/cobra"
)

func NewGenerateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate <flowID> [runID]",
		Short: "Build and publish a run gif synchronously",
		Long:  `Build the gif for a run and publish it, printing the result. Without a runID the latest run of the flow is used.`,
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			container, err := buildContainer(ctx, cmd)
			if err != nil {
				return err
			}
			defer container.Close()

			result := container.ReelService().CreateGif(ctx, gifParamsFromArgs(cmd, args))

			if err := printJSON(cmd, result); err != nil {
				return err
			}

			if !result.Success {
				return errors.New(result.Error)
			}

			return nil
		},
	}

	cmd.Flags().String("account", "", "Account that owns the flow")

	return cmd
}

func gifParamsFromArgs(cmd *cobra.Command, args []string) reel.GifParams {
	accountID, _ := cmd.Flags().GetString("account")

	params := reel.GifParams{
		FlowID:    args[0],
		AccountID: accountID,
	}

	if len(args) > 1 {
		params.RunID = args[1]
	}

	return params
}
