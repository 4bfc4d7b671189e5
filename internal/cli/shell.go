package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start an interactive shell",
	Long: `Start an interactive shell on the selected profile.
Type 'help' for the list of commands and 'exit' to leave. Unsaved changes
are reported, not saved, when the shell exits.`,
	Args: cobra.NoArgs,
	RunE: runShell,
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

func runShell(cmd *cobra.Command, args []string) (err error) {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	env, err := connect(ctx, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := env.Close(context.Background()); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	err = env.shell.Run(ctx, cmd.InOrStdin())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
