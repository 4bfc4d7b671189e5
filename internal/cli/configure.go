package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harun/nodeshell/internal/config"
	"github.com/harun/nodeshell/pkg/transport"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Run interactive configuration wizard",
	Long: `Run an interactive configuration wizard to add or replace a connection profile.
The wizard asks for the transport, its DSN, the workspace and the user to log in as,
then writes the profile to the config file.`,
	Args: cobra.NoArgs,
	RunE: runConfigure,
}

func init() {
	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)

	existing, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	wizard := config.NewWizard(cmd.InOrStdin(), cmd.OutOrStdout(), transport.Default().Names()...)
	cfg, err := wizard.Run(existing)
	if err != nil {
		return fmt.Errorf("configuration failed: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := loader.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nConfiguration saved to: %s\n", loader.GetConfigPath())
	fmt.Fprintln(cmd.OutOrStdout(), "\nYou can now start a shell with: nodeshell shell")

	return nil
}
