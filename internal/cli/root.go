package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"factory-hook/internal/config"
)

// Version is overridden at build time with -ldflags
var Version = "0.1.0"

const flagConfig = "config"

// New builds the root command
func New() *cobra.Command {
	root := &cobra.Command{
		Use:   "factory-hook [sub-command]",
		Short: "Provision and decommission workspace factories from issue events",
		Long: `factory-hook receives issue lifecycle webhooks from the issue tracker.
  A created issue gets a Develop and a Review factory derived from its
  project's template factory, and links to both are written back into the
  issue. Resolving, closing or deleting the issue removes the factories.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:      true,
		DisableAutoGenTag: true,
	}

	root.PersistentFlags().String(flagConfig, "", "path to a YAML configuration file (env: FACTORY_HOOK_CONFIG)")

	root.AddCommand(newServeCommand())
	root.AddCommand(newSendEventCommand())
	root.AddCommand(newVersionCommand())
	return root
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := New().Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString(flagConfig)
	if err != nil {
		return nil, err
	}
	return config.Load(path)
}

// setupLogger installs the default text logger at the configured level
func setupLogger(cfg *config.Config) {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.GetLogLevel(),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.String("time", a.Value.Time().Format("2006-01-02 15:04:05"))
			}
			return a
		},
	})))
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := cmd.OutOrStdout().Write([]byte(Version + "\n"))
			return err
		},
		DisableAutoGenTag: true,
	}
}
