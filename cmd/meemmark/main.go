// Command meemmark runs the MeemMark admin API and its maintenance tasks.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/KareemA-Saad/Meem-Market/internal/config"
)

type globalFlags struct {
	envFile string
	dbPath  string
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var flags globalFlags

	root := &cobra.Command{
		Use:           "meemmark",
		Short:         "MeemMark admin API server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.envFile, "env", ".env", "dotenv file read before MEEM_* variables")
	root.PersistentFlags().StringVarP(&flags.dbPath, "db", "d", "", "SQLite database path (overrides MEEM_DB)")

	root.AddCommand(
		newServeCommand(&flags),
		newInitCommand(&flags),
		newRolesCommand(&flags),
		newUsersCommand(&flags),
	)
	return root
}

// loadConfig reads configuration and installs the logger. The returned
// cleanup must be called before exit.
func loadConfig(flags *globalFlags) (*config.Config, func(), error) {
	cfg, err := config.Load(flags.envFile)
	if err != nil {
		return nil, nil, err
	}
	if flags.dbPath != "" {
		cfg.DB = flags.dbPath
	}

	closeLog, err := setupLogger(cfg.LogFormat, cfg.LogFile)
	if err != nil {
		return nil, nil, err
	}
	return cfg, closeLog, nil
}
