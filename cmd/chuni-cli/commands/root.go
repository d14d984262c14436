package commands

import (
	"chuniscrape/lib/scrapers/chunithm"
	"chuniscrape/lib/sessionstore"
	"chuniscrape/lib/telemetry"
	"chuniscrape/services/sessions"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	userFlag   string
	verbose    bool
)

var (
	config   Config
	database *sql.DB
	manager  *sessions.Manager
)

var rootCmd = &cobra.Command{
	Use:   "chuni-cli",
	Short: "chuni-cli reads your CHUNITHM-NET profile, scores and ratings.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		telemetry.InitSlog(verbose)

		var err error
		config, err = loadConfig(configPath)
		if err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		if userFlag == "" {
			userFlag = config.DefaultUser
		}

		database, err = config.Database.OpenDB()
		if err != nil {
			return fmt.Errorf("open session database: %w", err)
		}
		store := sessionstore.NewStore(database)
		err = store.Migrate(cmd.Context())
		if err != nil {
			return fmt.Errorf("migrate session database: %w", err)
		}

		clientOptions, err := config.clientOptions(verbose)
		if err != nil {
			return err
		}
		manager = sessions.NewManager(store, sessions.Options{
			Client:   clientOptions,
			CacheTTL: config.cacheTTL(),
		})
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "chuni.json5", "The config file to read.")
	rootCmd.PersistentFlags().StringVarP(&userFlag, "user", "u", "", "The stored session to use, defaults to default_user from the config.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enables debug logging and http dumps.")
}

// withClient runs fn with the current user's client, a session whose
// login cookie stopped working is removed.
func withClient(ctx context.Context, fn func(ctx context.Context, client *chunithm.Client) error) error {
	err := manager.Call(ctx, userFlag, fn)
	if err != nil {
		slog.DebugContext(ctx, "command failed", "user", userFlag, "err", err)
	}
	return err
}

// shutdown writes the cookies refreshed during the command, it also runs
// when the command failed.
func shutdown(ctx context.Context) error {
	if manager == nil {
		return nil
	}
	defer database.Close()
	return manager.Close(context.WithoutCancel(ctx))
}

func ExecuteContext(ctx context.Context) {
	err := rootCmd.ExecuteContext(ctx)
	closeErr := shutdown(ctx)
	if closeErr != nil {
		slog.ErrorContext(ctx, "failed to save session", "user", userFlag, "err", closeErr)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, describe(err))
		os.Exit(1)
	}
}
