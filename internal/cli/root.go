// Package cli provides the command-line interface for capsule.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/memcapsule/internal/app"
	"github.com/raphaelgruber/memcapsule/internal/client"
	"github.com/raphaelgruber/memcapsule/internal/config"
	"github.com/raphaelgruber/memcapsule/internal/models"
	"github.com/raphaelgruber/memcapsule/internal/service"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose   bool
	userID    string
	serverURL string

	// Set up per invocation in PersistentPreRunE
	cfg        config.Config
	logger     *slog.Logger
	logCleanup func() error
	core       *app.App
	journal    Journal
)

// Journal is the capsule surface shared by the local store and the HTTP client.
type Journal interface {
	Create(ctx context.Context, req service.EntryRequest) (service.CreateResult, error)
	Flashback(ctx context.Context, userID, query string, k int) ([]models.Flashback, error)
	Stats(ctx context.Context, userID string) (models.Stats, error)
	Rebuild(ctx context.Context, userID string) (int, error)
}

var _ Journal = (*client.Client)(nil)

// localJournal serves commands from an in-process store.
type localJournal struct {
	app *app.App
}

func (l localJournal) Create(ctx context.Context, req service.EntryRequest) (service.CreateResult, error) {
	return l.app.Journal.Create(ctx, req)
}

func (l localJournal) Flashback(ctx context.Context, userID, query string, k int) ([]models.Flashback, error) {
	return l.app.Store.Flashback(ctx, userID, query, k)
}

func (l localJournal) Stats(ctx context.Context, userID string) (models.Stats, error) {
	return l.app.Store.Stats(ctx, userID)
}

func (l localJournal) Rebuild(ctx context.Context, userID string) (int, error) {
	return l.app.Store.Rebuild(ctx, userID)
}

// offline commands never open a store.
var offline = map[string]bool{
	"help":       true,
	"questions":  true,
	"usage":      true,
	"completion": true,
}

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "capsule",
	Short: "Personal memory capsule journal",
	Long: `Capsule is a personal journal that remembers.

Write entries by hand or answer ten guided questions and let a language model
compose the entry. Capsule tracks your daily streak, awards badges at 3, 7, 14
and 30 days, and finds past entries similar to whatever is on your mind.

Entries are stored locally in BadgerDB by default. Set CAPSULE_BACKEND=surreal
to use SurrealDB, or pass --server to talk to a running capsule-server.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()

		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		logger, logCleanup = config.SetupLogger(cfg.LogFile, level)
		slog.SetDefault(logger)

		if userID == "" {
			userID = defaultUser()
		}

		if offline[cmd.Name()] {
			return nil
		}
		if serverURL != "" {
			journal = client.New(serverURL)
			return nil
		}

		var err error
		core, err = app.New(cmd.Context(), cfg, logger)
		if err != nil {
			return fmt.Errorf("open capsule: %w", err)
		}
		journal = localJournal{app: core}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeAll(context.Background())
	},
}

func closeAll(ctx context.Context) error {
	var errs []error
	if core != nil {
		errs = append(errs, core.Close(ctx))
		core = nil
	}
	journal = nil
	if logCleanup != nil {
		errs = append(errs, logCleanup())
		logCleanup = nil
	}
	return errors.Join(errs...)
}

// defaultUser is the login name, or "default" when it is unknown.
func defaultUser() string {
	for _, key := range []string{"CAPSULE_USER", "USER", "USERNAME"} {
		if u := os.Getenv(key); u != "" {
			return u
		}
	}
	return "default"
}

// requireLocal returns the in-process app for commands that need direct
// access to the log.
func requireLocal() (*app.App, error) {
	if core == nil {
		return nil, errors.New("this command needs the local store; run it without --server")
	}
	return core, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	ctx := context.Background()
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		// PersistentPostRunE is skipped when RunE fails.
		_ = closeAll(ctx)
	}
	return err
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", "", "journal owner (default $USER)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "capsule-server URL; talk to it instead of the local store")

	// Add subcommands
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(flashbackCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(rebuildCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(questionsCmd)
	rootCmd.AddCommand(usageCmd)
}
