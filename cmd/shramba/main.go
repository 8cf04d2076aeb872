package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/erazemk/shramba/internal/api"
	"github.com/erazemk/shramba/internal/auth"
	"github.com/erazemk/shramba/internal/config"
	"github.com/erazemk/shramba/internal/db"
	"github.com/erazemk/shramba/internal/metrics"
	"github.com/erazemk/shramba/internal/model"
	"github.com/erazemk/shramba/internal/stats"
	"github.com/erazemk/shramba/internal/store"
)

// globalFlags are shared by every command and override the loaded config.
type globalFlags struct {
	configPath string
	envFile    string
	dbDriver   string
	dbDSN      string
	logPath    string
	logLevel   string
	logFormat  string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "shramba: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var flags globalFlags

	cmd := &cobra.Command{
		Use:          "shramba",
		Short:        "Track perishable items and where they end up",
		SilenceUsage: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "YAML config file")
	pf.StringVar(&flags.envFile, "env-file", ".env", "dotenv file loaded into the environment if present")
	pf.StringVar(&flags.dbDriver, "db-driver", "", "database driver: sqlite or pgx")
	pf.StringVarP(&flags.dbDSN, "db", "d", "", "SQLite database path or Postgres URL")
	pf.StringVarP(&flags.logPath, "log", "l", "", "log file path (default: stdout/stderr only)")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn or error")
	pf.StringVar(&flags.logFormat, "log-format", "", "log format: text or json")

	serve := newServeCmd(&flags)
	cmd.RunE = serve.RunE
	cmd.Flags().AddFlagSet(serve.Flags())

	cmd.AddCommand(
		serve,
		newStatsCmd(&flags),
		newClearHistoryCmd(&flags),
		newTokenCmd(&flags),
	)
	return cmd
}

// loadConfig loads the configuration and applies explicitly set flags.
func loadConfig(cmd *cobra.Command, flags *globalFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath, flags.envFile)
	if err != nil {
		return nil, err
	}

	set := func(name string, dst *string, v string) {
		if cmd.Flags().Changed(name) {
			*dst = v
		}
	}
	set("db-driver", &cfg.Database.Driver, flags.dbDriver)
	set("db", &cfg.Database.DSN, flags.dbDSN)
	set("log", &cfg.Log.Path, flags.logPath)
	set("log-level", &cfg.Log.Level, flags.logLevel)
	set("log-format", &cfg.Log.Format, flags.logFormat)

	return cfg, nil
}

// openDatabase opens the configured database and ensures the schema.
func openDatabase(cfg *config.Config) (*sqlx.DB, error) {
	database, err := db.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.EnsureSchema(database); err != nil {
		database.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	return database, nil
}

// tokenSecret returns the configured secret, falling back to the one
// persisted in the database.
func tokenSecret(ctx context.Context, cfg *config.Config, database *sqlx.DB) (string, error) {
	if cfg.TokenSecret != "" {
		return cfg.TokenSecret, nil
	}
	secret, err := store.GetSigningSecret(ctx, database)
	if err != nil {
		return "", fmt.Errorf("loading signing secret: %w", err)
	}
	return secret, nil
}

func newServeCmd(flags *globalFlags) *cobra.Command {
	var addr string
	var noMetrics bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			}
			if noMetrics {
				cfg.Metrics.Enabled = false
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			closeLog, err := setupLogger(cfg.Log.Path, cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return err
			}
			if closeLog != nil {
				defer closeLog()
			}

			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "listen address (default :8080)")
	cmd.Flags().BoolVar(&noMetrics, "no-metrics", false, "disable the /metrics endpoint")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	database, err := openDatabase(cfg)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		return err
	}
	defer database.Close()

	slog.Info("database ready", "driver", cfg.Database.Driver)

	secret, err := tokenSecret(ctx, cfg, database)
	if err != nil {
		slog.Error("failed to get token secret", "error", err)
		return err
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.NewRouter(database, secret, m),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", cfg.Addr, "metrics", cfg.Metrics.Enabled)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		return err
	}

	slog.Info("server stopped, closing database")
	return nil
}

func newStatsCmd(flags *globalFlags) *cobra.Command {
	var from, to, granularity string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print statistics as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			database, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			defer database.Close()

			end := model.Today()
			if to != "" {
				if end, err = model.ParseDate(to); err != nil {
					return fmt.Errorf("invalid --to: %w", err)
				}
			}
			start := stats.MonthStart(end).AddMonths(-5)
			if from != "" {
				if start, err = model.ParseDate(from); err != nil {
					return fmt.Errorf("invalid --from: %w", err)
				}
			}

			engine := &stats.Engine{Source: store.Source{DB: database}}
			resp, err := engine.Stats(cmd.Context(), "", start.Time, end.Time, granularity)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first day of the range (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last day of the range (YYYY-MM-DD, default today)")
	cmd.Flags().StringVarP(&granularity, "granularity", "g", "month", "day, week or month")
	return cmd
}

func newClearHistoryCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-history",
		Short: "Delete every archived item",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			database, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			defer database.Close()

			n, err := store.ClearHistory(cmd.Context(), database)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d archived items.\n", n)
			return nil
		},
	}
}

func newTokenCmd(flags *globalFlags) *cobra.Command {
	var userID string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an identity token for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			database, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			defer database.Close()

			secret, err := tokenSecret(cmd.Context(), cfg, database)
			if err != nil {
				return err
			}
			token, err := auth.GenerateToken(secret, userID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "user ID to embed in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", auth.TokenExpiry, "token lifetime")
	cmd.MarkFlagRequired("user")
	return cmd
}
