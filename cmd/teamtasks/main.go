package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nick-dorsch/teamtasks/internal/config"
	"github.com/nick-dorsch/teamtasks/internal/db"
	"github.com/nick-dorsch/teamtasks/internal/service"
	"github.com/nick-dorsch/teamtasks/internal/ui"
)

const (
	defaultConfigPath = "teamtasks.toml"
	envUser           = "TEAMTASKS_USER"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		selected, err := ui.RunMenu(os.Getenv(envUser))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error running menu: %v\n", err)
			os.Exit(1)
		}
		if len(selected) == 0 {
			os.Exit(0)
		}
		args = selected
	}

	root := newRootCmd()
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app carries the global flags and the state derived from them.
type app struct {
	configPath   string
	dbPath       string
	snapshotPath string
	dev          bool

	cfg    *config.Config
	level  *slog.LevelVar
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{level: new(slog.LevelVar)}

	root := &cobra.Command{
		Use:   "teamtasks",
		Short: "Team task tracker with role-based visibility",
		Long: `teamtasks tracks tasks for admins and team members. Admins see and
manage everything; members see the tasks assigned to them or to one of
their teams, and can comment on those.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", defaultConfigPath, "config file")
	flags.StringVar(&a.dbPath, "db-path", "", "path to database file (overrides config)")
	flags.StringVar(&a.snapshotPath, "snapshot-path", "", "path to snapshot file (overrides config)")
	flags.BoolVar(&a.dev, "dev", false, "human-readable logs")

	root.AddCommand(
		a.initCmd(),
		a.serveCmd(),
		a.mcpCmd(),
		a.boardCmd(),
		a.listTasksCmd(),
		a.statusCmd(),
		a.userCmd(),
		a.teamCmd(),
		a.dbCmd(),
	)
	return root
}

func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("db-path") {
		cfg.General.StateDB = a.dbPath
	}
	if cmd.Flags().Changed("snapshot-path") {
		cfg.General.SnapshotPath = a.snapshotPath
	}
	a.cfg = cfg
	a.level.Set(parseLevel(cfg.General.LogLevel))
	a.logger = configureLogger(cmd.ErrOrStderr(), a.level, a.dev)
	return nil
}

func parseLevel(logLevel string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(logLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func configureLogger(w io.Writer, level slog.Leveler, useDev bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if useDev {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// openStore opens and migrates the database, creating its directory.
// Writes are mirrored to the snapshot file when one is configured.
func (a *app) openStore(ctx context.Context) (*db.DB, error) {
	path := a.cfg.General.StateDB
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	database, err := db.Open(path)
	if err != nil {
		return nil, err
	}
	if err := database.Init(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if a.cfg.General.SnapshotPath != "" {
		database.EnableAutoSnapshot(a.cfg.General.SnapshotPath)
	}
	return database, nil
}

func (a *app) service(database *db.DB) *service.Service {
	return service.New(database, a.logger, service.Options{
		AdminEmails: a.cfg.Identity.AdminEmails,
		DefaultRole: a.cfg.Identity.Role(),
	})
}

// actorEmail returns the --as flag, falling back to TEAMTASKS_USER.
func actorEmail(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if env := os.Getenv(envUser); env != "" {
		return env, nil
	}
	return "", fmt.Errorf("--as is required (or set %s)", envUser)
}
