package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nick-dorsch/teamtasks/internal/analytics"
	"github.com/nick-dorsch/teamtasks/internal/config"
	"github.com/nick-dorsch/teamtasks/internal/live"
	"github.com/nick-dorsch/teamtasks/internal/mcp"
	"github.com/nick-dorsch/teamtasks/internal/server"
	"github.com/nick-dorsch/teamtasks/internal/ui"
	"github.com/nick-dorsch/teamtasks/pkg/models"
	"github.com/nick-dorsch/teamtasks/pkg/visibility"
)

func (a *app) initCmd() *cobra.Command {
	var admin string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the database, importing the snapshot if one exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			ctx := cmd.Context()

			dir := filepath.Dir(a.cfg.General.StateDB)
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create %s: %w", dir, err)
			}
			ignore := fmt.Sprintf("%s*\n", filepath.Base(a.cfg.General.StateDB))
			if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(ignore), 0644); err != nil {
				return fmt.Errorf("failed to create .gitignore: %w", err)
			}
			fmt.Fprintf(out, "✓ Created %s/\n", dir)

			database, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer database.Close()
			fmt.Fprintf(out, "✓ Initialized database at %s\n", a.cfg.General.StateDB)

			snapshot := a.cfg.General.SnapshotPath
			if _, err := os.Stat(snapshot); err == nil {
				database.DisableOnChange()
				res, err := database.ImportSnapshot(ctx, snapshot)
				database.EnableOnChange()
				if err != nil {
					return fmt.Errorf("failed to import snapshot: %w", err)
				}
				fmt.Fprintf(out, "✓ Imported %d users, %d teams, %d tasks from %s\n", res.Users, res.Teams, res.Tasks, snapshot)
				if res.Dropped > 0 {
					fmt.Fprintf(out, "  (%d malformed task records skipped)\n", res.Dropped)
				}
			}

			if admin != "" {
				svc := a.service(database)
				u, err := database.GetUserByEmail(ctx, models.NormalizeEmail(admin))
				if err != nil {
					return err
				}
				if u == nil {
					u, err = svc.Users.Bootstrap(ctx, admin, "", models.RoleAdmin)
				} else if !u.IsAdmin() {
					u, err = svc.Users.SetRole(ctx, nil, u.ID, models.RoleAdmin)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "✓ Admin %s ready\n", u.Email)
			}

			fmt.Fprintln(out, "✓ teamtasks initialized successfully")
			return nil
		},
	}
	cmd.Flags().StringVar(&admin, "admin", "", "email of the first admin user")
	return cmd
}

func (a *app) serveCmd() *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			database, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			if cmd.Flags().Changed("bind") {
				a.cfg.API.Bind = bind
			}

			a.watchConfig(ctx)

			srv := server.NewServer(a.service(database), a.logger, server.Options{
				Bind:        a.cfg.API.Bind,
				ReadTimeout: a.cfg.API.ReadTimeout.Duration,
			})
			return srv.Start(ctx)
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "listen address (overrides config)")
	return cmd
}

// watchConfig hot-reloads the config file. Only the log level applies to a
// running process; other changes need a restart.
func (a *app) watchConfig(ctx context.Context) {
	if _, err := os.Stat(a.configPath); err != nil {
		return
	}
	mgr := config.NewManager(a.configPath, a.cfg)
	err := config.Watch(ctx, mgr, a.logger, func(cfg *config.Config) {
		a.level.Set(parseLevel(cfg.General.LogLevel))
		if cfg.General.StateDB != a.cfg.General.StateDB || cfg.API.Bind != a.cfg.API.Bind {
			a.logger.Warn("state_db and bind changes require a restart")
		}
	})
	if err != nil {
		a.logger.Warn("config watch disabled", "error", err)
	}
}

func (a *app) mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the task tools over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer database.Close()

			return mcp.Serve(mcp.NewServer(a.service(database)))
		},
	}
}

func (a *app) boardCmd() *cobra.Command {
	var as string

	cmd := &cobra.Command{
		Use:   "board",
		Short: "Open the live task board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := actorEmail(as)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			database, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			svc := a.service(database)
			actor, err := svc.Users.Ensure(ctx, email)
			if err != nil {
				return err
			}

			// Logging to the terminal would corrupt the board.
			quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
			session := live.Open(ctx, database, visibility.ViewerOf(actor), quiet)
			defer session.Close()

			return ui.RunBoard(session, svc.Tasks, actor)
		},
	}
	cmd.Flags().StringVar(&as, "as", "", "email of the viewing user")
	return cmd
}

func (a *app) listTasksCmd() *cobra.Command {
	var as string
	var filters visibility.Filters

	cmd := &cobra.Command{
		Use:   "list-tasks",
		Short: "List the tasks visible to a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := actorEmail(as)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			database, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			svc := a.service(database)
			actor, err := svc.Users.Ensure(ctx, email)
			if err != nil {
				return err
			}
			res, err := svc.Tasks.Visible(ctx, visibility.ViewerOf(actor), filters)
			if err != nil {
				return err
			}

			printTasks(cmd.OutOrStdout(), res.Tasks, time.Now())
			return nil
		},
	}
	cmd.Flags().StringVar(&as, "as", "", "email of the viewing user")
	cmd.Flags().StringVar(&filters.Query, "query", "", "case-insensitive text search")
	cmd.Flags().StringVar(&filters.Status, "status", "", "filter by status (To Do, In Progress, Done)")
	cmd.Flags().StringVar(&filters.Priority, "priority", "", "filter by priority (Low, Medium, High)")
	return cmd
}

func printTasks(out io.Writer, tasks []*models.Task, now time.Time) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TITLE\tSTATUS\tPRIORITY\tDUE\tASSIGNEES")
	for _, t := range tasks {
		due, _ := analytics.DaysLeft(t.DueDate, now)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.Title, t.Status, t.Priority, due, strings.Join(t.AssignedToEmails, ","))
	}
	w.Flush()
}

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show task counts across the whole database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			database, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			stats, err := database.Stats(ctx)
			if err != nil {
				return err
			}
			tasks, err := database.ListTasks(ctx)
			if err != nil {
				return err
			}
			summary := analytics.Summarize(tasks, time.Now())

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "TeamTasks Status")
			fmt.Fprintln(out, "================")
			fmt.Fprintf(out, "Users:       %d\n", stats.Users)
			fmt.Fprintf(out, "Teams:       %d\n", stats.Teams)
			fmt.Fprintf(out, "Total Tasks: %d\n", summary.Total)
			fmt.Fprintf(out, "Overdue:     %d\n", summary.Overdue)

			fmt.Fprintln(out, "\nTask Breakdown:")
			fmt.Fprintf(out, "  To Do:       %d\n", summary.Status.Todo)
			fmt.Fprintf(out, "  In Progress: %d\n", summary.Status.InProgress)
			fmt.Fprintf(out, "  Done:        %d\n", summary.Status.Done)

			if len(summary.Assignees) > 0 {
				fmt.Fprintln(out, "\nBy Assignee:")
				for _, ac := range summary.Assignees {
					fmt.Fprintf(out, "  %-30s %d/%d done\n", ac.Email, ac.Counts.Done, ac.Counts.Total())
				}
			}
			return nil
		},
	}
}
