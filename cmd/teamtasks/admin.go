package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nick-dorsch/teamtasks/internal/service"
	"github.com/nick-dorsch/teamtasks/pkg/models"
)

func (a *app) userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}

	var name, role string
	add := &cobra.Command{
		Use:   "add EMAIL",
		Short: "Add a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			database, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			r, err := models.ParseRole(role)
			if err != nil {
				return err
			}
			u, err := a.service(database).Users.Bootstrap(ctx, args[0], name, r)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s (%s)\n", u.Email, u.Role)
			return nil
		},
	}
	add.Flags().StringVar(&name, "name", "", "display name")
	add.Flags().StringVar(&role, "role", string(models.RoleMember), "role (admin or member)")

	setRole := &cobra.Command{
		Use:   "set-role EMAIL ROLE",
		Short: "Change a user's role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			database, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			u, err := database.GetUserByEmail(ctx, models.NormalizeEmail(args[0]))
			if err != nil {
				return err
			}
			if u == nil {
				return fmt.Errorf("%w: %s", service.ErrNotFound, args[0])
			}
			u, err = a.service(database).Users.SetRole(ctx, nil, u.ID, models.Role(args[1]))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s is now %s\n", u.Email, u.Role)
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			database, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			users, err := database.ListUsers(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "EMAIL\tNAME\tROLE")
			for _, u := range users {
				fmt.Fprintf(w, "%s\t%s\t%s\n", u.Email, u.DisplayName(), u.Role)
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(add, setRole, list)
	return cmd
}

func (a *app) teamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "team",
		Short: "Manage teams",
	}

	var as string
	var members []string
	create := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a team",
		Args:  cobra.ExactArgs(1),
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
			team, _, err := svc.Teams.Create(ctx, actor, service.TeamInput{Name: args[0], Members: members})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Created team %s (%s) with %d members\n", team.Name, team.ID, len(team.Members))
			return nil
		},
	}
	create.Flags().StringVar(&as, "as", "", "email of the acting admin")
	create.Flags().StringSliceVar(&members, "members", nil, "member emails")

	list := &cobra.Command{
		Use:   "list",
		Short: "List teams",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			database, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			teams, err := database.ListTeams(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tMEMBERS")
			for _, t := range teams {
				fmt.Fprintf(w, "%s\t%s\t%s\n", t.ID, t.Name, strings.Join(t.Members, ","))
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(create, list)
	return cmd
}

func (a *app) dbCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database maintenance",
	}

	export := &cobra.Command{
		Use:   "export [PATH]",
		Short: "Write a JSONL snapshot (defaults to the snapshot path)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfg.General.SnapshotPath
			if len(args) == 1 {
				path = args[0]
			}
			ctx := cmd.Context()
			database, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			if err := database.ExportSnapshot(ctx, path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Exported snapshot to %s\n", path)
			return nil
		},
	}

	imp := &cobra.Command{
		Use:   "import [PATH]",
		Short: "Load a JSONL snapshot, upserting by id",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfg.General.SnapshotPath
			if len(args) == 1 {
				path = args[0]
			}
			ctx := cmd.Context()
			database, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			res, err := database.ImportSnapshot(ctx, path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Imported %d users, %d teams, %d tasks, %d comments (%d dropped)\n",
				res.Users, res.Teams, res.Tasks, res.Comments, res.Dropped+res.DroppedComments)
			return nil
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show row counts",
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
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Database: %s\n", a.cfg.General.StateDB)
			fmt.Fprintf(out, "Users:    %d\n", stats.Users)
			fmt.Fprintf(out, "Teams:    %d\n", stats.Teams)
			fmt.Fprintf(out, "Tasks:    %d\n", stats.Tasks)
			fmt.Fprintf(out, "Comments: %d\n", stats.Comments)
			fmt.Fprintf(out, "Activity: %d\n", stats.Activity)
			return nil
		},
	}

	cmd.AddCommand(export, imp, status)
	return cmd
}
