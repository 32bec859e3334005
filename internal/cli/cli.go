// Package cli implements dormctl, the operator command line for the console.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"dormdesk/internal/bootstrap"
	"dormdesk/internal/config"
	"dormdesk/internal/logging"
	"dormdesk/internal/models"

	"github.com/spf13/cobra"
)

const defaultConfigPath = "configs/config.yaml"

// cliActor is recorded on writes made from the command line.
var cliActor = models.Actor{ID: "cli", Name: "dormctl"}

// NewRootCmd builds the dormctl command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "dormctl",
		Short:         "Student housing console operations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = defaultConfigPath
	}
	root.PersistentFlags().String("config", configPath, "Path to the YAML config file")

	root.AddCommand(
		RoomsCmd(),
		SweepCmd(),
		DashboardCmd(),
		UsersCmd(),
		BackupCmd(),
	)
	return root
}

// withApp loads configuration, assembles the console and runs fn against it.
// Logs go to stderr so command output stays clean.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, app *bootstrap.App) error) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !strings.EqualFold(cfg.Logging.Output, "file") {
		cfg.Logging.Output = "stderr"
	}

	logger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if closer != nil {
		defer closer.Close()
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	app, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	return fn(ctx, app)
}

func RoomsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rooms",
		Short: "List rooms with their derived occupancy",
		RunE: func(cmd *cobra.Command, args []string) error {
			building, _ := cmd.Flags().GetString("building")
			status, _ := cmd.Flags().GetString("status")

			return withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				rooms, total, err := app.Rooms.ListRooms(ctx, models.RoomFilter{
					Building: building,
					Status:   models.RoomStatus(status),
				})
				if err != nil {
					return fmt.Errorf("failed to list rooms: %w", err)
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ROOM\tBUILDING\tTYPE\tCAPACITY\tACTIVE\tFREE\tSTATUS")
				for _, r := range rooms {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
						r.RoomNumber, r.Building, r.Type, r.Capacity,
						r.Occupancy.ActiveContracts, r.Occupancy.RemainingSpace, r.Occupancy.Status)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d room(s)\n", total)
				return nil
			})
		},
	}

	cmd.Flags().String("building", "", "Only rooms in this building")
	cmd.Flags().String("status", "", "Only rooms with this derived status")
	return cmd
}

func SweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Complete approved checkout requests whose end date has passed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				n, err := app.Sweeper.RunOnce(ctx)
				if err != nil {
					return fmt.Errorf("sweep failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "completed %d checkout request(s)\n", n)
				return nil
			})
		},
	}
}

func DashboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Print the dashboard aggregates as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			rangeName, _ := cmd.Flags().GetString("range")
			rng := models.TimeRange(strings.ToLower(rangeName))
			if !rng.Valid() {
				return fmt.Errorf("invalid range %q: use week, month, quarter or year", rangeName)
			}

			return withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				dash, err := app.Dashboard.Build(ctx, rng)
				if err != nil {
					return fmt.Errorf("failed to build dashboard: %w", err)
				}
				return writeJSON(cmd.OutOrStdout(), dash)
			})
		},
	}

	cmd.Flags().String("range", string(models.RangeMonth), "Time range: week, month, quarter or year")
	return cmd
}

// BackupCmd takes a one-off copy of the SQLite database, whether or not
// scheduled backups are enabled.
func BackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Back up the SQLite database",
		RunE: func(cmd *cobra.Command, args []string) error {
			prune, _ := cmd.Flags().GetBool("prune")

			return withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				if app.Backups == nil {
					return fmt.Errorf("backups require the %s driver, not %s", config.DriverSQLite, app.Config.Store.Driver)
				}
				path, err := app.Backups.PerformBackup(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "backup written to %s\n", path)
				if prune {
					fmt.Fprintf(cmd.OutOrStdout(), "pruned %d old backup(s)\n", app.Backups.CleanupOldBackups())
				}
				return nil
			})
		},
	}

	cmd.Flags().Bool("prune", false, "Also delete backups past the retention window")
	return cmd
}

func UsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage console users",
	}
	cmd.AddCommand(usersListCmd(), usersCreateCmd())
	return cmd
}

func usersListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			role, _ := cmd.Flags().GetString("role")

			return withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				users, total, err := app.Users.ListUsers(ctx, models.UserFilter{Role: models.Role(role)})
				if err != nil {
					return fmt.Errorf("failed to list users: %w", err)
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tROLE\tACTIVE")
				for _, u := range users {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\n", u.ID, u.Name, u.Email, u.Role, u.IsActive)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d user(s)\n", total)
				return nil
			})
		},
	}

	cmd.Flags().String("role", "", "Only users with this role")
	return cmd
}

// usersCreateCmd bootstraps accounts, typically the first administrator.
func usersCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user with a login identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			email, _ := cmd.Flags().GetString("email")
			role, _ := cmd.Flags().GetString("role")
			phone, _ := cmd.Flags().GetString("phone")
			password, _ := cmd.Flags().GetString("password")
			if password == "" {
				password = os.Getenv("DORMCTL_PASSWORD")
			}

			return withApp(cmd, func(ctx context.Context, app *bootstrap.App) error {
				user, err := app.Users.CreateUser(ctx, models.UserInput{
					Name:            name,
					Email:           email,
					Phone:           phone,
					Role:            models.Role(role),
					Password:        password,
					ConfirmPassword: password,
				}, cliActor)
				if err != nil {
					return fmt.Errorf("failed to create user: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %s user %s (%s)\n", user.Role, user.Email, user.ID)
				return nil
			})
		},
	}

	cmd.Flags().String("name", "", "Full name")
	cmd.Flags().String("email", "", "Login email")
	cmd.Flags().String("role", string(models.RoleAdmin), "Role: admin, service, restaurant or student")
	cmd.Flags().String("phone", "", "Phone number")
	cmd.Flags().String("password", "", "Password (defaults to $DORMCTL_PASSWORD)")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
