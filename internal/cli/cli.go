package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/Additional-Code/servio/internal/app"
	"github.com/Additional-Code/servio/internal/dto"
	"github.com/Additional-Code/servio/internal/migration"
	"github.com/Additional-Code/servio/internal/seeder"
	"github.com/Additional-Code/servio/internal/service/integrity"
)

// NewRootCommand builds the root servio CLI command.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "servio",
		Short:         "Servio restaurant back-office toolkit",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newStartCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newSeedCmd())
	root.AddCommand(newIntegrityCmd())
	root.AddCommand(newWorkerCmd())

	return root
}

// Execute runs the servio CLI.
func Execute(ctx context.Context) error {
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return err
	}
	return nil
}

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "start",
		Aliases: []string{"run"},
		Short:   "Run the HTTP, WebSocket and gRPC health service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUntilDone(cmd.Context(), fx.New(app.Module))
		},
	}
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			var mig *migration.Migrator
			opts := fx.Options(app.Infra, migration.Module, fx.Populate(&mig))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				if err := mig.Up(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			})
		},
	}

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Rollback migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			all, _ := cmd.Flags().GetBool("all")
			var mig *migration.Migrator
			opts := fx.Options(app.Infra, migration.Module, fx.Populate(&mig))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				if err := mig.Down(ctx, steps, all); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations rolled back")
				return nil
			})
		},
	}
	downCmd.Flags().Int("steps", 1, "Number of migration steps to rollback")
	downCmd.Flags().Bool("all", false, "Rollback all applied migrations")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			var mig *migration.Migrator
			opts := fx.Options(app.Infra, migration.Module, fx.Populate(&mig))
			return runWithApp(cmd.Context(), opts, mig.Status)
		},
	}

	cmd.AddCommand(upCmd, downCmd, statusCmd)
	return cmd
}

func newSeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load demo staff, floor, menu and payment methods",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("file")
			var seed *seeder.Seeder
			opts := fx.Options(app.Core, seeder.Module, fx.Populate(&seed))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				if path == "" {
					if err := seed.Run(ctx); err != nil {
						return err
					}
				} else {
					raw, err := os.ReadFile(path)
					if err != nil {
						return err
					}
					fixtures, err := seeder.Parse(raw)
					if err != nil {
						return err
					}
					if err := seed.Load(ctx, fixtures); err != nil {
						return err
					}
				}
				fmt.Fprintln(cmd.OutOrStdout(), "seed data applied")
				return nil
			})
		},
	}
	cmd.Flags().String("file", "", "YAML fixture file (defaults to the built-in demo data)")
	return cmd
}

func newIntegrityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "integrity",
		Short: "Check and repair table, order and location consistency",
	}

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Report integrity issues as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			var svc *integrity.Service
			opts := fx.Options(app.Core, fx.Populate(&svc))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				report, err := svc.Check(ctx)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), report)
			})
		},
	}

	fixCmd := &cobra.Command{
		Use:   "fix [issue_type...]",
		Short: "Repair issues of the given types",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			var svc *integrity.Service
			opts := fx.Options(app.Core, fx.Populate(&svc))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				result, err := svc.AutoFix(ctx, &dto.IntegrityFixRequest{IssueTypes: args, DryRun: dryRun})
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), result)
			})
		},
	}
	fixCmd.Flags().Bool("dry-run", false, "List the repairs without applying them")

	cmd.AddCommand(checkCmd, fixCmd)
	return cmd
}

func newWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Manage background workers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Consume the order event stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUntilDone(cmd.Context(), fx.New(app.Worker))
		},
	})
	return cmd
}

func runUntilDone(ctx context.Context, application *fx.App) error {
	if err := application.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return application.Stop(stopCtx)
}

func runWithApp(ctx context.Context, opts fx.Option, fn func(context.Context) error) error {
	application := fx.New(opts, fx.NopLogger)
	if err := application.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = application.Stop(stopCtx)
	}()
	return fn(ctx)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
