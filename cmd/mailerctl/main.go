// Command mailerctl is the operator CLI for the mailer: quota, bulk job
// control, scheduled job listing and migrations.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ignite/member-mailer/internal/app"
	"github.com/ignite/member-mailer/internal/config"
	"github.com/ignite/member-mailer/internal/repository/postgres"
	"github.com/ignite/member-mailer/internal/service/bulk"
	"github.com/ignite/member-mailer/internal/service/schedule"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "mailerctl",
		Short:         "Operate the member mailer",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newQuotaCommand())
	cmd.AddCommand(newJobsCommand())
	cmd.AddCommand(newScheduledCommand())
	cmd.AddCommand(newMigrateCommand())
	return cmd
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// withApp loads configuration, connects and runs fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.LoadFromEnv(config.ResolvePath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	ctx := commandContext(cmd)
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func newQuotaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "quota",
		Short: "Show today's send quota",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				q, err := a.Services.Quota.Today(ctx)
				if err != nil {
					return err
				}
				printQuota(cmd.OutOrStdout(), q)
				return nil
			})
		},
	}
}

func newJobsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Bulk email job operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newJobsListCommand())
	cmd.AddCommand(newJobsShowCommand())
	for _, action := range []string{"cancel", "pause", "resume"} {
		cmd.AddCommand(newJobActionCommand(action))
	}
	return cmd
}

func newJobsListCommand() *cobra.Command {
	var (
		status string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List bulk jobs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				jobs, total, err := a.Services.Bulk.List(ctx, bulk.ListFilter{Status: status, Limit: limit})
				if err != nil {
					return err
				}
				printJobs(cmd.OutOrStdout(), jobs, total)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Only jobs in this status")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum jobs to list")
	return cmd
}

func newJobsShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one bulk job and its failed recipients",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				job, err := a.Services.Bulk.Get(ctx, args[0])
				if err != nil {
					return err
				}
				failed, err := a.Services.Bulk.Recipients(ctx, job.ID, bulk.RecipientFilter{Status: "failed"})
				if err != nil {
					return err
				}
				printJob(cmd.OutOrStdout(), job, failed)
				return nil
			})
		},
	}
}

func newJobActionCommand(action string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <id>",
		Short: jobActionHelp[action],
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				run := map[string]func(context.Context, string) error{
					"cancel": a.Services.Bulk.Cancel,
					"pause":  a.Services.Bulk.Pause,
					"resume": a.Services.Bulk.Resume,
				}[action]
				if err := run(ctx, args[0]); err != nil {
					return err
				}
				job, err := a.Services.Bulk.Get(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "job %s is now %s\n", job.ID, job.Status)
				return nil
			})
		},
	}
}

var jobActionHelp = map[string]string{
	"cancel": "Cancel a job; pending recipients are never sent",
	"pause":  "Pause a job after the recipient in flight",
	"resume": "Put a paused job back in line",
}

func newScheduledCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scheduled",
		Short: "Scheduled email job operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var (
		status string
		entity string
		limit  int
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List scheduled jobs by scheduled time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				jobs, total, err := a.Services.Schedule.List(ctx, schedule.ListFilter{Status: status, EntityID: entity, Limit: limit})
				if err != nil {
					return err
				}
				printScheduled(cmd.OutOrStdout(), jobs, total)
				return nil
			})
		},
	}
	list.Flags().StringVar(&status, "status", "", "Only jobs in this status (active, completed, failed)")
	list.Flags().StringVar(&entity, "entity", "", "Only jobs for this entity ID")
	list.Flags().IntVar(&limit, "limit", 50, "Maximum jobs to list")

	cmd.AddCommand(list)
	return cmd
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate [up|down|status|version|redo|reset] [args...]",
		Short: "Run schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFromEnv(config.ResolvePath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			ctx := commandContext(cmd)
			db, err := postgres.Open(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			command := "up"
			if len(args) > 0 {
				command, args = args[0], args[1:]
			}
			return postgres.Migrate(ctx, db, command, args...)
		},
	}
}
