package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/lysyi3m/cazzmachine/app/database"
	"github.com/lysyi3m/cazzmachine/app/health"
	"github.com/lysyi3m/cazzmachine/app/provider"
	"github.com/lysyi3m/cazzmachine/app/tasks"
)

type stores struct {
	items *database.ItemStore
	diags *database.DiagnosticStore
}

// withStores opens the database for the duration of fn.
func withStores(dbPath string, fn func(s *stores) error) error {
	db, _, err := database.OpenAndMigrate(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	return fn(&stores{
		items: database.NewItemStore(db),
		diags: database.NewDiagnosticStore(db),
	})
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newRootCmd() *cobra.Command {
	var dbPath string

	root := &cobra.Command{
		Use:           "cazzctl",
		Short:         "cazzctl - inspect and maintain the cazzmachine content store",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&dbPath, "db-path", envOr("DB_PATH", "./data/cazzmachine.db"), "Path to the SQLite database file")

	root.AddCommand(
		newStatsCmd(&dbPath),
		newPendingCmd(&dbPath),
		newConsumeCmd(&dbPath),
		newPruneCmd(&dbPath),
		newProvidersCmd(&dbPath),
		newDiagnosticsCmd(&dbPath),
		newClearDiagnosticsCmd(&dbPath),
		newLogCmd(&dbPath),
	)
	return root
}

func newStatsCmd(dbPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show today's consumption stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStores(*dbPath, func(s *stores) error {
				stats, err := s.items.TodayStats(database.SessionDate(time.Now()))
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), stats)
			})
		},
	}
}

func newPendingCmd(dbPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "Show the buffer summary for today",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStores(*dbPath, func(s *stores) error {
				summary, err := s.items.DiagnosticSummary(database.SessionDate(time.Now()))
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), summary)
			})
		},
	}
}

func newConsumeCmd(dbPath *string) *cobra.Command {
	var budgetMinutes float64

	cmd := &cobra.Command{
		Use:   "consume",
		Short: "Consume pending items within a time budget",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStores(*dbPath, func(s *stores) error {
				result, err := s.items.ConsumePending(database.SessionDate(time.Now()), budgetMinutes)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
	cmd.Flags().Float64Var(&budgetMinutes, "budget", 1, "Budget in minutes")
	return cmd
}

func newPruneCmd(dbPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete or archive items from previous days",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStores(*dbPath, func(s *stores) error {
				task := tasks.NewPruneItemsTask(database.SessionDate(time.Now()), s.items, s.diags)
				task.Start()
				if err := task.Execute(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %d, archived %d\n", task.Deleted, task.Redacted)
				return nil
			})
		},
	}
}

func newProvidersCmd(dbPath *string) *cobra.Command {
	var providersDir string

	cmd := &cobra.Command{
		Use:   "providers",
		Short: "Show provider health over the last 24 hours",
		RunE: func(cmd *cobra.Command, args []string) error {
			configCache := provider.NewConfigCache(providersDir)
			if err := configCache.Run(); err != nil {
				return err
			}

			var known []health.KnownProvider
			for _, config := range configCache.GetEnabledConfigs() {
				known = append(known, health.KnownProvider{Name: config.Name, Category: config.Category})
			}

			return withStores(*dbPath, func(s *stores) error {
				statuses, err := health.NewDeriver(s.diags, s.items).Derive(known)
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "PROVIDER\tCATEGORY\tSTATUS\tLAST FETCH\tERRORS")
				for _, st := range statuses {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", st.ProviderName, st.Category,
						st.LastFetchStatus, st.LastFetchTimestamp, st.RecentErrorCount)
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&providersDir, "providers-dir", envOr("PROVIDERS_DIR", "./providers"), "Directory containing provider configuration files")
	return cmd
}

func newDiagnosticsCmd(dbPath *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "diagnostics",
		Short: "List recent diagnostic events, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 1 || limit > 1000 {
				return fmt.Errorf("limit must be between 1 and 1000")
			}
			return withStores(*dbPath, func(s *stores) error {
				events, err := s.diags.Recent(limit)
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				for _, e := range events {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Timestamp.Format(database.EventTimeLayout),
						e.Severity, e.EventType, e.Message)
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum number of events")
	return cmd
}

func newClearDiagnosticsCmd(dbPath *string) *cobra.Command {
	var olderThanDays int

	cmd := &cobra.Command{
		Use:   "clear-diagnostics",
		Short: "Delete diagnostic events (all of them unless --older-than is positive)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStores(*dbPath, func(s *stores) error {
				deleted, err := s.diags.Clear(olderThanDays, time.Now())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %d events\n", deleted)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&olderThanDays, "older-than", 0, "Only delete events older than this many days")
	return cmd
}

func newLogCmd(dbPath *string) *cobra.Command {
	var eventType, severity, message string

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Write a diagnostic event",
		RunE: func(cmd *cobra.Command, args []string) error {
			sev, err := database.ParseSeverity(severity)
			if err != nil {
				return err
			}
			return withStores(*dbPath, func(s *stores) error {
				return s.diags.LogEvent(database.DiagnosticEvent{
					EventType: eventType,
					Severity:  sev,
					Message:   message,
				})
			})
		},
	}
	cmd.Flags().StringVar(&eventType, "type", "manual", "Event type")
	cmd.Flags().StringVar(&severity, "severity", "info", "Severity (debug, info, warn, error)")
	cmd.Flags().StringVar(&message, "message", "", "Event message")
	cmd.MarkFlagRequired("message")
	return cmd
}
