package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/anthropic/githist/internal/config"
	"github.com/anthropic/githist/internal/gitlog"
	"github.com/anthropic/githist/internal/ingest"
	"github.com/anthropic/githist/internal/report"
	"github.com/anthropic/githist/internal/store"
	"github.com/anthropic/githist/internal/watcher"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "githist",
		Short: "Ingest git history into a queryable SQLite store",
		Long: "githist walks a repository's commit history and maintains two relations,\n" +
			"commits and commit_files, for downstream analytical SQL (hotspots,\n" +
			"authorship weight, activity histograms).",
	}

	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(watchCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// addRunFlags attaches the ingestion flags shared by ingest and watch.
func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().String("repo", "", "Path to the git repository (default from config)")
	cmd.Flags().String("db", "", "Path to the SQLite database (default from config)")
	cmd.Flags().Int("workers", 0, "Diff summarizer worker count")
	cmd.Flags().Int("rename-threshold", -1, "Rename similarity threshold, 0-100")
	cmd.Flags().Int("diff-timeout", 0, "Per-commit diff timeout in seconds")
	cmd.Flags().String("on-conflict", "", "Write conflict policy: reject or overwrite")
	cmd.Flags().Bool("allow-shallow", false, "Ingest shallow history, flagged as truncated")
}

// runConfig loads the config file and applies any flags the user set.
func runConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	f := cmd.Flags()
	if f.Changed("repo") {
		cfg.RepoPath, _ = f.GetString("repo")
	}
	if f.Changed("db") {
		cfg.DBPath, _ = f.GetString("db")
	}
	if f.Changed("workers") {
		cfg.Workers, _ = f.GetInt("workers")
	}
	if f.Changed("rename-threshold") {
		cfg.RenameThreshold, _ = f.GetInt("rename-threshold")
	}
	if f.Changed("diff-timeout") {
		cfg.DiffTimeoutSecs, _ = f.GetInt("diff-timeout")
	}
	if f.Changed("on-conflict") {
		cfg.OnConflict, _ = f.GetString("on-conflict")
	}
	if f.Changed("allow-shallow") {
		cfg.AllowShallow, _ = f.GetBool("allow-shallow")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openPipeline opens the store and reader a run needs.
func openPipeline(cfg *config.Config) (*store.Store, *gitlog.Reader, error) {
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, nil, fmt.Errorf("create data dir: %w", err)
	}
	st, err := store.New(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	reader, err := gitlog.Open(cfg.RepoPath)
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}
	return st, reader, nil
}

func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Run one ingestion pass from the last checkpoint to HEAD",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := runConfig(cmd)
			if err != nil {
				return err
			}

			st, reader, err := openPipeline(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx, stop := signalContext()
			defer stop()

			summary, err := ingest.New(cfg, reader, st).Run(ctx)
			if summary != nil {
				fmt.Print(report.FormatRunSummary(summary))
			}
			return err
		},
	}
	addRunFlags(cmd)
	return cmd
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show store counts, the checkpoint, and the skip log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := runConfig(cmd)
			if err != nil {
				return err
			}

			st, err := store.New(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			status := &report.Status{}
			if status.Commits, err = st.CommitCount(); err != nil {
				return err
			}
			if status.Files, err = st.FileCount(); err != nil {
				return err
			}
			if status.Checkpoint, err = st.GetState(ingest.StateLastHead); err != nil {
				return err
			}
			truncated, err := st.GetState(ingest.StateTruncated)
			if err != nil {
				return err
			}
			status.Truncated = truncated == "1"
			if status.Skipped, err = st.Skipped(); err != nil {
				return err
			}

			fmt.Print(report.FormatStatus(status))
			return nil
		},
	}
	cmd.Flags().String("db", "", "Path to the SQLite database (default from config)")
	return cmd
}

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Ingest, then re-ingest whenever the repository's refs move",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := runConfig(cmd)
			if err != nil {
				return err
			}

			st, reader, err := openPipeline(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx, stop := signalContext()
			defer stop()

			runner := ingest.New(cfg, reader, st)

			// Watch triggers and the initial pass share one runner; the
			// mutex keeps runs from overlapping when refs move mid-run.
			var mu sync.Mutex
			runOnce := func() {
				mu.Lock()
				defer mu.Unlock()
				summary, err := runner.Run(ctx)
				if summary != nil {
					fmt.Print(report.FormatRunSummary(summary))
				}
				if err != nil {
					log.Printf("ingest: %v", err)
				}
			}

			runOnce()
			return watcher.New(cfg.RepoPath, runOnce).Start(ctx)
		},
	}
	addRunFlags(cmd)
	return cmd
}

// signalContext returns a context cancelled on SIGINT or SIGTERM, so a run
// aborts cleanly at a commit boundary.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
