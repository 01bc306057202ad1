package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "vidradar",
		Short:         "Rank trending videos by regional relevance and momentum",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	root.AddCommand(rankCmd())
	root.AddCommand(collectCmd())
	root.AddCommand(historyCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(runCmd())

	return root
}

func rankCmd() *cobra.Command {
	var opts rankOptions

	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Rank videos from a batch file or live collectors",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRank(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.query, "query", "q", "", "search query")
	cmd.Flags().StringVarP(&opts.region, "region", "r", "", "target region (default: from config)")
	cmd.Flags().IntVar(&opts.top, "top", 0, "number of results (default: from config)")
	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "JSON file with batches (default: collect live)")
	cmd.Flags().DurationVar(&opts.minDuration, "min-duration", 0, "drop videos shorter than this (e.g. 60s)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "output as JSON")
	cmd.Flags().BoolVar(&opts.noSave, "no-save", false, "do not store the run")
	return cmd
}

func collectCmd() *cobra.Command {
	var (
		query, region, out string
		sources            []string
	)

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Run collectors and write the batches as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollect(cmd.Context(), query, region, sources, out)
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "search query")
	cmd.Flags().StringVarP(&region, "region", "r", "", "target region (default: from config)")
	cmd.Flags().StringSliceVar(&sources, "source", nil, "specific collectors (youtube, trending_page, channel_feeds)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: stdout)")
	return cmd
}

func historyCmd() *cobra.Command {
	var (
		jsonOutput    bool
		limit         int
		region, query string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List stored ranking runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd.Context(), query, region, limit, jsonOutput)
		},
	}
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().IntVar(&limit, "limit", 20, "max runs to show")
	cmd.Flags().StringVarP(&region, "region", "r", "", "only runs for this region")
	cmd.Flags().StringVarP(&query, "query", "q", "", "only runs for this query")

	cmd.AddCommand(&cobra.Command{
		Use:   "show ID",
		Short: "Show the results of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd.Context(), args[0], jsonOutput)
		},
	})
	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func runCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start daemon with scheduler and HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context(), port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}
