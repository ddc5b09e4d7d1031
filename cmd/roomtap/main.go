// roomtap extracts reservation platform data incrementally and emits it as
// JSON-line messages on stdout.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/datataps/roomtap/pkg/catalog"
	"github.com/datataps/roomtap/pkg/client"
	"github.com/datataps/roomtap/pkg/config"
	"github.com/datataps/roomtap/pkg/emit"
	"github.com/datataps/roomtap/pkg/logger"
	"github.com/datataps/roomtap/pkg/state"
	syncer "github.com/datataps/roomtap/pkg/sync"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	configPath string
	statePath  string
	streamsCSV string
	startDate  string
	endDate    string
	logLevel   string
)

func main() {
	// .env is optional; real deployments use the environment directly
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "roomtap",
		Short: "Incremental extractor for the SevenRooms API",
		Long: `roomtap extracts venues, reservations and clients from the SevenRooms
external API one day at a time, checkpointing each completed day so an
interrupted run resumes without re-fetching or losing data. Records are
emitted as JSON-line messages on stdout; logs go to stderr.`,
		SilenceUsage: true,
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run an extraction",
		RunE:  runSync,
	}
	runCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file (required)")
	runCmd.Flags().StringVarP(&statePath, "state", "s", "state.json", "path to checkpoint state file")
	runCmd.Flags().StringVar(&streamsCSV, "streams", "", "comma-separated stream selection (default all)")
	runCmd.Flags().StringVar(&startDate, "start-date", "", "override start_date (YYYY-MM-DD)")
	runCmd.Flags().StringVar(&endDate, "end-date", "", "override end_date (YYYY-MM-DD)")
	runCmd.Flags().StringVar(&logLevel, "log-level", "", "override log level")
	_ = runCmd.MarkFlagRequired("config")

	streamsCmd := &cobra.Command{
		Use:   "streams",
		Short: "List available streams",
		Run:   listStreams,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("roomtap %s (built %s)\n", version, buildTime)
		},
	}

	rootCmd.AddCommand(runCmd, streamsCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if startDate != "" {
		cfg.StartDate = startDate
	}
	if endDate != "" {
		cfg.EndDate = endDate
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := logger.Init(logger.Config{Level: cfg.LogLevel}); err != nil {
		return err
	}
	log := logger.Get()
	defer func() { _ = logger.Sync() }()

	log.Info("starting roomtap",
		zap.String("version", version),
		zap.String("start_date", cfg.StartDate),
		zap.String("end_date", cfg.End().Format(config.DateFormat)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cat := catalog.Default()
	if err := cat.Validate(); err != nil {
		return err
	}

	store, err := state.Load(statePath, log)
	if err != nil {
		return err
	}

	session, err := client.Open(ctx, cfg.BaseURL, client.Credentials{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
	}, log)
	if err != nil {
		return err
	}
	defer session.Close()

	limiter := client.NewRateLimiter(cfg.RateLimit.Calls, cfg.RateLimit.Window.Std())
	retry := client.NewRetryPolicy(cfg.Retry)
	executor := client.NewExecutor(session, limiter, retry, log)
	fetcher := client.NewFetcher(executor, cfg.PageLimit, log)

	emitter := emit.NewWriterEmitter(os.Stdout)
	defer func() { _ = emitter.Flush() }()

	var selected []string
	if streamsCSV != "" {
		selected = strings.Split(streamsCSV, ",")
	}

	started := time.Now()
	driver := syncer.NewDriver(cfg, cat, fetcher, store, emitter, log)
	if err := driver.Run(ctx, selected); err != nil {
		log.Error("sync failed", zap.Error(err))
		return err
	}

	log.Info("sync complete", zap.Duration("elapsed", time.Since(started)))
	return nil
}

func listStreams(cmd *cobra.Command, args []string) {
	flat := catalog.Default().Flatten()

	names := make([]string, 0, len(flat))
	for name := range flat {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		entry := flat[name]
		line := fmt.Sprintf("%-16s %-12s key=%s", name, entry.ReplicationMethod, entry.KeyProperty())
		if entry.Parent != "" {
			line += "  parent=" + entry.Parent
		}
		fmt.Println(line)
	}
}
