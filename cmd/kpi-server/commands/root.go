package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/imagiroweb/jira-kpi-dashboard/internal/cache"
	"github.com/imagiroweb/jira-kpi-dashboard/internal/config"
	"github.com/imagiroweb/jira-kpi-dashboard/internal/httpapi"
	"github.com/imagiroweb/jira-kpi-dashboard/internal/jira"
	"github.com/imagiroweb/jira-kpi-dashboard/internal/jobs"
	"github.com/imagiroweb/jira-kpi-dashboard/internal/logging"
	"github.com/imagiroweb/jira-kpi-dashboard/internal/resolved"
	"github.com/imagiroweb/jira-kpi-dashboard/internal/service"
	"github.com/imagiroweb/jira-kpi-dashboard/internal/snapshot"
)

var (
	// Version, Commit, and BuildDate are set at build time via ldflags.
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"

	verbose bool
	logDir  string

	cfg *config.AppConfig
)

var rootCmd = &cobra.Command{
	Use:   "kpi-server",
	Short: "kpi-server aggregates ticket, sprint and worklog data into dashboard KPIs",
	Long: `A KPI aggregation server for issue-tracking data: it computes worklog and
sprint metrics, hierarchical progress roll-ups and resolved-by-day charts,
with a time-bounded cache in front of the rate-limited source.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(verbose, logDir)

		var err error
		cfg, err = config.Load()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load configuration")
		}

		log.Info().
			Str("version", Version).
			Str("commit", Commit).
			Str("buildDate", BuildDate).
			Msg("kpi-server starting")
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := cache.New(cfg.CacheSweepInterval)
	defer store.Close()

	client := jira.NewCachedClient(jira.NewClient(cfg.Jira), store, cfg.TTL)
	dispatcher := resolved.New(client, cfg.Boards, cfg.Resolved, cfg.Jira.Fields.Team, 3, log.Logger)
	svc := service.New(client, dispatcher, cfg.Jira.Fields, cfg.NonBillableTypes, log.Logger)

	var snapshots *snapshot.Store
	if cfg.DatabaseDSN != "" {
		var err error
		snapshots, err = snapshot.Open(ctx, cfg.DatabaseDSN, log.Logger)
		if err != nil {
			return err
		}
		defer snapshots.Close()
	} else {
		log.Warn().Msg("no DATABASE_DSN configured, snapshot endpoints disabled")
	}

	resync, err := jobs.NewResync(cfg.ResyncCron, client, log.Logger)
	if err != nil {
		return err
	}
	resync.Start()
	defer resync.Stop()

	handlers := httpapi.NewHandlers(log.Logger, svc, client, snapshots)
	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: httpapi.NewRouter(handlers),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("http server listening")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "logs", "directory for the rotating log file")
}
