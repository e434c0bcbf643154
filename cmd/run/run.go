// Package run implements the command that drives the lead-generation loop.
package run

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/goleads/cmd/common"
	"github.com/jonesrussell/goleads/internal/api"
	"github.com/jonesrussell/goleads/internal/fetcher"
	"github.com/jonesrussell/goleads/internal/logger"
	"github.com/jonesrussell/goleads/internal/notify"
	"github.com/jonesrussell/goleads/internal/pipeline"
	"github.com/jonesrussell/goleads/internal/relevance"
	"github.com/jonesrussell/goleads/internal/runloop"
	"github.com/jonesrussell/goleads/internal/scheduler"
	"github.com/jonesrussell/goleads/internal/store"
)

const shutdownTimeout = 10 * time.Second

// Command returns the run command.
func Command() *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the recurring lead-generation pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Root().PersistentFlags().GetBool("debug")
			return execute(cmd.Context(), debug, once)
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single cycle and exit")

	return cmd
}

// sessionFactory adapts the fetch client to the run loop's port.
type sessionFactory struct {
	client *fetcher.Client
}

func (f sessionFactory) Acquire(ctx context.Context) (runloop.FetchSession, error) {
	return f.client.Acquire(ctx)
}

// execute wires the components and runs the loop.
func execute(parent context.Context, debug, once bool) error {
	deps, err := common.NewDeps(debug)
	if err != nil {
		return err
	}
	defer deps.Logger.Sync() //nolint:errcheck // stderr sync failure is uninteresting

	cfg := deps.Config
	log := deps.Logger

	srcs, err := deps.LoadSources()
	if err != nil {
		return err
	}

	db, err := deps.OpenStore()
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer db.Close()

	leadRepo := store.NewLeadRepository(db)
	processedRepo := store.NewProcessedURLRepository(db)

	sched, err := scheduler.New(scheduler.Config{
		MaxConcurrency: cfg.Crawler.MaxConcurrency,
		BatchDelayMin:  cfg.Crawler.BatchDelayMin,
		BatchDelayMax:  cfg.Crawler.BatchDelayMax,
	}, log)
	if err != nil {
		return err
	}

	notifier := notify.NewTelegram(notify.Config{
		BotToken: cfg.Telegram.BotToken,
		ChatID:   cfg.Telegram.ChatID,
	}, log)

	pipe := pipeline.New(
		pipeline.Config{
			NotifyDelayMin: cfg.Crawler.NotifyDelayMin,
			NotifyDelayMax: cfg.Crawler.NotifyDelayMax,
		},
		processedRepo,
		leadRepo,
		relevance.New(cfg.Filter.Include, cfg.Filter.Exclude),
		notifier,
		log,
	)

	client := fetcher.NewClient(fetcher.Config{Timeout: cfg.Crawler.FetchTimeout}, log)

	loop, err := runloop.New(
		runloop.Config{
			Interval: cfg.Crawler.Interval(),
			Schedule: cfg.Crawler.Schedule,
			Cooldown: cfg.Crawler.BackoffCooldown,
		},
		srcs,
		sessionFactory{client: client},
		sched,
		pipe,
		log,
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.API.Enabled {
		server := api.NewServer(api.Config{Address: cfg.API.Address}, loop, leadRepo, log)
		go func() {
			if serveErr := server.Start(); serveErr != nil {
				log.Error("status server failed", logger.Error(serveErr))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
				log.Error("status server shutdown failed", logger.Error(shutdownErr))
			}
		}()
	}

	if once {
		return loop.RunOnce(ctx)
	}

	if runErr := loop.Run(ctx); runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}

	log.Info("run loop stopped")

	return nil
}
