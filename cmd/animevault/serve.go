package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/JustinTDCT/AnimeVault/internal/api"
	"github.com/JustinTDCT/AnimeVault/internal/events"
	"github.com/JustinTDCT/AnimeVault/internal/jobs"
	"github.com/JustinTDCT/AnimeVault/internal/metrics"
	"github.com/JustinTDCT/AnimeVault/internal/scheduler"
	"github.com/JustinTDCT/AnimeVault/internal/version"
	"github.com/JustinTDCT/AnimeVault/internal/watcher"
)

func newServeCommand(c *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server, job worker, scheduler and library watcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return c.serve(ctx)
		},
	}
}

func (c *commandContext) serve(ctx context.Context) error {
	cfg, err := c.setup(ctx, stdoutIsTerminal())
	if err != nil {
		return err
	}
	log.Info().Str("version", version.String()).Str("library", cfg.LibraryRoot).Str("database", c.db.Driver).Msg("AnimeVault starting")

	hub := events.NewHub()
	var pub events.Publisher = hub
	if cfg.EventsRelay {
		sink := events.NewRedisSink(cfg.RedisAddr, events.DefaultChannel)
		c.onClose(sink)
		pub = sink
		go func() {
			if err := sink.Relay(ctx, hub); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Str("component", "events").Err(err).Msg("event relay stopped")
			}
		}()
	}

	svc := c.services(cfg, pub)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	m.TrackSubscribers(hub.ClientCount)
	svc.files.SetObserver(m)
	svc.renamer.SetObserver(m)
	svc.decider.SetObserver(m)

	queue := jobs.NewQueue(cfg.RedisAddr)
	svc.reader.SetClearer(jobs.NewQueuedStaleClearer(queue))
	jobs.RegisterHandlers(queue, jobs.Services{
		LibraryRoot: cfg.LibraryRoot,
		Files:       svc.files,
		Discovery:   svc.discovery,
		Stale:       svc.reader,
		Metadata:    svc.metadata,
		Renamer:     svc.renamer,
		Bin:         svc.bin,
		Events:      pub,
	})
	if err := queue.Start(ctx); err != nil {
		return err
	}
	defer queue.Stop()

	sched, err := scheduler.New(queue, svc.anime, cfg.LibraryRoot, scheduler.Schedules{
		FileScan: cfg.ScanSchedule,
		Purge:    cfg.PurgeSchedule,
		Metadata: cfg.MetadataSchedule,
	})
	if err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	if cfg.WatchLibrary {
		w, err := watcher.New(cfg.LibraryRoot, cfg.WatchDebounce, func(root string) {
			if _, err := queue.EnqueueUnique(jobs.TaskScanFiles, jobs.ScanPayload{Root: root}, jobs.ScanFilesID(root)); err != nil {
				log.Error().Str("component", "watcher").Err(err).Msg("enqueue file scan")
			}
		})
		if err != nil {
			return err
		}
		if err := w.Start(); err != nil {
			log.Warn().Str("component", "watcher").Str("root", cfg.LibraryRoot).Err(err).Msg("library watcher disabled")
		} else {
			defer w.Stop()
		}
	}

	srv := api.NewServer(api.Deps{
		LibraryRoot: cfg.LibraryRoot,
		Anime:       svc.anime,
		Episodes:    svc.reader,
		Importer:    svc.importer,
		Decider:     svc.decider,
		Renamer:     svc.renamer,
		Metadata:    svc.metadata,
		Search:      svc.search,
		Bin:         svc.bin,
		Profiles:    svc.profiles,
		Settings:    svc.settings,
		Discovery:   svc.discovery.State(),
		Queue:       queue,
		Events:      hub.ServeWS,
		Metrics:     metrics.Handler(reg),
	})

	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      srv,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
