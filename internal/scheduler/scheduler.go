// Package scheduler enqueues periodic library work on cron schedules.
package scheduler

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/JustinTDCT/AnimeVault/internal/jobs"
	"github.com/JustinTDCT/AnimeVault/internal/models"
)

const (
	DefaultScanSchedule     = "@every 6h"
	DefaultPurgeSchedule    = "@daily"
	DefaultMetadataSchedule = "@every 24h"
)

type MonitoredLister interface {
	ListMonitored(ctx context.Context) ([]*models.Anime, error)
}

// Schedules are cron specs; an empty spec disables that entry.
type Schedules struct {
	FileScan string
	Purge    string
	Metadata string
}

// Scheduler enqueues file scans, recycle-bin purges and metadata refreshes.
type Scheduler struct {
	cron    *cron.Cron
	queue   jobs.Enqueuer
	catalog MonitoredLister
	root    string
}

// New validates every schedule and registers its entry.
func New(queue jobs.Enqueuer, catalog MonitoredLister, libraryRoot string, s Schedules) (*Scheduler, error) {
	sc := &Scheduler{cron: cron.New(), queue: queue, catalog: catalog, root: libraryRoot}

	entries := []struct {
		name string
		spec string
		fn   func()
	}{
		{"file scan", s.FileScan, sc.EnqueueScan},
		{"recycle purge", s.Purge, sc.EnqueuePurge},
		{"metadata refresh", s.Metadata, sc.EnqueueMetadataRefresh},
	}
	for _, e := range entries {
		if e.spec == "" || (e.name == "metadata refresh" && catalog == nil) {
			continue
		}
		if _, err := sc.cron.AddFunc(e.spec, e.fn); err != nil {
			return nil, fmt.Errorf("%s schedule %q: %w", e.name, e.spec, err)
		}
		log.Debug().Str("component", "scheduler").Str("entry", e.name).Str("spec", e.spec).Msg("scheduled")
	}
	return sc, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	log.Info().Str("component", "scheduler").Int("entries", len(s.cron.Entries())).Msg("scheduler started")
}

// Stop waits for running entries to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Info().Str("component", "scheduler").Msg("scheduler stopped")
}

func (s *Scheduler) EnqueueScan() {
	if _, err := s.queue.EnqueueUnique(jobs.TaskScanFiles, jobs.ScanPayload{Root: s.root}, jobs.ScanFilesID(s.root)); err != nil {
		log.Error().Str("component", "scheduler").Err(err).Msg("enqueue file scan")
	}
}

func (s *Scheduler) EnqueuePurge() {
	if _, err := s.queue.EnqueueUnique(jobs.TaskRecyclePurge, jobs.PurgePayload{}, jobs.PurgeID, asynq.Queue("low")); err != nil {
		log.Error().Str("component", "scheduler").Err(err).Msg("enqueue recycle purge")
	}
}

// EnqueueMetadataRefresh queues a non-forced refresh for every monitored
// anime; the per-anime fetch throttle still applies in the worker.
func (s *Scheduler) EnqueueMetadataRefresh() {
	list, err := s.catalog.ListMonitored(context.Background())
	if err != nil {
		log.Error().Str("component", "scheduler").Err(err).Msg("list monitored anime")
		return
	}
	for _, a := range list {
		if _, err := s.queue.EnqueueUnique(jobs.TaskMetadataRefresh, jobs.MetadataPayload{AnimeID: a.ID},
			jobs.MetadataRefreshID(a.ID), asynq.Queue("low")); err != nil {
			log.Error().Str("component", "scheduler").Int("anime_id", a.ID).Err(err).Msg("enqueue metadata refresh")
		}
	}
}
