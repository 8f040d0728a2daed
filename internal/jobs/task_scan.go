package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"github.com/JustinTDCT/AnimeVault/internal/events"
)

func taskID(ctx context.Context, fallback string) string {
	if id, ok := asynq.GetTaskID(ctx); ok {
		return id
	}
	return fallback
}

func decode(t *asynq.Task, v interface{}) error {
	if len(t.Payload()) == 0 {
		return nil
	}
	if err := json.Unmarshal(t.Payload(), v); err != nil {
		return fmt.Errorf("unmarshal %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	return nil
}

// ──────── File Scan Handler ────────

type ScanHandler struct {
	scanner FileScanner
	root    string
	events  events.Publisher
}

func NewScanHandler(sc FileScanner, root string, pub events.Publisher) *ScanHandler {
	return &ScanHandler{scanner: sc, root: root, events: pub}
}

func (h *ScanHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p ScanPayload
	if err := decode(t, &p); err != nil {
		return err
	}
	root := p.Root
	if root == "" {
		root = h.root
	}

	rep := newReporter(h.events, TaskScanFiles, taskID(ctx, ScanFilesID(root)))
	rep.running()
	log.Info().Str("component", "jobs").Str("root", root).Msg("file scan started")

	result, err := h.scanner.Scan(ctx, root)
	if err != nil {
		rep.finish(err)
		return fmt.Errorf("scan %s: %w", root, err)
	}
	rep.state.Progress, rep.state.Total = result.FilesImported, result.FilesFound
	rep.finish(nil)
	log.Info().Str("component", "jobs").Int("found", result.FilesFound).Int("imported", result.FilesImported).
		Int("unmatched", len(result.Unmatched)).Msg("file scan complete")
	return nil
}

// ──────── Discovery Handler ────────

type DiscoveryHandler struct {
	discovery DiscoveryScanner
	events    events.Publisher
}

func NewDiscoveryHandler(d DiscoveryScanner, pub events.Publisher) *DiscoveryHandler {
	return &DiscoveryHandler{discovery: d, events: pub}
}

func (h *DiscoveryHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	rep := newReporter(h.events, TaskScanDiscovery, taskID(ctx, DiscoveryID))
	rep.running()

	started, err := h.discovery.Scan(ctx)
	rep.finish(err)
	if err != nil {
		return fmt.Errorf("discovery: %w", err)
	}
	if !started {
		log.Info().Str("component", "jobs").Msg("discovery already running, skipped")
	}
	return nil
}

// ──────── Stale Episode Handler ────────

type ClearStaleHandler struct {
	clearer StaleClearer
}

func NewClearStaleHandler(c StaleClearer) *ClearStaleHandler {
	return &ClearStaleHandler{clearer: c}
}

func (h *ClearStaleHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p ClearStalePayload
	if err := decode(t, &p); err != nil {
		return err
	}
	if p.AnimeID <= 0 || p.Path == "" {
		return fmt.Errorf("clear stale: anime id and path are required: %w", asynq.SkipRetry)
	}
	return h.clearer.ClearStale(ctx, p.AnimeID, p.Episode, p.Path)
}

// QueuedStaleClearer hands stale rows to the worker instead of clearing
// them on the request path.
type QueuedStaleClearer struct {
	queue Enqueuer
}

func NewQueuedStaleClearer(q Enqueuer) *QueuedStaleClearer {
	return &QueuedStaleClearer{queue: q}
}

func (c *QueuedStaleClearer) ClearStale(ctx context.Context, animeID int, episode float64, path string) error {
	_, err := c.queue.EnqueueUnique(TaskClearStale, ClearStalePayload{AnimeID: animeID, Episode: episode, Path: path},
		ClearStaleID(animeID, episode), asynq.Queue("low"), asynq.MaxRetry(3))
	return err
}
