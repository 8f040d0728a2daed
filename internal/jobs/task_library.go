package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"github.com/JustinTDCT/AnimeVault/internal/events"
)

// ──────── Metadata Refresh Handler ────────

type MetadataRefreshHandler struct {
	metadata EpisodeRefresher
	events   events.Publisher
}

func NewMetadataRefreshHandler(m EpisodeRefresher, pub events.Publisher) *MetadataRefreshHandler {
	return &MetadataRefreshHandler{metadata: m, events: pub}
}

func (h *MetadataRefreshHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p MetadataPayload
	if err := decode(t, &p); err != nil {
		return err
	}
	if p.AnimeID <= 0 {
		return fmt.Errorf("metadata refresh: anime id is required: %w", asynq.SkipRetry)
	}

	rep := newReporter(h.events, TaskMetadataRefresh, taskID(ctx, MetadataRefreshID(p.AnimeID)))
	rep.running()
	fetched, err := h.metadata.RefreshEpisodes(ctx, p.AnimeID, p.Force)
	rep.finish(err)
	if err != nil {
		return permanent(fmt.Errorf("refresh anime %d: %w", p.AnimeID, err))
	}
	if !fetched {
		log.Debug().Str("component", "jobs").Int("anime_id", p.AnimeID).Msg("metadata refresh throttled")
	}
	return nil
}

// ──────── Rename Handler ────────

type RenameHandler struct {
	renamer AnimeRenamer
	events  events.Publisher
}

func NewRenameHandler(r AnimeRenamer, pub events.Publisher) *RenameHandler {
	return &RenameHandler{renamer: r, events: pub}
}

func (h *RenameHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p RenamePayload
	if err := decode(t, &p); err != nil {
		return err
	}
	if p.AnimeID <= 0 {
		return fmt.Errorf("rename: anime id is required: %w", asynq.SkipRetry)
	}

	rep := newReporter(h.events, TaskRenameAnime, taskID(ctx, RenameID(p.AnimeID)))
	rep.running()
	result, err := h.renamer.Execute(ctx, p.AnimeID)
	if result != nil {
		rep.state.Progress, rep.state.Total = result.Renamed, result.Renamed+result.Failed
	}
	rep.finish(err)
	if err != nil {
		return fmt.Errorf("rename anime %d: %w: %w", p.AnimeID, err, asynq.SkipRetry)
	}
	return nil
}

// ──────── Recycle Bin Purge Handler ────────

type PurgeHandler struct {
	bin    Purger
	events events.Publisher
	now    func() time.Time
}

func NewPurgeHandler(bin Purger, pub events.Publisher) *PurgeHandler {
	return &PurgeHandler{bin: bin, events: pub, now: time.Now}
}

func (h *PurgeHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	rep := newReporter(h.events, TaskRecyclePurge, taskID(ctx, PurgeID))
	rep.running()
	n, err := h.bin.Purge(ctx, h.now())
	rep.state.Progress = n
	rep.finish(err)
	if err != nil {
		return fmt.Errorf("purge recycle bin: %w", err)
	}
	return nil
}
