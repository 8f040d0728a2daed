package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JustinTDCT/AnimeVault/internal/apperr"
	"github.com/JustinTDCT/AnimeVault/internal/events"
	"github.com/JustinTDCT/AnimeVault/internal/models"
	"github.com/hibiken/asynq"
)

const (
	TaskScanFiles       = "scan:files"
	TaskScanDiscovery   = "scan:discovery"
	TaskClearStale      = "episodes:clear-stale"
	TaskMetadataRefresh = "metadata:refresh"
	TaskRenameAnime     = "rename:anime"
	TaskRecyclePurge    = "recyclebin:purge"
)

// ──────── Payloads ────────

type ScanPayload struct {
	Root string `json:"root,omitempty"`
}

type DiscoveryPayload struct{}

type ClearStalePayload struct {
	AnimeID int     `json:"anime_id"`
	Episode float64 `json:"episode"`
	Path    string  `json:"path"`
}

type MetadataPayload struct {
	AnimeID int  `json:"anime_id"`
	Force   bool `json:"force,omitempty"`
}

type RenamePayload struct {
	AnimeID int `json:"anime_id"`
}

type PurgePayload struct{}

// ──────── Unique task ids ────────

func ScanFilesID(root string) string { return "scan:files:" + root }

const DiscoveryID = "scan:discovery"

func ClearStaleID(animeID int, episode float64) string {
	return fmt.Sprintf("clear-stale:%d:%g", animeID, episode)
}

func MetadataRefreshID(animeID int) string { return fmt.Sprintf("metadata:refresh:%d", animeID) }

func RenameID(animeID int) string { return fmt.Sprintf("rename:%d", animeID) }

const PurgeID = "recyclebin:purge"

// ──────── Capabilities ────────

type FileScanner interface {
	Scan(ctx context.Context, root string) (*models.ScanResult, error)
}

type DiscoveryScanner interface {
	Scan(ctx context.Context) (bool, error)
}

type StaleClearer interface {
	ClearStale(ctx context.Context, animeID int, episode float64, path string) error
}

type EpisodeRefresher interface {
	RefreshEpisodes(ctx context.Context, animeID int, force bool) (bool, error)
}

type AnimeRenamer interface {
	Execute(ctx context.Context, animeID int) (*models.RenameResult, error)
}

type Purger interface {
	Purge(ctx context.Context, now time.Time) (int, error)
}

// Enqueuer is the part of Queue used by code that schedules work.
type Enqueuer interface {
	EnqueueUnique(taskType string, payload interface{}, uniqueID string, opts ...asynq.Option) (string, error)
}

var _ Enqueuer = (*Queue)(nil)

// Services are the components task handlers drive. Nil members leave their
// task type unregistered.
type Services struct {
	LibraryRoot string
	Files       FileScanner
	Discovery   DiscoveryScanner
	Stale       StaleClearer
	Metadata    EpisodeRefresher
	Renamer     AnimeRenamer
	Bin         Purger
	Events      events.Publisher
}

// ──────── Register all handlers ────────

func RegisterHandlers(q *Queue, s Services) {
	if s.Files != nil {
		q.RegisterHandler(TaskScanFiles, NewScanHandler(s.Files, s.LibraryRoot, s.Events))
	}
	if s.Discovery != nil {
		q.RegisterHandler(TaskScanDiscovery, NewDiscoveryHandler(s.Discovery, s.Events))
	}
	if s.Stale != nil {
		q.RegisterHandler(TaskClearStale, NewClearStaleHandler(s.Stale))
	}
	if s.Metadata != nil {
		q.RegisterHandler(TaskMetadataRefresh, NewMetadataRefreshHandler(s.Metadata, s.Events))
	}
	if s.Renamer != nil {
		q.RegisterHandler(TaskRenameAnime, NewRenameHandler(s.Renamer, s.Events))
	}
	if s.Bin != nil {
		q.RegisterHandler(TaskRecyclePurge, NewPurgeHandler(s.Bin, s.Events))
	}
}

// permanent marks errors that retrying cannot fix.
func permanent(err error) error {
	if errors.Is(err, apperr.ErrValidation) || errors.Is(err, apperr.ErrNotFound) || errors.Is(err, apperr.ErrCritical) {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	return err
}

// reporter publishes task:update events for one task run.
type reporter struct {
	events events.Publisher
	state  events.TaskState
}

func newReporter(pub events.Publisher, taskType, taskID string) *reporter {
	if pub == nil {
		pub = events.Discard{}
	}
	return &reporter{events: pub, state: events.TaskState{TaskID: taskID, Type: taskType}}
}

func (r *reporter) running() {
	r.state.Status = events.TaskRunning
	r.events.Publish(events.TaskUpdate, r.state)
}

func (r *reporter) finish(err error) {
	if err != nil {
		r.state.Status = events.TaskFailed
		r.state.Error = err.Error()
	} else {
		r.state.Status = events.TaskComplete
	}
	r.events.Publish(events.TaskUpdate, r.state)
}
