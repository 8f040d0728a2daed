// Package events carries progress notifications from background work to
// subscribers. Delivery is best effort: slow subscribers drop messages.
package events

const (
	ScanStart         = "scan:start"
	ScanProgress      = "scan:progress"
	ScanComplete      = "scan:complete"
	DiscoveryFolder   = "discovery:folder"
	DiscoveryComplete = "discovery:complete"
	EpisodeStale      = "episode:stale"
	RenameComplete    = "rename:complete"
	TaskUpdate        = "task:update"
)

type Publisher interface {
	Publish(event string, data interface{})
}

type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Fanout publishes to every wrapped publisher in order.
type Fanout []Publisher

func (f Fanout) Publish(event string, data interface{}) {
	for _, p := range f {
		if p != nil {
			p.Publish(event, data)
		}
	}
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(string, interface{}) {}

// TaskState is the payload of task:update events.
type TaskState struct {
	TaskID   string `json:"task_id"`
	Type     string `json:"type"`
	Status   string `json:"status"`
	Progress int    `json:"progress,omitempty"`
	Total    int    `json:"total,omitempty"`
	Error    string `json:"error,omitempty"`
}

const (
	TaskRunning  = "running"
	TaskComplete = "complete"
	TaskFailed   = "failed"
)
