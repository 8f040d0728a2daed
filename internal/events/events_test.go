package events

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
)

func decode(t *testing.T, raw []byte) Message {
	t.Helper()
	var m Message
	require.NoError(t, json.Unmarshal(raw, &m))
	return m
}

func TestHubPublishDropsForSlowSubscribers(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	h := NewHub()
	c := h.subscribe()
	require.Equal(1, h.ClientCount())

	for i := 0; i < clientBuffer+10; i++ {
		h.Publish(ScanProgress, map[string]int{"n": i})
	}
	require.Len(c.send, clientBuffer)
	require.Equal(ScanProgress, decode(t, <-c.send).Event)

	h.unsubscribe(c)
	h.unsubscribe(c)
	require.Equal(0, h.ClientCount())
}

func TestHubReplaysRunningTasks(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	h := NewHub()
	h.Publish(TaskUpdate, TaskState{TaskID: "a", Type: "scan:files", Status: TaskRunning})
	h.Publish(TaskUpdate, TaskState{TaskID: "b", Type: "rename:anime", Status: TaskRunning})
	h.Publish(TaskUpdate, json.RawMessage(`{"task_id":"b","status":"complete"}`))

	c := h.subscribe()
	require.Len(c.send, 1)
	msg := decode(t, <-c.send)
	require.Equal(TaskUpdate, msg.Event)
	require.Equal("a", msg.Data.(map[string]interface{})["task_id"])
}

func TestServeWSDeliversEvents(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	h := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+srv.URL[len("http"):], nil)
	require.NoError(err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(func() bool { return h.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	h.Publish(ScanComplete, map[string]int{"files_found": 3})

	_, raw, err := conn.Read(ctx)
	require.NoError(err)
	msg := decode(t, raw)
	require.Equal(ScanComplete, msg.Event)
}

func TestFanout(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	a, b := NewHub(), NewHub()
	ca, cb := a.subscribe(), b.subscribe()
	Fanout{a, nil, Discard{}, b}.Publish(EpisodeStale, nil)
	require.Len(ca.send, 1)
	require.Len(cb.send, 1)
}
