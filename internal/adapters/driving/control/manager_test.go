package control

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/shelter-agent/internal/core/domain"
)

// echoServer upgrades inbound connections, pushes the given frames to the
// client, records anything the client writes, and then closes.
type echoServer struct {
	t        *testing.T
	frames   []string
	received chan []byte
	connID   atomic.Value
}

func newEchoServer(t *testing.T, frames ...string) (*echoServer, *httptest.Server) {
	t.Helper()
	es := &echoServer{t: t, frames: frames, received: make(chan []byte, 16)}

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		es.connID.Store(r.URL.Query().Get("connectionId"))

		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		// Drain the announcement before pushing commands.
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		es.received <- msg

		for _, frame := range frames {
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
		}

		// Collect any further client writes until the deadline.
		_ = conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			es.received <- msg
		}
	}))

	return es, srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestConnectURL(t *testing.T) {
	assert.Equal(t, "wss://backup.example.com/ws?connectionId=agent-1",
		connectURL("backup.example.com", "agent-1"))
	assert.Equal(t, "ws://127.0.0.1:9999/ws?connectionId=agent-1",
		connectURL("ws://127.0.0.1:9999", "agent-1"))
}

func TestManager_ConnectAnnounceAndDispatch(t *testing.T) {
	frames := []string{
		`{"command":"Delete_Backup","parameters":{"backupId":"b-1"}}`,
		`not json at all`,
		`{"command":"Delete_Backup","parameters":{"backupId":"b-2"}}`,
	}
	es, srv := newEchoServer(t, frames...)
	defer srv.Close()

	mgr := NewManager(Config{
		Host:       wsURL(srv),
		AgentID:    "agent-1",
		RetryDelay: 10 * time.Millisecond,
	})

	var announced atomic.Bool
	var got []domain.Command

	onConnected := func(ctx context.Context) error {
		announced.Store(true)
		return mgr.Send(ctx, domain.Response{Command: "Agent_Info", AgentID: "agent-1"})
	}
	onCommand := func(_ context.Context, cmd domain.Command) {
		got = append(got, cmd)
	}

	ok := mgr.ConnectWithRetry(context.Background(), onConnected, onCommand)

	assert.True(t, ok, "a served-then-closed connection should be retriable")
	assert.True(t, announced.Load())
	assert.True(t, mgr.Enabled())
	assert.False(t, mgr.Active(), "inactive once the server closes")
	assert.Equal(t, "agent-1", es.connID.Load())

	// The malformed frame is dropped; both valid commands come through in
	// order.
	require.Len(t, got, 2)
	assert.Equal(t, domain.CmdDeleteBackup, got[0].Command)
	var params domain.DeleteBackupParams
	require.NoError(t, json.Unmarshal(got[1].Parameters, &params))
	assert.Equal(t, "b-2", params.BackupID)

	// The announcement reached the server.
	select {
	case msg := <-es.received:
		assert.Contains(t, string(msg), "Agent_Info")
	default:
		t.Fatal("announcement never reached the server")
	}
}

func TestManager_RetryExhaustionDisablesChannel(t *testing.T) {
	mgr := NewManager(Config{
		Host:       "ws://127.0.0.1:1", // nothing listens here
		AgentID:    "agent-1",
		MaxRetries: 3,
		RetryDelay: 5 * time.Millisecond,
	})

	ok := mgr.ConnectWithRetry(context.Background(), nil, nil)

	assert.False(t, ok)
	assert.False(t, mgr.Enabled(), "exhaustion permanently disables the channel")
	assert.False(t, mgr.Active())

	err := mgr.Send(context.Background(), domain.Response{Command: "Agent_Info"})
	assert.ErrorIs(t, err, domain.ErrChannelInactive)
}

func TestManager_AttemptCounterResetsOnSuccess(t *testing.T) {
	_, srv := newEchoServer(t)
	defer srv.Close()

	mgr := NewManager(Config{
		Host:       wsURL(srv),
		AgentID:    "agent-1",
		MaxRetries: 2,
		RetryDelay: 5 * time.Millisecond,
	})

	announce := func(ctx context.Context) error {
		return mgr.Send(ctx, domain.Response{Command: "Agent_Info"})
	}

	// Each round connects, so the attempt counter resets and the budget
	// never runs out even across more rounds than MaxRetries.
	for i := 0; i < 4; i++ {
		ok := mgr.ConnectWithRetry(context.Background(), announce, nil)
		require.True(t, ok, "round %d", i)
		require.True(t, mgr.Enabled())
	}
}

func TestManager_ConnectHonoursContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mgr := NewManager(Config{
		Host:       "ws://127.0.0.1:1",
		AgentID:    "agent-1",
		MaxRetries: 5,
		RetryDelay: time.Hour, // would hang without cancellation
	})

	done := make(chan bool, 1)
	go func() { done <- mgr.ConnectWithRetry(ctx, nil, nil) }()

	select {
	case ok := <-done:
		assert.True(t, ok, "cancellation is not a retry failure")
	case <-time.After(2 * time.Second):
		t.Fatal("ConnectWithRetry did not honour context cancellation")
	}
}
