package driven

import (
	"context"

	"github.com/custodia-labs/shelter-agent/internal/core/domain"
)

// ControlChannel is the outbound half of the coordinator connection.
// Core services use it to send responses; the inbound half (the
// connect-retry-listen loop) lives in the driving control adapter.
type ControlChannel interface {
	// Send serialises a response and writes it to the open channel.
	// Failures are returned, never retried here: the scheduler's
	// poll-until-active loop is the one send-retry path in the system.
	Send(ctx context.Context, resp domain.Response) error

	// Active reports whether a connection is currently open.
	Active() bool

	// Enabled reports whether the channel may still (re)connect.
	// Once the retry budget is exhausted this is permanently false.
	Enabled() bool
}

// ConnectedHandler runs after each successful connect, before listening
// starts. The agent uses it to announce identity and capabilities.
type ConnectedHandler func(ctx context.Context) error

// CommandHandler receives one decoded inbound frame. Handlers run on the
// channel's listen goroutine, so commands are processed strictly in
// arrival order.
type CommandHandler func(ctx context.Context, cmd domain.Command)

// ChannelDriver is the full coordinator connection: the outbound half
// plus the connect-retry-listen loop that feeds inbound commands to the
// agent.
type ChannelDriver interface {
	ControlChannel

	// ConnectWithRetry attempts to connect, announces via onConnected
	// and listens for commands until the connection drops. Returns true
	// when the caller may reconnect, false once the retry budget is
	// exhausted and the channel is permanently disabled.
	ConnectWithRetry(ctx context.Context, onConnected ConnectedHandler, onCommand CommandHandler) bool
}
