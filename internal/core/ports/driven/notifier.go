package driven

// Notifier delivers operator-facing error notifications. The one caller
// is the fatal path: connect retries exhausted, agent about to terminate.
type Notifier interface {
	// NotifyError sends a best-effort error notification for the agent.
	NotifyError(agentID, message string) error
}
