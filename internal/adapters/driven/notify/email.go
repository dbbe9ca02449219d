// Package notify sends operator email when the agent hits a fatal
// condition, mirroring the control channel's exhaustion path.
package notify

import (
	"fmt"
	"os"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/custodia-labs/shelter-agent/internal/core/ports/driven"
)

// EmailNotifier implements driven.Notifier over SMTP with STARTTLS.
type EmailNotifier struct {
	host     string
	port     int
	sender   string
	receiver string
	password string
}

var _ driven.Notifier = (*EmailNotifier)(nil)

// NewEmailNotifier creates a notifier. Returns nil if no SMTP host is
// configured; callers treat a nil notifier as "notifications disabled".
func NewEmailNotifier(host string, port int, sender, receiver, password string) *EmailNotifier {
	if host == "" {
		return nil
	}
	return &EmailNotifier{
		host:     host,
		port:     port,
		sender:   sender,
		receiver: receiver,
		password: password,
	}
}

// NotifyError sends an error report for the agent.
func (n *EmailNotifier) NotifyError(agentID, message string) error {
	hostname, _ := os.Hostname()

	msg := mail.NewMsg()
	if err := msg.From(n.sender); err != nil {
		return fmt.Errorf("setting sender: %w", err)
	}
	if err := msg.To(n.receiver); err != nil {
		return fmt.Errorf("setting receiver: %w", err)
	}
	msg.Subject(fmt.Sprintf("Agent Connection Error - %s", hostname))
	msg.SetBodyString(mail.TypeTextPlain, fmt.Sprintf(
		"Agent Connection Error Report\n\n"+
			"Time: %s\nAgent ID: %s\nHost: %s\nError: %s\n\n"+
			"The agent process will be terminated.\n",
		time.Now().UTC().Format(time.RFC3339), agentID, hostname, message))

	client, err := mail.NewClient(n.host,
		mail.WithPort(n.port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(n.sender),
		mail.WithPassword(n.password),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	)
	if err != nil {
		return fmt.Errorf("creating mail client: %w", err)
	}

	if err := client.DialAndSend(msg); err != nil {
		return fmt.Errorf("sending error mail: %w", err)
	}
	return nil
}
