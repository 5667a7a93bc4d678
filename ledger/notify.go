/*
notify.go - Notification dispatcher contract

PURPOSE:
  The ledger emits notification intents on debtor/transaction lifecycle
  events and debt-limit breaches. Delivery is an external collaborator's job;
  from the ledger's perspective dispatch is fire-and-forget. Failures are
  logged and suppressed, never rolled back into a committed mutation.

SEE ALSO:
  - service.go: Emission points
*/
package ledger

import (
	"context"
	"log"
)

type NotificationKind string

const (
	NotifyDebtorCreated      NotificationKind = "debtor_created"
	NotifyDebtorDeleted      NotificationKind = "debtor_deleted"
	NotifyTransactionAdded   NotificationKind = "transaction_added"
	NotifyTransactionEdited  NotificationKind = "transaction_edited"
	NotifyTransactionDeleted NotificationKind = "transaction_deleted"
	NotifyLimitWarning       NotificationKind = "debt_limit_warning"  // utilization crossed 80%
	NotifyLimitExceeded      NotificationKind = "debt_limit_exceeded" // utilization crossed 100%
)

type Notification struct {
	Kind          NotificationKind
	Title         string
	Body          string
	RecipientRole string
	SenderRole    string
	RecipientID   string
	SenderID      string
	MarketID      string
}

// Notifier delivers ledger-originated notifications.
// Implementations are best-effort; the ledger never blocks on them.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// NoopNotifier is the default when no dispatcher is configured.
type NoopNotifier struct{}

func (NoopNotifier) Send(context.Context, Notification) error { return nil }

// LogNotifier writes notifications to the process log. Used as the stand-in
// dispatcher in cmd/server until a real delivery channel is wired.
type LogNotifier struct{}

func (LogNotifier) Send(_ context.Context, n Notification) error {
	log.Printf("[Notify] %s to %s: %s: %s", n.Kind, n.RecipientRole, n.Title, n.Body)
	return nil
}
