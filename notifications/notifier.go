package notifications

import (
	"context"

	"github.com/mehulsinha73/servicelink/models"
)

// Notifier delivers a message to a user. Delivery is best-effort
// everywhere it is used: a failed notification never rolls back a
// committed state change.
type Notifier interface {
	Notify(ctx context.Context, user models.User, subject, htmlBody string) error
}
