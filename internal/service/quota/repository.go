package quota

import (
	"context"
	"time"

	"github.com/ignite/member-mailer/internal/domain"
)

// Repository defines the data access contract for quota rows.
type Repository interface {
	// GetOrCreate returns the row for day, inserting it with emails_sent = 0
	// and the given limit if it does not exist yet.
	GetOrCreate(ctx context.Context, day time.Time, limit int) (*domain.EmailQuota, error)

	// Increment adds n to the day's counter, creating the row if needed.
	Increment(ctx context.Context, day time.Time, limit, n int) error
}
