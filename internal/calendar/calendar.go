// Package calendar defines the narrow interface for scheduling calendar
// events from tasks that carry a due date.
//
// Event creation is best effort: the gateway logs scheduler failures and
// proceeds with task creation. The scheduler is nil when disabled.
package calendar

import "context"

// Scheduler creates a calendar event and returns the provider's event id.
type Scheduler interface {
	// Schedule creates an all-day event titled summary on the given
	// canonical YYYY-MM-DD date.
	Schedule(ctx context.Context, summary, date string) (string, error)

	// Close releases any resources held by the scheduler.
	Close() error
}
