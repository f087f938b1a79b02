package interfaces

import "classroom-roster/internal/domain/roster"

// Notifier is the sink for change events.
type Notifier interface {
	Publish(event roster.ChangeEvent)
}
