package lists

import "context"

// Broadcast event names.
const (
	EventListCreated = "list_created"
	EventListUpdated = "list_updated"
	EventListDeleted = "list_deleted"
	EventItemCreated = "item_created"
	EventItemUpdated = "item_updated"
	EventItemDeleted = "item_deleted"
	EventItemToggled = "item_toggled"
	EventNewActivity = "new_activity"
)

// Emitter publishes an event to the global channel and, when scopeID is
// positive, to that list's channel. Implementations must not block on
// delivery and never report errors to the caller.
type Emitter interface {
	Emit(ctx context.Context, event string, payload any, scopeID int64)
}

// NopEmitter discards every event.
type NopEmitter struct{}

func (NopEmitter) Emit(context.Context, string, any, int64) {}
