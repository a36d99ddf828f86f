package queue

// EventKind tells observers what changed.
type EventKind int

const (
	// EventItemAdded carries the appended item.
	EventItemAdded EventKind = iota
	// EventItemUpdated carries an item whose status or message changed.
	EventItemUpdated
	// EventCleared means the queue was emptied.
	EventCleared
	// EventRunState carries the new run state in Running.
	EventRunState
)

func (k EventKind) String() string {
	switch k {
	case EventItemAdded:
		return "item_added"
	case EventItemUpdated:
		return "item_updated"
	case EventCleared:
		return "cleared"
	case EventRunState:
		return "run_state"
	default:
		return "unknown"
	}
}

// Event is delivered to every subscriber. Item is set for item events.
type Event struct {
	Kind    EventKind
	Item    *Snapshot
	Running bool
}
