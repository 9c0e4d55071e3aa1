package eventbatch

// State is the dispatcher's position in the debounce cycle.
type State int

const (
	// StateIdle means no flush timer is armed and no delivery is in flight.
	StateIdle State = iota

	// StatePending means the debounce timer is armed.
	StatePending

	// StateFlushing means a batch delivery is in flight.
	StateFlushing
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateFlushing:
		return "flushing"
	default:
		return "unknown"
	}
}
