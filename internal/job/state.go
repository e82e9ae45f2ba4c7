package job

// State is the lifecycle stage of a Job.
type State int

const (
	StateInitialized State = iota
	StateRunning
	// StateStopping is part of the lifecycle but never entered: jobs cannot be cancelled.
	StateStopping
	StateSuccess
	StateError
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateSuccess:
		return "success"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateError
}
