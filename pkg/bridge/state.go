package bridge

// CallState is the lifecycle state of one bridged call.
type CallState int

const (
	StateConnecting CallState = iota
	StateSessionInitializing
	StateActive
	StateClosing
	StateClosed
)

// String returns the string representation of the state.
func (s CallState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateSessionInitializing:
		return "session_initializing"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
