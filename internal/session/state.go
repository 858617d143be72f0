package session

// State is the tracking session lifecycle
type State int

const (
	StateInit       State = iota // Created or reset, no frame seen
	StateCollecting              // Last frame had no usable face
	StateTracking                // Last frame was analyzed
	StateEnded                   // Stream exhausted or stopped
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateCollecting:
		return "collecting"
	case StateTracking:
		return "tracking"
	case StateEnded:
		return "ended"
	}
	return "unknown"
}
