package syncdir

// State is the phase an Engine is in.
type State int32

const (
	StateIdle State = iota
	StateWalking
	StateDiffing
	StateImporting
	StateExporting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWalking:
		return "walking"
	case StateDiffing:
		return "diffing"
	case StateImporting:
		return "importing"
	case StateExporting:
		return "exporting"
	default:
		return "unknown"
	}
}
