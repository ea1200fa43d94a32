package launch

import "strconv"

// State is a bootstrap state.
type State int32

const (
	Preparing State = iota
	Starting
	Running
	Stopped
	Failed
)

func (s State) String() string {
	switch s {
	case Preparing:
		return "preparing"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	case Failed:
		return "failed"
	default:
		return "State(" + strconv.Itoa(int(s)) + ")"
	}
}
