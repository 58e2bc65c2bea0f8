package duplex

// State is the voice session state. There is no value meaning "listening and
// speaking", which keeps the microphone away from the assistant's own voice.
type State int

const (
	Idle State = iota
	Listening
	Speaking
	ResumeDelay
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Listening:
		return "listening"
	case Speaking:
		return "speaking"
	case ResumeDelay:
		return "resume-delay"
	default:
		return "unknown"
	}
}
