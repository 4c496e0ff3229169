package session

// PlayerState is the observed state of a guild's player. Transitions are
// driven by the audio engine; the manager only starts and stops playback.
//
//	Idle -> Playing -> Idle (track ended)
//	Playing <-> Buffering | Paused | AutoPaused
type PlayerState int

const (
	Idle PlayerState = iota
	Buffering
	Playing
	Paused
	AutoPaused
)

func (s PlayerState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Buffering:
		return "buffering"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case AutoPaused:
		return "autopaused"
	}
	return "unknown"
}

// StateListener is called for every player state transition.
type StateListener func(from, to PlayerState)
