package tracker

import "github.com/ridgelift/livetrack/snapshot"

type EventKind int

const (
	TookOff EventKind = iota
	Landed
	Alert
	Resumed
	Stopped
	Ignored
)

func (k EventKind) String() string {
	switch k {
	case TookOff:
		return "TookOff"
	case Landed:
		return "Landed"
	case Alert:
		return "Alert"
	case Resumed:
		return "Resumed"
	case Stopped:
		return "Stopped"
	}
	return "Ignored"
}

// Classify maps a sample's tag to the event it announces. The tags are
// exactly what the tracking devices send, case included; anything
// unrecognized is a plain position update.
func Classify(p snapshot.Point) EventKind {
	switch p.Msg {
	case "OK":
		return Landed
	case "HELP", "MOVE", "CUSTOM":
		return Alert
	case "START":
		return Resumed
	case "OFF":
		return Stopped
	}
	return Ignored
}

// Event is one outbound notification, as also published to the event topic.
type Event struct {
	Kind  EventKind
	Pilot string
	Point snapshot.Point
	Text  string
}
