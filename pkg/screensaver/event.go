package screensaver

import (
	"io"
	"strings"
)

// Event is the classification of a single lock notification.
type Event int

const (
	// Ignored is any notification that does not change the lock state.
	Ignored Event = iota
	// Locked means the screen or session has been locked.
	Locked
	// Unlocked means the screen or session has been unlocked.
	Unlocked
)

func (e Event) String() string {
	switch e {
	case Locked:
		return "locked"
	case Unlocked:
		return "unlocked"
	default:
		return "ignored"
	}
}

// FromActive converts the boolean payload of an ActiveChanged or LockedHint notification.
func FromActive(active bool) Event {
	if active {
		return Locked
	}

	return Unlocked
}

const (
	markerTrue  = "boolean true"
	markerFalse = "boolean false"
)

// Decode classifies one line of dbus-monitor output.
// The boolean payload of an ActiveChanged signal is printed on its own line, e.g.
//
//	signal time=1700000000.0 sender=:1.21 -> destination=(null destination) serial=7 path=/org/gnome/ScreenSaver; interface=org.gnome.ScreenSaver; member=ActiveChanged
//	   boolean true
//
// Every line that carries neither payload is Ignored.
func Decode(line string) Event {
	switch {
	case strings.Contains(line, markerTrue):
		return Locked
	case strings.Contains(line, markerFalse):
		return Unlocked
	default:
		return Ignored
	}
}

// Source delivers lock events in the order they were observed.
//
// The channel returned by Events is closed when the source ends, either because the underlying
// stream ended or because Close was called.
type Source interface {
	Events() <-chan Event
	io.Closer
}
