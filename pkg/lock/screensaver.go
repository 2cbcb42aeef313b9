package lock

import (
	"fmt"
	"strings"

	"github.com/MatthiasKunnen/screensaver/pkg/screensaver"
	"github.com/godbus/dbus/v5"
)

// ScreenSaverInterfaces are the screensaver services whose ActiveChanged signal is followed.
var ScreenSaverInterfaces = []string{
	"org.freedesktop.ScreenSaver",
	"org.gnome.ScreenSaver",
}

// NewScreenSaverSource follows the ActiveChanged(bool) signal of the session's screensaver
// service. If the screensaver reports itself active on startup, Locked is delivered first.
func NewScreenSaverSource() (screensaver.Source, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}

	matches := make([][]dbus.MatchOption, 0, len(ScreenSaverInterfaces))
	for _, iface := range ScreenSaverInterfaces {
		matches = append(matches, []dbus.MatchOption{
			dbus.WithMatchInterface(iface),
			dbus.WithMatchMember("ActiveChanged"),
		})
	}

	src, err := newSignalSource(conn, matches, decodeScreenSaverSignal, screenSaverActive(conn))
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	return src, nil
}

// screenSaverActive asks every known service for its state. Services that are not running
// are skipped.
func screenSaverActive(conn *dbus.Conn) screensaver.Event {
	for _, iface := range ScreenSaverInterfaces {
		var active bool
		err := conn.Object(iface, objectPath(iface)).
			Call(iface+".GetActive", 0).
			Store(&active)
		if err == nil && active {
			return screensaver.Locked
		}
	}

	return screensaver.Ignored
}

// objectPath turns org.gnome.ScreenSaver into /org/gnome/ScreenSaver.
func objectPath(iface string) dbus.ObjectPath {
	return dbus.ObjectPath("/" + strings.ReplaceAll(iface, ".", "/"))
}

func decodeScreenSaverSignal(s *dbus.Signal) screensaver.Event {
	for _, iface := range ScreenSaverInterfaces {
		if s.Name != iface+".ActiveChanged" {
			continue
		}

		if len(s.Body) < 1 {
			return screensaver.Ignored
		}

		active, ok := s.Body[0].(bool)
		if !ok {
			return screensaver.Ignored
		}

		return screensaver.FromActive(active)
	}

	return screensaver.Ignored
}
