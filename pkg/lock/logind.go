package lock

import (
	"errors"
	"fmt"

	"github.com/MatthiasKunnen/screensaver/pkg/screensaver"
	"github.com/godbus/dbus/v5"
)

const (
	logindDest             = "org.freedesktop.login1"
	logindPath             = "/org/freedesktop/login1"
	logindManagerInterface = "org.freedesktop.login1.Manager"
	logindSessionInterface = "org.freedesktop.login1.Session"
	propertiesInterface    = "org.freedesktop.DBus.Properties"
)

// NewLogindSource follows the lock state of a logind session.
//
// sessionId is the ID of the session. Usually set to the XDG_SESSION_ID env var.
//
// The session's Lock signal and a LockedHint of true produce [screensaver.Locked]; the Unlock
// signal and a LockedHint of false produce [screensaver.Unlocked]. A locker usually causes both,
// so expect duplicate events. When the session is already locked, Locked is delivered first.
func NewLogindSource(sessionId string) (screensaver.Source, error) {
	if sessionId == "" {
		return nil, errors.New("sessionId is empty")
	}

	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to system bus: %w", err)
	}

	var sessionPath dbus.ObjectPath
	err = conn.Object(logindDest, logindPath).
		Call(logindManagerInterface+".GetSession", 0, sessionId).
		Store(&sessionPath)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to find logind session %s: %w", sessionId, err)
	}

	session := conn.Object(logindDest, sessionPath)
	variant, err := session.GetProperty(logindSessionInterface + ".LockedHint")
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("could not get locked hint: %w", err)
	}

	initial := screensaver.Ignored
	if locked, ok := variant.Value().(bool); ok && locked {
		initial = screensaver.Locked
	}

	match := func(iface, member string) []dbus.MatchOption {
		return []dbus.MatchOption{
			dbus.WithMatchObjectPath(sessionPath),
			dbus.WithMatchInterface(iface),
			dbus.WithMatchSender(logindDest),
			dbus.WithMatchMember(member),
		}
	}

	src, err := newSignalSource(
		conn,
		[][]dbus.MatchOption{
			match(logindSessionInterface, "Lock"),
			match(logindSessionInterface, "Unlock"),
			match(propertiesInterface, "PropertiesChanged"),
		},
		func(s *dbus.Signal) screensaver.Event {
			return decodeLogindSignal(sessionPath, s)
		},
		initial,
	)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	return src, nil
}

func decodeLogindSignal(sessionPath dbus.ObjectPath, s *dbus.Signal) screensaver.Event {
	if s.Path != sessionPath {
		return screensaver.Ignored
	}

	switch s.Name {
	case logindSessionInterface + ".Lock":
		return screensaver.Locked
	case logindSessionInterface + ".Unlock":
		return screensaver.Unlocked
	case propertiesInterface + ".PropertiesChanged":
		if len(s.Body) < 2 {
			return screensaver.Ignored
		}

		changedProperties, ok := s.Body[1].(map[string]dbus.Variant)
		if !ok {
			return screensaver.Ignored
		}

		lockedHintProperty, hasLockedHint := changedProperties["LockedHint"]
		if !hasLockedHint {
			return screensaver.Ignored
		}

		isLocked, ok := lockedHintProperty.Value().(bool)
		if !ok {
			return screensaver.Ignored
		}

		return screensaver.FromActive(isLocked)
	}

	return screensaver.Ignored
}
