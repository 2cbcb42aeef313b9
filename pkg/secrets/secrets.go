package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"
)

const (
	dbusDest             = "org.freedesktop.secrets"
	dbusServiceInterface = "org.freedesktop.Secret.Service"
	dbusPath             = "/org/freedesktop/secrets"
)

type Secrets struct {
	conn *dbus.Conn
	obj  dbus.BusObject
}

func New() (*Secrets, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}

	s := &Secrets{
		conn: conn,
	}
	s.obj = conn.Object(dbusDest, dbusPath)

	return s, nil
}

// Lock locks the given objects. The given objects are prepended by "/org/freedesktop/secrets/",
// e.g. "collection/login" or "aliases/default".
func (s *Secrets) Lock(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}

	var locked []dbus.ObjectPath
	var prompt dbus.ObjectPath
	err := s.obj.CallWithContext(ctx, dbusServiceInterface+".Lock", 0, objectPaths(paths)).
		Store(&locked, &prompt)
	if err != nil {
		return fmt.Errorf("could not lock collections: %w", err)
	}

	if prompt != "/" && prompt != "" {
		// Prompts need a user in front of an unlocked screen, which defeats the purpose.
		return fmt.Errorf("locking %d of %d collections requires prompt %s", len(paths)-len(locked), len(paths), prompt)
	}

	return nil
}

// LockHook returns a function that locks paths, for use as an activation hook.
func (s *Secrets) LockHook(paths []string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return s.Lock(ctx, paths)
	}
}

func (s *Secrets) Close() error {
	if err := s.conn.Close(); err != nil {
		return errors.Join(errors.New("failed to close session bus connection"), err)
	}

	return nil
}

func objectPaths(paths []string) []dbus.ObjectPath {
	objs := make([]dbus.ObjectPath, len(paths))
	for i, path := range paths {
		objs[i] = dbus.ObjectPath(dbusPath + "/" + strings.TrimPrefix(path, "/"))
	}

	return objs
}
