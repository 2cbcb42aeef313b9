package inhibit

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
)

const (
	dbusDest             = "org.freedesktop.login1"
	dbusManagerInterface = "org.freedesktop.login1.Manager"
	dbusPath             = "/org/freedesktop/login1"
)

// What is an operation that can be inhibited, see the logind documentation for all values.
type What string

const WhatShutdown What = "shutdown"

// Mode is how strongly an inhibitor lock holds off its operation.
type Mode string

// ModeDelay holds off the operation until the lock is released or logind's InhibitDelayMaxSec
// passes.
const ModeDelay Mode = "delay"

// ShutdownGuard delays system shutdown until the holder has cleaned up.
//
// It takes a logind delay inhibitor lock for shutdown and watches the PrepareForShutdown signal.
// Once the signal arrives, ShutdownRequested is closed; call Release when done so logind can
// proceed.
type ShutdownGuard struct {
	conn      *dbus.Conn
	login1    dbus.BusObject
	signals   chan *dbus.Signal
	done      chan struct{}
	closeOnce sync.Once

	shutdown     chan struct{}
	shutdownOnce sync.Once

	muLock sync.Mutex
	lock   io.Closer
}

// NewShutdownGuard connects to the system bus and takes the delay lock.
//   - who should be a short human-readable string identifying the application taking the lock.
//   - why should be a short human-readable string identifying the reason why the lock is taken.
func NewShutdownGuard(who string, why string) (*ShutdownGuard, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to system bus: %w", err)
	}

	g := &ShutdownGuard{
		conn:     conn,
		login1:   conn.Object(dbusDest, dbusPath),
		signals:  make(chan *dbus.Signal, 4),
		done:     make(chan struct{}),
		shutdown: make(chan struct{}),
	}

	if err := conn.AddMatchSignal(g.shutdownMatch()...); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to register Dbus PrepareForShutdown signal: %w", err)
	}

	// Subscribe before locking so a shutdown that starts in between is not missed.
	g.lock, err = inhibit(g.login1, who, why, ModeDelay, WhatShutdown)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	conn.Signal(g.signals)
	go func() {
		for {
			select {
			case <-g.done:
				return
			case s, ok := <-g.signals:
				if !ok {
					return
				}
				if isShutdownStart(g.login1.Path(), s) {
					g.shutdownOnce.Do(func() { close(g.shutdown) })
				}
			}
		}
	}()

	return g, nil
}

func (g *ShutdownGuard) shutdownMatch() []dbus.MatchOption {
	return []dbus.MatchOption{
		dbus.WithMatchObjectPath(g.login1.Path()),
		dbus.WithMatchInterface(dbusManagerInterface),
		dbus.WithMatchSender(dbusDest),
		dbus.WithMatchMember("PrepareForShutdown"),
	}
}

// ShutdownRequested is closed when the system is about to shut down or reboot.
func (g *ShutdownGuard) ShutdownRequested() <-chan struct{} {
	return g.shutdown
}

// Release drops the delay lock. It is safe to call more than once.
func (g *ShutdownGuard) Release() error {
	g.muLock.Lock()
	defer g.muLock.Unlock()

	if g.lock == nil {
		return nil
	}

	err := g.lock.Close()
	g.lock = nil
	if err != nil {
		return fmt.Errorf("failed to release inhibitor lock: %w", err)
	}

	return nil
}

// Close releases the lock and permanently stops processing signals.
func (g *ShutdownGuard) Close() error {
	err := g.Release()
	g.closeOnce.Do(func() {
		if removeErr := g.conn.RemoveMatchSignal(g.shutdownMatch()...); removeErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to remove Dbus PrepareForShutdown signal: %w", removeErr))
		}
		g.conn.RemoveSignal(g.signals)
		close(g.done)
		err = errors.Join(err, g.conn.Close())
	})

	return err
}

// inhibit creates an inhibition lock.
//   - mode determines whether the inhibition shall be considered mandatory ("block") or whether it
//     should just delay the operation to a certain maximum time ("delay"),
//     while "block-weak" will create an inhibitor that is automatically ignored in some
//     circumstances.
//   - what is one or more of actions that should be inhibited.
//
// The lock is released the moment when the returned object and all its duplicates are closed.
func inhibit(login1 dbus.BusObject, who string, why string, mode Mode, what ...What) (io.Closer, error) {
	var fd dbus.UnixFD

	err := login1.
		Call(dbusManagerInterface+".Inhibit", 0, joinWhat(what), who, why, string(mode)).
		Store(&fd)
	if err != nil {
		return nil, fmt.Errorf("failed to create inhibit lock: %w", err)
	}

	return os.NewFile(uintptr(fd), "inhibit"), nil
}

// isShutdownStart reports whether s is PrepareForShutdown(true). False is sent when a pending
// shutdown was cancelled.
func isShutdownStart(login1Path dbus.ObjectPath, s *dbus.Signal) bool {
	if s == nil || s.Path != login1Path || s.Name != dbusManagerInterface+".PrepareForShutdown" {
		return false
	}
	if len(s.Body) < 1 {
		return false
	}

	start, ok := s.Body[0].(bool)
	return ok && start
}

func joinWhat(elems []What) string {
	parts := make([]string, len(elems))
	for i, elem := range elems {
		parts[i] = string(elem)
	}

	return strings.Join(parts, ":")
}
