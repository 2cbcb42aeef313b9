package lock

import (
	"errors"
	"fmt"
	"sync"

	"github.com/MatthiasKunnen/screensaver/pkg/screensaver"
	"github.com/godbus/dbus/v5"
)

// signalSource turns matched D-Bus signals into events.
type signalSource struct {
	conn      *dbus.Conn
	signals   chan *dbus.Signal
	events    chan screensaver.Event
	done      chan struct{}
	closeOnce sync.Once
	matches   [][]dbus.MatchOption
	decode    func(s *dbus.Signal) screensaver.Event
}

// newSignalSource registers all matches on conn and starts delivering decoded signals.
// If initial is not Ignored, it is delivered before any signal.
// conn is owned by the source and closed on Close.
func newSignalSource(
	conn *dbus.Conn,
	matches [][]dbus.MatchOption,
	decode func(s *dbus.Signal) screensaver.Event,
	initial screensaver.Event,
) (*signalSource, error) {
	src := &signalSource{
		conn:    conn,
		signals: make(chan *dbus.Signal, 16),
		events:  make(chan screensaver.Event),
		done:    make(chan struct{}),
		decode:  decode,
	}

	for _, match := range matches {
		if err := conn.AddMatchSignal(match...); err != nil {
			return nil, errors.Join(
				fmt.Errorf("failed to register D-Bus signal match: %w", err),
				src.removeMatches(),
			)
		}
		src.matches = append(src.matches, match)
	}

	conn.Signal(src.signals)
	go src.run(initial)

	return src, nil
}

func (src *signalSource) run(initial screensaver.Event) {
	defer close(src.events)

	if initial != screensaver.Ignored && !src.send(initial) {
		return
	}

	for {
		select {
		case <-src.done:
			return
		case s, ok := <-src.signals:
			if !ok {
				return
			}
			if s == nil {
				// Seems to happen on close
				continue
			}

			if e := src.decode(s); e != screensaver.Ignored && !src.send(e) {
				return
			}
		}
	}
}

// send delivers e unless the source is closed first.
func (src *signalSource) send(e screensaver.Event) bool {
	select {
	case src.events <- e:
		return true
	case <-src.done:
		return false
	}
}

func (src *signalSource) Events() <-chan screensaver.Event {
	return src.events
}

func (src *signalSource) removeMatches() error {
	var err error
	for _, match := range src.matches {
		if removeErr := src.conn.RemoveMatchSignal(match...); removeErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to remove D-Bus signal match: %w", removeErr))
		}
	}
	src.matches = nil

	return err
}

// Close stops delivering events and closes the D-Bus connection.
func (src *signalSource) Close() error {
	var err error
	src.closeOnce.Do(func() {
		err = src.removeMatches()
		src.conn.RemoveSignal(src.signals)
		close(src.done)
		if closeErr := src.conn.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close D-Bus connection: %w", closeErr))
		}
	})

	return err
}
