package idle

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MatthiasKunnen/screensaver/pkg/screensaver"
)

type source struct {
	controller Controller
	events     chan screensaver.Event
	closing    chan struct{}
	stopped    chan struct{}
	closeOnce  sync.Once
	closeErr   error
}

// NewWaylandSource delivers [screensaver.Locked] once the seat has been idle for timeout and
// [screensaver.Unlocked] when it is used again.
func NewWaylandSource(timeout time.Duration) (screensaver.Source, error) {
	controller, dispatch, err := NewWaylandController()
	if err != nil {
		return nil, err
	}

	return newSource(controller, dispatch, timeout)
}

func newSource(controller Controller, dispatch <-chan func() error, timeout time.Duration) (*source, error) {
	s := &source{
		controller: controller,
		events:     make(chan screensaver.Event),
		closing:    make(chan struct{}),
		stopped:    make(chan struct{}),
	}

	err := controller.AddNotification(&CreateIdleNotification{
		Duration: timeout,
		Idle: func() {
			s.send(screensaver.Locked)
		},
		Resume: func() {
			s.send(screensaver.Unlocked)
		},
	})
	if err != nil {
		return nil, errors.Join(err, controller.Close())
	}

	go s.run(dispatch)

	return s, nil
}

// send runs on the dispatch goroutine; dispatching pauses until the event is consumed.
func (s *source) send(e screensaver.Event) {
	select {
	case s.events <- e:
	case <-s.closing:
	}
}

func (s *source) run(dispatch <-chan func() error) {
	defer close(s.stopped)
	defer close(s.events)

	for {
		select {
		case <-s.closing:
			s.closeErr = s.controller.Close()
			return
		case dispatchFunc := <-dispatch:
			if err := dispatchFunc(); err != nil {
				s.closeErr = errors.Join(
					fmt.Errorf("failed to dispatch Wayland event: %w", err),
					s.controller.Close(),
				)
				return
			}
		}
	}
}

func (s *source) Events() <-chan screensaver.Event {
	return s.events
}

// Close releases the Wayland objects on the dispatch goroutine and waits for it to stop.
func (s *source) Close() error {
	s.closeOnce.Do(func() {
		close(s.closing)
	})
	<-s.stopped

	return s.closeErr
}
