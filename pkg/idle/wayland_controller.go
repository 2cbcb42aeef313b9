package idle

import (
	"errors"
	"fmt"
	"math"

	"github.com/MatthiasKunnen/go-wayland/wayland/client"
	idleNotify "github.com/MatthiasKunnen/go-wayland/wayland/staging/ext-idle-notify-v1"
)

type waylandController struct {
	close chan struct{}
	// Events are read on a separate goroutine and handed out as dispatch functions, so that all
	// Wayland objects are only used from the goroutine that executes them.
	dispatchChan  chan func() error
	display       *client.Display
	notifier      *idleNotify.IdleNotifier
	notifications []*idleNotify.IdleNotification
	registry      *client.Registry
	seat          *client.Seat
}

// NewWaylandController connects to the compositor and binds the ext-idle-notify-v1 global.
// It returns:
//   - The controller
//   - The dispatch channel, execute the functions received on this channel on the same goroutine as
//     other interactions with the Controller.
//   - Error that occurred when creating the controller.
func NewWaylandController() (Controller, <-chan func() error, error) {
	m := &waylandController{
		close:        make(chan struct{}),
		dispatchChan: make(chan func() error),
	}
	var err error
	m.display, err = client.Connect("")
	if err != nil {
		return nil, nil, fmt.Errorf("error connecting to Wayland server: %w", err)
	}

	m.registry, err = m.display.GetRegistry()
	if err != nil {
		return nil, nil, errors.Join(
			fmt.Errorf("error getting Wayland registry: %w", err),
			m.Close(),
		)
	}

	var globalHandlerError error
	m.registry.SetGlobalHandler(func(e client.RegistryGlobalEvent) {
		switch e.Interface {
		case idleNotify.IdleNotifierInterfaceName:
			m.notifier = idleNotify.NewIdleNotifier(m.display.Context())
			err := m.registry.Bind(e.Name, idleNotify.IdleNotifierInterfaceName, e.Version, m.notifier)
			if err != nil {
				globalHandlerError = errors.Join(
					globalHandlerError,
					fmt.Errorf("unable to bind %s interface: %w", idleNotify.IdleNotifierInterfaceName, err),
				)
			}
		case client.SeatInterfaceName:
			if m.seat != nil {
				// The first seat is the one that receives input.
				return
			}
			seat := client.NewSeat(m.display.Context())
			err := m.registry.Bind(e.Name, e.Interface, e.Version, seat)
			if err != nil {
				globalHandlerError = errors.Join(
					globalHandlerError,
					fmt.Errorf("unable to bind %s interface: %w", client.SeatInterfaceName, err),
				)
			}
			m.seat = seat
		}
	})

	// Two roundtrips: one to receive the globals, one for the bind requests to be processed.
	for i := 1; i <= 2; i++ {
		if err := m.display.Roundtrip(); err != nil {
			return nil, nil, errors.Join(fmt.Errorf("failed roundtrip %d: %w", i, err), m.Close())
		}
		if globalHandlerError != nil {
			return nil, nil, errors.Join(
				fmt.Errorf("error in registry GlobalHandler after roundtrip %d: %w", i, globalHandlerError),
				m.Close(),
			)
		}
	}

	if m.notifier == nil {
		return nil, nil, errors.Join(
			errors.New("no notifier was set, ext-idle-notify might not be supported"),
			m.Close(),
		)
	}
	if m.seat == nil {
		return nil, nil, errors.Join(errors.New("compositor announced no seat"), m.Close())
	}

	go func() {
		for {
			// GetDispatch blocks until the next event has been read.
			dispatch := m.display.Context().GetDispatch()
			select {
			case m.dispatchChan <- dispatch:
			case <-m.close:
				return
			}
		}
	}()

	return m, m.dispatchChan, nil
}

func (m *waylandController) Close() error {
	select {
	case <-m.close:
		return nil
	default:
		close(m.close)
	}

	var totalError error
	for _, n := range m.notifications {
		if err := n.Destroy(); err != nil {
			totalError = errors.Join(totalError, fmt.Errorf("error destroying idle notification: %w", err))
		}
	}
	m.notifications = nil

	if m.notifier != nil {
		if err := m.notifier.Destroy(); err != nil {
			totalError = errors.Join(totalError, fmt.Errorf(
				"unable to destroy %s: %w",
				idleNotify.IdleNotifierInterfaceName,
				err,
			))
		}
	}

	if m.seat != nil {
		if err := m.seat.Release(); err != nil {
			totalError = errors.Join(totalError, fmt.Errorf("error releasing seat: %w", err))
		}
	}

	if m.display != nil {
		if err := m.display.Destroy(); err != nil {
			totalError = errors.Join(totalError, fmt.Errorf("error destroying display: %w", err))
		}

		if err := m.display.Context().Close(); err != nil {
			totalError = errors.Join(totalError, fmt.Errorf("error closing wayland connection: %w", err))
		}
	}

	return totalError
}

// AddNotification registers handlers on idle and resume.
// One of Idle or Resume must be non-nil.
func (m *waylandController) AddNotification(notificationInput *CreateIdleNotification) error {
	if notificationInput.Idle == nil && notificationInput.Resume == nil {
		return fmt.Errorf("either Idle or Resume is required")
	}

	durationMs := notificationInput.Duration.Milliseconds()
	switch {
	case durationMs > math.MaxUint32:
		return fmt.Errorf("duration too large, %d > %d", durationMs, uint32(math.MaxUint32))
	case durationMs < 0:
		durationMs = 0
	}

	notification, err := m.notifier.GetIdleNotification(uint32(durationMs), m.seat)
	if err != nil {
		return fmt.Errorf("unable to get idle notification: %w", err)
	}
	m.notifications = append(m.notifications, notification)

	if notificationInput.Idle != nil {
		notification.SetIdledHandler(func(idleNotify.IdleNotificationIdledEvent) {
			notificationInput.Idle()
		})
	}

	if notificationInput.Resume != nil {
		notification.SetResumedHandler(func(idleNotify.IdleNotificationResumedEvent) {
			notificationInput.Resume()
		})
	}

	return nil
}
