package idle

import (
	"time"
)

// Controller registers idle notifications with the compositor.
//
// Controller is not safe for concurrent use. All calls, as well as the dispatch functions it hands
// out, must happen on the same goroutine.
type Controller interface {
	AddNotification(notificationInput *CreateIdleNotification) error
	// Close closes any connection the Controller might have. Do not use the Controller after
	// this.
	Close() error
}

type CreateIdleNotification struct {
	Duration time.Duration

	// Idle is called on the dispatch goroutine when the seat has been idle for Duration.
	Idle func()

	// Resume is called on the dispatch goroutine when the seat is used again after being idle.
	Resume func()
}
