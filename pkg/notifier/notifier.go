package notifier

import (
	"errors"
	"fmt"
	"time"

	"github.com/gen2brain/beeep"
	log "github.com/sirupsen/logrus"
)

// DefaultTimeout is how long a notification may take to be delivered.
const DefaultTimeout = 10 * time.Second

var ErrNotificationTimeout = errors.New("notification was not delivered in time")

// Notifier delivers a message to the user on a best effort basis.
type Notifier interface {
	Notify(title, message string, timeout time.Duration) error
}

// New returns a desktop notifier if enabled is set, otherwise messages are only logged.
func New(enabled bool) Notifier {
	if enabled {
		return NewDesktop()
	}
	return LogOnly{}
}

// LogOnly writes notifications to the log.
type LogOnly struct{}

func (LogOnly) Notify(title, message string, _ time.Duration) error {
	log.WithField("title", title).Info(message)
	return nil
}

// Desktop shows notifications on the desktop of the current user.
type Desktop struct {
	send func(title, message, icon string) error
}

// NewDesktop creates a Desktop notifier.
func NewDesktop() *Desktop {
	return &Desktop{send: beeep.Notify}
}

// Notify delivers the notification and waits at most timeout for it.
// The message is logged as well so it is not lost when no desktop session is available.
func (d *Desktop) Notify(title, message string, timeout time.Duration) error {
	_ = LogOnly{}.Notify(title, message, timeout)
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("notification panicked: %v", r)
			}
		}()
		done <- d.send(title, message, "")
	}()
	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		return ErrNotificationTimeout
	}
}
