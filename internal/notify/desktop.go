package notify

import (
	"fmt"

	"github.com/gen2brain/beeep"
)

// Desktop shows notifications through the platform notification daemon.
type Desktop struct {
	appName string
	send    func(title, message string) error
}

func NewDesktop(appName string) *Desktop {
	return &Desktop{
		appName: appName,
		send: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
	}
}

func (d *Desktop) Notify(title string, message string) error {
	if d.appName != "" {
		title = d.appName + ": " + title
	}
	if err := d.send(title, message); err != nil {
		return fmt.Errorf("failed to show notification: %w", err)
	}
	return nil
}

// Discard is the notifier used when notifications are disabled.
type Discard struct{}

func (Discard) Notify(string, string) error { return nil }
