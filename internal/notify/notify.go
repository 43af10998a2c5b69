package notify

// NotificationType classifies a notification for styling
type NotificationType int

const (
	NotifyInfo NotificationType = iota
	NotifySuccess
	NotifyWarning
	NotifyError
)

// Notification is one message about a mission's fate
type Notification struct {
	Title     string
	Message   string
	Type      NotificationType
	MissionID string
}

// Notifier delivers notifications
type Notifier interface {
	Send(n Notification) error
}

// MultiNotifier fans a notification out to several notifiers
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier creates a notifier that sends to all provided notifiers
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

// Send sends to every notifier and returns the last error, if any
func (m *MultiNotifier) Send(n Notification) error {
	var lastErr error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(n); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// NoopNotifier does nothing (disabled notifications, tests)
type NoopNotifier struct{}

func (NoopNotifier) Send(n Notification) error { return nil }
