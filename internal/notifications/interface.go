package notifications

// Notifier delivers human-readable risk alerts. The engine treats delivery
// as opaque and best-effort.
type Notifier interface {
	// SendAlert sends an alert with the specified level and message
	SendAlert(level, message string) error
}

// NoopNotifier discards every alert. Used when no delivery channel is
// configured and in tests.
type NoopNotifier struct{}

// SendAlert implements Notifier
func (NoopNotifier) SendAlert(level, message string) error { return nil }
