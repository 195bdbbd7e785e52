package notify

// Event describes a reconciliation outcome worth telling a human about.
type Event struct {
	Symbol   string
	Action   string
	Side     string
	Price    float64
	Quantity float64
	PnL      float64
	Reason   string
}

// Notifier delivers operational messages. Delivery failures are the
// notifier's problem: callers fire and forget.
type Notifier interface {
	NotifyTrade(e Event)
	NotifyError(symbol, message string)
	NotifyStart(symbols []string)
	NotifyStop(reason string)
}

// Noop discards every notification.
type Noop struct{}

func (Noop) NotifyTrade(Event)          {}
func (Noop) NotifyError(string, string) {}
func (Noop) NotifyStart([]string)       {}
func (Noop) NotifyStop(string)          {}
