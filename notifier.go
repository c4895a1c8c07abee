package trafficlight

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fujiwara/trafficlight/queue"
)

const DefaultNotifyTimeout = 5 * time.Second

type Notifier interface {
	Name() string
	Notify(ctx context.Context, t Transition) error
}

func NewNotifier(cfg *NotifierConfig) (Notifier, error) {
	switch {
	case cfg.Command != nil:
		return NewCommandNotifier(cfg)
	case cfg.Webhook != nil:
		return NewWebhookNotifier(cfg)
	case cfg.Redis != nil:
		return NewRedisNotifier(cfg)
	default:
		return nil, fmt.Errorf("notifier %s: no notifier type specified", cfg.Name)
	}
}

type timedNotifier struct {
	Notifier
	timeout time.Duration
}

// Dispatcher delivers transitions to notifiers in the order they happened,
// off the goroutines of the lights.
type Dispatcher struct {
	transitions *queue.Queue[Transition]
	notifiers   []timedNotifier
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		transitions: queue.New[Transition](),
	}
}

// Add registers n. Notifiers must be added before Run.
func (d *Dispatcher) Add(n Notifier, timeout time.Duration) {
	if timeout <= 0 {
		timeout = DefaultNotifyTimeout
	}
	d.notifiers = append(d.notifiers, timedNotifier{Notifier: n, timeout: timeout})
}

// Publish enqueues t. It never blocks, so it is usable as a transition sink.
func (d *Dispatcher) Publish(t Transition) {
	d.transitions.Send(t)
}

// Run delivers transitions until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		t, err := d.transitions.ReceiveContext(ctx)
		if err != nil {
			return nil
		}
		d.dispatch(ctx, t)
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, t Transition) {
	ctx = context.WithValue(ctx, lightKey, t.Light)
	for _, n := range d.notifiers {
		nctx, cancel := context.WithTimeout(ctx, n.timeout)
		err := n.Notify(nctx, t)
		cancel()
		if err != nil {
			newLoggerFromContext(ctx).Warn("notify failed",
				slog.String("notifier", n.Name()),
				slog.String("phase", t.To.String()),
				slog.String("error", err.Error()),
			)
		}
	}
}
