package trafficlight

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fujiwara/trafficlight/queue"
	"github.com/google/uuid"
)

const (
	DefaultMinCycle = 4 * time.Second
	DefaultMaxCycle = 6 * time.Second
	DefaultTick     = time.Millisecond
)

// Transition describes a single phase change of a light.
type Transition struct {
	Light   string        `json:"light"`
	From    Phase         `json:"from"`
	To      Phase         `json:"to"`
	At      time.Time     `json:"at"`
	Elapsed time.Duration `json:"elapsed"`
}

// TrafficLight toggles between red and green on its own goroutine once
// started, publishing every new phase into its message queue.
type TrafficLight struct {
	id string

	mu    sync.RWMutex
	phase Phase

	messages *queue.Queue[Phase]
	started  atomic.Bool

	clock    Clock
	interval IntervalFunc
	tick     time.Duration
	sink     func(Transition)
	logger   *slog.Logger
}

type Option func(*TrafficLight)

func WithID(id string) Option {
	return func(l *TrafficLight) { l.id = id }
}

func WithClock(c Clock) Option {
	return func(l *TrafficLight) { l.clock = c }
}

func WithInterval(f IntervalFunc) Option {
	return func(l *TrafficLight) { l.interval = f }
}

// WithTick sets how long the toggling loop sleeps between two checks.
func WithTick(d time.Duration) Option {
	return func(l *TrafficLight) { l.tick = d }
}

// WithTransitionSink registers f to be called from the toggling loop after
// every transition. f must not block.
func WithTransitionSink(f func(Transition)) Option {
	return func(l *TrafficLight) { l.sink = f }
}

// NewTrafficLight returns a light in the red phase. It does not toggle
// until Start is called.
func NewTrafficLight(opts ...Option) *TrafficLight {
	l := &TrafficLight{
		phase:    PhaseRed,
		messages: queue.New[Phase](),
		clock:    SystemClock{},
		interval: UniformInterval(DefaultMinCycle, DefaultMaxCycle),
		tick:     DefaultTick,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.id == "" {
		l.id = uuid.NewString()
	}
	if l.tick <= 0 {
		l.tick = DefaultTick
	}
	l.logger = logger.With("light", l.id, "module", "trafficlight")
	return l
}

func (l *TrafficLight) ID() string {
	return l.id
}

// CurrentPhase returns a snapshot of the current phase without blocking.
func (l *TrafficLight) CurrentPhase() Phase {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.phase
}

func (l *TrafficLight) toggle() (from, to Phase) {
	l.mu.Lock()
	defer l.mu.Unlock()
	from = l.phase
	l.phase = from.Next()
	return from, l.phase
}

// WaitForGreen blocks until the next green phase is published. It reacts
// to transitions only: if the light is green already and never turns green
// again, WaitForGreen never returns.
func (l *TrafficLight) WaitForGreen() {
	for l.messages.Receive() != PhaseGreen {
	}
}

// WaitForGreenContext is WaitForGreen bounded by ctx.
func (l *TrafficLight) WaitForGreenContext(ctx context.Context) error {
	return l.WaitFor(ctx, PhaseGreen)
}

// WaitFor blocks until the next transition into p, or until ctx is done.
// Transitions into other phases received meanwhile are discarded.
func (l *TrafficLight) WaitFor(ctx context.Context, p Phase) error {
	for {
		got, err := l.messages.ReceiveContext(ctx)
		if err != nil {
			return err
		}
		if got == p {
			return nil
		}
	}
}

// discardPending drops the transitions queued so far and reports how many.
func (l *TrafficLight) discardPending() int {
	n := 0
	for {
		if _, ok := l.messages.TryReceive(); !ok {
			return n
		}
		n++
	}
}

// Handle controls a running toggling loop.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Stop terminates the toggling loop and waits for it to exit.
func (h *Handle) Stop() {
	h.cancel()
	<-h.done
}

// Done is closed once the toggling loop has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Start launches the toggling loop and returns immediately. The loop runs
// until ctx is done or the returned handle is stopped. A light can be
// started only once.
func (l *TrafficLight) Start(ctx context.Context) (*Handle, error) {
	if !l.started.CompareAndSwap(false, true) {
		return nil, ErrAlreadyStarted
	}
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		l.cycleThroughPhases(ctx)
	}()
	return h, nil
}

func (l *TrafficLight) cycleThroughPhases(ctx context.Context) {
	last := l.clock.Now()
	cycle := l.interval()
	l.logger.Debug("cycling started", "phase", l.CurrentPhase(), "cycle", cycle)
	for {
		select {
		case <-ctx.Done():
			l.logger.Debug("cycling stopped", "phase", l.CurrentPhase())
			return
		default:
		}
		l.clock.Sleep(l.tick)

		now := l.clock.Now()
		elapsed := now.Sub(last)
		if elapsed < cycle {
			continue
		}
		from, to := l.toggle()
		l.messages.Send(to)
		l.logger.Info("phase changed",
			slog.String("from", from.String()),
			slog.String("to", to.String()),
			slog.Duration("duration", elapsed),
		)
		if l.sink != nil {
			l.sink(Transition{Light: l.id, From: from, To: to, At: now, Elapsed: elapsed})
		}
		last = now
		cycle = l.interval()
	}
}
