package trafficlight

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// App wires the configured lights to the notifiers and the responder.
type App struct {
	Config *Config

	lights     []*TrafficLight
	dispatcher *Dispatcher
	responder  *Responder
}

func Run(ctx context.Context, cli *CLI) error {
	SetDebug(cli.Debug)
	cfg, err := LoadConfig(ctx, cli.Config)
	if err != nil {
		return err
	}
	app, err := NewApp(cfg)
	if err != nil {
		return err
	}
	return app.Run(ctx)
}

func NewApp(cfg *Config, opts ...Option) (*App, error) {
	app := &App{
		Config:     cfg,
		dispatcher: NewDispatcher(),
	}
	for _, c := range cfg.Notifiers {
		n, err := NewNotifier(c)
		if err != nil {
			return nil, err
		}
		app.dispatcher.Add(n, c.Timeout)
	}
	for _, c := range cfg.Lights {
		lopts := append([]Option{
			WithID(c.ID),
			WithInterval(UniformInterval(c.MinCycle, c.MaxCycle)),
			WithTick(c.Tick),
			WithTransitionSink(app.dispatcher.Publish),
		}, opts...)
		app.lights = append(app.lights, NewTrafficLight(lopts...))
	}
	app.responder = NewResponder(cfg.Responder, app.lights)
	return app, nil
}

func (app *App) Lights() []*TrafficLight {
	return app.lights
}

// Run starts every light and serves until ctx is done. All toggling loops
// have exited when Run returns.
func (app *App) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)

	handles := make([]*Handle, 0, len(app.lights))
	defer func() {
		for _, h := range handles {
			h.Stop()
		}
	}()
	for _, l := range app.lights {
		h, err := l.Start(ctx)
		if err != nil {
			return fmt.Errorf("failed to start light %s: %w", l.ID(), err)
		}
		handles = append(handles, h)
	}

	eg.Go(func() error {
		return app.dispatcher.Run(ctx)
	})
	eg.Go(func() error {
		return app.responder.Run(ctx)
	})
	return eg.Wait()
}
