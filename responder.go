package trafficlight

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const DefaultWaitTimeout = 30 * time.Second

// Responder serves the phases of the lights over HTTP.
type Responder struct {
	addr    string
	lights  map[string]*TrafficLight
	watches map[string]*greenWatch
	order   []string
	logger  *slog.Logger
}

// greenWatch wakes every HTTP waiter of one light on its next green.
type greenWatch struct {
	mu   sync.Mutex
	next chan struct{}
}

func newGreenWatch() *greenWatch {
	return &greenWatch{next: make(chan struct{})}
}

func (w *greenWatch) wait() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.next
}

func (w *greenWatch) broadcast() {
	w.mu.Lock()
	old := w.next
	w.next = make(chan struct{})
	w.mu.Unlock()
	close(old)
}

func NewResponder(cfg *ResponderConfig, lights []*TrafficLight) *Responder {
	r := &Responder{
		addr:    cfg.Addr,
		lights:  make(map[string]*TrafficLight, len(lights)),
		watches: make(map[string]*greenWatch, len(lights)),
		logger:  logger.With("module", "responder"),
	}
	for _, l := range lights {
		r.lights[l.ID()] = l
		r.watches[l.ID()] = newGreenWatch()
		r.order = append(r.order, l.ID())
	}
	return r
}

func (r *Responder) Run(ctx context.Context) error {
	srv := http.Server{
		Addr:    r.addr,
		Handler: r.Handler(),
	}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			r.logger.Warn("failed to shutdown", "error", err)
		}
	}()
	r.Watch(ctx)

	r.logger.Info("listening", "addr", r.addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Watch makes the responder the consumer of every light's message queue
// until ctx is done. Transitions published before Watch are dropped, and
// each later green wakes the HTTP waiters of that light.
func (r *Responder) Watch(ctx context.Context) {
	for _, id := range r.order {
		l, w := r.lights[id], r.watches[id]
		go func() {
			if n := l.discardPending(); n > 0 {
				r.logger.Debug("discarded stale transitions", "light", id, "count", n)
			}
			for {
				if err := l.WaitForGreenContext(ctx); err != nil {
					return
				}
				w.broadcast()
			}
		}()
	}
}

func (r *Responder) light(id string) (*TrafficLight, error) {
	l, ok := r.lights[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLight, id)
	}
	return l, nil
}

func (r *Responder) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", r.handlePhases)
	mux.HandleFunc("GET /lights/{id}", r.handlePhase)
	mux.HandleFunc("GET /lights/{id}/wait", r.handleWait)
	mux.HandleFunc("GET /log", r.handleLog)
	return mux
}

func (r *Responder) handlePhases(w http.ResponseWriter, req *http.Request) {
	phases := make(map[string]Phase, len(r.order))
	for _, id := range r.order {
		phases[id] = r.lights[id].CurrentPhase()
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(phases)
}

func (r *Responder) handlePhase(w http.ResponseWriter, req *http.Request) {
	l, err := r.light(req.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	switch p := l.CurrentPhase(); p {
	case PhaseGreen:
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "OK")
	case PhaseRed:
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintln(w, "Service Unavailable")
	default:
		r.logger.Warn("unknown phase", "light", l.ID(), "phase", p)
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintln(w, "Internal Server Error")
	}
}

// handleWait blocks until the next green transition of the light after the
// request arrived. It relies on Watch running.
func (r *Responder) handleWait(w http.ResponseWriter, req *http.Request) {
	l, err := r.light(req.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	timeout := DefaultWaitTimeout
	if s := req.URL.Query().Get("timeout"); s != "" {
		if timeout, err = time.ParseDuration(s); err != nil || timeout <= 0 {
			http.Error(w, fmt.Sprintf("invalid timeout: %s", s), http.StatusBadRequest)
			return
		}
	}
	next := r.watches[l.ID()].wait()
	ctx, cancel := context.WithTimeout(req.Context(), timeout)
	defer cancel()

	r.logger.Debug("waiting for green", "light", l.ID(), "timeout", timeout)
	select {
	case <-ctx.Done():
		http.Error(w, "Gateway Timeout", http.StatusGatewayTimeout)
		return
	case <-next:
	}
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, "OK")
}

func (r *Responder) handleLog(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	if _, err := dumpLog(w); err != nil {
		r.logger.Warn("failed to dump log", "error", err)
	}
}
