// Package session hosts map views for connected browsers. Each session owns a
// mapview.Controller driven by a single goroutine, performs the controller's
// commands against the reserves backend and publishes a snapshot of the view
// state after every event.
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/reservemap/reservemap/internal/mapview"
	"github.com/reservemap/reservemap/internal/urlstate"
	"github.com/reservemap/reservemap/internal/viewport"
)

// ErrSessionClosed is returned when posting to a session that has shut down.
var ErrSessionClosed = errors.New("session closed")

// DefaultCommandTimeout bounds a single backend fetch.
const DefaultCommandTimeout = 15 * time.Second

// Snapshot is a published view state. Version increases with every event the
// session applies.
type Snapshot struct {
	Version uint64
	State   mapview.ViewState
}

// Config holds configuration for a Session.
type Config struct {
	ID      string
	URL     string
	Size    viewport.Size
	Backend mapview.Backend
	Logger  zerolog.Logger

	SearchDebounce time.Duration
	FitPadding     float64
	FitMaxZoom     int
	CommandTimeout time.Duration

	// OnEvent is called from the session goroutine for every applied event.
	OnEvent func(name string)
	// OnStale is called when a superseded result is discarded.
	OnStale func(pipeline string)
}

// Session is one map view. Post is safe for concurrent use.
type Session struct {
	id      string
	backend mapview.Backend
	logger  zerolog.Logger
	ctrl    *mapview.Controller
	history *urlstate.MemoryHistory
	timeout time.Duration
	onEvent func(string)

	ctx    context.Context
	cancel context.CancelFunc
	events chan mapview.Event
	done   chan struct{}
	cmds   sync.WaitGroup

	// debounce is touched only by the session goroutine.
	debounce *time.Timer

	snapshot   atomic.Pointer[Snapshot]
	lastActive atomic.Int64

	subsMu sync.Mutex
	subs   map[chan struct{}]struct{}
}

// New creates a session and starts its goroutine. The initial URL is read
// once and the startup loads are dispatched immediately.
func New(cfg Config) *Session {
	timeout := cfg.CommandTimeout
	if timeout == 0 {
		timeout = DefaultCommandTimeout
	}
	onEvent := cfg.OnEvent
	if onEvent == nil {
		onEvent = func(string) {}
	}
	logger := cfg.Logger.With().Str("session_id", cfg.ID).Logger()
	history := urlstate.NewMemoryHistory(cfg.URL)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:      cfg.ID,
		backend: cfg.Backend,
		logger:  logger,
		history: history,
		timeout: timeout,
		onEvent: onEvent,
		ctx:     ctx,
		cancel:  cancel,
		events:  make(chan mapview.Event, 64),
		done:    make(chan struct{}),
		subs:    make(map[chan struct{}]struct{}),
		ctrl: mapview.New(mapview.Config{
			History:        history,
			Logger:         logger,
			Viewport:       cfg.Size,
			SearchDebounce: cfg.SearchDebounce,
			FitPadding:     cfg.FitPadding,
			FitMaxZoom:     cfg.FitMaxZoom,
			OnStale:        cfg.OnStale,
		}),
	}
	s.Touch()

	start := s.ctrl.Start()
	s.publish(0)
	go s.run(start)
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Snapshot returns the latest published view state.
func (s *Session) Snapshot() Snapshot { return *s.snapshot.Load() }

// LastActive returns when the session last saw its client.
func (s *Session) LastActive() time.Time { return time.Unix(0, s.lastActive.Load()) }

// Done is closed once the session goroutine has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// Post queues a client event. It blocks until the event is queued or ctx ends.
func (s *Session) Post(ctx context.Context, ev mapview.Event) error {
	if s.ctx.Err() != nil {
		return ErrSessionClosed
	}
	s.Touch()
	select {
	case s.events <- ev:
		return nil
	case <-s.ctx.Done():
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe returns a channel that receives a signal after each published
// snapshot. Signals coalesce; read Snapshot to get the state. Call the
// returned function to unsubscribe.
func (s *Session) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	s.subsMu.Lock()
	s.subs[ch] = struct{}{}
	s.subsMu.Unlock()

	return ch, func() {
		s.subsMu.Lock()
		delete(s.subs, ch)
		s.subsMu.Unlock()
	}
}

// Close stops the session and waits for in-flight fetches to return.
func (s *Session) Close() {
	s.cancel()
	<-s.done
	s.cmds.Wait()
}

// Touch records client activity, deferring the idle sweep.
func (s *Session) Touch() { s.lastActive.Store(time.Now().UnixNano()) }

func (s *Session) run(start []mapview.Command) {
	defer close(s.done)
	defer func() {
		if s.debounce != nil {
			s.debounce.Stop()
		}
	}()

	s.dispatch(start)

	var version uint64
	for {
		select {
		case <-s.ctx.Done():
			s.logger.Debug().Msg("session stopped")
			return
		case ev := <-s.events:
			name := mapview.EventName(ev)
			s.onEvent(name)
			cmds := s.ctrl.Handle(ev)
			s.dispatch(cmds)
			version++
			s.publish(version)
			s.logger.Debug().Str("event", name).Int("commands", len(cmds)).Msg("event applied")
		}
	}
}

func (s *Session) dispatch(cmds []mapview.Command) {
	for _, cmd := range cmds {
		if w, ok := cmd.(mapview.WaitSearch); ok {
			s.wait(w)
			continue
		}
		s.cmds.Add(1)
		go s.execute(cmd)
	}
}

func (s *Session) wait(w mapview.WaitSearch) {
	if s.debounce != nil {
		s.debounce.Stop()
	}
	token := w.Wait.Token
	s.debounce = time.AfterFunc(w.Wait.Delay, func() {
		s.deliver(mapview.SearchDebounced{Token: token})
	})
}

func (s *Session) execute(cmd mapview.Command) {
	defer s.cmds.Done()

	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	start := time.Now()
	ev := mapview.Execute(ctx, s.backend, cmd)
	if ev == nil {
		return
	}
	s.logger.Debug().
		Str("command", mapview.CommandName(cmd)).
		Dur("duration", time.Since(start)).
		Msg("command completed")
	s.deliver(ev)
}

func (s *Session) deliver(ev mapview.Event) {
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}

func (s *Session) publish(version uint64) {
	s.snapshot.Store(&Snapshot{Version: version, State: s.ctrl.State()})

	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
