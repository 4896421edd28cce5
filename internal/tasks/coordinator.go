package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type activeKey struct {
	owner string
	kind  Kind
}

// Coordinator is the client-facing surface: Submit, Observe and Cancel. It keeps at most
// one live session per (owner, kind); a new submission supersedes the previous one.
type Coordinator struct {
	submitter *Submitter
	registry  Registry
	results   ResultStore
	clock     Clock
	sink      EventSink
	log       zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	active   map[activeKey]*Session
	keyLocks map[activeKey]*sync.Mutex
}

// NewCoordinator creates a coordinator. sink may be nil.
func NewCoordinator(registry Registry, results ResultStore, clock Clock, sink EventSink, log zerolog.Logger) *Coordinator {
	if clock == nil {
		clock = SystemClock
	}
	return &Coordinator{
		submitter: NewSubmitter(registry, clock, log),
		registry:  registry,
		results:   results,
		clock:     clock,
		sink:      sink,
		log:       log.With().Str("component", "task_coordinator").Logger(),
		sessions:  make(map[string]*Session),
		active:    make(map[activeKey]*Session),
		keyLocks:  make(map[activeKey]*sync.Mutex),
	}
}

func (c *Coordinator) keyLock(key activeKey) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.keyLocks[key]
	if !ok {
		l = &sync.Mutex{}
		c.keyLocks[key] = l
	}
	return l
}

// Submit validates params, supersedes any live session of the same owner and kind, and
// starts a new session. Validation and auth failures leave the previous session alone.
func (c *Coordinator) Submit(ctx context.Context, kind Kind, params Params) (Handle, error) {
	owner, err := c.submitter.Check(ctx, kind, params)
	if err != nil {
		c.log.Debug().Err(err).Str("kind", string(kind)).Msg("Submission rejected")
		return Handle{}, err
	}

	key := activeKey{owner: owner, kind: kind}
	l := c.keyLock(key)
	l.Lock()
	defer l.Unlock()

	sess := NewSession(SessionConfig{
		Kind:     kind,
		Owner:    owner,
		Registry: c.registry,
		Results:  c.results,
		Clock:    c.clock,
		Sink:     c.sink,
		Log:      c.log,
	})

	c.mu.Lock()
	prior := c.active[key]
	c.active[key] = sess
	c.mu.Unlock()

	// The prior session's timers must be gone before the new session arms its own.
	if prior != nil && prior.Cancel("superseded by a new submission") {
		c.log.Info().
			Str("task_id", prior.ID()).
			Str("kind", string(kind)).
			Str("owner", owner).
			Msg("Superseded live session")
	}

	handle, err := sess.Start(ctx, c.submitter, params)

	c.mu.Lock()
	defer c.mu.Unlock()
	if id := sess.ID(); id != "" {
		c.sessions[id] = sess
	}
	if err != nil {
		if c.active[key] == sess {
			delete(c.active, key)
		}
		return Handle{}, err
	}
	return handle, nil
}

// Session returns the session of a handle.
func (c *Coordinator) Session(handle Handle) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sess, ok := c.sessions[handle.ID]
	if !ok {
		return nil, ErrUnknownHandle
	}
	return sess, nil
}

// Observe returns the status stream of a session. The stream replays past events and
// ends with the terminal event. Call the returned function to stop observing early.
func (c *Coordinator) Observe(handle Handle) (<-chan StatusEvent, func(), error) {
	sess, err := c.Session(handle)
	if err != nil {
		return nil, nil, err
	}
	ch, unsubscribe := sess.Subscribe()
	return ch, unsubscribe, nil
}

// Cancel abandons a session. Cancelling an already cancelled or terminal session is a
// no-op.
func (c *Coordinator) Cancel(handle Handle) error {
	sess, err := c.Session(handle)
	if err != nil {
		return err
	}
	sess.Cancel("cancelled by caller")
	return nil
}

// Result returns the result of a completed session.
func (c *Coordinator) Result(handle Handle) (Result, error) {
	sess, err := c.Session(handle)
	if err != nil {
		return nil, err
	}
	return sess.Result()
}

// Active returns the live session of an owner and kind, if any.
func (c *Coordinator) Active(owner string, kind Kind) (*Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sess, ok := c.active[activeKey{owner: owner, kind: kind}]
	if !ok || sess.State().IsTerminal() {
		return nil, false
	}
	return sess, true
}

// CancelAll cancels every live session. Used on shutdown.
func (c *Coordinator) CancelAll(reason string) int {
	c.mu.Lock()
	live := make([]*Session, 0, len(c.active))
	for _, sess := range c.active {
		live = append(live, sess)
	}
	c.mu.Unlock()

	cancelled := 0
	for _, sess := range live {
		if sess.Cancel(reason) {
			cancelled++
		}
	}
	return cancelled
}

// Prune forgets terminal sessions that finished more than retention ago.
func (c *Coordinator) Prune(retention time.Duration) int {
	cutoff := c.clock.Now().Add(-retention)

	c.mu.Lock()
	defer c.mu.Unlock()

	pruned := 0
	for id, sess := range c.sessions {
		snap := sess.Snapshot()
		if !snap.State.IsTerminal() || snap.FinishedAt == nil || snap.FinishedAt.After(cutoff) {
			continue
		}
		delete(c.sessions, id)
		key := activeKey{owner: snap.Owner, kind: snap.Kind}
		if c.active[key] == sess {
			delete(c.active, key)
		}
		pruned++
	}

	if pruned > 0 {
		c.log.Debug().Int("pruned", pruned).Msg("Pruned finished sessions")
	}
	return pruned
}

// Count returns the number of tracked sessions and how many of them are live.
func (c *Coordinator) Count() (total int, live int) {
	c.mu.Lock()
	sessions := make([]*Session, 0, len(c.sessions))
	for _, sess := range c.sessions {
		sessions = append(sessions, sess)
	}
	c.mu.Unlock()

	for _, sess := range sessions {
		if !sess.State().IsTerminal() {
			live++
		}
	}
	return len(sessions), live
}
