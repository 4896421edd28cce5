package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// State is the client-side state of a session.
type State int

const (
	StateIdle State = iota
	StateRequesting
	StatePolling
	StateCompleted
	StateFailed
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRequesting:
		return "Requesting"
	case StatePolling:
		return "Polling"
	case StateCompleted:
		return "Completed"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// IsTerminal reports whether the session has ended.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Outcome says how a terminal session ended.
type Outcome string

const (
	OutcomeNone      Outcome = ""
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"    // worker wrote status=failed
	OutcomeTimedOut  Outcome = "timed_out" // budget elapsed
	OutcomeCancelled Outcome = "cancelled" // caller abandoned the session
	OutcomeRejected  Outcome = "rejected"  // submission failed
)

// readTimeout bounds a single registry read issued by a poll tick.
const readTimeout = 10 * time.Second

// StatusEvent is one entry of a session's status stream.
type StatusEvent struct {
	Seq        int       `json:"seq"` // 1-based position in the session's stream
	TaskID     string    `json:"task_id"`
	Kind       Kind      `json:"kind"`
	Owner      string    `json:"owner"`
	State      State     `json:"state"`
	TaskStatus Status    `json:"task_status,omitempty"`
	Message    string    `json:"message,omitempty"`
	Outcome    Outcome   `json:"outcome,omitempty"`
	Error      string    `json:"error,omitempty"`
	At         time.Time `json:"at"`

	Err    error  `json:"-"`
	Result Result `json:"-"`
}

// Terminal reports whether this is the last event of the stream.
func (e StatusEvent) Terminal() bool {
	return e.State.IsTerminal()
}

// Snapshot is a point-in-time view of a session.
type Snapshot struct {
	TaskID       string     `json:"task_id"`
	Kind         Kind       `json:"kind"`
	Owner        string     `json:"owner"`
	State        State      `json:"state"`
	TaskStatus   Status     `json:"task_status,omitempty"`
	Message      string     `json:"message,omitempty"`
	Outcome      Outcome    `json:"outcome,omitempty"`
	Error        string     `json:"error,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	PollArmed    bool       `json:"poll_armed"`
	TimeoutArmed bool       `json:"timeout_armed"`
}

// Session is one Submit -> Poll -> Terminal lifecycle for a single task. It owns its
// poll and timeout timers; nothing outside the session touches them.
type Session struct {
	kind     Kind
	owner    string
	timing   KindTiming
	registry Registry
	results  ResultStore
	clock    Clock
	sink     EventSink
	log      zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	id           string
	state        State
	path         []State
	taskStatus   Status
	message      string
	outcome      Outcome
	err          error
	result       Result
	startedAt    time.Time
	finishedAt   *time.Time
	pollTimer    Timer
	pollArmed    bool
	timeoutTimer Timer
	timeoutArmed bool
	history      []StatusEvent
	subscribers  map[chan StatusEvent]struct{}
	done         chan struct{}
}

// SessionConfig holds the collaborators of a session.
type SessionConfig struct {
	Kind     Kind
	Owner    string
	Registry Registry
	Results  ResultStore
	Clock    Clock
	Sink     EventSink
	Log      zerolog.Logger
}

// NewSession creates an Idle session.
func NewSession(cfg SessionConfig) *Session {
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		kind:        cfg.Kind,
		owner:       cfg.Owner,
		timing:      TimingFor(cfg.Kind),
		registry:    cfg.Registry,
		results:     NewResultFetcher(cfg.Results),
		clock:       clock,
		sink:        cfg.Sink,
		log:         cfg.Log.With().Str("component", "task_session").Str("kind", string(cfg.Kind)).Logger(),
		ctx:         ctx,
		cancel:      cancel,
		state:       StateIdle,
		path:        []State{StateIdle},
		subscribers: make(map[chan StatusEvent]struct{}),
		done:        make(chan struct{}),
	}
}

// Start moves the session Idle -> Requesting, submits the task and on success moves to
// Polling with both timers armed. On failure the session ends in Failed.
func (s *Session) Start(ctx context.Context, submitter *Submitter, params Params) (Handle, error) {
	s.mu.Lock()
	if s.state != StateIdle {
		state := s.state
		s.mu.Unlock()
		return Handle{}, fmt.Errorf("session already started (state %s)", state)
	}
	s.transitionLocked(StateRequesting)
	s.startedAt = s.clock.Now()
	s.mu.Unlock()

	handle, err := submitter.Submit(ctx, s.kind, params)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil {
		s.id = handle.ID
	}

	if s.state != StateRequesting {
		// Cancelled while the registry write was in flight. The row, if any, is left to
		// the worker; nobody collects its result.
		if err != nil {
			return Handle{}, err
		}
		return handle, s.err
	}

	if err != nil {
		s.finishLocked(StateFailed, OutcomeRejected, err, nil)
		return Handle{}, err
	}

	s.taskStatus = StatusPending
	s.transitionLocked(StatePolling)
	s.timeoutArmed = true
	s.timeoutTimer = s.clock.AfterFunc(s.timing.Budget, s.onTimeout)
	s.pollArmed = true
	s.pollTimer = s.clock.AfterFunc(s.timing.PollInterval, s.onPoll)

	s.log.Info().
		Str("task_id", s.id).
		Dur("poll_interval", s.timing.PollInterval).
		Dur("budget", s.timing.Budget).
		Msg("Polling task")
	s.emitLocked(s.eventLocked())

	return handle, nil
}

// Cancel abandons the session: both timers are disarmed and the session ends as
// cancelled. The registry row is not touched. Cancelling an Idle or already terminal
// session is a no-op and returns false.
func (s *Session) Cancel(reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateIdle || s.state.IsTerminal() {
		return false
	}

	s.disarmLocked()
	s.finishLocked(StateFailed, OutcomeCancelled, &CancelledError{TaskID: s.id, Reason: reason}, nil)

	s.log.Info().Str("task_id", s.id).Str("reason", reason).Msg("Session cancelled")
	return true
}

// onPoll is the poll timer callback.
func (s *Session) onPoll() {
	s.mu.Lock()
	if s.state != StatePolling || !s.pollArmed {
		s.mu.Unlock()
		return
	}
	s.pollArmed = false
	s.pollTimer = nil
	id := s.id
	s.mu.Unlock()

	readCtx, cancel := context.WithTimeout(s.ctx, readTimeout)
	task, err := s.registry.GetTask(readCtx, id)
	cancel()

	s.mu.Lock()
	if s.state != StatePolling || !s.timeoutArmed {
		s.mu.Unlock()
		return
	}

	if err != nil {
		// Reads are eventually consistent; a missing or failed read is retried on the
		// next tick and the timeout bounds how long that can go on.
		if errors.Is(err, ErrTaskNotFound) {
			s.log.Debug().Str("task_id", id).Msg("Task not visible yet")
		} else {
			s.log.Warn().Err(err).Str("task_id", id).Msg("Failed to read task status")
		}
		s.armPollLocked()
		s.mu.Unlock()
		return
	}

	switch task.Status {
	case StatusPending, StatusProcessing:
		if task.Status != s.taskStatus || task.ResultMessage != s.message {
			s.taskStatus = task.Status
			s.message = task.ResultMessage
			s.log.Debug().Str("task_id", id).Str("status", string(task.Status)).Str("message", task.ResultMessage).Msg("Task progress")
			s.emitLocked(s.eventLocked())
		}
		s.armPollLocked()
		s.mu.Unlock()

	case StatusCompleted:
		s.disarmLocked()
		s.taskStatus = StatusCompleted
		s.message = task.ResultMessage
		s.mu.Unlock()
		s.collect(id)

	case StatusFailed:
		s.disarmLocked()
		s.taskStatus = StatusFailed
		s.message = task.ResultMessage
		s.finishLocked(StateFailed, OutcomeFailed, &WorkerReportedError{TaskID: id, Message: task.ResultMessage}, nil)
		s.log.Warn().Str("task_id", id).Str("message", task.ResultMessage).Msg("Worker reported failure")
		s.mu.Unlock()

	default:
		s.log.Warn().Str("task_id", id).Str("status", string(task.Status)).Msg("Unknown task status, still polling")
		s.armPollLocked()
		s.mu.Unlock()
	}
}

// collect runs the result fetch after a Completed status was observed. Both timers are
// already disarmed, so only a cancel can race with it.
func (s *Session) collect(id string) {
	readCtx, cancel := context.WithTimeout(s.ctx, readTimeout)
	result, err := s.results.FetchResult(readCtx, id, s.kind)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StatePolling {
		return
	}

	var fetchErr error
	if err != nil {
		fetchErr = &ResultFetchError{TaskID: id, Err: err}
		s.log.Error().Err(err).Str("task_id", id).Msg("Failed to fetch task result")
	}
	s.finishLocked(StateCompleted, OutcomeCompleted, fetchErr, result)
	s.log.Info().Str("task_id", id).Msg("Task completed")
}

// onTimeout is the timeout timer callback.
func (s *Session) onTimeout() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StatePolling || !s.timeoutArmed {
		return
	}

	s.disarmLocked()
	s.finishLocked(StateFailed, OutcomeTimedOut, &TimeoutError{TaskID: s.id, Kind: s.kind, Budget: s.timing.Budget}, nil)

	s.log.Warn().Str("task_id", s.id).Dur("budget", s.timing.Budget).Msg("Task timed out")
}

func (s *Session) armPollLocked() {
	s.pollArmed = true
	s.pollTimer = s.clock.AfterFunc(s.timing.PollInterval, s.onPoll)
}

// disarmLocked stops both timers. Must be called before any terminal state change.
func (s *Session) disarmLocked() {
	if s.pollTimer != nil {
		s.pollTimer.Stop()
		s.pollTimer = nil
	}
	s.pollArmed = false
	if s.timeoutTimer != nil {
		s.timeoutTimer.Stop()
		s.timeoutTimer = nil
	}
	s.timeoutArmed = false
}

func (s *Session) transitionLocked(next State) {
	s.state = next
	s.path = append(s.path, next)
}

func (s *Session) finishLocked(state State, outcome Outcome, err error, result Result) {
	s.transitionLocked(state)
	s.outcome = outcome
	s.err = err
	s.result = result
	now := s.clock.Now()
	s.finishedAt = &now
	s.cancel()

	s.emitLocked(s.eventLocked())

	for ch := range s.subscribers {
		close(ch)
	}
	s.subscribers = make(map[chan StatusEvent]struct{})
	close(s.done)
}

func (s *Session) eventLocked() StatusEvent {
	ev := StatusEvent{
		TaskID:     s.id,
		Kind:       s.kind,
		Owner:      s.owner,
		State:      s.state,
		TaskStatus: s.taskStatus,
		Message:    s.message,
		Outcome:    s.outcome,
		At:         s.clock.Now(),
		Err:        s.err,
		Result:     s.result,
	}
	if s.err != nil {
		ev.Error = s.err.Error()
	}
	return ev
}

func (s *Session) emitLocked(ev StatusEvent) {
	ev.Seq = len(s.history) + 1
	s.history = append(s.history, ev)
	for ch := range s.subscribers {
		deliver(ch, ev)
	}
	if s.sink != nil {
		s.sink.SessionEvent(ev)
	}
}

// deliver never blocks. Progress events are dropped for slow subscribers; a terminal
// event evicts the oldest buffered event if needed so the stream always ends with it.
func deliver(ch chan StatusEvent, ev StatusEvent) {
	select {
	case ch <- ev:
		return
	default:
	}
	if !ev.Terminal() {
		return
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- ev:
	default:
	}
}

// subscriberBuffer is the channel capacity of an observer beyond the replayed history.
const subscriberBuffer = 32

// Subscribe returns a stream of status events. Events already emitted are replayed first.
// The channel is closed after the terminal event, or when unsubscribe is called.
func (s *Session) Subscribe() (<-chan StatusEvent, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan StatusEvent, len(s.history)+subscriberBuffer)
	for _, ev := range s.history {
		ch <- ev
	}
	if s.state.IsTerminal() {
		close(ch)
		return ch, func() {}
	}

	s.subscribers[ch] = struct{}{}
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.subscribers[ch]; ok {
				delete(s.subscribers, ch)
				close(ch)
			}
		})
	}
}

// Done is closed when the session reaches a terminal state.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Context is the context of the session's registry reads. It is cancelled when the
// session reaches a terminal state.
func (s *Session) Context() context.Context {
	return s.ctx
}

// Wait blocks until the session ends or ctx is done and returns the final snapshot.
func (s *Session) Wait(ctx context.Context) (Snapshot, error) {
	select {
	case <-s.done:
		return s.Snapshot(), nil
	case <-ctx.Done():
		return s.Snapshot(), ctx.Err()
	}
}

// ID returns the task id, empty until the submission succeeded.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Kind returns the task kind of the session.
func (s *Session) Kind() Kind {
	return s.kind
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Path returns every state the session has been in, in order.
func (s *Session) Path() []State {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]State, len(s.path))
	copy(out, s.path)
	return out
}

// Err returns the error a failed session ended with, or a result fetch error.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Result returns the fetched result of a completed session.
func (s *Session) Result() (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateCompleted {
		return nil, ErrResultNotReady
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

// Snapshot returns the current view of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		TaskID:       s.id,
		Kind:         s.kind,
		Owner:        s.owner,
		State:        s.state,
		TaskStatus:   s.taskStatus,
		Message:      s.message,
		Outcome:      s.outcome,
		StartedAt:    s.startedAt,
		FinishedAt:   s.finishedAt,
		PollArmed:    s.pollArmed,
		TimeoutArmed: s.timeoutArmed,
	}
	if s.err != nil {
		snap.Error = s.err.Error()
	}
	return snap
}
